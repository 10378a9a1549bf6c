package handlers

import (
	"log"
	"net/http"

	"github.com/harvestlink/harvestlink/internal/api"
	"github.com/harvestlink/harvestlink/internal/services"
)

// SettingsHandler exposes the detection settings
type SettingsHandler struct {
	detector *services.DetectionService
}

// NewSettingsHandler creates a new settings handler
func NewSettingsHandler(detector *services.DetectionService) *SettingsHandler {
	return &SettingsHandler{detector: detector}
}

// SetupRoutes configures settings routes
func (h *SettingsHandler) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/settings/detection", h.handleGetDetectionSettings)
	mux.HandleFunc("PUT /api/settings/detection", h.handleUpdateDetectionSettings)
}

// handleGetDetectionSettings handles GET /api/settings/detection
func (h *SettingsHandler) handleGetDetectionSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.detector.GetSettings(r.Context())
	if err != nil {
		log.Printf("Failed to load detection settings: %v", err)
		api.RespondError(w, http.StatusInternalServerError, "Failed to load settings")
		return
	}
	api.RespondJSON(w, http.StatusOK, settings)
}

// handleUpdateDetectionSettings handles PUT /api/settings/detection
func (h *SettingsHandler) handleUpdateDetectionSettings(w http.ResponseWriter, r *http.Request) {
	var req api.UpdateDetectionSettingsRequest
	if !api.Bind(w, r, &req) {
		return
	}

	settings, err := h.detector.GetSettings(r.Context())
	if err != nil {
		log.Printf("Failed to load detection settings: %v", err)
		api.RespondError(w, http.StatusInternalServerError, "Failed to load settings")
		return
	}

	api.ApplyDetectionSettings(settings, req)
	if err := h.detector.UpdateSettings(r.Context(), settings); err != nil {
		log.Printf("Failed to update detection settings: %v", err)
		api.RespondError(w, http.StatusInternalServerError, "Failed to update settings")
		return
	}

	log.Printf("Detection settings updated by %s: sibling=%ds follow_up=%ds flag_siblings=%v",
		adminFrom(r), settings.SiblingWindowSeconds, settings.FollowUpWindowSeconds, settings.FlagSiblings)
	api.RespondJSON(w, http.StatusOK, settings)
}
