package database

import (
	"time"

	"gorm.io/gorm"
)

// DetectionSettings controls the suspicious-order heuristics
type DetectionSettings struct {
	ID                    uint      `gorm:"primaryKey" json:"id"`
	SiblingWindowSeconds  int       `json:"sibling_window_seconds"`
	FollowUpWindowSeconds int       `json:"follow_up_window_seconds"`
	FlagSiblings          bool      `json:"flag_siblings"` // also mark the earlier orders of a burst
	NotificationsEnabled  bool      `json:"notifications_enabled"`
	DigestEnabled         bool      `json:"digest_enabled"`
	DigestIntervalMinutes int       `json:"digest_interval_minutes"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

func (DetectionSettings) TableName() string {
	return "detection_settings"
}

// NewDefaultDetectionSettings returns settings with default values
func NewDefaultDetectionSettings() *DetectionSettings {
	return &DetectionSettings{
		SiblingWindowSeconds:  300,
		FollowUpWindowSeconds: 600,
		FlagSiblings:          true,
		NotificationsEnabled:  true,
		DigestEnabled:         true,
		DigestIntervalMinutes: 30,
	}
}

// SiblingWindow returns the tier-1 window as a duration
func (s *DetectionSettings) SiblingWindow() time.Duration {
	return time.Duration(s.SiblingWindowSeconds) * time.Second
}

// FollowUpWindow returns the tier-2 window as a duration
func (s *DetectionSettings) FollowUpWindow() time.Duration {
	return time.Duration(s.FollowUpWindowSeconds) * time.Second
}

// GetOrCreateDetectionSettings retrieves the settings singleton, creating it from
// defaults (or NewDefaultDetectionSettings when defaults is nil) on first use.
func GetOrCreateDetectionSettings(db *gorm.DB, defaults *DetectionSettings) (*DetectionSettings, error) {
	var settings DetectionSettings
	result := db.First(&settings)
	if result.Error == gorm.ErrRecordNotFound {
		if defaults == nil {
			defaults = NewDefaultDetectionSettings()
		}
		settings = *defaults
		settings.ID = 0
		if err := db.Create(&settings).Error; err != nil {
			return nil, err
		}
	} else if result.Error != nil {
		return nil, result.Error
	}
	return &settings, nil
}

// UpdateDetectionSettings saves the settings singleton
func UpdateDetectionSettings(db *gorm.DB, settings *DetectionSettings) error {
	return db.Save(settings).Error
}
