package database

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// MergeProvenancePrefix starts the human readable note written to a surviving order
const MergeProvenancePrefix = "Merged from orders: "

// OrderMerge records a merge of several sibling orders into one survivor.
// It is the authoritative record of merge membership; admin notes only mirror it.
// A survivor that is merged again gets one record per merge.
type OrderMerge struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	UUID            string          `gorm:"uniqueIndex;not null" json:"uuid"`
	SurvivorOrderID uint            `gorm:"not null;index:idx_order_merges_survivor" json:"survivor_order_id"`
	CustomerID      uint            `gorm:"not null;index" json:"customer_id"`
	MergedBy        string          `gorm:"type:varchar(64);not null" json:"merged_by"` // admin username
	OrderCount      int             `gorm:"not null" json:"order_count"`
	TotalAmount     decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"total_amount"`
	CreatedAt       time.Time       `json:"created_at"`

	Members []OrderMergeMember `gorm:"foreignKey:MergeID" json:"members,omitempty"`
}

func (OrderMerge) TableName() string {
	return "order_merges"
}

// OrderMergeMember lists every order (survivor included) that took part in a merge
type OrderMergeMember struct {
	MergeID uint `gorm:"primaryKey;autoIncrement:false" json:"merge_id"`
	OrderID uint `gorm:"primaryKey;autoIncrement:false;index" json:"order_id"`
}

func (OrderMergeMember) TableName() string {
	return "order_merge_members"
}

// FormatMergeProvenance builds "Merged from orders: 1, 2, 3"
func FormatMergeProvenance(orderIDs []uint) string {
	parts := make([]string, len(orderIDs))
	for i, id := range orderIDs {
		parts[i] = strconv.FormatUint(uint64(id), 10)
	}
	return MergeProvenancePrefix + strings.Join(parts, ", ")
}

// FormatMergedInto builds the back-reference note for an absorbed order
func FormatMergedInto(survivorID uint) string {
	return fmt.Sprintf("Merged into order #%d", survivorID)
}
