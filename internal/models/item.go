package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Item: Hammadde, yarı mamul veya mamul. CurrentStock sadece ledger.Session üzerinden değişir.
type Item struct {
	ID           uint            `gorm:"primaryKey" json:"item_id"`
	ItemCode     string          `gorm:"size:50;not null;uniqueIndex" json:"item_code"`
	ItemName     string          `gorm:"size:150;not null" json:"item_name"`
	Spec         string          `gorm:"size:255" json:"spec"`
	Unit         string          `gorm:"size:20;not null" json:"unit"` // KG, EA, M vs.
	CurrentStock decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"current_stock"`
	IsActive     bool            `gorm:"not null;default:true" json:"is_active"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}
