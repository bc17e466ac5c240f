package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// BOMEdge: "1 adet parent, QuantityRequired adet child tüketir".
// LevelNo sadece bilgi amaçlı, çözümlemede kullanılmaz.
type BOMEdge struct {
	ID               uint            `gorm:"primaryKey" json:"bom_id"`
	ParentItemID     uint            `gorm:"index;not null" json:"parent_item_id"`
	ParentItem       Item            `gorm:"foreignKey:ParentItemID" json:"-"`
	ChildItemID      uint            `gorm:"index;not null" json:"child_item_id"`
	ChildItem        Item            `gorm:"foreignKey:ChildItemID" json:"-"`
	QuantityRequired decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"quantity_required"`
	LevelNo          int             `gorm:"not null;default:1" json:"level_no"`
	IsActive         bool            `gorm:"not null;default:true;index" json:"is_active"`
	Notes            string          `gorm:"size:255" json:"notes"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}
