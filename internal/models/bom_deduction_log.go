package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// BOMDeductionLog: Bir üretim kaydının bir BOM yolu üzerinden yaptığı tek stok düşümü.
// Sadece eklenir, asla güncellenmez.
type BOMDeductionLog struct {
	ID            uint `gorm:"primaryKey" json:"log_id"`
	TransactionID uint `gorm:"index;not null" json:"transaction_id"`

	// Yol üzerindeki doğrudan üst kalem (kök değil)
	ParentItemID uint `gorm:"index;not null" json:"parent_item_id"`
	ChildItemID  uint `gorm:"index;not null" json:"child_item_id"`
	ChildItem    Item `gorm:"foreignKey:ChildItemID" json:"-"`
	BOMLevel     int  `gorm:"not null" json:"bom_level"`

	ParentQuantity   decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"parent_quantity"`
	QuantityRequired decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"quantity_required"`
	DeductedQuantity decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"deducted_quantity"`
	UsageRate        decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"usage_rate"`
	StockBefore      decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"stock_before"`
	StockAfter       decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"stock_after"`

	CreatedAt time.Time `json:"created_at"`
}
