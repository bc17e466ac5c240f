package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionTypeProductionReceipt TransactionType = "PRODUCTION_RECEIPT"
	TransactionTypeReceipt           TransactionType = "RECEIPT"
	TransactionTypeShipment          TransactionType = "SHIPMENT"
	TransactionTypeScrap             TransactionType = "SCRAP"
	// Sayım: Quantity sayılan stok ile önceki stok arasındaki farktır (eksi olabilir)
	TransactionTypeStockCount TransactionType = "STOCK_COUNT"
)

// InventoryTransaction: Oluşturulduktan sonra değişmez (UpdatedAt yok).
type InventoryTransaction struct {
	ID              uint            `gorm:"primaryKey" json:"transaction_id"`
	ItemID          uint            `gorm:"index;not null" json:"item_id"`
	Item            Item            `json:"-"`
	TransactionType TransactionType `gorm:"size:30;not null;index" json:"transaction_type"`
	TransactionDate time.Time       `gorm:"index;not null" json:"transaction_date"`
	Quantity        decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"quantity"`
	UnitPrice       decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"unit_price"`
	TotalAmount     decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"total_amount"`
	ReferenceNumber string          `gorm:"size:100" json:"reference_number"`
	Notes           string          `gorm:"size:500" json:"notes"`
	CreatedBy       uint            `gorm:"index;not null" json:"created_by"`
	CreatedAt       time.Time       `json:"created_at"`
}
