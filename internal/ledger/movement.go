package ledger

import (
	"context"
	"fmt"

	"imalat-backend/internal/apperror"
	"imalat-backend/internal/audit"
	"imalat-backend/internal/config"
	"imalat-backend/internal/models"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MovementRequest: Üretim dışı stok hareketi. STOCK_COUNT için Quantity sayılan miktardır.
type MovementRequest struct {
	TransactionDate string                 `json:"transaction_date" validate:"required"`
	TransactionType models.TransactionType `json:"transaction_type" validate:"required,oneof=RECEIPT SHIPMENT SCRAP STOCK_COUNT"`
	ItemID          uint                   `json:"item_id" validate:"required"`
	Quantity        decimal.Decimal        `json:"quantity" validate:"gte=0"`
	UnitPrice       decimal.Decimal        `json:"unit_price" validate:"gte=0"`
	ReferenceNumber string                 `json:"reference_number" validate:"max=100"`
	Notes           string                 `json:"notes" validate:"max=500"`
	CreatedBy       uint                   `json:"created_by" validate:"required"`
}

type MovementResult struct {
	Transaction models.InventoryTransaction `json:"transaction"`
	StockBefore decimal.Decimal             `json:"stock_before"`
	StockAfter  decimal.Decimal             `json:"stock_after"`
}

// RecordMovement: Giriş, çıkış, fire ve sayım kayıtları. Kalem kilitlenir, stok eksiye düşmez.
func RecordMovement(ctx context.Context, db *gorm.DB, locker Locker, req MovementRequest) (*MovementResult, error) {
	if err := apperror.Validate(&req); err != nil {
		return nil, err
	}
	if req.TransactionType != models.TransactionTypeStockCount && !req.Quantity.IsPositive() {
		return nil, apperror.NewFieldValidation(map[string]string{"quantity": "gt"})
	}
	if fields := models.CheckColumns(map[string]decimal.Decimal{
		"quantity":     req.Quantity,
		"unit_price":   req.UnitPrice,
		"total_amount": models.RoundAmount(req.Quantity.Mul(req.UnitPrice)),
	}); len(fields) > 0 {
		return nil, apperror.NewFieldValidation(fields)
	}
	date, err := apperror.ParseDate(req.TransactionDate)
	if err != nil {
		return nil, err
	}

	var (
		result *MovementResult
		sess   *Session
	)
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sess = NewSession(ctx, tx, locker)
		if err := sess.Lock(req.ItemID); err != nil {
			return err
		}
		item, err := sess.Item(req.ItemID)
		if err != nil {
			return err
		}
		if !item.IsActive {
			return apperror.NewValidation("Pasif kalem için stok hareketi girilemez: %s", item.ItemCode)
		}

		before := item.CurrentStock
		after := before
		qty := req.Quantity
		switch req.TransactionType {
		case models.TransactionTypeReceipt:
			_, after, err = sess.Increase(item.ID, qty)
		case models.TransactionTypeShipment, models.TransactionTypeScrap:
			_, after, err = sess.Decrease(item.ID, qty)
		case models.TransactionTypeStockCount:
			// Fark kadar düzelt, fark yoksa sadece kayıt
			diff := qty.Sub(before)
			switch {
			case diff.IsPositive():
				_, after, err = sess.Increase(item.ID, diff)
			case diff.IsNegative():
				_, after, err = sess.Decrease(item.ID, diff.Neg())
			}
			qty = diff
		}
		if err != nil {
			return err
		}

		txn := models.InventoryTransaction{
			ItemID:          item.ID,
			TransactionType: req.TransactionType,
			TransactionDate: date,
			Quantity:        qty,
			UnitPrice:       req.UnitPrice,
			TotalAmount:     models.RoundAmount(qty.Abs().Mul(req.UnitPrice)),
			ReferenceNumber: req.ReferenceNumber,
			Notes:           req.Notes,
			CreatedBy:       req.CreatedBy,
		}
		if err := tx.Omit(clause.Associations).Create(&txn).Error; err != nil {
			return apperror.FromDB(err)
		}

		if err := audit.WriteLog(tx, audit.LogOptions{
			UserID:      req.CreatedBy,
			EntityType:  audit.EntityInventoryTransaction,
			EntityID:    txn.ID,
			Action:      models.AuditActionCreate,
			Description: fmt.Sprintf("Stok hareketi: %s %s x %s", req.TransactionType, item.ItemCode, qty.String()),
			Before:      map[string]string{"current_stock": before.String()},
			After:       map[string]string{"current_stock": after.String()},
		}); err != nil {
			return err
		}

		result = &MovementResult{Transaction: txn, StockBefore: before, StockAfter: after}
		return nil
	})
	if sess != nil {
		sess.Close()
	}
	if err != nil {
		return nil, apperror.FromDB(err)
	}

	config.GetLogger().WithFields(logrus.Fields{
		"transaction_id": result.Transaction.ID,
		"type":           req.TransactionType,
		"item_id":        req.ItemID,
		"stock_after":    result.StockAfter.String(),
	}).Info("Stok hareketi kaydedildi")
	return result, nil
}

type MovementFilter struct {
	ItemID uint
	Type   models.TransactionType
	Limit  int
}

// ListMovements: Üretim kayıtları dahil tüm hareketler, en yeni önce.
func ListMovements(ctx context.Context, db *gorm.DB, f MovementFilter) ([]models.InventoryTransaction, error) {
	dbq := db.WithContext(ctx).Model(&models.InventoryTransaction{})
	if f.ItemID > 0 {
		dbq = dbq.Where("item_id = ?", f.ItemID)
	}
	if f.Type != "" {
		dbq = dbq.Where("transaction_type = ?", f.Type)
	}
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = 100
	}

	var txns []models.InventoryTransaction
	if err := dbq.Order("transaction_date DESC, id DESC").Limit(f.Limit).Find(&txns).Error; err != nil {
		return nil, err
	}
	return txns, nil
}
