package production

import (
	"context"
	"errors"
	"time"

	"imalat-backend/internal/apperror"
	"imalat-backend/internal/bom"
	"imalat-backend/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type CheckLine struct {
	ItemID                  uint            `json:"item_id"`
	ItemCode                string          `json:"item_code"`
	ItemName                string          `json:"item_name"`
	Unit                    string          `json:"unit"`
	MinLevel                int             `json:"level_no"`
	PerUnitQuantity         decimal.Decimal `json:"per_unit_quantity"`
	RequiredQuantity        decimal.Decimal `json:"required_quantity"`
	AvailableStock          decimal.Decimal `json:"available_stock"`
	Shortage                decimal.Decimal `json:"shortage"`
	Sufficient              bool            `json:"sufficient"`
	MaxProducibleByThisItem decimal.Decimal `json:"max_producible_by_this_item"`
}

type Bottleneck struct {
	ItemID        uint            `json:"item_id"`
	ItemCode      string          `json:"item_code"`
	ItemName      string          `json:"item_name"`
	MaxProducible decimal.Decimal `json:"max_producible"`
}

type CheckSummary struct {
	CanProduce            bool            `json:"can_produce"`
	TotalItems            int             `json:"total_items"`
	SufficientItems       int             `json:"sufficient_items"`
	InsufficientItems     int             `json:"insufficient_items"`
	MaxProducibleQuantity decimal.Decimal `json:"max_producible_quantity"`
	BottleneckItem        *Bottleneck     `json:"bottleneck_item"`
}

type CheckResult struct {
	ProductItem bom.ItemRef     `json:"product_item"`
	Quantity    decimal.Decimal `json:"quantity"`
	Lines       []CheckLine     `json:"bom_check"`
	Summary     CheckSummary    `json:"summary"`
}

// Check: Üretim öncesi stok yeterliliği. Kilit almaz, stok değiştirmez.
func (s *Service) Check(ctx context.Context, itemID uint, quantity decimal.Decimal) (*CheckResult, error) {
	if !quantity.IsPositive() {
		return nil, apperror.NewFieldValidation(map[string]string{"quantity": "gt"})
	}

	db := s.db.WithContext(ctx)
	store := bom.NewStore(db)
	found, err := store.Items(ctx, []uint{itemID})
	if err != nil {
		return nil, err
	}
	product, ok := found[itemID]
	if !ok {
		return nil, &apperror.UnknownItemError{ItemID: itemID}
	}

	plan, err := s.engine.Plan(ctx, db, itemID, quantity)
	if err != nil {
		return nil, err
	}
	items, err := store.Items(ctx, plan.ItemIDs())
	if err != nil {
		return nil, err
	}

	perUnit := make(map[uint]decimal.Decimal, len(plan.Totals))
	minLevel := make(map[uint]int, len(plan.Totals))
	for _, n := range plan.Leaves {
		perUnit[n.ItemID] = perUnit[n.ItemID].Add(n.PerUnitQuantity)
		if lvl, ok := minLevel[n.ItemID]; !ok || n.Depth < lvl {
			minLevel[n.ItemID] = n.Depth
		}
	}

	out := &CheckResult{
		ProductItem: bom.ItemRef{ItemID: product.ID, ItemCode: product.ItemCode, ItemName: product.ItemName, Unit: product.Unit},
		Quantity:    quantity,
		Lines:       make([]CheckLine, 0, len(plan.Totals)),
	}
	// Alt kalem yoksa üretim malzemeye bağlı değildir
	maxProducible := quantity
	first := true
	for _, id := range plan.ItemIDs() {
		item := items[id]
		required := plan.Totals[id]
		shortage := decimal.Zero
		if item.CurrentStock.LessThan(required) {
			shortage = required.Sub(item.CurrentStock)
		}
		byThis := item.CurrentStock.Div(perUnit[id]).Floor()
		if byThis.IsNegative() {
			byThis = decimal.Zero
		}

		line := CheckLine{
			ItemID:                  id,
			ItemCode:                item.ItemCode,
			ItemName:                item.ItemName,
			Unit:                    item.Unit,
			MinLevel:                minLevel[id],
			PerUnitQuantity:         perUnit[id],
			RequiredQuantity:        required,
			AvailableStock:          item.CurrentStock,
			Shortage:                shortage,
			Sufficient:              shortage.IsZero(),
			MaxProducibleByThisItem: byThis,
		}
		out.Lines = append(out.Lines, line)

		if line.Sufficient {
			out.Summary.SufficientItems++
		} else {
			out.Summary.InsufficientItems++
		}
		if first || byThis.LessThan(maxProducible) {
			maxProducible = byThis
			out.Summary.BottleneckItem = &Bottleneck{ItemID: id, ItemCode: item.ItemCode, ItemName: item.ItemName, MaxProducible: byThis}
			first = false
		}
	}

	out.Summary.TotalItems = len(out.Lines)
	out.Summary.CanProduce = out.Summary.InsufficientItems == 0
	out.Summary.MaxProducibleQuantity = maxProducible
	return out, nil
}

type HistoryFilter struct {
	ItemID uint
	From   *time.Time
	To     *time.Time
	Limit  int
}

type HistoryLine struct {
	models.InventoryTransaction
	ItemCode       string `json:"item_code"`
	ItemName       string `json:"item_name"`
	DeductionCount int64  `json:"deduction_count"`
}

// List: En yeni üretim kayıtları önce.
func (s *Service) List(ctx context.Context, f HistoryFilter) ([]HistoryLine, error) {
	dbq := s.db.WithContext(ctx).
		Preload("Item").
		Where("transaction_type = ?", models.TransactionTypeProductionReceipt)
	if f.ItemID > 0 {
		dbq = dbq.Where("item_id = ?", f.ItemID)
	}
	if f.From != nil {
		dbq = dbq.Where("transaction_date >= ?", *f.From)
	}
	if f.To != nil {
		dbq = dbq.Where("transaction_date <= ?", *f.To)
	}
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = 100
	}

	var txns []models.InventoryTransaction
	if err := dbq.Order("transaction_date DESC, id DESC").Limit(f.Limit).Find(&txns).Error; err != nil {
		return nil, err
	}
	if len(txns) == 0 {
		return []HistoryLine{}, nil
	}

	ids := make([]uint, 0, len(txns))
	for _, t := range txns {
		ids = append(ids, t.ID)
	}
	var counts []struct {
		TransactionID uint
		Cnt           int64
	}
	if err := s.db.WithContext(ctx).Model(&models.BOMDeductionLog{}).
		Select("transaction_id, count(*) as cnt").
		Where("transaction_id IN ?", ids).
		Group("transaction_id").
		Scan(&counts).Error; err != nil {
		return nil, err
	}
	byTxn := make(map[uint]int64, len(counts))
	for _, c := range counts {
		byTxn[c.TransactionID] = c.Cnt
	}

	out := make([]HistoryLine, 0, len(txns))
	for _, t := range txns {
		out = append(out, HistoryLine{
			InventoryTransaction: t,
			ItemCode:             t.Item.ItemCode,
			ItemName:             t.Item.ItemName,
			DeductionCount:       byTxn[t.ID],
		})
	}
	return out, nil
}

var ErrTransactionNotFound = errors.New("Üretim kaydı bulunamadı")

type Detail struct {
	Transaction    models.InventoryTransaction `json:"transaction"`
	AutoDeductions []DeductionResult           `json:"auto_deductions"`
}

// Get: Kayıt ve log satırları, oluşturma sırasıyla.
func (s *Service) Get(ctx context.Context, id uint) (*Detail, error) {
	var txn models.InventoryTransaction
	if err := s.db.WithContext(ctx).First(&txn, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}

	var logs []models.BOMDeductionLog
	if err := s.db.WithContext(ctx).
		Preload("ChildItem").
		Where("transaction_id = ?", id).
		Order("id ASC").
		Find(&logs).Error; err != nil {
		return nil, err
	}

	out := &Detail{Transaction: txn, AutoDeductions: make([]DeductionResult, 0, len(logs))}
	for _, l := range logs {
		out.AutoDeductions = append(out.AutoDeductions, DeductionResult{
			LogID:            l.ID,
			ChildItemID:      l.ChildItemID,
			ParentItemID:     l.ParentItemID,
			ItemCode:         l.ChildItem.ItemCode,
			ItemName:         l.ChildItem.ItemName,
			Unit:             l.ChildItem.Unit,
			DeductedQuantity: l.DeductedQuantity,
			UsageRate:        l.UsageRate,
			StockBefore:      l.StockBefore,
			StockAfter:       l.StockAfter,
			BOMLevel:         l.BOMLevel,
		})
	}
	return out, nil
}
