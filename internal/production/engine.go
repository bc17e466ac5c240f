// Package production: Üretim kaydı ve BOM üzerinden otomatik malzeme düşümü.
package production

import (
	"context"
	"sort"

	"imalat-backend/internal/apperror"
	"imalat-backend/internal/bom"
	"imalat-backend/internal/config"
	"imalat-backend/internal/ledger"
	"imalat-backend/internal/models"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DeductionResult: Yazılan bir bom_deduction_logs satırının istemciye dönen hali.
type DeductionResult struct {
	LogID            uint            `json:"log_id"`
	ChildItemID      uint            `json:"child_item_id"`
	ParentItemID     uint            `json:"parent_item_id"`
	ItemCode         string          `json:"item_code"`
	ItemName         string          `json:"item_name"`
	Unit             string          `json:"unit"`
	DeductedQuantity decimal.Decimal `json:"deducted_quantity"`
	UsageRate        decimal.Decimal `json:"usage_rate"`
	StockBefore      decimal.Decimal `json:"stock_before"`
	StockAfter       decimal.Decimal `json:"stock_after"`
	BOMLevel         int             `json:"bom_level"`
}

// Plan: Çözümlenmiş BOM ve kalem bazında toplam ihtiyaç. Stok okumaz.
// Ara mamuller gezilir ama düşülmez; ihtiyaç sadece yapraklardan (hammadde) doğar.
// Totals, yol bazında yuvarlanmış tüketimlerin toplamıdır; düşüm de aynı değerlerle yapılır.
type Plan struct {
	ProducedItemID uint
	Quantity       decimal.Decimal
	Nodes          []bom.ResolvedNode
	Leaves         []bom.ResolvedNode
	Totals         map[uint]decimal.Decimal
}

// Consumption: Yaprağın bu üretimdeki tüketimi, 4 ondalığa yukarı yuvarlanmış.
func (p *Plan) Consumption(n bom.ResolvedNode) decimal.Decimal {
	return models.RoundConsumption(n.PerUnitQuantity.Mul(p.Quantity))
}

// ItemIDs: Düşülecek farklı hammaddeler, artan sırada.
func (p *Plan) ItemIDs() []uint {
	ids := make([]uint, 0, len(p.Totals))
	for id := range p.Totals {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Engine durumsuzdur; çağrılar arasında paylaşılan değişken veri tutmaz.
type Engine struct {
	resolver *bom.Resolver
}

func NewEngine(resolver *bom.Resolver) *Engine {
	return &Engine{resolver: resolver}
}

func (e *Engine) Resolver() *bom.Resolver {
	return e.resolver
}

// Plan: BOM'u tx üzerinden çözümler ve ihtiyaçları toplar. Döngü varsa hata.
func (e *Engine) Plan(ctx context.Context, tx *gorm.DB, producedItemID uint, quantity decimal.Decimal) (*Plan, error) {
	nodes, err := e.resolver.Resolve(ctx, bom.NewStore(tx), producedItemID)
	if err != nil {
		return nil, err
	}

	plan := &Plan{
		ProducedItemID: producedItemID,
		Quantity:       quantity,
		Nodes:          nodes,
		Leaves:         make([]bom.ResolvedNode, 0, len(nodes)),
		Totals:         make(map[uint]decimal.Decimal, len(nodes)),
	}
	for _, n := range nodes {
		if !n.Leaf {
			continue
		}
		plan.Leaves = append(plan.Leaves, n)
		plan.Totals[n.ItemID] = plan.Totals[n.ItemID].Add(plan.Consumption(n))
	}
	return plan, nil
}

// Deduct: Çözümle, kilitle, tüm seviyeleri kontrol et, yol bazında düş ve logla.
// Herhangi bir hata durumunda çağıran transaction'ı geri almalıdır.
func (e *Engine) Deduct(ctx context.Context, s *ledger.Session, producedItemID uint, quantity decimal.Decimal, transactionID uint) ([]DeductionResult, error) {
	plan, err := e.Plan(ctx, s.Tx(), producedItemID, quantity)
	if err != nil {
		return nil, err
	}
	return e.Apply(ctx, s, plan, transactionID)
}

// Apply: Önce tüm eksikler toplanır, hiç eksik yoksa düşüm başlar.
func (e *Engine) Apply(ctx context.Context, s *ledger.Session, plan *Plan, transactionID uint) ([]DeductionResult, error) {
	results := make([]DeductionResult, 0, len(plan.Leaves))
	if len(plan.Leaves) == 0 {
		return results, nil
	}

	ids := plan.ItemIDs()
	if err := s.Lock(ids...); err != nil {
		return nil, err
	}

	var shortages []apperror.Shortage
	for _, id := range ids {
		item, err := s.Item(id)
		if err != nil {
			return nil, err
		}
		required := plan.Totals[id]
		if item.CurrentStock.LessThan(required) {
			shortages = append(shortages, apperror.Shortage{
				ItemID:    item.ID,
				ItemCode:  item.ItemCode,
				ItemName:  item.ItemName,
				Unit:      item.Unit,
				Required:  required,
				Available: item.CurrentStock,
				Shortage:  required.Sub(item.CurrentStock),
			})
		}
	}
	if len(shortages) > 0 {
		return nil, &apperror.InsufficientStockError{Shortages: shortages}
	}

	logger := config.GetLogger()
	tx := s.Tx().WithContext(ctx)
	for _, n := range plan.Leaves {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		parentQty := models.RoundConsumption(n.ParentPerUnit.Mul(plan.Quantity))
		deducted := plan.Consumption(n)
		before, after, err := s.Decrease(n.ItemID, deducted)
		if err != nil {
			return nil, err
		}

		entry := models.BOMDeductionLog{
			TransactionID:    transactionID,
			ParentItemID:     n.PathParentID,
			ChildItemID:      n.ItemID,
			BOMLevel:         n.Depth,
			ParentQuantity:   parentQty,
			QuantityRequired: n.EdgeQuantity,
			DeductedQuantity: deducted,
			UsageRate:        n.EdgeQuantity,
			StockBefore:      before,
			StockAfter:       after,
		}
		if err := tx.Omit(clause.Associations).Create(&entry).Error; err != nil {
			return nil, apperror.FromDB(err)
		}

		item, err := s.Item(n.ItemID)
		if err != nil {
			return nil, err
		}
		results = append(results, DeductionResult{
			LogID:            entry.ID,
			ChildItemID:      n.ItemID,
			ParentItemID:     n.PathParentID,
			ItemCode:         item.ItemCode,
			ItemName:         item.ItemName,
			Unit:             item.Unit,
			DeductedQuantity: deducted,
			UsageRate:        n.EdgeQuantity,
			StockBefore:      before,
			StockAfter:       after,
			BOMLevel:         n.Depth,
		})

		logger.WithFields(logrus.Fields{
			"transaction_id": transactionID,
			"item_id":        n.ItemID,
			"parent_item_id": n.PathParentID,
			"deducted":       deducted.String(),
			"stock_after":    after.String(),
		}).Debug("BOM düşümü")
	}
	return results, nil
}
