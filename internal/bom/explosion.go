package bom

import (
	"context"
	"strings"

	"imalat-backend/internal/apperror"
	"imalat-backend/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ItemRef struct {
	ItemID   uint   `json:"item_id"`
	ItemCode string `json:"item_code"`
	ItemName string `json:"item_name"`
	Unit     string `json:"unit"`
}

func refOf(item models.Item) ItemRef {
	return ItemRef{ItemID: item.ID, ItemCode: item.ItemCode, ItemName: item.ItemName, Unit: item.Unit}
}

type ExplosionLine struct {
	BOMID            uint            `json:"bom_id"`
	ItemID           uint            `json:"item_id"`
	ItemCode         string          `json:"item_code"`
	ItemName         string          `json:"item_name"`
	Spec             string          `json:"spec"`
	Unit             string          `json:"unit"`
	ParentItemID     uint            `json:"parent_item_id"`
	LevelNo          int             `json:"level_no"`
	QuantityRequired decimal.Decimal `json:"quantity_required"`
	PerUnitQuantity  decimal.Decimal `json:"per_unit_quantity"`
	RequiredQuantity decimal.Decimal `json:"required_quantity"`
	CurrentStock     decimal.Decimal `json:"current_stock"`
	Path             string          `json:"path"`
	Leaf             bool            `json:"leaf"`
}

type ExplosionSummary struct {
	TotalItems int `json:"total_items"`
	TotalPaths int `json:"total_paths"`
	MaxLevel   int `json:"max_level"`
}

type Explosion struct {
	ParentItem ItemRef          `json:"parent_item"`
	Quantity   decimal.Decimal  `json:"quantity"`
	Lines      []ExplosionLine  `json:"explosion"`
	Summary    ExplosionSummary `json:"summary"`
}

// Explode: Kökün quantity birimi için tüm yolları kalem bilgileriyle döner. Stok değiştirmez.
func Explode(ctx context.Context, db *gorm.DB, resolver *Resolver, rootID uint, quantity decimal.Decimal) (*Explosion, error) {
	if !quantity.IsPositive() {
		return nil, apperror.NewFieldValidation(map[string]string{"quantity": "gt"})
	}

	store := NewStore(db)
	roots, err := store.Items(ctx, []uint{rootID})
	if err != nil {
		return nil, err
	}
	root, ok := roots[rootID]
	if !ok {
		return nil, &apperror.UnknownItemError{ItemID: rootID}
	}

	nodes, err := resolver.Resolve(ctx, store, rootID)
	if err != nil {
		return nil, err
	}

	ids := append(DistinctItems(nodes), rootID)
	items, err := store.Items(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := &Explosion{
		ParentItem: refOf(root),
		Quantity:   quantity,
		Lines:      make([]ExplosionLine, 0, len(nodes)),
	}
	for _, n := range nodes {
		item := items[n.ItemID]
		out.Lines = append(out.Lines, ExplosionLine{
			BOMID:            n.BOMID,
			ItemID:           n.ItemID,
			ItemCode:         item.ItemCode,
			ItemName:         item.ItemName,
			Spec:             item.Spec,
			Unit:             item.Unit,
			ParentItemID:     n.PathParentID,
			LevelNo:          n.Depth,
			QuantityRequired: n.EdgeQuantity,
			PerUnitQuantity:  n.PerUnitQuantity,
			RequiredQuantity: models.RoundConsumption(n.PerUnitQuantity.Mul(quantity)),
			CurrentStock:     item.CurrentStock,
			Path:             pathCodes(n.Path, items),
			Leaf:             n.Leaf,
		})
		if n.Depth > out.Summary.MaxLevel {
			out.Summary.MaxLevel = n.Depth
		}
	}
	out.Summary.TotalItems = len(DistinctItems(nodes))
	out.Summary.TotalPaths = len(nodes)
	return out, nil
}

func pathCodes(path []uint, items map[uint]models.Item) string {
	codes := make([]string, 0, len(path))
	for _, id := range path {
		codes = append(codes, items[id].ItemCode)
	}
	return strings.Join(codes, " > ")
}

type WhereUsedLine struct {
	BOMID              uint            `json:"bom_id"`
	ParentItemID       uint            `json:"parent_item_id"`
	ParentItemCode     string          `json:"parent_item_code"`
	ParentItemName     string          `json:"parent_item_name"`
	QuantityRequired   decimal.Decimal `json:"quantity_required"`
	CumulativeQuantity decimal.Decimal `json:"cumulative_quantity"`
	LevelNo            int             `json:"level_no"`
	UsagePath          string          `json:"usage_path"`
}

type WhereUsedSummary struct {
	DirectParents  int `json:"direct_parents"`
	TotalAncestors int `json:"total_ancestors"`
	MaxLevel       int `json:"max_level"`
}

type WhereUsed struct {
	ChildItem ItemRef          `json:"child_item"`
	Lines     []WhereUsedLine  `json:"where_used"`
	Summary   WhereUsedSummary `json:"summary"`
}

type upFrame struct {
	itemID     uint
	level      int
	cumulative decimal.Decimal
	// Bu kalemden çocuğa kadar kodlar ("A > B > çocuk")
	trail string
	// Yol üzerindeki kalemler, döngüde sonsuz gezmemek için
	seen map[uint]bool
}

// FindWhereUsed: Kalemi kullanan tüm üst kalemleri köklere kadar çıkar.
func FindWhereUsed(ctx context.Context, db *gorm.DB, childID uint, maxDepth int) (*WhereUsed, error) {
	store := NewStore(db)
	found, err := store.Items(ctx, []uint{childID})
	if err != nil {
		return nil, err
	}
	child, ok := found[childID]
	if !ok {
		return nil, &apperror.UnknownItemError{ItemID: childID}
	}

	out := &WhereUsed{ChildItem: refOf(child), Lines: []WhereUsedLine{}}
	ancestors := make(map[uint]bool)
	stack := []upFrame{{
		itemID:     childID,
		cumulative: decimal.NewFromInt(1),
		trail:      child.ItemCode,
		seen:       map[uint]bool{childID: true},
	}}

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if top.level >= maxDepth {
			continue
		}

		parents, err := store.ActiveParents(ctx, top.itemID)
		if err != nil {
			return nil, err
		}
		// Ters sırayla yığına at ki bom_id sırasıyla çıksın
		lines := make([]upFrame, 0, len(parents))
		for _, e := range parents {
			if top.seen[e.ParentItemID] {
				continue
			}
			level := top.level + 1
			cumulative := top.cumulative.Mul(e.QuantityRequired)
			trail := e.ParentItem.ItemCode + " > " + top.trail

			out.Lines = append(out.Lines, WhereUsedLine{
				BOMID:              e.ID,
				ParentItemID:       e.ParentItemID,
				ParentItemCode:     e.ParentItem.ItemCode,
				ParentItemName:     e.ParentItem.ItemName,
				QuantityRequired:   e.QuantityRequired,
				CumulativeQuantity: cumulative,
				LevelNo:            level,
				UsagePath:          trail,
			})
			ancestors[e.ParentItemID] = true
			if level == 1 {
				out.Summary.DirectParents++
			}
			if level > out.Summary.MaxLevel {
				out.Summary.MaxLevel = level
			}

			seen := make(map[uint]bool, len(top.seen)+1)
			for k := range top.seen {
				seen[k] = true
			}
			seen[e.ParentItemID] = true
			lines = append(lines, upFrame{itemID: e.ParentItemID, level: level, cumulative: cumulative, trail: trail, seen: seen})
		}
		for i := len(lines) - 1; i >= 0; i-- {
			stack = append(stack, lines[i])
		}
	}
	out.Summary.TotalAncestors = len(ancestors)
	return out, nil
}
