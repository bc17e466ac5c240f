// Package bom: BOM ağacının çözümlenmesi, döngü kontrolü ve BOM master uçları.
package bom

import (
	"context"

	"imalat-backend/internal/apperror"
	"imalat-backend/internal/models"

	"github.com/shopspring/decimal"
)

const DefaultMaxDepth = 20

// ResolvedNode: Kökten bir yol üzerinden ulaşılan tek bir alt kalem.
// Aynı kalem farklı yollardan gelirse (elmas yapı) her yol ayrı bir düğümdür.
type ResolvedNode struct {
	ItemID uint `json:"item_id"`
	// Kökün 1 birimi için bu yoldan gereken miktar
	PerUnitQuantity decimal.Decimal `json:"per_unit_quantity"`
	// Üst kalemin kökün 1 birimi başına miktarı
	ParentPerUnit decimal.Decimal `json:"parent_per_unit"`
	Depth         int             `json:"depth"`
	PathParentID  uint            `json:"path_parent_id"`
	EdgeQuantity  decimal.Decimal `json:"edge_quantity"`
	BOMID         uint            `json:"bom_id"`
	// Kökten bu kaleme kadar item id'leri (kök dahil)
	Path []uint `json:"path"`
	// Aktif alt satırı yoksa hammadde; sadece bunlar stoktan düşülür
	Leaf bool `json:"leaf"`
}

// Resolver durumsuzdur, aynı anda birden çok goroutine kullanabilir.
type Resolver struct {
	maxDepth int
}

func NewResolver(maxDepth int) *Resolver {
	if maxDepth < 1 {
		maxDepth = DefaultMaxDepth
	}
	return &Resolver{maxDepth: maxDepth}
}

func (r *Resolver) MaxDepth() int {
	return r.maxDepth
}

type frame struct {
	itemID  uint
	perUnit decimal.Decimal
	depth   int
	edges   []models.BOMEdge
	next    int
}

// Resolve: Kökten başlayarak aktif BOM satırlarını derinlik öncelikli gezer.
// Kök listeye girmez. Döngü ya da derinlik aşımında kısmi liste dönmez.
func (r *Resolver) Resolve(ctx context.Context, src EdgeSource, rootID uint) ([]ResolvedNode, error) {
	children := make(map[uint][]models.BOMEdge)
	load := func(id uint) ([]models.BOMEdge, error) {
		if edges, ok := children[id]; ok {
			return edges, nil
		}
		edges, err := src.ActiveChildren(ctx, id)
		if err != nil {
			return nil, err
		}
		children[id] = edges
		return edges, nil
	}

	rootEdges, err := load(rootID)
	if err != nil {
		return nil, err
	}

	nodes := make([]ResolvedNode, 0, len(rootEdges))
	stack := []*frame{{itemID: rootID, perUnit: decimal.NewFromInt(1), edges: rootEdges}}
	onPath := map[uint]bool{rootID: true}

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		top := stack[len(stack)-1]
		if top.next >= len(top.edges) {
			delete(onPath, top.itemID)
			stack = stack[:len(stack)-1]
			continue
		}
		edge := top.edges[top.next]
		top.next++

		path := make([]uint, 0, len(stack)+1)
		for _, f := range stack {
			path = append(path, f.itemID)
		}
		path = append(path, edge.ChildItemID)

		if onPath[edge.ChildItemID] {
			return nil, &apperror.CircularReferenceError{ItemID: edge.ChildItemID, Path: path}
		}
		depth := top.depth + 1
		if depth > r.maxDepth {
			return nil, &apperror.CircularReferenceError{ItemID: edge.ChildItemID, Path: path, MaxDepth: r.maxDepth}
		}

		perUnit := top.perUnit.Mul(edge.QuantityRequired)
		nodes = append(nodes, ResolvedNode{
			ItemID:          edge.ChildItemID,
			PerUnitQuantity: perUnit,
			ParentPerUnit:   top.perUnit,
			Depth:           depth,
			PathParentID:    top.itemID,
			EdgeQuantity:    edge.QuantityRequired,
			BOMID:           edge.ID,
			Path:            path,
		})

		grandChildren, err := load(edge.ChildItemID)
		if err != nil {
			return nil, err
		}
		nodes[len(nodes)-1].Leaf = len(grandChildren) == 0
		if len(grandChildren) > 0 {
			stack = append(stack, &frame{
				itemID:  edge.ChildItemID,
				perUnit: perUnit,
				depth:   depth,
				edges:   grandChildren,
			})
			onPath[edge.ChildItemID] = true
		}
	}

	return nodes, nil
}

// DistinctItems: Düğümlerdeki kalemler, ilk görülme sırasıyla.
func DistinctItems(nodes []ResolvedNode) []uint {
	seen := make(map[uint]bool, len(nodes))
	ids := make([]uint, 0, len(nodes))
	for _, n := range nodes {
		if !seen[n.ItemID] {
			seen[n.ItemID] = true
			ids = append(ids, n.ItemID)
		}
	}
	return ids
}
