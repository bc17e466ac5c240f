package bom

import (
	"context"
	"errors"
	"testing"

	"imalat-backend/internal/apperror"
	"imalat-backend/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memSource: Bellek içi EdgeSource, satırlar eklenme sırasıyla id alır.
type memSource struct {
	edges []models.BOMEdge
	calls int
}

func (m *memSource) add(parent, child uint, qty string) *memSource {
	m.edges = append(m.edges, models.BOMEdge{
		ID:               uint(len(m.edges) + 1),
		ParentItemID:     parent,
		ChildItemID:      child,
		QuantityRequired: decimal.RequireFromString(qty),
		IsActive:         true,
	})
	return m
}

func (m *memSource) ActiveChildren(_ context.Context, parentID uint) ([]models.BOMEdge, error) {
	m.calls++
	var out []models.BOMEdge
	for _, e := range m.edges {
		if e.ParentItemID == parentID && e.IsActive {
			out = append(out, e)
		}
	}
	return out, nil
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestResolveTwoChildren(t *testing.T) {
	src := (&memSource{}).add(1, 2, "2.0").add(1, 3, "1.5")

	nodes, err := NewResolver(0).Resolve(context.Background(), src, 1)
	require.NoError(t, err)
	require.Len(t, nodes, 2)

	assert.Equal(t, uint(2), nodes[0].ItemID)
	assert.True(t, nodes[0].PerUnitQuantity.Equal(dec("2")))
	assert.Equal(t, 1, nodes[0].Depth)
	assert.Equal(t, uint(1), nodes[0].PathParentID)

	assert.Equal(t, uint(3), nodes[1].ItemID)
	assert.True(t, nodes[1].PerUnitQuantity.Equal(dec("1.5")))
	assert.True(t, nodes[0].Leaf)
	assert.True(t, nodes[1].Leaf)
}

func TestResolveThreeLevelChain(t *testing.T) {
	// A -2-> B -3-> C -4-> D
	src := (&memSource{}).add(1, 2, "2").add(2, 3, "3").add(3, 4, "4")

	nodes, err := NewResolver(0).Resolve(context.Background(), src, 1)
	require.NoError(t, err)
	require.Len(t, nodes, 3)

	leaf := nodes[2]
	assert.Equal(t, uint(4), leaf.ItemID)
	assert.Equal(t, 3, leaf.Depth)
	assert.Equal(t, uint(3), leaf.PathParentID)
	assert.True(t, leaf.PerUnitQuantity.Equal(dec("24")))
	assert.True(t, leaf.ParentPerUnit.Equal(dec("6")))
	assert.Equal(t, []uint{1, 2, 3, 4}, leaf.Path)
	assert.True(t, leaf.Leaf)
	assert.False(t, nodes[0].Leaf)
	assert.False(t, nodes[1].Leaf)
}

func TestResolveDiamondKeepsEveryPath(t *testing.T) {
	// P -> A(2) -> X(3), P -> B(1) -> X(5)
	src := (&memSource{}).add(10, 11, "2").add(10, 12, "1").add(11, 20, "3").add(12, 20, "5")

	nodes, err := NewResolver(0).Resolve(context.Background(), src, 10)
	require.NoError(t, err)

	var ids []uint
	for _, n := range nodes {
		ids = append(ids, n.ItemID)
	}
	// DFS sırası: A, A>X, B, B>X
	assert.Equal(t, []uint{11, 20, 12, 20}, ids)
	assert.Equal(t, uint(11), nodes[1].PathParentID)
	assert.True(t, nodes[1].PerUnitQuantity.Equal(dec("6")))
	assert.Equal(t, uint(12), nodes[3].PathParentID)
	assert.True(t, nodes[3].PerUnitQuantity.Equal(dec("5")))
	assert.Equal(t, []uint{11, 20, 12}, DistinctItems(nodes))
}

func TestResolveNoChildren(t *testing.T) {
	nodes, err := NewResolver(0).Resolve(context.Background(), &memSource{}, 1)
	require.NoError(t, err)
	assert.Empty(t, nodes)
}

func TestResolveDetectsCycle(t *testing.T) {
	// 1 -> 2 -> 3 -> 2
	src := (&memSource{}).add(1, 2, "1").add(2, 3, "1").add(3, 2, "1")

	nodes, err := NewResolver(0).Resolve(context.Background(), src, 1)
	assert.Nil(t, nodes)

	var circ *apperror.CircularReferenceError
	require.True(t, errors.As(err, &circ))
	assert.Equal(t, uint(2), circ.ItemID)
	assert.Equal(t, []uint{1, 2, 3, 2}, circ.Path)
	assert.Zero(t, circ.MaxDepth)
}

func TestResolveCycleBackToRoot(t *testing.T) {
	src := (&memSource{}).add(1, 2, "1").add(2, 1, "1")

	_, err := NewResolver(0).Resolve(context.Background(), src, 1)
	var circ *apperror.CircularReferenceError
	require.True(t, errors.As(err, &circ))
	assert.Equal(t, uint(1), circ.ItemID)
}

func TestResolveDepthLimit(t *testing.T) {
	src := &memSource{}
	for i := uint(1); i <= 5; i++ {
		src.add(i, i+1, "1")
	}

	_, err := NewResolver(5).Resolve(context.Background(), src, 1)
	require.NoError(t, err)

	_, err = NewResolver(4).Resolve(context.Background(), src, 1)
	var circ *apperror.CircularReferenceError
	require.True(t, errors.As(err, &circ))
	assert.Equal(t, 4, circ.MaxDepth)
	assert.Equal(t, apperror.CodeCircularReference, apperror.CodeOf(err))
}

func TestResolveIsDeterministic(t *testing.T) {
	src := (&memSource{}).add(1, 5, "1").add(1, 3, "1").add(3, 4, "2").add(1, 2, "1")
	r := NewResolver(0)

	first, err := r.Resolve(context.Background(), src, 1)
	require.NoError(t, err)
	second, err := r.Resolve(context.Background(), src, 1)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	var bomIDs []uint
	for _, n := range first {
		bomIDs = append(bomIDs, n.BOMID)
	}
	assert.Equal(t, []uint{1, 2, 3, 4}, bomIDs)
}

func TestResolveLoadsEachItemOnce(t *testing.T) {
	src := (&memSource{}).add(10, 11, "2").add(10, 12, "1").add(11, 20, "3").add(12, 20, "5")

	_, err := NewResolver(0).Resolve(context.Background(), src, 10)
	require.NoError(t, err)
	assert.Equal(t, 4, src.calls)
}

func TestResolveHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewResolver(0).Resolve(ctx, (&memSource{}).add(1, 2, "1"), 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCheckNewEdge(t *testing.T) {
	// 1 -> 2 -> 3
	src := (&memSource{}).add(1, 2, "1").add(2, 3, "1")
	ctx := context.Background()

	assert.NoError(t, CheckNewEdge(ctx, src, 1, 3))
	assert.NoError(t, CheckNewEdge(ctx, src, 4, 1))

	err := CheckNewEdge(ctx, src, 3, 1)
	var circ *apperror.CircularReferenceError
	require.True(t, errors.As(err, &circ))
	assert.Equal(t, []uint{3, 1, 2, 3}, circ.Path)

	err = CheckNewEdge(ctx, src, 2, 2)
	require.True(t, errors.As(err, &circ))
}
