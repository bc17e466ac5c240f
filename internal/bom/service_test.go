package bom

import (
	"context"
	"errors"
	"testing"

	"imalat-backend/internal/apperror"
	"imalat-backend/internal/audit"
	"imalat-backend/internal/models"
	"imalat-backend/internal/testutil"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func createEdge(db *gorm.DB, req CreateEdgeRequest) (*models.BOMEdge, error) {
	var edge *models.BOMEdge
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		edge, err = CreateEdge(context.Background(), tx, req, 1)
		return err
	})
	return edge, err
}

func TestCreateEdgeWritesAuditLog(t *testing.T) {
	db := testutil.SetupTestDB(t)
	p := testutil.CreateItem(t, db, "P", "0")
	c := testutil.CreateItem(t, db, "C", "0")

	edge, err := createEdge(db, CreateEdgeRequest{ParentItemID: p.ID, ChildItemID: c.ID, QuantityRequired: dec("2.5")})
	require.NoError(t, err)
	assert.Equal(t, 1, edge.LevelNo)
	assert.True(t, edge.IsActive)

	var logs []models.AuditLog
	require.NoError(t, db.Where("entity_type = ?", audit.EntityBOMEdge).Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Equal(t, edge.ID, logs[0].EntityID)
	assert.Equal(t, models.AuditActionCreate, logs[0].Action)
}

func TestCreateEdgeRules(t *testing.T) {
	db := testutil.SetupTestDB(t)
	p := testutil.CreateItem(t, db, "P", "0")
	a := testutil.CreateItem(t, db, "A", "0")
	x := testutil.CreateItem(t, db, "X", "0")
	off := testutil.CreateItem(t, db, "OFF", "0")
	testutil.DeactivateItem(t, db, off)
	testutil.CreateEdge(t, db, p, a, "1")
	testutil.CreateEdge(t, db, a, x, "1")

	cases := []struct {
		name string
		req  CreateEdgeRequest
		code apperror.Code
	}{
		{"zero quantity", CreateEdgeRequest{ParentItemID: p.ID, ChildItemID: x.ID, QuantityRequired: decimal.Zero}, apperror.CodeValidation},
		{"negative quantity", CreateEdgeRequest{ParentItemID: p.ID, ChildItemID: x.ID, QuantityRequired: dec("-1")}, apperror.CodeValidation},
		{"self reference", CreateEdgeRequest{ParentItemID: p.ID, ChildItemID: p.ID, QuantityRequired: dec("1")}, apperror.CodeValidation},
		{"unknown child", CreateEdgeRequest{ParentItemID: p.ID, ChildItemID: 999, QuantityRequired: dec("1")}, apperror.CodeUnknownItem},
		{"inactive child", CreateEdgeRequest{ParentItemID: p.ID, ChildItemID: off.ID, QuantityRequired: dec("1")}, apperror.CodeValidation},
		{"duplicate pair", CreateEdgeRequest{ParentItemID: p.ID, ChildItemID: a.ID, QuantityRequired: dec("3")}, apperror.CodeValidation},
		{"closes cycle", CreateEdgeRequest{ParentItemID: x.ID, ChildItemID: p.ID, QuantityRequired: dec("1")}, apperror.CodeCircularReference},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := createEdge(db, tc.req)
			require.Error(t, err)
			assert.Equal(t, tc.code, apperror.CodeOf(err))
		})
	}

	var count int64
	db.Model(&models.BOMEdge{}).Count(&count)
	assert.Equal(t, int64(2), count)
}

func TestReactivationIsCycleChecked(t *testing.T) {
	db := testutil.SetupTestDB(t)
	a := testutil.CreateItem(t, db, "A", "0")
	b := testutil.CreateItem(t, db, "B", "0")
	back := testutil.CreateEdge(t, db, b, a, "1")

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return DeactivateEdge(context.Background(), tx, back.ID, 1)
	}))
	testutil.CreateEdge(t, db, a, b, "1")

	active := true
	err := db.Transaction(func(tx *gorm.DB) error {
		_, err := UpdateEdge(context.Background(), tx, back.ID, UpdateEdgeRequest{IsActive: &active}, 1)
		return err
	})
	assert.Equal(t, apperror.CodeCircularReference, apperror.CodeOf(err))

	var reloaded models.BOMEdge
	require.NoError(t, db.First(&reloaded, back.ID).Error)
	assert.False(t, reloaded.IsActive)
}

func TestUpdateEdgeQuantity(t *testing.T) {
	db := testutil.SetupTestDB(t)
	a := testutil.CreateItem(t, db, "A", "0")
	b := testutil.CreateItem(t, db, "B", "0")
	edge := testutil.CreateEdge(t, db, a, b, "1")

	qty := dec("4.25")
	err := db.Transaction(func(tx *gorm.DB) error {
		_, err := UpdateEdge(context.Background(), tx, edge.ID, UpdateEdgeRequest{QuantityRequired: &qty}, 1)
		return err
	})
	require.NoError(t, err)

	var reloaded models.BOMEdge
	require.NoError(t, db.First(&reloaded, edge.ID).Error)
	assert.True(t, reloaded.QuantityRequired.Equal(qty))

	zero := decimal.Zero
	err = db.Transaction(func(tx *gorm.DB) error {
		_, err := UpdateEdge(context.Background(), tx, edge.ID, UpdateEdgeRequest{QuantityRequired: &zero}, 1)
		return err
	})
	assert.Equal(t, apperror.CodeValidation, apperror.CodeOf(err))

	err = db.Transaction(func(tx *gorm.DB) error {
		_, err := UpdateEdge(context.Background(), tx, 999, UpdateEdgeRequest{}, 1)
		return err
	})
	assert.True(t, errors.Is(err, ErrEdgeNotFound))
}

func TestStoreSkipsInactiveEdges(t *testing.T) {
	db := testutil.SetupTestDB(t)
	p := testutil.CreateItem(t, db, "P", "0")
	a := testutil.CreateItem(t, db, "A", "0")
	b := testutil.CreateItem(t, db, "B", "0")
	testutil.CreateEdge(t, db, p, a, "1")
	off := testutil.CreateEdge(t, db, p, b, "1")
	require.NoError(t, db.Model(off).Update("is_active", false).Error)

	nodes, err := NewResolver(0).Resolve(context.Background(), NewStore(db), p.ID)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, a.ID, nodes[0].ItemID)
}

func TestExplodeAndWhereUsed(t *testing.T) {
	db := testutil.SetupTestDB(t)
	p := testutil.CreateItem(t, db, "P", "0")
	a := testutil.CreateItem(t, db, "A", "0")
	b := testutil.CreateItem(t, db, "B", "0")
	x := testutil.CreateItem(t, db, "X", "40")
	testutil.CreateEdge(t, db, p, a, "2")
	testutil.CreateEdge(t, db, p, b, "1")
	testutil.CreateEdge(t, db, a, x, "3")
	testutil.CreateEdge(t, db, b, x, "5")

	exp, err := Explode(context.Background(), db, NewResolver(0), p.ID, dec("10"))
	require.NoError(t, err)
	require.Len(t, exp.Lines, 4)
	assert.Equal(t, "P > A > X", exp.Lines[1].Path)
	assert.True(t, exp.Lines[1].RequiredQuantity.Equal(dec("60")))
	assert.Equal(t, 3, exp.Summary.TotalItems)
	assert.Equal(t, 4, exp.Summary.TotalPaths)
	assert.Equal(t, 2, exp.Summary.MaxLevel)

	wu, err := FindWhereUsed(context.Background(), db, x.ID, DefaultMaxDepth)
	require.NoError(t, err)
	assert.Equal(t, 2, wu.Summary.DirectParents)
	assert.Equal(t, 3, wu.Summary.TotalAncestors)
	assert.Equal(t, 2, wu.Summary.MaxLevel)

	var paths []string
	for _, l := range wu.Lines {
		paths = append(paths, l.UsagePath)
	}
	assert.ElementsMatch(t, []string{"A > X", "B > X", "P > A > X", "P > B > X"}, paths)

	_, err = Explode(context.Background(), db, NewResolver(0), 999, dec("1"))
	assert.Equal(t, apperror.CodeUnknownItem, apperror.CodeOf(err))
}
