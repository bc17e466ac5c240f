package production

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"imalat-backend/internal/apperror"
	"imalat-backend/internal/auth"
	"imalat-backend/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Code    apperror.Code   `json:"code"`
	Data    json.RawMessage `json:"data"`
	Details json.RawMessage `json:"details"`
}

func newTestApp(svc *Service, userID uint) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: apperror.FiberErrorHandler})
	app.Use(func(c *fiber.Ctx) error {
		c.Locals(auth.CtxUserIDKey, userID)
		return c.Next()
	})
	app.Post("/production/batch", BatchHandler(svc))
	app.Get("/production/bom-check", CheckHandler(svc))
	app.Post("/production", CreateHandler(svc))
	app.Get("/production", ListHandler(svc))
	app.Get("/production/:id", GetHandler(svc))
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path, body string) (int, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestCreateHandler(t *testing.T) {
	db := testutil.SetupTestDB(t)
	p := testutil.CreateItem(t, db, "P", "0")
	c1 := testutil.CreateItem(t, db, "C1", "100")
	c2 := testutil.CreateItem(t, db, "C2", "50")
	testutil.CreateEdge(t, db, p, c1, "2.0")
	testutil.CreateEdge(t, db, p, c2, "1.5")
	app := newTestApp(newTestService(t, db, Options{}), 7)

	body := fmt.Sprintf(`{"transaction_date":"2025-01-15","item_id":%d,"quantity":10,"transaction_type":"PRODUCTION_RECEIPT"}`, p.ID)
	status, out := doJSON(t, app, http.MethodPost, "/production", body)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, out.Success)

	var result Result
	require.NoError(t, json.Unmarshal(out.Data, &result))
	assert.Equal(t, uint(7), result.Transaction.CreatedBy)
	require.Len(t, result.AutoDeductions, 2)
	assert.Equal(t, "C1", result.AutoDeductions[0].ItemCode)
	assert.True(t, result.AutoDeductions[0].StockAfter.Equal(testutil.Dec("80")))

	// Aynı kayıt GET ile okunur
	status, out = doJSON(t, app, http.MethodGet, fmt.Sprintf("/production/%d", result.Transaction.ID), "")
	require.Equal(t, http.StatusOK, status)
	var detail Detail
	require.NoError(t, json.Unmarshal(out.Data, &detail))
	require.Len(t, detail.AutoDeductions, 2)
	assert.Equal(t, result.AutoDeductions[1].LogID, detail.AutoDeductions[1].LogID)

	// İkinci üretim yetersiz stok
	body = fmt.Sprintf(`{"transaction_date":"2025-01-16","item_id":%d,"quantity":"50","transaction_type":"PRODUCTION_RECEIPT"}`, p.ID)
	status, out = doJSON(t, app, http.MethodPost, "/production", body)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.False(t, out.Success)
	assert.Equal(t, apperror.CodeInsufficientStock, out.Code)

	var shortages []apperror.Shortage
	require.NoError(t, json.Unmarshal(out.Details, &shortages))
	assert.Len(t, shortages, 2)
	assert.True(t, testutil.StockOf(t, db, c1.ID).Equal(testutil.Dec("80")))
}

func TestCreateHandlerErrors(t *testing.T) {
	db := testutil.SetupTestDB(t)
	p := testutil.CreateItem(t, db, "P", "0")
	app := newTestApp(newTestService(t, db, Options{}), 7)

	tests := []struct {
		name   string
		body   string
		status int
		code   apperror.Code
	}{
		{"malformed json", `{"item_id":`, http.StatusBadRequest, apperror.CodeValidation},
		{"zero quantity", fmt.Sprintf(`{"transaction_date":"2025-01-15","item_id":%d,"quantity":0,"transaction_type":"PRODUCTION_RECEIPT"}`, p.ID), http.StatusBadRequest, apperror.CodeValidation},
		{"wrong type", fmt.Sprintf(`{"transaction_date":"2025-01-15","item_id":%d,"quantity":1,"transaction_type":"SALE"}`, p.ID), http.StatusBadRequest, apperror.CodeValidation},
		{"unknown item", `{"transaction_date":"2025-01-15","item_id":999,"quantity":1,"transaction_type":"PRODUCTION_RECEIPT"}`, http.StatusBadRequest, apperror.CodeUnknownItem},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, out := doJSON(t, app, http.MethodPost, "/production", tt.body)
			assert.Equal(t, tt.status, status)
			assert.False(t, out.Success)
			assert.Equal(t, tt.code, out.Code)
			assert.NotEmpty(t, out.Error)
		})
	}

	status, out := doJSON(t, app, http.MethodGet, "/production/12345", "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, apperror.CodeNotFound, out.Code)
}

func TestCreateHandlerCircularReference(t *testing.T) {
	db := testutil.SetupTestDB(t)
	a := testutil.CreateItem(t, db, "A", "5")
	b := testutil.CreateItem(t, db, "B", "5")
	testutil.CreateEdge(t, db, a, b, "1")
	testutil.CreateEdge(t, db, b, a, "1")
	app := newTestApp(newTestService(t, db, Options{}), 7)

	body := fmt.Sprintf(`{"transaction_date":"2025-01-15","item_id":%d,"quantity":1,"transaction_type":"PRODUCTION_RECEIPT"}`, a.ID)
	status, out := doJSON(t, app, http.MethodPost, "/production", body)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, apperror.CodeCircularReference, out.Code)

	var details struct {
		ItemID uint   `json:"item_id"`
		Path   []uint `json:"path"`
	}
	require.NoError(t, json.Unmarshal(out.Details, &details))
	assert.Equal(t, a.ID, details.ItemID)
	assert.Equal(t, []uint{a.ID, b.ID, a.ID}, details.Path)
}

func TestBatchAndCheckHandlers(t *testing.T) {
	db := testutil.SetupTestDB(t)
	p := testutil.CreateItem(t, db, "P", "0")
	c := testutil.CreateItem(t, db, "C", "9")
	testutil.CreateEdge(t, db, p, c, "3")
	app := newTestApp(newTestService(t, db, Options{}), 7)

	status, out := doJSON(t, app, http.MethodGet, fmt.Sprintf("/production/bom-check?product_item_id=%d&quantity=2", p.ID), "")
	require.Equal(t, http.StatusOK, status)
	var check CheckResult
	require.NoError(t, json.Unmarshal(out.Data, &check))
	assert.True(t, check.Summary.CanProduce)
	assert.True(t, check.Summary.MaxProducibleQuantity.Equal(testutil.Dec("3")))

	status, out = doJSON(t, app, http.MethodGet, "/production/bom-check?quantity=2", "")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, apperror.CodeValidation, out.Code)

	body := fmt.Sprintf(`{"transaction_date":"2025-01-15","items":[{"item_id":%d,"quantity":1},{"item_id":%d,"quantity":2}]}`, p.ID, p.ID)
	status, out = doJSON(t, app, http.MethodPost, "/production/batch", body)
	require.Equal(t, http.StatusOK, status)
	var batch struct {
		Transactions []Result `json:"transactions"`
	}
	require.NoError(t, json.Unmarshal(out.Data, &batch))
	require.Len(t, batch.Transactions, 2)
	assert.True(t, batch.Transactions[1].AutoDeductions[0].StockBefore.Equal(testutil.Dec("6")))
	assert.True(t, testutil.StockOf(t, db, c.ID).Equal(testutil.Dec("0")))

	status, out = doJSON(t, app, http.MethodGet, "/production?from=2025-01-15&to=2025-01-15", "")
	require.Equal(t, http.StatusOK, status)
	var lines []HistoryLine
	require.NoError(t, json.Unmarshal(out.Data, &lines))
	assert.Len(t, lines, 2)

	status, out = doJSON(t, app, http.MethodGet, "/production?from=15-01-2025", "")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, apperror.CodeValidation, out.Code)
}
