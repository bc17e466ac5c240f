package ledger

import (
	"fmt"
	"strings"

	"imalat-backend/internal/apperror"
	"imalat-backend/internal/auth"
	"imalat-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// GET /api/items?q=civata
func ListItemsHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		dbq := db.Model(&models.Item{})

		if q := strings.TrimSpace(c.Query("q")); q != "" {
			like := "%" + strings.ToLower(q) + "%"
			dbq = dbq.Where("LOWER(item_code) LIKE ? OR LOWER(item_name) LIKE ?", like, like)
		}
		if c.Query("include_inactive") != "true" {
			dbq = dbq.Where("is_active = ?", true)
		}

		var items []models.Item
		if err := dbq.Order("item_code asc").Find(&items).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Kalemler listelenemedi")
		}
		return c.JSON(items)
	}
}

// GET /api/items/:id
func GetItemHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz kalem ID")
		}

		var item models.Item
		if err := db.First(&item, "id = ?", id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Kalem bulunamadı")
		}
		return c.JSON(item)
	}
}

// POST /api/inventory/transactions
// Giriş (RECEIPT), çıkış (SHIPMENT), fire (SCRAP) veya sayım (STOCK_COUNT)
func CreateMovementHandler(db *gorm.DB, locker Locker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body MovementRequest
		if err := c.BodyParser(&body); err != nil {
			return apperror.NewValidation("Geçersiz istek gövdesi: %v", err)
		}
		if body.CreatedBy == 0 {
			body.CreatedBy = auth.CurrentUserID(c)
		}

		result, err := RecordMovement(c.UserContext(), db, locker, body)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{
			"success": true,
			"message": fmt.Sprintf("Stok hareketi kaydedildi, yeni stok: %s", result.StockAfter.String()),
			"data":    result,
		})
	}
}

// GET /api/inventory/transactions?item_id=1&type=RECEIPT&limit=50
func ListMovementsHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		txns, err := ListMovements(c.UserContext(), db, MovementFilter{
			ItemID: uint(c.QueryInt("item_id")),
			Type:   models.TransactionType(strings.ToUpper(c.Query("type"))),
			Limit:  c.QueryInt("limit", 100),
		})
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"success": true, "data": txns})
	}
}
