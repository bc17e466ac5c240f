package production

import (
	"errors"
	"fmt"
	"time"

	"imalat-backend/internal/apperror"
	"imalat-backend/internal/auth"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

// POST /api/inventory/production
func CreateHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateRequest
		if err := c.BodyParser(&body); err != nil {
			return apperror.NewValidation("Geçersiz istek gövdesi: %v", err)
		}
		// Gövdede yoksa token sahibi
		if body.CreatedBy == 0 {
			body.CreatedBy = auth.CurrentUserID(c)
		}

		result, err := svc.Create(c.UserContext(), body)
		if err != nil {
			return err
		}

		return c.JSON(fiber.Map{
			"success": true,
			"message": fmt.Sprintf("Üretim kaydedildi, %d malzeme otomatik düşüldü", len(result.AutoDeductions)),
			"data":    result,
		})
	}
}

// POST /api/inventory/production/batch
func BatchHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body BatchRequest
		if err := c.BodyParser(&body); err != nil {
			return apperror.NewValidation("Geçersiz istek gövdesi: %v", err)
		}
		if body.CreatedBy == 0 {
			body.CreatedBy = auth.CurrentUserID(c)
		}

		results, err := svc.CreateBatch(c.UserContext(), body)
		if err != nil {
			return err
		}

		total := 0
		for _, r := range results {
			total += len(r.AutoDeductions)
		}
		return c.JSON(fiber.Map{
			"success": true,
			"message": fmt.Sprintf("%d üretim kaydedildi, %d malzeme otomatik düşüldü", len(results), total),
			"data":    fiber.Map{"transactions": results},
		})
	}
}

// GET /api/inventory/production/bom-check?product_item_id=1&quantity=10
func CheckHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.QueryInt("product_item_id")
		if id <= 0 {
			return apperror.NewFieldValidation(map[string]string{"product_item_id": "required"})
		}
		qty := decimal.NewFromInt(1)
		if raw := c.Query("quantity"); raw != "" {
			var err error
			if qty, err = decimal.NewFromString(raw); err != nil {
				return apperror.NewFieldValidation(map[string]string{"quantity": "numeric"})
			}
		}

		result, err := svc.Check(c.UserContext(), uint(id), qty)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"success": true, "data": result})
	}
}

// GET /api/inventory/production?item_id=1&from=2025-01-01&to=2025-01-31&limit=50
func ListHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		f := HistoryFilter{
			ItemID: uint(c.QueryInt("item_id")),
			Limit:  c.QueryInt("limit", 100),
		}
		if raw := c.Query("from"); raw != "" {
			t, err := time.Parse("2006-01-02", raw)
			if err != nil {
				return apperror.NewFieldValidation(map[string]string{"from": "date"})
			}
			f.From = &t
		}
		if raw := c.Query("to"); raw != "" {
			t, err := time.Parse("2006-01-02", raw)
			if err != nil {
				return apperror.NewFieldValidation(map[string]string{"to": "date"})
			}
			// Gün sonu dahil
			end := t.Add(24*time.Hour - time.Nanosecond)
			f.To = &end
		}

		lines, err := svc.List(c.UserContext(), f)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"success": true, "data": lines})
	}
}

// GET /api/inventory/production/:id
func GetHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return apperror.NewValidation("Geçersiz üretim kaydı ID")
		}

		detail, err := svc.Get(c.UserContext(), uint(id))
		if errors.Is(err, ErrTransactionNotFound) {
			return fiber.NewError(fiber.StatusNotFound, err.Error())
		}
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"success": true, "data": detail})
	}
}
