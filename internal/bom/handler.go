package bom

import (
	"errors"

	"imalat-backend/internal/apperror"
	"imalat-backend/internal/auth"
	"imalat-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type EdgeResponse struct {
	BOMID            uint            `json:"bom_id"`
	ParentItemID     uint            `json:"parent_item_id"`
	ParentItemCode   string          `json:"parent_item_code"`
	ParentItemName   string          `json:"parent_item_name"`
	ChildItemID      uint            `json:"child_item_id"`
	ChildItemCode    string          `json:"child_item_code"`
	ChildItemName    string          `json:"child_item_name"`
	ChildUnit        string          `json:"child_unit"`
	QuantityRequired decimal.Decimal `json:"quantity_required"`
	LevelNo          int             `json:"level_no"`
	IsActive         bool            `json:"is_active"`
	Notes            string          `json:"notes"`
}

func toEdgeResponse(e models.BOMEdge) EdgeResponse {
	return EdgeResponse{
		BOMID:            e.ID,
		ParentItemID:     e.ParentItemID,
		ParentItemCode:   e.ParentItem.ItemCode,
		ParentItemName:   e.ParentItem.ItemName,
		ChildItemID:      e.ChildItemID,
		ChildItemCode:    e.ChildItem.ItemCode,
		ChildItemName:    e.ChildItem.ItemName,
		ChildUnit:        e.ChildItem.Unit,
		QuantityRequired: e.QuantityRequired,
		LevelNo:          e.LevelNo,
		IsActive:         e.IsActive,
		Notes:            e.Notes,
	}
}

// GET /api/bom?parent_item_id=1&child_item_id=2&level_no=1&include_inactive=true
func ListHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		dbq := db.WithContext(c.UserContext()).Model(&models.BOMEdge{}).
			Preload("ParentItem").
			Preload("ChildItem")

		if id := c.QueryInt("parent_item_id"); id > 0 {
			dbq = dbq.Where("parent_item_id = ?", id)
		}
		if id := c.QueryInt("child_item_id"); id > 0 {
			dbq = dbq.Where("child_item_id = ?", id)
		}
		if lvl := c.QueryInt("level_no"); lvl > 0 {
			dbq = dbq.Where("level_no = ?", lvl)
		}
		if c.Query("include_inactive") != "true" {
			dbq = dbq.Where("is_active = ?", true)
		}

		var edges []models.BOMEdge
		if err := dbq.Order("parent_item_id asc, id asc").Find(&edges).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "BOM listelenemedi")
		}

		res := make([]EdgeResponse, 0, len(edges))
		for _, e := range edges {
			res = append(res, toEdgeResponse(e))
		}
		return c.JSON(fiber.Map{"success": true, "data": res})
	}
}

// POST /api/bom (sadece admin)
func CreateHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateEdgeRequest
		if err := c.BodyParser(&body); err != nil {
			return apperror.NewValidation("Geçersiz istek gövdesi: %v", err)
		}

		tx := db.WithContext(c.UserContext()).Begin()
		if tx.Error != nil {
			return tx.Error
		}
		edge, err := CreateEdge(c.UserContext(), tx, body, auth.CurrentUserID(c))
		if err != nil {
			tx.Rollback()
			return err
		}
		if err := tx.Commit().Error; err != nil {
			return apperror.FromDB(err)
		}

		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"success": true,
			"message": "BOM satırı eklendi",
			"data":    reload(db, edge.ID),
		})
	}
}

// PUT /api/bom/:id (sadece admin)
func UpdateHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return apperror.NewValidation("Geçersiz BOM ID")
		}

		var body UpdateEdgeRequest
		if err := c.BodyParser(&body); err != nil {
			return apperror.NewValidation("Geçersiz istek gövdesi: %v", err)
		}

		tx := db.WithContext(c.UserContext()).Begin()
		if tx.Error != nil {
			return tx.Error
		}
		if _, err := UpdateEdge(c.UserContext(), tx, uint(id), body, auth.CurrentUserID(c)); err != nil {
			tx.Rollback()
			if errors.Is(err, ErrEdgeNotFound) {
				return fiber.NewError(fiber.StatusNotFound, err.Error())
			}
			return err
		}
		if err := tx.Commit().Error; err != nil {
			return apperror.FromDB(err)
		}

		return c.JSON(fiber.Map{
			"success": true,
			"message": "BOM satırı güncellendi",
			"data":    reload(db, uint(id)),
		})
	}
}

// DELETE /api/bom/:id (sadece admin, pasife alır)
func DeleteHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return apperror.NewValidation("Geçersiz BOM ID")
		}

		tx := db.WithContext(c.UserContext()).Begin()
		if tx.Error != nil {
			return tx.Error
		}
		if err := DeactivateEdge(c.UserContext(), tx, uint(id), auth.CurrentUserID(c)); err != nil {
			tx.Rollback()
			if errors.Is(err, ErrEdgeNotFound) {
				return fiber.NewError(fiber.StatusNotFound, err.Error())
			}
			return err
		}
		if err := tx.Commit().Error; err != nil {
			return apperror.FromDB(err)
		}

		return c.JSON(fiber.Map{"success": true, "message": "BOM satırı pasife alındı"})
	}
}

func reload(db *gorm.DB, id uint) EdgeResponse {
	var edge models.BOMEdge
	db.Preload("ParentItem").Preload("ChildItem").First(&edge, id)
	return toEdgeResponse(edge)
}

// GET /api/bom/explosion/:parent_item_id?quantity=10
func ExplosionHandler(db *gorm.DB, resolver *Resolver) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("parent_item_id")
		if err != nil || id <= 0 {
			return apperror.NewValidation("Geçersiz üst kalem ID")
		}
		qty, err := quantityQuery(c)
		if err != nil {
			return err
		}

		exp, err := Explode(c.UserContext(), db, resolver, uint(id), qty)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"success": true, "data": exp})
	}
}

// GET /api/bom/where-used/:child_item_id
func WhereUsedHandler(db *gorm.DB, resolver *Resolver) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("child_item_id")
		if err != nil || id <= 0 {
			return apperror.NewValidation("Geçersiz alt kalem ID")
		}

		wu, err := FindWhereUsed(c.UserContext(), db, uint(id), resolver.MaxDepth())
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"success": true, "data": wu})
	}
}

// quantityQuery: ?quantity= yoksa 1
func quantityQuery(c *fiber.Ctx) (decimal.Decimal, error) {
	raw := c.Query("quantity")
	if raw == "" {
		return decimal.NewFromInt(1), nil
	}
	qty, err := decimal.NewFromString(raw)
	if err != nil || !qty.IsPositive() {
		return decimal.Zero, apperror.NewFieldValidation(map[string]string{"quantity": "gt"})
	}
	return qty, nil
}
