package bom

import (
	"context"
	"errors"
	"fmt"

	"imalat-backend/internal/apperror"
	"imalat-backend/internal/audit"
	"imalat-backend/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CreateEdgeRequest struct {
	ParentItemID     uint            `json:"parent_item_id" validate:"required"`
	ChildItemID      uint            `json:"child_item_id" validate:"required"`
	QuantityRequired decimal.Decimal `json:"quantity_required" validate:"gt=0"`
	LevelNo          int             `json:"level_no" validate:"omitempty,min=1"`
	Notes            string          `json:"notes" validate:"max=255"`
}

type UpdateEdgeRequest struct {
	QuantityRequired *decimal.Decimal `json:"quantity_required"`
	LevelNo          *int             `json:"level_no"`
	IsActive         *bool            `json:"is_active"`
	Notes            *string          `json:"notes"`
}

// CreateEdge: tx içinde çağrılır. Kalemler aktif olmalı, aynı çift için ikinci aktif satır
// olamaz ve yeni satır döngü kapatamaz.
func CreateEdge(ctx context.Context, tx *gorm.DB, req CreateEdgeRequest, userID uint) (*models.BOMEdge, error) {
	if err := apperror.Validate(&req); err != nil {
		return nil, err
	}
	if req.ParentItemID == req.ChildItemID {
		return nil, apperror.NewValidation("Üst kalem ile alt kalem aynı olamaz")
	}
	if req.LevelNo == 0 {
		req.LevelNo = 1
	}

	if err := requireActiveItems(ctx, tx, req.ParentItemID, req.ChildItemID); err != nil {
		return nil, err
	}

	var dup int64
	if err := tx.WithContext(ctx).Model(&models.BOMEdge{}).
		Where("parent_item_id = ? AND child_item_id = ? AND is_active = ?", req.ParentItemID, req.ChildItemID, true).
		Count(&dup).Error; err != nil {
		return nil, apperror.FromDB(err)
	}
	if dup > 0 {
		return nil, apperror.NewValidation("Bu üst/alt kalem çifti için zaten aktif bir BOM satırı var")
	}

	if err := CheckNewEdge(ctx, NewStore(tx), req.ParentItemID, req.ChildItemID); err != nil {
		return nil, err
	}

	edge := &models.BOMEdge{
		ParentItemID:     req.ParentItemID,
		ChildItemID:      req.ChildItemID,
		QuantityRequired: req.QuantityRequired,
		LevelNo:          req.LevelNo,
		IsActive:         true,
		Notes:            req.Notes,
	}
	if err := tx.WithContext(ctx).Omit(clause.Associations).Create(edge).Error; err != nil {
		return nil, apperror.FromDB(err)
	}

	if err := audit.WriteLog(tx, audit.LogOptions{
		UserID:      userID,
		EntityType:  audit.EntityBOMEdge,
		EntityID:    edge.ID,
		Action:      models.AuditActionCreate,
		Description: fmt.Sprintf("BOM satırı eklendi: %d > %d (%s)", edge.ParentItemID, edge.ChildItemID, edge.QuantityRequired),
		After:       edge,
	}); err != nil {
		return nil, err
	}
	return edge, nil
}

// UpdateEdge: Pasif satırın tekrar aktif edilmesi yeni satır gibi kontrol edilir.
func UpdateEdge(ctx context.Context, tx *gorm.DB, id uint, req UpdateEdgeRequest, userID uint) (*models.BOMEdge, error) {
	edge, err := findEdge(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	before := *edge

	if req.QuantityRequired != nil {
		if !req.QuantityRequired.IsPositive() {
			return nil, apperror.NewFieldValidation(map[string]string{"quantity_required": "gt"})
		}
		edge.QuantityRequired = *req.QuantityRequired
	}
	if req.LevelNo != nil {
		if *req.LevelNo < 1 {
			return nil, apperror.NewFieldValidation(map[string]string{"level_no": "min"})
		}
		edge.LevelNo = *req.LevelNo
	}
	if req.Notes != nil {
		edge.Notes = *req.Notes
	}

	if req.IsActive != nil && *req.IsActive && !before.IsActive {
		if err := requireActiveItems(ctx, tx, edge.ParentItemID, edge.ChildItemID); err != nil {
			return nil, err
		}
		var dup int64
		if err := tx.WithContext(ctx).Model(&models.BOMEdge{}).
			Where("parent_item_id = ? AND child_item_id = ? AND is_active = ? AND id <> ?", edge.ParentItemID, edge.ChildItemID, true, edge.ID).
			Count(&dup).Error; err != nil {
			return nil, apperror.FromDB(err)
		}
		if dup > 0 {
			return nil, apperror.NewValidation("Bu üst/alt kalem çifti için zaten aktif bir BOM satırı var")
		}
		if err := CheckNewEdge(ctx, NewStore(tx), edge.ParentItemID, edge.ChildItemID); err != nil {
			return nil, err
		}
	}
	if req.IsActive != nil {
		edge.IsActive = *req.IsActive
	}

	// Save false değerini de yazar
	if err := tx.WithContext(ctx).Omit(clause.Associations).Save(edge).Error; err != nil {
		return nil, apperror.FromDB(err)
	}

	if err := audit.WriteLog(tx, audit.LogOptions{
		UserID:      userID,
		EntityType:  audit.EntityBOMEdge,
		EntityID:    edge.ID,
		Action:      models.AuditActionUpdate,
		Description: fmt.Sprintf("BOM satırı güncellendi: %d > %d", edge.ParentItemID, edge.ChildItemID),
		Before:      before,
		After:       edge,
	}); err != nil {
		return nil, err
	}
	return edge, nil
}

// DeactivateEdge: BOM satırı silinmez, pasife alınır.
func DeactivateEdge(ctx context.Context, tx *gorm.DB, id uint, userID uint) error {
	edge, err := findEdge(ctx, tx, id)
	if err != nil {
		return err
	}
	if !edge.IsActive {
		return nil
	}
	before := *edge

	if err := tx.WithContext(ctx).Model(edge).Update("is_active", false).Error; err != nil {
		return apperror.FromDB(err)
	}

	return audit.WriteLog(tx, audit.LogOptions{
		UserID:      userID,
		EntityType:  audit.EntityBOMEdge,
		EntityID:    edge.ID,
		Action:      models.AuditActionDelete,
		Description: fmt.Sprintf("BOM satırı pasife alındı: %d > %d", edge.ParentItemID, edge.ChildItemID),
		Before:      before,
	})
}

var ErrEdgeNotFound = errors.New("BOM satırı bulunamadı")

func findEdge(ctx context.Context, tx *gorm.DB, id uint) (*models.BOMEdge, error) {
	var edge models.BOMEdge
	if err := tx.WithContext(ctx).First(&edge, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEdgeNotFound
		}
		return nil, apperror.FromDB(err)
	}
	return &edge, nil
}

func requireActiveItems(ctx context.Context, tx *gorm.DB, ids ...uint) error {
	items, err := NewStore(tx).Items(ctx, ids)
	if err != nil {
		return err
	}
	for _, id := range ids {
		item, ok := items[id]
		if !ok {
			return &apperror.UnknownItemError{ItemID: id}
		}
		if !item.IsActive {
			return apperror.NewValidation("Pasif kalem BOM'da kullanılamaz: %s", item.ItemCode)
		}
	}
	return nil
}
