package bom

import (
	"context"

	"imalat-backend/internal/apperror"
	"imalat-backend/internal/models"

	"gorm.io/gorm"
)

// EdgeSource: Çözümleyicinin BOM grafiğini okuduğu yer. Sadece aktif satırlar, bom_id sırasıyla.
type EdgeSource interface {
	ActiveChildren(ctx context.Context, parentID uint) ([]models.BOMEdge, error)
}

// Store: bom_edges tablosu üzerinde EdgeSource. Transaction içinde tx ile kurulmalı.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) ActiveChildren(ctx context.Context, parentID uint) ([]models.BOMEdge, error) {
	var edges []models.BOMEdge
	if err := s.db.WithContext(ctx).
		Where("parent_item_id = ? AND is_active = ?", parentID, true).
		Order("id ASC").
		Find(&edges).Error; err != nil {
		return nil, apperror.FromDB(err)
	}
	return edges, nil
}

// ActiveParents: Bu kalemi doğrudan kullanan aktif satırlar (where-used).
func (s *Store) ActiveParents(ctx context.Context, childID uint) ([]models.BOMEdge, error) {
	var edges []models.BOMEdge
	if err := s.db.WithContext(ctx).
		Preload("ParentItem").
		Where("child_item_id = ? AND is_active = ?", childID, true).
		Order("id ASC").
		Find(&edges).Error; err != nil {
		return nil, apperror.FromDB(err)
	}
	return edges, nil
}

// Items: id -> kalem, eksikler sessizce atlanır.
func (s *Store) Items(ctx context.Context, ids []uint) (map[uint]models.Item, error) {
	out := make(map[uint]models.Item, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var items []models.Item
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&items).Error; err != nil {
		return nil, apperror.FromDB(err)
	}
	for _, it := range items {
		out[it.ID] = it
	}
	return out, nil
}
