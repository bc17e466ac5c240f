package audit

import (
	"encoding/json"
	"fmt"

	"imalat-backend/internal/models"

	"gorm.io/gorm"
)

type LogOptions struct {
	UserID      uint
	EntityType  string
	EntityID    uint
	Action      models.AuditAction
	Description string
	Before      any
	After       any
}

// Entity tipleri
const (
	EntityBOMEdge              = "bom_edge"
	EntityInventoryTransaction = "inventory_transaction"
)

// WriteLog: Çağıranın transaction'ı içinde yazılır, işlem geri alınırsa log da gider.
func WriteLog(tx *gorm.DB, opts LogOptions) error {
	// PostgreSQL jsonb için boş string yerine "null" JSON string'i kullanmalıyız
	beforeStr := "null"
	afterStr := "null"

	if opts.Before != nil {
		b, err := json.Marshal(opts.Before)
		if err != nil {
			return fmt.Errorf("audit before verisi çevrilemedi: %w", err)
		}
		beforeStr = string(b)
	}
	if opts.After != nil {
		b, err := json.Marshal(opts.After)
		if err != nil {
			return fmt.Errorf("audit after verisi çevrilemedi: %w", err)
		}
		afterStr = string(b)
	}

	log := models.AuditLog{
		UserID:      opts.UserID,
		EntityType:  opts.EntityType,
		EntityID:    opts.EntityID,
		Action:      opts.Action,
		Description: opts.Description,
		BeforeData:  beforeStr,
		AfterData:   afterStr,
	}

	if err := tx.Create(&log).Error; err != nil {
		return fmt.Errorf("audit log kaydedilemedi: %w", err)
	}
	return nil
}
