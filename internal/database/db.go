package database

import (
	"time"

	"imalat-backend/internal/config"
	"imalat-backend/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

func Init(cfg *config.Config) {
	logg := config.GetLogger()

	var err error
	DB, err = gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{
		Logger: gormLogger(),
	})
	if err != nil {
		logg.Fatalf("Veritabanına bağlanılamadı: %v", err)
	}

	if err := Migrate(DB); err != nil {
		logg.Fatalf("AutoMigrate hatası: %v", err)
	}

	// Aynı parent/child için tek aktif BOM satırı (AutoMigrate partial index desteklemiyor)
	if err := DB.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_bom_edges_active_pair
		ON bom_edges (parent_item_id, child_item_id) WHERE is_active`).Error; err != nil {
		logg.Warnf("idx_bom_edges_active_pair oluşturulamadı: %v", err)
	}

	logg.Info("Veritabanı bağlantısı başarılı. Migration tamamlandı.")
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Item{},
		&models.BOMEdge{},
		&models.InventoryTransaction{},
		&models.BOMDeductionLog{},
		&models.AuditLog{},
	)
}

// gormLogger: SQL hataları ve yavaş sorgular logrus üzerinden JSON olarak yazılır.
func gormLogger() logger.Interface {
	return logger.New(
		config.GetLogger(),
		logger.Config{
			Colorful:      false,
			LogLevel:      logger.Error,
			SlowThreshold: time.Second,
		},
	)
}
