// Package testutil: Paket testleri için bellek içi SQLite veritabanı ve örnek veri yardımcıları.
package testutil

import (
	"testing"

	"imalat-backend/internal/database"
	"imalat-backend/internal/models"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SetupTestDB: Her test kendi bellek içi veritabanını alır.
// Tek bağlantı olduğu için transaction'lar sırayla çalışır; tx içinde dış db kullanılmamalı.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("test veritabanı açılamadı: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql.DB alınamadı: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migration hatası: %v", err)
	}

	t.Cleanup(func() {
		sqlDB.Close()
	})
	return db
}

func Dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func CreateItem(t *testing.T, db *gorm.DB, code string, stock string) *models.Item {
	t.Helper()
	item := &models.Item{
		ItemCode:     code,
		ItemName:     code + " kalemi",
		Unit:         "EA",
		CurrentStock: Dec(stock),
		IsActive:     true,
	}
	if err := db.Create(item).Error; err != nil {
		t.Fatalf("kalem oluşturulamadı (%s): %v", code, err)
	}
	return item
}

// DeactivateItem: gorm default:true yüzünden false değeri Create ile yazılamıyor.
func DeactivateItem(t *testing.T, db *gorm.DB, item *models.Item) {
	t.Helper()
	if err := db.Model(item).Update("is_active", false).Error; err != nil {
		t.Fatalf("kalem pasife alınamadı: %v", err)
	}
}

func CreateEdge(t *testing.T, db *gorm.DB, parent, child *models.Item, qty string) *models.BOMEdge {
	t.Helper()
	edge := &models.BOMEdge{
		ParentItemID:     parent.ID,
		ChildItemID:      child.ID,
		QuantityRequired: Dec(qty),
		LevelNo:          1,
		IsActive:         true,
	}
	if err := db.Create(edge).Error; err != nil {
		t.Fatalf("BOM satırı oluşturulamadı (%s > %s): %v", parent.ItemCode, child.ItemCode, err)
	}
	return edge
}

// StockOf: Veritabanındaki güncel stok.
func StockOf(t *testing.T, db *gorm.DB, itemID uint) decimal.Decimal {
	t.Helper()
	var item models.Item
	if err := db.First(&item, itemID).Error; err != nil {
		t.Fatalf("kalem okunamadı (%d): %v", itemID, err)
	}
	return item.CurrentStock
}

func CreateUser(t *testing.T, db *gorm.DB, email string, role models.UserRole) *models.User {
	t.Helper()
	user := &models.User{
		Name:         email,
		Email:        email,
		PasswordHash: "x",
		Role:         role,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("kullanıcı oluşturulamadı: %v", err)
	}
	return user
}
