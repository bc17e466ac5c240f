// Package ledger: Kalem stoklarının tek sahibi. items.current_stock sadece
// Session üzerinden ve satır kilidi alınmışken değişir.
package ledger

import (
	"context"
	"fmt"
	"sort"

	"imalat-backend/internal/apperror"
	"imalat-backend/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Locker: Kalem bazlı dağıtık kilit. ids artan sırada gelir.
type Locker interface {
	Acquire(ctx context.Context, ids []uint) (release func(), err error)
}

// Session: Tek bir iş birimi (gorm transaction) boyunca kilitlenen kalemler.
// Goroutine'ler arasında paylaşılmaz.
type Session struct {
	ctx      context.Context
	tx       *gorm.DB
	locker   Locker
	items    map[uint]*models.Item
	releases []func()
}

// NewSession: locker nil olabilir, o durumda sadece satır kilitleri kullanılır.
func NewSession(ctx context.Context, tx *gorm.DB, locker Locker) *Session {
	return &Session{
		ctx:    ctx,
		tx:     tx,
		locker: locker,
		items:  make(map[uint]*models.Item),
	}
}

func (s *Session) Tx() *gorm.DB {
	return s.tx
}

// Lock: Henüz kilitlenmemiş kalemleri artan id sırasıyla kilitler (SELECT ... FOR UPDATE).
// Bulunamayan kalem için UnknownItemError döner.
func (s *Session) Lock(ids ...uint) error {
	pending := make([]uint, 0, len(ids))
	seen := make(map[uint]bool, len(ids))
	for _, id := range ids {
		if _, locked := s.items[id]; locked || seen[id] {
			continue
		}
		seen[id] = true
		pending = append(pending, id)
	}
	if len(pending) == 0 {
		return nil
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i] < pending[j] })

	if s.locker != nil {
		release, err := s.locker.Acquire(s.ctx, pending)
		if err != nil {
			return err
		}
		s.releases = append(s.releases, release)
	}

	var items []models.Item
	if err := s.tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", pending).
		Order("id ASC").
		Find(&items).Error; err != nil {
		return apperror.FromDB(err)
	}
	for i := range items {
		s.items[items[i].ID] = &items[i]
	}
	for _, id := range pending {
		if _, ok := s.items[id]; !ok {
			return &apperror.UnknownItemError{ItemID: id}
		}
	}
	return nil
}

// Item: Kilitli kalemin güncel hali.
func (s *Session) Item(id uint) (*models.Item, error) {
	item, ok := s.items[id]
	if !ok {
		return nil, fmt.Errorf("kalem kilitlenmeden okunamaz (item_id: %d)", id)
	}
	return item, nil
}

func (s *Session) Stock(id uint) (decimal.Decimal, error) {
	item, err := s.Item(id)
	if err != nil {
		return decimal.Zero, err
	}
	return item.CurrentStock, nil
}

// Decrease: Stok eksiye düşemez, düşecekse InsufficientStockError.
func (s *Session) Decrease(id uint, qty decimal.Decimal) (before, after decimal.Decimal, err error) {
	item, err := s.Item(id)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	if !qty.IsPositive() {
		return decimal.Zero, decimal.Zero, fmt.Errorf("düşülecek miktar pozitif olmalı (item_id: %d, miktar: %s)", id, qty)
	}
	before = item.CurrentStock
	after = before.Sub(qty)
	if after.IsNegative() {
		return before, before, &apperror.InsufficientStockError{Shortages: []apperror.Shortage{{
			ItemID:    item.ID,
			ItemCode:  item.ItemCode,
			ItemName:  item.ItemName,
			Unit:      item.Unit,
			Required:  qty,
			Available: before,
			Shortage:  qty.Sub(before),
		}}}
	}
	if err := s.write(item, after); err != nil {
		return before, before, err
	}
	return before, after, nil
}

func (s *Session) Increase(id uint, qty decimal.Decimal) (before, after decimal.Decimal, err error) {
	item, err := s.Item(id)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	if !qty.IsPositive() {
		return decimal.Zero, decimal.Zero, fmt.Errorf("eklenecek miktar pozitif olmalı (item_id: %d, miktar: %s)", id, qty)
	}
	before = item.CurrentStock
	after = before.Add(qty)
	if models.OutOfRange(after) {
		return before, before, &apperror.ValidationError{
			Message: fmt.Sprintf("Stok kolon sınırını aşıyor: %s (item_id: %d)", after, id),
			Fields:  map[string]string{"quantity": "max"},
		}
	}
	if err := s.write(item, after); err != nil {
		return before, before, err
	}
	return before, after, nil
}

func (s *Session) write(item *models.Item, stock decimal.Decimal) error {
	if err := s.tx.Model(&models.Item{}).
		Where("id = ?", item.ID).
		Update("current_stock", stock).Error; err != nil {
		return apperror.FromDB(err)
	}
	item.CurrentStock = stock
	return nil
}

// Close: Dağıtık kilitleri bırakır. Commit/rollback'ten sonra çağrılmalı.
func (s *Session) Close() {
	for i := len(s.releases) - 1; i >= 0; i-- {
		s.releases[i]()
	}
	s.releases = nil
}
