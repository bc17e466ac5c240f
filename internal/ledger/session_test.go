package ledger

import (
	"context"
	"errors"
	"testing"

	"imalat-backend/internal/apperror"
	"imalat-backend/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type recordingLocker struct {
	acquired [][]uint
	released int
	fail     error
}

func (l *recordingLocker) Acquire(_ context.Context, ids []uint) (func(), error) {
	if l.fail != nil {
		return nil, l.fail
	}
	l.acquired = append(l.acquired, append([]uint(nil), ids...))
	return func() { l.released++ }, nil
}

func TestSessionDecreaseAndIncrease(t *testing.T) {
	db := testutil.SetupTestDB(t)
	item := testutil.CreateItem(t, db, "C1", "100")

	err := db.Transaction(func(tx *gorm.DB) error {
		s := NewSession(context.Background(), tx, nil)
		require.NoError(t, s.Lock(item.ID))

		before, after, err := s.Decrease(item.ID, testutil.Dec("20.5"))
		require.NoError(t, err)
		assert.True(t, before.Equal(testutil.Dec("100")))
		assert.True(t, after.Equal(testutil.Dec("79.5")))

		before, after, err = s.Increase(item.ID, testutil.Dec("0.5"))
		require.NoError(t, err)
		assert.True(t, before.Equal(testutil.Dec("79.5")))
		assert.True(t, after.Equal(testutil.Dec("80")))
		return nil
	})
	require.NoError(t, err)

	assert.True(t, testutil.StockOf(t, db, item.ID).Equal(testutil.Dec("80")))
}

func TestSessionNeverGoesNegative(t *testing.T) {
	db := testutil.SetupTestDB(t)
	item := testutil.CreateItem(t, db, "C1", "10")

	err := db.Transaction(func(tx *gorm.DB) error {
		s := NewSession(context.Background(), tx, nil)
		require.NoError(t, s.Lock(item.ID))
		_, _, err := s.Decrease(item.ID, testutil.Dec("10.0001"))
		return err
	})

	var insufficient *apperror.InsufficientStockError
	require.True(t, errors.As(err, &insufficient))
	require.Len(t, insufficient.Shortages, 1)
	assert.True(t, insufficient.Shortages[0].Shortage.Equal(testutil.Dec("0.0001")))
	assert.True(t, testutil.StockOf(t, db, item.ID).Equal(testutil.Dec("10")))
}

func TestSessionLockUnknownItem(t *testing.T) {
	db := testutil.SetupTestDB(t)
	item := testutil.CreateItem(t, db, "C1", "10")

	err := db.Transaction(func(tx *gorm.DB) error {
		return NewSession(context.Background(), tx, nil).Lock(item.ID, 999)
	})

	var unknown *apperror.UnknownItemError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, uint(999), unknown.ItemID)
}

func TestSessionRequiresLockBeforeWrite(t *testing.T) {
	db := testutil.SetupTestDB(t)
	item := testutil.CreateItem(t, db, "C1", "10")

	err := db.Transaction(func(tx *gorm.DB) error {
		_, _, err := NewSession(context.Background(), tx, nil).Decrease(item.ID, testutil.Dec("1"))
		return err
	})
	assert.Error(t, err)
	assert.True(t, testutil.StockOf(t, db, item.ID).Equal(testutil.Dec("10")))
}

func TestSessionLocksSortedAndOnce(t *testing.T) {
	db := testutil.SetupTestDB(t)
	a := testutil.CreateItem(t, db, "A", "1")
	b := testutil.CreateItem(t, db, "B", "1")
	c := testutil.CreateItem(t, db, "C", "1")
	locker := &recordingLocker{}

	err := db.Transaction(func(tx *gorm.DB) error {
		s := NewSession(context.Background(), tx, locker)
		defer s.Close()
		require.NoError(t, s.Lock(c.ID, a.ID, c.ID))
		require.NoError(t, s.Lock(a.ID, b.ID))
		return nil
	})
	require.NoError(t, err)

	require.Len(t, locker.acquired, 2)
	assert.Equal(t, []uint{a.ID, c.ID}, locker.acquired[0])
	assert.Equal(t, []uint{b.ID}, locker.acquired[1])
	assert.Equal(t, 2, locker.released)
}

func TestSessionLockIssuesRowLocks(t *testing.T) {
	db := testutil.SetupTestDB(t)
	a := testutil.CreateItem(t, db, "A", "1")
	b := testutil.CreateItem(t, db, "B", "1")

	// SQLite FOR UPDATE yazmaz; kilit isteği statement üzerinden yakalanır
	var locks []string
	require.NoError(t, db.Callback().Query().Before("gorm:query").Register("test:row_locks", func(tx *gorm.DB) {
		c, ok := tx.Statement.Clauses["FOR"]
		if !ok {
			return
		}
		if l, ok := c.Expression.(clause.Locking); ok {
			locks = append(locks, tx.Statement.Table+" "+l.Strength)
		}
	}))

	err := db.Transaction(func(tx *gorm.DB) error {
		s := NewSession(context.Background(), tx, nil)
		require.NoError(t, s.Lock(b.ID, a.ID))
		require.NoError(t, s.Lock(a.ID))
		_, _, err := s.Decrease(a.ID, testutil.Dec("1"))
		return err
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"items UPDATE"}, locks)
}

func TestSessionIncreaseBeyondColumn(t *testing.T) {
	db := testutil.SetupTestDB(t)
	item := testutil.CreateItem(t, db, "A", "9999999999999999")

	err := db.Transaction(func(tx *gorm.DB) error {
		s := NewSession(context.Background(), tx, nil)
		if err := s.Lock(item.ID); err != nil {
			return err
		}
		_, _, err := s.Increase(item.ID, testutil.Dec("1"))
		return err
	})
	assert.Equal(t, apperror.CodeValidation, apperror.CodeOf(err))
	assert.True(t, testutil.StockOf(t, db, item.ID).Equal(testutil.Dec("9999999999999999")))
}

func TestSessionLockerConflict(t *testing.T) {
	db := testutil.SetupTestDB(t)
	item := testutil.CreateItem(t, db, "C1", "10")
	locker := &recordingLocker{fail: &apperror.ConcurrencyConflictError{Reason: "meşgul"}}

	err := db.Transaction(func(tx *gorm.DB) error {
		return NewSession(context.Background(), tx, locker).Lock(item.ID)
	})
	assert.Equal(t, apperror.CodeConcurrencyConflict, apperror.CodeOf(err))
}
