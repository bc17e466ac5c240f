package production

import (
	"context"
	"errors"
	"fmt"
	"time"

	"imalat-backend/internal/apperror"
	"imalat-backend/internal/audit"
	"imalat-backend/internal/config"
	"imalat-backend/internal/ledger"
	"imalat-backend/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Options struct {
	// nil ise sadece satır kilitleri
	Locker       ledger.Locker
	Timeout      time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
}

type Service struct {
	db     *gorm.DB
	engine *Engine
	opts   Options
}

func NewService(db *gorm.DB, engine *Engine, opts Options) *Service {
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 50 * time.Millisecond
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	return &Service{db: db, engine: engine, opts: opts}
}

type Result struct {
	Transaction    models.InventoryTransaction `json:"transaction"`
	AutoDeductions []DeductionResult           `json:"auto_deductions"`
}

// Create: Tek üretim kaydı. Ya tamamı yazılır ya hiçbiri.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Result, error) {
	in, err := req.normalize()
	if err != nil {
		return nil, err
	}

	var result *Result
	err = s.run(ctx, func(ctx context.Context, sess *ledger.Session) error {
		r, err := s.produce(ctx, sess, in)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	config.GetLogger().WithFields(logrus.Fields{
		"transaction_id": result.Transaction.ID,
		"item_id":        result.Transaction.ItemID,
		"quantity":       result.Transaction.Quantity.String(),
		"deductions":     len(result.AutoDeductions),
	}).Info("Üretim kaydedildi")
	return result, nil
}

// CreateBatch: Tüm kalemler tek iş biriminde; sonraki kalem öncekinin tükettiği stoğu görür.
func (s *Service) CreateBatch(ctx context.Context, req BatchRequest) ([]Result, error) {
	inputs, err := req.normalize()
	if err != nil {
		return nil, err
	}

	var results []Result
	err = s.run(ctx, func(ctx context.Context, sess *ledger.Session) error {
		results = make([]Result, 0, len(inputs))
		for i, in := range inputs {
			r, err := s.produce(ctx, sess, in)
			if err != nil {
				return fmt.Errorf("%d. kalem (item_id: %d): %w", i+1, in.ItemID, err)
			}
			results = append(results, *r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	config.GetLogger().WithField("count", len(results)).Info("Toplu üretim kaydedildi")
	return results, nil
}

func (s *Service) produce(ctx context.Context, sess *ledger.Session, in input) (*Result, error) {
	tx := sess.Tx()

	plan, err := s.engine.Plan(ctx, tx, in.ItemID, in.Quantity)
	if err != nil {
		return nil, err
	}

	// Üretilen kalem ve tüm alt kalemler artan id sırasıyla tek seferde kilitlenir
	if err := sess.Lock(append(plan.ItemIDs(), in.ItemID)...); err != nil {
		return nil, err
	}
	item, err := sess.Item(in.ItemID)
	if err != nil {
		return nil, err
	}
	if !item.IsActive {
		return nil, apperror.NewValidation("Pasif kalem için üretim kaydı girilemez: %s", item.ItemCode)
	}

	txn := models.InventoryTransaction{
		ItemID:          in.ItemID,
		TransactionType: models.TransactionTypeProductionReceipt,
		TransactionDate: in.Date,
		Quantity:        in.Quantity,
		UnitPrice:       in.UnitPrice,
		TotalAmount:     models.RoundAmount(in.Quantity.Mul(in.UnitPrice)),
		ReferenceNumber: in.ReferenceNumber,
		Notes:           in.Notes,
		CreatedBy:       in.CreatedBy,
	}
	if err := tx.WithContext(ctx).Omit(clause.Associations).Create(&txn).Error; err != nil {
		return nil, apperror.FromDB(err)
	}

	deductions, err := s.engine.Apply(ctx, sess, plan, txn.ID)
	if err != nil {
		return nil, err
	}

	if _, _, err := sess.Increase(in.ItemID, in.Quantity); err != nil {
		return nil, err
	}

	if err := audit.WriteLog(tx, audit.LogOptions{
		UserID:      in.CreatedBy,
		EntityType:  audit.EntityInventoryTransaction,
		EntityID:    txn.ID,
		Action:      models.AuditActionCreate,
		Description: fmt.Sprintf("Üretim: %s x %s, %d otomatik düşüm", item.ItemCode, in.Quantity.String(), len(deductions)),
		After:       auditPayload{Transaction: txn, Deductions: deductions},
	}); err != nil {
		return nil, err
	}

	return &Result{Transaction: txn, AutoDeductions: deductions}, nil
}

// run: Zaman aşımı ve çakışmada tekrar deneme ile tek transaction.
func (s *Service) run(ctx context.Context, fn func(ctx context.Context, sess *ledger.Session) error) error {
	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	var err error
	for attempt := 0; attempt <= s.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("üretim işlemi tamamlanamadı: %w", ctx.Err())
			case <-time.After(time.Duration(attempt) * s.opts.RetryBackoff):
			}
		}

		err = s.once(ctx, fn)
		var conflict *apperror.ConcurrencyConflictError
		if !errors.As(err, &conflict) {
			break
		}
		config.GetLogger().WithFields(logrus.Fields{
			"attempt": attempt + 1,
			"reason":  conflict.Reason,
		}).Warn("Üretim işleminde çakışma, tekrar denenecek")
	}

	// Sürücü hatası context'i sarmıyorsa bile zaman aşımı TIMEOUT olarak dönmeli
	if err != nil && apperror.CodeOf(err) == apperror.CodeInternal && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("üretim işlemi zaman aşımı: %w (%v)", ctx.Err(), err)
	}
	return err
}

func (s *Service) once(ctx context.Context, fn func(ctx context.Context, sess *ledger.Session) error) error {
	var sess *ledger.Session
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sess = ledger.NewSession(ctx, tx, s.opts.Locker)
		return fn(ctx, sess)
	})
	if sess != nil {
		sess.Close()
	}
	return apperror.FromDB(err)
}

type auditPayload struct {
	Transaction models.InventoryTransaction `json:"transaction"`
	Deductions  []DeductionResult           `json:"auto_deductions"`
}
