// Package apperror: İş kuralı hataları. Handler katmanı bunları türlerine göre
// HTTP durum koduna ve {success:false, error, code, details} zarfına çevirir.
package apperror

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

type Code string

const (
	CodeValidation          Code = "VALIDATION_ERROR"
	CodeUnknownItem         Code = "UNKNOWN_ITEM"
	CodeCircularReference   Code = "CIRCULAR_REFERENCE"
	CodeInsufficientStock   Code = "INSUFFICIENT_STOCK"
	CodeConcurrencyConflict Code = "CONCURRENCY_CONFLICT"
	CodeTimeout             Code = "TIMEOUT"
	CodeInternal            Code = "INTERNAL_ERROR"

	// Sadece *fiber.Error için
	CodeUnauthorized Code = "UNAUTHORIZED"
	CodeForbidden    Code = "FORBIDDEN"
	CodeNotFound     Code = "NOT_FOUND"
)

type ValidationError struct {
	Message string
	Fields  map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	parts := make([]string, 0, len(e.Fields))
	for f, rule := range e.Fields {
		parts = append(parts, f+"="+rule)
	}
	return fmt.Sprintf("%s (%s)", e.Message, strings.Join(parts, ", "))
}

func NewValidation(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

func NewFieldValidation(fields map[string]string) *ValidationError {
	return &ValidationError{Message: "Zorunlu alanlar eksik veya geçersiz", Fields: fields}
}

type UnknownItemError struct {
	ItemID uint
}

func (e *UnknownItemError) Error() string {
	return fmt.Sprintf("Kalem bulunamadı (item_id: %d)", e.ItemID)
}

// CircularReferenceError: Path kökten tekrar eden kaleme kadar olan item id zinciri.
// MaxDepth > 0 ise döngü değil, derinlik sınırı aşılmıştır.
type CircularReferenceError struct {
	ItemID   uint
	Path     []uint
	MaxDepth int
}

func (e *CircularReferenceError) Error() string {
	if e.MaxDepth > 0 {
		return fmt.Sprintf("BOM derinliği %d sınırını aştı (item_id: %d, yol: %s)", e.MaxDepth, e.ItemID, formatPath(e.Path))
	}
	return fmt.Sprintf("BOM döngüsel referans tespit edildi (item_id: %d, yol: %s)", e.ItemID, formatPath(e.Path))
}

func formatPath(path []uint) string {
	parts := make([]string, 0, len(path))
	for _, id := range path {
		parts = append(parts, fmt.Sprint(id))
	}
	return strings.Join(parts, " > ")
}

type Shortage struct {
	ItemID    uint            `json:"item_id"`
	ItemCode  string          `json:"item_code"`
	ItemName  string          `json:"item_name"`
	Unit      string          `json:"unit"`
	Required  decimal.Decimal `json:"required"`
	Available decimal.Decimal `json:"available"`
	Shortage  decimal.Decimal `json:"shortage"`
}

type InsufficientStockError struct {
	Shortages []Shortage
}

func (e *InsufficientStockError) Error() string {
	parts := make([]string, 0, len(e.Shortages))
	for _, s := range e.Shortages {
		parts = append(parts, fmt.Sprintf("%s (gerekli: %s, mevcut: %s)", s.ItemCode, s.Required.String(), s.Available.String()))
	}
	return "Yetersiz stok: " + strings.Join(parts, ", ")
}

type ConcurrencyConflictError struct {
	Reason string
	Err    error
}

func (e *ConcurrencyConflictError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("Eşzamanlı işlem çakışması: %s: %v", e.Reason, e.Err)
	}
	return "Eşzamanlı işlem çakışması: " + e.Reason
}

func (e *ConcurrencyConflictError) Unwrap() error { return e.Err }

// PostgreSQL: serialization_failure, deadlock_detected, lock_not_available
var conflictSQLStates = map[string]string{
	"40001": "serialization failure",
	"40P01": "deadlock",
	"55P03": "lock not available",
}

// FromDB: Veritabanı hatasını tanınan bir türe çevirir, tanınmazsa aynen döner.
func FromDB(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if reason, ok := conflictSQLStates[pgErr.Code]; ok {
			return &ConcurrencyConflictError{Reason: reason, Err: err}
		}
		// numeric_value_out_of_range: girilen miktar kolona sığmıyor
		if pgErr.Code == "22003" {
			return &ValidationError{Message: "Sayısal değer izin verilen aralığın dışında", Fields: map[string]string{"quantity": "max"}}
		}
	}
	return err
}

func CodeOf(err error) Code {
	var (
		validation   *ValidationError
		unknown      *UnknownItemError
		circular     *CircularReferenceError
		insufficient *InsufficientStockError
		conflict     *ConcurrencyConflictError
	)
	switch {
	case errors.As(err, &validation):
		return CodeValidation
	case errors.As(err, &unknown):
		return CodeUnknownItem
	case errors.As(err, &circular):
		return CodeCircularReference
	case errors.As(err, &insufficient):
		return CodeInsufficientStock
	case errors.As(err, &conflict):
		return CodeConcurrencyConflict
	case errors.Is(err, context.DeadlineExceeded):
		return CodeTimeout
	default:
		return CodeInternal
	}
}

func StatusOf(err error) int {
	switch CodeOf(err) {
	case CodeValidation, CodeUnknownItem, CodeCircularReference, CodeInsufficientStock:
		return http.StatusBadRequest
	case CodeConcurrencyConflict:
		return http.StatusConflict
	case CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// DetailsOf: Hata türüne göre istemciye gösterilecek ek bilgi.
func DetailsOf(err error) any {
	var (
		validation   *ValidationError
		circular     *CircularReferenceError
		insufficient *InsufficientStockError
	)
	switch {
	case errors.As(err, &validation):
		if len(validation.Fields) > 0 {
			return validation.Fields
		}
	case errors.As(err, &circular):
		return map[string]any{"item_id": circular.ItemID, "path": circular.Path}
	case errors.As(err, &insufficient):
		return insufficient.Shortages
	}
	return nil
}
