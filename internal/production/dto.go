package production

import (
	"time"

	"imalat-backend/internal/apperror"
	"imalat-backend/internal/models"

	"github.com/shopspring/decimal"
)

type CreateRequest struct {
	TransactionDate string                 `json:"transaction_date" validate:"required"`
	ItemID          uint                   `json:"item_id" validate:"required"`
	Quantity        decimal.Decimal        `json:"quantity" validate:"gt=0"`
	UnitPrice       decimal.Decimal        `json:"unit_price" validate:"gte=0"`
	ReferenceNumber string                 `json:"reference_number" validate:"max=100"`
	Notes           string                 `json:"notes" validate:"max=500"`
	CreatedBy       uint                   `json:"created_by" validate:"required"`
	TransactionType models.TransactionType `json:"transaction_type" validate:"required,oneof=PRODUCTION_RECEIPT"`
}

type BatchItem struct {
	ItemID    uint            `json:"item_id" validate:"required"`
	Quantity  decimal.Decimal `json:"quantity" validate:"gt=0"`
	UnitPrice decimal.Decimal `json:"unit_price" validate:"gte=0"`
}

type BatchRequest struct {
	TransactionDate string      `json:"transaction_date" validate:"required"`
	Items           []BatchItem `json:"items" validate:"required,min=1,max=100,dive"`
	ReferenceNumber string      `json:"reference_number" validate:"max=100"`
	Notes           string      `json:"notes" validate:"max=500"`
	CreatedBy       uint        `json:"created_by" validate:"required"`
}

// input: Doğrulanmış tek üretim satırı
type input struct {
	Date            time.Time
	ItemID          uint
	Quantity        decimal.Decimal
	UnitPrice       decimal.Decimal
	ReferenceNumber string
	Notes           string
	CreatedBy       uint
}

func (r CreateRequest) normalize() (input, error) {
	if err := apperror.Validate(&r); err != nil {
		return input{}, err
	}
	date, err := apperror.ParseDate(r.TransactionDate)
	if err != nil {
		return input{}, err
	}
	if err := checkColumns(r.Quantity, r.UnitPrice); err != nil {
		return input{}, err
	}
	return input{
		Date:            date,
		ItemID:          r.ItemID,
		Quantity:        r.Quantity,
		UnitPrice:       r.UnitPrice,
		ReferenceNumber: r.ReferenceNumber,
		Notes:           r.Notes,
		CreatedBy:       r.CreatedBy,
	}, nil
}

func (r BatchRequest) normalize() ([]input, error) {
	if err := apperror.Validate(&r); err != nil {
		return nil, err
	}
	date, err := apperror.ParseDate(r.TransactionDate)
	if err != nil {
		return nil, err
	}

	out := make([]input, 0, len(r.Items))
	for _, it := range r.Items {
		if err := checkColumns(it.Quantity, it.UnitPrice); err != nil {
			return nil, err
		}
		out = append(out, input{
			Date:            date,
			ItemID:          it.ItemID,
			Quantity:        it.Quantity,
			UnitPrice:       it.UnitPrice,
			ReferenceNumber: r.ReferenceNumber,
			Notes:           r.Notes,
			CreatedBy:       r.CreatedBy,
		})
	}
	return out, nil
}

// checkColumns: Miktar, fiyat ve tutar decimal(20,4) kolonlarına sığmalı.
func checkColumns(quantity, unitPrice decimal.Decimal) error {
	fields := models.CheckColumns(map[string]decimal.Decimal{
		"quantity":     quantity,
		"unit_price":   unitPrice,
		"total_amount": models.RoundAmount(quantity.Mul(unitPrice)),
	})
	if len(fields) > 0 {
		return apperror.NewFieldValidation(fields)
	}
	return nil
}
