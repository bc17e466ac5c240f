package apperror

import (
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate = validator.New()

func init() {
	// decimal.Decimal'i sayı gibi gör, yoksa gt=0 / required etiketleri panic atar
	validate.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if v, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := v.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})

	// Hata alanlarında Go isimleri yerine json isimleri görünsün
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := fld.Tag.Get("json")
		for i := 0; i < len(name); i++ {
			if name[i] == ',' {
				name = name[:i]
				break
			}
		}
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
}

// Validate: validate etiketlerini çalıştırır, hata varsa *ValidationError döner.
func Validate(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return NewValidation("Geçersiz istek: %v", err)
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Tag()
	}
	return NewFieldValidation(fields)
}

// ParseDate: YYYY-MM-DD veya RFC3339
func ParseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Time{}, NewFieldValidation(map[string]string{"transaction_date": "date"})
}
