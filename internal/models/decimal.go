package models

import "github.com/shopspring/decimal"

// Miktar, stok ve tutar kolonları decimal(20,4): 16 tam hane, 4 ondalık.
const (
	DecimalPrecision = 20
	DecimalScale     = 4
)

// DecimalLimit: decimal(20,4) kolonuna sığmayan en küçük mutlak değer (10^16).
var DecimalLimit = decimal.New(1, DecimalPrecision-DecimalScale)

// RoundAmount: Tutarlar PostgreSQL numeric ile aynı şekilde (yarım, sıfırdan uzağa) yuvarlanır.
func RoundAmount(d decimal.Decimal) decimal.Decimal {
	return d.Round(DecimalScale)
}

// RoundConsumption: BOM çarpımından doğan tüketim yukarı yuvarlanır.
// Sıfırdan büyük tüketim hiçbir zaman sıfıra inmez. RoundUp tam değerde ölçeği
// korur, Round sonucu 4 ondalığa sabitler.
func RoundConsumption(d decimal.Decimal) decimal.Decimal {
	return d.RoundUp(DecimalScale).Round(DecimalScale)
}

func TooPrecise(d decimal.Decimal) bool {
	return d.Exponent() < -DecimalScale && !d.Equal(d.Round(DecimalScale))
}

func OutOfRange(d decimal.Decimal) bool {
	return d.Abs().GreaterThanOrEqual(DecimalLimit)
}

// CheckColumns: Kolona yazılamayacak değerler için alan -> kural ("scale" veya "max").
func CheckColumns(values map[string]decimal.Decimal) map[string]string {
	fields := map[string]string{}
	for name, v := range values {
		switch {
		case TooPrecise(v):
			fields[name] = "scale"
		case OutOfRange(v):
			fields[name] = "max"
		}
	}
	return fields
}
