// Package money форматирует суммы для отображения. Результат никогда не участвует в расчётах корзины.
package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

const (
	DefaultCurrency       = "INR"
	DefaultSymbol         = "₹"
	DefaultLanguage       = "en-IN"
	DefaultFractionDigits = 0

	// MinorUnitScale — число знаков минимальной единицы, в которой хранятся все цены и суммы корзины.
	MinorUnitScale = 2
)

// Formatter переводит сумму в минимальных единицах в строку для витрины.
type Formatter struct {
	unit    currency.Unit
	symbol  string
	scale   int32
	digits  int
	printer *message.Printer
}

// Config задаёт валюту и локаль форматирования.
type Config struct {
	Currency       string
	Symbol         string
	Language       string
	FractionDigits int
}

// DefaultConfig возвращает форматирование витрины: рупии без дробной части.
func DefaultConfig() Config {
	return Config{
		Currency:       DefaultCurrency,
		Symbol:         DefaultSymbol,
		Language:       DefaultLanguage,
		FractionDigits: DefaultFractionDigits,
	}
}

// NewFormatter проверяет код валюты и локаль.
func NewFormatter(cfg Config) (*Formatter, error) {
	unit, err := currency.ParseISO(cfg.Currency)
	if err != nil {
		return nil, fmt.Errorf("parse currency %q: %w", cfg.Currency, err)
	}
	tag, err := language.Parse(cfg.Language)
	if err != nil {
		return nil, fmt.Errorf("parse language %q: %w", cfg.Language, err)
	}
	if cfg.FractionDigits < 0 {
		return nil, fmt.Errorf("fraction digits must be non-negative, got %d", cfg.FractionDigits)
	}

	if scale, _ := currency.Standard.Rounding(unit); scale != MinorUnitScale {
		return nil, fmt.Errorf("currency %s uses %d minor digits, prices are stored with %d", unit, scale, MinorUnitScale)
	}
	symbol := cfg.Symbol
	if symbol == "" {
		symbol = unit.String() + " "
	}

	return &Formatter{
		unit:    unit,
		symbol:  symbol,
		scale:   MinorUnitScale,
		digits:  cfg.FractionDigits,
		printer: message.NewPrinter(tag),
	}, nil
}

// Currency возвращает ISO-код валюты.
func (f *Formatter) Currency() string {
	return f.unit.String()
}

// Major переводит минимальные единицы в основные без потери точности.
func (f *Formatter) Major(minor int64) decimal.Decimal {
	return decimal.New(minor, -f.scale)
}

// Format возвращает сумму с символом валюты и группировкой разрядов по локали.
func (f *Formatter) Format(minor int64) string {
	amount := f.Major(minor).Round(int32(f.digits))

	sign := ""
	if amount.IsNegative() {
		sign = "-"
		amount = amount.Neg()
	}

	var formatted string
	if f.digits == 0 {
		formatted = f.printer.Sprint(number.Decimal(amount.IntPart()))
	} else {
		formatted = f.printer.Sprint(number.Decimal(amount.InexactFloat64(), number.Scale(f.digits)))
	}
	return sign + f.symbol + strings.TrimSpace(formatted)
}
