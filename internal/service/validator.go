package service

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/go-playground/validator"

	"rateservice/internal/config"
)

// ConversionRequest is a parsed conversion request. Currency codes are already upper-cased.
type ConversionRequest struct {
	Amount float64 `json:"amount" validate:"required"`
	From   string  `json:"from" validate:"currency"`
	To     string  `json:"to" validate:"currency,nefield=From"`
}

// ConversionValidator checks conversion requests against the configured currencies and limits.
type ConversionValidator struct {
	validate    *validator.Validate
	currencies  map[string]struct{}
	minAmount   float64
	maxAmount   float64
	currencyMsg string
}

// NewConversionValidator creates a ConversionValidator from the conversion config.
func NewConversionValidator(cfg config.ConversionConfig) *ConversionValidator {
	codes := cfg.CurrencyList()
	set := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		set[c] = struct{}{}
	}
	sorted := append([]string(nil), codes...)
	sort.Strings(sorted)

	v := &ConversionValidator{
		validate:    validator.New(),
		currencies:  set,
		minAmount:   cfg.MinAmount,
		maxAmount:   cfg.MaxAmount,
		currencyMsg: "Invalid currency. Must be one of: " + strings.Join(sorted, ", ") + ".",
	}
	mustRegister(v.validate, "currency", func(fl validator.FieldLevel) bool {
		return v.IsSupported(fl.Field().String())
	})
	return v
}

// mustRegister panics if tag cannot be registered.
func mustRegister(validate *validator.Validate, tag string, fn validator.Func) {
	if err := validate.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register %q validation: %v", tag, err))
	}
}

// IsSupported reports whether code is one of the configured currencies. Matching is exact.
func (v *ConversionValidator) IsSupported(code string) bool {
	_, ok := v.currencies[code]
	return ok
}

// Validate returns a *ValidationError describing the first failed check, or nil.
// Checks run in order: amount, limits, source currency, target currency, distinct pair.
func (v *ConversionValidator) Validate(req ConversionRequest) error {
	failed := map[string]string{}
	if err := v.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			failed[fe.StructField()] = fe.Tag()
		}
	}

	if _, ok := failed["Amount"]; ok || math.IsNaN(req.Amount) || math.IsInf(req.Amount, 0) {
		return AmountTypeError()
	}
	if req.Amount < v.minAmount {
		return &ValidationError{Message: fmt.Sprintf("Amount must be at least %s.", strconv.FormatFloat(v.minAmount, 'f', -1, 64))}
	}
	if req.Amount > v.maxAmount {
		return &ValidationError{Message: fmt.Sprintf("Amount exceeds maximum limit of %s.", humanize.Comma(int64(math.Round(v.maxAmount))))}
	}
	if _, ok := failed["From"]; ok {
		return &ValidationError{Message: "Invalid from currency. " + v.currencyMsg}
	}
	if tag, ok := failed["To"]; ok && tag == "currency" {
		return &ValidationError{Message: "Invalid to currency. " + v.currencyMsg}
	}
	if _, ok := failed["To"]; ok {
		return &ValidationError{Message: "From and to currencies must be different."}
	}
	return nil
}

// ValidatePair applies the currency checks of Validate to a bare pair.
func (v *ConversionValidator) ValidatePair(from, to string) error {
	if !v.IsSupported(from) {
		return &ValidationError{Message: "Invalid from currency. " + v.currencyMsg}
	}
	if !v.IsSupported(to) {
		return &ValidationError{Message: "Invalid to currency. " + v.currencyMsg}
	}
	if from == to {
		return &ValidationError{Message: "From and to currencies must be different."}
	}
	return nil
}

// ValidateBase checks a single base currency.
func (v *ConversionValidator) ValidateBase(base string) error {
	if !v.IsSupported(base) {
		return &ValidationError{Message: "Invalid base currency. " + v.currencyMsg}
	}
	return nil
}

// AmountTypeError is returned when the amount is missing, zero or not a number.
func AmountTypeError() *ValidationError {
	return &ValidationError{Message: "Invalid amount. Must be a number."}
}
