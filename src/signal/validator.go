package signal

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"executioncore/src/model"
)

// Validation error codes.
const (
	ErrCodeMissingSymbol     = "MISSING_SYMBOL"
	ErrCodeInvalidSide       = "INVALID_SIDE"
	ErrCodeInvalidQuantity   = "INVALID_QUANTITY"
	ErrCodeQuantityTooSmall  = "QUANTITY_TOO_SMALL"
	ErrCodeQuantityTooLarge  = "QUANTITY_TOO_LARGE"
	ErrCodeInvalidPriceType  = "INVALID_PRICE_TYPE"
	ErrCodeMissingLimitPrice = "MISSING_LIMIT_PRICE"
	ErrCodeInvalidLimitPrice = "INVALID_LIMIT_PRICE"
	ErrCodeBlacklistedSymbol = "BLACKLISTED_SYMBOL"
	ErrCodeSymbolNotAllowed  = "SYMBOL_NOT_ALLOWED"
	ErrCodeSignalExpired     = "SIGNAL_EXPIRED"
	ErrCodeInvalidPriority   = "INVALID_PRIORITY"
	ErrCodeDuplicateSignal   = "DUPLICATE_SIGNAL"
)

// ValidationResult is the synchronous outcome of signal intake.
type ValidationResult struct {
	Valid        bool          `json:"valid"`
	Signal       *model.Signal `json:"signal,omitempty"`
	ErrorCode    string        `json:"error_code,omitempty"`
	ErrorMessage string        `json:"error_message,omitempty"`
}

func invalid(code, message string) ValidationResult {
	return ValidationResult{Valid: false, ErrorCode: code, ErrorMessage: message}
}

// Validator runs pure predicate checks on a signal. The check order is
// fixed: required fields, quantity bounds, price-type consistency,
// blacklist, allow-list, expiry, priority range. The first failing check
// wins.
type Validator struct {
	allowedSymbols map[string]struct{}
	blacklist      map[string]struct{}
	minQuantity    decimal.Decimal
	maxQuantity    decimal.Decimal
}

// NewValidator creates a validator. A nil or empty allowedSymbols list
// disables the allow-list check.
func NewValidator(allowedSymbols, blacklist []string, minQuantity, maxQuantity decimal.Decimal) *Validator {
	v := &Validator{
		blacklist:   make(map[string]struct{}, len(blacklist)),
		minQuantity: minQuantity,
		maxQuantity: maxQuantity,
	}
	if len(allowedSymbols) > 0 {
		v.allowedSymbols = make(map[string]struct{}, len(allowedSymbols))
		for _, s := range allowedSymbols {
			v.allowedSymbols[s] = struct{}{}
		}
	}
	for _, s := range blacklist {
		v.blacklist[s] = struct{}{}
	}
	return v
}

// Validate checks the signal against all intake rules.
func (v *Validator) Validate(sig *model.Signal, now time.Time) ValidationResult {
	if sig.Symbol == "" {
		return invalid(ErrCodeMissingSymbol, "signal is missing a symbol")
	}

	if sig.Side != model.SideBuy && sig.Side != model.SideSell {
		return invalid(ErrCodeInvalidSide, fmt.Sprintf("invalid side: %q", sig.Side))
	}

	if !sig.Quantity.IsPositive() {
		return invalid(ErrCodeInvalidQuantity, fmt.Sprintf("quantity must be positive: %s", sig.Quantity))
	}

	if sig.Quantity.LessThan(v.minQuantity) {
		return invalid(ErrCodeQuantityTooSmall,
			fmt.Sprintf("quantity below minimum: %s < %s", sig.Quantity, v.minQuantity))
	}

	if sig.Quantity.GreaterThan(v.maxQuantity) {
		return invalid(ErrCodeQuantityTooLarge,
			fmt.Sprintf("quantity above maximum: %s > %s", sig.Quantity, v.maxQuantity))
	}

	switch sig.PriceType {
	case model.PriceTypeMarket, model.PriceTypeLimit, model.PriceTypeTWAP, model.PriceTypeVWAP:
	default:
		return invalid(ErrCodeInvalidPriceType, fmt.Sprintf("invalid price type: %q", sig.PriceType))
	}

	if sig.PriceType == model.PriceTypeLimit && sig.LimitPrice == nil {
		return invalid(ErrCodeMissingLimitPrice, "limit orders require a limit price")
	}

	if sig.LimitPrice != nil && !sig.LimitPrice.IsPositive() {
		return invalid(ErrCodeInvalidLimitPrice, fmt.Sprintf("limit price must be positive: %s", sig.LimitPrice))
	}

	if _, ok := v.blacklist[sig.Symbol]; ok {
		return invalid(ErrCodeBlacklistedSymbol, fmt.Sprintf("symbol is blacklisted: %s", sig.Symbol))
	}

	if v.allowedSymbols != nil {
		if _, ok := v.allowedSymbols[sig.Symbol]; !ok {
			return invalid(ErrCodeSymbolNotAllowed, fmt.Sprintf("symbol not in allow-list: %s", sig.Symbol))
		}
	}

	if sig.IsExpired(now) {
		return invalid(ErrCodeSignalExpired, fmt.Sprintf("signal already expired at %s", sig.ExpireAt))
	}

	if sig.Priority < model.PriorityEmergencyClose || sig.Priority > model.PriorityRebalance {
		return invalid(ErrCodeInvalidPriority, fmt.Sprintf("invalid priority: %d", sig.Priority))
	}

	return ValidationResult{Valid: true, Signal: sig}
}
