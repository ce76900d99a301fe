package handlers

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"bankloan/internal/money"

	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

var (
	errInvalidAmount = errors.New("amount must be a decimal with at most two fractional digits")
	errInvalidRate   = errors.New("interest_rate must be a decimal percentage")
	errInvalidDate   = errors.New("dates must be YYYY-MM-DD or RFC3339")
)

func parseAmountMinor(raw string) (int64, error) {
	amount, err := money.ParseMinor(raw)
	if err != nil {
		return 0, errInvalidAmount
	}
	return amount, nil
}

func parseOptionalAmount(raw string) (*int64, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	amount, err := parseAmountMinor(raw)
	if err != nil {
		return nil, err
	}
	return &amount, nil
}

func parseRate(raw string) (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, errInvalidRate
	}
	return rate, nil
}

func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(dateLayout, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, errInvalidDate
	}
	return t, nil
}

func parseOptionalDate(raw string) (*time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	t, err := parseDate(raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func parseInt(raw string, fallback int) int {
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func optionalText(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
