package service

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// roundAmount rounds half-up to a whole currency unit. Amounts reaching it
// are never negative, so decimal's half-away-from-zero is half-up here.
func roundAmount(d decimal.Decimal) decimal.Decimal {
	return d.Round(0)
}

func clampDiscount(d, total decimal.Decimal) decimal.Decimal {
	if d.IsNegative() || !total.IsPositive() {
		return decimal.Zero
	}
	if d.GreaterThan(total) {
		return total
	}
	return d
}

func percentOf(base, pct decimal.Decimal) decimal.Decimal {
	return base.Mul(pct).Div(hundred)
}

func (e *Evaluator) money(d decimal.Decimal) string {
	if d.IsInteger() {
		return e.currency + d.StringFixed(0)
	}
	return e.currency + d.StringFixed(2)
}

// parseClock reads "HH:MM" or "HH:MM:SS" into minutes after midnight.
func parseClock(s string) (int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, errors.Errorf("invalid clock %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, errors.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, errors.Errorf("invalid minute in %q", s)
	}
	return h*60 + m, nil
}

// clock12 renders minutes after midnight as "3:05 PM".
func clock12(minutes int) string {
	h, m := minutes/60, minutes%60
	suffix := "AM"
	if h >= 12 {
		suffix = "PM"
	}
	h %= 12
	if h == 0 {
		h = 12
	}
	return fmt.Sprintf("%d:%02d %s", h, m, suffix)
}

func titleDay(day string) string {
	day = strings.ToLower(strings.TrimSpace(day))
	if day == "" {
		return day
	}
	return strings.ToUpper(day[:1]) + day[1:]
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}
