package utils

import (
	"crypto/rand"
	"math/big"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// GeneratePaymentReference returns a new m_payment_id for a checkout.
func GeneratePaymentReference() string {
	return uuid.New().String()
}

// RandomUpper generates a random code of upper-case letters and digits.
func RandomUpper(length int) string {
	const charset = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	b := make([]byte, length)
	for i := range b {
		n, _ := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		b[i] = charset[n.Int64()]
	}
	return string(b)
}

// IsDigits reports whether s is non-empty and only ASCII digits.
func IsDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// FormatAmount renders an amount the way the gateway expects it: two decimals, no grouping.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// ParseAmount parses a decimal amount string such as "100.00".
func ParseAmount(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(strings.TrimSpace(s))
}

// FormatRand adds thousands separators to an amount for display, e.g. 1 250.00.
func FormatRand(d decimal.Decimal) string {
	s := d.StringFixed(2)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	whole, frac, _ := strings.Cut(s, ".")

	var sb strings.Builder
	for i, c := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			sb.WriteRune(' ')
		}
		sb.WriteRune(c)
	}
	out := sb.String() + "." + frac
	if neg {
		return "-" + out
	}
	return out
}

// ParseUint safely converts string to uint with a default value.
func ParseUint(s string, defaultVal uint) uint {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return defaultVal
	}
	return uint(v)
}
