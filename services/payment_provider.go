package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/yeremiapane/restaurant-momo/models"
)

// PaymentProvider is implemented once per mobile-money provider. Adapters own
// transport and authentication and never return transport failures as errors:
// a failed call is (false, message) from InitiatePayment and ("", false) from
// CheckPaymentStatus.
type PaymentProvider interface {
	InitiatePayment(ctx context.Context, phone string, amount decimal.Decimal, transactionID, description string) (bool, string)
	CheckPaymentStatus(ctx context.Context, transactionID string) (string, bool)
}

// ProviderCallback is the part of a webhook payload reconciliation needs.
type ProviderCallback struct {
	Reference             string
	Status                string
	ProviderTransactionID string
}

// CallbackParser extracts a ProviderCallback from a provider's webhook body.
type CallbackParser interface {
	ParseCallback(payload map[string]interface{}) ProviderCallback
}

// statusTables map each provider's vocabulary to canonical payment statuses.
var statusTables = map[string]map[string]string{
	models.ProviderYo: {
		"SUCCEEDED":  models.PaymentStatusSuccessful,
		"SUCCESSFUL": models.PaymentStatusSuccessful,
		"FAILED":     models.PaymentStatusFailed,
		"PENDING":    models.PaymentStatusPending,
	},
	models.ProviderMTN: {
		"SUCCESSFUL": models.PaymentStatusSuccessful,
		"FAILED":     models.PaymentStatusFailed,
		"REJECTED":   models.PaymentStatusFailed,
		"PENDING":    models.PaymentStatusPending,
		"TIMEOUT":    models.PaymentStatusCancelled,
	},
	models.ProviderAirtel: {
		"TS":         models.PaymentStatusSuccessful,
		"SUCCESSFUL": models.PaymentStatusSuccessful,
		"TF":         models.PaymentStatusFailed,
		"FAILED":     models.PaymentStatusFailed,
		"TP":         models.PaymentStatusPending,
		"TIP":        models.PaymentStatusPending,
		"TA":         models.PaymentStatusPending,
		"PENDING":    models.PaymentStatusPending,
		"TE":         models.PaymentStatusCancelled,
	},
}

// NormalizeStatus maps a provider status code to a canonical payment status.
// Unknown providers and codes map to pending, never to successful.
func NormalizeStatus(provider, code string) string {
	table, ok := statusTables[provider]
	if !ok {
		return models.PaymentStatusPending
	}
	if status, ok := table[strings.ToUpper(strings.TrimSpace(code))]; ok {
		return status
	}
	return models.PaymentStatusPending
}

// FormatMSISDN converts a local phone number to the international form the
// providers expect: 0772123456 and 772123456 both become 256772123456.
func FormatMSISDN(phone, countryCode string) string {
	digits := digitsOnly(phone)
	switch {
	case strings.HasPrefix(digits, "0"):
		return countryCode + digits[1:]
	case strings.HasPrefix(digits, "7"):
		return countryCode + digits
	default:
		return digits
	}
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// payloadString reads a possibly nested field ("transaction.id") from a
// decoded JSON or form payload. Numbers are rendered without exponent.
func payloadString(payload map[string]interface{}, path string) string {
	var current interface{} = payload
	for _, key := range strings.Split(path, ".") {
		m, ok := current.(map[string]interface{})
		if !ok {
			return ""
		}
		current, ok = m[key]
		if !ok {
			return ""
		}
	}

	switch v := current.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return decimal.NewFromFloat(v).String()
	case []string:
		if len(v) > 0 {
			return v[0]
		}
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// firstOf returns the first non-empty field among paths.
func firstOf(payload map[string]interface{}, paths ...string) string {
	for _, p := range paths {
		if v := payloadString(payload, p); v != "" {
			return v
		}
	}
	return ""
}
