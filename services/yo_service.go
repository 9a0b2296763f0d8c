package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yeremiapane/restaurant-momo/config"
	"github.com/yeremiapane/restaurant-momo/utils"
)

// YoService talks to the Yo! Payments form-POST API. Without credentials it
// runs in test mode and simulates every call.
type YoService struct {
	config      config.YoConfig
	callbackURL string
	countryCode string
	httpClient  *http.Client
}

func NewYoService(cfg config.YoConfig, callbackURL, countryCode string, timeout time.Duration) *YoService {
	return &YoService{
		config:      cfg,
		callbackURL: callbackURL,
		countryCode: countryCode,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

// TestMode reports whether calls are simulated.
func (ys *YoService) TestMode() bool {
	return ys.config.Username == "" || ys.config.Password == ""
}

func (ys *YoService) InitiatePayment(ctx context.Context, phone string, amount decimal.Decimal, transactionID, description string) (bool, string) {
	if ys.TestMode() {
		utils.InfoLogger.Infof("TEST MODE: simulating Yo! payment for %s, amount %s", phone, amount.String())
		return true, "TEST MODE: Payment initiated successfully. Please check your phone."
	}

	form := url.Values{}
	form.Set("method", "acdepositfunds")
	form.Set("username", ys.config.Username)
	form.Set("password", ys.config.Password)
	form.Set("amount", amount.StringFixed(0))
	form.Set("account", FormatMSISDN(phone, ys.countryCode))
	form.Set("narrative", description)
	form.Set("external_reference", transactionID)
	form.Set("provider", "YO")
	form.Set("instant_notification_url", ys.callbackURL)

	body, err := ys.post(ctx, form)
	if err != nil {
		utils.ErrorLogger.Errorf("Yo! payment request error: %v", err)
		return false, fmt.Sprintf("Network error: %v", err)
	}

	upper := strings.ToUpper(body)
	switch {
	case strings.Contains(upper, "SUCCEEDED") || isYoOK(upper):
		return true, "Payment request sent successfully. Please check your phone to complete the transaction."
	case strings.Contains(upper, "PENDING"):
		return true, "Payment is being processed. Please check your phone."
	default:
		return false, "Payment failed: " + parseYoError(body)
	}
}

func (ys *YoService) CheckPaymentStatus(ctx context.Context, transactionID string) (string, bool) {
	if ys.TestMode() {
		return "SUCCEEDED", true
	}

	form := url.Values{}
	form.Set("method", "transactionquery")
	form.Set("username", ys.config.Username)
	form.Set("password", ys.config.Password)
	form.Set("external_reference", transactionID)

	body, err := ys.post(ctx, form)
	if err != nil {
		utils.ErrorLogger.Errorf("Yo! status check error: %v", err)
		return "", false
	}

	upper := strings.ToUpper(body)
	switch {
	case strings.Contains(upper, "SUCCEEDED"):
		return "SUCCEEDED", true
	case strings.Contains(upper, "PENDING"):
		return "PENDING", true
	case strings.Contains(upper, "FAILED"):
		return "FAILED", true
	default:
		return "UNKNOWN", true
	}
}

func (ys *YoService) ParseCallback(payload map[string]interface{}) ProviderCallback {
	return ProviderCallback{
		Reference:             payloadString(payload, "external_reference"),
		Status:                payloadString(payload, "transaction_status"),
		ProviderTransactionID: payloadString(payload, "transaction_id"),
	}
}

func (ys *YoService) post(ctx context.Context, form url.Values) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ys.config.APIURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := ys.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return string(body), nil
}

// isYoOK matches a bare "OK" reply or an XML <Status>OK</Status> element.
func isYoOK(upper string) bool {
	trimmed := strings.TrimSpace(upper)
	return trimmed == "OK" || strings.Contains(upper, "<STATUS>OK</STATUS>")
}

func parseYoError(body string) string {
	upper := strings.ToUpper(body)
	switch {
	case strings.Contains(upper, "INSUFFICIENT FUNDS"):
		return "Insufficient funds in your mobile money account"
	case strings.Contains(upper, "INVALID ACCOUNT"):
		return "Invalid phone number or mobile money account"
	case strings.Contains(upper, "TRANSACTION FAILED"):
		return "Transaction was declined by your mobile network"
	case strings.Contains(upper, "TIMEOUT"):
		return "Transaction timeout. Please try again"
	case strings.Contains(upper, "DUPLICATE"):
		return "Duplicate transaction detected"
	default:
		return "Payment error: " + strings.TrimSpace(body)
	}
}
