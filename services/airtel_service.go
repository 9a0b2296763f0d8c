package services

import (
	"bytes"
	"context"
	"encoding/json"
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

const (
	airtelCountry  = "UG"
	airtelCurrency = "UGX"
)

// AirtelService implements the Airtel Money merchant API.
type AirtelService struct {
	config      config.AirtelConfig
	countryCode string
	httpClient  *http.Client
}

func NewAirtelService(cfg config.AirtelConfig, countryCode string, timeout time.Duration) *AirtelService {
	return &AirtelService{
		config:      cfg,
		countryCode: countryCode,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

type airtelPaymentRequest struct {
	Reference  string `json:"reference"`
	Subscriber struct {
		Country  string `json:"country"`
		Currency string `json:"currency"`
		MSISDN   string `json:"msisdn"`
	} `json:"subscriber"`
	Transaction struct {
		Amount   decimal.Decimal `json:"amount"`
		Country  string          `json:"country"`
		Currency string          `json:"currency"`
		ID       string          `json:"id"`
	} `json:"transaction"`
}

type airtelResponse struct {
	Data struct {
		Status      string `json:"status"`
		Message     string `json:"message"`
		Transaction struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"transaction"`
	} `json:"data"`
}

func (as *AirtelService) accessToken(ctx context.Context) (string, error) {
	if as.config.ClientID == "" || as.config.ClientSecret == "" {
		return "", fmt.Errorf("Airtel credentials are not configured")
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, as.config.BaseURL+"/auth/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(as.config.ClientID, as.config.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := as.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("token request returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var token struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return "", fmt.Errorf("decode token: %w", err)
	}
	if token.AccessToken == "" {
		return "", fmt.Errorf("token response carried no access_token")
	}
	return token.AccessToken, nil
}

func (as *AirtelService) setHeaders(req *http.Request, token string) {
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Country", airtelCountry)
	req.Header.Set("X-Currency", airtelCurrency)
}

func (as *AirtelService) InitiatePayment(ctx context.Context, phone string, amount decimal.Decimal, transactionID, description string) (bool, string) {
	token, err := as.accessToken(ctx)
	if err != nil {
		utils.ErrorLogger.Errorf("Airtel token error: %v", err)
		return false, "Failed to authenticate with Airtel"
	}

	var payload airtelPaymentRequest
	payload.Reference = transactionID
	payload.Subscriber.Country = airtelCountry
	payload.Subscriber.Currency = airtelCurrency
	payload.Subscriber.MSISDN = FormatMSISDN(phone, as.countryCode)
	payload.Transaction.Amount = amount
	payload.Transaction.Country = airtelCountry
	payload.Transaction.Currency = airtelCurrency
	payload.Transaction.ID = transactionID

	raw, err := json.Marshal(payload)
	if err != nil {
		return false, fmt.Sprintf("Payment processing error: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, as.config.BaseURL+"/merchant/v1/payments/", bytes.NewReader(raw))
	if err != nil {
		return false, fmt.Sprintf("Payment processing error: %v", err)
	}
	as.setHeaders(req, token)

	resp, err := as.httpClient.Do(req)
	if err != nil {
		utils.ErrorLogger.Errorf("Airtel payment request error: %v", err)
		return false, fmt.Sprintf("Network error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		msg := fmt.Sprintf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		utils.ErrorLogger.Errorf("Airtel payment initiation failed: %s", msg)
		return false, msg
	}

	var body airtelResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false, fmt.Sprintf("Malformed Airtel response: %v", err)
	}

	// TS settles immediately; TP/TIP mean the customer still has to approve
	switch strings.ToUpper(body.Data.Status) {
	case "TS", "TP", "TIP":
		return true, "Payment initiated successfully"
	}
	if body.Data.Message != "" {
		return false, body.Data.Message
	}
	return false, "Unknown error"
}

func (as *AirtelService) CheckPaymentStatus(ctx context.Context, transactionID string) (string, bool) {
	token, err := as.accessToken(ctx)
	if err != nil {
		utils.ErrorLogger.Errorf("Airtel token error: %v", err)
		return "", false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, as.config.BaseURL+"/standard/v1/payments/"+url.PathEscape(transactionID), nil)
	if err != nil {
		return "", false
	}
	as.setHeaders(req, token)

	resp, err := as.httpClient.Do(req)
	if err != nil {
		utils.ErrorLogger.Errorf("Airtel status check error: %v", err)
		return "", false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		utils.ErrorLogger.Errorf("Airtel status check returned HTTP %d", resp.StatusCode)
		return "", false
	}

	var body airtelResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", false
	}
	if body.Data.Transaction.Status != "" {
		return body.Data.Transaction.Status, true
	}
	if body.Data.Status != "" {
		return body.Data.Status, true
	}
	return "", false
}

func (as *AirtelService) ParseCallback(payload map[string]interface{}) ProviderCallback {
	return ProviderCallback{
		Reference:             firstOf(payload, "reference", "transaction.id"),
		Status:                firstOf(payload, "transaction.status", "status"),
		ProviderTransactionID: firstOf(payload, "id", "transaction_id", "transaction.airtel_money_id"),
	}
}
