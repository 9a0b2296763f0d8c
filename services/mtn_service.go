package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/yeremiapane/restaurant-momo/config"
	"github.com/yeremiapane/restaurant-momo/utils"
)

// MTNService implements the MTN MoMo collection API.
type MTNService struct {
	config      config.MTNConfig
	currency    string
	countryCode string
	httpClient  *http.Client
}

func NewMTNService(cfg config.MTNConfig, currency, countryCode string, timeout time.Duration) *MTNService {
	return &MTNService{
		config:      cfg,
		currency:    currency,
		countryCode: countryCode,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

type mtnPayer struct {
	PartyIDType string `json:"partyIdType"`
	PartyID     string `json:"partyId"`
}

type mtnRequestToPay struct {
	Amount       string   `json:"amount"`
	Currency     string   `json:"currency"`
	ExternalID   string   `json:"externalId"`
	Payer        mtnPayer `json:"payer"`
	PayerMessage string   `json:"payerMessage"`
	PayeeNote    string   `json:"payeeNote"`
}

// mtnReferenceID derives the UUID MTN requires as X-Reference-Id from our
// transaction id, so later status lookups can rebuild it.
func mtnReferenceID(transactionID string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(transactionID)).String()
}

func (ms *MTNService) accessToken(ctx context.Context) (string, error) {
	if ms.config.APIUser == "" || ms.config.APIKey == "" {
		return "", fmt.Errorf("MTN credentials are not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ms.config.BaseURL+"/collection/token/", nil)
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(ms.config.APIUser, ms.config.APIKey)
	req.Header.Set("Ocp-Apim-Subscription-Key", ms.config.SubscriptionKey)

	resp, err := ms.httpClient.Do(req)
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

func (ms *MTNService) setHeaders(req *http.Request, token string) {
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Target-Environment", ms.config.TargetEnvironment)
	req.Header.Set("Ocp-Apim-Subscription-Key", ms.config.SubscriptionKey)
}

func (ms *MTNService) InitiatePayment(ctx context.Context, phone string, amount decimal.Decimal, transactionID, description string) (bool, string) {
	token, err := ms.accessToken(ctx)
	if err != nil {
		utils.ErrorLogger.Errorf("MTN token error: %v", err)
		return false, "Failed to authenticate with MTN"
	}

	payload, err := json.Marshal(mtnRequestToPay{
		Amount:     amount.StringFixed(0),
		Currency:   ms.currency,
		ExternalID: transactionID,
		Payer: mtnPayer{
			PartyIDType: "MSISDN",
			PartyID:     FormatMSISDN(phone, ms.countryCode),
		},
		PayerMessage: description,
		PayeeNote:    "Order " + transactionID,
	})
	if err != nil {
		return false, fmt.Sprintf("Payment processing error: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ms.config.BaseURL+"/collection/v1_0/requesttopay", bytes.NewReader(payload))
	if err != nil {
		return false, fmt.Sprintf("Payment processing error: %v", err)
	}
	ms.setHeaders(req, token)
	req.Header.Set("X-Reference-Id", mtnReferenceID(transactionID))
	req.Header.Set("Content-Type", "application/json")

	resp, err := ms.httpClient.Do(req)
	if err != nil {
		utils.ErrorLogger.Errorf("MTN payment request error: %v", err)
		return false, fmt.Sprintf("Network error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		body, _ := io.ReadAll(resp.Body)
		msg := fmt.Sprintf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		utils.ErrorLogger.Errorf("MTN payment initiation failed: %s", msg)
		return false, msg
	}
	return true, "Payment request sent to customer"
}

func (ms *MTNService) CheckPaymentStatus(ctx context.Context, transactionID string) (string, bool) {
	token, err := ms.accessToken(ctx)
	if err != nil {
		utils.ErrorLogger.Errorf("MTN token error: %v", err)
		return "", false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		ms.config.BaseURL+"/collection/v1_0/requesttopay/"+mtnReferenceID(transactionID), nil)
	if err != nil {
		return "", false
	}
	ms.setHeaders(req, token)

	resp, err := ms.httpClient.Do(req)
	if err != nil {
		utils.ErrorLogger.Errorf("MTN status check error: %v", err)
		return "", false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		utils.ErrorLogger.Errorf("MTN status check returned HTTP %d", resp.StatusCode)
		return "", false
	}

	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.Status == "" {
		return "", false
	}
	return body.Status, true
}

func (ms *MTNService) ParseCallback(payload map[string]interface{}) ProviderCallback {
	return ProviderCallback{
		Reference:             payloadString(payload, "externalId"),
		Status:                payloadString(payload, "status"),
		ProviderTransactionID: payloadString(payload, "financialTransactionId"),
	}
}
