package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/restaurant-momo/config"
	"github.com/yeremiapane/restaurant-momo/models"
)

func TestNormalizeStatus(t *testing.T) {
	tests := []struct {
		provider string
		code     string
		want     string
	}{
		{models.ProviderYo, "SUCCEEDED", models.PaymentStatusSuccessful},
		{models.ProviderYo, "failed", models.PaymentStatusFailed},
		{models.ProviderYo, "UNKNOWN", models.PaymentStatusPending},
		{models.ProviderMTN, "SUCCESSFUL", models.PaymentStatusSuccessful},
		{models.ProviderMTN, "REJECTED", models.PaymentStatusFailed},
		{models.ProviderMTN, "TIMEOUT", models.PaymentStatusCancelled},
		{models.ProviderAirtel, "TS", models.PaymentStatusSuccessful},
		{models.ProviderAirtel, " ts ", models.PaymentStatusSuccessful},
		{models.ProviderAirtel, "TF", models.PaymentStatusFailed},
		{models.ProviderAirtel, "TIP", models.PaymentStatusPending},
		{models.ProviderAirtel, "TE", models.PaymentStatusCancelled},
		{models.ProviderAirtel, "SUCCEEDED", models.PaymentStatusPending},
		{"paypal", "SUCCESSFUL", models.PaymentStatusPending},
		{models.ProviderMTN, "", models.PaymentStatusPending},
	}
	for _, tt := range tests {
		t.Run(tt.provider+"_"+tt.code, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeStatus(tt.provider, tt.code))
		})
	}
}

func TestFormatMSISDN(t *testing.T) {
	assert.Equal(t, "256772123456", FormatMSISDN("0772123456", "256"))
	assert.Equal(t, "256772123456", FormatMSISDN("772123456", "256"))
	assert.Equal(t, "256772123456", FormatMSISDN("+256 772 123 456", "256"))
	assert.Equal(t, "256772123456", FormatMSISDN("256772123456", "256"))
}

func TestPayloadString(t *testing.T) {
	payload := map[string]interface{}{
		"reference": "TX1",
		"amount":    float64(16000),
		"form":      []string{"first", "second"},
		"transaction": map[string]interface{}{
			"id":     "TX2",
			"status": "TS",
		},
	}
	assert.Equal(t, "TX1", payloadString(payload, "reference"))
	assert.Equal(t, "16000", payloadString(payload, "amount"))
	assert.Equal(t, "first", payloadString(payload, "form"))
	assert.Equal(t, "TS", payloadString(payload, "transaction.status"))
	assert.Equal(t, "", payloadString(payload, "transaction.missing"))
	assert.Equal(t, "", payloadString(payload, "reference.nested"))
	assert.Equal(t, "TX2", firstOf(payload, "external_reference", "transaction.id"))
}

func TestYoService_TestMode(t *testing.T) {
	yo := NewYoService(config.YoConfig{}, "http://localhost/payments/webhook/yo", "256", time.Second)
	require.True(t, yo.TestMode())

	ok, msg := yo.InitiatePayment(context.Background(), "0772123456", decimal.NewFromInt(16000), "TX1", "Order")
	assert.True(t, ok)
	assert.Contains(t, msg, "TEST MODE")

	code, ok := yo.CheckPaymentStatus(context.Background(), "TX1")
	assert.True(t, ok)
	assert.Equal(t, "SUCCEEDED", code)
}

func TestYoService_InitiatePayment(t *testing.T) {
	var form map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		form = map[string]string{}
		for k := range r.PostForm {
			form[k] = r.PostForm.Get(k)
		}
		w.Write([]byte("<AutoCreate><Response><Status>OK</Status></Response></AutoCreate>"))
	}))
	defer server.Close()

	yo := NewYoService(config.YoConfig{Username: "user", Password: "pass", APIURL: server.URL},
		"http://localhost/payments/webhook/yo", "256", time.Second)

	ok, _ := yo.InitiatePayment(context.Background(), "0772123456", decimal.NewFromInt(16000), "TX1", "Payment for Order #ORD000001")
	assert.True(t, ok)
	assert.Equal(t, "acdepositfunds", form["method"])
	assert.Equal(t, "256772123456", form["account"])
	assert.Equal(t, "16000", form["amount"])
	assert.Equal(t, "TX1", form["external_reference"])
	assert.Equal(t, "http://localhost/payments/webhook/yo", form["instant_notification_url"])
}

func TestYoService_InitiatePaymentDeclined(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ERROR: Insufficient funds"))
	}))
	defer server.Close()

	yo := NewYoService(config.YoConfig{Username: "user", Password: "pass", APIURL: server.URL}, "", "256", time.Second)
	ok, msg := yo.InitiatePayment(context.Background(), "0772123456", decimal.NewFromInt(500), "TX1", "")
	assert.False(t, ok)
	assert.Equal(t, "Payment failed: Insufficient funds in your mobile money account", msg)
}

func TestMTNService_RequestToPay(t *testing.T) {
	var (
		referenceID string
		body        mtnRequestToPay
	)
	mux := http.NewServeMux()
	mux.HandleFunc("/collection/token/", func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "api-user", user)
		assert.Equal(t, "api-key", pass)
		json.NewEncoder(w).Encode(map[string]string{"access_token": "tok"})
	})
	mux.HandleFunc("/collection/v1_0/requesttopay", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "sandbox", r.Header.Get("X-Target-Environment"))
		referenceID = r.Header.Get("X-Reference-Id")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.WriteHeader(http.StatusAccepted)
	})
	mux.HandleFunc("/collection/v1_0/requesttopay/", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "SUCCESSFUL"})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	mtn := NewMTNService(config.MTNConfig{
		APIUser:           "api-user",
		APIKey:            "api-key",
		SubscriptionKey:   "sub",
		BaseURL:           server.URL,
		TargetEnvironment: "sandbox",
	}, "UGX", "256", time.Second)

	ok, _ := mtn.InitiatePayment(context.Background(), "0772123456", decimal.NewFromInt(16000), "TX1", "Order")
	require.True(t, ok)
	assert.Equal(t, mtnReferenceID("TX1"), referenceID)
	assert.Equal(t, "16000", body.Amount)
	assert.Equal(t, "256772123456", body.Payer.PartyID)
	assert.Equal(t, "TX1", body.ExternalID)

	code, ok := mtn.CheckPaymentStatus(context.Background(), "TX1")
	assert.True(t, ok)
	assert.Equal(t, "SUCCESSFUL", code)
}

func TestMTNService_MissingCredentials(t *testing.T) {
	mtn := NewMTNService(config.MTNConfig{}, "UGX", "256", time.Second)
	ok, msg := mtn.InitiatePayment(context.Background(), "0772123456", decimal.NewFromInt(1), "TX1", "")
	assert.False(t, ok)
	assert.Equal(t, "Failed to authenticate with MTN", msg)

	_, ok = mtn.CheckPaymentStatus(context.Background(), "TX1")
	assert.False(t, ok)
}

func TestAirtelService_Payment(t *testing.T) {
	var payment airtelPaymentRequest
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"access_token": "airtel-token"})
	})
	mux.HandleFunc("/merchant/v1/payments/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "UG", r.Header.Get("X-Country"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payment))
		w.Write([]byte(`{"data":{"status":"TIP"}}`))
	})
	mux.HandleFunc("/standard/v1/payments/TX1", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"transaction":{"id":"TX1","status":"TS"}}}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	airtel := NewAirtelService(config.AirtelConfig{ClientID: "id", ClientSecret: "secret", BaseURL: server.URL}, "256", time.Second)

	ok, _ := airtel.InitiatePayment(context.Background(), "0752123456", decimal.NewFromInt(8000), "TX1", "Order")
	require.True(t, ok)
	assert.Equal(t, "256752123456", payment.Subscriber.MSISDN)
	assert.Equal(t, "TX1", payment.Reference)
	assert.True(t, payment.Transaction.Amount.Equal(decimal.NewFromInt(8000)))

	code, ok := airtel.CheckPaymentStatus(context.Background(), "TX1")
	assert.True(t, ok)
	assert.Equal(t, "TS", code)
}

func TestAirtelService_Declined(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"access_token": "airtel-token"})
	})
	mux.HandleFunc("/merchant/v1/payments/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"status":"TF","message":"Subscriber not found"}}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	airtel := NewAirtelService(config.AirtelConfig{ClientID: "id", ClientSecret: "secret", BaseURL: server.URL}, "256", time.Second)
	ok, msg := airtel.InitiatePayment(context.Background(), "0752123456", decimal.NewFromInt(8000), "TX1", "")
	assert.False(t, ok)
	assert.Equal(t, "Subscriber not found", msg)
}

func TestProviderCallbacks(t *testing.T) {
	yo := NewYoService(config.YoConfig{}, "", "256", time.Second)
	cb := yo.ParseCallback(map[string]interface{}{
		"external_reference": []string{"TX1"},
		"transaction_status": []string{"SUCCEEDED"},
		"transaction_id":     []string{"YO123"},
	})
	assert.Equal(t, ProviderCallback{Reference: "TX1", Status: "SUCCEEDED", ProviderTransactionID: "YO123"}, cb)

	mtn := NewMTNService(config.MTNConfig{}, "UGX", "256", time.Second)
	cb = mtn.ParseCallback(map[string]interface{}{
		"externalId":             "TX2",
		"status":                 "FAILED",
		"financialTransactionId": "MTN9",
	})
	assert.Equal(t, ProviderCallback{Reference: "TX2", Status: "FAILED", ProviderTransactionID: "MTN9"}, cb)
}
