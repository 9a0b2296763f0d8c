package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/restaurant-momo/config"
	"github.com/yeremiapane/restaurant-momo/models"
)

type capturedMessage struct {
	to, subject, body string
}

type captureSender struct {
	mu   sync.Mutex
	sent []capturedMessage
	err  error
}

func (c *captureSender) SendSMS(_ context.Context, phone, message string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, capturedMessage{to: phone, body: message})
	return c.err
}

func (c *captureSender) SendEmail(_ context.Context, to, subject, body string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, capturedMessage{to: to, subject: subject, body: body})
	return c.err
}

func orderContext() map[string]string {
	return map[string]string{
		"user_name":     "Amina",
		"restaurant":    "Momo Kitchen",
		"order_number":  "ORD000007",
		"order_total":   "UGX 16,000",
		"status_update": "is ready for pickup",
	}
}

func TestNotificationService_SendsSMSAndEmail(t *testing.T) {
	db := newTestDB(t)
	sms := &captureSender{}
	email := &captureSender{}
	svc := NewNotificationService(db, sms, email, "256")

	results := svc.SendNotification(context.Background(), models.NotificationOrderReady,
		Recipient{Phone: "0772123456", Email: "amina@example.com"}, orderContext())

	require.Len(t, results, 2)
	assert.Equal(t, models.ChannelEmail, results[0].Channel)
	assert.Equal(t, models.ChannelSMS, results[1].Channel)
	for _, r := range results {
		assert.True(t, r.Success)
		assert.NotZero(t, r.LogID)
	}

	require.Len(t, sms.sent, 1)
	assert.Equal(t, "+256772123456", sms.sent[0].to)
	assert.Equal(t, "Momo Kitchen: Order ORD000007 is ready for pickup. Total: UGX 16,000", sms.sent[0].body)

	require.Len(t, email.sent, 1)
	assert.Equal(t, "Order ORD000007 Update - Momo Kitchen", email.sent[0].subject)
	assert.Contains(t, email.sent[0].body, "Dear Amina")

	var logs []models.NotificationLog
	require.NoError(t, db.Order("id ASC").Find(&logs).Error)
	require.Len(t, logs, 2)
	for _, entry := range logs {
		assert.Equal(t, models.NotificationStatusSent, entry.Status)
		assert.NotNil(t, entry.SentAt)
		assert.Equal(t, "ORD000007", entry.ContextData["order_number"])
	}
}

func TestNotificationService_RecordsFailures(t *testing.T) {
	db := newTestDB(t)
	sms := &captureSender{err: errors.New("gateway down")}
	svc := NewNotificationService(db, sms, nil, "256")

	results := svc.SendNotification(context.Background(), models.NotificationOrderReady,
		Recipient{Phone: "0772123456", Email: "ignored@example.com"}, orderContext())

	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
	assert.Equal(t, "gateway down", results[0].Error)

	var entry models.NotificationLog
	require.NoError(t, db.First(&entry, results[0].LogID).Error)
	assert.Equal(t, models.NotificationStatusFailed, entry.Status)
	assert.Equal(t, "gateway down", entry.ErrorMessage)
}

func TestNotificationService_MissingTemplate(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Model(&models.NotificationTemplate{}).
		Where("notification_type = ?", models.NotificationWelcome).
		Update("is_active", false).Error)
	sms := &captureSender{}
	svc := NewNotificationService(db, sms, nil, "256")

	results := svc.SendNotification(context.Background(), models.NotificationWelcome, Recipient{Phone: "0772123456"}, nil)
	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
	assert.Contains(t, results[0].Error, "no active template")
	assert.Empty(t, sms.sent)
}

func TestNotificationService_TruncatesSMS(t *testing.T) {
	db := newTestDB(t)
	sms := &captureSender{}
	svc := NewNotificationService(db, sms, nil, "256")

	data := map[string]string{"title": "disk", "message": strings.Repeat("x", 400)}
	results := svc.SendNotification(context.Background(), models.NotificationSystemAlert, Recipient{Phone: "0772123456"}, data)
	require.Len(t, results, 1)
	require.Len(t, sms.sent, 1)
	assert.Len(t, sms.sent[0].body, 160)
}

func TestNotificationService_TruncatesSMSOnCharacterBoundary(t *testing.T) {
	db := newTestDB(t)
	sms := &captureSender{}
	svc := NewNotificationService(db, sms, nil, "256")

	data := map[string]string{"title": "menu", "message": "a" + strings.Repeat("é", 200)}
	results := svc.SendNotification(context.Background(), models.NotificationSystemAlert, Recipient{Phone: "0772123456"}, data)
	require.Len(t, results, 1)
	require.Len(t, sms.sent, 1)

	body := sms.sent[0].body
	assert.True(t, utf8.ValidString(body))
	assert.Equal(t, 160, utf8.RuneCountInString(body))
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "short", truncateRunes("short", 160))
	assert.Equal(t, "aé", truncateRunes("aéé", 2))
	assert.Equal(t, "ü", truncateRunes("ü", 1))
	assert.Equal(t, "", truncateRunes("abc", 0))
}

func TestRenderTemplate(t *testing.T) {
	out, err := renderTemplate("Hi {{.user_name}}, order {{.order_number}}", map[string]string{"user_name": "Amina"})
	require.NoError(t, err)
	assert.Equal(t, "Hi Amina, order ", out)

	_, err = renderTemplate("{{.broken", nil)
	assert.Error(t, err)
}

func TestFormatSMSPhone(t *testing.T) {
	assert.Equal(t, "+256772123456", FormatSMSPhone("0772123456", "256"))
	assert.Equal(t, "+256772123456", FormatSMSPhone("772123456", "256"))
	assert.Equal(t, "+256772123456", FormatSMSPhone("256772123456", "256"))
	assert.Equal(t, "+254712345678", FormatSMSPhone("+254712345678", "256"))
	assert.Equal(t, "n/a", FormatSMSPhone("n/a", "256"))
}

func TestAfricasTalkingSMS(t *testing.T) {
	var to, apiKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		to = r.PostForm.Get("to")
		apiKey = r.Header.Get("apiKey")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"SMSMessageData":{"Recipients":[{"status":"Success"}]}}`))
	}))
	defer server.Close()

	sender := NewAfricasTalkingSMS(config.SMSConfig{Username: "sandbox", APIKey: "key", APIURL: server.URL}, time.Second)
	require.NoError(t, sender.SendSMS(context.Background(), "+256772123456", "hello"))
	assert.Equal(t, "+256772123456", to)
	assert.Equal(t, "key", apiKey)
}

func TestAfricasTalkingSMS_Rejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"SMSMessageData":{"Recipients":[{"status":"InvalidPhoneNumber"}]}}`))
	}))
	defer server.Close()

	sender := NewAfricasTalkingSMS(config.SMSConfig{Username: "sandbox", APIKey: "key", APIURL: server.URL}, time.Second)
	err := sender.SendSMS(context.Background(), "+256000", "hello")
	assert.EqualError(t, err, "sms rejected: InvalidPhoneNumber")
}
