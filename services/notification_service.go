package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/smtp"
	"net/url"
	"strings"
	"text/template"
	"time"
	"unicode/utf8"

	"github.com/yeremiapane/restaurant-momo/config"
	"github.com/yeremiapane/restaurant-momo/models"
	"github.com/yeremiapane/restaurant-momo/utils"
	"gorm.io/gorm"
)

const smsMaxLength = 160

// Recipient is where a notification goes; either field may be empty.
type Recipient struct {
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`
}

// DeliveryResult reports one channel attempt.
type DeliveryResult struct {
	Channel   string `json:"channel"`
	Recipient string `json:"recipient"`
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
	LogID     uint   `json:"log_id,omitempty"`
}

// NotificationDispatcher sends templated notifications. It never fails the
// caller: problems are reported in the returned results.
type NotificationDispatcher interface {
	SendNotification(ctx context.Context, notificationType string, recipient Recipient, contextData map[string]string) []DeliveryResult
}

type SMSSender interface {
	SendSMS(ctx context.Context, phone, message string) error
}

type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// NotificationService renders NotificationTemplates and delivers them by SMS
// and email, logging every attempt.
type NotificationService struct {
	db          *gorm.DB
	sms         SMSSender
	email       EmailSender
	countryCode string
}

// NewNotificationService wires the channels. A nil sms sender falls back to
// the logging simulator; a nil email sender disables email.
func NewNotificationService(db *gorm.DB, sms SMSSender, email EmailSender, countryCode string) *NotificationService {
	if sms == nil {
		sms = SimulatedSMS{}
	}
	if countryCode == "" {
		countryCode = "256"
	}
	return &NotificationService{db: db, sms: sms, email: email, countryCode: countryCode}
}

func (s *NotificationService) SendNotification(ctx context.Context, notificationType string, recipient Recipient, contextData map[string]string) []DeliveryResult {
	var tmpl models.NotificationTemplate
	err := s.db.WithContext(ctx).
		Where("notification_type = ? AND is_active = ?", notificationType, true).
		First(&tmpl).Error
	if err != nil {
		msg := fmt.Sprintf("no active template for %s", notificationType)
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			msg = fmt.Sprintf("load template %s: %v", notificationType, err)
		}
		utils.ErrorLogger.Error(msg)
		return []DeliveryResult{{Success: false, Error: msg}}
	}

	subject, err := renderTemplate(tmpl.SubjectTemplate, contextData)
	if err != nil {
		return []DeliveryResult{{Success: false, Error: err.Error()}}
	}
	message, err := renderTemplate(tmpl.MessageTemplate, contextData)
	if err != nil {
		return []DeliveryResult{{Success: false, Error: err.Error()}}
	}

	var results []DeliveryResult

	if recipient.Email != "" && s.email != nil {
		results = append(results, s.deliver(ctx, &tmpl, models.ChannelEmail, recipient.Email, subject, message, contextData,
			func() error { return s.email.SendEmail(ctx, recipient.Email, subject, message) }))
	}

	if recipient.Phone != "" {
		smsText := message
		if tmpl.SMSTemplate != nil && *tmpl.SMSTemplate != "" {
			if rendered, err := renderTemplate(*tmpl.SMSTemplate, contextData); err == nil {
				smsText = rendered
			}
		}
		smsText = truncateRunes(smsText, smsMaxLength)
		phone := FormatSMSPhone(recipient.Phone, s.countryCode)
		results = append(results, s.deliver(ctx, &tmpl, models.ChannelSMS, phone, "", smsText, contextData,
			func() error { return s.sms.SendSMS(ctx, phone, smsText) }))
	}

	return results
}

// deliver records the attempt, runs send and stores the outcome.
func (s *NotificationService) deliver(ctx context.Context, tmpl *models.NotificationTemplate, channel, to, subject, message string,
	contextData map[string]string, send func() error) DeliveryResult {

	entry := models.NotificationLog{
		TemplateID:  &tmpl.ID,
		Channel:     channel,
		Recipient:   to,
		Subject:     subject,
		Message:     message,
		Status:      models.NotificationStatusPending,
		ContextData: contextData,
	}
	db := s.db.WithContext(ctx)
	if err := db.Create(&entry).Error; err != nil {
		utils.ErrorLogger.Errorf("Failed to log %s notification: %v", channel, err)
	}

	result := DeliveryResult{Channel: channel, Recipient: to, LogID: entry.ID}
	if err := send(); err != nil {
		entry.Status = models.NotificationStatusFailed
		entry.ErrorMessage = err.Error()
		result.Error = err.Error()
		utils.ErrorLogger.Errorf("%s to %s failed: %v", strings.ToUpper(channel), to, err)
	} else {
		now := time.Now()
		entry.Status = models.NotificationStatusSent
		entry.SentAt = &now
		result.Success = true
	}

	if entry.ID != 0 {
		if err := db.Model(&entry).Updates(map[string]interface{}{
			"status":        entry.Status,
			"error_message": entry.ErrorMessage,
			"sent_at":       entry.SentAt,
		}).Error; err != nil {
			utils.ErrorLogger.Errorf("Failed to update notification log %d: %v", entry.ID, err)
		}
	}
	return result
}

func renderTemplate(text string, data map[string]string) (string, error) {
	t, err := template.New("notification").Option("missingkey=zero").Parse(text)
	if err != nil {
		return "", fmt.Errorf("parse template: %w", err)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render template: %w", err)
	}
	return buf.String(), nil
}

// truncateRunes cuts s to at most n characters without splitting a
// multi-byte character.
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

// FormatSMSPhone turns local numbers into international form:
// 0772123456 -> +256772123456, 772123456 -> +256772123456.
func FormatSMSPhone(phone, countryCode string) string {
	digits := digitsOnly(phone)
	switch {
	case digits == "":
		return phone
	case strings.HasPrefix(digits, countryCode):
		return "+" + digits
	case strings.HasPrefix(digits, "0"):
		return "+" + countryCode + digits[1:]
	case strings.HasPrefix(strings.TrimSpace(phone), "+"):
		return "+" + digits
	default:
		return "+" + countryCode + digits
	}
}

// SimulatedSMS logs messages instead of sending them. Used when no SMS gateway is configured.
type SimulatedSMS struct{}

func (SimulatedSMS) SendSMS(_ context.Context, phone, message string) error {
	utils.InfoLogger.Infof("[SMS SIMULATOR] To: %s | Message: %s", phone, message)
	return nil
}

// AfricasTalkingSMS sends SMS through the Africa's Talking messaging API.
type AfricasTalkingSMS struct {
	cfg        config.SMSConfig
	httpClient *http.Client
}

func NewAfricasTalkingSMS(cfg config.SMSConfig, timeout time.Duration) *AfricasTalkingSMS {
	return &AfricasTalkingSMS{cfg: cfg, httpClient: &http.Client{Timeout: timeout}}
}

func (a *AfricasTalkingSMS) SendSMS(ctx context.Context, phone, message string) error {
	form := url.Values{}
	form.Set("username", a.cfg.Username)
	form.Set("to", phone)
	form.Set("message", message)
	if a.cfg.SenderID != "" {
		form.Set("from", a.cfg.SenderID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.APIURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build sms request: %w", err)
	}
	req.Header.Set("apiKey", a.cfg.APIKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sms gateway unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("sms gateway returned HTTP %d", resp.StatusCode)
	}

	var body struct {
		SMSMessageData struct {
			Recipients []struct {
				Status string `json:"status"`
			} `json:"Recipients"`
		} `json:"SMSMessageData"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("decode sms gateway response: %w", err)
	}
	for _, r := range body.SMSMessageData.Recipients {
		if r.Status != "Success" {
			return fmt.Errorf("sms rejected: %s", r.Status)
		}
	}
	return nil
}

// SMTPEmail delivers plain text email over SMTP.
type SMTPEmail struct {
	cfg config.EmailConfig
}

func NewSMTPEmail(cfg config.EmailConfig) *SMTPEmail {
	return &SMTPEmail{cfg: cfg}
}

func (e *SMTPEmail) SendEmail(_ context.Context, to, subject, body string) error {
	addr := fmt.Sprintf("%s:%d", e.cfg.Host, e.cfg.Port)
	var auth smtp.Auth
	if e.cfg.Username != "" {
		auth = smtp.PlainAuth("", e.cfg.Username, e.cfg.Password, e.cfg.Host)
	}

	msg := strings.Join([]string{
		"From: " + e.cfg.From,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=UTF-8",
		"",
		body,
	}, "\r\n")

	if err := smtp.SendMail(addr, auth, e.cfg.From, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}
