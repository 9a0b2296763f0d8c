package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	AppEnv         string
	Port           string
	RestaurantName string
	Currency       string
	CountryCode    string
	CORSOrigin     string
	JWTSecret      string
	JWTTTL         time.Duration
	AdminEmail     string
	AdminPassword  string

	Log           LogConfig
	Database      DatabaseConfig
	Payments      PaymentsConfig
	Notifications NotificationsConfig
	RabbitMQ      RabbitMQConfig
}

type LogConfig struct {
	Level  string
	Format string
}

type DatabaseConfig struct {
	Driver   string // mysql, postgres or sqlite
	DSN      string // overrides the discrete fields when set
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	LogLevel string
}

type PaymentsConfig struct {
	Timeout         time.Duration
	CallbackBaseURL string
	PendingTimeout  time.Duration
	PollInterval    time.Duration
	Yo              YoConfig
	MTN             MTNConfig
	Airtel          AirtelConfig
}

type YoConfig struct {
	Enabled  bool
	Username string
	Password string
	APIURL   string
}

type MTNConfig struct {
	Enabled           bool
	APIUser           string
	APIKey            string
	SubscriptionKey   string
	BaseURL           string
	TargetEnvironment string
}

type AirtelConfig struct {
	Enabled      bool
	ClientID     string
	ClientSecret string
	BaseURL      string
}

type NotificationsConfig struct {
	SMS   SMSConfig
	Email EmailConfig
}

type SMSConfig struct {
	Username string
	APIKey   string
	SenderID string
	APIURL   string
}

type EmailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type RabbitMQConfig struct {
	URL       string
	Exchange  string
	QueueSize int
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app_env", "development")
	v.SetDefault("port", "8080")
	v.SetDefault("restaurant_name", "Restaurant")
	v.SetDefault("currency", "UGX")
	v.SetDefault("country_code", "256")
	v.SetDefault("cors_origin", "*")
	v.SetDefault("jwt_secret", "")
	v.SetDefault("jwt_ttl", "24h")
	v.SetDefault("admin_email", "")
	v.SetDefault("admin_password", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("db.driver", "sqlite")
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.host", "127.0.0.1")
	v.SetDefault("db.port", "")
	v.SetDefault("db.user", "")
	v.SetDefault("db.password", "")
	v.SetDefault("db.name", "restaurant.db")
	v.SetDefault("db.log_level", "warn")

	v.SetDefault("payments.timeout", "30s")
	v.SetDefault("payments.callback_base_url", "http://localhost:8080")
	v.SetDefault("payments.pending_timeout", "30m")
	v.SetDefault("payments.poll_interval", "2m")
	v.SetDefault("payments.yo.enabled", true)
	v.SetDefault("payments.yo.username", "")
	v.SetDefault("payments.yo.password", "")
	v.SetDefault("payments.yo.api_url", "https://paymentsapi1.yo.co.ug/ybs/task.php")
	v.SetDefault("payments.mtn.enabled", true)
	v.SetDefault("payments.mtn.api_user", "")
	v.SetDefault("payments.mtn.api_key", "")
	v.SetDefault("payments.mtn.subscription_key", "")
	v.SetDefault("payments.mtn.base_url", "https://sandbox.momodeveloper.mtn.com")
	v.SetDefault("payments.mtn.target_environment", "sandbox")
	v.SetDefault("payments.airtel.enabled", true)
	v.SetDefault("payments.airtel.client_id", "")
	v.SetDefault("payments.airtel.client_secret", "")
	v.SetDefault("payments.airtel.base_url", "https://openapiuat.airtel.africa")

	v.SetDefault("sms.username", "")
	v.SetDefault("sms.api_key", "")
	v.SetDefault("sms.sender_id", "")
	v.SetDefault("sms.api_url", "https://api.africastalking.com/version1/messaging")
	v.SetDefault("email.host", "")
	v.SetDefault("email.port", 587)
	v.SetDefault("email.username", "")
	v.SetDefault("email.password", "")
	v.SetDefault("email.from", "noreply@restaurant.local")

	v.SetDefault("rabbitmq.url", "")
	v.SetDefault("rabbitmq.exchange", "restaurant_events")
	v.SetDefault("rabbitmq.queue_size", 256)
}

// Load reads .env (when present), an optional config file named by CONFIG_FILE
// and the environment. Nested keys map to env vars with dots replaced by
// underscores: payments.mtn.api_key -> PAYMENTS_MTN_API_KEY.
func Load() (*Config, error) {
	// .env is optional; real environment variables win over it
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file := v.GetString("config_file"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", file, err)
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		AppEnv:         v.GetString("app_env"),
		Port:           v.GetString("port"),
		RestaurantName: v.GetString("restaurant_name"),
		Currency:       v.GetString("currency"),
		CountryCode:    v.GetString("country_code"),
		CORSOrigin:     v.GetString("cors_origin"),
		JWTSecret:      v.GetString("jwt_secret"),
		JWTTTL:         v.GetDuration("jwt_ttl"),
		AdminEmail:     v.GetString("admin_email"),
		AdminPassword:  v.GetString("admin_password"),
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
		Database: DatabaseConfig{
			Driver:   v.GetString("db.driver"),
			DSN:      v.GetString("db.dsn"),
			Host:     v.GetString("db.host"),
			Port:     v.GetString("db.port"),
			User:     v.GetString("db.user"),
			Password: v.GetString("db.password"),
			Name:     v.GetString("db.name"),
			LogLevel: v.GetString("db.log_level"),
		},
		Payments: PaymentsConfig{
			Timeout:         v.GetDuration("payments.timeout"),
			CallbackBaseURL: strings.TrimRight(v.GetString("payments.callback_base_url"), "/"),
			PendingTimeout:  v.GetDuration("payments.pending_timeout"),
			PollInterval:    v.GetDuration("payments.poll_interval"),
			Yo: YoConfig{
				Enabled:  v.GetBool("payments.yo.enabled"),
				Username: v.GetString("payments.yo.username"),
				Password: v.GetString("payments.yo.password"),
				APIURL:   v.GetString("payments.yo.api_url"),
			},
			MTN: MTNConfig{
				Enabled:           v.GetBool("payments.mtn.enabled"),
				APIUser:           v.GetString("payments.mtn.api_user"),
				APIKey:            v.GetString("payments.mtn.api_key"),
				SubscriptionKey:   v.GetString("payments.mtn.subscription_key"),
				BaseURL:           strings.TrimRight(v.GetString("payments.mtn.base_url"), "/"),
				TargetEnvironment: v.GetString("payments.mtn.target_environment"),
			},
			Airtel: AirtelConfig{
				Enabled:      v.GetBool("payments.airtel.enabled"),
				ClientID:     v.GetString("payments.airtel.client_id"),
				ClientSecret: v.GetString("payments.airtel.client_secret"),
				BaseURL:      strings.TrimRight(v.GetString("payments.airtel.base_url"), "/"),
			},
		},
		Notifications: NotificationsConfig{
			SMS: SMSConfig{
				Username: v.GetString("sms.username"),
				APIKey:   v.GetString("sms.api_key"),
				SenderID: v.GetString("sms.sender_id"),
				APIURL:   v.GetString("sms.api_url"),
			},
			Email: EmailConfig{
				Host:     v.GetString("email.host"),
				Port:     v.GetInt("email.port"),
				Username: v.GetString("email.username"),
				Password: v.GetString("email.password"),
				From:     v.GetString("email.from"),
			},
		},
		RabbitMQ: RabbitMQConfig{
			URL:       v.GetString("rabbitmq.url"),
			Exchange:  v.GetString("rabbitmq.exchange"),
			QueueSize: v.GetInt("rabbitmq.queue_size"),
		},
	}
}

// CallbackURL returns the webhook URL a provider should call back on.
func (c *Config) CallbackURL(provider string) string {
	return fmt.Sprintf("%s/payments/webhook/%s", c.Payments.CallbackBaseURL, provider)
}
