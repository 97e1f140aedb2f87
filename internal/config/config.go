package config

import (
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	PayFast  PayFastConfig
	Payment  PaymentConfig
	Telegram TelegramConfig
	Mail     MailConfig
	API      APIConfig
}

type ServerConfig struct {
	Port           int
	Env            string // "development", "production"
	// TrustedProxies are the CIDRs whose X-Forwarded-For header is believed.
	TrustedProxies []string
}

type DatabaseConfig struct {
	Host    string
	Port    string
	Name    string
	User    string
	Pass    string
	Charset string
}

type RedisConfig struct {
	Addr string
	Pass string
	DB   int
}

// PayFastConfig holds the merchant account settings passed to the codec.
type PayFastConfig struct {
	MerchantID   string
	MerchantKey  string
	Passphrase   string
	Sandbox      bool
	ReturnURL    string
	CancelURL    string
	NotifyURL    string
	Confirm      bool // server-to-server confirmation of notifications
	SourceCheck  bool
	AllowedCIDRs []string
}

type PaymentConfig struct {
	PendingTTL     time.Duration
	ReconcileBatch int
	Organisation   string // shown on receipts and the checkout item name
}

type TelegramConfig struct {
	Token  string
	ChatID int64
}

type MailConfig struct {
	Host string
	Port int
	User string
	Pass string
	From string
}

type APIConfig struct {
	Key string
}

// defaultPayFastCIDRs are the published PayFast notification source ranges.
var defaultPayFastCIDRs = []string{
	"197.97.145.144/28",
	"41.74.179.192/27",
	"102.216.36.0/28",
	"102.216.36.128/28",
	"144.126.193.139/32",
}

// Load reads configuration from .env file and environment variables.
func Load() (*Config, error) {
	// Load .env file (ignore error if missing)
	_ = godotenv.Load()

	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("APP_PORT", 8080)
	viper.SetDefault("APP_ENV", "production")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "3306")
	viper.SetDefault("DB_CHARSET", "utf8mb4")
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("PAYFAST_SANDBOX", true)
	viper.SetDefault("PAYFAST_CONFIRM", true)
	viper.SetDefault("PAYFAST_SOURCE_CHECK", false)
	viper.SetDefault("PAYFAST_ALLOWED_CIDRS", strings.Join(defaultPayFastCIDRs, ","))
	viper.SetDefault("PAYMENT_PENDING_TTL", "24h")
	viper.SetDefault("PAYMENT_RECONCILE_BATCH", 50)
	viper.SetDefault("PAYMENT_ORGANISATION", "Academy")
	viper.SetDefault("SMTP_PORT", 587)

	pendingTTL, err := time.ParseDuration(viper.GetString("PAYMENT_PENDING_TTL"))
	if err != nil {
		pendingTTL = 24 * time.Hour
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:           viper.GetInt("APP_PORT"),
			Env:            viper.GetString("APP_ENV"),
			TrustedProxies: splitList(viper.GetString("TRUSTED_PROXIES")),
		},
		Database: DatabaseConfig{
			Host:    viper.GetString("DB_HOST"),
			Port:    viper.GetString("DB_PORT"),
			Name:    viper.GetString("DB_NAME"),
			User:    viper.GetString("DB_USER"),
			Pass:    viper.GetString("DB_PASS"),
			Charset: viper.GetString("DB_CHARSET"),
		},
		Redis: RedisConfig{
			Addr: viper.GetString("REDIS_ADDR"),
			Pass: viper.GetString("REDIS_PASS"),
			DB:   viper.GetInt("REDIS_DB"),
		},
		PayFast: PayFastConfig{
			MerchantID:   viper.GetString("PAYFAST_MERCHANT_ID"),
			MerchantKey:  viper.GetString("PAYFAST_MERCHANT_KEY"),
			Passphrase:   viper.GetString("PAYFAST_PASSPHRASE"),
			Sandbox:      viper.GetBool("PAYFAST_SANDBOX"),
			ReturnURL:    viper.GetString("PAYFAST_RETURN_URL"),
			CancelURL:    viper.GetString("PAYFAST_CANCEL_URL"),
			NotifyURL:    viper.GetString("PAYFAST_NOTIFY_URL"),
			Confirm:      viper.GetBool("PAYFAST_CONFIRM"),
			SourceCheck:  viper.GetBool("PAYFAST_SOURCE_CHECK"),
			AllowedCIDRs: splitList(viper.GetString("PAYFAST_ALLOWED_CIDRS")),
		},
		Payment: PaymentConfig{
			PendingTTL:     pendingTTL,
			ReconcileBatch: viper.GetInt("PAYMENT_RECONCILE_BATCH"),
			Organisation:   viper.GetString("PAYMENT_ORGANISATION"),
		},
		Telegram: TelegramConfig{
			Token:  viper.GetString("TELEGRAM_TOKEN"),
			ChatID: viper.GetInt64("TELEGRAM_CHAT_ID"),
		},
		Mail: MailConfig{
			Host: viper.GetString("SMTP_HOST"),
			Port: viper.GetInt("SMTP_PORT"),
			User: viper.GetString("SMTP_USER"),
			Pass: viper.GetString("SMTP_PASS"),
			From: viper.GetString("SMTP_FROM"),
		},
		API: APIConfig{
			Key: viper.GetString("API_KEY"),
		},
	}

	if cfg.Database.Name == "" {
		log.Println("WARNING: DB_NAME is not set")
	}
	if cfg.PayFast.MerchantID == "" || cfg.PayFast.MerchantKey == "" {
		log.Println("WARNING: PAYFAST_MERCHANT_ID / PAYFAST_MERCHANT_KEY are not set")
	}
	if cfg.API.Key == "" {
		log.Println("WARNING: API_KEY is not set, admin API is disabled")
	}

	return cfg, nil
}

// LoadDatabaseOnly reads just the database settings, for the migrate-only mode.
func LoadDatabaseOnly() (*DatabaseConfig, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}
	return &cfg.Database, nil
}

// DSN returns the MySQL DSN string for GORM.
func (d *DatabaseConfig) DSN() string {
	return d.User + ":" + d.Pass + "@tcp(" + d.Host + ":" + d.Port + ")/" + d.Name + "?charset=" + d.Charset + "&parseTime=True&loc=Local"
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
