package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

const (
	StoreScylla   = "scylla"
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Config est lue depuis .env puis les variables d'environnement.
type Config struct {
	Port        string `mapstructure:"PORT"`
	GinMode     string `mapstructure:"GIN_MODE"`
	LogLevel    string `mapstructure:"LOG_LEVEL"`
	StoreDriver string `mapstructure:"STORE_DRIVER"`
	CORSOrigins string `mapstructure:"CORS_ORIGINS"`

	// ScyllaDB : un rôle par keyspace
	ScyllaHosts            string `mapstructure:"SCYLLA_HOSTS"`
	ScyllaSSLEnabled       bool   `mapstructure:"SCYLLA_SSL_ENABLED"`
	ScyllaSSLCAPath        string `mapstructure:"SCYLLA_SSL_CA_PATH"`
	ScyllaProductsKeyspace string `mapstructure:"SCYLLA_KS_PRODUCTS_KEYSPACE"`
	ScyllaProductsRole     string `mapstructure:"SCYLLA_KS_PRODUCTS_ROLE"`
	ScyllaProductsPassword string `mapstructure:"SCYLLA_KS_PRODUCTS_PASSWORD"`
	ScyllaUsersKeyspace    string `mapstructure:"SCYLLA_KS_USERS_KEYSPACE"`
	ScyllaUsersRole        string `mapstructure:"SCYLLA_KS_USERS_ROLE"`
	ScyllaUsersPassword    string `mapstructure:"SCYLLA_KS_USERS_PASSWORD"`
	ScyllaOrdersKeyspace   string `mapstructure:"SCYLLA_KS_ORDERS_KEYSPACE"`
	ScyllaOrdersRole       string `mapstructure:"SCYLLA_KS_ORDERS_ROLE"`
	ScyllaOrdersPassword   string `mapstructure:"SCYLLA_KS_ORDERS_PASSWORD"`

	// PostgreSQL
	DBHost     string `mapstructure:"DB_HOST"`
	DBPort     int    `mapstructure:"DB_PORT"`
	DBUser     string `mapstructure:"DB_USER"`
	DBPassword string `mapstructure:"DB_PASSWORD"`
	DBName     string `mapstructure:"DB_NAME"`
	DBSSLMode  string `mapstructure:"DB_SSL_MODE"`

	RedisHost     string `mapstructure:"REDIS_HOST"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`

	ElasticURL      string `mapstructure:"ELASTIC_URL"`
	ElasticUser     string `mapstructure:"ELASTIC_USER"`
	ElasticPassword string `mapstructure:"ELASTIC_PASSWORD"`
	ElasticIndex    string `mapstructure:"ELASTIC_INDEX"`

	MinioEndpoint  string `mapstructure:"MINIO_ENDPOINT"`
	MinioAccessKey string `mapstructure:"MINIO_ACCESS_KEY"`
	MinioSecretKey string `mapstructure:"MINIO_SECRET_KEY"`
	MinioBucket    string `mapstructure:"MINIO_BUCKET"`
	MinioUseSSL    bool   `mapstructure:"MINIO_USE_SSL"`
	MinioPublicURL string `mapstructure:"MINIO_PUBLIC_URL"`

	RabbitMQURL      string `mapstructure:"RABBITMQ_URL"`
	RabbitMQExchange string `mapstructure:"RABBITMQ_EXCHANGE"`

	StripeSecretKey     string `mapstructure:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret string `mapstructure:"STRIPE_WEBHOOK_SECRET"`
	PaymentCurrency     string `mapstructure:"PAYMENT_CURRENCY"`
	PaymentSuccessURL   string `mapstructure:"PAYMENT_SUCCESS_URL"`
	PaymentCancelURL    string `mapstructure:"PAYMENT_CANCEL_URL"`

	// Annule la commande et restitue le stock sur échec définitif du paiement.
	ReleaseStockOnPaymentFailure bool `mapstructure:"RELEASE_STOCK_ON_PAYMENT_FAILURE"`

	JWTSecret string        `mapstructure:"JWT_SECRET"`
	JWTTTL    time.Duration `mapstructure:"JWT_TTL"`

	SMTPHost     string `mapstructure:"SMTP_HOST"`
	SMTPPort     int    `mapstructure:"SMTP_PORT"`
	SMTPUser     string `mapstructure:"SMTP_USER"`
	SMTPPassword string `mapstructure:"SMTP_PASSWORD"`
	SMTPFrom     string `mapstructure:"SMTP_FROM"`
}

var defaults = map[string]interface{}{
	"PORT":         "8080",
	"GIN_MODE":     "release",
	"LOG_LEVEL":    "info",
	"STORE_DRIVER": StoreScylla,
	"CORS_ORIGINS": "http://localhost:3000",

	"SCYLLA_HOSTS":                "127.0.0.1",
	"SCYLLA_SSL_ENABLED":          false,
	"SCYLLA_SSL_CA_PATH":          "",
	"SCYLLA_KS_PRODUCTS_KEYSPACE": "shop_products",
	"SCYLLA_KS_PRODUCTS_ROLE":     "",
	"SCYLLA_KS_PRODUCTS_PASSWORD": "",
	"SCYLLA_KS_USERS_KEYSPACE":    "shop_users",
	"SCYLLA_KS_USERS_ROLE":        "",
	"SCYLLA_KS_USERS_PASSWORD":    "",
	"SCYLLA_KS_ORDERS_KEYSPACE":   "shop_orders",
	"SCYLLA_KS_ORDERS_ROLE":       "",
	"SCYLLA_KS_ORDERS_PASSWORD":   "",

	"DB_HOST":     "localhost",
	"DB_PORT":     5432,
	"DB_USER":     "postgres",
	"DB_PASSWORD": "postgres",
	"DB_NAME":     "shop",
	"DB_SSL_MODE": "disable",

	"REDIS_HOST":     "",
	"REDIS_PASSWORD": "",

	"ELASTIC_URL":      "",
	"ELASTIC_USER":     "",
	"ELASTIC_PASSWORD": "",
	"ELASTIC_INDEX":    "products",

	"MINIO_ENDPOINT":   "",
	"MINIO_ACCESS_KEY": "",
	"MINIO_SECRET_KEY": "",
	"MINIO_BUCKET":     "product-images",
	"MINIO_USE_SSL":    false,
	"MINIO_PUBLIC_URL": "",

	"RABBITMQ_URL":      "",
	"RABBITMQ_EXCHANGE": "shop.orders",

	"STRIPE_SECRET_KEY":     "",
	"STRIPE_WEBHOOK_SECRET": "",
	"PAYMENT_CURRENCY":      "eur",
	"PAYMENT_SUCCESS_URL":   "http://localhost:3000/checkout/success",
	"PAYMENT_CANCEL_URL":    "http://localhost:3000/checkout/cancel",

	"RELEASE_STOCK_ON_PAYMENT_FAILURE": true,

	"JWT_SECRET": "",
	"JWT_TTL":    24 * time.Hour,

	"SMTP_HOST":     "",
	"SMTP_PORT":     587,
	"SMTP_USER":     "",
	"SMTP_PASSWORD": "",
	"SMTP_FROM":     "",
}

// Load charge .env s'il existe puis l'environnement. Les variables système
// l'emportent sur le fichier.
func Load() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Info().Msg("⚠️ Aucun fichier .env trouvé, on continue avec les variables d'environnement du système")
	} else {
		log.Info().Msg("✅ Fichier .env chargé")
	}

	v := viper.New()
	v.AutomaticEnv()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("lecture de la configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	switch c.StoreDriver {
	case StoreScylla, StorePostgres, StoreMemory:
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER inconnu : %q", c.StoreDriver))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET manquant"))
	}
	if c.StripeSecretKey == "" {
		errs = append(errs, errors.New("STRIPE_SECRET_KEY manquant"))
	}
	if c.StripeWebhookSecret == "" {
		errs = append(errs, errors.New("STRIPE_WEBHOOK_SECRET manquant"))
	}
	if c.JWTTTL <= 0 {
		errs = append(errs, errors.New("JWT_TTL doit être positif"))
	}
	return errors.Join(errs...)
}

func (c *Config) ScyllaHostList() []string {
	return splitList(c.ScyllaHosts)
}

func (c *Config) CORSOriginList() []string {
	return splitList(c.CORSOrigins)
}

func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode)
}

func (c *Config) SMTPEnabled() bool {
	return c.SMTPHost != "" && c.SMTPFrom != ""
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
