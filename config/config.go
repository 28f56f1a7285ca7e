package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config структура конфигурации приложения
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Auth     AuthConfig
	Stripe   StripeConfig
	Assist   AssistConfig
	Logging  LoggingConfig
}

// ServerConfig конфигурация HTTP сервера
type ServerConfig struct {
	Port            string
	ReadTimeout     int
	WriteTimeout    int
	ShutdownTimeout int
}

// DatabaseConfig конфигурация базы данных
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// RedisConfig конфигурация Redis
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// KafkaConfig конфигурация Kafka
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// AuthConfig конфигурация аутентификации
type AuthConfig struct {
	JWTSecret string
}

// StripeConfig конфигурация Stripe
type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	// Идентификаторы цен Stripe для платных планов
	PriceProMonthly      string
	PriceProYearly       string
	PriceBusinessMonthly string
	PriceBusinessYearly  string
	// URL-ы возврата для hosted-страниц Stripe
	CheckoutSuccessURL string
	CheckoutCancelURL  string
	PortalReturnURL    string
	TrialPeriodDays    int
}

// AssistConfig конфигурация сервиса генерации текста для чат-бота поддержки
type AssistConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

// LoggingConfig конфигурация логгера
type LoggingConfig struct {
	Level string
}

// GetDSN возвращает строку подключения к базе данных
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// Load загружает конфигурацию из переменных окружения
func Load() (*Config, error) {
	// В локальной среде подхватываем .env, в production его нет
	if os.Getenv("APP_ENV") != "production" {
		_ = godotenv.Load()
	}
	viper.AutomaticEnv()

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", "8080"),
			ReadTimeout:     getEnvAsInt("SERVER_READ_TIMEOUT", 15),
			WriteTimeout:    getEnvAsInt("SERVER_WRITE_TIMEOUT", 15),
			ShutdownTimeout: getEnvAsInt("SERVER_SHUTDOWN_TIMEOUT", 30),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			Database: getEnv("DB_NAME", "offerflow"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Brokers: strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
			Topic:   getEnv("KAFKA_TOPIC", "subscription_events"),
		},
		Auth: AuthConfig{
			JWTSecret: viper.GetString("JWT_SECRET"),
		},
		Stripe: StripeConfig{
			SecretKey:            viper.GetString("STRIPE_SECRET_KEY"),
			WebhookSecret:        viper.GetString("STRIPE_WEBHOOK_SECRET"),
			PriceProMonthly:      getEnv("STRIPE_PRICE_PRO_MONTHLY", ""),
			PriceProYearly:       getEnv("STRIPE_PRICE_PRO_YEARLY", ""),
			PriceBusinessMonthly: getEnv("STRIPE_PRICE_BUSINESS_MONTHLY", ""),
			PriceBusinessYearly:  getEnv("STRIPE_PRICE_BUSINESS_YEARLY", ""),
			CheckoutSuccessURL:   getEnv("STRIPE_CHECKOUT_SUCCESS_URL", "https://app.offerflow.io/billing/success"),
			CheckoutCancelURL:    getEnv("STRIPE_CHECKOUT_CANCEL_URL", "https://app.offerflow.io/billing/cancel"),
			PortalReturnURL:      getEnv("STRIPE_PORTAL_RETURN_URL", "https://app.offerflow.io/account"),
			TrialPeriodDays:      getEnvAsInt("STRIPE_TRIAL_PERIOD_DAYS", 30),
		},
		Assist: AssistConfig{
			BaseURL: getEnv("ASSIST_BASE_URL", "https://api.openai.com/v1"),
			APIKey:  getEnv("ASSIST_API_KEY", ""),
			Model:   getEnv("ASSIST_MODEL", "gpt-4o-mini"),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate проверяет обязательные секреты на старте приложения.
// Отсутствие секретов должно останавливать сервис сразу, а не
// проявляться ошибкой на каждом запросе.
func (c *Config) Validate() error {
	var missing []string

	if c.Auth.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if c.Stripe.SecretKey == "" {
		missing = append(missing, "STRIPE_SECRET_KEY")
	}
	if c.Stripe.WebhookSecret == "" {
		missing = append(missing, "STRIPE_WEBHOOK_SECRET")
	}

	if len(missing) > 0 {
		return errors.New("missing required environment variables: " + strings.Join(missing, ", "))
	}
	return nil
}

// getEnv получает значение переменной окружения или возвращает значение по умолчанию
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvAsInt получает значение переменной окружения как int или возвращает значение по умолчанию
func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
