package config

import (
	"fmt"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

// defaultScope is the full read scope requested from the ezyVet OAuth
// endpoint when none is configured.
const defaultScope = "read-receiveinvoice,read-diagnosticrequest,read-tagcategory,read-systemsetting,read-contactdetailtype,read-shelteranimalbooking,read-stocktransaction,read-webhookevents,read-presentingproblem,read-purchaseorder,read-country,read-productsupplier,read-animal,read-payment,read-consult,read-presentingproblemlink,read-ledgeraccount,read-diagnostic,read-therapeutic,read-diagnosticresultitem,read-address,read-species,read-plan,read-purchaseorderitem,read-wellnessplanmembership,read-vaccination,read-productminimumstock,read-transaction,read-integrateddiagnostic,read-stockadjustmentitem,read-wellnessplanmembershipstatusperiod,read-tag,read-invoice,read-contact,read-sex,read-animalcolour,read-batch,read-assessment,read-healthstatus,read-breed,read-invoiceline,read-wellnessplanbenefit,read-receiveinvoiceitem,read-separation,read-priceadjustment,read-user,read-resource,read-prescriptionitem,read-prescription,read-physicalexam,read-billingcredit,read-appointmentstatus,read-paymentmethod,read-tagname,read-taxrate,read-communication,read-wellnessplanmembershipoption,read-stockadjustment,read-appointmenttype,read-productgroup,read-webhooks,read-product,read-operation,read-history,read-diagnosticresult,read-paymentallocation,read-attachment,read-contactdetail,read-productpricing,read-contactassociation,read-wellnessplanbenefititem,read-appointment,read-jobqueue,read-wellnessplan"

type Config struct {
	Server    ServerConfig              `mapstructure:"server"`
	Database  DatabaseConfig            `mapstructure:"database"`
	Redis     RedisConfig               `mapstructure:"redis"`
	EzyVet    EzyVetConfig              `mapstructure:"ezyvet"`
	Log       LogConfig                 `mapstructure:"log"`
	Locations map[string]LocationConfig `mapstructure:"locations" validate:"required,min=1,dive"`
}

type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host" envconfig:"DB_HOST"`
	Port     int    `mapstructure:"port" envconfig:"DB_PORT"`
	User     string `mapstructure:"user" envconfig:"DB_USER"`
	Password string `mapstructure:"password" envconfig:"DB_PASSWORD"`
	Name     string `mapstructure:"name" envconfig:"DB_NAME" validate:"required"`
	SSLMode  string `mapstructure:"sslmode" envconfig:"DB_SSLMODE"`
	Schema   string `mapstructure:"schema" envconfig:"DB_SCHEMA" validate:"required"`
}

type RedisConfig struct {
	URL          string        `mapstructure:"url" envconfig:"REDIS_URL"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
}

type EzyVetConfig struct {
	BaseURL             string        `mapstructure:"base_url" envconfig:"EZYVET_BASE_URL" validate:"required,url"`
	Scope               string        `mapstructure:"scope"`
	RetrySleep          time.Duration `mapstructure:"retry_sleep"`
	TokenCacheTTL       time.Duration `mapstructure:"token_cache_ttl"`
	TranslationCacheTTL time.Duration `mapstructure:"translation_cache_ttl"`
	RateLimit           float64       `mapstructure:"rate_limit"`
	RateBurst           int           `mapstructure:"rate_burst"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// LocationConfig holds the per-location static tables the transform
// depends on. Locations absent from this map cannot be synced.
type LocationConfig struct {
	DivisionID    int64   `mapstructure:"division_id" validate:"required"`
	BlockOutTypes []int64 `mapstructure:"block_out_types"`
	MedicalTypes  []int64 `mapstructure:"medical_types"`
}

// Location looks up the static tables for a numeric location ID.
func (c *Config) Location(locationID int64) (LocationConfig, bool) {
	lc, ok := c.Locations[strconv.FormatInt(locationID, 10)]
	return lc, ok
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Environment variables override the file for deploy-time secrets.
	for _, section := range []interface{}{&config.Database, &config.Redis, &config.EzyVet} {
		if err := envconfig.Process("", section); err != nil {
			return nil, fmt.Errorf("failed to process environment overrides: %w", err)
		}
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks the loaded config so unknown locations fail at
// startup instead of mid-sync.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	for key := range c.Locations {
		if _, err := strconv.ParseInt(key, 10, 64); err != nil {
			return fmt.Errorf("invalid configuration: location key %q is not a numeric ID", key)
		}
	}
	return nil
}

func setDefaults() {
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "10m")
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("redis.max_retries", 3)
	viper.SetDefault("redis.retry_backoff", "100ms")
	viper.SetDefault("redis.pool_size", 10)
	viper.SetDefault("redis.min_idle_conns", 2)
	viper.SetDefault("ezyvet.scope", defaultScope)
	viper.SetDefault("ezyvet.retry_sleep", "60s")
	viper.SetDefault("ezyvet.token_cache_ttl", "10m")
	viper.SetDefault("ezyvet.translation_cache_ttl", "15m")
	viper.SetDefault("ezyvet.rate_limit", 2.0)
	viper.SetDefault("ezyvet.rate_burst", 2)
	viper.SetDefault("log.level", "info")
}
