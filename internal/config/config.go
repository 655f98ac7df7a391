// Package config loads runtime settings from the environment (optionally
// seeded from a .env file) and validates them.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds all settings of a run.
type Config struct {
	// Catalog Store
	CatalogDatabaseURL string `validate:"required"`

	// Business Directory Service
	OdooURL      string        `validate:"required,url"`
	OdooDB       string        `validate:"required"`
	OdooUsername string        `validate:"required"`
	OdooPassword string        `validate:"required"`
	OdooTimeout  time.Duration `validate:"gt=0"`

	MappingsFile string `validate:"required"`

	ReportDir         string `validate:"required"`
	ReportCompression string `validate:"oneof=none zstd"`

	ImagesDir         string
	ImagesFallbackDir string

	StockLocation       string `validate:"required"`
	PartnerLinkTemplate string
	SellerCompanyID     int64 `validate:"gt=0"`

	LogLevel string `validate:"oneof=debug info warn error"`
	AppEnv   string
}

// Development reports a development environment (human-readable logs).
func (c *Config) Development() bool {
	return c.AppEnv == "development"
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load reads envFiles, or .env when none is named, then the process
// environment, and validates. A missing .env is fine; a named file that does
// not exist is an error.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load .env: %w", err)
		}
	} else if err := godotenv.Load(envFiles...); err != nil {
		return nil, fmt.Errorf("load env file: %w", err)
	}

	cfg := &Config{
		CatalogDatabaseURL:  getEnv("CATALOG_DATABASE_URL", ""),
		OdooURL:             getEnv("ODOO_URL", ""),
		OdooDB:              getEnv("ODOO_DB", ""),
		OdooUsername:        getEnv("ODOO_USERNAME", ""),
		OdooPassword:        getEnv("ODOO_PASSWORD", ""),
		MappingsFile:        getEnv("MAPPINGS_FILE", "mappings.yaml"),
		ReportDir:           getEnv("REPORT_DIR", "reports"),
		ReportCompression:   strings.ToLower(getEnv("REPORT_COMPRESSION", "none")),
		ImagesDir:           getEnv("IMAGES_DIR", ""),
		ImagesFallbackDir:   getEnv("IMAGES_FALLBACK_DIR", ""),
		StockLocation:       getEnv("STOCK_LOCATION", "WH/Existencias"),
		PartnerLinkTemplate: getEnv("PARTNER_LINK_TEMPLATE", ""),
		LogLevel:            strings.ToLower(getEnv("LOG_LEVEL", "info")),
		AppEnv:              getEnv("APP_ENV", "production"),
	}

	var err error
	if cfg.OdooTimeout, err = getEnvDuration("ODOO_TIMEOUT", 60*time.Second); err != nil {
		return nil, err
	}
	if cfg.SellerCompanyID, err = getEnvInt("SELLER_COMPANY_ID", 1); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field rules and reports every failing field at once.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: rule '%s' failed for %q", envName(fe.StructField()), fe.Tag(), fmt.Sprint(fe.Value())))
	}
	return fmt.Errorf("invalid configuration:\n  %s", strings.Join(msgs, "\n  "))
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int64) (int64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

// envNames maps struct fields back to their variables for error messages.
var envNames = map[string]string{
	"CatalogDatabaseURL":  "CATALOG_DATABASE_URL",
	"OdooURL":             "ODOO_URL",
	"OdooDB":              "ODOO_DB",
	"OdooUsername":        "ODOO_USERNAME",
	"OdooPassword":        "ODOO_PASSWORD",
	"OdooTimeout":         "ODOO_TIMEOUT",
	"MappingsFile":        "MAPPINGS_FILE",
	"ReportDir":           "REPORT_DIR",
	"ReportCompression":   "REPORT_COMPRESSION",
	"StockLocation":       "STOCK_LOCATION",
	"SellerCompanyID":     "SELLER_COMPANY_ID",
	"LogLevel":            "LOG_LEVEL",
	"PartnerLinkTemplate": "PARTNER_LINK_TEMPLATE",
}

func envName(field string) string {
	if name, ok := envNames[field]; ok {
		return name
	}
	return field
}
