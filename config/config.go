// Package config holds the process configuration: defaults, JSON file
// overrides and environment overrides, in that order.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/ch8ri0s/PII-Anonymizer-sub009/pii/model"
)

// DatabaseConfig holds the optional mapping-store configuration.
type DatabaseConfig struct {
	Enabled      bool   // Whether to persist mapping artifacts
	Host         string // Database host
	Port         int    // Database port
	Database     string // Database name
	Username     string // Database username
	Password     string // Database password
	SSLMode      string // SSL mode (disable, require, etc.)
	MaxOpenConns int    // Maximum open connections
	MaxIdleConns int    // Maximum idle connections
	MaxLifetime  int    // Connection max lifetime in seconds
}

// DetectionConfig holds pipeline thresholds and feature toggles.
type DetectionConfig struct {
	Language               string  // Force document language; empty = auto-detect
	MLConfidenceThreshold  float64 // Token predictions below this are dropped
	AutoAnonymizeThreshold float64 // Entities below this are flagged, not replaced
	ReviewThreshold        float64 // Entities below this are flagged for review
	ContextWindowSize      int     // Bytes of context inspected around an entity
	AddressProximity       int     // Max gap between linked address components
	MinAddressComponents   int     // Min components for a grouped address
	ClassifyDocument       bool
	ScoreContext           bool
	GroupAddresses         bool
	DetectAmounts          bool
	UseLogicalIdentities   bool
	ProtectMarkdownCode    bool
}

// Config holds all configuration for the anonymizer.
type Config struct {
	ModelDirectory string // ONNX model directory; empty = rule-only mode
	SentryDSN      string // Optional error reporting DSN
	Debug          bool
	Detection      DetectionConfig
	Database       DatabaseConfig
}

// DefaultConfig returns the default configuration: every detection feature
// on, amounts off, no database, no model directory.
func DefaultConfig() *Config {
	return &Config{
		Detection: DetectionConfig{
			MLConfidenceThreshold:  0.5,
			AutoAnonymizeThreshold: 0.5,
			ReviewThreshold:        0.35,
			ContextWindowSize:      60,
			AddressProximity:       80,
			MinAddressComponents:   2,
			ClassifyDocument:       true,
			ScoreContext:           true,
			GroupAddresses:         true,
			DetectAmounts:          false,
			UseLogicalIdentities:   true,
			ProtectMarkdownCode:    true,
		},
		Database: DatabaseConfig{
			Enabled:      false,
			Host:         "localhost",
			Port:         5432,
			Database:     "anonymizer",
			Username:     "postgres",
			Password:     "",
			SSLMode:      "disable",
			MaxOpenConns: 25,
			MaxIdleConns: 25,
			MaxLifetime:  300,
		},
	}
}

// LoadFromFile overlays cfg with values from a JSON file.
func LoadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path) // #nosec G304 - path comes from the -config flag
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

// LoadFromEnv overlays cfg with environment variables. Unset variables leave
// the current value untouched.
func LoadFromEnv(cfg *Config) {
	setString(&cfg.ModelDirectory, "MODEL_DIRECTORY")
	setString(&cfg.SentryDSN, "SENTRY_DSN")
	setBool(&cfg.Debug, "DEBUG")

	setString(&cfg.Detection.Language, "DOCUMENT_LANGUAGE")
	setFloat(&cfg.Detection.MLConfidenceThreshold, "ML_CONFIDENCE_THRESHOLD")
	setFloat(&cfg.Detection.AutoAnonymizeThreshold, "AUTO_ANONYMIZE_THRESHOLD")
	setFloat(&cfg.Detection.ReviewThreshold, "REVIEW_THRESHOLD")
	setInt(&cfg.Detection.ContextWindowSize, "CONTEXT_WINDOW_SIZE")
	setInt(&cfg.Detection.AddressProximity, "ADDRESS_PROXIMITY")
	setInt(&cfg.Detection.MinAddressComponents, "MIN_ADDRESS_COMPONENTS")
	setBool(&cfg.Detection.ClassifyDocument, "CLASSIFY_DOCUMENT")
	setBool(&cfg.Detection.ScoreContext, "SCORE_CONTEXT")
	setBool(&cfg.Detection.GroupAddresses, "GROUP_ADDRESSES")
	setBool(&cfg.Detection.DetectAmounts, "DETECT_AMOUNTS")
	setBool(&cfg.Detection.UseLogicalIdentities, "USE_LOGICAL_IDENTITIES")
	setBool(&cfg.Detection.ProtectMarkdownCode, "PROTECT_MARKDOWN_CODE")

	setBool(&cfg.Database.Enabled, "DB_ENABLED")
	setString(&cfg.Database.Host, "DB_HOST")
	setInt(&cfg.Database.Port, "DB_PORT")
	setString(&cfg.Database.Database, "DB_NAME")
	setString(&cfg.Database.Username, "DB_USER")
	setString(&cfg.Database.Password, "DB_PASSWORD")
	setString(&cfg.Database.SSLMode, "DB_SSL_MODE")
}

// PipelineConfig converts the detection section into the pipeline's own
// config type.
func (c *Config) PipelineConfig() model.PipelineConfig {
	d := c.Detection
	return model.PipelineConfig{
		Language:               d.Language,
		ContextWindowSize:      d.ContextWindowSize,
		AutoAnonymizeThreshold: d.AutoAnonymizeThreshold,
		ReviewThreshold:        d.ReviewThreshold,
		AddressProximity:       d.AddressProximity,
		MinAddressComponents:   d.MinAddressComponents,
		Features: model.Features{
			NormalizeUnicode:     true,
			StripZeroWidth:       true,
			DeobfuscateEmails:    true,
			DeobfuscatePhones:    true,
			ClassifyDocument:     d.ClassifyDocument,
			ScoreContext:         d.ScoreContext,
			GroupAddresses:       d.GroupAddresses,
			DetectAmounts:        d.DetectAmounts,
			UseLogicalIdentities: d.UseLogicalIdentities,
			ProtectMarkdownCode:  d.ProtectMarkdownCode,
		},
		Debug: c.Debug,
	}
}

// ConnectionString builds the lib/pq DSN.
func (dc DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		dc.Host, dc.Port, dc.Database, dc.Username, dc.Password, dc.SSLMode)
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v == "true"
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}
