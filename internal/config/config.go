package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	OCR        OCRConfig        `yaml:"ocr" mapstructure:"ocr"`
	Pipeline   PipelineConfig   `yaml:"pipeline" mapstructure:"pipeline"`
	Validation ValidationConfig `yaml:"validation" mapstructure:"validation"`
	Scoring    ScoringConfig    `yaml:"scoring" mapstructure:"scoring"`
}

// StoreConfig configures the run-persistence backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ServerConfig configures the results API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// OCRConfig configures the Tesseract collaborator used for re-OCR
// fallback passes.
type OCRConfig struct {
	Languages   []string `yaml:"languages" mapstructure:"languages"`
	TessdataDir string   `yaml:"tessdata_dir" mapstructure:"tessdata_dir"`
	// Threshold is the fixed brightness cutoff for re-binarized passes.
	Threshold int `yaml:"threshold" mapstructure:"threshold"`
	// RateLimit caps re-OCR calls per second across one pipeline run.
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// PipelineConfig configures batch processing.
type PipelineConfig struct {
	MaxConcurrentInvoices int    `yaml:"max_concurrent_invoices" mapstructure:"max_concurrent_invoices"`
	RenderedDir           string `yaml:"rendered_dir" mapstructure:"rendered_dir"`
	ModelPath             string `yaml:"model_path" mapstructure:"model_path"`
}

// ValidationConfig carries every comparison threshold used by the
// discrepancy engine. Values are explicit configuration, not hidden
// globals, so validation stays deterministic and testable.
type ValidationConfig struct {
	FuzzyPass        float64 `yaml:"fuzzy_pass" mapstructure:"fuzzy_pass"`
	FuzzyWarn        float64 `yaml:"fuzzy_warn" mapstructure:"fuzzy_warn"`
	AddressFuzzyPass float64 `yaml:"address_fuzzy_pass" mapstructure:"address_fuzzy_pass"`
	AddressFuzzyWarn float64 `yaml:"address_fuzzy_warn" mapstructure:"address_fuzzy_warn"`

	DatePassDays int `yaml:"date_pass_days" mapstructure:"date_pass_days"`
	DateWarnDays int `yaml:"date_warn_days" mapstructure:"date_warn_days"`

	AmountAbsPass float64 `yaml:"amount_abs_pass" mapstructure:"amount_abs_pass"`
	AmountAbsWarn float64 `yaml:"amount_abs_warn" mapstructure:"amount_abs_warn"`
	AmountRelPass float64 `yaml:"amount_rel_pass" mapstructure:"amount_rel_pass"`
	AmountRelWarn float64 `yaml:"amount_rel_warn" mapstructure:"amount_rel_warn"`

	NameTruncateRatio  float64 `yaml:"name_truncate_ratio" mapstructure:"name_truncate_ratio"`
	NameTruncateMinLen int     `yaml:"name_truncate_min_len" mapstructure:"name_truncate_min_len"`

	ReviewThreshold float64 `yaml:"review_threshold" mapstructure:"review_threshold"`
	// StatusOnCritical is the terminal status when any critical
	// discrepancy exists: "needs_review" or "rejected". Deployments
	// disagree on the right outcome, so it is a named setting.
	StatusOnCritical string `yaml:"status_on_critical" mapstructure:"status_on_critical"`
}

// ScoringConfig configures the weighted confidence aggregation.
type ScoringConfig struct {
	// FieldWeights must sum to 1 across the scalar fields it names.
	FieldWeights map[string]float64 `yaml:"field_weights" mapstructure:"field_weights"`
	// SeverityPenalty is the fixed deduction per discrepancy severity.
	SeverityPenalty map[string]float64 `yaml:"severity_penalty" mapstructure:"severity_penalty"`
	// PenaltyCap bounds the summed penalty.
	PenaltyCap float64 `yaml:"penalty_cap" mapstructure:"penalty_cap"`
}

// DefaultValidation returns the standard validation thresholds.
func DefaultValidation() ValidationConfig {
	return ValidationConfig{
		FuzzyPass:          0.90,
		FuzzyWarn:          0.80,
		AddressFuzzyPass:   0.85,
		AddressFuzzyWarn:   0.75,
		DatePassDays:       1,
		DateWarnDays:       3,
		AmountAbsPass:      1.00,
		AmountAbsWarn:      2.00,
		AmountRelPass:      0.005,
		AmountRelWarn:      0.01,
		NameTruncateRatio:  0.50,
		NameTruncateMinLen: 4,
		ReviewThreshold:    0.75,
		StatusOnCritical:   "needs_review",
	}
}

// DefaultScoring returns the standard field weights and penalties.
func DefaultScoring() ScoringConfig {
	return ScoringConfig{
		FieldWeights: map[string]float64{
			"po_number":        0.25,
			"vendor_name":      0.20,
			"total_amount":     0.20,
			"tax_amount":       0.10,
			"invoice_date":     0.05,
			"due_date":         0.05,
			"customer_name":    0.05,
			"vendor_address":   0.05,
			"customer_address": 0.05,
		},
		SeverityPenalty: map[string]float64{
			"critical":      0.50,
			"warning":       0.20,
			"informational": 0.05,
		},
		PenaltyCap: 0.9,
	}
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("INVOICE_AUDIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "invoice-audit.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("ocr.languages", []string{"eng"})
	v.SetDefault("ocr.threshold", 150)
	v.SetDefault("ocr.rate_limit", 4.0)
	v.SetDefault("pipeline.max_concurrent_invoices", 4)
	v.SetDefault("pipeline.rendered_dir", "data/rendered")

	d := DefaultValidation()
	v.SetDefault("validation.fuzzy_pass", d.FuzzyPass)
	v.SetDefault("validation.fuzzy_warn", d.FuzzyWarn)
	v.SetDefault("validation.address_fuzzy_pass", d.AddressFuzzyPass)
	v.SetDefault("validation.address_fuzzy_warn", d.AddressFuzzyWarn)
	v.SetDefault("validation.date_pass_days", d.DatePassDays)
	v.SetDefault("validation.date_warn_days", d.DateWarnDays)
	v.SetDefault("validation.amount_abs_pass", d.AmountAbsPass)
	v.SetDefault("validation.amount_abs_warn", d.AmountAbsWarn)
	v.SetDefault("validation.amount_rel_pass", d.AmountRelPass)
	v.SetDefault("validation.amount_rel_warn", d.AmountRelWarn)
	v.SetDefault("validation.name_truncate_ratio", d.NameTruncateRatio)
	v.SetDefault("validation.name_truncate_min_len", d.NameTruncateMinLen)
	v.SetDefault("validation.review_threshold", d.ReviewThreshold)
	v.SetDefault("validation.status_on_critical", d.StatusOnCritical)

	s := DefaultScoring()
	v.SetDefault("scoring.field_weights", s.FieldWeights)
	v.SetDefault("scoring.severity_penalty", s.SeverityPenalty)
	v.SetDefault("scoring.penalty_cap", s.PenaltyCap)
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch c.Validation.StatusOnCritical {
	case "needs_review", "rejected":
	default:
		return eris.Errorf("config: validation.status_on_critical must be needs_review or rejected, got %q", c.Validation.StatusOnCritical)
	}
	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		return eris.Errorf("config: store.driver must be sqlite or postgres, got %q", c.Store.Driver)
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
