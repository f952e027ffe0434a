// Package config holds the validated runtime configuration for the
// routing pipeline. Loading and parsing (viper, YAML, env) happens at the
// CLI boundary; everything below cmd/ consumes this read-only structure.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/tbernier/docroute/internal/common"
)

// RoutingRule maps a document type to a directory tree template and an
// optional filename format. A rule with type "default" is the fallback.
type RoutingRule struct {
	Type     string
	Tree     string
	Filename string
}

// RoutingRules is the ordered per-type rule list.
type RoutingRules []RoutingRule

// ForType returns the rule for a document type, falling back to the
// "default" rule. The second return is false when neither exists.
func (rs RoutingRules) ForType(docType string) (RoutingRule, bool) {
	for _, r := range rs {
		if strings.EqualFold(r.Type, docType) {
			return r, true
		}
	}
	for _, r := range rs {
		if strings.EqualFold(r.Type, "default") {
			return r, true
		}
	}
	return RoutingRule{}, false
}

// Weights controls how the classifier combines its signals. The values
// are used verbatim; they are normalized by their sum at scoring time.
type Weights struct {
	Fields      float64
	Supplier    float64
	TextQuality float64
}

// Config is the in-memory configuration consumed by the pipeline. All
// fields are read-only after Load; changing routing behavior requires a
// restart.
type Config struct {
	Inbox           string
	DestinationRoot string
	ReviewDir       string
	FailedDir       string

	TreeTemplate    string
	FilenameFormat  string
	FolderFormats   map[string]string
	Rules           RoutingRules
	CustomKeys      map[string]string

	Suppliers map[string]string

	StabilitySeconds  float64
	PollInterval      time.Duration
	MinFileSize       int64
	ExcludePatterns   []string
	Workers           int
	FileTimeout       time.Duration

	ConfidenceThreshold float64
	SupplierThreshold   float64
	ClassifierWeights   Weights

	OCRLanguages string
	JournalPath  string
}

// Defaults applied when the config document leaves a knob unset.
const (
	defaultTreeTemplate   = "Factures_fournisseurs/{fournisseur}/{YYYY}/{MM}"
	defaultFilenameFormat = "{YYYY}-{MM}-{DD}_{type_doc}_{fournisseur}_{numero}_{montant}.pdf"
)

// FromViper builds a validated Config from the loaded viper tree.
func FromViper(v *viper.Viper) (*Config, error) {
	v.SetDefault("watch.stability_seconds", 5.0)
	v.SetDefault("watch.poll_interval", "1s")
	v.SetDefault("watch.exclude_patterns", []string{"*.tmp", "~*", "*.part", "*.crdownload"})
	v.SetDefault("pipeline.workers", 2)
	v.SetDefault("pipeline.file_timeout", "120s")
	v.SetDefault("classification.confidence_threshold", 0.6)
	v.SetDefault("classification.supplier_threshold", 0.7)
	v.SetDefault("classification.weights.fields", 0.5)
	v.SetDefault("classification.weights.supplier", 0.35)
	v.SetDefault("classification.weights.text_quality", 0.15)
	v.SetDefault("routing.tree_template", defaultTreeTemplate)
	v.SetDefault("routing.filename_format", defaultFilenameFormat)
	v.SetDefault("ocr.languages", "fra+eng")

	cfg := &Config{
		Inbox:           ExpandPath(v.GetString("inbox")),
		DestinationRoot: ExpandPath(v.GetString("destination_root")),
		ReviewDir:       ExpandPath(v.GetString("review_dir")),
		FailedDir:       ExpandPath(v.GetString("failed_dir")),

		TreeTemplate:   v.GetString("routing.tree_template"),
		FilenameFormat: v.GetString("routing.filename_format"),
		FolderFormats:  v.GetStringMapString("routing.folder_formats"),
		CustomKeys:     v.GetStringMapString("routing.custom_keys"),

		Suppliers: v.GetStringMapString("suppliers"),

		StabilitySeconds: v.GetFloat64("watch.stability_seconds"),
		PollInterval:     v.GetDuration("watch.poll_interval"),
		MinFileSize:      v.GetInt64("watch.min_file_size"),
		ExcludePatterns:  v.GetStringSlice("watch.exclude_patterns"),
		Workers:          v.GetInt("pipeline.workers"),
		FileTimeout:      v.GetDuration("pipeline.file_timeout"),

		ConfidenceThreshold: v.GetFloat64("classification.confidence_threshold"),
		SupplierThreshold:   v.GetFloat64("classification.supplier_threshold"),
		ClassifierWeights: Weights{
			Fields:      v.GetFloat64("classification.weights.fields"),
			Supplier:    v.GetFloat64("classification.weights.supplier"),
			TextQuality: v.GetFloat64("classification.weights.text_quality"),
		},

		OCRLanguages: v.GetString("ocr.languages"),
		JournalPath:  ExpandPath(v.GetString("journal.path")),
	}

	var rawRules []struct {
		Type     string `mapstructure:"type"`
		Tree     string `mapstructure:"tree"`
		Filename string `mapstructure:"filename"`
	}
	if err := v.UnmarshalKey("routing.rules", &rawRules); err != nil {
		return nil, fmt.Errorf("%w: routing.rules: %v", common.ErrInvalidConfig, err)
	}
	for _, r := range rawRules {
		cfg.Rules = append(cfg.Rules, RoutingRule(r))
	}

	cfg.applyDerivedPaths()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDerivedPaths fills the review, failed and journal locations from
// the destination root when they are not set explicitly.
func (c *Config) applyDerivedPaths() {
	if c.ReviewDir == "" && c.DestinationRoot != "" {
		c.ReviewDir = filepath.Join(c.DestinationRoot, "A_CLASSER")
	}
	if c.FailedDir == "" && c.DestinationRoot != "" {
		c.FailedDir = filepath.Join(c.DestinationRoot, "FAILED")
	}
	if c.JournalPath == "" && c.DestinationRoot != "" {
		c.JournalPath = filepath.Join(c.DestinationRoot, ".docroute", "journal.db")
	}
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.Inbox == "" {
		return fmt.Errorf("%w: inbox", common.ErrMissingConfig)
	}
	if c.DestinationRoot == "" {
		return fmt.Errorf("%w: destination_root", common.ErrMissingConfig)
	}
	if c.StabilitySeconds <= 0 {
		return fmt.Errorf("%w: watch.stability_seconds must be positive", common.ErrInvalidConfig)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("%w: watch.poll_interval must be positive", common.ErrInvalidConfig)
	}
	if c.Workers < 1 {
		return fmt.Errorf("%w: pipeline.workers must be at least 1", common.ErrInvalidConfig)
	}
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("%w: classification.confidence_threshold must be in [0,1]", common.ErrInvalidConfig)
	}
	if c.SupplierThreshold < 0 || c.SupplierThreshold > 1 {
		return fmt.Errorf("%w: classification.supplier_threshold must be in [0,1]", common.ErrInvalidConfig)
	}
	w := c.ClassifierWeights
	if w.Fields < 0 || w.Supplier < 0 || w.TextQuality < 0 {
		return fmt.Errorf("%w: classification.weights must be non-negative", common.ErrInvalidConfig)
	}
	if w.Fields+w.Supplier+w.TextQuality == 0 {
		return fmt.Errorf("%w: classification.weights sum to zero", common.ErrInvalidConfig)
	}
	return nil
}

// ExpandPath expands ~ and environment variables in a file path.
func ExpandPath(path string) string {
	if path == "" {
		return path
	}

	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[2:])
		}
	} else if path == "~" {
		home, err := os.UserHomeDir()
		if err == nil {
			path = home
		}
	}

	return os.ExpandEnv(path)
}
