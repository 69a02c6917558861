package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const dirName = ".fracture"

// Global configuration structure.
type Global struct {
	// Column layout of the input table
	IDColumn           string   `mapstructure:"id_column" yaml:"id_column" validate:"required"`
	LabelColumn        string   `mapstructure:"label_column" yaml:"label_column" validate:"required"`
	NumericColumns     []string `mapstructure:"numeric_columns" yaml:"numeric_columns"`
	CategoricalColumns []string `mapstructure:"categorical_columns" yaml:"categorical_columns"`
	SheetName          string   `mapstructure:"sheet_name" yaml:"sheet_name"`
	SheetIndex         int      `mapstructure:"sheet_index" yaml:"sheet_index" validate:"gte=0"`

	// Cleaning
	ForwardFill      []string `mapstructure:"forward_fill" yaml:"forward_fill"`
	AnomalyColumn    string   `mapstructure:"anomaly_column" yaml:"anomaly_column"`
	AnomalyValue     string   `mapstructure:"anomaly_value" yaml:"anomaly_value"`
	RemoveOutliers   bool     `mapstructure:"remove_outliers" yaml:"remove_outliers"`
	OutlierColumns   []string `mapstructure:"outlier_columns" yaml:"outlier_columns"`
	OutlierThreshold float64  `mapstructure:"outlier_threshold" yaml:"outlier_threshold" validate:"gt=0"`
	RareShare        float64  `mapstructure:"rare_share" yaml:"rare_share" validate:"gte=0,lt=1"`

	// Sampling and models
	Split     float64  `mapstructure:"split" yaml:"split" validate:"gt=0,lt=1"`
	Ratio     float64  `mapstructure:"ratio" yaml:"ratio" validate:"gte=1"`
	Threshold float64  `mapstructure:"threshold" yaml:"threshold" validate:"gt=0,lt=1"`
	Seed      int64    `mapstructure:"seed" yaml:"seed"`
	Models    []string `mapstructure:"models" yaml:"models" validate:"required,min=1,dive,oneof=naive-bayes logistic"`
	Lambda    float64  `mapstructure:"lambda" yaml:"lambda" validate:"gt=0"`
	MaxIter   int      `mapstructure:"max_iter" yaml:"max_iter" validate:"gt=0"`

	// Outputs
	OutputDir  string `mapstructure:"output_dir" yaml:"output_dir"`
	Ledger     bool   `mapstructure:"ledger" yaml:"ledger"`
	LedgerPath string `mapstructure:"ledger_path" yaml:"ledger_path"`
}

// Validate checks field constraints and reports every violation at once.
func (c *Global) Validate() error {
	err := validator.New().Struct(c)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return fmt.Errorf("validate config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, formatFieldError(fe))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

func formatFieldError(fe validator.FieldError) string {
	field, param := fe.Field(), fe.Param()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must have at least %s entries", field, param)
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, param)
	case "gte":
		return fmt.Sprintf("%s must be at least %s", field, param)
	case "lt":
		return fmt.Sprintf("%s must be less than %s", field, param)
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %v", field, param, fe.Value())
	}
	return fmt.Sprintf("%s failed %s", field, fe.Tag())
}

// Dir returns ~/.fracture.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, dirName), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.fracture/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	if err := c.Validate(); err != nil {
		return err
	}
	var path string
	if cfgFile != "" {
		path = cfgFile
	} else {
		dir, err := Dir()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: env > config file > defaults; command flags are applied by the caller.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix("FRACTURE")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("id_column", "id")
	v.SetDefault("label_column", "result")
	v.SetDefault("numeric_columns", []string{"age", "test1", "test2", "test3"})
	v.SetDefault("categorical_columns", []string{"gender", "calcium"})
	v.SetDefault("sheet_name", "")
	v.SetDefault("sheet_index", 1)
	v.SetDefault("forward_fill", []string{"calcium"})
	v.SetDefault("anomaly_column", "gender")
	v.SetDefault("anomaly_value", "2")
	v.SetDefault("remove_outliers", true)
	v.SetDefault("outlier_columns", []string{})
	v.SetDefault("outlier_threshold", 3.5)
	v.SetDefault("rare_share", 0.005)
	v.SetDefault("split", 0.5)
	v.SetDefault("ratio", 1.0)
	v.SetDefault("threshold", 0.5)
	v.SetDefault("seed", 42)
	v.SetDefault("models", []string{"naive-bayes", "logistic"})
	v.SetDefault("lambda", 0.01)
	v.SetDefault("max_iter", 1000)
	v.SetDefault("output_dir", "fracture-runs")
	v.SetDefault("ledger", false)
	v.SetDefault("ledger_path", "")

	// Config file
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		// a missing file is fine; a broken one is not
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	// Resolve ledger_path default: ~/.fracture/runs.db
	if c.LedgerPath == "" {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		c.LedgerPath = filepath.Join(dir, "runs.db")
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}
