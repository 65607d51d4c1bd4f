package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"

	"srgscan/internal/analysis/srg"
	"srgscan/internal/errors"

	"github.com/go-playground/validator/v10"
)

// Config represents the complete application configuration
type Config struct {
	Pipeline PipelineConfig `json:"pipeline" validate:"required"`
	Output   OutputConfig   `json:"output" validate:"required"`
	LogLevel string         `json:"log_level" validate:"oneof=ERROR WARN WARNING INFO DEBUG TRACE"`
}

// PipelineConfig holds classification parameters
type PipelineConfig struct {
	MinCellsDetected int     `json:"min_cells_detected" validate:"gte=2"`
	MaxCellsDetected int     `json:"max_cells_detected" validate:"gte=0"`
	ZScoreCutoff     float64 `json:"z_score_cutoff"`
	CenterResiduals  bool    `json:"center_residuals"`
	AutoMaxCells     bool    `json:"auto_max_cells"`
	Workers          int     `json:"workers" validate:"gte=0"`
}

// OutputConfig holds where and how results are written
type OutputConfig struct {
	Dir         string `json:"output_dir" validate:"required"`
	TableFormat string `json:"table_format" validate:"oneof=csv tsv xlsx"`
}

// Default returns the configuration used when no environment overrides are set.
func Default() *Config {
	return &Config{
		Pipeline: PipelineConfig{
			MinCellsDetected: srg.DefaultMinCellsDetected,
			ZScoreCutoff:     srg.DefaultZScoreCutoff,
		},
		Output: OutputConfig{
			Dir:         "srg_out",
			TableFormat: "tsv",
		},
		LogLevel: "INFO",
	}
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config, err := FromEnv()
	if err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return config, nil
}

// FromEnv reads configuration from environment variables without validating
// it. Unparseable values are still an error. Callers that layer further
// overrides on top validate the merged result.
func FromEnv() (*Config, error) {
	config := Default()
	env := &envReader{}

	config.Pipeline.MinCellsDetected = env.Int("SRG_MIN_CELLS", config.Pipeline.MinCellsDetected)
	config.Pipeline.MaxCellsDetected = env.Int("SRG_MAX_CELLS", config.Pipeline.MaxCellsDetected)
	config.Pipeline.ZScoreCutoff = env.Float("SRG_Z_CUTOFF", config.Pipeline.ZScoreCutoff)
	config.Pipeline.CenterResiduals = env.Bool("SRG_CENTER_RESIDUALS", config.Pipeline.CenterResiduals)
	config.Pipeline.AutoMaxCells = env.Bool("SRG_AUTO_MAX_CELLS", config.Pipeline.AutoMaxCells)
	config.Pipeline.Workers = env.Int("SRG_WORKERS", config.Pipeline.Workers)

	config.Output.Dir = getEnvOrDefault("SRG_OUTPUT_DIR", config.Output.Dir)
	config.Output.TableFormat = strings.ToLower(getEnvOrDefault("SRG_TABLE_FORMAT", config.Output.TableFormat))
	config.LogLevel = strings.ToUpper(getEnvOrDefault("LOG_LEVEL", config.LogLevel))

	if len(env.errs) > 0 {
		return nil, errors.ConfigInvalid(strings.Join(env.errs, "; "))
	}
	return config, nil
}

// Validate checks field constraints and the options the pipeline derives from them.
func (c *Config) Validate() error {
	if err := newValidator().Struct(c); err != nil {
		var msgs []string
		if fieldErrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range fieldErrs {
				msgs = append(msgs, formatValidationError(fe))
			}
		} else {
			msgs = append(msgs, err.Error())
		}
		return errors.ConfigInvalid(strings.Join(msgs, "; "))
	}
	return c.Options().Validate()
}

// Options converts the pipeline section into pipeline options.
func (c *Config) Options() srg.Options {
	return srg.Options{
		MinCellsDetected: c.Pipeline.MinCellsDetected,
		MaxCellsDetected: c.Pipeline.MaxCellsDetected,
		ZScoreCutoff:     c.Pipeline.ZScoreCutoff,
		CenterResiduals:  c.Pipeline.CenterResiduals,
		AutoMaxCells:     c.Pipeline.AutoMaxCells,
		Workers:          c.Pipeline.Workers,
	}
}

func newValidator() *validator.Validate {
	v := validator.New()
	// Use JSON tag names in error messages
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func formatValidationError(err validator.FieldError) string {
	field := err.Field()
	param := err.Param()

	switch err.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, param)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(param, " ", ", "))
	default:
		return fmt.Sprintf("%s failed %s validation", field, err.Tag())
	}
}

// envReader parses typed environment values, collecting every malformed one.
type envReader struct {
	errs []string
}

func (e *envReader) Int(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		e.errs = append(e.errs, fmt.Sprintf("%s: %q is not an integer", key, value))
		return defaultValue
	}
	return intValue
}

func (e *envReader) Float(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	floatValue, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		e.errs = append(e.errs, fmt.Sprintf("%s: %q is not a number", key, value))
		return defaultValue
	}
	return floatValue
}

func (e *envReader) Bool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	boolValue, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		e.errs = append(e.errs, fmt.Sprintf("%s: %q is not a boolean", key, value))
		return defaultValue
	}
	return boolValue
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
