package config

import (
	"testing"

	"srgscan/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"SRG_MIN_CELLS", "SRG_MAX_CELLS", "SRG_Z_CUTOFF", "SRG_CENTER_RESIDUALS",
		"SRG_AUTO_MAX_CELLS", "SRG_WORKERS", "SRG_OUTPUT_DIR", "SRG_TABLE_FORMAT", "LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Pipeline.MinCellsDetected)
	assert.Equal(t, 0, cfg.Pipeline.MaxCellsDetected)
	assert.Equal(t, -1.0, cfg.Pipeline.ZScoreCutoff)
	assert.False(t, cfg.Pipeline.CenterResiduals)
	assert.Equal(t, "tsv", cfg.Output.TableFormat)
	assert.Equal(t, "INFO", cfg.LogLevel)
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("SRG_MIN_CELLS", "5")
	t.Setenv("SRG_MAX_CELLS", "300")
	t.Setenv("SRG_Z_CUTOFF", "-1.5")
	t.Setenv("SRG_CENTER_RESIDUALS", "true")
	t.Setenv("SRG_WORKERS", "4")
	t.Setenv("SRG_TABLE_FORMAT", "XLSX")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	opts := cfg.Options()
	assert.Equal(t, 5, opts.MinCellsDetected)
	assert.Equal(t, 300, opts.MaxCellsDetected)
	assert.Equal(t, -1.5, opts.ZScoreCutoff)
	assert.True(t, opts.CenterResiduals)
	assert.Equal(t, 4, opts.Workers)
	assert.Equal(t, "xlsx", cfg.Output.TableFormat)
	assert.Equal(t, "DEBUG", cfg.LogLevel)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"min below two", "SRG_MIN_CELLS", "1"},
		{"min not a number", "SRG_MIN_CELLS", "two"},
		{"negative max", "SRG_MAX_CELLS", "-3"},
		{"max not above min", "SRG_MAX_CELLS", "2"},
		{"bad cutoff", "SRG_Z_CUTOFF", "low"},
		{"bad bool", "SRG_CENTER_RESIDUALS", "maybe"},
		{"unknown format", "SRG_TABLE_FORMAT", "parquet"},
		{"unknown log level", "LOG_LEVEL", "verbose"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.val)

			_, err := Load()
			require.Error(t, err)
			assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))
			assert.Equal(t, 2, errors.ExitCode(err))
		})
	}
}

func TestFromEnv_DefersValidation(t *testing.T) {
	clearEnv(t)
	t.Setenv("SRG_MIN_CELLS", "1")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.Pipeline.MinCellsDetected)
	assert.Error(t, cfg.Validate())

	cfg.Pipeline.MinCellsDetected = 3
	assert.NoError(t, cfg.Validate())

	t.Setenv("SRG_MIN_CELLS", "two")
	_, err = FromEnv()
	require.Error(t, err)
	assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))
}

func TestValidate_ReportsJSONFieldNames(t *testing.T) {
	cfg := Default()
	cfg.Output.Dir = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "output_dir is required")
}
