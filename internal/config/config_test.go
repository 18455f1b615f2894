package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 224, cfg.Image.Size)
	assert.InDelta(t, 0.6, cfg.Predict.Threshold, 1e-6)
	assert.Equal(t, 5, cfg.Train.Epochs)
	assert.Equal(t, 32, cfg.Train.BatchSize)
	assert.Equal(t, []int64{1, 7, 7, 1280}, cfg.Model.FeatureShape)
	assert.True(t, cfg.Train.HorizontalFlip)
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := "predict:\n  threshold: 0.75\ntrain:\n  epochs: 2\n"
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))

	t.Setenv("CFG_TRAIN_EPOCHS", "9")
	t.Setenv("CFG_SERVER_PORT", "9090")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.InDelta(t, 0.75, cfg.Predict.Threshold, 1e-6)
	assert.Equal(t, 9, cfg.Train.Epochs)
	assert.Equal(t, 9090, cfg.Server.Port)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidateConfig(t *testing.T) {
	base, err := Load("")
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(c *AppConfig)
	}{
		{"threshold above one", func(c *AppConfig) { c.Predict.Threshold = 1.5 }},
		{"zero epochs", func(c *AppConfig) { c.Train.Epochs = 0 }},
		{"zero batch", func(c *AppConfig) { c.Train.BatchSize = 0 }},
		{"full validation split", func(c *AppConfig) { c.Train.ValidationSplit = 1 }},
		{"bad feature shape", func(c *AppConfig) { c.Model.FeatureShape = []int64{1, 1280} }},
		{"zero image size", func(c *AppConfig) { c.Image.Size = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := *base
			tt.mutate(&cfg)
			assert.Error(t, ValidateConfig(&cfg))
		})
	}
}
