package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Bogdan-Cristian-Burci/InvoiceParser/internal/domain"
)

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 8090, cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Cache.Driver)
	assert.Equal(t, string(domain.FlavorStructuredThenFlexible), cfg.Processing.TableExtractionFlavor)
}

func TestValidate_Rejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"threshold above one", func(c *Config) { c.Processing.OCRConfidenceThreshold = 1.5 }},
		{"unknown flavor", func(c *Config) { c.Processing.TableExtractionFlavor = "psychic" }},
		{"unknown cache driver", func(c *Config) { c.Cache.Driver = "etcd" }},
		{"zero workers", func(c *Config) { c.Processing.MaxConcurrentPages = 0 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoad_YAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: 9999
processing:
  table_extraction_flavor: coordinate
  ocr_confidence_threshold: 0.9
cache:
  driver: memory
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "coordinate", cfg.Processing.TableExtractionFlavor)
	assert.Equal(t, 0.9, cfg.Processing.OCRConfidenceThreshold)
	// Untouched fields keep their defaults.
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "7070")
	t.Setenv("ENABLE_OCR_VALIDATION", "false")
	t.Setenv("TABLE_EXTRACTION_FLAVOR", "flexible")
	t.Setenv("COORDINATE_START_MARKER", "START")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.False(t, cfg.Processing.EnableOCRValidation)
	assert.Equal(t, "flexible", cfg.Processing.TableExtractionFlavor)
	assert.Equal(t, "START", cfg.Processing.CoordinateStartMarker)
}

func TestLoad_InvalidAfterOverride(t *testing.T) {
	t.Setenv("TABLE_EXTRACTION_FLAVOR", "psychic")

	_, err := Load("")
	require.Error(t, err)
}

func TestSnapshot(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Processing.TableExtractionFlavor = "coordinate"
	cfg.Processing.CoordinateStartMarker = "A"
	cfg.Processing.CoordinateEndMarker = "B"

	snapshot := cfg.Snapshot()
	assert.Equal(t, domain.FlavorCoordinate, snapshot.TableExtractionFlavor)
	assert.Equal(t, "A", snapshot.CoordinateStartMarker)
	assert.Equal(t, "B", snapshot.CoordinateEndMarker)
	assert.Equal(t, cfg.Processing.MaxConcurrentPages, snapshot.MaxConcurrentPages)
}

func TestParseBool(t *testing.T) {
	assert.True(t, parseBool("true", false))
	assert.True(t, parseBool("1", false))
	assert.True(t, parseBool("YES", false))
	assert.False(t, parseBool("off", true))
	assert.True(t, parseBool("gibberish", true))
}
