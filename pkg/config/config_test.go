package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testConfig struct {
	ListenAddr   string   `json:"listen_addr" env:"TESTCFG_LISTEN_ADDR"`
	ScanInterval Duration `json:"scan_interval"`
}

type validatedConfig struct {
	ListenAddr string `json:"listen_addr"`
}

var errMissingListenAddr = errors.New("listen_addr is required")

func (c *validatedConfig) Validate() error {
	if c.ListenAddr == "" {
		return errMissingListenAddr
	}

	return nil
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `{"listen_addr": ":8090", "scan_interval": "5m"}`)

	var cfg testConfig
	require.NoError(t, LoadFile(path, &cfg))

	assert.Equal(t, ":8090", cfg.ListenAddr)
	assert.Equal(t, 5*time.Minute, time.Duration(cfg.ScanInterval))
}

func TestLoadFileMissing(t *testing.T) {
	var cfg testConfig

	err := LoadFile(filepath.Join(t.TempDir(), "absent.json"), &cfg)
	assert.Error(t, err)
}

func TestLoadFileBadJSON(t *testing.T) {
	path := writeConfig(t, `{"listen_addr": `)

	var cfg testConfig

	err := LoadFile(path, &cfg)
	assert.Error(t, err)
}

func TestLoadAndValidateEnvOverride(t *testing.T) {
	path := writeConfig(t, `{"listen_addr": ":8090"}`)

	t.Setenv("TESTCFG_LISTEN_ADDR", ":9999")

	var cfg testConfig
	require.NoError(t, LoadAndValidate(path, &cfg))

	// Environment wins over the file value.
	assert.Equal(t, ":9999", cfg.ListenAddr)
}

func TestLoadAndValidateRunsValidator(t *testing.T) {
	path := writeConfig(t, `{}`)

	var cfg validatedConfig

	err := LoadAndValidate(path, &cfg)
	assert.ErrorIs(t, err, errMissingListenAddr)
}

func TestValidateConfigWithoutValidator(t *testing.T) {
	var cfg testConfig

	assert.NoError(t, ValidateConfig(&cfg))
}
