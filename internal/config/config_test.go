package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// TestDefault verifies the zero-configuration behavior reproduces the
// historical launcher: app.py on 8501 with a ten-port sweep, headless,
// auto-reload on, telemetry opted out.
func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "app.py", cfg.AppFile)
	assert.Equal(t, "python3", cfg.Interpreter)
	assert.Equal(t, 8501, cfg.BasePort)
	assert.Equal(t, 10, cfg.MaxAttempts)
	assert.Equal(t, []int{8501, 8502, 8503, 8504, 8505, 8506, 8507, 8508, 8509, 8510}, cfg.SweepPorts)
	assert.Equal(t, "streamlit.log", cfg.LogFile)
	assert.True(t, cfg.Headless)
	assert.True(t, cfg.AutoReload)
	assert.False(t, cfg.EnableCORS)
	assert.False(t, cfg.EnableXSRFProtection)
	assert.True(t, cfg.DisableTelemetry)
	assert.NoError(t, cfg.Validate())
}

// TestLoad_JSONC verifies JSONC parsing: comments and trailing commas are
// accepted, present keys override defaults, absent keys keep them.
func TestLoad_JSONC(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "berth.jsonc", `{
  // dashboard entry point
  "appFile": "dashboard.py",
  "basePort": 9000,
  "headless": false,  // show the browser locally
}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "dashboard.py", cfg.AppFile)
	assert.Equal(t, 9000, cfg.BasePort)
	assert.False(t, cfg.Headless)
	// Untouched keys keep their defaults.
	assert.Equal(t, "python3", cfg.Interpreter)
	assert.True(t, cfg.AutoReload)
	// The sweep list follows the overridden base port.
	assert.Equal(t, 9000, cfg.SweepPorts[0])
	assert.Equal(t, 9009, cfg.SweepPorts[len(cfg.SweepPorts)-1])
}

// TestLoad_YAML verifies the YAML branch of the loader.
func TestLoad_YAML(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "berth.yaml", `
appFile: report.py
maxAttempts: 3
patterns:
  - "streamlit run"
logFile: report.log
docker: false
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "report.py", cfg.AppFile)
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.Equal(t, []int{8501, 8502, 8503}, cfg.SweepPorts)
	assert.Equal(t, []string{"streamlit run"}, cfg.Patterns)
	assert.Equal(t, "report.log", cfg.LogFile)
	assert.False(t, cfg.Docker)
}

// TestLoad_ExplicitSweepWins verifies an explicit sweep list overrides the
// derived one even when basePort also changes.
func TestLoad_ExplicitSweepWins(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "berth.jsonc", `{
  "basePort": 9000,
  "sweepPorts": [8501, 9000]
}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []int{8501, 9000}, cfg.SweepPorts)
}

// TestLoad_InvalidValues verifies validation failures surface as errors.
func TestLoad_InvalidValues(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "berth.jsonc", `{"basePort": 70000}`)

	_, err := Load(path)
	assert.ErrorContains(t, err, "out of range")
}

// TestLoad_MalformedJSONC verifies a parse failure is reported, not
// silently defaulted.
func TestLoad_MalformedJSONC(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "berth.jsonc", `{"appFile": `)

	_, err := Load(path)
	assert.ErrorContains(t, err, "parsing JSONC config")
}

// TestLocate verifies the locate order: jsonc beats yaml when both exist,
// and a missing directory yields not-found.
func TestLocate(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "berth.yaml", "appFile: y.py\n")
	writeFile(t, dir, "berth.jsonc", `{"appFile": "j.py"}`)

	path, found := Locate(dir)
	require.True(t, found)
	assert.Equal(t, filepath.Join(dir, "berth.jsonc"), path)

	_, found = Locate(t.TempDir())
	assert.False(t, found)
}

// TestEffectivePatterns verifies pattern derivation from interpreter and
// entry file when no explicit patterns are configured.
func TestEffectivePatterns(t *testing.T) {
	cfg := Default()
	assert.Equal(t, []string{"streamlit run", "python3.*app.py"}, cfg.EffectivePatterns())

	cfg.Patterns = []string{"custom"}
	assert.Equal(t, []string{"custom"}, cfg.EffectivePatterns())
}

// TestValidate covers the individual field checks.
func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.AppFile = ""
	assert.ErrorContains(t, cfg.Validate(), "appFile")

	cfg = Default()
	cfg.MaxAttempts = 0
	assert.ErrorContains(t, cfg.Validate(), "maxAttempts")

	cfg = Default()
	cfg.SweepPorts = []int{0}
	assert.ErrorContains(t, cfg.Validate(), "sweepPorts")
}
