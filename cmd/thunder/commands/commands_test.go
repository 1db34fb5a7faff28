package commands

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the root command with args and returns its stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
		cfgFile = ""
	})
	err := rootCmd.Execute()
	return buf.String(), err
}

func writeConfig(t *testing.T, pluginFiles map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	pluginDir := filepath.Join(dir, "plugins")
	require.NoError(t, os.MkdirAll(pluginDir, 0755))
	for name, src := range pluginFiles {
		require.NoError(t, os.WriteFile(filepath.Join(pluginDir, name), []byte(src), 0644))
	}

	path := filepath.Join(dir, "config.yaml")
	content := "plugins:\n  pattern: " + filepath.Join(pluginDir, "*.lua") + "\nbot:\n  owner_ids: [7]\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestVersionShort(t *testing.T) {
	Version = "1.4.0"
	t.Cleanup(func() {
		Version = "dev"
		versionShort = false
	})

	out, err := execute(t, "version", "--short")
	require.NoError(t, err)
	assert.Equal(t, "1.4.0\n", out)
}

func TestPluginsDryRun(t *testing.T) {
	path := writeConfig(t, map[string]string{
		"echo.lua":   `thunder.command("echo", "repeat", function(msg) return msg.args end)`,
		"broken.lua": `this is not lua`,
	})
	t.Cleanup(func() {
		pluginsOutput = "table"
		pluginsStrict = false
	})

	out, err := execute(t, "plugins", "--config", path, "--output", "json")
	require.NoError(t, err)

	var rows []pluginRow
	require.NoError(t, json.Unmarshal([]byte(out), &rows))

	byName := make(map[string]pluginRow, len(rows))
	for _, r := range rows {
		byName[r.Name] = r
	}
	require.Contains(t, byName, "echo")
	assert.Equal(t, "loaded", byName["echo"].Status)
	assert.Equal(t, []string{"echo"}, byName["echo"].Commands)
	require.Contains(t, byName, "broken")
	assert.Equal(t, "failed", byName["broken"].Status)
	assert.NotEmpty(t, byName["broken"].Error)
	assert.Equal(t, "loaded", byName["restart"].Status, "builtins load during a dry run")
}

func TestPluginsStrictFailsOnBrokenPlugin(t *testing.T) {
	path := writeConfig(t, map[string]string{"broken.lua": `this is not lua`})
	t.Cleanup(func() {
		pluginsOutput = "table"
		pluginsStrict = false
	})

	out, err := execute(t, "plugins", "--config", path, "--strict")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
	assert.Contains(t, out, "Failed: 1")
}

func TestConfigInitThenValidate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "thunder", "config.yaml")

	out, err := execute(t, "config", "init", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, path)

	out, err = execute(t, "config", "validate", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Validation: OK")
	assert.Contains(t, out, "bot token not configured")
	assert.Contains(t, out, "sqlite")
}

func TestConfigShowRedactsSecrets(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("bot:\n  token: \"123:secret\"\n"), 0600))

	out, err := execute(t, "config", "show", "--config", path)
	require.NoError(t, err)
	assert.NotContains(t, out, "123:secret")
	assert.True(t, strings.Contains(out, "token: '********'") || strings.Contains(out, `token: "********"`), out)
}

func TestConfigSchema(t *testing.T) {
	out, err := execute(t, "config", "schema")
	require.NoError(t, err)

	var schema map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &schema))
	assert.Equal(t, "Thunder Configuration", schema["title"])
	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "shutdown_timeout")
	assert.Contains(t, props, "ratelimit")
}

func TestStartRequiresToken(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  output: stderr\n"), 0600))
	t.Setenv("THUNDER_BOT_TOKEN", "")

	_, err := execute(t, "start", "--config", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bot token is not configured")
}
