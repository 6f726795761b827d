package logger

import (
	"os"
	"path/filepath"
	"testing"

	"gatekeeper/internal/models"
	"gatekeeper/internal/version"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup_Stdout(t *testing.T) {
	log, closer, err := Setup(models.LoggingConfig{
		Level:  "info",
		Format: "json",
		Output: "stdout",
	}, version.GetInfo())

	require.NoError(t, err)
	assert.NotNil(t, log)
	assert.Nil(t, closer, "stdout needs no closer")
}

func TestSetup_TextFormat(t *testing.T) {
	log, closer, err := Setup(models.LoggingConfig{
		Level:  "debug",
		Format: "text",
		Output: "stderr",
	}, version.GetInfo())

	require.NoError(t, err)
	assert.NotNil(t, log)
	assert.Nil(t, closer)
}

func TestSetup_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gatekeeper.log")

	log, closer, err := Setup(models.LoggingConfig{
		Level:    "info",
		Format:   "json",
		Output:   "file",
		FilePath: path,
	}, version.GetInfo())

	require.NoError(t, err)
	require.NotNil(t, closer)
	defer closer.Close()

	log.Info("test message", "key", "value")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "test message")
	assert.Contains(t, string(data), `"version"`)
}

func TestSetup_FileWithoutPath(t *testing.T) {
	_, _, err := Setup(models.LoggingConfig{
		Level:  "info",
		Format: "json",
		Output: "file",
	}, version.GetInfo())

	assert.Error(t, err)
}

func TestSetup_InvalidLevel(t *testing.T) {
	_, _, err := Setup(models.LoggingConfig{
		Level:  "verbose",
		Format: "json",
		Output: "stdout",
	}, version.GetInfo())

	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input   string
		wantErr bool
	}{
		{"debug", false},
		{"info", false},
		{"WARN", false},
		{"Error", false},
		{"trace", true},
		{"", true},
	}

	for _, tt := range tests {
		_, err := parseLevel(tt.input)
		if tt.wantErr {
			assert.Error(t, err, "level %q", tt.input)
		} else {
			assert.NoError(t, err, "level %q", tt.input)
		}
	}
}
