package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLogToFile(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "bake.log")
	log := New("info", FileConfig{Path: logFile, MaxSizeMB: 1, MaxBackups: 1, MaxAgeDays: 1}, false)

	for i := range 100 {
		log.Info("phase complete", zap.String("phase", "radiosity"), zap.Int("pass", i))
	}
	require.NoError(t, log.Sync())

	content, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Equal(t, 100, strings.Count(string(content), "phase complete"))
	assert.Contains(t, string(content), "phase=")
}

func TestLogLevels(t *testing.T) {
	tempDir := t.TempDir()

	tests := []struct {
		level    string
		expected []string
		excluded []string
	}{
		{"debug", []string{"DEBUG", "INFO", "WARN", "ERROR"}, nil},
		{"info", []string{"INFO", "WARN", "ERROR"}, []string{"DEBUG"}},
		{"warn", []string{"WARN", "ERROR"}, []string{"DEBUG", "INFO"}},
		{"error", []string{"ERROR"}, []string{"DEBUG", "INFO", "WARN"}},
		{"bogus", []string{"INFO"}, []string{"DEBUG"}},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logFile := filepath.Join(tempDir, tt.level+".log")
			InitWithFileConfig(tt.level, FileConfig{Path: logFile, MaxSizeMB: 10, MaxBackups: 1, MaxAgeDays: 1}, false)

			Log.Debug("texel rasterized")
			Log.Info("mapping baked")
			Log.Warn("light discarded")
			Log.Error("worker fault")
			Sync()

			content, err := os.ReadFile(logFile)
			require.NoError(t, err)
			for _, exp := range tt.expected {
				assert.Contains(t, string(content), exp)
			}
			for _, exc := range tt.excluded {
				assert.NotContains(t, string(content), exc)
			}
		})
	}
}

func TestDefaultFileConfig(t *testing.T) {
	cfg := DefaultFileConfig("/tmp/bake.log")
	assert.Equal(t, "/tmp/bake.log", cfg.Path)
	assert.Equal(t, 50, cfg.MaxSizeMB)
	assert.Equal(t, 5, cfg.MaxBackups)
	assert.Equal(t, 14, cfg.MaxAgeDays)
	assert.True(t, cfg.Compress)
}
