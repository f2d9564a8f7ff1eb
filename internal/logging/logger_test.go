package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriterLogger("mesher", &buf)

	l.Debug("не должно попасть")
	l.Info("чанк %d", 7)

	out := buf.String()
	assert.NotContains(t, out, "не должно попасть")
	assert.Contains(t, out, "[INFO] [mesher] чанк 7")
}

func TestManagerCreatesFileLoggers(t *testing.T) {
	old := LogDir
	LogDir = t.TempDir()
	defer func() { LogDir = old }()

	lm := &LoggerManager{loggers: make(map[string]*Logger)}
	a, err := lm.GetLogger("grid")
	require.NoError(t, err)
	b, err := lm.GetLogger("grid")
	require.NoError(t, err)
	assert.Same(t, a, b, "повторный запрос должен вернуть тот же логгер")

	require.NoError(t, lm.SetLogLevel("grid", ERROR, DEBUG))
	a.Debug("запись в файл")
	require.NoError(t, lm.CloseAll())

	files, err := filepath.Glob(filepath.Join(LogDir, "grid_*.log"))
	require.NoError(t, err)
	require.Len(t, files, 1)
	data, err := os.ReadFile(files[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), "запись в файл")
	assert.Error(t, lm.SetLogLevel("nope", INFO, INFO))
}
