package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger("world", &buf, WARN)

	logger.Debug("скрытое сообщение %d", 1)
	logger.Info("тоже скрытое")
	logger.Warn("чанк %s выгружен", "0,0,0")
	logger.Error("ошибка записи")

	out := buf.String()
	assert.NotContains(t, out, "скрытое")
	assert.Contains(t, out, "[WARN] [world] чанк 0,0,0 выгружен")
	assert.Contains(t, out, "[ERROR] [world] ошибка записи")
}

func TestDefaultLoggerSwap(t *testing.T) {
	var buf bytes.Buffer
	prev := getDefault()
	SetDefaultLogger(NewWriterLogger("", &buf, TRACE))
	defer SetDefaultLogger(prev)

	Trace("тик %d", 7)
	if !strings.Contains(buf.String(), "[TRACE] тик 7") {
		t.Errorf("Ожидалась строка трассировки, получено %q", buf.String())
	}
}

func TestLoggerManager(t *testing.T) {
	LogsDir = t.TempDir()

	lm := &LoggerManager{loggers: make(map[string]*Logger)}
	first, err := lm.GetLogger("storage")
	require.NoError(t, err)
	second, err := lm.GetLogger("storage")
	require.NoError(t, err)
	assert.Same(t, first, second, "логгер компонента должен кэшироваться")

	assert.Equal(t, []string{"storage"}, lm.ListComponents())
	assert.NoError(t, lm.SetLogLevel("storage", ERROR, WARN))
	assert.Error(t, lm.SetLogLevel("missing", ERROR, WARN))
	assert.NoError(t, lm.CloseAll())
	assert.Empty(t, lm.ListComponents())
}

func TestLoggerManagerConfigure(t *testing.T) {
	dir := t.TempDir()
	var console bytes.Buffer
	lm := newManager(DefaultOptions())
	lm.Configure(Options{ConsoleLevel: WARN, FileLevel: DEBUG, Files: true, Dir: dir, Console: &console})

	l, err := lm.GetLogger("network")
	require.NoError(t, err)
	l.Debug("только в файл")
	l.Warn("и туда и туда")
	require.NoError(t, lm.CloseAll())

	assert.NotContains(t, console.String(), "только в файл")
	assert.Contains(t, console.String(), "[WARN] [network] и туда и туда")

	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.True(t, strings.HasPrefix(files[0].Name(), "network_"))
	data, err := os.ReadFile(filepath.Join(dir, files[0].Name()))
	require.NoError(t, err)
	assert.Contains(t, string(data), "[DEBUG] [network] только в файл")
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]LogLevel{"trace": TRACE, "Debug": DEBUG, "": INFO, "warning": WARN, "ERROR": ERROR} {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseLevel("громко")
	assert.Error(t, err)
}

func TestHexDump(t *testing.T) {
	t.Run("Пустые данные", func(t *testing.T) {
		assert.Equal(t, "No data", HexDump(nil))
	})

	t.Run("Усечение до 256 байт", func(t *testing.T) {
		data := make([]byte, 1024)
		dump := HexDump(data)
		lines := strings.Count(strings.TrimSpace(dump), "\n") + 1
		assert.Equal(t, 16, lines)
	})
}

func TestLogLevelString(t *testing.T) {
	assert.Equal(t, "DEBUG", DEBUG.String())
	assert.Equal(t, "UNKNOWN", LogLevel(42).String())
}
