package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strings"
	"sync"
)

// Options определяют, куда и с каким уровнем пишут компонентные логгеры
type Options struct {
	ConsoleLevel LogLevel
	FileLevel    LogLevel
	Files        bool   // писать ли logs/<component>_<timestamp>.log
	Dir          string // каталог файлов, по умолчанию LogsDir
	Console      io.Writer
}

// DefaultOptions консоль с INFO, без файлов
func DefaultOptions() Options {
	return Options{ConsoleLevel: INFO, FileLevel: DEBUG}
}

// ParseLevel разбирает имя уровня без учёта регистра
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return TRACE, nil
	case "DEBUG":
		return DEBUG, nil
	case "", "INFO":
		return INFO, nil
	case "WARN", "WARNING":
		return WARN, nil
	case "ERROR":
		return ERROR, nil
	}
	return INFO, fmt.Errorf("неизвестный уровень логирования %q", s)
}

// LoggerManager раздаёт логгеры компонентам. Логгер создаётся при первом
// запросе и дальше переиспользуется.
type LoggerManager struct {
	mu      sync.RWMutex
	opts    Options
	loggers map[string]*Logger
}

var (
	globalManager *LoggerManager
	managerOnce   sync.Once
)

// GetLoggerManager возвращает глобальный менеджер логгеров
func GetLoggerManager() *LoggerManager {
	managerOnce.Do(func() {
		globalManager = newManager(DefaultOptions())
	})
	return globalManager
}

func newManager(opts Options) *LoggerManager {
	return &LoggerManager{opts: opts, loggers: make(map[string]*Logger)}
}

// Configure меняет параметры. Уже выданные логгеры получают новые уровни,
// файлы открываются только для логгеров, созданных после вызова.
func (lm *LoggerManager) Configure(opts Options) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	lm.opts = opts
	for _, l := range lm.loggers {
		l.mu.Lock()
		l.minConsoleLevel = opts.ConsoleLevel
		l.minFileLevel = opts.FileLevel
		l.mu.Unlock()
	}
}

func (lm *LoggerManager) create(component string) (*Logger, error) {
	console := lm.opts.Console
	if console == nil {
		console = os.Stdout
	}
	if !lm.opts.Files {
		l := NewWriterLogger(component, console, lm.opts.ConsoleLevel)
		l.consoleLogger.SetFlags(log.LstdFlags)
		return l, nil
	}

	dir := lm.opts.Dir
	if dir == "" {
		dir = LogsDir
	}
	l, err := newFileLogger(component, dir)
	if err != nil {
		return nil, err
	}
	l.consoleLogger = log.New(console, "", log.LstdFlags)
	l.minConsoleLevel = lm.opts.ConsoleLevel
	l.minFileLevel = lm.opts.FileLevel
	return l, nil
}

// GetLogger возвращает логгер компонента
func (lm *LoggerManager) GetLogger(component string) (*Logger, error) {
	lm.mu.RLock()
	l, ok := lm.loggers[component]
	lm.mu.RUnlock()
	if ok {
		return l, nil
	}

	lm.mu.Lock()
	defer lm.mu.Unlock()
	if l, ok := lm.loggers[component]; ok {
		return l, nil
	}
	l, err := lm.create(component)
	if err != nil {
		return nil, fmt.Errorf("логгер компонента %s: %w", component, err)
	}
	lm.loggers[component] = l
	return l, nil
}

// MustGetLogger как GetLogger, но при ошибке отдаёт консольный логгер
func (lm *LoggerManager) MustGetLogger(component string) *Logger {
	l, err := lm.GetLogger(component)
	if err == nil {
		return l
	}
	return &Logger{
		component:       component,
		consoleLogger:   getDefault().consoleLogger,
		minConsoleLevel: INFO,
		minFileLevel:    ERROR + 1,
	}
}

// CloseAll закрывает файлы и забывает логгеры
func (lm *LoggerManager) CloseAll() error {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	var firstErr error
	for component, l := range lm.loggers {
		if err := l.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("закрытие логгера %s: %w", component, err)
		}
	}
	lm.loggers = make(map[string]*Logger)
	return firstErr
}

// ListComponents имена компонентов по алфавиту
func (lm *LoggerManager) ListComponents() []string {
	lm.mu.RLock()
	components := make([]string, 0, len(lm.loggers))
	for c := range lm.loggers {
		components = append(components, c)
	}
	lm.mu.RUnlock()
	sort.Strings(components)
	return components
}

// SetLogLevel меняет уровни одного компонента
func (lm *LoggerManager) SetLogLevel(component string, consoleLevel, fileLevel LogLevel) error {
	lm.mu.RLock()
	l, ok := lm.loggers[component]
	lm.mu.RUnlock()
	if !ok {
		return fmt.Errorf("логгер компонента %s не найден", component)
	}

	l.mu.Lock()
	l.minConsoleLevel = consoleLevel
	l.minFileLevel = fileLevel
	l.mu.Unlock()
	return nil
}

func GetComponentLogger(component string) *Logger {
	return GetLoggerManager().MustGetLogger(component)
}

func GetNetworkLogger() *Logger { return GetComponentLogger("network") }
func GetServerLogger() *Logger  { return GetComponentLogger("server") }
func GetGameLogger() *Logger    { return GetComponentLogger("game") }
func GetStorageLogger() *Logger { return GetComponentLogger("storage") }
func GetWorldLogger() *Logger   { return GetComponentLogger("world") }
