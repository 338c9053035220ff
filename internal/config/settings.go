package config

import (
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Ключи настроек сервера
const (
	KeyMotd                   = "server.motd"
	KeyViewDistanceHorizontal = "server.view_distance.horizontal"
	KeyViewDistanceVertical   = "server.view_distance.vertical"
)

// ServerSettings хранит настройки из save/settings.txt.
// Каждый запрошенный ключ попадает в карту, так что сохранённый файл
// перечисляет все использованные настройки.
type ServerSettings struct {
	mu     sync.Mutex
	values map[string]string
}

// NewSettings создаёт пустой набор настроек
func NewSettings() *ServerSettings {
	return &ServerSettings{values: make(map[string]string)}
}

// LoadSettings разбирает строки вида key=value. Строки без '=' пропускаются.
func LoadSettings(text string) *ServerSettings {
	s := NewSettings()
	for _, line := range strings.Split(text, "\n") {
		key, value, ok := strings.Cut(strings.TrimRight(line, "\r"), "=")
		if !ok {
			continue
		}
		s.values[key] = value
	}
	return s
}

// Get возвращает значение ключа, записывая default при отсутствии
func (s *ServerSettings) Get(key, def string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := s.values[key]; ok {
		return v
	}
	s.values[key] = def
	return def
}

// GetInt64 возвращает целое значение; при ошибке разбора возвращает default
func (s *ServerSettings) GetInt64(key string, def int64) int64 {
	raw := s.Get(key, strconv.FormatInt(def, 10))
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return def
	}
	return v
}

// GetFloat64 возвращает вещественное значение; при ошибке разбора возвращает default
func (s *ServerSettings) GetFloat64(key string, def float64) float64 {
	raw := s.Get(key, strconv.FormatFloat(def, 'g', -1, 64))
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return def
	}
	return v
}

// Set задаёт значение ключа
func (s *ServerSettings) Set(key, value string) {
	s.mu.Lock()
	s.values[key] = value
	s.mu.Unlock()
}

// SaveToString сериализует настройки как key=value\n, отсортированные по ключу
func (s *ServerSettings) SaveToString() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(s.values[k])
		b.WriteByte('\n')
	}
	return b.String()
}
