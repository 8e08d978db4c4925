// Package shellconfig carries the ambient configuration the shell core
// itself needs — log level, the completion autoload search path, fork
// retry policy, recursion depth — NOT a scripting config/startup-script
// loader (that remains an external collaborator per spec.md §1).
//
// Adapted from the teacher's config.ConfigManager: priority order is
// flags (applied by the caller via Set) > environment variables >
// ".env" file (github.com/joho/godotenv) > defaults, behind a
// sync.RWMutex so the single-writer/multi-reader contract of spec.md §5
// holds for configuration exactly as it does for the environment
// snapshot (see internal/env).
package shellconfig

import (
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// Manager centralizes access to the shell's own ambient settings.
type Manager struct {
	mu     sync.RWMutex
	values map[string]string
	logger *zap.Logger
}

func New(logger *zap.Logger) *Manager {
	return &Manager{values: make(map[string]string), logger: logger}
}

func (m *Manager) Load() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadDefaults()
	m.loadEnvFile()
	m.loadEnvVars()
}

// Reload re-reads the .env file and environment variables, e.g. in
// response to the fsnotify watch shared with the completion autoloader
// (internal/complete) firing on the .env file itself.
func (m *Manager) Reload() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values = make(map[string]string)
	m.loadDefaults()
	m.loadEnvFile()
	m.loadEnvVars()
	if m.logger != nil {
		m.logger.Info("configuration reloaded")
	}
}

func (m *Manager) loadDefaults() {
	m.values["WRENSH_LOG_LEVEL"] = "info"
	m.values["WRENSH_ENV"] = "dev"
	m.values["WRENSH_COMPLETE_PATH"] = defaultCompletePath()
	m.values["WRENSH_MAX_FUNCTION_DEPTH"] = "128"
	m.values["WRENSH_FORK_RETRY_ATTEMPTS"] = "5"
	m.values["WRENSH_FORK_RETRY_DELAY_MS"] = "1"
	m.values["WRENSH_USER_COMPLETE_BUDGET_MS"] = "200"
}

func defaultCompletePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return home + "/.config/wrensh/completions"
}

func (m *Manager) loadEnvFile() {
	envMap, err := godotenv.Read()
	if err != nil {
		if m.logger != nil {
			m.logger.Debug("no .env file found or failed to read it", zap.Error(err))
		}
		return
	}
	for k, v := range envMap {
		m.values[k] = v
	}
}

func (m *Manager) loadEnvVars() {
	for _, e := range os.Environ() {
		if k, v, ok := strings.Cut(e, "="); ok {
			m.values[k] = v
		}
	}
}

// Set injects a value, typically from a command-line flag, which
// outranks everything loaded by Load/Reload.
func (m *Manager) Set(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
}

func (m *Manager) GetString(key string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.values[key]
}

func (m *Manager) GetInt(key string, def int) int {
	v := m.GetString(key)
	if v == "" {
		return def
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return def
}

func (m *Manager) GetDuration(key string, def time.Duration) time.Duration {
	v := m.GetString(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	return def
}
