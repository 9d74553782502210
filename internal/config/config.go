package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

// Settings is the persisted document. The settings page mutates these
// fields at runtime and every change is written back to the file, so the
// JSON layout must stay stable.
type Settings struct {
	WorkbookPath    string   `json:"workbook_path"`
	BackupDirectory string   `json:"backup_directory"`
	LogDirectory    string   `json:"log_directory"`
	SheetName       string   `json:"sheet_name"`
	Tags            []string `json:"tags"`
	LogLevel        string   `json:"log_level"`
}

// Config combines the persisted settings with server-only knobs that come
// from the environment. Settings access is guarded: the HTTP handlers
// mutate them while other requests read.
type Config struct {
	mu       sync.RWMutex
	path     string
	settings Settings

	// HTTP server
	Port string

	// Backend selection: excel, memory, or sheets.
	DataBackend string

	// Audit journal database.
	JournalDBPath string

	// Reference dataset for category recommendations.
	ReferenceSetPath string
}

// ValidLogLevels are the levels the settings endpoint accepts.
var ValidLogLevels = []string{"DEBUG", "INFO", "WARNING", "ERROR"}

func defaults() Settings {
	return Settings{
		WorkbookPath:    "",
		BackupDirectory: "./backups",
		LogDirectory:    "./logs",
		SheetName:       "Transacties",
		Tags:            []string{"Algemeen", "Evenement", "Materiaal", "Training", "Overig"},
		LogLevel:        "INFO",
	}
}

// Load reads the settings file (default config.json, overridable with
// KASBOEK_CONFIG) and the environment. A missing settings file is not
// fatal: the app starts on defaults and the user configures paths via
// the settings page.
func Load() (*Config, error) {
	path := getEnv("KASBOEK_CONFIG", "config.json")

	cfg := &Config{
		path:             path,
		settings:         defaults(),
		Port:             getEnv("PORT", "5000"),
		DataBackend:      getEnv("DATA_BACKEND", "excel"),
		JournalDBPath:    getEnv("JOURNAL_DB_PATH", "./data/kasboek.db"),
		ReferenceSetPath: getEnv("REFERENCE_SET_PATH", "./data/category_reference.xlsx"),
	}

	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read settings file %s: %w", path, err)
	}
	var s Settings
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("parse settings file %s: %w", path, err)
	}
	if s.SheetName == "" {
		s.SheetName = cfg.settings.SheetName
	}
	if len(s.Tags) == 0 {
		s.Tags = cfg.settings.Tags
	}
	if s.LogLevel == "" {
		s.LogLevel = cfg.settings.LogLevel
	}
	cfg.settings = s
	return cfg, nil
}

// Save writes the current settings document back to disk.
func (c *Config) Save() error {
	c.mu.RLock()
	b, err := json.MarshalIndent(c.settings, "", "    ")
	c.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	if err := os.WriteFile(c.path, append(b, '\n'), 0o644); err != nil {
		return fmt.Errorf("write settings file %s: %w", c.path, err)
	}
	return nil
}

// Validate collects all configuration problems into a single error and
// creates the backup and log directories when missing.
func (c *Config) Validate() error {
	var problems []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		problems = append(problems, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		problems = append(problems, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	switch c.DataBackend {
	case "excel", "memory", "sheets":
	default:
		problems = append(problems, fmt.Sprintf("invalid data backend '%s': must be one of [excel memory sheets]", c.DataBackend))
	}

	c.mu.RLock()
	s := c.settings
	c.mu.RUnlock()

	if !isValidLogLevel(s.LogLevel) {
		problems = append(problems, fmt.Sprintf("invalid log level '%s': must be one of %v", s.LogLevel, ValidLogLevels))
	}
	if s.WorkbookPath != "" {
		if !strings.HasSuffix(strings.ToLower(s.WorkbookPath), ".xlsx") {
			problems = append(problems, fmt.Sprintf("workbook path '%s' must end in .xlsx", s.WorkbookPath))
		} else if dir := filepath.Dir(s.WorkbookPath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				problems = append(problems, fmt.Sprintf("cannot create workbook directory '%s': %v", dir, err))
			}
		}
	}

	for name, dir := range map[string]string{
		"backup": s.BackupDirectory,
		"log":    s.LogDirectory,
	} {
		if dir == "" {
			problems = append(problems, fmt.Sprintf("%s directory cannot be empty", name))
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			problems = append(problems, fmt.Sprintf("cannot create %s directory '%s': %v", name, dir, err))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(problems, "\n- "))
	}
	return nil
}

// Snapshot returns a copy of the current settings for display.
func (c *Config) Snapshot() Settings {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := c.settings
	s.Tags = append([]string(nil), c.settings.Tags...)
	return s
}

// Workbook returns the current workbook path and sheet name.
func (c *Config) Workbook() (path, sheet string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.settings.WorkbookPath, c.settings.SheetName
}

func (c *Config) WorkbookPath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.settings.WorkbookPath
}

func (c *Config) BackupDirectory() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.settings.BackupDirectory
}

func (c *Config) LogDirectory() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.settings.LogDirectory
}

func (c *Config) Tags() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.settings.Tags...)
}

func (c *Config) LogLevel() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.settings.LogLevel
}

// Setters used by the settings endpoints. Each updates the in-memory
// document and persists it; on a save failure the old value is restored
// so memory and disk stay consistent.

func (c *Config) SetWorkbookPath(path string) error {
	return c.update(func(s *Settings) { s.WorkbookPath = path })
}

func (c *Config) SetBackupDirectory(dir string) error {
	return c.update(func(s *Settings) { s.BackupDirectory = dir })
}

func (c *Config) SetLogDirectory(dir string) error {
	return c.update(func(s *Settings) { s.LogDirectory = dir })
}

func (c *Config) SetSheetName(name string) error {
	return c.update(func(s *Settings) { s.SheetName = name })
}

func (c *Config) SetLogLevel(level string) error {
	level = strings.ToUpper(strings.TrimSpace(level))
	if !isValidLogLevel(level) {
		return fmt.Errorf("invalid log level '%s'", level)
	}
	return c.update(func(s *Settings) { s.LogLevel = level })
}

func (c *Config) update(apply func(*Settings)) error {
	c.mu.Lock()
	prev := c.settings
	apply(&c.settings)
	c.mu.Unlock()

	if err := c.Save(); err != nil {
		c.mu.Lock()
		c.settings = prev
		c.mu.Unlock()
		return err
	}
	return nil
}

func isValidLogLevel(level string) bool {
	for _, l := range ValidLogLevels {
		if level == l {
			return true
		}
	}
	return false
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
