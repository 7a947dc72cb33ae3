package startup

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"localfiles/internal/logging"
)

const (
	// ConfigFileEnv names the environment variable holding the TOML config path.
	ConfigFileEnv = "LOCALFILES_CONFIG"

	BackendSQLite = "sqlite"
	BackendRedis  = "redis"

	databaseSubdir = "stremio-local-files"
	databaseFile   = "index.db"
)

// Config holds all application configuration
type Config struct {
	DataDir         string
	Port            string
	MetricsPort     string
	MetricsEnabled  bool
	LogHealthChecks bool

	StoreBackend string
	RedisURL     string

	CacheDirName     string
	ScanInterval     time.Duration
	ScanStartupDelay time.Duration
	FallbackTimeout  time.Duration
	FallbackRoots    []string
	WatchEnabled     bool
	IngestWorkers    int

	CatalogURL  string
	ResolverURL string

	// Derived paths
	DatabasePath string
	// BinDir holds helper executables shipped next to the server binary.
	BinDir string
}

// source resolves a setting from the process environment, the config file
// and .env files, in that order.
type source struct {
	env    func(string) (string, bool)
	file   map[string]string
	dotenv map[string]string
}

func (s source) lookup(key string) (string, bool) {
	if v, ok := s.env(key); ok && v != "" {
		return v, true
	}
	if v, ok := s.file[key]; ok {
		return v, true
	}
	if v, ok := s.dotenv[key]; ok && v != "" {
		return v, true
	}
	return "", false
}

func (s source) getEnv(key, defaultValue string) string {
	if v, ok := s.lookup(key); ok {
		return v
	}
	return defaultValue
}

func (s source) getEnvBool(key string, defaultValue bool) bool {
	v, ok := s.lookup(key)
	if !ok {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		logging.Warn("Invalid boolean value for %s: %q, using default: %v", key, v, defaultValue)
		return defaultValue
	}
	return parsed
}

func (s source) getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	v, ok := s.lookup(key)
	if !ok {
		return defaultValue
	}
	parsed, err := time.ParseDuration(v)
	if err != nil || parsed < 0 {
		logging.Warn("Invalid duration for %s: %q, using default: %v", key, v, defaultValue)
		return defaultValue
	}
	return parsed
}

func (s source) getEnvInt(key string, defaultValue int) int {
	v, ok := s.lookup(key)
	if !ok {
		return defaultValue
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		logging.Warn("Invalid integer for %s: %q, using default: %d", key, v, defaultValue)
		return defaultValue
	}
	return parsed
}

// getEnvList splits on the OS path list separator.
func (s source) getEnvList(key string, defaultValue []string) []string {
	v, ok := s.lookup(key)
	if !ok {
		return defaultValue
	}
	var out []string
	for _, p := range filepath.SplitList(v) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// LoadConfig loads and validates configuration from .env files, the
// optional TOML file named by LOCALFILES_CONFIG and the environment.
func LoadConfig() (*Config, error) {
	printBanner()
	logSystemInfo()

	section("CONFIGURATION")

	dotenv, err := readDotenv(".env")
	if err != nil {
		return nil, err
	}

	src := source{env: os.LookupEnv, dotenv: dotenv}
	if path := src.getEnv(ConfigFileEnv, ""); path != "" {
		logging.Info("  Config file:         %s", path)
		file, err := readConfigFile(path)
		if err != nil {
			return nil, err
		}
		src.file = file
	}

	home, _ := os.UserHomeDir()
	config, err := buildConfig(src, runtime.GOOS, home)
	if err != nil {
		return nil, err
	}
	if exe, err := os.Executable(); err == nil {
		config.BinDir = filepath.Dir(exe)
	}
	logConfig(config)

	if config.StoreBackend == BackendSQLite {
		section("DIRECTORY SETUP")

		dbDir := filepath.Dir(config.DatabasePath)
		if err := ensureDirectory(dbDir); err != nil {
			return nil, fmt.Errorf("database directory error: %w", err)
		}
		if err := testWriteAccess(dbDir); err != nil {
			return nil, fmt.Errorf("database directory is not writable: %w", err)
		}
		logging.Info("  [OK] Database directory is writable: %s", dbDir)
	}

	return config, nil
}

// buildConfig resolves every setting against its default.
func buildConfig(src source, goos, home string) (*Config, error) {
	dataDir := src.getEnv("DATA_DIR", defaultDataDir(goos, home, src.getEnv("APPDATA", "")))
	dataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	config := &Config{
		DataDir:          dataDir,
		Port:             src.getEnv("PORT", "3033"),
		MetricsPort:      src.getEnv("METRICS_PORT", "9090"),
		MetricsEnabled:   src.getEnvBool("METRICS_ENABLED", true),
		LogHealthChecks:  src.getEnvBool("LOG_HEALTH_CHECKS", false),
		StoreBackend:     strings.ToLower(src.getEnv("STORE_BACKEND", BackendSQLite)),
		RedisURL:         src.getEnv("REDIS_URL", "redis://localhost:6379/0"),
		CacheDirName:     src.getEnv("CACHE_DIR_NAME", "stremio-cache"),
		ScanInterval:     src.getEnvDuration("SCAN_INTERVAL", time.Minute),
		ScanStartupDelay: src.getEnvDuration("SCAN_STARTUP_DELAY", 5*time.Second),
		FallbackTimeout:  src.getEnvDuration("FALLBACK_TIMEOUT", 3*time.Second),
		FallbackRoots:    src.getEnvList("FALLBACK_ROOTS", defaultFallbackRoots(goos, home)),
		WatchEnabled:     src.getEnvBool("WATCH_ENABLED", false),
		IngestWorkers:    src.getEnvInt("INGEST_WORKERS", 0),
		CatalogURL:       src.getEnv("CATALOG_URL", "https://v3-cinemeta.strem.io/stremioget/stremio/v1"),
		ResolverURL:      src.getEnv("RESOLVER_URL", "https://v3-cinemeta.strem.io"),
		DatabasePath:     filepath.Join(dataDir, databaseSubdir, databaseFile),
	}

	switch config.StoreBackend {
	case BackendSQLite, BackendRedis:
	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND %q (want %s or %s)", config.StoreBackend, BackendSQLite, BackendRedis)
	}
	if config.ScanInterval <= 0 {
		return nil, errors.New("SCAN_INTERVAL must be positive")
	}
	if config.IngestWorkers < 0 {
		return nil, errors.New("INGEST_WORKERS must not be negative")
	}
	return config, nil
}

// DefaultDatabasePath resolves the sqlite index path from DATA_DIR or the
// platform default, without loading the rest of the configuration.
func DefaultDatabasePath() string {
	home, _ := os.UserHomeDir()
	dataDir := getenvDefault("DATA_DIR", defaultDataDir(runtime.GOOS, home, os.Getenv("APPDATA")))
	return filepath.Join(dataDir, databaseSubdir, databaseFile)
}

func getenvDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func defaultDataDir(goos, home, appData string) string {
	switch goos {
	case "windows":
		if appData != "" {
			return filepath.Join(appData, "stremio")
		}
		return filepath.Join(home, "AppData", "Roaming", "stremio")
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "stremio")
	default:
		return filepath.Join(home, ".stremio")
	}
}

func defaultFallbackRoots(goos, home string) []string {
	var roots []string
	if home != "" {
		roots = append(roots,
			filepath.Join(home, "Downloads"),
			filepath.Join(home, "Videos"),
			filepath.Join(home, "Desktop"),
		)
	}
	if goos == "windows" {
		roots = append(roots, `E:\Movies`, `D:\Movies`)
	}
	return roots
}

// readDotenv reads path without touching the process environment. A
// missing file is not an error.
func readDotenv(path string) (map[string]string, error) {
	values, err := godotenv.Read(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	logging.Info("  Loaded %d settings from %s", len(values), path)
	return values, nil
}

// readConfigFile decodes a flat TOML table whose keys are the setting
// names in any case, e.g. port = 3033 or scan_interval = "2m".
func readConfigFile(path string) (map[string]string, error) {
	var raw map[string]any
	if _, err := toml.DecodeFile(path, &raw); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	values := make(map[string]string, len(raw))
	for key, v := range raw {
		key = strings.ToUpper(key)
		switch t := v.(type) {
		case []any:
			parts := make([]string, 0, len(t))
			for _, p := range t {
				parts = append(parts, fmt.Sprint(p))
			}
			values[key] = strings.Join(parts, string(os.PathListSeparator))
		case map[string]any:
			return nil, fmt.Errorf("config file %s: nested table %q is not supported", path, key)
		default:
			values[key] = fmt.Sprint(t)
		}
	}
	return values, nil
}

func logConfig(c *Config) {
	logging.Info("  DATA_DIR:            %s", c.DataDir)
	logging.Info("  PORT:                %s", c.Port)
	logging.Info("  METRICS_PORT:        %s", c.MetricsPort)
	logging.Info("  METRICS_ENABLED:     %v", c.MetricsEnabled)
	logging.Info("  STORE_BACKEND:       %s", c.StoreBackend)
	if c.StoreBackend == BackendRedis {
		logging.Info("  REDIS_URL:           %s", redactURL(c.RedisURL))
	}
	logging.Info("  CACHE_DIR_NAME:      %s", c.CacheDirName)
	logging.Info("  SCAN_INTERVAL:       %v", c.ScanInterval)
	logging.Info("  SCAN_STARTUP_DELAY:  %v", c.ScanStartupDelay)
	logging.Info("  FALLBACK_TIMEOUT:    %v", c.FallbackTimeout)
	logging.Info("  FALLBACK_ROOTS:      %s", strings.Join(c.FallbackRoots, string(os.PathListSeparator)))
	logging.Info("  WATCH_ENABLED:       %v", c.WatchEnabled)
	logging.Info("  INGEST_WORKERS:      %d", c.IngestWorkers)
	logging.Info("  CATALOG_URL:         %s", c.CatalogURL)
	logging.Info("  RESOLVER_URL:        %s", c.ResolverURL)
	logging.Info("  LOG_HEALTH_CHECKS:   %v", c.LogHealthChecks)
	logging.Info("  LOG_LEVEL:           %s", logging.GetLevel())
}

// redactURL hides the password in a connection URL.
func redactURL(raw string) string {
	at := strings.LastIndex(raw, "@")
	scheme := strings.Index(raw, "://")
	if at < 0 || scheme < 0 || at < scheme {
		return raw
	}
	creds := raw[scheme+3 : at]
	if i := strings.Index(creds, ":"); i >= 0 {
		creds = creds[:i] + ":***"
	}
	return raw[:scheme+3] + creds + raw[at:]
}

func ensureDirectory(path string) error {
	logging.Debug("  Checking directory: %s", path)

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		logging.Debug("    [OK] Created directory: %s", path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path exists but is not a directory")
	}
	return nil
}

func testWriteAccess(dir string) error {
	testFile := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		return err
	}
	if err := os.Remove(testFile); err != nil {
		logging.Warn("failed to remove write test file %s: %v", testFile, err)
	}
	return nil
}
