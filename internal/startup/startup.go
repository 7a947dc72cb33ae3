package startup

import (
	"fmt"
	"os"
	"runtime"
	"sort"
	"time"

	"localfiles/internal/logging"
	"localfiles/internal/memory"

	"github.com/gorilla/mux"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// RouteInfo contains information about a registered route
type RouteInfo struct {
	Method string
	Path   string
	Name   string
}

// LogStoreInit logs index store initialization
func LogStoreInit(backend string, duration time.Duration) {
	section("INDEX STORE INITIALIZATION")
	logging.Info("  Backend: %s", backend)
	logging.Info("  [OK] Store initialized in %v", duration)
}

// LogMemoryConfig logs the soft memory limit applied at startup
func LogMemoryConfig(result memory.ConfigResult) {
	switch {
	case !result.Configured:
		logging.Debug("  Memory limit: not configured")
	case result.Source == "MEMORY_LIMIT":
		logging.Info("  Memory limit: %d bytes (%.0f%% of %d)", result.GoMemLimit, result.Ratio*100, result.ContainerLimit)
	default:
		logging.Info("  Memory limit: %d bytes (from %s)", result.GoMemLimit, result.Source)
	}
}

// LogSchedulerInit logs scan scheduler configuration
func LogSchedulerInit(config *Config, nativeAvailable bool) {
	section("SCAN SCHEDULER INITIALIZATION")
	logging.Info("  Scan interval:    %v", config.ScanInterval)
	logging.Info("  First pass after: %v", config.ScanStartupDelay)
	if nativeAvailable {
		logging.Info("  Native discovery: available")
	} else {
		logging.Info("  Native discovery: unavailable, relying on fallback walk")
	}
	logging.Info("  Fallback roots:   %d (timeout %v)", len(config.FallbackRoots), config.FallbackTimeout)
	if config.WatchEnabled {
		logging.Info("  Filesystem watch: ENABLED")
	}
}

// LogSchedulerStarted logs successful scheduler start
func LogSchedulerStarted() {
	logging.Info("  [OK] Scan scheduler started")
}

// GetRoutes extracts all registered routes from a mux.Router
func GetRoutes(router *mux.Router) ([]RouteInfo, error) {
	var routes []RouteInfo

	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		pathTemplate, err := route.GetPathTemplate()
		if err != nil {
			return err
		}

		methods, err := route.GetMethods()
		if err != nil {
			methods = []string{"*"}
		}

		name := route.GetName()

		for _, method := range methods {
			routes = append(routes, RouteInfo{
				Method: method,
				Path:   pathTemplate,
				Name:   name,
			})
		}

		return nil
	})

	return routes, err
}

// LogHTTPRoutes logs the registered routes at debug level.
func LogHTTPRoutes(router *mux.Router, logHealthChecks bool) {
	section("HTTP SERVER SETUP")

	if logging.IsDebugEnabled() {
		routes, err := GetRoutes(router)
		if err != nil {
			logging.Warn("error walking routes: %v", err)
		}
		sort.SliceStable(routes, func(i, j int) bool { return routes[i].Path < routes[j].Path })

		logging.Debug("  Registered routes (%d total):", len(routes))
		for _, route := range routes {
			logging.Debug("    %-6s %s", route.Method, route.Path)
		}
	}

	if logHealthChecks {
		logging.Info("  Health probe logging: ON")
	} else {
		logging.Info("  Health probe logging: OFF (set LOG_HEALTH_CHECKS=true to enable)")
	}
}

// ServerConfig holds configuration for the server startup log
type ServerConfig struct {
	Port            string
	MetricsPort     string
	MetricsEnabled  bool
	StartupDuration time.Duration
}

// LogServerStarted logs the listening endpoints.
func LogServerStarted(config ServerConfig) {
	section("SERVER STARTED")
	logging.Info("  Startup time:  %v", config.StartupDuration)
	logging.Info("  Addon:         http://localhost:%s/manifest.json", config.Port)
	logging.Info("  Stats:         http://localhost:%s/api/stats", config.Port)
	if config.MetricsEnabled {
		logging.Info("  Metrics:       http://localhost:%s/metrics", config.MetricsPort)
	} else {
		logging.Info("  Metrics:       DISABLED")
	}
	logging.Info("")
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(signal string) {
	section("SHUTDOWN INITIATED (received " + signal + ")")
}

// LogShutdownStep logs a shutdown step
func LogShutdownStep(step string) {
	logging.Debug("  %s...", step)
}

// LogShutdownStepComplete logs a completed shutdown step
func LogShutdownStepComplete(step string) {
	logging.Info("  [OK] %s", step)
}

// LogShutdownComplete logs shutdown completion
func LogShutdownComplete() {
	logging.Info("  [OK] Shutdown complete")
}

// LogFatal logs a fatal error and exits
func LogFatal(format string, args ...interface{}) {
	logging.Fatal(format, args...)
}

// Helper functions

func printBanner() {
	banner := `
------------------------------------------------------------
    __                     __   _____ __
   / /   ____  _________ _/ /  / __(_) /__  _____
  / /   / __ \/ ___/ __ '/ /  / /_/ / / _ \/ ___/
 / /___/ /_/ / /__/ /_/ / /  / __/ / /  __(__  )
/_____/\____/\___/\__,_/_/  /_/ /_/_/\___/____/

------------------------------------------------------------`
	fmt.Println(banner)
	logging.Info("  Version:    %s", Version)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build Time: %s", BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
	logging.Info("")
}

func logSystemInfo() {
	section("SYSTEM INFORMATION")
	logging.Info("  Go version:      %s", runtime.Version())
	logging.Info("  OS/Arch:         %s/%s", runtime.GOOS, runtime.GOARCH)
	logging.Info("  CPUs available:  %d", runtime.NumCPU())
	logging.Info("  GOMAXPROCS:      %d", runtime.GOMAXPROCS(0))

	if runtime.GOMAXPROCS(0) < runtime.NumCPU() {
		logging.Info("  (Container CPU limit detected)")
	}

	if logging.IsDebugEnabled() {
		logging.Debug("  Goroutines:      %d", runtime.NumGoroutine())

		if wd, err := os.Getwd(); err == nil {
			logging.Debug("  Working dir:     %s", wd)
		}

		if hostname, err := os.Hostname(); err == nil {
			logging.Debug("  Hostname:        %s", hostname)
		}
	}

	logging.Info("")
}

const rule = "------------------------------------------------------------"

// section prints a titled divider.
func section(title string) {
	logging.Info("")
	logging.Info(rule)
	logging.Info("%s", title)
	logging.Info(rule)
}
