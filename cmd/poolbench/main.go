// Command poolbench drives the configured pools with concurrent workloads and
// prints a JSON report.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coachpo/syncpool/internal/bench"
	"github.com/coachpo/syncpool/internal/config"
	"github.com/coachpo/syncpool/internal/observability"
	"github.com/coachpo/syncpool/internal/poolmgr"
	"github.com/coachpo/syncpool/internal/telemetry"
)

const (
	defaultConfigPath          = "poolbench.yaml"
	meterName                  = "github.com/coachpo/syncpool"
	poolManagerShutdownTimeout = 5 * time.Second
	telemetryShutdownTimeout   = 5 * time.Second
)

func main() {
	cfgPath := parseFlags(os.Args[1:])
	ctx, cancel := newSignalContext()
	code := run(ctx, cfgPath, os.Stdout)
	cancel()
	os.Exit(code)
}

func parseFlags(args []string) string {
	fs := flag.NewFlagSet("poolbench", flag.ExitOnError)
	cfgPath := fs.String("config", "", fmt.Sprintf("Path to configuration file (default: %s or $%s)", defaultConfigPath, config.PathEnvVar))
	_ = fs.Parse(args)
	return *cfgPath
}

func newSignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func newLogger(prefix string) *log.Logger {
	return log.New(os.Stderr, prefix, log.LstdFlags|log.Lmicroseconds)
}

// run executes the bench and returns the process exit code: 0 on success, 1
// on failure, 2 when a pool invariant was violated.
func run(ctx context.Context, cfgPath string, stdout io.Writer) int {
	logger := newLogger(config.Default().Log.Prefix)

	cfg, loadedFromFile, err := config.LoadOrDefault(ctx, resolveConfigPath(cfgPath))
	if err != nil {
		logger.Printf("load config: %v", err)
		return 1
	}
	logger = newLogger(cfg.Log.Prefix)
	observability.SetLogger(observability.NewStdLogger(logger, cfg.Log.Debug))
	defer observability.SetLogger(nil)

	if !loadedFromFile {
		logger.Printf("configuration file not found, using defaults")
	}
	logger.Printf("configuration initialised: env=%s, pools=%d, workers=%d, tasks=%d",
		cfg.Environment, len(cfg.Pools), cfg.Bench.Workers, cfg.Bench.Tasks)

	provider, err := initTelemetry(ctx, logger, cfg)
	if err != nil {
		logger.Printf("initialise telemetry: %v", err)
		return 1
	}
	defer shutdownTelemetry(logger, provider)

	meter := provider.Meter(meterName)
	mgr := poolmgr.New(poolmgr.WithMeter(meter, provider.Environment()))
	defer shutdownPools(logger, mgr)

	runner := bench.New(cfg, mgr, bench.WithMeter(meter, provider.Environment()))
	report, err := runner.Run(ctx)
	if err != nil {
		logger.Printf("bench failed: %v", err)
		return 1
	}
	if err := report.WriteJSON(stdout); err != nil {
		logger.Printf("write report: %v", err)
		return 1
	}
	if !report.OK() {
		logger.Printf("pool invariant violated")
		return 2
	}
	return 0
}

func resolveConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := os.Getenv(config.PathEnvVar); env != "" {
		return env
	}
	return defaultConfigPath
}

func initTelemetry(ctx context.Context, logger *log.Logger, cfg config.Config) (*telemetry.Provider, error) {
	telemetryCfg := telemetry.FromConfig(cfg.Environment, cfg.Telemetry)
	provider, err := telemetry.NewProvider(ctx, telemetryCfg)
	if err != nil {
		return nil, fmt.Errorf("initialize telemetry provider: %w", err)
	}
	if telemetryCfg.Enabled {
		logger.Printf("telemetry initialized: endpoint=%s, service=%s", telemetryCfg.OTLPEndpoint, telemetryCfg.ServiceName)
	} else {
		logger.Printf("telemetry disabled")
	}
	return provider, nil
}

func shutdownPools(logger *log.Logger, mgr *poolmgr.Manager) {
	ctx, cancel := context.WithTimeout(context.Background(), poolManagerShutdownTimeout)
	defer cancel()
	if err := mgr.Shutdown(ctx); err != nil {
		logger.Printf("pool manager shutdown: %v", err)
	}
}

func shutdownTelemetry(logger *log.Logger, provider *telemetry.Provider) {
	ctx, cancel := context.WithTimeout(context.Background(), telemetryShutdownTimeout)
	defer cancel()
	if err := provider.Shutdown(ctx); err != nil {
		logger.Printf("telemetry shutdown: %v", err)
	}
}
