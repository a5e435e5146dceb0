// passthroughfs mounts a backend directory at a mount point through FUSE,
// forwarding every operation to the backend unchanged.
//
// Configuration is layered: built-in defaults, then an optional YAML file
// (--config), then PASSTHROUGHFS_* environment variables, then flags and
// positional arguments.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/objectfs/passthroughfs/internal/adapter"
	"github.com/objectfs/passthroughfs/internal/config"
	"github.com/objectfs/passthroughfs/pkg/utils"
)

func main() {
	cfg, opts, err := loadConfig(os.Args[1:], os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if opts.help {
		return
	}
	if opts.saveConfig != "" {
		if err := cfg.SaveToFile(opts.saveConfig); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	logger, err := utils.SetupLogging(cfg.Global.LogLevel, cfg.Global.LogFormat, cfg.Global.LogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.Fatal("passthroughfs exited with error", map[string]interface{}{
			"error": err.Error(),
		})
	}
	_ = logger.Close()
}

func run(cfg *config.Configuration, logger *utils.StructuredLogger) error {
	a, err := adapter.New(cfg, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.Start(ctx); err != nil {
		return err
	}

	unmounted := make(chan struct{})
	go func() {
		a.Wait()
		close(unmounted)
	}()

	select {
	case <-ctx.Done():
	case <-unmounted:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return a.Stop(shutdownCtx)
}

// cliOptions holds the flags that select what the process does rather
// than how the filesystem is configured.
type cliOptions struct {
	help       bool
	saveConfig string
}

// loadConfig builds the effective configuration from args.
func loadConfig(args []string, usage *os.File) (*config.Configuration, cliOptions, error) {
	var (
		opts           cliOptions
		configFile     string
		logLevel       string
		logFormat      string
		logFile        string
		allowOther     bool
		debug          bool
		maxWrite       string
		metricsEnabled bool
		metricsPort    int
	)

	flagSet := pflag.NewFlagSet("passthroughfs", pflag.ContinueOnError)
	flagSet.SetOutput(usage)
	flagSet.StringVarP(&configFile, "config", "c", "", "path to YAML configuration file")
	flagSet.StringVar(&opts.saveConfig, "save-config", "", "write the effective configuration to this file and exit")
	flagSet.StringVar(&logLevel, "log-level", "", "log level (TRACE, DEBUG, INFO, WARN, ERROR)")
	flagSet.StringVar(&logFormat, "log-format", "", "log format (text or json)")
	flagSet.StringVar(&logFile, "log-file", "", "append logs to this file instead of stderr")
	flagSet.BoolVar(&allowOther, "allow-other", false, "allow other users to access the mount")
	flagSet.BoolVarP(&debug, "debug", "d", false, "log every FUSE request")
	flagSet.StringVar(&maxWrite, "max-write", "", "largest write request accepted from the kernel (e.g. 128KB)")
	flagSet.BoolVar(&metricsEnabled, "metrics", false, "serve Prometheus metrics")
	flagSet.IntVar(&metricsPort, "metrics-port", 0, "port for the metrics endpoint")
	flagSet.BoolP("help", "h", false, "show help")
	flagSet.Usage = func() {
		fmt.Fprintf(usage, "Usage:\n  passthroughfs [flags] [ROOT] MOUNTPOINT\n\nFlags:\n")
		flagSet.PrintDefaults()
	}

	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil, cliOptions{help: true}, nil
		}
		return nil, opts, err
	}
	if h, _ := flagSet.GetBool("help"); h {
		flagSet.Usage()
		return nil, cliOptions{help: true}, nil
	}

	cfg := config.NewDefault()
	if configFile != "" {
		if err := cfg.LoadFromFile(configFile); err != nil {
			return nil, opts, err
		}
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return nil, opts, err
	}

	switch positional := flagSet.Args(); len(positional) {
	case 0:
	case 1:
		cfg.Mount.MountPoint = positional[0]
	case 2:
		cfg.Backend.Root = positional[0]
		cfg.Mount.MountPoint = positional[1]
	default:
		return nil, opts, fmt.Errorf("unexpected argument: %s", positional[2])
	}

	if flagSet.Changed("log-level") {
		cfg.Global.LogLevel = logLevel
	}
	if flagSet.Changed("log-format") {
		cfg.Global.LogFormat = logFormat
	}
	if flagSet.Changed("log-file") {
		cfg.Global.LogFile = logFile
	}
	if flagSet.Changed("allow-other") {
		cfg.Mount.AllowOther = allowOther
	}
	if flagSet.Changed("debug") {
		cfg.Mount.Debug = debug
	}
	if flagSet.Changed("max-write") {
		cfg.Mount.MaxWrite = maxWrite
	}
	if flagSet.Changed("metrics") {
		cfg.Monitoring.Metrics.Enabled = metricsEnabled
	}
	if flagSet.Changed("metrics-port") {
		cfg.Monitoring.Metrics.Port = metricsPort
	}

	return cfg, opts, nil
}
