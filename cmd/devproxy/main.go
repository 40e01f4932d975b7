// Package main is the entry point for the development proxy.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/vyrodovalexey/devproxy/internal/config"
	"github.com/vyrodovalexey/devproxy/internal/observability"
)

// Version information (set at build time).
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// cliFlags holds command line flags. Flags that were not given leave the
// configuration file value in place.
type cliFlags struct {
	configPath   string
	address      string
	manifest     string
	destinations string
	resources    string
	webapp       string
	logLevel     string
	logFormat    string
	strictSSL    bool
	preferLocal  bool
	watch        bool
	showVersion  bool

	set map[string]bool
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	flags, err := parseFlags(args, stdout)
	if err != nil {
		return err
	}

	if flags.showVersion {
		printVersion(stdout)
		return nil
	}

	cfg, err := loadConfig(flags, os.LookupEnv)
	if err != nil {
		return err
	}

	logger, err := initLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting devproxy",
		observability.String("version", version),
		observability.String("config", flags.configPath),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := newApplication(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize", observability.Error(err))
		return err
	}

	return app.run(ctx)
}

// parseFlags parses command line flags.
func parseFlags(args []string, out io.Writer) (cliFlags, error) {
	var f cliFlags

	flagSet := pflag.NewFlagSet("devproxy", pflag.ContinueOnError)
	flagSet.SetOutput(out)
	flagSet.StringVarP(&f.configPath, "config", "c", getEnvOrDefault(config.EnvConfig, ""),
		"path to the YAML configuration file")
	flagSet.StringVar(&f.address, "address", "", "listen address (default "+config.DefaultAddress+")")
	flagSet.StringVar(&f.manifest, "routes", "", "route manifest (default "+config.DefaultManifest+")")
	flagSet.StringVar(&f.destinations, "destinations", "", "directory of destination descriptors")
	flagSet.StringVar(&f.resources, "resources", "", "directory with a local copy of the framework resources")
	flagSet.StringVar(&f.webapp, "webapp", "", "directory served for requests no route claims")
	flagSet.StringVar(&f.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	flagSet.StringVar(&f.logFormat, "log-format", "", "log format (json, console)")
	flagSet.BoolVar(&f.strictSSL, "strict-ssl", true, "verify destination TLS certificates")
	flagSet.BoolVar(&f.preferLocal, "prefer-local", false, "serve framework resources from --resources")
	flagSet.BoolVar(&f.watch, "watch", false, "reload when the route manifest or destinations change")
	flagSet.BoolVar(&f.showVersion, "version", false, "show version information")

	if err := flagSet.Parse(args); err != nil {
		return f, err
	}
	if rest := flagSet.Args(); len(rest) > 0 {
		return f, fmt.Errorf("unexpected argument: %s", rest[0])
	}

	f.set = make(map[string]bool)
	flagSet.Visit(func(fl *pflag.Flag) { f.set[fl.Name] = true })
	return f, nil
}

// loadConfig builds the configuration: file, then flags, then environment
// fallbacks, then defaults.
func loadConfig(flags cliFlags, lookup config.LookupFunc) (*config.Config, error) {
	cfg := &config.Config{}
	if flags.configPath != "" {
		loaded, err := config.LoadConfig(flags.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	applyFlags(cfg, flags)
	config.ApplyEnv(cfg, lookup)
	cfg.ApplyDefaults()

	if err := config.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyFlags(cfg *config.Config, f cliFlags) {
	override := func(dst *string, name, value string) {
		if f.set[name] {
			*dst = value
		}
	}
	override(&cfg.Server.Address, "address", f.address)
	override(&cfg.Routes.Manifest, "routes", f.manifest)
	override(&cfg.Destinations.Path, "destinations", f.destinations)
	override(&cfg.Resources.Path, "resources", f.resources)
	override(&cfg.Webapp.Dir, "webapp", f.webapp)
	override(&cfg.Logging.Level, "log-level", f.logLevel)
	override(&cfg.Logging.Format, "log-format", f.logFormat)

	if f.set["strict-ssl"] {
		v := f.strictSSL
		cfg.Upstream.StrictSSL = &v
	}
	if f.set["prefer-local"] {
		v := f.preferLocal
		cfg.Resources.PreferLocal = &v
	}
	if f.set["watch"] {
		cfg.Watch.Enabled = f.watch
	}
}

// printVersion prints version information.
func printVersion(out io.Writer) {
	_, _ = fmt.Fprintf(out, "devproxy version %s\n", version)
	_, _ = fmt.Fprintf(out, "  Build time: %s\n", buildTime)
	_, _ = fmt.Fprintf(out, "  Git commit: %s\n", gitCommit)
}

// initLogger builds the process logger from the logging configuration.
func initLogger(cfg *config.Config) (observability.Logger, error) {
	logger, err := observability.NewLogger(observability.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return logger, nil
}
