// Package config provides the process configuration of the development
// proxy.
//
// Configuration is read from a YAML file with ${VAR} and ${VAR:-default}
// substitution, completed with defaults and environment fallbacks, and
// validated. Validation failures are util.ConfigError values.
//
//	cfg, err := config.LoadConfig("devproxy.yaml")
//	if err != nil {
//	    return err
//	}
//	config.ApplyEnv(cfg, os.LookupEnv)
//	cfg.ApplyDefaults()
//	if err := config.ValidateConfig(cfg); err != nil {
//	    return err
//	}
//
// # File Watching
//
// Watcher observes the route manifest and the destinations directory and
// calls back after a debounced change so the caller can rebuild its
// routing state:
//
//	w, err := config.NewWatcher(paths, func(changed []string) { reload() })
//	if err != nil {
//	    return err
//	}
//	if err := w.Start(ctx); err != nil {
//	    return err
//	}
//	defer w.Stop()
package config
