// Package config loads shipbrain settings from YAML or JSON files.
//
// Config is a loose map with typed accessors that fall back to defaults when a
// key is missing or has the wrong type. Settings is the typed view the core is
// built from:
//
//	cfg, err := config.FromFile("shipbrain.yaml")
//	if err != nil {
//	    return err
//	}
//	settings, err := config.FromConfig(cfg)
//
// A settings file groups keys by component:
//
//	bus:
//	  history_size: 1000
//	  queue_size: 10000
//	memory:
//	  short_ttl: 30m
//	  cleanup_interval: 5m
//	unify:
//	  delay_days: 5
//	storage:
//	  driver: sqlite
//	  path: ./shipbrain.db
//	rules:
//	  file: ./rules.yaml
//	  watch: true
//	log:
//	  level: info
//	  format: json
//
// Durations accept Go duration strings ("30m") or numbers of seconds.
// Environment variables prefixed with SHIPBRAIN_ override the storage, rules
// and log sections; see ApplyEnv.
package config
