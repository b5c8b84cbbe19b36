// Package config provides the configuration surface for the rate-limiting
// and dispatch core.
//
// Configuration is loaded from a YAML file, filled with defaults, overlaid
// with CALLISTO_* environment variables, and validated. Every option has a
// sane default so the core works entirely unconfigured.
//
//	cfg, err := config.LoadConfig("callisto.yaml")
//
// A minimal configuration:
//
//	limiters:
//	  chat-api-requests:
//	    strategy: token_bucket
//	    rate: 50
//	    capacity: 100
//	  image-api-requests:
//	    strategy: leaky_bucket
//	    rate: 2
//	    capacity: 10
//	dispatch:
//	  max_retries: 3
//	  max_concurrent: 8
//
// Configuration is read once at construction time. Changing a limiter's
// parameters at runtime means recreating it (remove + add); the optional
// Watcher does exactly that when the file changes on disk.
package config
