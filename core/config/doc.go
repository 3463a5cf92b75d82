// Package config provides type-safe environment variable loading with caching
// using Go generics. Each configuration type is loaded once and cached for
// subsequent calls.
//
// The package loads a .env file from the working directory on first use
// (if present) and uses caarlos0/env for parsing environment variables into
// struct fields. Nested structs are parsed recursively, so a single root type
// can carry every component's settings:
//
//	type Config struct {
//		Session session.Config
//		Scaling scaling.Config
//		Redis   redis.Config
//	}
//
//	var cfg Config
//	config.MustLoad(&cfg)
//
// # Caching Behavior
//
// Each configuration type is loaded only once per process:
//
//	var a, b Config
//	config.Load(&a) // parses the environment
//	config.Load(&b) // copies the cached value
//
// Call Reset to drop the cache, for example in tests that use t.Setenv.
package config
