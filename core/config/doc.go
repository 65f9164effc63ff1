// Package config provides type-safe environment variable loading with caching
// using Go generics. Each configuration type is loaded once and cached for
// subsequent calls.
//
// The package automatically loads .env files on first use and uses the
// caarlos0/env library for parsing environment variables into struct fields.
//
// Basic usage:
//
//	type DatabaseConfig struct {
//		ConnectionString string `env:"DATABASE_URL,required"`
//		MaxOpenConns     int    `env:"PG_MAX_OPEN_CONNS" envDefault:"10"`
//	}
//
//	var db DatabaseConfig
//	if err := config.Load(&db); err != nil {
//		log.Fatal(err)
//	}
//
// Or panic on failure during startup:
//
//	config.MustLoad(&db)
package config
