package config

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var (
	dotenvOnce sync.Once

	cacheMu sync.RWMutex
	cache   = make(map[reflect.Type]any)
)

// Load populates cfg from environment variables using the struct's env tags.
// Each configuration type is parsed once per process; subsequent calls for the
// same type return the cached value. A .env file in the working directory is
// loaded (if present) before the first parse.
func Load[T any](cfg *T) error {
	if cfg == nil {
		return fmt.Errorf("config: nil target")
	}

	dotenvOnce.Do(func() {
		// Missing .env is not an error; real environments set vars directly.
		_ = godotenv.Load()
	})

	typ := reflect.TypeOf(*cfg)

	cacheMu.RLock()
	cached, ok := cache[typ]
	cacheMu.RUnlock()
	if ok {
		*cfg = cached.(T)
		return nil
	}

	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("config: failed to parse %s: %w", typ, err)
	}

	cacheMu.Lock()
	// Another goroutine may have parsed the same type concurrently; keep the
	// first cached value so repeated loads stay identical.
	if cached, ok := cache[typ]; ok {
		*cfg = cached.(T)
	} else {
		cache[typ] = *cfg
	}
	cacheMu.Unlock()

	return nil
}

// MustLoad is like Load but panics on failure. Intended for application startup
// where a missing required variable should abort the process.
func MustLoad[T any](cfg *T) {
	if err := Load(cfg); err != nil {
		panic(err)
	}
}
