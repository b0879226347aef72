package config

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// cache keeps one parsed copy per configuration type.
type cache struct {
	mu     sync.Mutex
	values map[reflect.Type]any
}

var (
	store = &cache{values: make(map[reflect.Type]any)}

	dotenvOnce sync.Once
)

// LoadEnv loads the given .env files into the process environment. Variables
// already set in the environment win over file values, and earlier files win
// over later ones. Without arguments it loads ./.env.
func LoadEnv(paths ...string) error {
	if len(paths) == 0 {
		if err := godotenv.Load(); err != nil {
			return errors.Join(ErrLoadingEnvFile, err)
		}
		return nil
	}
	// godotenv.Load never overrides, so the last file is applied first to let
	// later files take precedence over earlier ones.
	for i := len(paths) - 1; i >= 0; i-- {
		if err := godotenv.Load(paths[i]); err != nil {
			return errors.Join(ErrLoadingEnvFile, fmt.Errorf("%s: %w", paths[i], err))
		}
	}
	return nil
}

// MustLoadEnv works like LoadEnv but panics on failure.
func MustLoadEnv(paths ...string) {
	if err := LoadEnv(paths...); err != nil {
		panic(fmt.Sprintf("failed to load env files: %v", err))
	}
}

// Load parses environment variables into v using its env struct tags.
// The first call per type parses the environment; later calls return the
// cached copy. A missing ./.env file is not an error.
//
//	var cfg pg.Config
//	if err := config.Load(&cfg); err != nil {
//		return err
//	}
func Load[T any](v *T) error {
	dotenvOnce.Do(func() {
		_ = godotenv.Load()
	})
	if v == nil {
		return ErrNilPointer
	}

	key := typeKey[T]()

	store.mu.Lock()
	defer store.mu.Unlock()

	if cached, ok := store.values[key]; ok {
		*v = cached.(T)
		return nil
	}
	if err := parse(v); err != nil {
		return err
	}
	store.values[key] = *v
	return nil
}

// MustLoad works like Load but panics on failure.
func MustLoad[T any](v *T) {
	if err := Load(v); err != nil {
		panic(fmt.Sprintf("failed to load required configuration: %v", err))
	}
}

// ForceReloadConfig parses the environment into v again and replaces the
// cached copy.
func ForceReloadConfig[T any](v *T) error {
	if v == nil {
		return ErrNilPointer
	}

	store.mu.Lock()
	defer store.mu.Unlock()

	if err := parse(v); err != nil {
		return err
	}
	store.values[typeKey[T]()] = *v
	return nil
}

// ResetCache drops every cached configuration.
func ResetCache() {
	store.mu.Lock()
	defer store.mu.Unlock()

	clear(store.values)
}

func parse[T any](v *T) error {
	if reflect.TypeFor[T]().Kind() != reflect.Struct {
		return ErrInvalidConfigType
	}
	if err := env.Parse(v); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}
	return nil
}

func typeKey[T any]() reflect.Type {
	return reflect.TypeFor[T]()
}
