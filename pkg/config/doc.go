// Package config loads typed configuration from the environment.
//
// Every taskq package owns a Config struct annotated with env tags
// (github.com/caarlos0/env/v11). Load parses the environment into such a
// struct once per type and serves later calls from a cache. Optional .env
// files are read with github.com/joho/godotenv, either implicitly (./.env on
// the first Load) or explicitly through LoadEnv.
//
//	if err := config.LoadEnv(".env", ".env.local"); err != nil {
//	    return err
//	}
//	var pgCfg pg.Config
//	if err := config.Load(&pgCfg); err != nil {
//	    return err
//	}
//
// Tests can call ResetCache or ForceReloadConfig after changing the
// environment.
package config
