// Package config loads application configuration from environment variables.
package config

import (
    "log"
    "os"
    "strconv"
    "time"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  Database settings are required; pool and timing
// settings fall back to the defaults the raffle has always used.
type Config struct {
    Env            string        // application environment (e.g. "dev", "prod")
    Port           string        // HTTP port to listen on
    DBUser         string        // database username
    DBPass         string        // database password (optional)
    DBHost         string        // database host address
    DBPort         string        // database port number
    DBName         string        // database name
    PoolSize       int           // how many raffle numbers the pool holds
    ReservationTTL time.Duration // how long a reservation hold lasts
    SweepInterval  time.Duration // how often expired holds are swept
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
    return Config{
        Env:            must("APP_ENV"),
        Port:           must("APP_PORT"),
        DBUser:         must("DB_USER"),
        DBPass:         os.Getenv("DB_PASS"), // empty allowed
        DBHost:         must("DB_HOST"),
        DBPort:         must("DB_PORT"),
        DBName:         must("DB_NAME"),
        PoolSize:       envInt("POOL_SIZE", 100),
        ReservationTTL: time.Duration(envInt("RESERVATION_TTL_MIN", 15)) * time.Minute,
        SweepInterval:  time.Duration(envInt("SWEEP_INTERVAL_SEC", 60)) * time.Second,
    }
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
    v, ok := os.LookupEnv(key)
    if !ok || v == "" {
        log.Fatalf("missing required env var: %s", key)
    }
    return v
}

// Optional-variable helpers shared by cache.go and ratelimit.go.

func envStr(key, def string) string {
    if v := os.Getenv(key); v != "" {
        return v
    }
    return def
}

func envBool(key string, def bool) bool {
    v := os.Getenv(key)
    if v == "" {
        return def
    }
    switch v {
    case "1", "true", "TRUE", "True", "yes", "YES", "on", "ON":
        return true
    case "0", "false", "FALSE", "False", "no", "NO", "off", "OFF":
        return false
    }
    return def
}

func envInt(key string, def int) int {
    v := os.Getenv(key)
    if v == "" {
        return def
    }
    if n, err := strconv.Atoi(v); err == nil {
        return n
    }
    return def
}

func envDur(key string, def time.Duration) time.Duration {
    v := os.Getenv(key)
    if v == "" {
        return def
    }
    if d, err := time.ParseDuration(v); err == nil {
        return d
    }
    return def
}
