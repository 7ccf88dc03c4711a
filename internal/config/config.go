package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types

	"github.com/joho/godotenv" // godotenv loads a local .env file in development
)

// Config holds all runtime configuration values. Each field corresponds to
// an environment variable. The access and refresh secrets are deliberately
// separate: a token signed with one must never verify against the other, so
// a leaked refresh secret cannot be used to forge access tokens.
type Config struct {
	Env              string // application environment (e.g. "dev", "prod")
	Port             string // HTTP port to listen on
	DBUser           string // database username
	DBPass           string // database password (optional)
	DBHost           string // database host address
	DBPort           string // database port number
	DBName           string // database name
	JWTAccessSecret  string // secret used to sign short-lived access JWTs
	JWTRefreshSecret string // secret used to sign long-lived refresh JWTs
	AccessTTLMin     int    // access token time-to-live in minutes
	RefreshTTLHours  int    // refresh token time-to-live in hours
	DeviceTTLDays    int    // device cookie time-to-live in days
	BcryptCost       int    // bcrypt cost for password hashing
}

// Load reads configuration values from environment variables and returns a
// Config. A .env file is loaded first when present so local development does
// not need exported variables. Required variables are enforced by must()
// and missing values cause the program to exit with a fatal log message.
func Load() Config {
	_ = godotenv.Load() // best effort; real deployments set env vars directly

	return Config{
		Env:              must("APP_ENV"),
		Port:             must("APP_PORT"),
		DBUser:           must("DB_USER"),
		DBPass:           os.Getenv("DB_PASS"), // empty allowed
		DBHost:           must("DB_HOST"),
		DBPort:           must("DB_PORT"),
		DBName:           must("DB_NAME"),
		JWTAccessSecret:  must("JWT_ACCESS_SECRET"),
		JWTRefreshSecret: must("JWT_REFRESH_SECRET"),
		AccessTTLMin:     intOr("ACCESS_TOKEN_TTL_MIN", 15),
		RefreshTTLHours:  intOr("REFRESH_TOKEN_TTL_HOURS", 24),
		DeviceTTLDays:    intOr("DEVICE_COOKIE_TTL_DAYS", 365),
		BcryptCost:       intOr("BCRYPT_COST", 12),
	}
}

// must retrieves the value of a required environment variable. If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// intOr retrieves an integer environment variable, falling back to def when
// the variable is unset. A present but non-numeric value is a fatal error.
func intOr(key string, def int) int {
	s, ok := os.LookupEnv(key)
	if !ok || s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}
