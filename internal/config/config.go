// Package config loads the exchange's environment-driven configuration,
// failing fast the way the teacher's services treat missing wiring as
// unrecoverable at startup.
package config

import (
	"os"

	"github.com/rs/zerolog/log"
)

// Config holds every external endpoint and secret the exchange's services
// need. Fields ending in URL are connection strings; fields ending in
// Secret/Key are shared secrets.
type Config struct {
	DatabaseURL        string
	RedisURL           string
	NatsURL            string
	KafkaURL           string
	ClickhouseURL      string
	ClickhousePassword string
	WSServerURL        string
	SharedSecret       string
	JWTSecret          string
	SecretKey          string
	GoogleClientID     string
	AdminUsername      string
}

// required lists every environment variable that must be set, in the
// order they are checked.
var required = []string{
	"DATABASE_URL",
	"REDIS_URL",
	"NC_URL",
	"KAFKA_URL",
	"CLICKHOUSE_URL",
	"CLICKHOUSE_PASSWORD",
	"WS_SERVER_URL",
	"SHARED_SECRET",
	"JWT_SECRET",
	"SECRET_KEY",
	"GOOGLE_CLIENT_ID",
	"ADMIN_USERNAME",
}

// Load reads the required environment variables, exiting the process via
// a fatal log on the first one that is missing. It never returns a
// partially-populated Config.
func Load() Config {
	values := make(map[string]string, len(required))
	for _, name := range required {
		v, ok := os.LookupEnv(name)
		if !ok || v == "" {
			log.Fatal().Str("var", name).Msg("missing required environment variable")
		}
		values[name] = v
	}

	return Config{
		DatabaseURL:        values["DATABASE_URL"],
		RedisURL:           values["REDIS_URL"],
		NatsURL:            values["NC_URL"],
		KafkaURL:           values["KAFKA_URL"],
		ClickhouseURL:      values["CLICKHOUSE_URL"],
		ClickhousePassword: values["CLICKHOUSE_PASSWORD"],
		WSServerURL:        values["WS_SERVER_URL"],
		SharedSecret:       values["SHARED_SECRET"],
		JWTSecret:          values["JWT_SECRET"],
		SecretKey:          values["SECRET_KEY"],
		GoogleClientID:     values["GOOGLE_CLIENT_ID"],
		AdminUsername:      values["ADMIN_USERNAME"],
	}
}
