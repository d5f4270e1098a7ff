package config

import (
	"os"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
)

// Load reads configuration from environment variables and .env file.
func Load() Config {
	err := godotenv.Load()
	if err != nil {
		log.Info("No .env file found, reading from environment variables")
	}

	// A helper function to get a required env var. It will fail if the env var is not set.
	getEnv := func(key string) string {
		if value, ok := os.LookupEnv(key); ok {
			return value
		}
		log.Fatalf("Error: Required environment variable %s is not set.", key)
		return "" // This line is never reached
	}

	// Integrations like Slack, Redis, tracing and Inngest are optional;
	// an empty value disables them.
	getEnvOptional := func(key string) string {
		return os.Getenv(key)
	}

	cfg := Config{
		DBName:        getEnv("DB_NAME"),
		MigrationsDir: "./migrations",
		Port:          getEnv("PORT"),
		Turso: TursoConfig{
			PrimaryURL: getEnvOptional("TURSO_PRIMARY_URL"),
			AuthToken:  getEnvOptional("TURSO_AUTH_TOKEN"),
		},
		Payment: PaymentConfig{
			BaseURL: getEnv("PAYMENT_API_URL"),
			APIKey:  getEnv("PAYMENT_API_KEY"),
		},
		Slack: SlackConfig{
			Token:     getEnvOptional("SLACK_BOT_TOKEN"),
			ChannelID: getEnvOptional("SLACK_OPS_CHANNEL_ID"),
		},
		Redis: RedisConfig{
			Addr:     getEnvOptional("REDIS_ADDR"),
			Password: getEnvOptional("REDIS_PASSWORD"),
		},
		Tracing: TracingConfig{
			Enabled:     getEnvOptional("TRACING_ENABLED") == "true",
			Endpoint:    getEnvOptional("JAEGER_ENDPOINT"),
			Environment: getEnvOptional("ENVIRONMENT"),
		},
		Inngest: InngestConfig{
			AppID:      getEnvOptional("INNGEST_APP_ID"),
			SigningKey: getEnvOptional("INNGEST_SIGNING_KEY"),
			EventKey:   getEnvOptional("INNGEST_EVENT_KEY"),
		},
		ProjectID: getEnv("GCP_PROJECT"),
	}
	return cfg
}
