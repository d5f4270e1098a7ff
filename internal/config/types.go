package config

// Config holds all configuration for the application.
type Config struct {
	DBName        string
	MigrationsDir string
	Port          string
	Turso         TursoConfig
	Payment       PaymentConfig
	Slack         SlackConfig
	Redis         RedisConfig
	Tracing       TracingConfig
	Inngest       InngestConfig
	ProjectID     string
}

type TursoConfig struct {
	PrimaryURL string
	AuthToken  string
}

type PaymentConfig struct {
	BaseURL string
	APIKey  string
}

type SlackConfig struct {
	Token     string
	ChannelID string
}

type RedisConfig struct {
	Addr     string
	Password string
}

type TracingConfig struct {
	Enabled     bool
	Endpoint    string
	Environment string
}

type InngestConfig struct {
	AppID      string
	SigningKey string
	EventKey   string
}
