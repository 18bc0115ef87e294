package config

import (
	"time"

	"github.com/caarlos0/env/v10"
)

// Config centraliza la configuración del servicio.
type Config struct {
	HTTPPort      string `env:"HTTP_PORT" envDefault:"8080"`
	AppEnv        string `env:"APP_ENV" envDefault:"prod"`
	DatabaseURL   string `env:"DATABASE_URL,required,notEmpty"`
	RunMigrations bool   `env:"RUN_MIGRATIONS" envDefault:"true"`

	JWTSecret            string `env:"JWT_SECRET,required,notEmpty"`
	JWTAccessTTLMinutes  int    `env:"JWT_ACCESS_TTL_MINUTES" envDefault:"15"`
	JWTRefreshTTLMinutes int    `env:"JWT_REFRESH_TTL_MINUTES" envDefault:"43200"`

	EmailCodeTTL     time.Duration `env:"EMAIL_CODE_TTL" envDefault:"10m"`
	MFACodeTTL       time.Duration `env:"MFA_CODE_TTL" envDefault:"5m"`
	CodeResendLimit  int           `env:"CODE_RESEND_LIMIT" envDefault:"3"`
	CodeResendWindow time.Duration `env:"CODE_RESEND_WINDOW" envDefault:"10m"`

	EnforceSpendingLimits bool          `env:"ENFORCE_SPENDING_LIMITS" envDefault:"false"`
	RecurringInterval     time.Duration `env:"RECURRING_INTERVAL" envDefault:"1m"`

	SMTPHost      string `env:"SMTP_HOST"`
	SMTPPort      int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser      string `env:"SMTP_USER"`
	SMTPPass      string `env:"SMTP_PASS"`
	SMTPFrom      string `env:"SMTP_FROM"`
	SMTPFromName  string `env:"SMTP_FROM_NAME" envDefault:"Hapo"`
	SMTPUseTLS    bool   `env:"SMTP_USE_TLS" envDefault:"false"`
	EmailDemoMode bool   `env:"EMAIL_DEMO_MODE" envDefault:"false"`

	OAuthRedirectURL         string `env:"OAUTH_REDIRECT_URL"`
	// Solo desarrollo: acepta provider+subject sin id_token ni code.
	OAuthTrustClientIdentity bool   `env:"OAUTH_TRUST_CLIENT_IDENTITY" envDefault:"false"`
	GoogleIssuer             string `env:"GOOGLE_ISSUER" envDefault:"https://accounts.google.com"`
	GoogleClientID           string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret       string `env:"GOOGLE_CLIENT_SECRET"`
	MicrosoftIssuer          string `env:"MICROSOFT_ISSUER"`
	MicrosoftClientID        string `env:"MICROSOFT_CLIENT_ID"`
	MicrosoftClientSecret    string `env:"MICROSOFT_CLIENT_SECRET"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
}

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) IsDev() bool {
	return c.AppEnv == "dev" || c.AppEnv == "development"
}
