package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all configuration for our application
type Config struct {
	Port                      string
	Origin                    string
	Environment               string
	JWTSecret                 string
	JWTRefreshSecret          string
	IdentityTokenSecret       string
	Database                  DatabaseConfig
	Mailer                    MailerConfig
	Storage                   StorageConfig
	RateLimit                 RateLimitConfig
	Jobs                      JobsConfig
	JWTExpirationMinutes      int
	JWTRefreshExpirationHours int
	PasswordResetTokenExpiry  int
	VerificationTokenExpiry   int
	InvitationExpiryDays      int
	AppURL                    string
}

// DatabaseConfig holds database connection details
type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     string
	Username string
	Password string
	Name     string
	DSN      string
}

// MailerConfig holds SMTP settings. An empty Host disables delivery.
type MailerConfig struct {
	Host        string
	Port        int
	Username    string
	Password    string
	DefaultFrom string
}

// StorageConfig configures the local upload store.
type StorageConfig struct {
	Root           string
	MaxUploadBytes int64
}

// RateLimitConfig configures the per-IP limiter on the auth routes.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// JobsConfig holds cron specs for background jobs.
type JobsConfig struct {
	TokenSweep        string
	OverdueInvoices   string
	InvitationCleanup string
}

// IsDevelopment reports whether the server runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	dbConfig := DatabaseConfig{
		Driver:   getEnv("DB_DRIVER", "mysql"),
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnv("DB_PORT", "3306"),
		Username: getEnv("DB_USERNAME", "root"),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", "clinic"),
		DSN:      getEnv("DB_DSN", ""),
	}
	if dbConfig.DSN == "" {
		dsn, err := buildDSN(dbConfig)
		if err != nil {
			return nil, err
		}
		dbConfig.DSN = dsn
	}

	smtpPort, err := strconv.Atoi(getEnv("SMTP_PORT", "587"))
	if err != nil {
		return nil, fmt.Errorf("invalid SMTP_PORT: %w", err)
	}
	mailerConfig := MailerConfig{
		Host:        getEnv("SMTP_HOST", ""),
		Port:        smtpPort,
		Username:    getEnv("SMTP_USERNAME", ""),
		Password:    getEnv("SMTP_PASSWORD", ""),
		DefaultFrom: getEnv("MAILER_DEFAULT_FROM", "no-reply@clinic.local"),
	}

	maxUpload, err := strconv.ParseInt(getEnv("STORAGE_MAX_UPLOAD_BYTES", "5242880"), 10, 64) // 5 MiB
	if err != nil {
		return nil, fmt.Errorf("invalid STORAGE_MAX_UPLOAD_BYTES: %w", err)
	}

	rps, err := strconv.ParseFloat(getEnv("AUTH_RATE_LIMIT_RPS", "5"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid AUTH_RATE_LIMIT_RPS: %w", err)
	}
	burst, err := strconv.Atoi(getEnv("AUTH_RATE_LIMIT_BURST", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid AUTH_RATE_LIMIT_BURST: %w", err)
	}

	jwtExpMinutes, err := strconv.Atoi(getEnv("JWT_EXPIRATION_MINUTES", "15"))
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_EXPIRATION_MINUTES: %w", err)
	}

	jwtRefreshExpHours, err := strconv.Atoi(getEnv("JWT_REFRESH_EXPIRATION_HOURS", "168")) // 7 days
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_REFRESH_EXPIRATION_HOURS: %w", err)
	}

	passwordResetTokenExpiry, err := strconv.Atoi(getEnv("PASSWORD_RESET_TOKEN_EXPIRY_MINUTES", "60"))
	if err != nil {
		return nil, fmt.Errorf("invalid PASSWORD_RESET_TOKEN_EXPIRY_MINUTES: %w", err)
	}

	verificationTokenExpiry, err := strconv.Atoi(getEnv("VERIFICATION_TOKEN_EXPIRY_HOURS", "24"))
	if err != nil {
		return nil, fmt.Errorf("invalid VERIFICATION_TOKEN_EXPIRY_HOURS: %w", err)
	}

	invitationExpiry, err := strconv.Atoi(getEnv("INVITATION_EXPIRY_DAYS", "7"))
	if err != nil {
		return nil, fmt.Errorf("invalid INVITATION_EXPIRY_DAYS: %w", err)
	}

	return &Config{
		Port:                getEnv("PORT", "3001"),
		Origin:              getEnv("ORIGIN", "http://localhost:4200"),
		Environment:         getEnv("APP_ENV", "development"),
		JWTSecret:           getEnv("JWT_SECRET", "default_jwt_secret"),
		JWTRefreshSecret:    getEnv("JWT_REFRESH_SECRET", "default_refresh_secret"),
		IdentityTokenSecret: getEnv("IDENTITY_TOKEN_SECRET", "default_identity_secret"),
		Database:            dbConfig,
		Mailer:              mailerConfig,
		Storage: StorageConfig{
			Root:           getEnv("STORAGE_ROOT", "./uploads"),
			MaxUploadBytes: maxUpload,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: rps,
			Burst:             burst,
		},
		Jobs: JobsConfig{
			TokenSweep:        getEnv("JOB_TOKEN_SWEEP", "@hourly"),
			OverdueInvoices:   getEnv("JOB_OVERDUE_INVOICES", "0 1 * * *"),
			InvitationCleanup: getEnv("JOB_INVITATION_CLEANUP", "30 1 * * *"),
		},
		JWTExpirationMinutes:      jwtExpMinutes,
		JWTRefreshExpirationHours: jwtRefreshExpHours,
		PasswordResetTokenExpiry:  passwordResetTokenExpiry,
		VerificationTokenExpiry:   verificationTokenExpiry,
		InvitationExpiryDays:      invitationExpiry,
		AppURL:                    getEnv("APP_URL", "http://localhost:4200"),
	}, nil
}

func buildDSN(db DatabaseConfig) (string, error) {
	switch db.Driver {
	case "mysql":
		return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			db.Username, db.Password, db.Host, db.Port, db.Name), nil
	case "postgres":
		return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable TimeZone=UTC",
			db.Host, db.Port, db.Username, db.Password, db.Name), nil
	case "sqlite":
		return db.Name + ".db", nil
	default:
		return "", fmt.Errorf("unsupported DB_DRIVER %q", db.Driver)
	}
}

// Helper function to get environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
