package config

import (
	"strings"
	"testing"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_PORT", "5432")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(cfg.Database.DSN, "host=db port=5432") {
		t.Errorf("dsn = %q", cfg.Database.DSN)
	}
	if cfg.JWTExpirationMinutes != 15 || cfg.InvitationExpiryDays != 7 || cfg.Jobs.TokenSweep != "@hourly" {
		t.Errorf("defaults = %+v", cfg)
	}
	if cfg.Storage.MaxUploadBytes != 5<<20 {
		t.Errorf("max upload = %d", cfg.Storage.MaxUploadBytes)
	}
}

func TestLoadConfigExplicitDSN(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_DSN", "file:clinic.db")
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Database.DSN != "file:clinic.db" {
		t.Fatalf("dsn = %q", cfg.Database.DSN)
	}
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	tests := map[string]string{
		"DB_DRIVER":              "oracle",
		"SMTP_PORT":              "smtp",
		"JWT_EXPIRATION_MINUTES": "fifteen",
		"AUTH_RATE_LIMIT_RPS":    "fast",
		"INVITATION_EXPIRY_DAYS": "7d",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			if _, err := LoadConfig(); err == nil {
				t.Fatalf("%s=%q accepted", key, value)
			}
		})
	}
}
