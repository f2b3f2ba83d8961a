package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ROOT_DOMAIN", "")
	t.Setenv("ROOT_PROTOCOL", "")
	t.Setenv("SESSION_SECRET", "")
	t.Setenv("OTP_LENGTH", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "localhost:3000", cfg.Tenancy.RootDomain)
	assert.Equal(t, "http", cfg.Tenancy.Protocol)
	assert.Equal(t, 6, cfg.OTP.Length)
	assert.True(t, cfg.Email.InlineWorker)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("ROOT_DOMAIN", "nextoral.com")
	t.Setenv("ROOT_PROTOCOL", "https")
	t.Setenv("SESSION_TTL_HOURS", "12")
	t.Setenv("SESSION_COOKIE_SECURE", "true")
	t.Setenv("SMTP_PORT", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "nextoral.com", cfg.Tenancy.RootDomain)
	assert.Equal(t, 12, cfg.Session.TTLHours)
	assert.True(t, cfg.Session.Secure)
	assert.Equal(t, 587, cfg.Email.SMTPPort)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Tenancy: TenancyConfig{RootDomain: "nextoral.com", Protocol: "https"},
			Session: SessionConfig{Secret: "0123456789abcdef0123456789abcdef"},
			OTP:     OTPConfig{Length: 6},
		}
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"blank root domain", func(c *Config) { c.Tenancy.RootDomain = "  " }},
		{"bad protocol", func(c *Config) { c.Tenancy.Protocol = "ftp" }},
		{"short session secret", func(c *Config) { c.Session.Secret = "short" }},
		{"otp too long", func(c *Config) { c.OTP.Length = 12 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestDSN(t *testing.T) {
	c := DatabaseConfig{Host: "db", Port: "5432", User: "u", Password: "p", DBName: "n", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@db:5432/n?sslmode=disable", c.DSN())

	c.URL = "postgres://override"
	assert.Equal(t, "postgres://override", c.DSN())
}
