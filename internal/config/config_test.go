package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validProdConfig() *Config {
	return &Config{
		Port:                  "8460",
		Env:                   "production",
		DBPassword:            "secure-password",
		DBSSLMode:             "require",
		JWTSecret:             "secure-secret-at-least-32-chars-long",
		TriggerSecret:         "cron-secret",
		PublishTimeoutSeconds: 30,
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		expectError bool
	}{
		{"Valid production config", func(c *Config) {}, false},
		{"Missing port", func(c *Config) { c.Port = "" }, true},
		{"Missing JWT secret", func(c *Config) { c.JWTSecret = "" }, true},
		{"Default JWT secret in production", func(c *Config) {
			c.JWTSecret = "your-secret-key-change-in-production"
		}, true},
		{"Short JWT secret in production", func(c *Config) { c.JWTSecret = "short" }, true},
		{"Weak DB password in production", func(c *Config) { c.DBPassword = "password" }, true},
		{"Zero publish timeout", func(c *Config) { c.PublishTimeoutSeconds = 0 }, true},
		{"No trigger credentials in production", func(c *Config) {
			c.TriggerSecret = ""
			c.TrustedCaller = ""
		}, true},
		{"Trusted caller alone is enough", func(c *Config) {
			c.TriggerSecret = ""
			c.TrustedCaller = "platform-cron"
		}, false},
		{"No trigger credentials in development", func(c *Config) {
			c.Env = "development"
			c.TriggerSecret = ""
			c.TrustedCaller = ""
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validProdConfig()
			tt.mutate(c)

			err := c.Validate()
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_TriggerAuthConfigured(t *testing.T) {
	c := &Config{}
	assert.False(t, c.TriggerAuthConfigured())

	c.TriggerSecret = "s"
	assert.True(t, c.TriggerAuthConfigured())

	c = &Config{TrustedCaller: "platform-cron"}
	assert.True(t, c.TriggerAuthConfigured())
}
