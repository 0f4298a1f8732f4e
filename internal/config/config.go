package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config represents the application configuration. Transport and admin
// secrets are only ever taken from the environment; the JSON file carries
// the non-sensitive settings.
type Config struct {
	Server   ServerConfig   `json:"server"`
	Document DocumentConfig `json:"document"`
	Registry RegistryConfig `json:"registry"`
	SMTP     SMTPConfig     `json:"smtp"`
	Admin    AdminConfig    `json:"admin"`
	Logging  LoggingConfig  `json:"logging"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout"`
}

// DocumentConfig locates the fixed source permit and names the files
// offered to users and attached to delivery mail.
type DocumentConfig struct {
	SourcePath   string `json:"source_path"`
	DownloadName string `json:"download_name"`
	SignedName   string `json:"signed_name"`
}

// RegistryConfig locates the signature registry file.
type RegistryConfig struct {
	Path string `json:"path"`
}

// SMTPConfig represents mail transport configuration. Username and
// password come from SMTP_USERNAME / SMTP_PASSWORD.
type SMTPConfig struct {
	Host           string `json:"host"`
	Port           int    `json:"port"`
	Username       string `json:"-"`
	Password       string `json:"-"`
	FromName       string `json:"from_name"`
	Recipient      string `json:"recipient"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// AdminConfig represents admin panel credentials. All three values come
// from ADMIN_USERNAME / ADMIN_PASSWORD_HASH / ADMIN_JWT_SECRET.
type AdminConfig struct {
	Username        string `json:"-"`
	PasswordHash    string `json:"-"`
	JWTSecret       string `json:"-"`
	TokenTTLMinutes int    `json:"token_ttl_minutes"`
}

// LoggingConfig
type LoggingConfig struct {
	Level string `json:"level"`
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	// Default config
	config := &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Document: DocumentConfig{
			SourcePath:   "permit.pdf",
			DownloadName: "hunting_permit.pdf",
			SignedName:   "hunting_permit_signed.pdf",
		},
		Registry: RegistryConfig{
			Path: "registered_signatures.json",
		},
		SMTP: SMTPConfig{
			Port:           587,
			FromName:       "Permit Signing",
			TimeoutSeconds: 30,
		},
		Admin: AdminConfig{
			TokenTTLMinutes: 60,
		},
	}

	// Load from file if exists
	if configPath != "" {
		if data, err := os.ReadFile(configPath); err == nil {
			if err := json.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	// Override with environment variables
	overrideWithEnv(config)

	return config, nil
}

func overrideWithEnv(config *Config) {
	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if path := os.Getenv("DOCUMENT_PATH"); path != "" {
		config.Document.SourcePath = path
	}
	if path := os.Getenv("REGISTRY_PATH"); path != "" {
		config.Registry.Path = path
	}

	if host := os.Getenv("SMTP_HOST"); host != "" {
		config.SMTP.Host = host
	}
	if port := os.Getenv("SMTP_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.SMTP.Port = p
		}
	}
	config.SMTP.Username = os.Getenv("SMTP_USERNAME")
	config.SMTP.Password = os.Getenv("SMTP_PASSWORD")
	if recipient := os.Getenv("SMTP_RECIPIENT"); recipient != "" {
		config.SMTP.Recipient = recipient
	}
	if name := os.Getenv("SMTP_FROM_NAME"); name != "" {
		config.SMTP.FromName = name
	}

	config.Admin.Username = os.Getenv("ADMIN_USERNAME")
	config.Admin.PasswordHash = os.Getenv("ADMIN_PASSWORD_HASH")
	config.Admin.JWTSecret = os.Getenv("ADMIN_JWT_SECRET")
}

// Validate reports the configuration gaps that leave parts of the service
// unusable: missing transport settings fail every submission at delivery,
// and missing admin credentials leave the admin surface rejecting all
// requests.
func (c *Config) Validate() error {
	if c.SMTP.Host == "" {
		return fmt.Errorf("smtp host is not configured")
	}
	if c.SMTP.Username == "" || c.SMTP.Password == "" {
		return fmt.Errorf("smtp credentials are not configured")
	}
	if c.SMTP.Recipient == "" {
		return fmt.Errorf("smtp recipient is not configured")
	}
	if c.Admin.Username == "" || c.Admin.PasswordHash == "" || c.Admin.JWTSecret == "" {
		return fmt.Errorf("admin credentials are not configured")
	}
	return nil
}

// GetServerAddr returns the server address
func (c *ServerConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Timeout returns the mail transport timeout.
func (c *SMTPConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// TokenTTL returns the admin token lifetime.
func (c *AdminConfig) TokenTTL() time.Duration {
	if c.TokenTTLMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(c.TokenTTLMinutes) * time.Minute
}
