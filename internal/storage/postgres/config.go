package postgres

import (
	"fmt"
)

// Config holds PostgreSQL connection settings.
type Config struct {
	Host     string
	Port     string
	Database string
	User     string
	Password string
	SSLMode  string
}

// Validate checks the required connection fields.
func (c *Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("postgres host is required")
	}
	if c.Database == "" {
		return fmt.Errorf("postgres database is required")
	}
	if c.User == "" {
		return fmt.Errorf("postgres user is required")
	}
	if c.SSLMode == "" {
		c.SSLMode = "disable"
	}
	if c.Port == "" {
		c.Port = "5432"
	}
	return nil
}

// GetConnectionString builds the DSN for the pgx stdlib driver.
func (c *Config) GetConnectionString() string {
	return fmt.Sprintf("host=%s port=%s dbname=%s user=%s password=%s sslmode=%s",
		c.Host, c.Port, c.Database, c.User, c.Password, c.SSLMode)
}
