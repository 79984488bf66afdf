package config

import (
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"time"
)

// SSLConfig carries the libpq TLS settings of the catalog database.
type SSLConfig struct {
	Mode     string
	RootCert string
	Cert     string
	Key      string
}

// NewDatabaseConfigFromEnv reads the generic DB_* variables. Load overrides the
// credentials with the service specific ones.
func NewDatabaseConfigFromEnv() *DatabaseConfig {
	return &DatabaseConfig{
		Host:     getEnvOrDefault("DB_HOST", "localhost"),
		Port:     getEnvOrDefault("DB_PORT", "5432"),
		Name:     getEnvOrDefault("DB_NAME", ""),
		User:     getEnvOrDefault("DB_USER", ""),
		Password: getEnvOrDefault("DB_PASSWORD", ""),
		Timeout:  DBTimeout,
		MaxConns: intEnv("DB_MAX_CONNS", DBMaxConns),
		SSL: SSLConfig{
			Mode:     getEnvOrDefault("DB_SSL_MODE", "prefer"),
			RootCert: getEnvOrDefault("DB_SSL_ROOT_CERT", ""),
			Cert:     getEnvOrDefault("DB_SSL_CERT", ""),
			Key:      getEnvOrDefault("DB_SSL_KEY", ""),
		},
	}
}

// BuildPostgresURL returns the pool DSN. Credentials and certificate paths
// are escaped, and the pool size, connect timeout and application name ride
// along as parameters pgxpool understands.
func (c *DatabaseConfig) BuildPostgresURL() string {
	params := url.Values{}
	params.Set("sslmode", c.sslMode())
	for key, value := range map[string]string{
		"sslrootcert": c.SSL.RootCert,
		"sslcert":     c.SSL.Cert,
		"sslkey":      c.SSL.Key,
	} {
		if value != "" {
			params.Set(key, value)
		}
	}
	params.Set("application_name", ApplicationName)
	params.Set("connect_timeout", strconv.Itoa(int(c.ConnectTimeout().Seconds())))
	if c.MaxConns > 0 {
		params.Set("pool_max_conns", strconv.Itoa(c.MaxConns))
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     net.JoinHostPort(c.Host, c.Port),
		Path:     "/" + c.Name,
		RawQuery: params.Encode(),
	}
	return u.String()
}

func (c *DatabaseConfig) sslMode() string {
	if c.SSL.Mode == "" {
		return "prefer"
	}
	return c.SSL.Mode
}

// ConnectTimeout is the budget for the initial pool ping.
func (c *DatabaseConfig) ConnectTimeout() time.Duration {
	if c.Timeout < time.Second {
		return DBTimeout
	}
	return c.Timeout
}

// ValidateSSLConfig rejects plaintext connections and verifying modes
// without a root certificate.
func (c *DatabaseConfig) ValidateSSLConfig() error {
	switch c.SSL.Mode {
	case "disable":
		return fmt.Errorf("SSL disable mode is not allowed")
	case "allow", "prefer":
		slog.Warn("database SSL mode does not verify the server", "sslmode", c.SSL.Mode)
		return nil
	case "require":
		return nil
	case "verify-ca", "verify-full":
		if c.SSL.RootCert == "" {
			return fmt.Errorf("SSL root certificate required for mode %s", c.SSL.Mode)
		}
		return nil
	default:
		return fmt.Errorf("invalid SSL mode: %s", c.SSL.Mode)
	}
}
