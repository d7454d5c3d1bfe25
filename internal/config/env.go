package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
)

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"

	defaultDBPort = 3306
	defaultDBPath = "data.db"
)

// DBConfig holds database connection parameters read from the environment
type DBConfig struct {
	Driver   string
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	Path     string // sqlite only
}

// LoadEnv reads database settings from the environment, loading envFile first if it exists.
// Variables already set in the process environment win over the file.
func LoadEnv(envFile string) (DBConfig, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return DBConfig{}, fmt.Errorf("loading %s: %w", envFile, err)
		}
	}

	cfg := DBConfig{
		Driver:   strings.ToLower(strings.TrimSpace(os.Getenv("DB_DRIVER"))),
		Host:     strings.TrimSpace(os.Getenv("DB_HOST")),
		Name:     strings.TrimSpace(os.Getenv("DB_NAME")),
		User:     strings.TrimSpace(os.Getenv("DB_USER")),
		Password: os.Getenv("DB_PASSWORD"),
		Path:     strings.TrimSpace(os.Getenv("DB_PATH")),
		Port:     defaultDBPort,
	}

	if cfg.Driver == "" {
		cfg.Driver = DriverMySQL
	}

	if v := strings.TrimSpace(os.Getenv("DB_PORT")); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port <= 0 || port > 65535 {
			return cfg, fmt.Errorf("invalid DB_PORT %q", v)
		}
		cfg.Port = port
	}

	switch cfg.Driver {
	case DriverMySQL:
		if cfg.Host == "" {
			return cfg, fmt.Errorf("DB_HOST is required")
		}
		if cfg.Name == "" {
			return cfg, fmt.Errorf("DB_NAME is required")
		}
	case DriverSQLite:
		if cfg.Path == "" {
			cfg.Path = defaultDBPath
		}
	default:
		return cfg, fmt.Errorf("unsupported DB_DRIVER %q (available: mysql, sqlite)", cfg.Driver)
	}

	return cfg, nil
}

// DSN returns the data source name for the configured driver
func (c DBConfig) DSN() string {
	if c.Driver == DriverSQLite {
		return c.Path
	}

	mc := mysql.NewConfig()
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
	mc.DBName = c.Name
	mc.User = c.User
	mc.Passwd = c.Password
	mc.ParseTime = true
	return mc.FormatDSN()
}

// Redacted returns a printable description of the target without the password
func (c DBConfig) Redacted() string {
	if c.Driver == DriverSQLite {
		return "sqlite:" + c.Path
	}
	return fmt.Sprintf("mysql://%s@%s:%d/%s", c.User, c.Host, c.Port, c.Name)
}
