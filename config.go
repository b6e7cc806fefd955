package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"studentrecords/flatfile"
	"studentrecords/posgresql"
	"studentrecords/storage"
	"studentrecords/students"
)

const (
	StorageFile     = "file"
	StoragePostgres = "postgres"
)

type Config struct {
	LogLevel   slog.Level
	Listen     string
	Storage    string
	SavePolicy students.SavePolicy
	File       flatfile.FileConfig
	Postgres   *posgresql.PsqlConfig
}

func getenv(name, fallback string) string {
	if v, ok := os.LookupEnv(name); ok && v != "" {
		return v
	}
	return fallback
}

// loadConfig - .env файл (если есть), затем переменные окружения
func loadConfig(envFile string) (*Config, error) {
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load %s file failed: %w", envFile, err)
	}

	config := &Config{
		Listen:  getenv("LISTEN", ":3000"),
		Storage: getenv("STORAGE", StorageFile),
	}

	if err := config.LogLevel.UnmarshalText([]byte(getenv("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	policy, err := students.ParseSavePolicy(os.Getenv("SAVE_POLICY"))
	if err != nil {
		return nil, err
	}
	config.SavePolicy = policy

	switch config.Storage {
	case StorageFile:
		format, err := flatfile.ParseFormat(os.Getenv("DATA_FORMAT"))
		if err != nil {
			return nil, err
		}
		rowPolicy, err := storage.ParseRowPolicy(os.Getenv("ROW_POLICY"))
		if err != nil {
			return nil, err
		}
		atomic, err := strconv.ParseBool(getenv("DATA_ATOMIC", "false"))
		if err != nil {
			return nil, fmt.Errorf("invalid DATA_ATOMIC: %w", err)
		}
		config.File = flatfile.FileConfig{
			Path:      getenv("DATA_FILE", "data/students.csv"),
			Format:    format,
			RowPolicy: rowPolicy,
			Atomic:    atomic,
		}
	case StoragePostgres:
		pgconfig, err := loadPGConfig()
		if err != nil {
			return nil, err
		}
		config.Postgres = pgconfig
	default:
		return nil, fmt.Errorf("unknown STORAGE %q", config.Storage)
	}

	return config, nil
}

func loadPGConfig() (*posgresql.PsqlConfig, error) {
	host, okHost := os.LookupEnv("host")
	port, okPort := os.LookupEnv("port")
	username, okUsername := os.LookupEnv("username")
	password, okPassword := os.LookupEnv("password")
	database, okDatabase := os.LookupEnv("database")

	if !okHost || !okPort || !okUsername || !okPassword || !okDatabase {
		return nil, errors.New("load posgresql config failed: host, port, username, password and database are required")
	}

	portInt, err := strconv.Atoi(port)
	if host == "" || portInt == 0 || err != nil || username == "" || database == "" {
		return nil, fmt.Errorf("load posgresql config failed: invalid values (port %q)", port)
	}

	Logger.Debug("loaded posgresql config", "host", host, "port", portInt, "username", username, "database", database)

	return &posgresql.PsqlConfig{
		Host:       host,
		Port:       portInt,
		Username:   username,
		Password:   password,
		Database:   database,
		Migrations: getenv("MIGRATIONS", "file://migrations"),
	}, nil
}
