package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Registry drivers accepted by REGISTRY_DRIVER.
const (
	RegistryFile     = "file"
	RegistrySQLite   = "sqlite"
	RegistryPostgres = "postgres"
)

// Blob drivers accepted by BLOB_DRIVER.
const (
	BlobFS    = "fs"
	BlobMinIO = "minio"
)

// DatabaseConfig holds PostgreSQL database connection settings.
type DatabaseConfig struct {
	Host               string
	Port               string
	User               string
	Password           string
	Name               string
	SSLMode            string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeSec int
}

// MinIOConfig holds object storage settings for MinIO.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// StorageConfig locates the persisted state. Paths are explicit and never
// derived from the process working directory at call time.
type StorageConfig struct {
	RegistryDriver string
	BlobDriver     string
	// DataDir holds the metadata snapshot (documents.json) for the file registry.
	DataDir string
	// UploadDir holds blob objects for the fs blob store.
	UploadDir      string
	SQLitePath     string
	MaxUploadBytes int64
}

// AppConfig is the centralized configuration struct for the application.
// It is populated from environment variables. Sensitive values are not hardcoded.
type AppConfig struct {
	AppHost    string
	Port       string
	LogLevel   string
	TZLocation string
	Storage    StorageConfig
	Database   DatabaseConfig
	MinIO      MinIOConfig
}

// maxUploadCeiling mirrors model.MaxUploadBytes; MAX_UPLOAD_BYTES may lower it, never raise it.
const maxUploadCeiling int64 = 20 << 20

// Load reads configuration from environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
// This function does not require a .env file; real environment variables take precedence.
func Load() *AppConfig {
	dataDir := getEnv("DATA_DIR", "./var/data")
	return &AppConfig{
		AppHost:    getEnv("APP_HOST", "localhost:8080"),
		Port:       getEnv("PORT", "8080"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),
		TZLocation: getEnv("TZ_LOCATION", "UTC"),
		Storage: StorageConfig{
			RegistryDriver: strings.ToLower(getEnv("REGISTRY_DRIVER", RegistryFile)),
			BlobDriver:     strings.ToLower(getEnv("BLOB_DRIVER", BlobFS)),
			DataDir:        absPath(dataDir),
			UploadDir:      absPath(getEnv("UPLOAD_DIR", "./var/uploads")),
			SQLitePath:     absPath(getEnv("SQLITE_PATH", filepath.Join(dataDir, "documents.db"))),
			MaxUploadBytes: clampUpload(getEnvInt64("MAX_UPLOAD_BYTES", maxUploadCeiling)),
		},
		Database: DatabaseConfig{
			Host:               getEnv("DB_HOST", ""),
			Port:               getEnv("DB_PORT", "5432"),
			User:               getEnv("DB_USER", ""),
			Password:           getEnv("DB_PASSWORD", ""),
			Name:               getEnv("DB_NAME", ""),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetimeSec: getEnvInt("DB_CONN_MAX_LIFETIME_SEC", 300),
		},
		MinIO: MinIOConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", ""),
			AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey: getEnv("MINIO_SECRET_KEY", ""),
			Bucket:    getEnv("MINIO_BUCKET", ""),
			UseSSL:    getEnvBool("MINIO_USE_SSL", false),
		},
	}
}

// absPath resolves p once at load time so later chdir calls cannot move the stores.
func absPath(p string) string {
	abs, err := filepath.Abs(p)
	if err != nil {
		return p
	}
	return abs
}

func clampUpload(n int64) int64 {
	if n <= 0 || n > maxUploadCeiling {
		return maxUploadCeiling
	}
	return n
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}

func getEnvInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.ParseInt(v, 10, 64)
		if err == nil {
			return i
		}
	}
	return def
}
