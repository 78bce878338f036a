package config

import (
	_ "embed"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed strategies.yaml
var strategiesYAML []byte

type Config struct {
	Web       WebConfig
	Match     MatchConfig
	Gallery   GalleryConfig
	Minio     MinioConfig
	Database  DatabaseConfig
	MariaDB   MariaDBConfig
	Embedding EmbeddingConfig
}

type WebConfig struct {
	Host           string // defaults to 0.0.0.0
	Port           int    // defaults to 5000
	AllowedOrigins string // comma-separated CORS origins, localhost is always allowed
}

type MatchConfig struct {
	Threshold float64 // minimum cosine similarity for a match, defaults to 0.35
}

// Gallery backends selectable with GALLERY_BACKEND.
const (
	BackendFile     = "file"
	BackendMemory   = "memory"
	BackendMinio    = "minio"
	BackendPostgres = "postgres"
	BackendMariaDB  = "mariadb"
)

type GalleryConfig struct {
	Backend  string // file, memory, minio, postgres or mariadb
	Path     string // blob location for the file backend
	Compress bool   // zstd-compress the blob (file and minio backends)
}

type MinioConfig struct {
	Endpoint  string // host:port of the S3-compatible server
	AccessKey string
	SecretKey string
	Bucket    string // defaults to face-registry
	Object    string // defaults to known_faces.fgal
	UseSSL    bool
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

type MariaDBConfig struct {
	DSN string // e.g. registry:registry@tcp(mariadb:3306)/registry
}

type EmbeddingConfig struct {
	URL            string  // defaults to http://localhost:8000
	TimeoutSec     int     // per-request timeout, defaults to 60
	RateLimit      float64 // requests per second to the embedding server, 0 disables limiting
	StrategiesFile string  // optional YAML file replacing the embedded strategy list
}

// Strategy is one detector/recognizer pair the embedding server can load.
type Strategy struct {
	Detector   string `yaml:"detector"`
	Recognizer string `yaml:"recognizer"`
}

type strategiesConfig struct {
	Strategies []Strategy `yaml:"strategies"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable as a finite float.
// Returns the default value if the env var is unset, empty, or invalid.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return f
	}
	return defaultVal
}

// envBool reads an environment variable as a boolean (1, true, yes, on).
func envBool(key string, defaultVal bool) bool {
	s := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch s {
	case "":
		return defaultVal
	case "yes", "on":
		return true
	case "no", "off":
		return false
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

func Load() *Config {
	return &Config{
		Web: WebConfig{
			Host:           envString("WEB_HOST", "0.0.0.0"),
			Port:           envInt("WEB_PORT", 5000),
			AllowedOrigins: os.Getenv("WEB_ALLOWED_ORIGINS"),
		},
		Match: MatchConfig{
			Threshold: envFloat("MATCH_THRESHOLD", 0.35),
		},
		Gallery: GalleryConfig{
			Backend:  strings.ToLower(envString("GALLERY_BACKEND", BackendFile)),
			Path:     envString("GALLERY_PATH", "known_faces.fgal"),
			Compress: envBool("GALLERY_COMPRESS", false),
		},
		Minio: MinioConfig{
			Endpoint:  os.Getenv("MINIO_ENDPOINT"),
			AccessKey: os.Getenv("MINIO_ACCESS_KEY"),
			SecretKey: os.Getenv("MINIO_SECRET_KEY"),
			Bucket:    envString("MINIO_BUCKET", "face-registry"),
			Object:    envString("MINIO_OBJECT", "known_faces.fgal"),
			UseSSL:    envBool("MINIO_USE_SSL", false),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		MariaDB: MariaDBConfig{
			DSN: os.Getenv("MARIADB_DSN"),
		},
		Embedding: EmbeddingConfig{
			URL:            envString("EMBEDDING_URL", "http://localhost:8000"),
			TimeoutSec:     envInt("EMBEDDING_TIMEOUT_SEC", 60),
			RateLimit:      envFloat("EMBEDDING_RATE_LIMIT", 0),
			StrategiesFile: os.Getenv("EMBEDDING_STRATEGIES_FILE"),
		},
	}
}

// Strategies returns the strategy list from StrategiesFile, or the embedded defaults when unset.
func (c *EmbeddingConfig) Strategies() ([]Strategy, error) {
	data := strategiesYAML
	source := "embedded strategies.yaml"
	if c.StrategiesFile != "" {
		var err error
		data, err = os.ReadFile(c.StrategiesFile)
		if err != nil {
			return nil, fmt.Errorf("reading strategies file: %w", err)
		}
		source = c.StrategiesFile
	}
	return parseStrategies(data, source)
}

func parseStrategies(data []byte, source string) ([]Strategy, error) {
	var sc strategiesConfig
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", source, err)
	}
	if len(sc.Strategies) == 0 {
		return nil, fmt.Errorf("%s: no strategies defined", source)
	}
	for i, s := range sc.Strategies {
		if s.Detector == "" || s.Recognizer == "" {
			return nil, fmt.Errorf("%s: strategy %d needs both detector and recognizer", source, i+1)
		}
	}
	return sc.Strategies, nil
}

// Validate checks the match threshold and that the selected gallery backend has what it needs.
func (c *Config) Validate() error {
	if t := c.Match.Threshold; math.IsNaN(t) || t < -1 || t > 1 {
		return fmt.Errorf("match threshold must be within [-1, 1], got %v", t)
	}

	switch c.Gallery.Backend {
	case BackendFile:
		if c.Gallery.Path == "" {
			return errors.New("GALLERY_PATH must not be empty")
		}
	case BackendMemory:
	case BackendMinio:
		if c.Minio.Endpoint == "" {
			return errors.New("MINIO_ENDPOINT environment variable is required for the minio backend")
		}
	case BackendPostgres:
		if c.Database.URL == "" {
			return errors.New("DATABASE_URL environment variable is required for the postgres backend")
		}
	case BackendMariaDB:
		if c.MariaDB.DSN == "" {
			return errors.New("MARIADB_DSN environment variable is required for the mariadb backend")
		}
	default:
		return fmt.Errorf("unknown GALLERY_BACKEND %q", c.Gallery.Backend)
	}
	return nil
}
