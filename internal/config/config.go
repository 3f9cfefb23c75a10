// Package config loads runtime configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config holds all application configuration
type Config struct {
	HTTPAddr   string
	Log        LogConfig
	OCR        OCRConfig
	Preprocess PreprocessConfig
	Store      StoreConfig
	Images     ImageConfig
	Export     ExportConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // text or json
}

// OCRConfig holds OCR-related configuration
type OCRConfig struct {
	Language        string
	TessdataPrefix  string
	TextEngine      string // tesseract or remote
	AnnotatedEngine string // tesseract or remote
	RemoteURL       string
	Timeout         time.Duration
	MinConfidence   float64
}

// PreprocessConfig holds image enhancement configuration
type PreprocessConfig struct {
	Timeout      time.Duration
	MaxDimension int
	Denoise      string // bilateral, median or none
}

// StoreConfig holds persistence gateway configuration
type StoreConfig struct {
	Backend     string // memory, redis or postgres
	RedisURL    string
	DatabaseURL string
	DialTimeout time.Duration
}

// ImageConfig holds image storage configuration
type ImageConfig struct {
	Store    string // fs or s3
	Dir      string
	S3Bucket string
	S3Prefix string
}

// ExportConfig holds workflow export configuration
type ExportConfig struct {
	Target     string // board, xlsx or none
	BoardURL   string
	BoardToken string
	BoardID    string
	XLSXPath   string
	Timeout    time.Duration
}

// Load loads configuration from environment variables
func Load() *Config {
	return &Config{
		HTTPAddr: getEnv("DOC_INTAKE_HTTP_ADDR", ":8080"),
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
		OCR: OCRConfig{
			Language:        getEnv("OCR_LANGUAGE", "eng"),
			TessdataPrefix:  getEnv("TESSDATA_PREFIX", ""),
			TextEngine:      strings.ToLower(getEnv("OCR_TEXT_ENGINE", "tesseract")),
			AnnotatedEngine: strings.ToLower(getEnv("OCR_ANNOTATED_ENGINE", "tesseract")),
			RemoteURL:       getEnv("OCR_REMOTE_URL", ""),
			Timeout:         getEnvAsDuration("OCR_TIMEOUT", 60*time.Second),
			MinConfidence:   getEnvAsFloat("OCR_MIN_CONFIDENCE", 0),
		},
		Preprocess: PreprocessConfig{
			Timeout:      getEnvAsDuration("PREPROCESS_TIMEOUT", 30*time.Second),
			MaxDimension: getEnvAsInt("PREPROCESS_MAX_DIMENSION", 1600),
			Denoise:      strings.ToLower(getEnv("PREPROCESS_DENOISE", "bilateral")),
		},
		Store: StoreConfig{
			Backend:     strings.ToLower(getEnv("STORE_BACKEND", "memory")),
			RedisURL:    getEnv("REDIS_URL", ""),
			DatabaseURL: getEnv("DATABASE_URL", ""),
			DialTimeout: getEnvAsDuration("STORE_DIAL_TIMEOUT", 5*time.Second),
		},
		Images: ImageConfig{
			Store:    strings.ToLower(getEnv("IMAGE_STORE", "fs")),
			Dir:      getEnv("IMAGE_DIR", "./data/images"),
			S3Bucket: getEnv("IMAGE_S3_BUCKET", ""),
			S3Prefix: getEnv("IMAGE_S3_PREFIX", "doc-intake"),
		},
		Export: ExportConfig{
			Target:     strings.ToLower(getEnv("EXPORT_TARGET", "none")),
			BoardURL:   getEnv("BOARD_API_URL", "https://api.monday.com/v2"),
			BoardToken: getEnv("BOARD_API_TOKEN", ""),
			BoardID:    getEnv("BOARD_ID", ""),
			XLSXPath:   getEnv("EXPORT_XLSX_PATH", "./data/records.xlsx"),
			Timeout:    getEnvAsDuration("EXPORT_TIMEOUT", 30*time.Second),
		},
	}
}

// Validate checks backend-specific requirements.
func (c *Config) Validate() error {
	var errs []error
	invalid := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	switch c.Log.Format {
	case "text", "json":
	default:
		invalid("LOG_FORMAT must be text or json, got %q", c.Log.Format)
	}

	for _, e := range []struct{ env, value string }{
		{"OCR_TEXT_ENGINE", c.OCR.TextEngine},
		{"OCR_ANNOTATED_ENGINE", c.OCR.AnnotatedEngine},
	} {
		switch e.value {
		case "tesseract":
		case "remote":
			if c.OCR.RemoteURL == "" {
				invalid("OCR_REMOTE_URL is required when %s=remote", e.env)
			}
		default:
			invalid("%s must be tesseract or remote, got %q", e.env, e.value)
		}
	}
	if c.OCR.MinConfidence < 0 || c.OCR.MinConfidence > 1 {
		invalid("OCR_MIN_CONFIDENCE must be within [0,1], got %v", c.OCR.MinConfidence)
	}

	switch c.Preprocess.Denoise {
	case "bilateral", "median", "none":
	default:
		invalid("PREPROCESS_DENOISE must be bilateral, median or none, got %q", c.Preprocess.Denoise)
	}
	if c.Preprocess.MaxDimension <= 0 {
		invalid("PREPROCESS_MAX_DIMENSION must be positive")
	}

	switch c.Store.Backend {
	case "memory":
	case "redis":
		if c.Store.RedisURL == "" {
			invalid("REDIS_URL is required when STORE_BACKEND=redis")
		}
	case "postgres":
		if c.Store.DatabaseURL == "" {
			invalid("DATABASE_URL is required when STORE_BACKEND=postgres")
		}
	default:
		invalid("STORE_BACKEND must be memory, redis or postgres, got %q", c.Store.Backend)
	}

	switch c.Images.Store {
	case "fs":
		if c.Images.Dir == "" {
			invalid("IMAGE_DIR is required when IMAGE_STORE=fs")
		}
	case "s3":
		if c.Images.S3Bucket == "" {
			invalid("IMAGE_S3_BUCKET is required when IMAGE_STORE=s3")
		}
	default:
		invalid("IMAGE_STORE must be fs or s3, got %q", c.Images.Store)
	}

	switch c.Export.Target {
	case "none":
	case "board":
		if c.Export.BoardToken == "" || c.Export.BoardID == "" {
			invalid("BOARD_API_TOKEN and BOARD_ID are required when EXPORT_TARGET=board")
		}
	case "xlsx":
		if c.Export.XLSXPath == "" {
			invalid("EXPORT_XLSX_PATH is required when EXPORT_TARGET=xlsx")
		}
	default:
		invalid("EXPORT_TARGET must be board, xlsx or none, got %q", c.Export.Target)
	}

	return errors.Join(errs...)
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
