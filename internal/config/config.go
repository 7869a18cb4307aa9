package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
)

// Config represents the main configuration for riskshield.
type Config struct {
	BaseDir    string           `toml:"base_dir" validate:"required"`
	LogDir     string           `toml:"log_dir" validate:"required"`
	LogLevel   string           `toml:"log_level" validate:"omitempty,oneof=debug info warn error"`
	Database   DatabaseConfig   `toml:"database"`
	Storage    StorageConfig    `toml:"storage"`
	Vision     VisionConfig     `toml:"vision"`
	Provenance ProvenanceConfig `toml:"provenance"`
	Frames     FramesConfig     `toml:"frames"`
	Pipeline   PipelineConfig   `toml:"pipeline"`
	Server     ServerConfig     `toml:"server"`
}

// DatabaseConfig represents configuration for the metadata database.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type    string `toml:"type" validate:"oneof=sqlite memory"`
	DataDir string `toml:"data_dir,omitempty" validate:"required_if=Type sqlite"` // only used for type=sqlite
}

// StorageConfig represents configuration for the object store holding assets.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type StorageConfig struct {
	Type string `toml:"type" validate:"oneof=s3 filesystem memory"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket   string `toml:"s3_bucket,omitempty" validate:"required_if=Type s3"`
	S3Prefix   string `toml:"s3_prefix,omitempty"`
	S3Region   string `toml:"s3_region,omitempty"`
	S3Endpoint string `toml:"s3_endpoint,omitempty" validate:"omitempty,url"` // S3-compatible services

	// Filesystem-specific fields (only used when Type == "filesystem")
	FSRoot string `toml:"fs_root,omitempty" validate:"required_if=Type filesystem"`
}

// VisionConfig configures the vision service used by both analyzers.
type VisionConfig struct {
	Type              string `toml:"type" validate:"oneof=openai"`
	Model             string `toml:"model" validate:"required"`
	BaseURL           string `toml:"base_url,omitempty" validate:"omitempty,url"`
	APIKeyEnv         string `toml:"api_key_env" validate:"required"` // name of the env var holding the key
	RequestsPerMinute int    `toml:"requests_per_minute" validate:"min=0"`
	TimeoutSeconds    int    `toml:"timeout_seconds" validate:"min=1"`
	BreakerFailures   int    `toml:"breaker_failures" validate:"min=1"` // consecutive failures that open the breaker
}

// ProvenanceConfig selects the content-credential verifier.
type ProvenanceConfig struct {
	Type         string `toml:"type" validate:"oneof=c2patool disabled"`
	C2PAToolPath string `toml:"c2patool_path,omitempty"`
}

// FramesConfig selects the video frame sampler.
type FramesConfig struct {
	Type        string `toml:"type" validate:"oneof=ffmpeg"`
	FFmpegPath  string `toml:"ffmpeg_path,omitempty"`
	FFprobePath string `toml:"ffprobe_path,omitempty"`
}

// PipelineConfig tunes the scan pipeline.
type PipelineConfig struct {
	FrameCount          int `toml:"frame_count" validate:"min=1,max=30"`
	DisclosureThreshold int `toml:"disclosure_threshold" validate:"min=0,max=100"`
	SignedURLTTLSeconds int `toml:"signed_url_ttl_seconds" validate:"min=1"`
	ScanTimeoutSeconds  int `toml:"scan_timeout_seconds" validate:"min=1"` // deadline for one scan, tools and downloads included
}

// ServerConfig configures `riskshield serve`.
type ServerConfig struct {
	Addr      string `toml:"addr" validate:"required"`
	Workers   int    `toml:"workers" validate:"min=1"`
	QueueSize int    `toml:"queue_size" validate:"min=1"`
}

// NewConfig creates a new Config rooted at baseDir with default settings.
func NewConfig(baseDir string) *Config {
	return &Config{
		BaseDir:  baseDir,
		LogDir:   filepath.Join(baseDir, "log"),
		LogLevel: "info",
		Database: DatabaseConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "db"),
		},
		Storage: StorageConfig{
			Type:   "filesystem",
			FSRoot: filepath.Join(baseDir, "objects"),
		},
		Vision: VisionConfig{
			Type:              "openai",
			Model:             "gpt-4o",
			APIKeyEnv:         "OPENAI_API_KEY",
			RequestsPerMinute: 60,
			TimeoutSeconds:    60,
			BreakerFailures:   5,
		},
		Provenance: ProvenanceConfig{Type: "c2patool", C2PAToolPath: "c2patool"},
		Frames:     FramesConfig{Type: "ffmpeg", FFmpegPath: "ffmpeg", FFprobePath: "ffprobe"},
		Pipeline: PipelineConfig{
			FrameCount:          5,
			DisclosureThreshold: 50,
			SignedURLTTLSeconds: 300,
			ScanTimeoutSeconds:  600,
		},
		Server: ServerConfig{
			Addr:      "127.0.0.1:8080",
			Workers:   4,
			QueueSize: 64,
		},
	}
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("toml"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// Validate checks cfg against its field constraints. The error lists every
// failing field by its TOML name.
func Validate(cfg *Config) error {
	err := getValidator().Struct(cfg)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validating config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.TrimPrefix(fe.Namespace(), "Config.")
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s: failed %s=%s (got %v)", field, fe.Tag(), fe.Param(), fe.Value()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s: failed %s", field, fe.Tag()))
		}
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path and validates it.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}
	if err := Validate(cfg); err != nil {
		return err
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
