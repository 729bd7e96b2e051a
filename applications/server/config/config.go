package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// Api is the HTTP API configuration.
type Api struct {
	// HTTPAddr is the listen address, e.g. "0.0.0.0:8002".
	HTTPAddr string `yaml:"http_addr"`
}

// Storage configures where published files and upload temp files live.
type Storage struct {
	// Dir is the directory published files are served from.
	Dir string `yaml:"dir"`
	// TempPrefix names the per-process temp directory for in-flight uploads.
	TempPrefix string `yaml:"temp_prefix"`
	// MaxUploadBytes caps a single request body; zero means no limit.
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`
}

// Server is the service configuration.
type Server struct {
	API     Api     `yaml:"api"`
	Storage Storage `yaml:"storage"`
}

// Parse reads the YAML config at path.
func Parse(path string) (Server, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Server{}, fmt.Errorf("can't read config file: %w", err)
	}

	var cfg Server
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return Server{}, fmt.Errorf("can't unmarshal config: %w", err)
	}

	return cfg, nil
}

// Validate checks that the config is complete enough to start the server.
func (s Server) Validate() error {
	if s.API.HTTPAddr == "" {
		return fmt.Errorf("api.http_addr is required")
	}
	if s.Storage.Dir == "" {
		return fmt.Errorf("storage.dir is required")
	}
	if s.Storage.MaxUploadBytes < 0 {
		return fmt.Errorf("storage.max_upload_bytes can't be negative")
	}

	return nil
}
