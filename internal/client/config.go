package client

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"sigs.k8s.io/yaml"
)

const (
	// TestRootDirEnvKey is the environment variable key used to set the file system root when testing.
	TestRootDirEnvKey = "FLUXLOOP_TEST_ROOT_DIR"

	// DefaultServer is used when neither the config file nor a flag names a service URL.
	DefaultServer = "https://api.fluxloop.ai"
)

// Config holds the information needed to connect to a FluxLoop API server
// together with the selected working context.
type Config struct {
	Service Service `json:"service"`
	Context Context `json:"context"`

	// baseDir is used to resolve relative paths
	// If baseDir is empty, the current working directory is used.
	baseDir string `json:"-"`
	// TestRootDir is the root directory for test files.
	testRootDir string `json:"-"`
}

// Service contains information how to connect to and authenticate the FluxLoop API server.
type Service struct {
	// Server is the URL of the FluxLoop API server (the part before /api/...).
	Server string `json:"server"`
	// Token is the bearer token obtained by fluxloop login.
	Token string `json:"token,omitempty"`
}

// Context is the current working selection commands fall back to when no
// explicit ids are given.
type Context struct {
	ProjectId  string `json:"projectId,omitempty"`
	ScenarioId string `json:"scenarioId,omitempty"`
}

func (c *Config) Equal(c2 *Config) bool {
	if c == c2 {
		return true
	}
	if c == nil || c2 == nil {
		return false
	}
	return c.Service.Equal(&c2.Service) && c.Context.Equal(&c2.Context)
}

func (s *Service) Equal(s2 *Service) bool {
	if s == s2 {
		return true
	}
	if s == nil || s2 == nil {
		return false
	}
	return s.Server == s2.Server && s.Token == s2.Token
}

func (c *Context) Equal(c2 *Context) bool {
	if c == c2 {
		return true
	}
	if c == nil || c2 == nil {
		return false
	}
	return c.ProjectId == c2.ProjectId && c.ScenarioId == c2.ScenarioId
}

func (c *Config) DeepCopy() *Config {
	if c == nil {
		return nil
	}
	return &Config{
		Service:     c.Service,
		Context:     c.Context,
		baseDir:     c.baseDir,
		testRootDir: c.testRootDir,
	}
}

func (c *Config) SetBaseDir(baseDir string) {
	c.baseDir = baseDir
}

func NewDefault() *Config {
	c := &Config{}

	if value := os.Getenv(TestRootDirEnvKey); value != "" {
		c.testRootDir = filepath.Clean(value)
	}

	return c
}

// NewHTTPClientFromConfig returns a new HTTP Client from the given config.
func NewHTTPClientFromConfig(config *Config) (*http.Client, error) {
	httpClient := &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   30 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			ForceAttemptHTTP2:     false,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
	return httpClient, nil
}

// fluxloopHomeDir returns the directory config and cache files live in,
// ~/.fluxloop unless the test root override is set.
func fluxloopHomeDir() string {
	root, err := os.UserHomeDir()
	if err != nil {
		root = "."
	}
	if value := os.Getenv(TestRootDirEnvKey); value != "" {
		root = filepath.Clean(value)
	}
	return filepath.Join(root, ".fluxloop")
}

// DefaultFluxLoopClientConfigPath returns the default path to the FluxLoop client config file.
func DefaultFluxLoopClientConfigPath() string {
	return filepath.Join(fluxloopHomeDir(), "client.yaml")
}

// SaveCacheFile writes payload as YAML below the cache directory and
// returns the full path of the written file.
func SaveCacheFile(subdir string, filename string, payload any) (string, error) {
	contents, err := yaml.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encoding cache file: %w", err)
	}
	directory := filepath.Join(fluxloopHomeDir(), "cache", subdir)
	if err := os.MkdirAll(directory, 0700); err != nil {
		return "", fmt.Errorf("writing cache file: %w", err)
	}
	path := filepath.Join(directory, filename)
	if err := os.WriteFile(path, contents, 0600); err != nil {
		return "", fmt.Errorf("writing cache file: %w", err)
	}
	return path, nil
}

func ParseConfigFile(filename string) (*Config, error) {
	contents, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	config := NewDefault()
	if err := yaml.Unmarshal(contents, config); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	config.SetBaseDir(filepath.Dir(filename))
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// NewFromConfigFile returns a new FluxLoop API client using the config read from the given file.
func NewFromConfigFile(filename string) (*FluxClient, error) {
	config, err := ParseConfigFile(filename)
	if err != nil {
		return nil, err
	}
	return NewFromConfig(config)
}

// WriteConfig writes a client config file using the given parameters.
func WriteConfig(filename string, server string, token string) error {
	config := NewDefault()
	config.Service = Service{
		Server: server,
		Token:  token,
	}

	return config.Persist(filename)
}

func (c *Config) Persist(filename string) error {
	contents, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(filename), 0700); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	if err := os.WriteFile(filename, contents, 0600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

func (c *Config) Validate() error {
	validationErrors := make([]error, 0)
	validationErrors = append(validationErrors, validateService(c.Service)...)
	if len(validationErrors) > 0 {
		return fmt.Errorf("invalid configuration: %v", errors.Join(validationErrors...))
	}
	return nil
}

func validateService(service Service) []error {
	validationErrors := make([]error, 0)
	// Make sure the server is specified and well-formed
	if len(service.Server) == 0 {
		validationErrors = append(validationErrors, fmt.Errorf("no server found"))
	} else {
		u, err := url.Parse(service.Server)
		if err != nil {
			validationErrors = append(validationErrors, fmt.Errorf("invalid server format %q: %w", service.Server, err))
		}
		if err == nil && len(u.Hostname()) == 0 {
			validationErrors = append(validationErrors, fmt.Errorf("invalid server format %q: no hostname", service.Server))
		}
	}
	return validationErrors
}
