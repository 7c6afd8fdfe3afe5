// Package config resolves the settings of a signing run from defaults, an
// optional YAML file, the environment and the command line.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/hanpama/querysign/internal/descriptor"
	"github.com/hanpama/querysign/internal/signatures"
)

// SigningKeyEnv is the environment variable holding the signing key.
const SigningKeyEnv = "SIGNING_KEY"

var (
	ErrMissingRoot       = errors.New("config: root directory is required")
	ErrMissingSigningKey = errors.New("config: signing key is required (set " + SigningKeyEnv + " or pass it as the second argument)")
)

// Config holds every setting of a run.
type Config struct {
	Root            string `yaml:"root"`
	SigningKey      string `yaml:"signing_key"`
	Output          string `yaml:"output"`
	Strategy        string `yaml:"strategy"`
	Workers         int    `yaml:"workers"`
	Manifest        string `yaml:"manifest"`
	MetricsTextfile string `yaml:"metrics_textfile"`
	AllowFailures   bool   `yaml:"allow_failures"`
	LogLevel        string `yaml:"log_level"`
	LogFormat       string `yaml:"log_format"`
	OTel            OTel   `yaml:"otel"`
}

type OTel struct {
	Endpoint string `yaml:"endpoint"`
	Service  string `yaml:"service"`
}

// Default returns the settings used when nothing else is configured.
// Workers is zero, meaning one worker per CPU.
func Default() Config {
	return Config{
		Output:    signatures.DefaultOutput,
		Strategy:  descriptor.Structural.String(),
		LogLevel:  "info",
		LogFormat: "text",
		OTel:      OTel{Service: "querysign"},
	}
}

// LoadFile overlays the YAML file at path onto c. Unknown keys are errors.
func (c *Config) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer f.Close()
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// ApplyEnv takes the signing key from the environment when it is set.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(SigningKeyEnv); ok && v != "" {
		c.SigningKey = v
	}
}

// ApplyArgs maps positional arguments in the order
// <root> [signing-key] [output] [strategy]. The signing key argument is
// ignored when envKey is true.
func (c *Config) ApplyArgs(args []string, envKey bool) {
	if len(args) > 0 {
		c.Root = args[0]
	}
	if len(args) > 1 && !envKey {
		c.SigningKey = args[1]
	}
	if len(args) > 2 {
		c.Output = args[2]
	}
	if len(args) > 3 {
		c.Strategy = args[3]
	}
}

// Validate reports missing inputs and malformed settings.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Root) == "" {
		return ErrMissingRoot
	}
	if c.SigningKey == "" {
		return ErrMissingSigningKey
	}
	if c.Output == "" {
		return errors.New("config: output path is empty")
	}
	if c.Workers < 0 {
		return fmt.Errorf("config: workers must not be negative, got %d", c.Workers)
	}
	if _, err := c.ParsedStrategy(); err != nil {
		return err
	}
	return nil
}

// ParsedStrategy returns the extraction strategy named by c.Strategy.
func (c *Config) ParsedStrategy() (descriptor.Strategy, error) {
	return descriptor.ParseStrategy(c.Strategy)
}

// LoadEnvFiles loads variables from local env files without overriding the
// process environment. Missing files are ignored.
func LoadEnvFiles(logger logrus.FieldLogger, files ...string) {
	if len(files) == 0 {
		files = []string{".env", ".env.local"}
	}
	loaded := make([]string, 0, len(files))
	for _, file := range files {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		if err := godotenv.Load(file); err != nil {
			logger.WithError(err).Warnf("Failed to load %s", file)
			continue
		}
		loaded = append(loaded, file)
	}
	if len(loaded) == 0 {
		logger.Debug("No local env files loaded; relying on process environment")
	} else {
		logger.Debugf("Loaded env files: %s", strings.Join(loaded, ", "))
	}
}
