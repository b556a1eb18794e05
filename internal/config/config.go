package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	_ "embed"

	"github.com/caarlos0/env/v9"
	"github.com/charmbracelet/x/exp/ordered"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/dotcommander/mcpagent/internal/errs"
)

//go:embed config_template.yml
var configTemplate string

const (
	envPrefix       = "MCPAGENT_"
	settingsDirName = "mcpagent"
	settingsName    = "mcpagent.yml"
	dotEnvName      = ".env"
)

// Collision policies for tools with the same name on different servers.
const (
	CollisionNamespace = "namespace"
	CollisionReject    = "reject"
	CollisionShadow    = "shadow"
)

// Model configures the completion endpoint.
type Model struct {
	API         string        `yaml:"api" env:"API"`
	Name        string        `yaml:"name" env:"NAME"`
	BaseURL     string        `yaml:"base-url" env:"BASE_URL"`
	APIKey      string        `yaml:"api-key" env:"API_KEY"`
	APIKeyEnv   string        `yaml:"api-key-env" env:"API_KEY_ENV"`
	APIKeyCmd   string        `yaml:"api-key-cmd" env:"API_KEY_CMD"`
	Temperature float64       `yaml:"temperature" env:"TEMPERATURE"`
	MaxTokens   int64         `yaml:"max-tokens" env:"MAX_TOKENS"`
	Timeout     time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// Agent configures the orchestration loop.
type Agent struct {
	SystemPrompt      string        `yaml:"system-prompt" env:"SYSTEM_PROMPT"`
	MaxIterations     int           `yaml:"max-iterations" env:"MAX_ITERATIONS"`
	ChunkSize         int           `yaml:"chunk-size" env:"CHUNK_SIZE"`
	ChunkDelay        time.Duration `yaml:"chunk-delay" env:"CHUNK_DELAY"`
	ValidateArguments bool          `yaml:"validate-arguments" env:"VALIDATE_ARGUMENTS"`
	ToolCollisions    string        `yaml:"tool-collisions" env:"TOOL_COLLISIONS"`
}

// Server configures the HTTP surface.
type Server struct {
	Listen         string   `yaml:"listen" env:"LISTEN"`
	AllowedOrigins []string `yaml:"allowed-origins" env:"ALLOWED_ORIGINS"`
}

// Log configures logging.
type Log struct {
	Level  string `yaml:"level" env:"LEVEL"`
	Pretty bool   `yaml:"pretty" env:"PRETTY"`
}

// MCPServerConfig holds the connection descriptor of one tool server.
type MCPServerConfig struct {
	URL       string   `yaml:"url"`
	Transport string   `yaml:"transport"`
	Command   string   `yaml:"command"`
	Args      []string `yaml:"args"`
	Env       []string `yaml:"env"`
}

// Settings holds persisted configuration loaded from the YAML settings file
// and the environment.
type Settings struct {
	Model      Model                      `yaml:"model" envPrefix:"MODEL_"`
	Agent      Agent                      `yaml:"agent" envPrefix:"AGENT_"`
	Server     Server                     `yaml:"server" envPrefix:"SERVER_"`
	Log        Log                        `yaml:"log" envPrefix:"LOG_"`
	MCPTimeout time.Duration              `yaml:"mcp-timeout" env:"MCP_TIMEOUT"`
	MCPDisable []string                   `yaml:"mcp-disable" env:"MCP_DISABLE"`
	MCPServers map[string]MCPServerConfig `yaml:"mcp-servers"`
}

// Runtime holds options that never come from the settings file.
type Runtime struct {
	SettingsPath string
	Quiet        bool
	JSON         bool

	// Environ is the process environment merged with .env files. Secrets
	// are looked up here instead of in the process environment.
	Environ map[string]string
}

// Config is the application configuration (settings + runtime-only options).
type Config struct {
	Settings `yaml:",inline"`
	Runtime  `yaml:"-" env:"-"`
}

// DefaultSettingsPath returns ~/.config/mcpagent/mcpagent.yml.
func DefaultSettingsPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errs.Error{Err: err, Reason: "Could not determine home directory."}
	}
	return filepath.Join(home, ".config", settingsDirName, settingsName), nil
}

// Ensure loads settings from the default location, creating the file first
// when it does not exist.
func Ensure() (Config, error) {
	sp, err := DefaultSettingsPath()
	if err != nil {
		return Default(), err
	}
	return Load(sp)
}

// Load reads settings from path, then applies .env files and environment
// overrides. The settings file is created from the template if missing.
func Load(path string) (Config, error) {
	c := Default()
	c.SettingsPath = path

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return c, errs.Error{Err: err, Reason: "Could not create config directory."}
	}
	if err := WriteConfigFile(path); err != nil {
		return c, err
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return c, errs.Error{Err: err, Reason: "Could not read settings file."}
	}
	if err := yaml.Unmarshal(content, &c); err != nil {
		return c, errs.Error{Err: err, Reason: "Could not parse settings file."}
	}

	environ, err := LoadEnviron(filepath.Join(filepath.Dir(path), dotEnvName), dotEnvName)
	if err != nil {
		return c, errs.Error{Err: err, Reason: "Could not read .env file."}
	}
	c.Environ = environ

	if err := env.ParseWithOptions(&c, env.Options{Prefix: envPrefix, Environment: environ}); err != nil {
		return c, errs.Error{Err: err, Reason: "Could not parse environment into settings."}
	}

	c.normalize()
	if err := c.Validate(); err != nil {
		return c, err
	}
	return c, nil
}

// LoadEnviron returns the process environment merged with the given dotenv
// files. Process variables win over file values; earlier files win over
// later ones. Missing files are skipped.
func LoadEnviron(files ...string) (map[string]string, error) {
	environ := map[string]string{}
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if ok {
			environ[k] = v
		}
	}
	for _, file := range files {
		if _, err := os.Stat(file); errors.Is(err, os.ErrNotExist) {
			continue
		}
		values, err := godotenv.Read(file)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", file, err)
		}
		for k, v := range values {
			if _, exists := environ[k]; !exists {
				environ[k] = v
			}
		}
	}
	return environ, nil
}

func (c *Config) normalize() {
	d := Default()
	c.Agent.MaxIterations = ordered.Max(c.Agent.MaxIterations, 1)
	c.Agent.ChunkSize = ordered.Max(c.Agent.ChunkSize, 1)
	c.Agent.ChunkDelay = ordered.Max(c.Agent.ChunkDelay, 0)
	c.Agent.ToolCollisions = ordered.First(strings.ToLower(c.Agent.ToolCollisions), d.Agent.ToolCollisions)
	if c.MCPTimeout <= 0 {
		c.MCPTimeout = d.MCPTimeout
	}
	if c.Model.Timeout <= 0 {
		c.Model.Timeout = d.Model.Timeout
	}
	c.Server.Listen = ordered.First(c.Server.Listen, d.Server.Listen)
	c.Log.Level = ordered.First(c.Log.Level, d.Log.Level)
}

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	switch c.Agent.ToolCollisions {
	case CollisionNamespace, CollisionReject, CollisionShadow:
	default:
		return errs.Error{
			Err: errs.UserErrorf("Supported values are: %s, %s, %s",
				CollisionNamespace, CollisionReject, CollisionShadow),
			Reason: fmt.Sprintf("Unknown tool-collisions policy %q.", c.Agent.ToolCollisions),
		}
	}
	for name, server := range c.MCPServers {
		if server.URL == "" && server.Command == "" {
			return errs.Error{
				Err:    errs.UserErrorf("Set either url or command for %q", name),
				Reason: fmt.Sprintf("MCP server %q has no connection info.", name),
			}
		}
	}
	return nil
}

// WriteConfigFile creates the config file at path if it does not exist.
func WriteConfigFile(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return createConfigFile(path)
	} else if err != nil {
		return errs.Error{Err: err, Reason: "Could not stat path."}
	}
	return nil
}

func createConfigFile(path string) error {
	tmpl := template.Must(template.New("config").Parse(configTemplate))

	f, err := os.Create(path)
	if err != nil {
		return errs.Error{Err: err, Reason: "Could not create configuration file."}
	}
	defer func() { _ = f.Close() }()

	m := struct{ Config Config }{Config: Default()}
	if err := tmpl.Execute(f, m); err != nil {
		return errs.Error{Err: err, Reason: "Could not render template."}
	}
	return nil
}

// Default returns the default configuration values.
func Default() Config {
	return Config{
		Settings: Settings{
			Model: Model{
				API:         "deepseek",
				Name:        "deepseek-chat",
				BaseURL:     "https://api.deepseek.com/v1",
				Temperature: 0.2,
				Timeout:     60 * time.Second,
			},
			Agent: Agent{
				MaxIterations:  10,
				ChunkSize:      10,
				ChunkDelay:     50 * time.Millisecond,
				ToolCollisions: CollisionNamespace,
			},
			Server: Server{
				Listen: ":8000",
			},
			Log: Log{
				Level:  "info",
				Pretty: true,
			},
			MCPTimeout: 15 * time.Second,
		},
	}
}
