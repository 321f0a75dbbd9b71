// Package config loads complaintd settings from defaults, an optional YAML
// file, a .env file and the environment, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces every setting in the environment, e.g.
// COMPLAINTD_SERVER_ADDR.
const EnvPrefix = "COMPLAINTD"

type Config struct {
	Server    Server    `mapstructure:"server"`
	Anthropic Anthropic `mapstructure:"anthropic"`
	Gemini    Gemini    `mapstructure:"gemini"`
	OpenAI    OpenAI    `mapstructure:"openai"`
	Store     Store     `mapstructure:"store"`
	Letters   Letters   `mapstructure:"letters"`
	Classify  Classify  `mapstructure:"classify"`
	Knowledge Knowledge `mapstructure:"knowledge"`
	Layout    Layout    `mapstructure:"layout"`
	Render    Render    `mapstructure:"render"`
	Logging   Logging   `mapstructure:"logging"`
	Tracing   Tracing   `mapstructure:"tracing"`
}

type Server struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type Anthropic struct {
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	MaxTokens   int64   `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
}

type Gemini struct {
	APIKey         string `mapstructure:"api_key"`
	EmbeddingModel string `mapstructure:"embedding_model"`
	Dimensions     int32  `mapstructure:"dimensions"`
}

type OpenAI struct {
	APIKey     string `mapstructure:"api_key"`
	ImageModel string `mapstructure:"image_model"`
}

type Store struct {
	Path string `mapstructure:"path"`
}

type Letters struct {
	Budget time.Duration `mapstructure:"budget"`
}

type Classify struct {
	WeightsFile string `mapstructure:"weights_file"`
}

type Knowledge struct {
	Threshold float64 `mapstructure:"threshold"`
	Limit     int     `mapstructure:"limit"`
	TopK      int     `mapstructure:"top_k"`
}

type Layout struct {
	EnableImages     bool `mapstructure:"enable_images"`
	MaxImageSections int  `mapstructure:"max_image_sections"`
	ImageConcurrency int  `mapstructure:"image_concurrency"`
}

type Render struct {
	ChromePath string `mapstructure:"chrome_path"`
}

type Logging struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type Tracing struct {
	Enabled     bool   `mapstructure:"enabled"`
	Endpoint    string `mapstructure:"endpoint"`
	ServiceName string `mapstructure:"service_name"`
}

// Load reads configuration. configFile may be empty, in which case
// complaintd.yaml is looked up in the working directory and $HOME. A .env
// file in the working directory is applied first when present; variables
// already set in the environment win over it.
func Load(configFile string) (Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return Config{}, fmt.Errorf("load .env: %w", err)
		}
	}
	return load(viper.New(), configFile)
}

func load(v *viper.Viper, configFile string) (Config, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME")
		v.SetConfigName("complaintd")
		v.SetConfigType("yaml")
	}

	setDefaults(v)
	if err := bindEnv(v); err != nil {
		return Config{}, err
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.shutdown_timeout", "15s")

	v.SetDefault("anthropic.model", "claude-sonnet-4-20250514")
	v.SetDefault("anthropic.max_tokens", 4096)
	v.SetDefault("anthropic.temperature", 0.2)

	v.SetDefault("gemini.embedding_model", "text-embedding-004")
	v.SetDefault("gemini.dimensions", 768)

	v.SetDefault("openai.image_model", "dall-e-3")

	v.SetDefault("store.path", "complaintd.db")
	v.SetDefault("letters.budget", "5m")
	v.SetDefault("classify.weights_file", "")

	v.SetDefault("knowledge.threshold", 0.7)
	v.SetDefault("knowledge.limit", 10)
	v.SetDefault("knowledge.top_k", 5)

	v.SetDefault("layout.enable_images", false)
	v.SetDefault("layout.max_image_sections", 3)
	v.SetDefault("layout.image_concurrency", 2)

	v.SetDefault("render.chrome_path", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.service_name", "complaintd")
}

// bindEnv maps the providers' conventional variable names onto their keys.
func bindEnv(v *viper.Viper) error {
	bindings := map[string][]string{
		"anthropic.api_key": {EnvPrefix + "_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY"},
		"gemini.api_key":    {EnvPrefix + "_GEMINI_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY"},
		"openai.api_key":    {EnvPrefix + "_OPENAI_API_KEY", "OPENAI_API_KEY"},
		"tracing.endpoint":  {EnvPrefix + "_TRACING_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT"},
	}
	for key, envs := range bindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return fmt.Errorf("bind %s: %w", key, err)
		}
	}
	return nil
}

func (c Config) Validate() error {
	var problems []string
	if strings.TrimSpace(c.Server.Addr) == "" {
		problems = append(problems, "server.addr is required")
	}
	if strings.TrimSpace(c.Store.Path) == "" {
		problems = append(problems, "store.path is required")
	}
	if c.Letters.Budget <= 0 {
		problems = append(problems, "letters.budget must be positive")
	}
	if c.Knowledge.Threshold <= 0 || c.Knowledge.Threshold > 1 {
		problems = append(problems, "knowledge.threshold must be within (0,1]")
	}
	if c.Knowledge.Limit <= 0 || c.Knowledge.TopK <= 0 {
		problems = append(problems, "knowledge.limit and knowledge.top_k must be positive")
	}
	if c.Layout.ImageConcurrency <= 0 {
		problems = append(problems, "layout.image_concurrency must be positive")
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		problems = append(problems, fmt.Sprintf("logging.format %q must be text or json", c.Logging.Format))
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}
