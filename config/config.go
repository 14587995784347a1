package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrMissingAPIKey 未配置生成服务凭据
var ErrMissingAPIKey = errors.New("missing generation service API key")

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	LLM        LLMConfig        `yaml:"llm"`
	Generation GenerationConfig `yaml:"generation"`
	Catalog    CatalogConfig    `yaml:"catalog"`
}

type ServerConfig struct {
	Port          string `yaml:"port"`
	Mode          string `yaml:"mode"` // debug, release
	MaxUploadSize int64  `yaml:"max_upload_size"`
}

type DatabaseConfig struct {
	Type string `yaml:"type"` // sqlite, mysql
	DSN  string `yaml:"dsn"`
}

type LLMConfig struct {
	Provider  string        `yaml:"provider"` // openai, eino, gemini
	APIURL    string        `yaml:"api_url"`
	APIKey    string        `yaml:"api_key"`
	Model     string        `yaml:"model"`
	MaxTokens int           `yaml:"max_tokens"`
	Timeout   time.Duration `yaml:"timeout"`
}

// GenerationConfig 文档生成相关配置
type GenerationConfig struct {
	MinMaxChars      int    `yaml:"min_max_chars"`
	MaxMaxChars      int    `yaml:"max_max_chars"`
	DefaultMaxChars  int    `yaml:"default_max_chars"`
	MaxCharsStep     int    `yaml:"max_chars_step"`
	PreviewChars     int    `yaml:"preview_chars"`
	ResponseFormat   string `yaml:"response_format"` // json, tagged
	AnchorStrategy   string `yaml:"anchor_strategy"` // token, heading
	BulletStyle      string `yaml:"bullet_style"`
	ASCIIPunctuation bool   `yaml:"ascii_punctuation"`
	TemplatePath     string `yaml:"template_path"`
}

type CatalogConfig struct {
	Path string `yaml:"path"`
}

var (
	cfg  *Config
	once sync.Once
)

func GetConfig() *Config {
	once.Do(func() {
		cfg = loadConfig()
	})
	return cfg
}

// Default 返回内置默认配置
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:          "8080",
			Mode:          "debug",
			MaxUploadSize: 50 << 20,
		},
		Database: DatabaseConfig{
			Type: "sqlite",
			DSN:  "./data/app.db",
		},
		LLM: LLMConfig{
			Provider:  "openai",
			APIURL:    "https://api.openai.com/v1",
			Model:     "gpt-4o-mini",
			MaxTokens: 4096,
			Timeout:   5 * time.Minute,
		},
		Generation: GenerationConfig{
			MinMaxChars:      5000,
			MaxMaxChars:      60000,
			DefaultMaxChars:  20000,
			MaxCharsStep:     5000,
			PreviewChars:     8000,
			ResponseFormat:   "json",
			AnchorStrategy:   "token",
			BulletStyle:      "ListBullet",
			ASCIIPunctuation: true,
		},
	}
}

func loadConfig() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	config, err := Load(configPath)
	if err != nil {
		// 配置文件格式错误时保留默认值，由 Validate 兜底
		config = Default()
		applyEnv(config)
	}
	return config
}

// Load 读取配置文件（文件不存在时使用默认值），再叠加环境变量
func Load(path string) (*Config, error) {
	config := Default()

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	// 环境变量优先级高于配置文件
	applyEnv(config)
	config.normalize()
	return config, nil
}

// normalize 枚举类配置统一为去空白的小写形式
func (c *Config) normalize() {
	lower := func(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
	c.LLM.Provider = lower(c.LLM.Provider)
	c.Database.Type = lower(c.Database.Type)
	c.Generation.ResponseFormat = lower(c.Generation.ResponseFormat)
	c.Generation.AnchorStrategy = lower(c.Generation.AnchorStrategy)
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
}

func applyEnv(config *Config) {
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		config.LLM.APIKey = apiKey
	}
	if apiKey := os.Getenv("LLM_API_KEY"); apiKey != "" {
		config.LLM.APIKey = apiKey
	}
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		config.LLM.APIURL = baseURL
	}
	if model := os.Getenv("OPENAI_MODEL_NAME"); model != "" {
		config.LLM.Model = model
	}
	if provider := os.Getenv("LLM_PROVIDER"); provider != "" {
		config.LLM.Provider = provider
	}

	// 数据库环境变量
	if dbType := os.Getenv("DB_TYPE"); dbType != "" {
		config.Database.Type = dbType
	}
	if dbDSN := os.Getenv("DB_DSN"); dbDSN != "" {
		config.Database.DSN = dbDSN
	}

	if port := os.Getenv("PORT"); port != "" {
		config.Server.Port = port
	}
	if tpl := os.Getenv("TEMPLATE_PATH"); tpl != "" {
		config.Generation.TemplatePath = tpl
	}
}

// Validate 检查启动必需的配置项
func (c *Config) Validate() error {
	c.normalize()
	if c.LLM.APIKey == "" {
		return fmt.Errorf("%w: set llm.api_key in %s or export OPENAI_API_KEY=\"sk-...\" before starting the server",
			ErrMissingAPIKey, configPathHint())
	}
	g := c.Generation
	if g.MinMaxChars <= 0 || g.MaxMaxChars < g.MinMaxChars {
		return fmt.Errorf("invalid generation character bounds: min=%d max=%d", g.MinMaxChars, g.MaxMaxChars)
	}
	if g.DefaultMaxChars < g.MinMaxChars || g.DefaultMaxChars > g.MaxMaxChars {
		return fmt.Errorf("generation.default_max_chars %d outside [%d, %d]", g.DefaultMaxChars, g.MinMaxChars, g.MaxMaxChars)
	}
	switch g.ResponseFormat {
	case "json", "tagged":
	default:
		return fmt.Errorf("unsupported generation.response_format %q", g.ResponseFormat)
	}
	switch g.AnchorStrategy {
	case "token", "heading":
	default:
		return fmt.Errorf("unsupported generation.anchor_strategy %q", g.AnchorStrategy)
	}
	return nil
}

func configPathHint() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return "config.yaml"
}

func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
