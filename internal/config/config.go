// Package config builds the single Config value that every component is
// constructed from. Precedence: defaults < YAML file < .env < environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Backend      Backend          `yaml:"backend"`
	Families     []Family         `yaml:"families"`
	Prompts      PromptConfig     `yaml:"prompts"`
	Brainstorm   BrainstormConfig `yaml:"brainstorm"`
	Probe        ProbeConfig      `yaml:"probe"`
	Classifier   ClassifierConfig `yaml:"classifier"`
	Knowledge    KnowledgeConfig  `yaml:"knowledge"`
	Log          LogConfig        `yaml:"log"`
	Server       ServerConfig     `yaml:"server"`
	StageTimeout time.Duration    `yaml:"stage_timeout"`
	NodeID       int64            `yaml:"node_id"`
}

// Backend describes the model server the gateway talks to.
type Backend struct {
	Kind          string        `yaml:"kind"` // ollama | openai
	BaseURL       string        `yaml:"base_url"`
	Model         string        `yaml:"model"`
	APIKey        string        `yaml:"api_key"`
	Transport     string        `yaml:"transport"` // auto | completion | chat
	Temperature   *float64      `yaml:"temperature"`
	TopP          *float64      `yaml:"top_p"`
	MaxTokens     int           `yaml:"max_tokens"`
	NumCtx        int           `yaml:"num_ctx"`
	TokenBase     int           `yaml:"token_base"`
	TokensPerIdea int           `yaml:"tokens_per_idea"`
	Timeout       time.Duration `yaml:"timeout"`
	Seed          int           `yaml:"seed"`
}

// Family holds per-model-family defaults. A model belongs to the family
// with the longest matching name prefix.
type Family struct {
	Name           string   `yaml:"name"`
	Prefixes       []string `yaml:"prefixes"`
	Transport      string   `yaml:"transport"`
	Temperature    float64  `yaml:"temperature"`
	TopP           float64  `yaml:"top_p"`
	MinTemperature float64  `yaml:"min_temperature"`
	MinTopP        float64  `yaml:"min_top_p"`
}

type PromptConfig struct {
	Dir  string   `yaml:"dir"`
	Dirs []string `yaml:"dirs"`
}

// SearchDirs lists template directories in lookup order.
func (p PromptConfig) SearchDirs() []string {
	var dirs []string
	if p.Dir != "" {
		dirs = append(dirs, p.Dir)
	}
	for _, d := range p.Dirs {
		if d != "" && d != p.Dir {
			dirs = append(dirs, d)
		}
	}
	return dirs
}

type BrainstormConfig struct {
	MaxCount     int `yaml:"max_count"`
	DefaultCount int `yaml:"default_count"`
	IssueLimit   int `yaml:"issue_limit"`
}

type ProbeConfig struct {
	MaxChecks    int           `yaml:"max_checks"`
	CheckTimeout time.Duration `yaml:"check_timeout"`
	MaxBytes     int           `yaml:"max_bytes"`
}

type ClassifierConfig struct {
	Threshold        float64 `yaml:"threshold"`
	LowConfidence    float64 `yaml:"low_confidence"`
	TopK             int     `yaml:"top_k"`
	DisambiguateTopK int     `yaml:"disambiguate_top_k"`
}

// KnowledgeConfig points at a YAML file that replaces the built-in table
// of known fixes.
type KnowledgeConfig struct {
	File string `yaml:"file"`
}

type LogConfig struct {
	Dir    string `yaml:"dir"`
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json | console
}

type ServerConfig struct {
	Listen string `yaml:"listen"`
}

// Default returns the built-in configuration.
func Default() Config {
	home, _ := os.UserHomeDir()
	return Config{
		Backend: Backend{
			Kind:          "ollama",
			BaseURL:       "http://localhost:11434",
			Model:         "llama3.2:3b",
			Transport:     "auto",
			TokenBase:     512,
			TokensPerIdea: 160,
			Timeout:       60 * time.Second,
			Seed:          42,
		},
		Families: DefaultFamilies(),
		Brainstorm: BrainstormConfig{
			MaxCount:     12,
			DefaultCount: 5,
			IssueLimit:   4000,
		},
		Probe: ProbeConfig{
			MaxChecks:    6,
			CheckTimeout: 5 * time.Second,
			MaxBytes:     4096,
		},
		Classifier: ClassifierConfig{
			Threshold:        0.5,
			LowConfidence:    0.6,
			TopK:             5,
			DisambiguateTopK: 3,
		},
		Log: LogConfig{
			Dir:    filepath.Join(home, ".roadnerd"),
			Level:  "info",
			Format: "console",
		},
		Server:       ServerConfig{Listen: "127.0.0.1:8080"},
		StageTimeout: 120 * time.Second,
		NodeID:       1,
	}
}

// DefaultFamilies is the calibrated family table. gpt-oss returns nothing
// through completion-style calls or at low temperature, so it is pinned to
// chat with a floor of 1.0 on both parameters.
func DefaultFamilies() []Family {
	return []Family{
		{Name: "default", Transport: "completion", Temperature: 0.0, TopP: 0.9},
		{Name: "gpt-oss", Prefixes: []string{"gpt-oss"}, Transport: "chat", Temperature: 1.0, TopP: 1.0, MinTemperature: 1.0, MinTopP: 1.0},
		{Name: "deepseek-r1", Prefixes: []string{"deepseek-r1"}, Transport: "chat", Temperature: 0.6, TopP: 0.95, MinTemperature: 0.5, MinTopP: 0.9},
		{Name: "llama", Prefixes: []string{"llama", "meta-llama"}, Transport: "completion", Temperature: 0.0, TopP: 0.9},
		{Name: "qwen", Prefixes: []string{"qwen"}, Transport: "completion", Temperature: 0.0, TopP: 0.9},
		{Name: "phi", Prefixes: []string{"phi"}, Transport: "completion", Temperature: 0.0, TopP: 0.9},
		{Name: "gemma", Prefixes: []string{"gemma"}, Transport: "chat", Temperature: 0.1, TopP: 0.9},
		{Name: "mistral", Prefixes: []string{"mistral", "ministral"}, Transport: "completion", Temperature: 0.0, TopP: 0.9},
	}
}

// FamilyFor returns the family whose prefix is the longest match for model,
// falling back to the family named "default".
func (c Config) FamilyFor(model string) Family {
	name := strings.ToLower(model)
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	var (
		best    Family
		bestLen = -1
	)
	for _, f := range c.Families {
		for _, p := range f.Prefixes {
			p = strings.ToLower(p)
			if strings.HasPrefix(name, p) && len(p) > bestLen {
				best, bestLen = f, len(p)
			}
		}
	}
	if bestLen >= 0 {
		return best
	}
	for _, f := range c.Families {
		if f.Name == "default" {
			return f
		}
	}
	return Family{Name: "default", Transport: "completion", TopP: 0.9}
}

// Load assembles the configuration. An explicit path that cannot be read
// is an error; a missing RN_CONFIG file or .env is not.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = os.Getenv("RN_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		case explicit || !errors.Is(err, os.ErrNotExist):
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	var errs []error
	setString := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v, ok := os.LookupEnv(k); ok && v != "" {
				*dst = v
				return
			}
		}
	}
	setInt := func(dst *int, key string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	setFloat := func(dst *float64, key string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = f
		}
	}
	setFloatPtr := func(dst **float64, key string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = &f
		}
	}
	setDuration := func(dst *time.Duration, key string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			d, err := parseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	b := &cfg.Backend
	setString(&b.Kind, "RN_BACKEND")
	setString(&b.BaseURL, "RN_BASE_URL", "OLLAMA_BASE_URL")
	setString(&b.Model, "RN_MODEL")
	setString(&b.APIKey, "RN_API_KEY")
	setString(&b.Transport, "RN_TRANSPORT")
	if strings.EqualFold(os.Getenv("RN_USE_CHAT_MODE"), "force") {
		b.Transport = "chat"
	}
	setFloatPtr(&b.Temperature, "RN_TEMP")
	setFloatPtr(&b.TopP, "RN_TOP_P")
	setInt(&b.MaxTokens, "RN_NUM_PREDICT")
	setInt(&b.NumCtx, "RN_NUM_CTX")
	setInt(&b.TokenBase, "RN_TOKEN_BASE")
	setInt(&b.TokensPerIdea, "RN_TOKENS_PER_IDEA")
	setDuration(&b.Timeout, "RN_TIMEOUT")

	setDuration(&cfg.StageTimeout, "RN_STAGE_TIMEOUT")
	setString(&cfg.Prompts.Dir, "RN_PROMPT_DIR")
	setString(&cfg.Log.Dir, "RN_LOG_DIR")
	setString(&cfg.Log.Level, "RN_LOG_LEVEL")
	setString(&cfg.Log.Format, "RN_LOG_FORMAT")
	setString(&cfg.Server.Listen, "RN_LISTEN")

	setInt(&cfg.Probe.MaxChecks, "RN_MAX_CHECKS")
	setDuration(&cfg.Probe.CheckTimeout, "RN_CHECK_TIMEOUT")
	setInt(&cfg.Probe.MaxBytes, "RN_CHECK_MAX_BYTES")

	setFloat(&cfg.Classifier.Threshold, "RN_CLASSIFY_THRESHOLD")
	setFloat(&cfg.Classifier.LowConfidence, "RN_LOW_CONFIDENCE")
	setString(&cfg.Knowledge.File, "RN_KB_FILE")
	setInt(&cfg.Classifier.DisambiguateTopK, "RN_DISAMBIGUATE_TOPK")

	if v, ok := os.LookupEnv("RN_NODE_ID"); ok && v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("RN_NODE_ID: %w", err))
		} else {
			cfg.NodeID = n
		}
	}

	return errors.Join(errs...)
}

// parseDuration accepts Go duration strings and bare seconds.
func parseDuration(v string) (time.Duration, error) {
	if n, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(n * float64(time.Second)), nil
	}
	return time.ParseDuration(v)
}

// Validate reports configuration errors. These are the only errors that
// stop the process, and only at startup.
func (c Config) Validate() error {
	var errs []error

	switch c.Backend.Kind {
	case "ollama", "openai":
	default:
		errs = append(errs, fmt.Errorf("backend.kind: unknown backend %q", c.Backend.Kind))
	}
	if u, err := url.Parse(c.Backend.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("backend.base_url: unresolvable address %q", c.Backend.BaseURL))
	}
	if strings.TrimSpace(c.Backend.Model) == "" {
		errs = append(errs, errors.New("backend.model: required"))
	}
	if !validTransport(c.Backend.Transport) {
		errs = append(errs, fmt.Errorf("backend.transport: unknown transport %q", c.Backend.Transport))
	}
	if c.Backend.TokenBase <= 0 || c.Backend.TokensPerIdea <= 0 {
		errs = append(errs, errors.New("backend: token_base and tokens_per_idea must be positive"))
	}
	if c.Backend.Timeout <= 0 {
		errs = append(errs, errors.New("backend.timeout: must be positive"))
	}
	if c.StageTimeout <= 0 {
		errs = append(errs, errors.New("stage_timeout: must be positive"))
	}

	if len(c.Families) == 0 {
		errs = append(errs, errors.New("families: at least one family is required"))
	}
	for i, f := range c.Families {
		if f.Name == "" {
			errs = append(errs, fmt.Errorf("families[%d]: name required", i))
		}
		if f.Transport == "auto" || !validTransport(f.Transport) || f.Transport == "" {
			errs = append(errs, fmt.Errorf("families[%d] %s: transport must be completion or chat", i, f.Name))
		}
		if f.Temperature < 0 || f.TopP < 0 || f.TopP > 1 {
			errs = append(errs, fmt.Errorf("families[%d] %s: sampling out of range", i, f.Name))
		}
	}

	if c.Brainstorm.MaxCount <= 0 || c.Brainstorm.DefaultCount <= 0 || c.Brainstorm.IssueLimit <= 0 {
		errs = append(errs, errors.New("brainstorm: limits must be positive"))
	}
	if c.Probe.MaxChecks <= 0 || c.Probe.CheckTimeout <= 0 || c.Probe.MaxBytes <= 0 {
		errs = append(errs, errors.New("probe: limits must be positive"))
	}
	if c.Classifier.Threshold < 0 || c.Classifier.Threshold > 1 {
		errs = append(errs, fmt.Errorf("classifier.threshold: %v not in [0,1]", c.Classifier.Threshold))
	}
	if c.Classifier.LowConfidence <= 0 || c.Classifier.LowConfidence > 1 {
		errs = append(errs, fmt.Errorf("classifier.low_confidence: %v not in (0,1]", c.Classifier.LowConfidence))
	}
	if c.Classifier.TopK <= 0 || c.Classifier.DisambiguateTopK <= 0 {
		errs = append(errs, errors.New("classifier: top_k values must be positive"))
	}
	if c.NodeID < 0 || c.NodeID > 1023 {
		errs = append(errs, fmt.Errorf("node_id: %d not in 0..1023", c.NodeID))
	}

	return errors.Join(errs...)
}

func validTransport(t string) bool {
	switch t {
	case "", "auto", "completion", "chat":
		return true
	}
	return false
}
