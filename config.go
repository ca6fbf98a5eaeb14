package relay

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// ClientConfig configures the submission client. Values can come from code or
// from a YAML file via LoadConfig; string fields support ${VAR} and
// ${VAR:default} environment substitution.
type ClientConfig struct {
	BaseURL        string        `yaml:"base_url" default:"https://api.relay.dev" validate:"required,url_format"`
	APIKey         string        `yaml:"api_key" validate:"required"`
	SubmitPath     string        `yaml:"submit_path" default:"/v1/jobs"`
	Timeout        time.Duration `yaml:"timeout" default:"30s" validate:"gte=1s"`
	DefaultRegions []string      `yaml:"default_regions"`
	Debug          bool          `yaml:"debug" default:"false"`
}

var validate *validator.Validate

func init() {
	validate = validator.New()

	// url_format validates URL structure
	validate.RegisterValidation("url_format", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		u, err := url.Parse(s)
		return err == nil && u.Scheme != "" && u.Host != ""
	})
}

// LoadConfig reads a ClientConfig from a YAML file, applies defaults,
// resolves environment references, and validates the result.
func LoadConfig(path string) (ClientConfig, error) {
	var cfg ClientConfig

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	// Decode through a raw map so string durations like "30s" convert.
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := mapToConfig(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to decode config %s: %w", path, err)
	}

	if err := initConfig(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// mapToConfig converts a raw YAML map into the config struct using yaml tags,
// with duration and timestamp string conversions.
func mapToConfig(raw map[string]any, target any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  target,
		TagName: "yaml",
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToTimeHookFunc(time.RFC3339),
		),
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}
	return decoder.Decode(raw)
}

// initConfig applies defaults, env substitution, and validation in place.
func initConfig(cfg *ClientConfig) error {
	if err := defaults.Set(cfg); err != nil {
		return fmt.Errorf("failed to apply config defaults: %w", err)
	}

	var err error
	if cfg.BaseURL, err = resolveEnvVar(cfg.BaseURL); err != nil {
		return err
	}
	if cfg.APIKey, err = resolveEnvVar(cfg.APIKey); err != nil {
		return err
	}
	if cfg.SubmitPath, err = resolveEnvVar(cfg.SubmitPath); err != nil {
		return err
	}
	for i, r := range cfg.DefaultRegions {
		if cfg.DefaultRegions[i], err = resolveEnvVar(r); err != nil {
			return err
		}
	}

	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// envVarPattern matches ${VAR} and ${VAR:default} syntax
var envVarPattern = regexp.MustCompile(`^\$\{([A-Z_][A-Z0-9_]*)(:[^}]*)?\}$`)

// resolveEnvVar resolves environment variable references in config values.
func resolveEnvVar(value string) (string, error) {
	matches := envVarPattern.FindStringSubmatch(value)
	if matches == nil {
		return value, nil
	}

	varName := matches[1]
	defaultPart := matches[2]

	if envValue, exists := os.LookupEnv(varName); exists {
		return envValue, nil
	}
	if defaultPart != "" {
		return strings.TrimPrefix(defaultPart, ":"), nil
	}
	return "", fmt.Errorf("required environment variable not set: %s", varName)
}
