// Package kidaconfig loads the YAML configuration that bootstraps a Kida
// Environment outside of direct Go construction: loader roots, cache
// sizing, logging, and a set of global template variables that may
// reference the process environment via ${VAR} or ${VAR:default}.
package kidaconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/kida-lang/kida/kidalog"
)

// EnvConfig is the top-level document loaded from a Kida environment file.
// It is immutable after LoadConfig returns.
type EnvConfig struct {
	Loader    LoaderConfig    `yaml:"loader"`
	Cache     CacheConfig     `yaml:"cache"`
	Logging   kidalog.Config  `yaml:"logging"`
	Variables VariablesConfig `yaml:"variables"`
}

// LoaderConfig configures template discovery roots.
type LoaderConfig struct {
	SearchPaths []string `yaml:"search_paths"`
	Encoding    string   `yaml:"encoding"`
}

// CacheConfig configures the compiled-template cache, fragment cache, and
// on-disk bytecode cache.
type CacheConfig struct {
	TemplateCacheSize  int    `yaml:"template_cache_size"`
	FragmentCacheBytes int64  `yaml:"fragment_cache_bytes"`
	BytecodeCacheDir   string `yaml:"bytecode_cache_dir"`
	SweepIntervalCron  string `yaml:"sweep_interval_cron"`
}

// VariablesConfig defines global template variables available to every
// render via the environment's global registry.
type VariablesConfig struct {
	EnvFile string            `yaml:"env_file"`
	Values  map[string]string `yaml:"values"`
}

// LoadConfig reads and expands an EnvConfig from path. ${VAR} and
// ${VAR:default} references inside variables.values are resolved against
// the optional env_file (read with godotenv) and then the process
// environment, with the process environment taking precedence.
func LoadConfig(path string) (*EnvConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("kidaconfig: read %s: %w", path, err)
	}

	var cfg EnvConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("kidaconfig: parse %s: %w", path, err)
	}

	lookup := make(map[string]string)

	if cfg.Variables.EnvFile != "" {
		envPath := cfg.Variables.EnvFile
		if !filepath.IsAbs(envPath) {
			envPath = filepath.Join(filepath.Dir(path), envPath)
		}
		fileVars, err := godotenv.Read(envPath)
		if err != nil {
			return nil, fmt.Errorf("kidaconfig: load env file %s: %w", envPath, err)
		}
		for k, v := range fileVars {
			lookup[k] = v
		}
	}

	for _, v := range cfg.Variables.Values {
		for _, match := range varPattern.FindAllStringSubmatch(v, -1) {
			name := match[1]
			if val, ok := os.LookupEnv(name); ok {
				lookup[name] = val
			}
		}
	}

	for k, v := range cfg.Variables.Values {
		cfg.Variables.Values[k] = expandVars(v, lookup)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *EnvConfig) {
	if cfg.Cache.TemplateCacheSize == 0 {
		cfg.Cache.TemplateCacheSize = 400
	}
	if cfg.Cache.FragmentCacheBytes == 0 {
		cfg.Cache.FragmentCacheBytes = 32 << 20 // 32MB
	}
	if cfg.Cache.SweepIntervalCron == "" {
		cfg.Cache.SweepIntervalCron = "@every 5m"
	}
	if cfg.Loader.Encoding == "" {
		cfg.Loader.Encoding = "utf-8"
	}
}

// varPattern matches ${VAR} and ${VAR:default}.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

func expandVars(s string, lookup map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		name := parts[1]
		defaultVal := ""
		if len(parts) >= 3 {
			defaultVal = parts[2]
		}
		if val, ok := lookup[name]; ok {
			return val
		}
		return defaultVal
	})
}
