package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	DefaultExbinPrefix = "/usr/local/bin"
	DefaultEditor      = "vim"
	DefaultHelmTimeout = 5 * time.Minute

	InstallerBinary = "binary"
	InstallerSDK    = "sdk"
)

var parserMap = map[string]koanf.Parser{
	".yaml": yaml.Parser(),
	".yml":  yaml.Parser(),
	".toml": toml.Parser(),
	".json": json.Parser(),
}

// ValuesExtensions lists the extensions accepted for per-cluster override files,
// in lookup order.
var ValuesExtensions = []string{".yaml", ".yml", ".json", ".toml"}

// ClusterConfig is a user-defined cluster, or a partial override of a built-in one.
type ClusterConfig struct {
	Registry      string `koanf:"registry"`
	Domain        string `koanf:"domain"`
	Console       string `koanf:"console"`
	Entry         string `koanf:"entry"`
	LVault        string `koanf:"lvault"`
	Phase         string `koanf:"phase"`
	IngressDomain string `koanf:"ingressDomain"`
}

type Config struct {
	ExbinPrefix     string                   `koanf:"exbinPrefix"`
	Editor          string                   `koanf:"editor"`
	Installer       string                   `koanf:"installer"`
	StrictOverrides bool                     `koanf:"strictOverrides"`
	HelmTimeout     time.Duration            `koanf:"helmTimeout"`
	Clusters        map[string]ClusterConfig `koanf:"clusters"`
}

// Default returns the configuration used when no user config file exists.
func Default() *Config {
	return &Config{
		ExbinPrefix: DefaultExbinPrefix,
		Editor:      DefaultEditor,
		Installer:   InstallerBinary,
		HelmTimeout: DefaultHelmTimeout,
		Clusters:    map[string]ClusterConfig{},
	}
}

// DefaultPath returns $LAIN_CONFIG, or ~/.lain/config.yaml.
func DefaultPath(getenv func(string) string) string {
	if p := getenv("LAIN_CONFIG"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".lain", "config.yaml")
	}
	return filepath.Join(home, ".lain", "config.yaml")
}

// Load reads the user config file at configFile, if any, and applies the
// LAIN_EXBIN_PREFIX and EDITOR environment overrides on top.
func Load(configFile string, getenv func(string) string) (*Config, error) {
	cfg := Default()

	k, err := loadFile(configFile)
	if err != nil {
		return nil, err
	}
	if k != nil {
		if err := k.Unmarshal("", cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config file %s: %w", configFile, err)
		}
	}

	if v := getenv("LAIN_EXBIN_PREFIX"); v != "" {
		cfg.ExbinPrefix = v
	}
	if v := getenv("EDITOR"); v != "" {
		cfg.Editor = v
	}

	switch cfg.Installer {
	case InstallerBinary, InstallerSDK:
	case "":
		cfg.Installer = InstallerBinary
	default:
		return nil, fmt.Errorf("unsupported installer %q, choose from: %s, %s", cfg.Installer, InstallerBinary, InstallerSDK)
	}

	if cfg.Clusters == nil {
		cfg.Clusters = map[string]ClusterConfig{}
	}

	return cfg, nil
}

func loadFile(configFile string) (*koanf.Koanf, error) {
	if configFile == "" {
		return nil, nil
	}

	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		log.Debug("config file does not exist", "path", configFile)
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to check config file: %w", err)
	}

	parser, err := parserFor(configFile)
	if err != nil {
		return nil, err
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(configFile), parser); err != nil {
		return nil, fmt.Errorf("failed to load config file %s: %w", configFile, err)
	}

	log.Debug("loaded config file", "path", configFile)
	return k, nil
}

func parserFor(path string) (koanf.Parser, error) {
	ext := strings.ToLower(filepath.Ext(path))
	parser, ok := parserMap[ext]
	if !ok {
		return nil, fmt.Errorf("unsupported config file format: %s", path)
	}
	return parser, nil
}

// ReadTree parses a structured document into a nested tree. Unlike koanf's
// flattened view, the tree keeps the parser's native scalar types.
func ReadTree(path string) (map[string]interface{}, error) {
	parser, err := parserFor(path)
	if err != nil {
		return nil, err
	}

	b, err := file.Provider(path).ReadBytes()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	tree, err := parser.Unmarshal(b)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if tree == nil {
		tree = map[string]interface{}{}
	}

	return tree, nil
}

// ClusterValuesFile returns the per-cluster override file under chartDir,
// named values-<cluster>.<ext>. The second return is false when none exists.
func ClusterValuesFile(chartDir, cluster string) (string, bool, error) {
	for _, ext := range ValuesExtensions {
		p := filepath.Join(chartDir, fmt.Sprintf("values-%s%s", cluster, ext))
		_, err := os.Stat(p)
		if err == nil {
			return p, true, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to check values file: %w", err)
		}
	}
	return "", false, nil
}
