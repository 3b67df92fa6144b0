package backend

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	log "github.com/sirupsen/logrus"
)

const (
	configFileName = "leclasseur.config"
	envPrefix      = "LECLASSEUR_"
)

type UpdaterConfig struct {
	ManifestURL    string `json:"manifestUrl" koanf:"manifest_url"`
	PollInterval   string `json:"pollInterval" koanf:"poll_interval"`
	InstallDirName string `json:"installDirName" koanf:"install_dir_name"`
	ReloadAddr     string `json:"reloadAddr" koanf:"reload_addr"`
	TriggerAddr    string `json:"triggerAddr" koanf:"trigger_addr"`
	LogLevel       string `json:"logLevel" koanf:"log_level"`
	LogFile        string `json:"logFile" koanf:"log_file"`
}

var DefaultUpdaterConfig = UpdaterConfig{
	ManifestURL:    "https://dev.leclasseur.ca/static/extension/version.json",
	PollInterval:   DefaultPollInterval.String(),
	InstallDirName: "LeClasseurExtension",
	ReloadAddr:     "127.0.0.1:8888",
	TriggerAddr:    "127.0.0.1:8889",
	LogLevel:       "info",
	LogFile:        "console",
}

// Interval returns the parsed poll interval, or the default one
func (c UpdaterConfig) Interval() time.Duration {
	d, err := time.ParseDuration(c.PollInterval)
	if err != nil || d < time.Minute {
		return DefaultPollInterval
	}
	return d
}

type ConfigService struct {
	path string

	mu     sync.Mutex
	config UpdaterConfig
}

func NewConfigService(path string) *ConfigService {
	return &ConfigService{path: path, config: DefaultUpdaterConfig}
}

// Path returns the config file location
func (c *ConfigService) Path() string {
	return c.path
}

// GetConfig loads the config file, creating it from defaults when missing.
// Environment variables prefixed with LECLASSEUR_ override file values.
func (c *ConfigService) GetConfig() UpdaterConfig {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := os.Stat(c.path); os.IsNotExist(err) {
		log.Infof("creating a new config at %s", c.path)
		c.config = DefaultUpdaterConfig
		if err := c.save(); err != nil {
			log.Warnf("failed to write default config: %v", err)
		}
	}

	data, _ := os.ReadFile(c.path)
	if len(data) == 0 {
		log.Warn("config file is empty, using defaults")
		c.config = c.load(false)
	} else {
		c.config = c.load(true)
	}

	log.Debugf("updater config: %+v", c.config)
	return c.config
}

// UpdateConfig validates and persists a new config
func (c *ConfigService) UpdateConfig(config UpdaterConfig) error {
	if err := validateManifestURL(config.ManifestURL); err != nil {
		return err
	}
	if d, err := time.ParseDuration(config.PollInterval); err != nil || d < time.Minute {
		return fmt.Errorf("poll interval must be a duration of at least 1m")
	}
	if config.InstallDirName == "" || strings.ContainsAny(config.InstallDirName, `/\`) {
		return fmt.Errorf("install dir name must be a plain directory name")
	}
	if _, _, err := net.SplitHostPort(config.ReloadAddr); err != nil {
		return fmt.Errorf("invalid reload address: %w", err)
	}
	if _, _, err := net.SplitHostPort(config.TriggerAddr); err != nil {
		return fmt.Errorf("invalid trigger address: %w", err)
	}
	if _, err := log.ParseLevel(config.LogLevel); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.config = config
	return c.save()
}

// DefaultConfigPath prefers a portable config in the working directory and
// falls back to the user config directory.
func DefaultConfigPath() string {
	wdDir, err := os.Getwd()
	if err == nil {
		portableConfigPath := filepath.Join(wdDir, configFileName)
		if _, err := os.Stat(portableConfigPath); err == nil {
			return portableConfigPath
		}
	}

	dirname, err := os.UserConfigDir()
	if err != nil {
		log.Warnf("no user config dir, using working directory: %v", err)
		return configFileName
	}
	return filepath.Join(dirname, "leclasseur", configFileName)
}

func (c *ConfigService) save() error {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(c.config, "koanf"), nil); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(c.path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	b, err := k.Marshal(yaml.Parser())
	if err != nil {
		return err
	}

	return os.WriteFile(c.path, b, 0644)
}

func (c *ConfigService) load(fromFile bool) UpdaterConfig {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(DefaultUpdaterConfig, "koanf"), nil); err != nil {
		log.Warnf("error loading default config: %v", err)
		return DefaultUpdaterConfig
	}
	if fromFile {
		if err := k.Load(file.Provider(c.path), yaml.Parser()); err != nil {
			log.Warnf("error parsing config %s: %v", c.path, err)
		}
	}
	err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, envPrefix))
	}), nil)
	if err != nil {
		log.Warnf("error reading environment overrides: %v", err)
	}

	var cfg UpdaterConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		log.Warnf("error unmarshaling config: %v", err)
		return DefaultUpdaterConfig
	}

	// Invalid values fall back to defaults
	if validateManifestURL(cfg.ManifestURL) != nil {
		cfg.ManifestURL = DefaultUpdaterConfig.ManifestURL
	}
	if d, err := time.ParseDuration(cfg.PollInterval); err != nil || d < time.Minute {
		cfg.PollInterval = DefaultUpdaterConfig.PollInterval
	}
	if cfg.InstallDirName == "" || strings.ContainsAny(cfg.InstallDirName, `/\`) {
		cfg.InstallDirName = DefaultUpdaterConfig.InstallDirName
	}
	if _, _, err := net.SplitHostPort(cfg.ReloadAddr); err != nil {
		cfg.ReloadAddr = DefaultUpdaterConfig.ReloadAddr
	}
	if _, _, err := net.SplitHostPort(cfg.TriggerAddr); err != nil {
		cfg.TriggerAddr = DefaultUpdaterConfig.TriggerAddr
	}
	if _, err := log.ParseLevel(cfg.LogLevel); err != nil {
		cfg.LogLevel = DefaultUpdaterConfig.LogLevel
	}
	if cfg.LogFile == "" {
		cfg.LogFile = DefaultUpdaterConfig.LogFile
	}

	return cfg
}

func validateManifestURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid manifest url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("manifest url must be an absolute http(s) url")
	}
	return nil
}
