package config

import (
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// fileConfig mirrors the YAML layout accepted through CONFIG_FILE. Every field
// is optional; zero values leave the current setting untouched.
type fileConfig struct {
	App struct {
		Name string `yaml:"name"`
		Env  string `yaml:"env"`
		Port string `yaml:"port"`
	} `yaml:"app"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	API struct {
		BaseURL        string `yaml:"baseUrl"`
		TimeoutSeconds int    `yaml:"timeoutSeconds"`
	} `yaml:"api"`
	Session struct {
		File   string `yaml:"file"`
		Secret string `yaml:"secret"`
	} `yaml:"session"`
	Redis struct {
		URL string `yaml:"url"`
	} `yaml:"redis"`
	Demo struct {
		Fallback *bool `yaml:"fallback"`
	} `yaml:"demo"`
	Wallet struct {
		Currency         string `yaml:"currency"`
		PersistQueueSize int    `yaml:"persistQueueSize"`
		Rates            struct {
			Basic    string `yaml:"basic"`
			Realtime string `yaml:"realtime"`
		} `yaml:"rates"`
	} `yaml:"wallet"`
	Checkout struct {
		Key string `yaml:"key"`
	} `yaml:"checkout"`
}

func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read file: %w", err)
	}
	return applyYAML(cfg, data)
}

func applyYAML(cfg *Config, data []byte) error {
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("config: decode yaml: %w", err)
	}

	setString(&cfg.AppName, fc.App.Name)
	setString(&cfg.AppEnv, fc.App.Env)
	setString(&cfg.Port, fc.App.Port)
	setString(&cfg.LogLevel, fc.Log.Level)
	setString(&cfg.LogFormat, fc.Log.Format)
	setString(&cfg.APIBaseURL, fc.API.BaseURL)
	setString(&cfg.SessionFile, fc.Session.File)
	setString(&cfg.SessionSecret, fc.Session.Secret)
	setString(&cfg.RedisURL, fc.Redis.URL)
	setString(&cfg.Currency, fc.Wallet.Currency)
	setString(&cfg.CheckoutKey, fc.Checkout.Key)

	if fc.API.TimeoutSeconds > 0 {
		cfg.HTTPTimeout = time.Duration(fc.API.TimeoutSeconds) * time.Second
	}
	if fc.Wallet.PersistQueueSize > 0 {
		cfg.PersistQueueSize = fc.Wallet.PersistQueueSize
	}
	if fc.Demo.Fallback != nil {
		cfg.DemoFallback = *fc.Demo.Fallback
	}

	if fc.Wallet.Rates.Basic != "" {
		rate, err := decimal.NewFromString(fc.Wallet.Rates.Basic)
		if err != nil {
			return fmt.Errorf("config: rates.basic: %w", err)
		}
		cfg.Rates.Basic = rate
	}
	if fc.Wallet.Rates.Realtime != "" {
		rate, err := decimal.NewFromString(fc.Wallet.Rates.Realtime)
		if err != nil {
			return fmt.Errorf("config: rates.realtime: %w", err)
		}
		cfg.Rates.Realtime = rate
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
