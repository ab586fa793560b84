package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	NATS    NATSConfig    `mapstructure:"nats"`
	Catalog CatalogConfig `mapstructure:"catalog"`
	Client  ClientConfig  `mapstructure:"client"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
}

type CatalogConfig struct {
	Path string `mapstructure:"path"`
}

type ClientConfig struct {
	ServerURL string `mapstructure:"server_url"`
	Database  string `mapstructure:"database"`
}

// Load reads defaults, then an optional TOML file named by INCOGNITO_CONFIG,
// then INCOGNITO_* environment variables.
func Load() (Config, error) {
	v := viper.New()

	v.SetDefault("server.port", "3000")
	v.SetDefault("nats.url", nats.DefaultURL)
	v.SetDefault("catalog.path", "stickers.json")
	v.SetDefault("client.server_url", "http://localhost:3000")
	v.SetDefault("client.database", "database.db")

	v.SetEnvPrefix("INCOGNITO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path := os.Getenv("INCOGNITO_CONFIG"); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("could not read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("could not unmarshal config: %w", err)
	}
	return c, nil
}
