package di

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/defval/di"
	"github.com/spf13/viper"
)

var configDiOptions = di.Options(
	di.Provide(newConfig),
)

// newConfig returns the global viper instance. Unless a config file was passed explicitly,
// an optional config.{yaml,json,toml} is looked up in the user's mcauth config directory
func newConfig() (*viper.Viper, error) {
	config := viper.GetViper()
	if config.ConfigFileUsed() != "" {
		return config, nil
	}

	dir, err := os.UserConfigDir()
	if err != nil {
		return config, nil
	}

	config.SetConfigName("config")
	config.AddConfigPath(filepath.Join(dir, "mcauth"))
	err = config.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	if err != nil && !errors.As(err, &notFound) {
		return nil, err
	}

	return config, nil
}
