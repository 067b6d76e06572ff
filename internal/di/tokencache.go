package di

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/defval/di"
	"github.com/spf13/viper"

	"ely.by/mcauth/internal/tokencache"
)

var tokenCacheDiOptions = di.Options(
	di.Provide(newTokenStore),
)

func newTokenStore(ctx context.Context, config *viper.Viper) (tokencache.Store, error) {
	config.SetDefault("tokencache.driver", "file")
	config.SetDefault("storage.redis.host", "localhost")
	config.SetDefault("storage.redis.port", 6379)
	config.SetDefault("storage.redis.poolSize", 10)
	config.SetDefault("tokencache.redis.ttl", tokencache.DefaultRedisTTL)

	switch driver := config.GetString("tokencache.driver"); driver {
	case "none":
		return tokencache.Nop{}, nil
	case "file":
		path := config.GetString("tokencache.file.path")
		if path == "" {
			dir, err := os.UserConfigDir()
			if err != nil {
				return nil, fmt.Errorf("unable to locate the token cache, set tokencache.file.path: %w", err)
			}

			path = filepath.Join(dir, "mcauth", "tokens.json")
		}

		return tokencache.NewFileStore(path), nil
	case "redis":
		return tokencache.NewRedis(
			ctx,
			fmt.Sprintf("%s:%d", config.GetString("storage.redis.host"), config.GetInt("storage.redis.port")),
			config.GetInt("storage.redis.poolSize"),
			config.GetDuration("tokencache.redis.ttl"),
		)
	default:
		return nil, fmt.Errorf("unknown tokencache.driver %q", driver)
	}
}
