package di

import (
	"time"

	"github.com/defval/di"
	"github.com/spf13/viper"

	"ely.by/mcauth/internal/mojang"
	"ely.by/mcauth/internal/transport"
	"ely.by/mcauth/internal/trust"
)

var mojangDiOptions = di.Options(
	di.Provide(newYggdrasilApi),
	di.Provide(newProfilesResolver),
	di.Provide(newPropertiesProvider),
	di.Provide(newSessionService),
)

func newYggdrasilApi(client *transport.Client, registry *trust.Registry) *mojang.YggdrasilApi {
	return mojang.NewYggdrasilApi(client, registry)
}

func newProfilesResolver(api *mojang.YggdrasilApi, config *viper.Viper) (*mojang.Resolver, error) {
	config.SetDefault("resolver.page_size", 100)
	config.SetDefault("resolver.page_delay", 100*time.Millisecond)
	config.SetDefault("resolver.failure_delay", 750*time.Millisecond)
	config.SetDefault("resolver.max_failures", 3)

	return mojang.NewResolver(
		api,
		mojang.WithPageSize(config.GetInt("resolver.page_size")),
		mojang.WithPageDelay(config.GetDuration("resolver.page_delay")),
		mojang.WithFailureDelay(config.GetDuration("resolver.failure_delay")),
		mojang.WithMaxFailures(config.GetInt("resolver.max_failures")),
	)
}

func newPropertiesProvider(api *mojang.YggdrasilApi, config *viper.Viper) (*mojang.PropertiesProviderWithInMemoryCache, error) {
	config.SetDefault("session.properties_cache_ttl", time.Minute)

	return mojang.NewPropertiesProviderWithInMemoryCache(api, config.GetDuration("session.properties_cache_ttl"))
}

func newSessionService(api *mojang.YggdrasilApi, properties *mojang.PropertiesProviderWithInMemoryCache) *mojang.SessionService {
	return mojang.NewSessionService(api, properties)
}
