package di

import "github.com/defval/di"

func New() (*di.Container, error) {
	return di.New(
		configDiOptions,
		contextDiOptions,
		httpClientDiOptions,
		loggerDiOptions,
		trustDiOptions,
		mojangDiOptions,
		xboxDiOptions,
		tokenCacheDiOptions,
		sessionDiOptions,
	)
}
