package di

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/defval/di"
	"github.com/spf13/viper"

	"ely.by/mcauth/internal/transport"
)

var httpClientDiOptions = di.Options(
	di.Provide(newHttpClient),
	di.Provide(newTransportClient),
)

func newHttpClient(config *viper.Viper) (*http.Client, error) {
	config.SetDefault("http.timeout", 15*time.Second)

	roundTripper := http.DefaultTransport.(*http.Transport).Clone()
	if proxy := config.GetString("http.proxy"); proxy != "" {
		proxyURL, err := url.Parse(proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid http.proxy: %w", err)
		}

		roundTripper.Proxy = http.ProxyURL(proxyURL)
	}

	return &http.Client{
		Transport: roundTripper,
		Timeout:   config.GetDuration("http.timeout"),
	}, nil
}

func newTransportClient(httpClient *http.Client) (*transport.Client, error) {
	return transport.New(httpClient)
}
