package di

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/defval/di"
	"golang.org/x/oauth2"

	"ely.by/mcauth/internal/transport"
	"ely.by/mcauth/internal/xbox"
)

var xboxDiOptions = di.Options(
	di.Provide(newXboxClient),
)

func newXboxClient(client *transport.Client) *xbox.Client {
	return xbox.NewClient(client)
}

// printDeviceCode shows the device code to the user running the CLI
func printDeviceCode() xbox.DeviceCodeConsumer {
	return func(code *oauth2.DeviceAuthResponse) {
		slog.Info("Waiting for the device code authentication", slog.String("verification_uri", code.VerificationURI))
		if code.VerificationURIComplete != "" {
			_, _ = fmt.Fprintf(os.Stderr, "Open %s to sign in\n", code.VerificationURIComplete)
			return
		}

		_, _ = fmt.Fprintf(os.Stderr, "Open %s and enter the code %s to sign in\n", code.VerificationURI, code.UserCode)
	}
}
