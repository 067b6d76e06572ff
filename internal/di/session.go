package di

import (
	"net/http"

	"github.com/defval/di"
	"github.com/spf13/viper"

	"ely.by/mcauth/internal/mojang"
	"ely.by/mcauth/internal/session"
	"ely.by/mcauth/internal/tokencache"
	"ely.by/mcauth/internal/xbox"
)

var sessionDiOptions = di.Options(
	di.Provide(newYggdrasilAuthenticator),
	di.Provide(newMicrosoftAuthenticator),
	di.Provide(newSessionFactory),
)

func newYggdrasilAuthenticator(api *mojang.YggdrasilApi) *session.YggdrasilAuthenticator {
	return session.NewYggdrasilAuthenticator(api)
}

func newMicrosoftAuthenticator(
	config *viper.Viper,
	httpClient *http.Client,
	xboxClient *xbox.Client,
	tokens tokencache.Store,
) *session.MicrosoftAuthenticator {
	config.SetDefault("microsoft.client_id", xbox.LauncherClientID)
	config.SetDefault("microsoft.authority", "consumers")
	config.SetDefault("microsoft.offline_access", true)

	return session.NewMicrosoftAuthenticator(httpClient, xboxClient, session.MicrosoftOptions{
		ClientID: config.GetString("microsoft.client_id"),
		OAuth: xbox.OAuthOptions{
			Authority:     config.GetString("microsoft.authority"),
			OfflineAccess: config.GetBool("microsoft.offline_access"),
		},
		DeviceCode: printDeviceCode(),
		Tokens:     tokens,
	})
}

// SessionFactory creates sessions sharing the configured client token
type SessionFactory struct {
	clientToken string
	yggdrasil   *session.YggdrasilAuthenticator
	microsoft   *session.MicrosoftAuthenticator
}

func (f *SessionFactory) New(userType session.UserType) *session.Session {
	if userType == session.UserTypeMicrosoft {
		return session.New(f.microsoft, f.clientToken)
	}

	return session.New(f.yggdrasil, f.clientToken)
}

func newSessionFactory(
	config *viper.Viper,
	yggdrasil *session.YggdrasilAuthenticator,
	microsoft *session.MicrosoftAuthenticator,
) *SessionFactory {
	return &SessionFactory{
		clientToken: config.GetString("yggdrasil.client_token"),
		yggdrasil:   yggdrasil,
		microsoft:   microsoft,
	}
}
