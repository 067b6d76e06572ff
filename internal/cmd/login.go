package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/go-prompt"
	"github.com/spf13/cobra"

	"ely.by/mcauth/internal/di"
	"ely.by/mcauth/internal/profiles"
	"ely.by/mcauth/internal/session"
)

type loginOptions struct {
	microsoft    bool
	username     string
	accessToken  string
	refreshToken string
	askPassword  bool
	selectName   string
}

type sessionOutput struct {
	UserType          session.UserType    `json:"user_type"`
	UserID            string              `json:"user_id"`
	AccessToken       string              `json:"access_token"`
	ExpiresAt         *time.Time          `json:"expires_at,omitempty"`
	ClientToken       string              `json:"client_token"`
	AvailableProfiles []*profiles.Profile `json:"available_profiles"`
	SelectedProfile   *profiles.Profile   `json:"selected_profile"`
	Properties        []profiles.Property `json:"properties,omitempty"`
}

func newSessionOutput(s *session.Session) *sessionOutput {
	output := &sessionOutput{
		UserType:          s.UserType(),
		UserID:            s.UserID(),
		AccessToken:       s.AccessToken(),
		ClientToken:       s.ClientToken(),
		AvailableProfiles: s.AvailableProfiles(),
		SelectedProfile:   s.SelectedProfile(),
		Properties:        s.Properties(),
	}

	if expiresAt := s.ExpiresAt(); !expiresAt.IsZero() {
		output.ExpiresAt = &expiresAt
	}

	return output
}

func newLoginCmd() *cobra.Command {
	var opts loginOptions
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Logs in with a Mojang or a Microsoft account and prints the session",
		Long: "Logs in with a Mojang account using a password or an access token, or with a Microsoft account " +
			"using a refresh token, the stored token, a password or the device code flow, in this order.",
		RunE: func(cmd *cobra.Command, args []string) error {
			container := shouldGetContainer()

			var ctx context.Context
			var factory *di.SessionFactory
			if err := resolve(container, &ctx, &factory); err != nil {
				return err
			}

			userType := session.UserTypeMojang
			if opts.microsoft {
				userType = session.UserTypeMicrosoft
			}

			s := factory.New(userType)
			if err := configureSession(s, &opts); err != nil {
				return err
			}

			if err := login(ctx, s, opts.selectName); err != nil {
				return describeError(err)
			}

			return printJSON(cmd, newSessionOutput(s))
		},
	}

	flags := cmd.Flags()
	flags.BoolVar(&opts.microsoft, "microsoft", false, "log in with a Microsoft account")
	flags.StringVarP(&opts.username, "username", "u", "", "account username or email")
	flags.StringVar(&opts.accessToken, "access-token", "", "previously issued access token (Mojang accounts)")
	flags.StringVar(&opts.refreshToken, "refresh-token", "", "refresh token (Microsoft accounts)")
	flags.BoolVarP(&opts.askPassword, "password", "p", false, "ask for the password")
	flags.StringVar(&opts.selectName, "select", "", "name of the profile to select after login")

	return cmd
}

func configureSession(s *session.Session, opts *loginOptions) error {
	err := errors.Join(
		s.SetUsername(opts.username),
		s.SetAccessToken(opts.accessToken),
		s.SetRefreshToken(opts.refreshToken),
	)
	if err != nil {
		return err
	}

	// A Mojang account can't log in without a password unless there is a token
	askPassword := opts.askPassword || (!opts.microsoft && opts.accessToken == "" && opts.username != "")
	if !askPassword {
		return nil
	}

	if opts.username == "" {
		return fmt.Errorf("%w: --username is required to log in with a password", session.ErrInvalidArgument)
	}

	return s.SetPassword(prompt.PasswordMasked("Password"))
}

func login(ctx context.Context, s *session.Session, selectName string) error {
	err := s.Login(ctx)
	if err != nil {
		return err
	}

	if selectName == "" || s.State() != session.StateLoggedIn {
		return nil
	}

	for _, profile := range s.AvailableProfiles() {
		if strings.EqualFold(profile.Name, selectName) {
			return s.SelectGameProfile(ctx, profile)
		}
	}

	return fmt.Errorf("%w: the account has no profile named %s", session.ErrInvalidArgument, selectName)
}

func init() {
	RootCmd.AddCommand(newLoginCmd())
}
