package cmd

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"ely.by/mcauth/internal/mojang"
	"ely.by/mcauth/internal/profiles"
)

type textureOutput struct {
	URL   string         `json:"url"`
	Hash  string         `json:"hash"`
	Model profiles.Model `json:"model,omitempty"`
}

type profileOutput struct {
	ID       string                                  `json:"id"`
	Name     string                                  `json:"name"`
	Textures map[profiles.TextureType]*textureOutput `json:"textures"`
}

func newProfileCmd() *cobra.Command {
	var insecure bool
	cmd := &cobra.Command{
		Use:   "profile NAME|UUID",
		Short: "Fetches the signed profile properties and prints the verified textures",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			container := shouldGetContainer()

			var ctx context.Context
			var config *viper.Viper
			var resolver *mojang.Resolver
			var sessionService *mojang.SessionService
			var decoder *profiles.Decoder
			if err := resolve(container, &ctx, &config, &resolver, &sessionService, &decoder); err != nil {
				return err
			}

			config.SetDefault("textures.require_secure", true)
			requireSecure := config.GetBool("textures.require_secure") && !insecure

			profile, err := findProfile(ctx, resolver, args[0])
			if err != nil {
				return describeError(err)
			}

			profile, err = sessionService.FillProfileProperties(ctx, profile)
			if err != nil {
				return describeError(err)
			}

			textures, err := decoder.ResolveTextures(profile, requireSecure)
			if err != nil {
				return describeError(err)
			}

			output := &profileOutput{
				ID:       profiles.UndashedID(profile.ID),
				Name:     profile.Name,
				Textures: make(map[profiles.TextureType]*textureOutput, len(textures)),
			}
			for textureType, texture := range textures {
				item := &textureOutput{URL: texture.URL, Hash: texture.Hash()}
				if textureType == profiles.Skin {
					item.Model = texture.Model()
				}

				output.Textures[textureType] = item
			}

			return printJSON(cmd, output)
		},
	}

	cmd.Flags().BoolVar(&insecure, "insecure", false, "don't verify the textures signature and domains")

	return cmd
}

func findProfile(ctx context.Context, resolver *mojang.Resolver, nameOrID string) (*profiles.Profile, error) {
	if id, err := uuid.Parse(nameOrID); err == nil {
		return profiles.NewProfile(id, "")
	}

	for result := range resolver.ResolveByNames(ctx, []string{nameOrID}) {
		if result.Err != nil {
			return nil, result.Err
		}

		return result.Profile, nil
	}

	return nil, fmt.Errorf("%w: %q", mojang.ErrProfileNotFound, nameOrID)
}

var hasJoinedCmd = &cobra.Command{
	Use:   "has-joined NAME SERVER_ID",
	Short: "Checks whether the player has joined the server and prints the profile",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		container := shouldGetContainer()

		var ctx context.Context
		var sessionService *mojang.SessionService
		if err := resolve(container, &ctx, &sessionService); err != nil {
			return err
		}

		profile, err := sessionService.HasJoined(ctx, args[0], args[1])
		if err != nil {
			return describeError(err)
		}

		if profile == nil {
			return fmt.Errorf("%s hasn't joined the server %s", args[0], args[1])
		}

		return printJSON(cmd, profile)
	},
}

func init() {
	RootCmd.AddCommand(newProfileCmd())
	RootCmd.AddCommand(hasJoinedCmd)
}
