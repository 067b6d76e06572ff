package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"ely.by/mcauth/internal/mojang"
	"ely.by/mcauth/internal/profiles"
)

type lookupOutput struct {
	Name  string `json:"name"`
	ID    string `json:"id,omitempty"`
	Error string `json:"error,omitempty"`
}

var lookupCmd = &cobra.Command{
	Use:   "lookup NAME...",
	Short: "Resolves profile names into ids",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		container := shouldGetContainer()

		var ctx context.Context
		var resolver *mojang.Resolver
		if err := resolve(container, &ctx, &resolver); err != nil {
			return err
		}

		var results []*lookupOutput
		failed := 0
		for result := range resolver.ResolveByNames(ctx, args) {
			output := &lookupOutput{Name: result.Name}
			if result.Err != nil {
				output.Error = result.Err.Error()
				failed++
			} else {
				output.Name = result.Profile.Name
				output.ID = profiles.UndashedID(result.Profile.ID)
			}

			results = append(results, output)
		}

		if err := printJSON(cmd, results); err != nil {
			return err
		}

		if failed > 0 {
			return fmt.Errorf("%d of %d names were not resolved", failed, len(results))
		}

		return nil
	},
}

func init() {
	RootCmd.AddCommand(lookupCmd)
}
