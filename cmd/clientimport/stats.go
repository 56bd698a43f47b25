package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/clientimport/internal/application"
)

var statsDuplicates bool

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show medecin table statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		app, err := application.New(ctx, cfg, logger)
		if err != nil {
			return eris.Wrap(err, "stats: open application")
		}
		defer app.Close()

		st, err := app.Rows.Stats(ctx)
		if err != nil {
			return eris.Wrap(err, "stats: query")
		}
		w := cmd.OutOrStdout()
		printStats(w, st)

		if !statsDuplicates {
			return nil
		}
		groups, err := app.Rows.FindPotentialDuplicates(ctx)
		if err != nil {
			return eris.Wrap(err, "stats: duplicates")
		}
		printDuplicates(w, groups)
		return nil
	},
}

func init() {
	statsCmd.Flags().BoolVar(&statsDuplicates, "duplicates", false, "also list potential duplicate groups")
	rootCmd.AddCommand(statsCmd)
}
