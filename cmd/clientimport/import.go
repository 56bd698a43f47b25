package main

import (
	"github.com/fatih/color"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/clientimport/internal/application"
)

var (
	importStrategy string
	importOwner    string
)

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Run the full pipeline and upsert physicians into the store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		up, err := readUpload(args[0], importOwner)
		if err != nil {
			return err
		}

		app, err := application.New(ctx, cfg, logger)
		if err != nil {
			return eris.Wrap(err, "import: open application")
		}
		defer app.Close()

		ucfg, err := app.UpsertConfig(importStrategy)
		if err != nil {
			printUserError(cmd.ErrOrStderr(), err)
			return eris.Wrap(err, "import: upsert config")
		}

		w := cmd.OutOrStdout()
		out, err := app.Service.Import(ctx, up, ucfg)
		if out != nil && out.Report != nil {
			printSummary(w, out)
		}
		if out != nil && out.Upsert != nil {
			printUpsert(w, out.Upsert)
		}
		if err != nil {
			printUserError(cmd.ErrOrStderr(), err)
			return eris.Wrap(err, "import")
		}

		color.New(color.FgGreen).Fprintf(w, "Import terminé (%s)\n", out.FileID)
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importStrategy, "strategy", "", "conflict strategy: update, skip or error (default from UPSERT_STRATEGY)")
	importCmd.Flags().StringVar(&importOwner, "owner", "cli", "owner segment for the saved upload")
	rootCmd.AddCommand(importCmd)
}
