package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vytor/bunpo/internal/app"
	"github.com/vytor/bunpo/internal/models"
	"github.com/vytor/bunpo/internal/services"
)

const (
	importFileKey        = "import.file"
	importModeKey        = "import.mode"
	importOnDuplicateKey = "import.on_duplicate"
)

const flushTimeout = 30 * time.Second

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import grammar entries from a JSON, Word, sheet or CSV file",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		ctx := cmd.Context()
		path := viper.GetString(importFileKey)
		if path == "" {
			return errors.New("--file is required")
		}
		onDup := models.ImportDecision(viper.GetString(importOnDuplicateKey))
		if !onDup.Valid() {
			return errors.Errorf("--on-duplicate must be skip, add or update, got %q", onDup)
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return errors.Wrap(err, "failed to read import file")
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := app.New(ctx, cfg)
		if err != nil {
			return err
		}
		a.Start(ctx)
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), flushTimeout)
			defer cancel()
			if cerr := a.Shutdown(flushCtx); cerr != nil && err == nil {
				err = cerr
			}
		}()

		out, err := a.Imports.Upload(ctx, path, data, "", services.ImportMode(viper.GetString(importModeKey)))
		if err != nil {
			return err
		}
		for _, w := range out.Warnings {
			cmd.PrintErrf("warning: block %d skipped: %s\n", w.Block, w.Reason)
		}

		result := out.Result
		if out.Plan != nil {
			decisions := make(map[int]models.ImportDecision, out.Plan.Duplicates)
			for _, item := range out.Plan.Items {
				if item.Existing != nil {
					decisions[item.Index] = onDup
				}
			}
			result, err = a.Grammar.ApplyImport(ctx, out.Plan.Token, decisions)
			if err != nil {
				return err
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Imported %s: added=%d updated=%d skipped=%d\n", path, result.Added, result.Updated, result.Skipped)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().StringP("file", "f", "", "file to import (.json, .docx, .txt, .xlsx, .csv)")
	importCmd.Flags().String("mode", string(services.ImportMerge), "merge or replace")
	importCmd.Flags().String("on-duplicate", string(models.DecisionSkip), "how merge handles duplicates: skip, add or update")

	bindFlagToViper(importFileKey, importCmd.Flags().Lookup("file"))
	bindFlagToViper(importModeKey, importCmd.Flags().Lookup("mode"))
	bindFlagToViper(importOnDuplicateKey, importCmd.Flags().Lookup("on-duplicate"))
}
