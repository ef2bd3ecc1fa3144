package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vytor/bunpo/internal/app"
)

const exportOutputKey = "export.out"

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the grammar collection as a JSON array",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		ctx := cmd.Context()
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := app.New(ctx, cfg)
		if err != nil {
			return err
		}
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), flushTimeout)
			defer cancel()
			if cerr := a.Shutdown(closeCtx); cerr != nil && err == nil {
				err = cerr
			}
		}()

		data, err := a.Grammar.ExportAll(ctx)
		if err != nil {
			return err
		}

		out := viper.GetString(exportOutputKey)
		if out == "" {
			out = defaultExportFilename()
		}
		if out == "-" {
			_, err = cmd.OutOrStdout().Write(append(data, '\n'))
			return err
		}
		if dir := filepath.Dir(out); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return errors.Wrap(err, "failed to create output directory")
			}
		}
		if err := os.WriteFile(out, data, 0o644); err != nil {
			return errors.Wrap(err, "failed to write export")
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Exported to %s\n", out)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringP("out", "o", "", "output file, - for stdout")
	bindFlagToViper(exportOutputKey, exportCmd.Flags().Lookup("out"))
}

func defaultExportFilename() string {
	return fmt.Sprintf("grammar-%s.json", time.Now().Format("2006-01-02"))
}
