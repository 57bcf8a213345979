package main

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/visiona/autovideo/internal/journal"
)

func newJournalCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Inspect the detection journal",
	}
	cmd.AddCommand(newJournalListCmd(v))
	return cmd
}

func newJournalListCmd(v *viper.Viper) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show recent detection outcomes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := loadConfig(cmd, v)
			if err != nil {
				return err
			}
			setupLogging(cfg)

			path := cfg.Journal.Path
			if path == "" {
				path = filepath.Join(cfg.DataDir, "journal.db")
			}
			j, err := journal.Open(ctx, path)
			if err != nil {
				return err
			}
			defer j.Close()

			entries, err := j.List(ctx, limit)
			if err != nil {
				return err
			}

			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.SetStyle(table.StyleLight)
			tw.AppendHeader(table.Row{"AT", "OWNER", "CHOSEN", "FALLBACK", "TRIED", "DIAGNOSTIC"})
			for _, e := range entries {
				tw.AppendRow(table.Row{
					e.At.Local().Format(time.RFC3339),
					e.Owner,
					e.Chosen,
					strconv.FormatBool(e.UsedFallback),
					e.Tried,
					e.Diagnostic,
				})
			}
			tw.Render()
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum entries to show")
	return cmd
}
