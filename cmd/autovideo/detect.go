package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/visiona/autovideo/internal/autovideosrc"
	"github.com/visiona/autovideo/internal/journal"
	"github.com/visiona/autovideo/internal/observability"
	"github.com/visiona/autovideo/internal/source"
)

func newDetectCmd(v *viper.Viper) *cobra.Command {
	var useJournal bool

	cmd := &cobra.Command{
		Use:   "detect",
		Short: "Run one detection pass and report the chosen source",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := loadConfig(cmd, v)
			if err != nil {
				return err
			}
			setupLogging(cfg)

			filter, err := detectFilter(cfg)
			if err != nil {
				return err
			}
			constraint, err := detectConstraint(cfg)
			if err != nil {
				return err
			}

			metrics := observability.NewMetrics()
			src := autovideosrc.New("autovideosrc0",
				autovideosrc.WithProviderConfigs(cfg.Providers),
				autovideosrc.WithConstraint(constraint),
				autovideosrc.WithMetrics(metrics),
			)
			if filter != nil || cfg.Detect.FilterCaps == "ANY" {
				if err := src.SetFilterCaps(filter); err != nil {
					return err
				}
			}

			bus := source.NewBus()
			src.SetBus(bus)

			if err := src.SetState(ctx, source.StateReady); err != nil {
				return err
			}
			defer func() { _ = src.SetState(ctx, source.StateNull) }()

			outcome := src.Outcome()
			if outcome.UsedFallback {
				fmt.Printf("no usable source found, using %s\n", outcome.Source.Name())
			} else {
				fmt.Printf("selected %s\n", outcome.Source.Name())
			}
			fmt.Printf("  candidates tried: %d\n", outcome.CandidatesTried)
			for _, m := range bus.Drain() {
				fmt.Printf("  %s\n", m)
			}

			if useJournal || cfg.Journal.Enabled {
				path := cfg.Journal.Path
				if path == "" {
					path = filepath.Join(cfg.DataDir, "journal.db")
				}
				j, err := journal.Open(ctx, path)
				if err != nil {
					return err
				}
				defer j.Close()

				entry := journal.Entry{
					Owner:        "autovideosrc0",
					Chosen:       outcome.Source.Name(),
					UsedFallback: outcome.UsedFallback,
					Tried:        outcome.CandidatesTried,
				}
				if outcome.Diagnostic != nil {
					entry.Diagnostic = outcome.Diagnostic.String()
				}
				if err := j.Record(ctx, entry); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&useJournal, "journal", false, "record the outcome in the detection journal")
	return cmd
}
