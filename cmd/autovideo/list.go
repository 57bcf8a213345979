package main

import (
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/visiona/autovideo/internal/autodetect"
	"github.com/visiona/autovideo/internal/provider"
)

func newListCmd(v *viper.Viper) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered source providers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, v)
			if err != nil {
				return err
			}
			setupLogging(cfg)

			minRank := provider.RankMarginal
			if all {
				minRank = provider.RankNone
			}
			candidates := provider.Default.Filter(nil, minRank)
			autodetect.SortCandidates(candidates)

			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.SetStyle(table.StyleLight)
			tw.AppendHeader(table.Row{"NAME", "RANK", "CLASS", "DESCRIPTION"})
			for _, d := range candidates {
				tw.AppendRow(table.Row{d.Name, d.Rank.String(), strings.Join(d.Class, "/"), d.Description})
			}
			tw.Render()
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "include providers below marginal rank")
	return cmd
}
