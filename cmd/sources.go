package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/smazurov/ptzbridge/internal/discovery"
	"github.com/smazurov/ptzbridge/internal/logging"
	"github.com/spf13/cobra"
)

// CreateSourcesCmd creates the sources command.
func CreateSourcesCmd() *cobra.Command {
	var sourcesFile string
	var probeTimeout time.Duration
	var all bool

	cmd := &cobra.Command{
		Use:   "sources",
		Short: "List capture sources",
		Long:  `Reads the sources file and prints the capture sources that currently accept connections.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logging.Initialize(logging.Config{Level: "warn", Format: "text"})

			finder, err := discovery.NewFileFinder(sourcesFile, discovery.WithProbeTimeout(probeTimeout))
			if err != nil {
				return err
			}

			sources := finder.Configured()
			if !all {
				ctx, cancel := context.WithTimeout(cmd.Context(), probeTimeout+time.Second)
				defer cancel()
				sources, err = finder.FindSources(ctx)
				if err != nil && !errors.Is(err, discovery.ErrNoSourceFound) {
					return err
				}
			}

			if len(sources) == 0 {
				fmt.Fprintln(os.Stderr, "No sources found")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tADDRESS\tSTREAM")
			for _, s := range sources {
				fmt.Fprintf(w, "%s\t%s\t%s\n", s.Name, s.Address, s.URL())
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&sourcesFile, "sources", "s", "sources.toml", "Sources file")
	cmd.Flags().DurationVar(&probeTimeout, "timeout", 2*time.Second, "Connection probe timeout per source")
	cmd.Flags().BoolVarP(&all, "all", "a", false, "List configured sources without probing")

	return cmd
}
