package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/smazurov/ptzbridge/internal/logging"
	"github.com/smazurov/ptzbridge/internal/ptz"
	"github.com/smazurov/ptzbridge/internal/visca"
	"github.com/spf13/cobra"
)

// CreatePTZCmd creates the ptz command, which drives a camera directly
// without starting the bridge.
func CreatePTZCmd() *cobra.Command {
	var port int
	var timeout time.Duration
	var verbose bool

	cmd := &cobra.Command{
		Use:   "ptz <host> <command> [field=value...]",
		Short: "Send one PTZ command to a camera",
		Long: `Sends a single VISCA-over-IP command to host, for example:

  ptzbridge ptz 192.168.1.50 recall_preset preset=3
  ptzbridge ptz 192.168.1.50 pan_tilt_speed pan=0.5 tilt=0
  ptzbridge ptz 192.168.1.50 home`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			level := "warn"
			if verbose {
				level = "debug"
			}
			logging.Initialize(logging.Config{Level: level, Format: "text"})
			logger := logging.GetLogger("visca")

			value, err := parseFields(args[2:])
			if err != nil {
				return err
			}
			command, err := ptz.Parse(ptz.Request{Command: args[1], Value: value})
			if err != nil {
				return err
			}

			conn, err := visca.Dial(cmd.Context(), visca.Address(args[0], port),
				visca.WithReplyTimeout(timeout),
				visca.WithLogger(logger),
			)
			if err != nil {
				return err
			}
			defer conn.Close()

			if err := conn.Do(cmd.Context(), command); err != nil {
				return fmt.Errorf("%s: %w", command, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s acknowledged by %s\n", command, conn.RemoteAddr())
			return nil
		},
	}

	cmd.Flags().IntVar(&port, "port", visca.DefaultPort, "VISCA-over-IP UDP port")
	cmd.Flags().DurationVar(&timeout, "timeout", visca.DefaultReplyTimeout, "Reply timeout")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log protocol exchanges")

	return cmd
}

// parseFields turns field=value arguments into a request value map.
func parseFields(args []string) (map[string]any, error) {
	value := make(map[string]any, len(args))
	for _, arg := range args {
		k, v, ok := strings.Cut(arg, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("argument %q: expected field=value", arg)
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("argument %q: %w", arg, err)
		}
		value[k] = f
	}
	return value, nil
}
