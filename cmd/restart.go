package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/smazurov/camfeed/internal/logging"
	"github.com/smazurov/camfeed/internal/nats"
	"github.com/spf13/cobra"
)

// CreateRestartCmd creates the restart command, which asks a running
// instance over NATS to relaunch its capture process.
func CreateRestartCmd() *cobra.Command {
	var (
		natsURL  string
		instance string
		reason   string
		timeout  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "restart",
		Short: "Restart capture on a running instance",
		Long: `Sends a restart command to a camfeed instance through NATS and waits for its reply. ` +
			`The instance must have a NATS relay configured.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if natsURL == "" {
				return errors.New("--nats-url is required")
			}

			publisher, err := nats.NewControlPublisher(natsURL, logging.GetLogger("nats"))
			if err != nil {
				return err
			}
			defer publisher.Close()

			restarted, err := publisher.Restart(instance, reason, timeout)
			if err != nil {
				return err
			}
			if !restarted {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: capture is not running\n", instance)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: capture restarted\n", instance)
			return nil
		},
	}

	cmd.Flags().StringVar(&natsURL, "nats-url", "nats://127.0.0.1:4222", "NATS server URL")
	cmd.Flags().StringVar(&instance, "instance", "default", "Instance name to restart")
	cmd.Flags().StringVar(&reason, "reason", "manual", "Reason recorded in the instance log")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "How long to wait for a reply")

	return cmd
}
