// Command safety runs the independent safety monitor for one car: it
// validates the car's shared state block and can force emergency mode.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/elevatorctl/control-plane/internal/applog"
	"github.com/elevatorctl/control-plane/internal/safetymonitor"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	return &cobra.Command{
		Use:           "safety <car_name>",
		Short:         "Validate a car's shared state and enforce emergency mode",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSafety(args[0])
		},
	}
}

func runSafety(carName string) error {
	log := applog.New("safety", carName)

	mon, err := safetymonitor.New(carName, log)
	if err != nil {
		return err
	}
	defer mon.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mon.Run(ctx)
	return nil
}
