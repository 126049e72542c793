// Command internal is the technician service panel: a one-shot writer
// against a car's shared state block.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/elevatorctl/control-plane/internal/panel"
)

func main() {
	os.Exit(run())
}

func run() int {
	cmd := newRootCmd()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, diagnosticFor(err))
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	return &cobra.Command{
		Use:           "internal <car_name> <op>",
		Short:         "Send a service-panel operation to a car",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return panel.Apply(args[0], args[1])
		},
	}
}

// diagnosticFor renders the stderr line for each precondition
// failure.
func diagnosticFor(err error) string {
	switch {
	case errors.Is(err, panel.ErrServiceModeRequired):
		return "Operation only allowed in service mode."
	case errors.Is(err, panel.ErrCarMoving):
		return "Operation not allowed while elevator is moving."
	case errors.Is(err, panel.ErrDoorsOpen):
		return "Operation not allowed while doors are open."
	case errors.Is(err, panel.ErrInvalidOperation):
		return "Invalid operation."
	default:
		return err.Error()
	}
}
