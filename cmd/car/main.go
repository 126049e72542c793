// Command car runs one elevator car: it owns a shared memory state
// block and a control link to the controller, and drives the
// door/motion state machine.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/elevatorctl/control-plane/internal/applog"
	"github.com/elevatorctl/control-plane/internal/cardriver"
	"github.com/elevatorctl/control-plane/internal/floorlabel"
)

// controllerAddr is the fixed control-plane address; there is no flag
// to override it.
const controllerAddr = "127.0.0.1:3000"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	return &cobra.Command{
		Use:          "car <name> <lowest_floor> <highest_floor> <delay_ms>",
		Short:        "Run one elevator car controller",
		Args:         cobra.ExactArgs(4),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCar(args[0], args[1], args[2], args[3])
		},
	}
}

func runCar(name, lowestLabel, highestLabel, delayArg string) error {
	lowest, err := floorlabel.Parse(lowestLabel)
	if err != nil {
		return fmt.Errorf("invalid lowest floor %q: %w", lowestLabel, err)
	}
	highest, err := floorlabel.Parse(highestLabel)
	if err != nil {
		return fmt.Errorf("invalid highest floor %q: %w", highestLabel, err)
	}
	if lowest > highest {
		return fmt.Errorf("invalid range: %s is above %s", lowestLabel, highestLabel)
	}
	delayMs, err := strconv.ParseUint(delayArg, 10, 32)
	if err != nil {
		return fmt.Errorf("invalid delay %q: %w", delayArg, err)
	}
	delay := time.Duration(delayMs) * time.Millisecond

	log := applog.New("car", name)

	car, err := cardriver.New(name, lowestLabel, highestLabel, delay, log)
	if err != nil {
		return fmt.Errorf("create car state: %w", err)
	}
	defer car.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	link := &cardriver.Link{Addr: controllerAddr, Car: car}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		car.Run(gctx)
		return nil
	})
	g.Go(func() error {
		if err := link.Run(gctx); err != nil && gctx.Err() == nil {
			log.Warn().Err(err).Msg("control link exited")
		}
		return nil
	})

	return g.Wait()
}
