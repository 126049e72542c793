// Command controller runs the dispatch process: it accepts car and
// call connections on a TCP listener, maintains the car registry, and
// routes calls to cars.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/elevatorctl/control-plane/internal/applog"
	"github.com/elevatorctl/control-plane/internal/controlserver"
	"github.com/elevatorctl/control-plane/internal/registry"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig layers environment over built-in defaults, with an
// optional config file for operators who want one on disk.
func loadConfig() (addr string, err error) {
	v := viper.New()
	v.SetEnvPrefix("ELEVATORCTL")
	v.AutomaticEnv()
	v.SetDefault("listen_addr", "127.0.0.1:3000")

	v.SetConfigName("controller")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/elevatorctl")
	if readErr := v.ReadInConfig(); readErr != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFound) {
			return "", fmt.Errorf("read config: %w", readErr)
		}
	}

	return v.GetString("listen_addr"), nil
}

func newRootCmd() *cobra.Command {
	return &cobra.Command{
		Use:          "controller",
		Short:        "Run the elevator dispatch controller",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runController()
		},
	}
}

func runController() error {
	addr, err := loadConfig()
	if err != nil {
		return err
	}

	log := applog.New("controller", addr)
	reg := registry.New()
	srv := controlserver.New(addr, reg, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
		return nil
	}
}
