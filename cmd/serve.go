package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/edaniels/golog"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/Seann-Moser/servod/pkg/bus"
	"github.com/Seann-Moser/servod/pkg/controller"
	"github.com/Seann-Moser/servod/pkg/pca9685"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the PCA9685 HTTP service",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger("servod")

		cfg, err := controller.LoadConfig(configPath)
		if err != nil {
			return err
		}

		ctl, err := buildController(cfg, logger)
		if err != nil {
			return err
		}
		defer func() {
			if err := ctl.Close(); err != nil {
				logger.Errorw("closing controller", "error", err)
			}
		}()

		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()
		go func() {
			<-sigs
			cancel()
		}()

		srv := controller.NewServer(ctl, cfg.Listen, logger.Named("server"))
		return srv.Run(ctx)
	},
}

// buildController opens the bus (or the mock register file), initializes
// the chip, and applies the configured channels.
func buildController(cfg controller.Config, logger golog.Logger) (*pca9685.Controller, error) {
	var port bus.Port
	if mock {
		logger.Warnw("using mock register file, no hardware will be touched")
		port = bus.NewMem()
		cfg.OutputEnable = nil
	} else {
		var err error
		port, err = bus.Open(cfg.Device)
		if err != nil {
			return nil, err
		}
	}

	arb := bus.NewArbiter(port, cfg.Address)
	ctl := pca9685.NewController(arb, pca9685.Options{
		OpenDrain:    cfg.OpenDrain,
		OutputEnable: cfg.OutputEnable,
	}, logger.Named("pca9685"))

	ctx := context.Background()
	if err := ctl.Initialize(ctx, cfg.FrequencyHz); err != nil {
		return nil, multierr.Append(err, ctl.Close())
	}
	for _, ch := range cfg.Channels {
		if err := ctl.Configure(ch); err != nil {
			return nil, multierr.Append(err, ctl.Close())
		}
	}
	return ctl, nil
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
