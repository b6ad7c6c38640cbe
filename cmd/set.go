package cmd

import (
	"context"
	"strconv"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/Seann-Moser/servod/pkg/controller"
	"github.com/Seann-Moser/servod/pkg/pca9685"
)

var (
	setUnit   string
	setRemote string
)

var setCmd = &cobra.Command{
	Use:   "set <channel> <value>",
	Short: "Command a single channel, for bench testing",
	Long: `Command a single channel once and exit. By default the value is an
angle in degrees; --unit selects pulse_width (ms), percent ([0,1]), count
(raw 12-bit), full_on, or full_off (value ignored). With --remote the
command goes to a running service; otherwise the hardware is driven
directly using the local configuration file.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger("servod")

		channel, err := strconv.Atoi(args[0])
		if err != nil {
			return errors.Wrapf(err, "channel %q", args[0])
		}

		var value *float64
		command := setUnit
		switch command {
		case controller.CommandFullOn, controller.CommandFullOff:
		case controller.CommandAngle, controller.CommandPulse,
			controller.CommandPercent, controller.CommandCount:
			if len(args) < 2 {
				return errors.Errorf("unit %q requires a value argument", command)
			}
			v, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return errors.Wrapf(err, "value %q", args[1])
			}
			value = &v
		default:
			return errors.Errorf("unknown unit %q", command)
		}

		ctx := cmd.Context()

		if setRemote != "" {
			client := controller.NewClient(setRemote)
			st, err := client.Command(ctx, channel, command, value)
			if err != nil {
				return err
			}
			logger.Infow("channel commanded", "channel", channel, "state", st)
			return nil
		}

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

		st, err := applyLocal(ctx, ctl, channel, command, value)
		if err != nil {
			return err
		}
		logger.Infow("channel commanded", "channel", channel, "duty", st.Duty)
		return nil
	},
}

// applyLocal dispatches a parsed command against a local controller.
func applyLocal(ctx context.Context, ctl *pca9685.Controller, channel int, command string, value *float64) (pca9685.ChannelState, error) {
	switch command {
	case controller.CommandAngle:
		return ctl.ApplyAngle(ctx, channel, *value)
	case controller.CommandPulse:
		return ctl.ApplyPulseMs(ctx, channel, *value)
	case controller.CommandPercent:
		return ctl.ApplyPercent(ctx, channel, *value)
	case controller.CommandCount:
		return ctl.ApplyCount(ctx, channel, int(*value))
	case controller.CommandFullOn:
		return ctl.FullOn(ctx, channel)
	case controller.CommandFullOff:
		return ctl.FullOff(ctx, channel)
	}
	return pca9685.ChannelState{}, errors.Errorf("unknown unit %q", command)
}

func init() {
	setCmd.Flags().StringVar(&setUnit, "unit", controller.CommandAngle,
		"value unit: angle | pulse_width | percent | count | full_on | full_off")
	setCmd.Flags().StringVar(&setRemote, "remote", "",
		"base URL of a running service, e.g. http://pi:8080")
	rootCmd.AddCommand(setCmd)
}
