package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func modeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mode",
		Short: "Playback mode commands",
	}

	cmd.AddCommand(randomCommand())
	cmd.AddCommand(repeatCommand())
	cmd.AddCommand(consumeCommand())
	cmd.AddCommand(cycleCommand())
	cmd.AddCommand(stopAfterCommand())

	return cmd
}

func randomCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "random <on|off>",
		Short: "Set shuffle mode",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()

			value, err := parseOnOff(args[0])
			if err != nil {
				return err
			}
			return app.service.SetRandom(ctx, value)
		},
	}
}

func repeatCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "repeat <off|all|single>",
		Short: "Set repeat mode",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()

			switch strings.ToLower(strings.TrimSpace(args[0])) {
			case "off":
				return app.service.SetRepeat(ctx, false, false)
			case "all", "on":
				return app.service.SetRepeat(ctx, true, false)
			case "single", "one":
				return app.service.SetRepeat(ctx, true, true)
			default:
				return fmt.Errorf("repeat must be off|all|single")
			}
		},
	}
}

func consumeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "consume <on|off>",
		Short: "Set consume mode",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()

			value, err := parseOnOff(args[0])
			if err != nil {
				return err
			}
			return app.service.SetConsume(ctx, value)
		},
	}
}

func cycleCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "cycle",
		Short: "Cycle the combined random/repeat mode",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()
			return app.service.ToggleRandomRepeat(ctx)
		},
	}
}

func stopAfterCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stopafter",
		Short: "Toggle stop after the current track",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()
			return app.service.ToggleStopAfterCurrent(ctx)
		},
	}
}

func parseOnOff(arg string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(arg)) {
	case "on", "true", "1", "yes":
		return true, nil
	case "off", "false", "0", "no":
		return false, nil
	default:
		return false, fmt.Errorf("expected on or off, got %q", arg)
	}
}
