package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func volumeCommand() *cobra.Command {
	var mute bool
	var unmute bool

	cmd := &cobra.Command{
		Use:   "vol [<0..100>|<+/-n>]",
		Short: "Set volume",
		Args:  cobra.RangeArgs(0, 1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()

			if mute && unmute {
				return fmt.Errorf("use only --mute or --unmute")
			}
			var mutePtr *bool
			if mute || unmute {
				val := mute
				mutePtr = &val
			}

			arg := ""
			if len(args) == 1 {
				arg = args[0]
			}
			if arg == "" && mutePtr == nil {
				return fmt.Errorf("volume value required")
			}
			return app.service.SetVolume(ctx, arg, mutePtr)
		},
	}

	cmd.Flags().BoolVar(&mute, "mute", false, "mute output")
	cmd.Flags().BoolVar(&unmute, "unmute", false, "unmute output")
	cmd.Flags().ParseErrorsWhitelist.UnknownFlags = true

	return cmd
}
