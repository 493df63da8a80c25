package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func addCommand() *cobra.Command {
	var service string
	var play bool
	var replace bool

	cmd := &cobra.Command{
		Use:   "add <uri>...",
		Short: "Add items to the queue",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()

			if replace {
				return app.service.QueueReplacePlay(ctx, args, service)
			}
			if play {
				return app.service.QueueAddPlay(ctx, args, service)
			}

			index, err := app.service.QueueAdd(ctx, args, service)
			if err != nil {
				return err
			}
			if !app.quiet && !app.json {
				fmt.Printf("added at index %d\n", index)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&service, "service", "", "backend service for the items")
	cmd.Flags().BoolVar(&play, "play", false, "start playing the first added item")
	cmd.Flags().BoolVar(&replace, "replace", false, "replace the queue and play")

	return cmd
}
