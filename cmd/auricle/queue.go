package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func queueCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Queue commands",
	}

	cmd.AddCommand(queueListCommand())
	cmd.AddCommand(queueClearCommand())
	cmd.AddCommand(queueRemoveCommand())
	cmd.AddCommand(queueCropCommand())
	cmd.AddCommand(queueMoveCommand())
	cmd.AddCommand(queuePlayNextCommand())

	return cmd
}

func queueListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List queue entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()

			items, err := app.service.Queue(ctx)
			if err != nil {
				return err
			}
			return app.printer.Print(items)
		},
	}
}

func queueClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Clear the queue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()
			return app.service.QueueClear(ctx)
		},
	}
}

func queueRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <index>",
		Short: "Remove a queue entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()

			index, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid index %q", args[0])
			}
			return app.service.QueueRemove(ctx, index)
		},
	}
}

func queueCropCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "crop <index>",
		Short: "Remove everything after an index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()

			index, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid index %q", args[0])
			}
			return app.service.QueueRemoveAfter(ctx, index)
		},
	}
}

func queueMoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "move <from> <to>",
		Short: "Move a queue entry",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()

			from, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid index %q", args[0])
			}
			to, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid index %q", args[1])
			}
			return app.service.QueueMove(ctx, from, to)
		},
	}
}

func queuePlayNextCommand() *cobra.Command {
	var service string

	cmd := &cobra.Command{
		Use:   "playnext <uri>",
		Short: "Insert an item after the playing track",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()
			return app.service.QueuePlayNext(ctx, args[0], service)
		},
	}

	cmd.Flags().StringVar(&service, "service", "", "backend service for the item")

	return cmd
}
