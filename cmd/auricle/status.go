package main

import (
	"context"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

func statusCommand() *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show player status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			if watch {
				return watchStatus(app)
			}
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()
			state, err := app.service.Status(ctx)
			if err != nil {
				return err
			}
			return app.printer.Print(state)
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", false, "watch status updates")

	return cmd
}

func watchStatus(app *app) error {
	ctx := context.Background()
	initial, err := app.service.Status(ctx)
	if err != nil {
		return err
	}
	if err := app.printer.Print(initial); err != nil {
		return err
	}

	states, toasts, errs := app.service.Watch(ctx)
	for {
		select {
		case state, ok := <-states:
			if !ok {
				return nil
			}
			if err := app.printer.Print(state); err != nil {
				return err
			}
		case toast, ok := <-toasts:
			if !ok {
				return nil
			}
			if app.quiet || app.json {
				continue
			}
			switch toast.Kind {
			case "error":
				pterm.Error.Printfln("%s: %s", toast.Title, toast.Message)
			case "warning":
				pterm.Warning.Printfln("%s: %s", toast.Title, toast.Message)
			default:
				pterm.Info.Printfln("%s: %s", toast.Title, toast.Message)
			}
		case err := <-errs:
			if err != nil {
				return err
			}
		}
	}
}
