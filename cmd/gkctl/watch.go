package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/narvanalabs/gatekeeper-dashboard/internal/console"
	"github.com/narvanalabs/gatekeeper-dashboard/internal/state"
)

var flagFeedRows int

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Continuously render the dashboard in the terminal",
	RunE:  runWatch,
}

func init() {
	watchCmd.Flags().IntVar(&flagFeedRows, "rows", console.DefaultFeedRows, "Maximum feed rows to show")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	p, store, err := newPoller(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := console.Detect(os.Stdout)
	opts.FeedRows = flagFeedRows
	renderer := console.NewRenderer(os.Stdout, opts)

	// Listeners run under the store lock, so only signal here and render
	// from this goroutine.
	changed := make(chan struct{}, 1)
	store.OnChange(func(state.Snapshot) {
		select {
		case changed <- struct{}{}:
		default:
		}
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- p.Start(ctx)
	}()

	draw := func() error {
		renderer.Clear()
		return renderer.Render(store.Snapshot())
	}
	if err := draw(); err != nil {
		return err
	}

	for {
		select {
		case <-changed:
			if err := draw(); err != nil {
				return err
			}
		case err := <-errCh:
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		case <-ctx.Done():
			p.Stop()
			return nil
		}
	}
}
