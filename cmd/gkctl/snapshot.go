package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/narvanalabs/gatekeeper-dashboard/internal/console"
	"github.com/narvanalabs/gatekeeper-dashboard/internal/state"
)

var flagJSON bool

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Poll once and print the result",
	Long: `Fetch the decision log once and print the dashboard. Exits non-zero
when the upstream could not be reached or returned an unusable payload.`,
	RunE: runSnapshot,
}

func init() {
	snapshotCmd.Flags().BoolVar(&flagJSON, "json", false, "Print the snapshot as JSON")
	rootCmd.AddCommand(snapshotCmd)
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	p, _, err := newPoller(cfg)
	if err != nil {
		return err
	}

	snap := p.PollOnce(context.Background())
	out := cmd.OutOrStdout()

	if flagJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(snap); err != nil {
			return err
		}
	} else {
		opts := console.Options{Width: console.DefaultWidth}
		if f, ok := out.(*os.File); ok {
			opts = console.Detect(f)
		}
		if err := console.NewRenderer(out, opts).Render(snap); err != nil {
			return err
		}
	}

	if snap.Status != state.StatusConnected {
		return fmt.Errorf("upstream %s: %s", snap.Status, snap.LastError)
	}
	return nil
}
