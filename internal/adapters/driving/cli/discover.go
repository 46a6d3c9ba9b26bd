package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Probe for a reachable aggregation gateway",
	Long: `Probe the configured gateway, the GRAPHLOOM_GATEWAY_URL default and the
local conventions (localhost:8080, 127.0.0.1:8080, localhost:3000) in
order, and report the first that answers its health check.`,
	Args: cobra.NoArgs,
	RunE: runDiscover,
}

func init() {
	rootCmd.AddCommand(discoverCmd)
}

type discoverOutput struct {
	Candidates []string `json:"candidates"`
	Gateway    string   `json:"gateway,omitempty"`
	Reachable  bool     `json:"reachable"`
}

func runDiscover(cmd *cobra.Command, _ []string) error {
	if discoveryService == nil || settingsService == nil {
		return errors.New("discovery service not configured")
	}

	snap, err := settingsService.Snapshot(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to read settings: %w", err)
	}

	out := discoverOutput{Candidates: discoveryService.Candidates(snap)}
	out.Gateway, out.Reachable = discoveryService.Discover(cmd.Context(), snap)

	if jsonOutput {
		return printJSON(cmd, out)
	}

	cmd.Println(titleStyle.Render("Gateway candidates"))
	for i, c := range out.Candidates {
		cmd.Printf("  %d. %s\n", i+1, c)
	}
	cmd.Println()
	if out.Reachable {
		cmd.Println(successStyle.Render("Reachable gateway: " + out.Gateway))
	} else {
		cmd.Println(warningStyle.Render("No reachable gateway."))
	}
	return nil
}
