package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/graphloom/internal/core/domain"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage connection settings",
	Long: `View and change how graphloom reaches its backends.

Settings live in ~/.graphloom/config.toml and take effect on the next
command; nothing needs restarting.`,
	RunE: runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show resolved settings",
	Args:  cobra.NoArgs,
	RunE:  runSettingsShow,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set KEY [VALUE]",
	Short: "Set one setting",
	Long: `Set one setting. For secret keys (passwords, API keys) omit VALUE to be
prompted without echo.

Run 'graphloom settings keys' for the list of keys.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runSettingsSet,
}

var settingsKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List settable keys",
	Args:  cobra.NoArgs,
	RunE:  runSettingsKeys,
}

var settingsValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the embedding provider is reachable",
	Args:  cobra.NoArgs,
	RunE:  runSettingsValidate,
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd, settingsSetCmd, settingsKeysCmd, settingsValidateCmd)
	rootCmd.AddCommand(settingsCmd)
}

// readSecret reads a secret from the terminal; swapped in tests.
var readSecret = readPassword

type settingsOutput struct {
	Mode          domain.ConnectionMode                    `json:"mode"`
	Gateway       string                                   `json:"gateway,omitempty"`
	WideningFloor int                                      `json:"wideningFloor,omitempty"`
	Endpoints     map[domain.Backend]domain.EndpointConfig `json:"endpoints"`
	Embedding     map[string]string                        `json:"embedding"`
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	snap, err := settingsService.Snapshot(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to read settings: %w", err)
	}
	resolved, err := settingsService.Resolved(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to resolve endpoints: %w", err)
	}
	for b, cfg := range resolved {
		resolved[b] = maskEndpoint(cfg)
	}

	out := settingsOutput{
		Mode:          snap.Mode,
		Gateway:       snap.GatewayBaseURL,
		WideningFloor: snap.WideningFloor,
		Endpoints:     resolved,
		Embedding: map[string]string{
			"provider": snap.Embedding.Provider.String(),
			"model":    snap.Embedding.Model,
			"baseUrl":  snap.Embedding.BaseURL,
		},
	}
	if snap.Embedding.APIKey != "" {
		out.Embedding["apiKey"] = maskAPIKey(snap.Embedding.APIKey)
	}

	if jsonOutput {
		return printJSON(cmd, out)
	}

	cmd.Println(titleStyle.Render("Connection"))
	cmd.Printf("  Mode: %s\n", snap.Mode.Description())
	if snap.Mode == domain.ConnectionModeUnified {
		cmd.Printf("  Gateway: %s\n", orNotSet(snap.GatewayBaseURL))
	}
	if snap.WideningFloor > 0 {
		cmd.Printf("  Widening floor: %d\n", snap.WideningFloor)
	}
	cmd.Println()

	for _, b := range domain.Backends() {
		cfg := resolved[b]
		cmd.Println(headerStyle.Render("[" + strings.ToUpper(b.String()[:1]) + b.String()[1:] + "]"))
		cmd.Printf("  URL: %s\n", orNotSet(cfg.BaseURL))
		switch b {
		case domain.BackendGraph:
			cmd.Printf("  Username: %s\n", orNotSet(cfg.Username))
			cmd.Printf("  Password: %s\n", orNotSet(cfg.Password))
			cmd.Printf("  Database: %s\n", orNotSet(cfg.Database))
		case domain.BackendVector:
			cmd.Printf("  API Key: %s\n", orNotSet(cfg.APIKey))
			cmd.Printf("  Collection: %s\n", orNotSet(cfg.Collection))
			cmd.Printf("  Vector: %s (dimension %d)\n", orNotSet(cfg.VectorName), cfg.Dimension)
			transport := "TLS"
			if cfg.Insecure {
				transport = warningStyle.Render("plaintext")
			}
			cmd.Printf("  gRPC transport: %s\n", transport)
		}
		cmd.Println()
	}

	cmd.Println(headerStyle.Render("[Embedding]"))
	cmd.Printf("  Provider: %s\n", snap.Embedding.Provider.Description())
	cmd.Printf("  Model: %s\n", orNotSet(snap.Embedding.Model))
	if snap.Embedding.Provider.IsLocal() {
		cmd.Printf("  Base URL: %s\n", orNotSet(snap.Embedding.BaseURL))
	}
	if snap.Embedding.Provider.RequiresAPIKey() {
		cmd.Printf("  API Key: %s\n", orNotSet(out.Embedding["apiKey"]))
	}
	status := successStyle.Render("configured")
	if !snap.Embedding.IsConfigured() {
		status = mutedStyle.Render("not configured (vector search uses REST scroll)")
	}
	cmd.Printf("  Status: %s\n", status)
	return nil
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	key := args[0]
	var value string
	switch {
	case len(args) == 2:
		value = args[1]
	case settingsService.IsSecret(key):
		cmd.Printf("Enter value for %s: ", key)
		value = readSecret()
		cmd.Println()
	default:
		return fmt.Errorf("missing value for %s", key)
	}

	if err := settingsService.Set(key, value); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}

	shown := value
	if settingsService.IsSecret(key) {
		shown = maskAPIKey(value)
	}
	cmd.Println(successStyle.Render(fmt.Sprintf("Set %s = %s", key, shown)))
	return nil
}

func runSettingsKeys(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	keys := settingsService.Keys()
	if jsonOutput {
		return printJSON(cmd, keys)
	}
	for _, k := range keys {
		if settingsService.IsSecret(k) {
			cmd.Printf("  %s %s\n", k, mutedStyle.Render("(secret)"))
			continue
		}
		cmd.Printf("  %s\n", k)
	}
	return nil
}

func runSettingsValidate(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	if err := settingsService.ValidateEmbeddingConfig(cmd.Context()); err != nil {
		if errors.Is(err, domain.ErrEmbeddingUnavailable) {
			cmd.Println(warningStyle.Render("Embedding provider not configured; vector search will use REST scroll."))
			return nil
		}
		cmd.Println(errorStyle.Render("Embedding provider check failed: " + err.Error()))
		return err
	}
	cmd.Println(successStyle.Render("Embedding provider is reachable."))
	return nil
}

func maskEndpoint(cfg domain.EndpointConfig) domain.EndpointConfig {
	if cfg.Password != "" {
		cfg.Password = maskAPIKey(cfg.Password)
	}
	if cfg.APIKey != "" {
		cfg.APIKey = maskAPIKey(cfg.APIKey)
	}
	return cfg
}

func orNotSet(s string) string {
	if s == "" {
		return mutedStyle.Render("(not set)")
	}
	return s
}

//nolint:errcheck // CLI helper, error ignored for UX
func readPassword() string {
	if term.IsTerminal(int(os.Stdin.Fd())) {
		password, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err == nil {
			return string(password)
		}
	}
	reader := bufio.NewReader(os.Stdin)
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
