package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"track17-scrapper/internal/core/config"
	"track17-scrapper/internal/core/logger"
	"track17-scrapper/internal/core/proxy"
	trackingadapter "track17-scrapper/internal/features/tracking/adapters"
	"track17-scrapper/internal/features/tracking/domain"
	"track17-scrapper/internal/features/tracking/ports"
	trackingservice "track17-scrapper/internal/features/tracking/service"

	"github.com/spf13/cobra"
)

var (
	serverURL string
	timeout   time.Duration
	verbose   bool
)

// rootCmd scrapes one tracking number and prints the result as JSON.
var rootCmd = &cobra.Command{
	Use:   "track <tracking-number>",
	Short: "Look up a shipment on 17track",
	Long: `Looks up a single tracking number and prints the courier, status and
most recent events as JSON. Without --server the lookup runs a local headless
browser configured from the same environment as the API.`,
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runTrack,
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		printJSON(os.Stdout, map[string]string{"error": err.Error()})
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().StringVarP(&serverURL, "server", "s", os.Getenv("TRACK17_SERVER"), "API server address; empty scrapes locally")
	rootCmd.Flags().DurationVarP(&timeout, "timeout", "t", 2*time.Minute, "Timeout when calling a remote server")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log progress to stderr")
}

func runTrack(cmd *cobra.Command, args []string) error {
	trackingNumber, err := domain.NewTrackingNumber(args[0])
	if err != nil {
		return err
	}

	svc, err := newService()
	if err != nil {
		return err
	}
	defer logger.Sync()

	result, err := svc.Track(cmd.Context(), trackingNumber)
	if err != nil {
		return err
	}

	return printJSON(cmd.OutOrStdout(), result)
}

// newService picks the remote API when a server is given, otherwise a local browser.
func newService() (ports.TrackingService, error) {
	level := "error"
	if verbose {
		level = "debug"
	}
	if err := logger.Init("development", level); err != nil {
		return nil, err
	}

	if serverURL != "" {
		return trackingadapter.NewRemoteTrackingService(serverURL, timeout), nil
	}

	cfg, err := config.Load(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	launcher := trackingadapter.NewRodLauncher(cfg.Browser, proxy.FromConfig(cfg.Proxy))
	return trackingservice.NewTrackingService(launcher, trackingadapter.NewSeventeenTrackParser(), cfg.Scrape), nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
