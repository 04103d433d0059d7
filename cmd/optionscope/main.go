// optionscope — call-options chain fetch and valuation service.
//
// Main CLI entrypoint using cobra command framework.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"optionscope/api"
	"optionscope/internal/analysis/options"
	"optionscope/internal/config"
	"optionscope/internal/logging"
	"optionscope/internal/provider"
	"optionscope/internal/providers/polygon"
	"optionscope/pkg/utils"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

var (
	cfg *config.Config
	log *logrus.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "optionscope",
	Short: "optionscope — call-options chain fetch and valuation",
	Long: `optionscope fetches a ticker's call-options chain from Polygon.io,
resolves the underlying spot price, and derives per-contract valuation:
premium, intrinsic/extrinsic value, break-even, and payoff targets.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// .env is optional; env vars already set win.
		_ = godotenv.Load()

		var err error
		configFile, _ := cmd.Flags().GetString("config")
		if configFile != "" {
			cfg, err = config.LoadFromFile(configFile)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
			cfg.Logging.Level = lvl
		}
		log, err = logging.New(cfg.Logging)
		if err != nil {
			return fmt.Errorf("failed to set up logging: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(chainCmd)
	rootCmd.AddCommand(statusCmd)
}

// --- Version Command ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("optionscope %s\n", version)
		fmt.Printf("  commit:  %s\n", commit)
		fmt.Printf("  built:   %s\n", date)
	},
}

// --- Serve Command (API Server) ---

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		srv, err := api.NewServer(cfg, log)
		if err != nil {
			return err
		}
		addr := fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port)
		log.WithField("addr", addr).Info("starting API server")
		return srv.ListenAndServe(addr)
	},
}

// --- Chain Command ---

var chainCmd = &cobra.Command{
	Use:   "chain [ticker]",
	Short: "Fetch and value the call-options chain for a ticker",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ticker := utils.NormalizeTicker(args[0])
		if ticker == "" {
			return fmt.Errorf("ticker is required")
		}

		pipe, err := buildPipeline()
		if err != nil {
			return err
		}

		result, err := pipe.BuildChain(context.Background(), ticker)
		if err != nil {
			return err
		}

		asJSON, _ := cmd.Flags().GetBool("json")
		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		}

		fmt.Printf("📈 %s", result.Ticker)
		if result.UnderlyingPrice != nil {
			fmt.Printf(" — underlying %.2f", *result.UnderlyingPrice)
		} else {
			fmt.Printf(" — underlying unavailable")
		}
		fmt.Printf("\n   %d contracts across %d expirations\n\n",
			len(result.Options), len(result.Expirations))

		fmt.Printf("  %-28s %10s %10s %9s %9s %10s %10s\n",
			"CONTRACT", "STRIKE", "PREMIUM", "INTR", "EXTR", "BREAKEVEN", "TARGET2X")
		for _, o := range result.Options {
			fmt.Printf("  %-28s %10.2f %10.2f %9.2f %9.2f %10.2f %10.2f\n",
				o.Ticker, o.Strike, o.Premium, o.Intrinsic, o.Extrinsic, o.BreakEven, o.Target2x)
		}
		return nil
	},
}

func init() {
	chainCmd.Flags().Bool("json", false, "emit the full result as JSON")
}

func buildPipeline() (*options.Pipeline, error) {
	reg := provider.NewRegistry()
	p := polygon.New(polygon.Config{
		BaseURL:    cfg.Polygon.BaseURL,
		PageSize:   cfg.Chain.PageSize,
		MaxPages:   cfg.Chain.MaxPages,
		RatePerSec: cfg.Polygon.RatePerSec,
		APIKey:     cfg.Polygon.APIKey,
		Log:        log,
	})
	if err := reg.Register(p); err != nil {
		return nil, err
	}
	return &options.Pipeline{
		Registry:       reg,
		Log:            log,
		MaxExpirations: cfg.Chain.MaxExpirations,
	}, nil
}

// --- Status Command ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show system status and configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("═══════════════════════════════════════")
		fmt.Println("  optionscope — System Status")
		fmt.Println("═══════════════════════════════════════")
		fmt.Printf("  Version:     %s (%s)\n", version, commit)
		fmt.Println()

		fmt.Println("  Configuration:")
		fmt.Printf("    API Server:  %s:%d\n", cfg.API.Host, cfg.API.Port)
		fmt.Printf("    Upstream:    %s\n", cfg.Polygon.BaseURL)
		fmt.Printf("    Page Size:   %d (max %d pages)\n", cfg.Chain.PageSize, cfg.Chain.MaxPages)
		fmt.Printf("    Expirations: up to %d\n", cfg.Chain.MaxExpirations)
		fmt.Println()

		fmt.Println("  API Keys:")
		status := "❌ not set"
		if key := cfg.Polygon.APIKey(); key != "" {
			status = fmt.Sprintf("✅ set (%s: %s)", cfg.Polygon.APIKeyEnv, maskKey(key))
		}
		fmt.Printf("    %-25s %s\n", "Polygon:", status)

		fmt.Println("═══════════════════════════════════════")
		return nil
	},
}

// maskKey shows just enough of a credential to recognize it.
func maskKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
