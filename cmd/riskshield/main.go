package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Korkidis/ai-risk-shield-sub000/internal/app"
	"github.com/Korkidis/ai-risk-shield-sub000/internal/config"
	"github.com/Korkidis/ai-risk-shield-sub000/internal/shield"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return cfg, nil
}

// newApp reads the config and creates an App. The caller must defer a.Close().
// pipeline marks commands that process scans.
func newApp(ctx context.Context, operation string, pipeline bool) (*app.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	a, err := app.NewApp(ctx, cfg, app.NewOperation(operation, pipeline, time.Now()))
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

var rootCmd = &cobra.Command{
	Use:          "riskshield",
	Short:        "Forensic risk scanning for AI-generated media",
	SilenceUsage: true,
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults["base_dir"])
		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		fmt.Printf("Set %s before processing scans.\n", cfg.Vision.APIKeyEnv)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}
		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Base Dir:    %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:     %s\n", cfg.LogDir)
		fmt.Printf("Database:    %s\n", cfg.Database.Type)
		fmt.Printf("Storage:     %s\n", cfg.Storage.Type)
		fmt.Printf("Vision:      %s (%s)\n", cfg.Vision.Type, cfg.Vision.Model)
		fmt.Printf("Provenance:  %s\n", cfg.Provenance.Type)
		fmt.Printf("Frames:      %s x%d\n", cfg.Frames.Type, cfg.Pipeline.FrameCount)
		fmt.Printf("Listen Addr: %s\n", cfg.Server.Addr)
		return nil
	},
}

// db command
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the scan database",
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := app.Migrate(cfg); err != nil {
			return err
		}
		fmt.Println("Database is up to date.")
		return nil
	},
}

// asset command
var assetCmd = &cobra.Command{
	Use:   "asset",
	Short: "Manage assets",
}

var assetAddCmd = &cobra.Command{
	Use:   "add PATH",
	Short: "Upload an image or video",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "RegisterAsset", false)
		if err != nil {
			return err
		}
		defer a.Close()

		asset, err := a.RegisterAsset(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("registering asset: %w", err)
		}
		fmt.Printf("Asset %s (%s, %s, %d bytes)\n", asset.ID, asset.Kind, asset.MIMEType, asset.Size)
		return nil
	},
}

// guideline command
var guidelineCmd = &cobra.Command{
	Use:   "guideline",
	Short: "Manage brand guidelines",
}

var guidelineAddCmd = &cobra.Command{
	Use:   "add NAME",
	Short: "Record a brand guideline",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		prohibited, _ := cmd.Flags().GetStringSlice("prohibited")
		required, _ := cmd.Flags().GetStringSlice("required")
		brandContext, _ := cmd.Flags().GetString("context")

		a, err := newApp(cmd.Context(), "AddGuideline", false)
		if err != nil {
			return err
		}
		defer a.Close()

		g, err := a.AddGuideline(args[0], prohibited, required, brandContext)
		if err != nil {
			return err
		}
		fmt.Printf("Guideline %s (%s)\n", g.ID, g.Name)
		return nil
	},
}

// scan command
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Create, run and inspect scans",
}

var scanCreateCmd = &cobra.Command{
	Use:   "create ASSET_ID",
	Short: "Create a pending scan",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		guidelineID, _ := cmd.Flags().GetString("guideline")

		a, err := newApp(cmd.Context(), "CreateScan", false)
		if err != nil {
			return err
		}
		defer a.Close()

		scan, err := a.CreateScan(args[0], guidelineID)
		if err != nil {
			return err
		}
		fmt.Printf("Scan %s (%s)\n", scan.ID, scan.Status)
		return nil
	},
}

var scanProcessCmd = &cobra.Command{
	Use:   "process SCAN_ID",
	Short: "Run a scan to completion",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "ProcessScan", true)
		if err != nil {
			return err
		}
		defer a.Close()

		report, err := a.ProcessScan(cmd.Context(), args[0], progressPrinter())
		if err != nil {
			return err
		}
		return printReport(cmd, report)
	},
}

var scanRunCmd = &cobra.Command{
	Use:   "run PATH",
	Short: "Upload an asset and scan it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		guidelineID, _ := cmd.Flags().GetString("guideline")

		a, err := newApp(cmd.Context(), "RunScan", true)
		if err != nil {
			return err
		}
		defer a.Close()

		asset, err := a.RegisterAsset(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("registering asset: %w", err)
		}
		scan, err := a.CreateScan(asset.ID, guidelineID)
		if err != nil {
			return err
		}
		report, err := a.ProcessScan(cmd.Context(), scan.ID, progressPrinter())
		if err != nil {
			return err
		}
		return printReport(cmd, report)
	},
}

var scanShowCmd = &cobra.Command{
	Use:   "show SCAN_ID",
	Short: "View a scan report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "ShowScan", false)
		if err != nil {
			return err
		}
		defer a.Close()

		report, err := a.Report(args[0])
		if err != nil {
			return err
		}
		return printReport(cmd, report)
	},
}

var scanListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent scans",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp(cmd.Context(), "ListScans", false)
		if err != nil {
			return err
		}
		defer a.Close()

		scans, err := a.ListScans(limit)
		if err != nil {
			return err
		}
		if len(scans) == 0 {
			fmt.Println("No scans recorded.")
			return nil
		}

		for _, s := range scans {
			score := "  -"
			if s.CompositeScore != nil {
				score = fmt.Sprintf("%3d", *s.CompositeScore)
			}
			fmt.Printf("%s  %s  %-10s  %s  %s\n",
				s.ID,
				s.CreatedAt.Format("2006-01-02 15:04:05"),
				s.Status,
				score,
				s.RiskLevel,
			)
		}
		return nil
	},
}

// serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, "Serve", true)
		if err != nil {
			return err
		}
		defer a.Close()

		return a.Serve(ctx)
	},
}

// progressPrinter redraws a single status line on a terminal and prints one
// line per event otherwise.
func progressPrinter() app.ProgressFunc {
	if !term.IsTerminal(int(os.Stderr.Fd())) {
		return func(scanID string, percent int, message string) {
			fmt.Fprintf(os.Stderr, "%3d%% %s\n", percent, message)
		}
	}
	return func(scanID string, percent int, message string) {
		fmt.Fprintf(os.Stderr, "\r\033[K%3d%% %s", percent, message)
		if percent >= 100 {
			fmt.Fprintln(os.Stderr)
		}
	}
}

func printReport(cmd *cobra.Command, r *shield.ScanReport) error {
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		data, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	fmt.Printf("Scan:       %s\n", r.ID)
	fmt.Printf("Status:     %s\n", r.Status)
	if r.ErrorMessage != "" {
		fmt.Printf("Error:      %s\n", r.ErrorMessage)
	}
	if r.CompositeScore == nil {
		return nil
	}
	fmt.Printf("Verdict:    %s (%s, %d/100)\n", r.Verdict, r.RiskLevel, *r.CompositeScore)
	fmt.Printf("IP:         %d\n", deref(r.IPRiskScore))
	fmt.Printf("Safety:     %d\n", deref(r.SafetyRiskScore))
	fmt.Printf("Provenance: %d (%s)\n", deref(r.ProvenanceRiskScore), r.ProvenanceStatus)
	if r.IsVideo {
		fmt.Printf("Frames:     %d\n", r.FramesAnalyzed)
	}
	if len(r.Findings) == 0 {
		return nil
	}

	fmt.Println()
	for _, f := range r.Findings {
		fmt.Printf("[%s] %s\n", strings.ToUpper(string(f.Severity)), f.Title)
		if f.Description != "" {
			fmt.Printf("    %s\n", f.Description)
		}
		if f.Recommendation != "" {
			fmt.Printf("    -> %s\n", f.Recommendation)
		}
	}
	return nil
}

func deref(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

func init() {
	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	dbCmd.AddCommand(dbMigrateCmd)
	assetCmd.AddCommand(assetAddCmd)

	guidelineCmd.AddCommand(guidelineAddCmd)
	guidelineAddCmd.Flags().StringSlice("prohibited", nil, "Prohibited keywords (comma separated)")
	guidelineAddCmd.Flags().StringSlice("required", nil, "Required brand elements (comma separated)")
	guidelineAddCmd.Flags().String("context", "", "Brand context passed to the analyzers")

	// scan subcommands
	scanCmd.AddCommand(scanCreateCmd, scanProcessCmd, scanRunCmd, scanShowCmd, scanListCmd)
	scanCreateCmd.Flags().StringP("guideline", "g", "", "Brand guideline ID")
	scanRunCmd.Flags().StringP("guideline", "g", "", "Brand guideline ID")
	for _, c := range []*cobra.Command{scanProcessCmd, scanRunCmd, scanShowCmd} {
		c.Flags().Bool("json", false, "Print the report as JSON")
	}
	scanListCmd.Flags().IntP("limit", "n", 50, "Maximum number of scans to show")

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(dbCmd)
	rootCmd.AddCommand(assetCmd)
	rootCmd.AddCommand(guidelineCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(serveCmd)
}
