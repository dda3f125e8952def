package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/foresight-intel/foresight/internal/agent/audit"
	"github.com/foresight-intel/foresight/internal/agent/report"
	"github.com/foresight-intel/foresight/internal/agent/session"
	"github.com/foresight-intel/foresight/internal/config"
	"github.com/foresight-intel/foresight/internal/models"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <company>",
	Short: "Run a competitive analysis for one company",
	Long: `Run a full analysis session for a company: the model gathers evidence
through the patent, job, news, and repository tools, metrics are computed
over the fetched records, and the final report is validated and rendered.

Examples:
  # Analyze with the default provider (requires GEMINI_API_KEY)
  foresight analyze "Acme Robotics"

  # Use Claude instead
  foresight analyze --provider anthropic "Acme Robotics"

  # Offline demo run against fixtures and a scripted conversation
  foresight analyze --scenario demo/scenario.yaml --fixtures demo/fixtures.yaml "Acme Robotics"
`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

var (
	analyzeProvider      string
	analyzeModel         string
	analyzeScenario      string
	analyzeFixtures      string
	analyzeMaxIterations int
	analyzeOutput        string
)

func init() {
	analyzeCmd.Flags().StringVar(&analyzeProvider, "provider", "",
		"Model backend: gemini, anthropic, or mock (overrides config)")
	analyzeCmd.Flags().StringVar(&analyzeModel, "model", "",
		"Model identifier (overrides the backend default)")
	analyzeCmd.Flags().StringVar(&analyzeScenario, "scenario", "",
		"Scripted conversation YAML; implies --provider mock")
	analyzeCmd.Flags().StringVar(&analyzeFixtures, "fixtures", "",
		"Static dataset YAML used instead of cloud sources")
	analyzeCmd.Flags().IntVar(&analyzeMaxIterations, "max-iterations", 0,
		"Iteration budget for the session (overrides config)")
	analyzeCmd.Flags().StringVar(&analyzeOutput, "output", "pretty",
		"Output format: pretty, markdown, or json")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, err := config.ReadFile(configPath)
	if err != nil {
		return err
	}
	applyAnalyzeOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := setupLogging(effectiveLogLevel(cfg.LogLevel))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nShutting down...")
		cancel()
	}()

	company := args[0]
	if cfg.Sources.WatchlistPath != "" {
		wl, err := config.LoadWatchlist(cfg.Sources.WatchlistPath)
		if err != nil {
			return err
		}
		company = wl.Resolver().Resolve(company)
	}

	adapters, cleanup, err := buildAdapters(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	p, err := buildProvider(ctx, cfg, logger)
	if err != nil {
		return err
	}

	sessionID := uuid.NewString()
	opts := []session.Option{session.WithID(sessionID), session.WithLogger(logger)}
	if cfg.Audit.Dir != "" {
		if err := os.MkdirAll(cfg.Audit.Dir, 0o750); err != nil {
			return fmt.Errorf("creating audit dir: %w", err)
		}
		auditLogger, err := audit.NewLogger(filepath.Join(cfg.Audit.Dir, sessionID+".jsonl"), sessionID)
		if err != nil {
			return fmt.Errorf("opening audit log: %w", err)
		}
		defer auditLogger.Close()
		opts = append(opts, session.WithAudit(auditLogger))
	}

	sess := session.New(p, newRegistry(adapters, logger), sessionConfig(cfg), opts...)
	outcome, err := sess.Run(ctx, company)
	if err != nil {
		return err
	}
	return printOutcome(outcome)
}

func applyAnalyzeOverrides(cfg *config.Config) {
	if analyzeScenario != "" {
		cfg.Provider.Name = "mock"
		cfg.Provider.ScenarioPath = analyzeScenario
	}
	if analyzeProvider != "" {
		cfg.Provider.Name = analyzeProvider
	}
	if analyzeModel != "" {
		cfg.Provider.Model = analyzeModel
	}
	if analyzeFixtures != "" {
		cfg.Sources.FixturesPath = analyzeFixtures
	}
	if analyzeMaxIterations > 0 {
		cfg.Session.MaxIterations = analyzeMaxIterations
	}
}

var (
	statusOkStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	statusWarnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B"))
	statusErrStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
	footerStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
)

func printOutcome(outcome *session.Outcome) error {
	markdown := report.RenderMarkdown(outcome.Report)

	switch analyzeOutput {
	case "json":
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(outcome.Report)

	case "markdown":
		fmt.Println(markdown)
		return nil

	case "pretty":
		renderer, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(100),
		)
		if err == nil {
			if rendered, rerr := renderer.Render(markdown); rerr == nil {
				fmt.Print(rendered)
				printFooter(outcome)
				return nil
			}
		}
		// Fall back to plain markdown when the terminal renderer fails.
		fmt.Println(markdown)
		printFooter(outcome)
		return nil
	}
	return fmt.Errorf("unknown output format: %s", analyzeOutput)
}

func printFooter(outcome *session.Outcome) {
	var parts []string
	for _, sr := range outcome.Sources {
		label := fmt.Sprintf("%s: %s", sr.Kind, sr.Status)
		switch sr.Status {
		case models.StatusOk:
			label = statusOkStyle.Render(label)
		case models.StatusEmpty:
			label = statusWarnStyle.Render(label)
		default:
			label = statusErrStyle.Render(label)
		}
		parts = append(parts, label)
	}
	line := fmt.Sprintf("session %s | %d iterations | %d in / %d out tokens",
		outcome.SessionID, outcome.Iterations, outcome.InputTokens, outcome.OutputTokens)

	fmt.Println()
	for i, part := range parts {
		if i > 0 {
			fmt.Print("  ")
		}
		fmt.Print(part)
	}
	if len(parts) > 0 {
		fmt.Println()
	}
	fmt.Println(footerStyle.Render(line))
}
