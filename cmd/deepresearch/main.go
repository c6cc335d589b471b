// Command deepresearch runs a multi-agent deep research session from
// the terminal.
//
// Usage:
//
//	deepresearch run "your research question" --config config.yaml
//	deepresearch validate --config config.yaml
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"github.com/kadirpekel/deepresearch/pkg/config"
	"github.com/kadirpekel/deepresearch/pkg/credentials"
	"github.com/kadirpekel/deepresearch/pkg/llms"
	"github.com/kadirpekel/deepresearch/pkg/observability"
	"github.com/kadirpekel/deepresearch/pkg/research"
)

// CLI defines the command-line interface.
type CLI struct {
	Version  VersionCmd  `cmd:"" help:"Show version information."`
	Run      RunCmd      `cmd:"" help:"Run a research session."`
	Validate ValidateCmd `cmd:"" help:"Validate configuration file."`

	Config    string `short:"c" help:"Path to config file." type:"path"`
	LogLevel  string `help:"Log level (debug, info, warn, error)." default:"info"`
	LogFile   string `help:"Log file path (empty = stderr)."`
	LogFormat string `help:"Log format (simple, verbose)." default:"simple"`
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	version := "dev"
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "(devel)" && info.Main.Version != "" {
			version = info.Main.Version
		}
	}
	fmt.Printf("deepresearch version %s\n", version)
	return nil
}

// ValidateCmd loads the config and reports whether it is usable.
type ValidateCmd struct{}

func (c *ValidateCmd) Run(cli *CLI) error {
	if cli.Config == "" {
		return fmt.Errorf("--config is required")
	}
	if _, err := config.LoadFromFile(cli.Config); err != nil {
		return err
	}
	fmt.Printf("%s is valid\n", cli.Config)
	return nil
}

// RunCmd runs one research session for a question.
type RunCmd struct {
	Question string `arg:"" help:"The research question."`

	BaseURL      string `name:"base-url" help:"Custom API base URL (OpenAI-compatible)."`
	APIKey       string `name:"api-key" help:"API key (defaults to environment variable)."`
	TokenStore   string `name:"token-store" help:"SQLite path for cached MCP tokens (default: in-memory)." placeholder:"PATH"`
	SubjectToken string `name:"subject-token" help:"Identity token exchanged for MCP access tokens." env:"MCP_SUBJECT_TOKEN"`
	MetricsPort  int    `name:"metrics-port" help:"Serve Prometheus metrics on this port (0 = disabled)."`
	Quiet        bool   `short:"q" help:"Only print the final report."`
}

func (c *RunCmd) Run(cli *CLI) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("Shutting down...")
		cancel()
	}()

	cfg, err := loadConfig(cli.Config)
	if err != nil {
		return err
	}

	apiKey := c.APIKey
	if apiKey == "" {
		apiKey = cfg.ModelAPIKey(cfg.ResearchModel)
	}
	var clientOpts []llms.OpenAIOption
	if c.BaseURL != "" {
		clientOpts = append(clientOpts, llms.WithBaseURL(c.BaseURL))
	}
	client := llms.NewOpenAIClient(apiKey, clientOpts...)

	store, closeStore, err := openTokenStore(c.TokenStore)
	if err != nil {
		return err
	}
	defer closeStore()

	manager, metrics, err := setupObservability(ctx, c.MetricsPort)
	if err != nil {
		return err
	}
	if manager != nil {
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			_ = manager.Shutdown(shutdownCtx)
		}()
	}

	registry, cleanup, err := research.BuildToolRegistry(ctx, cfg, client, store,
		research.WithSubjectToken(c.SubjectToken),
		research.WithToolsetMetrics(metrics))
	if err != nil {
		return err
	}
	defer cleanup()

	opts := []research.Option{research.WithMetrics(metrics)}
	if !c.Quiet {
		opts = append(opts, research.WithEventHandler(printEvent))
	}

	supervisor := research.New(cfg, client, registry, opts...)
	result, err := supervisor.Run(ctx, c.Question)
	if err != nil {
		return err
	}

	if result.ClarificationNeeded {
		fmt.Printf("\nClarification needed before research can start:\n\n%s\n", result.Clarification)
		return nil
	}

	fmt.Println()
	fmt.Println(result.FinalReport)
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.LoadFromFile(path)
}

func openTokenStore(path string) (credentials.Store, func(), error) {
	if path == "" {
		return credentials.NewMemoryStore(), func() {}, nil
	}
	store, err := credentials.NewSQLiteStore(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open token store: %w", err)
	}
	return store, func() { _ = store.Close() }, nil
}

// setupObservability installs otel providers and serves the Prometheus
// scrape endpoint when a port is given. Without a port the global
// providers stay noop and metrics recording is skipped.
func setupObservability(ctx context.Context, port int) (*observability.Manager, *observability.Metrics, error) {
	if port == 0 {
		return nil, nil, nil
	}

	manager, err := observability.New("deepresearch")
	if err != nil {
		return nil, nil, err
	}
	metrics, err := observability.NewMetrics()
	if err != nil {
		return nil, nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", manager.Handler())
	server := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server failed", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()
	slog.Info("serving metrics", "port", port)

	return manager, metrics, nil
}

// printEvent writes node progress to stderr so stdout stays clean for
// the final report.
func printEvent(event research.Event) {
	output := event.Output
	if len(output) > 200 {
		output = output[:200] + "..."
	}
	output = strings.ReplaceAll(output, "\n", " ")
	fmt.Fprintf(os.Stderr, "[%s] %s\n", event.Node, output)
}

func main() {
	_ = config.LoadDotEnv()

	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("deepresearch"),
		kong.Description("deepresearch - multi-agent deep research engine"),
		kong.UsageOnError(),
	)

	if _, _, _, cleanup, err := initLoggerFromCLI(cli.LogLevel, cli.LogFile, cli.LogFormat); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	} else if cleanup != nil {
		defer cleanup()
	}

	err := ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}
