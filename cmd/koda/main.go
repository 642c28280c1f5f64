package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"koda/internal/checkpoint"
	"koda/internal/client"
	"koda/internal/config"
	"koda/internal/gate"
	"koda/internal/logging"
	"koda/internal/orchestrator"
	"koda/internal/subagent"
	"koda/internal/ui"
	"koda/internal/watcher"
)

var (
	version   = "0.1.0"
	workDir   string
	modelName string
	backend   string
	startMode string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "koda",
		Short: "Interactive coding assistant",
		Long: `Koda is an interactive coding assistant that plans and applies code
changes through a mode-gated agent loop: read-only planning, approval-gated
execution, checkpointed workspace mutations with rewind, and concurrent
subagents for exploration and validation.`,
		RunE:          run,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&workDir, "workdir", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().StringVar(&modelName, "model", "", "model to use")
	rootCmd.PersistentFlags().StringVar(&backend, "backend", "", "provider backend (gemini or ollama)")
	rootCmd.PersistentFlags().StringVar(&startMode, "mode", "", "starting mode (plan, act or bash)")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("koda version %s\n", version)
		},
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if modelName != "" {
		cfg.Model.Name = modelName
	}
	if backend != "" {
		cfg.API.Backend = backend
	}
	if startMode != "" {
		cfg.Session.StartMode = startMode
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if cfg.Logging.Enabled {
		configDir, err := config.ConfigDir()
		if err == nil {
			if err := logging.EnableFileLogging(configDir, logging.Level(cfg.Logging.Level)); err != nil {
				fmt.Fprintln(os.Stderr, "warning: file logging disabled:", err)
			}
		}
		defer logging.Close()
	}

	absWorkDir, err := filepath.Abs(workDir)
	if err != nil {
		return err
	}

	ctx := context.Background()
	provider, err := client.New(ctx, cfg)
	if err != nil {
		return err
	}

	coordinator := subagent.NewCoordinator(absWorkDir, subagentFactory(cfg),
		cfg.Subagent.MaxParallel, cfg.Subagent.JobTimeout)

	tracker, err := watcher.New(absWorkDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "warning: external change tracking disabled:", err)
		tracker = nil
	} else if err := tracker.Start(); err != nil {
		fmt.Fprintln(os.Stderr, "warning: external change tracking disabled:", err)
		tracker = nil
	}

	reader := bufio.NewReader(os.Stdin)
	render := ui.NewRenderer()

	session, err := orchestrator.New(cfg, provider, orchestrator.Options{
		WorkDir:     absWorkDir,
		Out:         os.Stdout,
		Approval:    approvalPrompt(reader, render, absWorkDir),
		Coordinator: coordinator,
		Tracker:     tracker,
	})
	if err != nil {
		provider.Close()
		return err
	}
	defer session.Close()

	return repl(session, reader, render)
}

// subagentFactory builds per-job providers, preferring the cheaper
// subagent model when one is configured.
func subagentFactory(cfg *config.Config) subagent.ProviderFactory {
	return func(ctx context.Context) (client.Provider, error) {
		jobCfg := *cfg
		if cfg.Model.SubagentName != "" {
			jobCfg.Model.Name = cfg.Model.SubagentName
		}
		return client.New(ctx, &jobCfg)
	}
}

// repl is the interactive loop. Ctrl-C cancels the turn in flight,
// not the session.
func repl(session *orchestrator.Session, reader *bufio.Reader, render *ui.Renderer) error {
	fmt.Println(render.Banner(session.Model(), session.Mode()))

	for {
		fmt.Print(render.Prompt(session.Mode()))

		line, err := reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				fmt.Println()
				return nil
			}
			return err
		}

		turnCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		quit, err := session.Execute(turnCtx, line)
		stop()

		if err != nil {
			if errors.Is(err, checkpoint.ErrCorrupt) {
				// The one unrecoverable error class.
				return err
			}
			fmt.Println(render.Error(err))
		}
		if quit {
			return nil
		}
	}
}

// approvalPrompt asks the user to allow or deny a pending write or
// execute call, with a diff preview for file changes.
func approvalPrompt(reader *bufio.Reader, render *ui.Renderer, workDir string) gate.PromptHandler {
	return func(ctx context.Context, req *gate.Request) (gate.Decision, error) {
		fmt.Println(render.ApprovalPrompt(req.Reason, buildPreview(render, workDir, req)))
		fmt.Print("approve? ")

		line, err := reader.ReadString('\n')
		if err != nil {
			return gate.DecisionDeny, err
		}

		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return gate.DecisionAllow, nil
		case "a", "all":
			return gate.DecisionAllowSession, nil
		default:
			return gate.DecisionDeny, nil
		}
	}
}

// buildPreview renders what a pending file mutation would change.
func buildPreview(render *ui.Renderer, workDir string, req *gate.Request) string {
	path, _ := req.Args["file_path"].(string)
	if path == "" {
		return ""
	}
	abs := path
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(workDir, path)
	}

	existing, err := os.ReadFile(abs)
	if err != nil {
		existing = nil
	}
	oldContent := string(existing)

	var newContent string
	switch req.ToolName {
	case "write_file":
		newContent, _ = req.Args["content"].(string)
	case "edit_file":
		oldStr, _ := req.Args["old_string"].(string)
		newStr, _ := req.Args["new_string"].(string)
		if replaceAll, _ := req.Args["replace_all"].(bool); replaceAll {
			newContent = strings.ReplaceAll(oldContent, oldStr, newStr)
		} else {
			newContent = strings.Replace(oldContent, oldStr, newStr, 1)
		}
	default:
		return ""
	}

	return render.WritePreview(path, oldContent, newContent)
}
