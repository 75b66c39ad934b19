// NekoAI is a conversational Discord agent backed by an
// OpenAI-compatible completion API.
//
// It keeps a bounded per-user conversation memory, lets the model
// invoke guild administration tools mid-turn, and falls back to a
// plain single-shot completion when the primary path fails.
// Configuration is loaded from a single YAML file discovered
// automatically (see [config.DefaultSearchPaths]).
//
// Usage:
//
//	nekoai                  Run the bot
//	nekoai -config <path>   Run with an explicit config file
//	nekoai -version         Print version and build information
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/midorin-Linux/NekoAI/internal/agent"
	"github.com/midorin-Linux/NekoAI/internal/buildinfo"
	"github.com/midorin-Linux/NekoAI/internal/config"
	"github.com/midorin-Linux/NekoAI/internal/discord"
	"github.com/midorin-Linux/NekoAI/internal/events"
	"github.com/midorin-Linux/NekoAI/internal/fetch"
	"github.com/midorin-Linux/NekoAI/internal/openai"
	"github.com/midorin-Linux/NekoAI/internal/prompts"
	"github.com/midorin-Linux/NekoAI/internal/tools"
)

// main constructs the OS-level environment and delegates to run, which
// keeps os.Exit and os.Args out of the application logic.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

// run is the real entry point. It returns nil on clean shutdown and a
// non-nil error for any failure. Configuration problems are fatal here,
// never handled per-turn.
func run(ctx context.Context, stdout io.Writer, args []string) error {
	fs := flag.NewFlagSet("nekoai", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to config file")
	showVersion := fs.Bool("version", false, "print version and exit")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *showVersion {
		fmt.Fprintln(stdout, buildinfo.String())
		return nil
	}

	path, err := config.FindConfig(*configPath)
	if err != nil {
		return err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("load config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config %s: %w", path, err)
	}

	level, err := config.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(stdout, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: config.ReplaceLogLevelNames,
	}))
	slog.SetDefault(logger)

	logger.Info("starting", "version", buildinfo.Version, "config", path)

	bus := events.New()

	// Observe operational events at debug level. Slow log sinks drop
	// events rather than blocking turns.
	eventCh := bus.Subscribe(64)
	defer bus.Unsubscribe(eventCh)
	go func() {
		for e := range eventCh {
			logger.Debug("event", "source", e.Source, "kind", e.Kind, "data", e.Data)
		}
	}()

	restClient := discord.NewClient(cfg.Discord.Token, logger)

	registry := tools.NewRegistry(cfg.Agent.ToolTimeout(), logger)
	tools.RegisterGuildTools(registry, restClient, cfg.Discord.GuildID)
	fetch.RegisterTool(registry, fetch.New())
	logger.Info("tool registry ready", "tools", registry.Len())

	llm := openai.NewClient(
		cfg.OpenAI.BaseURL,
		cfg.OpenAI.APIKey,
		cfg.OpenAI.Model,
		openai.Options{
			Temperature: cfg.OpenAI.Temperature,
			MaxTokens:   cfg.OpenAI.MaxTokens,
			ToolChoice:  "auto",
		},
		logger,
	)

	systemPrompt := prompts.DefaultSystemPrompt
	if cfg.PromptFile != "" {
		systemPrompt = prompts.LoadSystemPrompt(cfg.PromptFile, logger)
	}

	bot := agent.New(agent.Config{
		Client:           llm,
		Registry:         registry,
		Logger:           logger,
		Bus:              bus,
		SystemPrompt:     systemPrompt,
		ToolSystemPrompt: prompts.ToolSystemPrompt,
		MaxHistory:       cfg.Agent.MaxHistory,
		MaxToolRounds:    cfg.Agent.MaxToolRounds,
		ModelTimeout:     cfg.Agent.ModelTimeout(),
		ToolsEnabled:     cfg.Agent.ToolsEnabled,
	})

	gateway := discord.NewGateway(cfg.Discord.Token, logger)
	bridge := discord.NewBridge(discord.BridgeConfig{
		Client:        restClient,
		Gateway:       gateway,
		Runner:        bot,
		Logger:        logger,
		Bus:           bus,
		AllowedUserID: cfg.Discord.AllowedUserID,
		CommandPrefix: cfg.Discord.CommandPrefix,
	})

	go gateway.Run(ctx)
	bridge.Start(ctx)

	logger.Info("shutdown complete")
	return nil
}
