package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/martinemde/agenty/agentloop"
	"github.com/martinemde/agenty/internal/config"
	"github.com/martinemde/agenty/tools"
	"github.com/martinemde/agenty/unifiedllm"
)

const usage = `agenty runs a tool-calling agent over a directory.

Usage:
  agenty text   [flags] PROMPT    Answer PROMPT in free text
  agenty answer [flags] PROMPT    Answer PROMPT through the answer tool

Flags:
  -config   string  Path to YAML configuration file
  -root     string  Directory the file tools may read
  -model    string  Model name or alias
  -provider string  Provider name (openai, anthropic, or any gollm provider)
  -system   string  System prompt`

// completer is the client the commands talk to.
type completer interface {
	agentloop.Completer
	Close() error
}

type app struct {
	stdout       io.Writer
	stderr       io.Writer
	newCompleter func(cfg *config.Config, logger *slog.Logger) (completer, error)
}

// answerArgs is the target of the answer command.
type answerArgs struct {
	Answer string `json:"answer" jsonschema:"description=The final answer to the task" validate:"required"`
}

func (a *app) execute(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprintln(a.stdout, usage)
		return nil
	}

	switch args[0] {
	case "text":
		return a.run(ctx, "text", args[1:], func(ctx context.Context, agent *agentloop.Agent) (string, error) {
			return agentloop.RunUntilText(ctx, agent, nil)
		})
	case "answer":
		return a.run(ctx, "answer", args[1:], func(ctx context.Context, agent *agentloop.Agent) (string, error) {
			target := agentloop.NewCapability[answerArgs]("answer", "Report the final answer to the task.", nil)
			got, err := agentloop.RunUntilCapability(ctx, agent, target, nil)
			return got.Answer, err
		})
	case "help", "-h", "--help":
		fmt.Fprintln(a.stdout, usage)
		return nil
	default:
		return fmt.Errorf("unknown command %q\n\n%s", args[0], usage)
	}
}

func (a *app) run(ctx context.Context, name string, args []string, loop func(context.Context, *agentloop.Agent) (string, error)) error {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	fs.Usage = func() { fmt.Fprintln(a.stderr, usage) }

	var cfgPath, root, model, provider, system string
	fs.StringVar(&cfgPath, "config", "", "path to configuration file")
	fs.StringVar(&root, "root", "", "directory the file tools may read")
	fs.StringVar(&model, "model", "", "model name or alias")
	fs.StringVar(&provider, "provider", "", "provider name")
	fs.StringVar(&system, "system", "", "system prompt")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return fmt.Errorf("parse %s flags: %w", name, err)
	}

	prompt := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if prompt == "" {
		return fmt.Errorf("%s command requires a prompt", name)
	}

	path, err := config.FindConfig(cfgPath)
	if err != nil {
		return err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	for dst, v := range map[*string]string{&cfg.Root: root, &cfg.Model: model, &cfg.Provider: provider, &cfg.System: system} {
		if v != "" {
			*dst = v
		}
	}

	logger := cfg.NewLogger(a.stderr)
	ws, err := tools.NewWorkspace(cfg.Root)
	if err != nil {
		return err
	}

	client, err := a.newCompleter(cfg, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	registry := agentloop.NewRegistry(tools.All(ws)...)
	registry.SetLogger(logger)

	settings := cfg.AgentSettings()
	agentCfg := agentloop.DefaultAgentConfig()
	agentCfg.System = cfg.System
	agentCfg.Model = cfg.ResolvedModel()
	agentCfg.Provider = cfg.Provider
	agentCfg.Prefix = cfg.Prefix
	agentCfg.MaxSteps = cfg.MaxSteps
	agentCfg.Settings = &settings
	agentCfg.Logger = logger

	agent := agentloop.NewAgent(client, registry, prompt, &agentCfg)
	defer agent.Close()
	logger.Info("agent started", "command", name, "model", agentCfg.Model, "root", ws.Root())

	out, err := loop(ctx, agent)
	if err != nil {
		return err
	}
	total := agent.Usage()
	logger.Info("agent finished", "input_tokens", total.InputTokens, "output_tokens", total.OutputTokens)
	fmt.Fprintln(a.stdout, out)
	return nil
}

// newClient builds a unified client for cfg.Provider: the native SDK
// adapters for openai and anthropic, gollm for everything else.
func newClient(cfg *config.Config, logger *slog.Logger) (completer, error) {
	var adapter unifiedllm.ProviderAdapter
	switch cfg.Provider {
	case "openai":
		adapter = unifiedllm.NewOpenAIAdapter(cfg.APIKey, cfg.BaseURL)
	case "anthropic":
		adapter = unifiedllm.NewAnthropicAdapter(cfg.APIKey, cfg.BaseURL)
	default:
		g, err := unifiedllm.NewGollmAdapter(cfg.Provider, cfg.APIKey,
			unifiedllm.WithModel(cfg.ResolvedModel()),
			unifiedllm.WithMaxTokens(cfg.Settings.MaxTokens),
			unifiedllm.WithTemperature(cfg.Settings.Temperature),
		)
		if err != nil {
			return nil, err
		}
		adapter = g
	}

	return unifiedllm.NewClient(
		unifiedllm.WithProvider(cfg.Provider, adapter),
		unifiedllm.WithDefaultProvider(cfg.Provider),
		unifiedllm.WithMiddleware(logRequests(logger)),
	), nil
}

// logRequests logs every completion request at debug level, labelled with
// the agent's prefix when it set one.
func logRequests(logger *slog.Logger) unifiedllm.Middleware {
	return func(ctx context.Context, req unifiedllm.Request, next func(context.Context, unifiedllm.Request) (*unifiedllm.Response, error)) (*unifiedllm.Response, error) {
		start := time.Now()
		resp, err := next(ctx, req)
		attrs := []any{
			"provider", req.Provider,
			"model", req.Model,
			"messages", len(req.Messages),
			"tools", len(req.Tools),
			"elapsed", time.Since(start),
		}
		if prefix := req.Metadata["prefix"]; prefix != "" {
			attrs = append(attrs, "prefix", prefix)
		}
		if err != nil {
			logger.Debug("completion failed", append(attrs, "error", err)...)
			return resp, err
		}
		if resp != nil {
			attrs = append(attrs, "total_tokens", resp.Usage.TotalTokens)
		}
		logger.Debug("completion", attrs...)
		return resp, nil
	}
}
