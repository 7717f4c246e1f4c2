package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/arbiterhq/arbiter/pkg/activity"
	"github.com/arbiterhq/arbiter/pkg/chat"
	"github.com/arbiterhq/arbiter/pkg/config"
	"github.com/arbiterhq/arbiter/pkg/dispatch"
	arbitermcp "github.com/arbiterhq/arbiter/pkg/mcp"
	"github.com/arbiterhq/arbiter/pkg/memory"
	"github.com/arbiterhq/arbiter/pkg/registry"
	"github.com/arbiterhq/arbiter/pkg/telemetry"
)

const version = "0.1.0"

type globalFlags struct {
	ConfigPath string
	Profile    string
	JSON       bool
	Help       bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	global, args, err := parseGlobalFlags(os.Args[1:])
	if err != nil {
		fatal(err)
	}
	if global.Help || len(args) == 0 {
		printUsage()
		return
	}

	cfg, err := config.LoadWithProfile(global.ConfigPath, global.Profile)
	if err != nil {
		fatal(err)
	}
	telemetry.ConfigureSlog(os.Stderr, cfg.Log.Level, cfg.Log.Format)

	switch args[0] {
	case "chat":
		runChat(ctx, global, cfg)
	case "dispatch":
		runDispatch(ctx, global, cfg, args[1:])
	case "log":
		runLog(ctx, global, cfg, args[1:])
	case "mcp":
		runMCP(ctx, cfg, args[1:])
	case "help":
		printUsage()
	case "version":
		fmt.Printf("arbiter %s\n", version)
	default:
		fatal(fmt.Errorf("unknown command %q", args[0]))
	}
}

func parseGlobalFlags(args []string) (globalFlags, []string, error) {
	var flags globalFlags

	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			return flags, args[i+1:], nil
		}
		if !strings.HasPrefix(arg, "-") {
			return flags, args[i:], nil
		}
		switch {
		case arg == "-h" || arg == "--help":
			flags.Help = true
			return flags, nil, nil
		case arg == "--json":
			flags.JSON = true
		case arg == "--config":
			if i+1 >= len(args) {
				return flags, nil, fmt.Errorf("missing value for --config")
			}
			flags.ConfigPath = args[i+1]
			i++
		case strings.HasPrefix(arg, "--config="):
			flags.ConfigPath = strings.TrimPrefix(arg, "--config=")
		case arg == "--profile":
			if i+1 >= len(args) {
				return flags, nil, fmt.Errorf("missing value for --profile")
			}
			flags.Profile = args[i+1]
			i++
		case strings.HasPrefix(arg, "--profile="):
			flags.Profile = strings.TrimPrefix(arg, "--profile=")
		default:
			return flags, nil, fmt.Errorf("unknown global flag %q", arg)
		}
	}
	return flags, nil, nil
}

// buildPipeline assembles the registry, activity logger, chat fallback, and
// dispatcher from configuration.
func buildPipeline(ctx context.Context, cfg *config.Config) (*dispatch.Dispatcher, func(), error) {
	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	store, closeStore, err := openStore(cfg)
	if err != nil {
		return nil, cleanup, err
	}
	cleanups = append(cleanups, closeStore)

	logger := activity.NewLogger(store, activity.WithBufferSize(cfg.Dispatch.LogBuffer))
	cleanups = append(cleanups, func() { logger.Close() })

	reg := registry.New()
	for _, server := range cfg.MCP.Servers {
		opts := []arbitermcp.ClientOption{}
		if server.Timeout > 0 {
			opts = append(opts, arbitermcp.WithTimeout(server.Timeout))
		}
		client, err := arbitermcp.NewClientWithStdio(server.Command, server.Args, opts...)
		if err != nil {
			cleanup()
			return nil, func() {}, fmt.Errorf("connect mcp server %s: %w", server.Name, err)
		}
		cleanups = append(cleanups, func() { client.Close() })
		if _, err := arbitermcp.RegisterTools(ctx, reg, client); err != nil {
			cleanup()
			return nil, func() {}, fmt.Errorf("register tools from %s: %w", server.Name, err)
		}
	}

	playbook, err := loadPlaybook(cfg)
	if err != nil {
		cleanup()
		return nil, func() {}, err
	}
	conv := memory.NewInMemoryConversation(memory.NewWindowStrategy(cfg.Chat.Window, true))
	fallback := chat.New(playbook, chat.WithHistory(conv, "cli"))

	metrics, err := telemetry.NewDispatchMetrics()
	if err != nil {
		cleanup()
		return nil, func() {}, err
	}

	dispatcher, err := dispatch.New(cfg.Dispatch.AgentName, reg, logger, fallback,
		dispatch.WithDeadline(cfg.Dispatch.Deadline),
		dispatch.WithMetrics(metrics))
	if err != nil {
		cleanup()
		return nil, func() {}, err
	}
	return dispatcher, cleanup, nil
}

func openStore(cfg *config.Config) (activity.Store, func(), error) {
	switch cfg.Storage.Driver {
	case "sqlite":
		store, err := activity.OpenSQLiteStore(cfg.Storage.Path)
		if err != nil {
			return nil, func() {}, err
		}
		return store, func() { store.Close() }, nil
	default:
		return activity.NewMemoryStore(), func() {}, nil
	}
}

func loadPlaybook(cfg *config.Config) (*chat.Playbook, error) {
	if cfg.Chat.Playbook != "" {
		return chat.LoadPlaybook(cfg.Chat.Playbook)
	}
	return chat.ParsePlaybook(nil)
}

func runChat(ctx context.Context, global globalFlags, cfg *config.Config) {
	dispatcher, cleanup, err := buildPipeline(ctx, cfg)
	if err != nil {
		fatal(err)
	}
	defer cleanup()

	shutdown, err := telemetry.InitWithConfig("arbiter", version, telemetry.Config{
		Exporter:     cfg.Telemetry.Exporter,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure: cfg.Telemetry.OTLPInsecure,
	})
	if err != nil {
		fatal(err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		shutdown(shutdownCtx)
	}()

	fmt.Println("arbiter chat: type a message, 'use tool: <name> {...}', or Ctrl-D to exit")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			fmt.Println()
			return
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		outcome := dispatcher.Dispatch(ctx, input)
		if global.JSON {
			printJSON(map[string]any{
				"result":  outcome.Result,
				"source":  string(outcome.Source),
				"elapsed": outcome.Elapsed.String(),
			})
			continue
		}
		fmt.Println(outcome.Result)

		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

func runDispatch(ctx context.Context, global globalFlags, cfg *config.Config, args []string) {
	if len(args) != 1 {
		fatal(fmt.Errorf("usage: arbiter dispatch <input>"))
	}

	dispatcher, cleanup, err := buildPipeline(ctx, cfg)
	if err != nil {
		fatal(err)
	}
	defer cleanup()

	outcome := dispatcher.Dispatch(ctx, args[0])
	if global.JSON {
		payload := map[string]any{
			"result":  outcome.Result,
			"source":  string(outcome.Source),
			"elapsed": outcome.Elapsed.String(),
		}
		if outcome.Fault != nil {
			payload["fault"] = outcome.Fault
		}
		printJSON(payload)
		return
	}
	fmt.Println(outcome.Result)
}

func runLog(ctx context.Context, global globalFlags, cfg *config.Config, args []string) {
	filter := activity.Filter{}
	limit := 20
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--type":
			if i+1 >= len(args) {
				fatal(fmt.Errorf("missing value for --type"))
			}
			filter.ActivityType = args[i+1]
			i++
		case strings.HasPrefix(arg, "--type="):
			filter.ActivityType = strings.TrimPrefix(arg, "--type=")
		case arg == "--agent":
			if i+1 >= len(args) {
				fatal(fmt.Errorf("missing value for --agent"))
			}
			filter.AgentName = args[i+1]
			i++
		case strings.HasPrefix(arg, "--agent="):
			filter.AgentName = strings.TrimPrefix(arg, "--agent=")
		case arg == "--limit":
			if i+1 >= len(args) {
				fatal(fmt.Errorf("missing value for --limit"))
			}
			value, err := strconv.Atoi(args[i+1])
			if err != nil {
				fatal(fmt.Errorf("invalid --limit: %w", err))
			}
			limit = value
			i++
		case strings.HasPrefix(arg, "--limit="):
			value, err := strconv.Atoi(strings.TrimPrefix(arg, "--limit="))
			if err != nil {
				fatal(fmt.Errorf("invalid --limit: %w", err))
			}
			limit = value
		default:
			fatal(fmt.Errorf("unknown log flag %q", arg))
		}
	}

	store, closeStore, err := openStore(cfg)
	if err != nil {
		fatal(err)
	}
	defer closeStore()

	entries, err := store.Query(ctx, filter, limit)
	if err != nil {
		fatal(err)
	}

	if global.JSON {
		printJSON(entries)
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIMESTAMP\tTYPE\tAGENT\tDETAILS")
	for _, entry := range entries {
		details, _ := json.Marshal(entry.Details)
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			entry.Timestamp.Format(time.RFC3339), entry.ActivityType, entry.AgentName, details)
	}
	w.Flush()
}

func runMCP(ctx context.Context, cfg *config.Config, args []string) {
	if len(args) == 0 || args[0] != "list" {
		fatal(fmt.Errorf("usage: arbiter mcp list"))
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SERVER\tTOOL\tDESCRIPTION")
	for _, server := range cfg.MCP.Servers {
		client, err := arbitermcp.NewClientWithStdio(server.Command, server.Args)
		if err != nil {
			fmt.Fprintf(w, "%s\t-\terror: %v\n", server.Name, err)
			continue
		}
		tools, err := client.ListTools(ctx)
		if err != nil {
			fmt.Fprintf(w, "%s\t-\terror: %v\n", server.Name, err)
			client.Close()
			continue
		}
		for _, tool := range tools {
			fmt.Fprintf(w, "%s\t%s\t%s\n", server.Name, tool.Name, tool.Description)
		}
		client.Close()
	}
	w.Flush()
}

func printJSON(v any) {
	encoded, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fatal(err)
	}
	fmt.Println(string(encoded))
}

func printUsage() {
	fmt.Print(`arbiter routes agent input to tools, capabilities, or chat

Usage:
  arbiter [global flags] <command> [args]

Commands:
  chat                 interactive dispatch session
  dispatch <input>     dispatch a single input and print the result
  log [--type T] [--agent A] [--limit N]
                       query recorded activity, newest first
  mcp list             list tools exposed by configured MCP servers
  version              print the version
  help                 show this help

Global flags:
  --config <path>      YAML config file
  --profile <name>     profile overlay (config.<name>.yaml)
  --json               machine-readable output
`)
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "arbiter: %v\n", err)
	os.Exit(1)
}
