package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/aibridge/aibridge/pkg/catalog"
	"github.com/aibridge/aibridge/pkg/config"
	"github.com/aibridge/aibridge/pkg/ipc"
	"github.com/aibridge/aibridge/pkg/kvstore"
	"github.com/aibridge/aibridge/pkg/logger"
	"github.com/aibridge/aibridge/pkg/providers"
)

var version = "dev"

var (
	flagDBPath    string
	flagBridgeURL string
	flagVerbose   bool
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "aibridge",
		Short:         "Unified gateway to chat, embedding, speech and transcription backends",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			if flagVerbose {
				logger.SetLevel(logger.DEBUG)
			}
		},
	}

	cmd.PersistentFlags().StringVar(&flagDBPath, "db", defaultDBPath(), "Config database path")
	cmd.PersistentFlags().StringVar(&flagBridgeURL, "bridge", "", "Local audio runtime websocket URL (e.g. ws://localhost:8765)")
	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Enable debug logging")

	cmd.AddCommand(
		newProvidersCmd(),
		newModelsCmd(),
		newChatCmd(),
		newEmbedCmd(),
		newSpeakCmd(),
		newTranscribeCmd(),
	)
	return cmd
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "aibridge.db"
	}
	return filepath.Join(home, ".aibridge", "aibridge.db")
}

// app bundles the wired-up layers behind every subcommand.
type app struct {
	kv       kvstore.Store
	channel  *ipc.WSChannel
	configs  *config.Store
	registry *providers.Registry
	resolver *providers.Resolver
	engine   *providers.Engine
	tracker  *providers.InstallTracker
	facade   *providers.Facade
}

func newApp(ctx context.Context) (*app, error) {
	if err := os.MkdirAll(filepath.Dir(flagDBPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	kv, err := kvstore.NewSQLiteStore(flagDBPath)
	if err != nil {
		return nil, fmt.Errorf("opening config database: %w", err)
	}

	var channel *ipc.WSChannel
	if flagBridgeURL != "" {
		dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		channel, err = ipc.Dial(dialCtx, flagBridgeURL)
		cancel()
		if err != nil {
			logger.WarnCF("cli", "local runtime bridge unreachable", map[string]any{
				"url":   flagBridgeURL,
				"error": err.Error(),
			})
			channel = nil
		}
	}

	deps := catalog.Deps{HTTPClient: &http.Client{Timeout: 120 * time.Second}}
	if channel != nil {
		deps.Channel = channel
	}
	registry := catalog.DefaultRegistry(deps)

	configs := config.NewStore(kv, func(providerID string) map[string]any {
		if d, ok := registry.Get(providerID); ok {
			return d.DefaultOptions()
		}
		return nil
	})
	for _, d := range registry.List() {
		configs.Initialize(d.ID)
	}

	resolver := providers.NewResolver(registry)
	resolver.Refresh(ctx)

	a := &app{
		kv:       kv,
		channel:  channel,
		configs:  configs,
		registry: registry,
		resolver: resolver,
		engine:   providers.NewEngine(registry, configs, resolver),
		tracker:  providers.NewInstallTracker(registry, configs),
		facade:   providers.NewFacade(registry, configs),
	}
	a.engine.Start()
	a.engine.Refresh(ctx)
	return a, nil
}

func (a *app) Close() {
	a.engine.Close()
	if a.channel != nil {
		_ = a.channel.Close()
	}
	if err := a.kv.Close(); err != nil {
		logger.WarnCF("cli", "closing config database", map[string]any{"error": err.Error()})
	}
}
