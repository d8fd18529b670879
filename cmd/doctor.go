package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/qabot/internal/channels/slack"
	"github.com/nextlevelbuilder/qabot/internal/config"
	"github.com/nextlevelbuilder/qabot/internal/knowledge"
)

func doctorCmd() *cobra.Command {
	var showConfig bool
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration, knowledge base, Slack credentials and dedup store",
		Run: func(cmd *cobra.Command, args []string) {
			runDoctor(showConfig)
		},
	}
	cmd.Flags().BoolVar(&showConfig, "show-config", false, "print the effective config with secrets masked")
	return cmd
}

func runDoctor(showConfig bool) {
	fmt.Println("qabot doctor")
	fmt.Printf("  Version:  %s\n", Version)
	fmt.Printf("  OS:       %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Printf("  Go:       %s\n", runtime.Version())
	fmt.Println()

	// Config
	cfgPath := resolveConfigPath()
	fmt.Printf("  Config:   %s", cfgPath)
	if _, err := os.Stat(cfgPath); err != nil {
		fmt.Println(" (NOT FOUND, using defaults + env)")
	} else {
		fmt.Println(" (OK)")
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("  Config load error: %s\n", err)
		return
	}
	var cfgErr *config.ConfigurationError
	if err := cfg.Validate(); errors.As(err, &cfgErr) {
		fmt.Println("  Validation: FAILED")
		for _, m := range cfgErr.Missing {
			fmt.Printf("    - %s\n", m)
		}
	} else {
		fmt.Println("  Validation: OK")
	}
	if showConfig {
		data, _ := json.MarshalIndent(cfg.MaskedCopy(), "    ", "  ")
		fmt.Printf("    %s\n", data)
	}

	// Knowledge base
	fmt.Println()
	fmt.Println("  Knowledge base:")
	if kb, err := knowledge.Load(cfg.Knowledge.Path); err != nil {
		fmt.Printf("    %-12s %s (FAILED: %s)\n", "Path:", cfg.Knowledge.Path, err)
	} else {
		fmt.Printf("    %-12s %s (%d entries, %d duplicates)\n", "Path:", cfg.Knowledge.Path, kb.Len(), len(kb.Duplicates()))
	}

	// Provider
	fmt.Println()
	fmt.Println("  Provider:")
	if cfg.Provider.Disabled() {
		fmt.Printf("    %-12s disabled (knowledge base only)\n", "LLM:")
	} else {
		p := buildProvider(cfg.Provider, 0)
		fmt.Printf("    %-12s %s (%s)\n", "Endpoint:", p.APIBase(), p.DefaultModel())
		checkProvider(cfg.Provider.Name, cfg.Provider.APIKey)
	}

	// Slack
	fmt.Println()
	fmt.Println("  Slack:")
	fmt.Printf("    %-12s %s\n", "Mode:", cfg.Slack.ConnectionMode)
	fmt.Printf("    %-12s %s\n", "Channels:", strings.Join(cfg.MonitoredChannels(), ", "))
	if cfg.Slack.BotToken == "" {
		fmt.Printf("    %-12s (bot token not configured)\n", "Auth:")
	} else {
		client := slack.NewClient(nil, cfg.Slack.APIBase, cfg.Slack.BotToken, cfg.Slack.AppToken)
		ctx, cancel := context.WithTimeout(context.Background(), authTestTimeout)
		info, err := client.AuthTest(ctx)
		cancel()
		if err != nil {
			fmt.Printf("    %-12s FAILED (%s)\n", "Auth:", err)
		} else {
			fmt.Printf("    %-12s OK (user %s, team %s)\n", "Auth:", info.UserID, info.Team)
		}
	}

	// Dedup store
	fmt.Println()
	fmt.Println("  Dedup store:")
	if store, err := openDedupStore(cfg.Dedup); err != nil {
		fmt.Printf("    %-12s %s (FAILED: %s)\n", "Backend:", cfg.Dedup.Backend, err)
	} else {
		store.Close()
		fmt.Printf("    %-12s %s (OK)\n", "Backend:", cfg.Dedup.Backend)
	}

	fmt.Println()
	fmt.Println("Doctor check complete.")
}

func checkProvider(name, apiKey string) {
	switch {
	case apiKey == "":
		fmt.Printf("    %-12s (not configured)\n", name+":")
	case len(apiKey) <= 8:
		fmt.Printf("    %-12s %s\n", name+":", strings.Repeat("*", len(apiKey)))
	default:
		maskedKey := apiKey[:4] + strings.Repeat("*", len(apiKey)-8) + apiKey[len(apiKey)-4:]
		fmt.Printf("    %-12s %s\n", name+":", maskedKey)
	}
}
