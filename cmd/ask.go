package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/qabot/internal/config"
	"github.com/nextlevelbuilder/qabot/internal/knowledge"
)

func askCmd() *cobra.Command {
	var kbOnly bool
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Resolve a question locally and print the reply the bot would post",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			setupLogging("text")
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return err
			}
			if kbOnly {
				cfg.Provider.Name = "none"
			}
			return runAsk(cmd.Context(), cmd.OutOrStdout(), cfg, strings.Join(args, " "))
		},
	}
	cmd.Flags().BoolVar(&kbOnly, "kb-only", false, "skip the LLM fallback")
	return cmd
}

func runAsk(ctx context.Context, w io.Writer, cfg *config.Config, question string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	kb := knowledge.LoadOrEmpty(cfg.Knowledge.Path)
	res := buildResolver(cfg, kb).Resolve(ctx, question)

	fmt.Fprintf(os.Stderr, "outcome: %s", res.Outcome)
	if res.Source != "" {
		fmt.Fprintf(os.Stderr, " (source: %s)", res.Source)
	}
	if res.Err != nil {
		fmt.Fprintf(os.Stderr, " error: %s", res.Err)
	}
	fmt.Fprintln(os.Stderr)

	_, err := fmt.Fprintln(w, buildFormatter(cfg).Format(res))
	return err
}
