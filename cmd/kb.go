package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/qabot/internal/config"
	"github.com/nextlevelbuilder/qabot/internal/knowledge"
)

func kbCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kb",
		Short: "Inspect the knowledge base",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "check [path]",
		Short: "Load the knowledge base and report entries and duplicate questions",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			} else {
				cfg, err := config.Load(resolveConfigPath())
				if err != nil {
					return err
				}
				path = cfg.Knowledge.Path
			}
			return runKBCheck(cmd.OutOrStdout(), path)
		},
	})
	return cmd
}

// runKBCheck fails on any load error, unlike serve which degrades to empty.
func runKBCheck(w io.Writer, path string) error {
	kb, err := knowledge.Load(path)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s: %d entries\n", path, kb.Len())

	empty := 0
	for _, e := range kb.Entries() {
		if e.Answer == "" {
			empty++
		}
	}
	if empty > 0 {
		fmt.Fprintf(w, "  %d entries with an empty answer (treated as missing)\n", empty)
	}
	if dups := kb.Duplicates(); len(dups) > 0 {
		fmt.Fprintf(w, "  %d duplicate questions (first entry wins):\n", len(dups))
		for _, q := range dups {
			fmt.Fprintf(w, "    - %s\n", q)
		}
	}
	return nil
}
