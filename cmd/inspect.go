package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"aegisrt/internal/report"
)

func newInspectCmd() *cobra.Command {
	var endpoint string
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Interactive REPL for live registry/metrics queries",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(cmd, endpoint)
		},
	}
	cmd.Flags().StringVar(&endpoint, "endpoint", defaultEndpoint, "aegisrt status server endpoint")
	return cmd
}

func runInspect(cmd *cobra.Command, endpoint string) error {
	if err := checkServerRunning(endpoint); err != nil {
		return err
	}

	historyFile := filepath.Join(os.TempDir(), ".aegisrt_inspect_history")
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "aegisrt> ",
		HistoryFile:     historyFile,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("failed to create readline instance: %w", err)
	}
	defer rl.Close()

	fmt.Fprintln(cmd.OutOrStdout(), "aegisrt inspect REPL. Type 'help' for commands, 'exit' to quit.")

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			if len(line) == 0 {
				continue
			}
		} else if err == io.EOF {
			return nil
		} else if err != nil {
			return err
		}

		switch strings.TrimSpace(line) {
		case "":
			continue
		case "help":
			fmt.Fprintln(cmd.OutOrStdout(), "commands: status, snapshot, exit")
		case "status":
			if err := checkServerRunning(endpoint); err != nil {
				fmt.Fprintln(cmd.OutOrStdout(), err)
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "aegisrt is running")
			}
		case "snapshot":
			snap, err := fetchSnapshot(endpoint)
			if err != nil {
				fmt.Fprintln(cmd.OutOrStdout(), err)
				continue
			}
			fmt.Fprint(cmd.OutOrStdout(), report.FormatSnapshot(snap))
		case "exit", "quit":
			return nil
		default:
			fmt.Fprintf(cmd.OutOrStdout(), "unknown command %q, type 'help'\n", line)
		}
	}
}
