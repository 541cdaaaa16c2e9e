package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"

	"github.com/calvinalkan/dindex/internal/config"
)

// historyFile returns the path dclient persists its REPL history to,
// following sloty's convention of a dotfile under the user's home
// directory.
func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(home, ".dclient_history")
}

// runInteractive starts a readline-style loop: each line is split into
// a command flag and its arguments and sent as one request, exactly
// like a single non-interactive invocation, reusing sendOneRequest.
func runInteractive(out, errOut io.Writer, cfg config.Config) error {
	line := liner.NewLiner()
	defer func() { _ = line.Close() }()

	line.SetCtrlCAborts(true)

	if f, err := os.Open(historyFile()); err == nil {
		_, _ = line.ReadHistory(f)
		_ = f.Close()
	}

	fmt.Fprintf(out, "dindex client (fifo_dir=%s)\n", cfg.FIFODir)     //nolint:errcheck // stdout write failure is unactionable here
	fmt.Fprintln(out, "Type a command (e.g. -c 0) or 'quit' to exit.") //nolint:errcheck // same

	for {
		input, err := line.Prompt("dclient> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				break
			}

			return fmt.Errorf("reading input: %w", err)
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		line.AppendHistory(input)

		if input == "quit" || input == "exit" {
			break
		}

		tokens := strings.Fields(input)

		status, sendErr := sendOneRequest(cfg, tokens)
		if sendErr != nil {
			fmt.Fprintln(errOut, "error:", sendErr) //nolint:errcheck // stderr write failure is unactionable here
		}

		_ = status
	}

	if f, err := os.Create(historyFile()); err == nil {
		_, _ = line.WriteHistory(f)
		_ = f.Close()
	}

	return nil
}
