// Command dclient sends one request to a running dserver and prints its
// reply, per spec §6: "dclient <flag> [args…] ... Each client invocation
// sends one request." The optional -i flag starts an interactive,
// liner-backed REPL (§12) for issuing many requests from one session;
// each line is still sent as its own request over a freshly dialed
// transport.
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/dindex/internal/command"
	"github.com/calvinalkan/dindex/internal/config"
)

func main() {
	os.Exit(Run(os.Stdout, os.Stderr, os.Args, os.Environ()))
}

// Run is dclient's entry point, factored out from main for testability
// (matches the teacher's cli.Run(..., args, env) shape).
func Run(out, errOut io.Writer, args []string, env []string) int {
	globalFlags := flag.NewFlagSet("dclient", flag.ContinueOnError)
	globalFlags.SetInterspersed(false)
	globalFlags.ParseErrorsWhitelist.UnknownFlags = true
	globalFlags.Usage = func() {}
	globalFlags.SetOutput(io.Discard)

	flagCwd := globalFlags.StringP("cwd", "C", "", "Run as if started in `dir`")
	flagFIFODir := globalFlags.String("fifo-dir", "", "Override the FIFO `directory`")
	flagInteractive := globalFlags.BoolP("interactive", "i", false, "Start an interactive request REPL")
	flagHelp := globalFlags.BoolP("help", "h", false, "Show help")

	// The first opcode flag (-a, -c, ...) and everything after it form
	// the request; only the arguments before it are parsed as global flags.
	globalArgs, tokens := args[1:], []string(nil)

	for i, a := range args[1:] {
		if _, ok := command.LookupFlag(a); ok {
			globalArgs, tokens = args[1:i+1], args[i+1:]
			break
		}
	}

	if err := globalFlags.Parse(globalArgs); err != nil {
		fprintln(errOut, "error:", err)

		return 1
	}

	if *flagHelp {
		printUsage(out)

		return 0
	}

	workDir := *flagCwd
	if workDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			fprintln(errOut, "error:", err)
			return 1
		}

		workDir = wd
	}

	cliOverrides := config.Config{}
	if *flagFIFODir != "" {
		cliOverrides.FIFODir = *flagFIFODir
	}

	cfg, err := config.Load(workDir, cliOverrides, env, false)
	if err != nil {
		fprintln(errOut, "error:", err)

		return 1
	}

	if *flagInteractive {
		if err := runInteractive(out, errOut, cfg); err != nil {
			fprintln(errOut, "error:", err)
			return 1
		}

		return 0
	}

	if tokens == nil {
		tokens = globalFlags.Args()
	}

	if len(tokens) == 0 {
		printUsage(out)

		return 1
	}

	status, err := sendOneRequest(cfg, tokens)
	if err != nil {
		fprintln(errOut, "error:", err)
		return 1
	}

	if status != 0 {
		return status
	}

	return 0
}

func fprintln(w io.Writer, a ...any) {
	_, _ = fmt.Fprintln(w, a...)
}

const usage = `dclient - dindex client

Usage: dclient [-C dir] [--fifo-dir dir] <flag> [args…]
       dclient -i

Flags:
  -a <title> <authors> <year> <path>   Add a document
  -c <key>                             Consult a document
  -d <key>                             Delete a document
  -l <key> <keyword>                   Count matching lines
  -s <keyword> [workers]                Search all documents
  -f                                    Shut the server down

Global flags:
  -C, --cwd <dir>          Run as if started in <dir>
  --fifo-dir <dir>         Override the FIFO directory
  -i, --interactive        Start an interactive REPL
`

func printUsage(w io.Writer) {
	fprintln(w, strings.TrimRight(usage, "\n"))
}
