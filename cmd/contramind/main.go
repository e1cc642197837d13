// Command contramind runs the attested decision service and its operational
// tools.
package main

import (
	"fmt"
	"io"
	"os"
)

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run is the entrypoint, split out for testing.
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		return runServer(stderr)
	}
	switch args[1] {
	case "server":
		return runServer(stderr)
	case "replay":
		return runReplay(stdout, stderr)
	case "verify-cert":
		return runVerifyCert(args[2:], stdout, stderr)
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	default:
		_, _ = fmt.Fprintf(stderr, "unknown command: %s\n\n", args[1])
		printUsage(stderr)
		return 2
	}
}

func printUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "Usage: contramind <command> [arguments]")
	_, _ = fmt.Fprintln(w, "\nCommands:")
	_, _ = fmt.Fprintln(w, "  server       Run the decision service (default)")
	_, _ = fmt.Fprintln(w, "  replay       Re-evaluate the ledger under current parameters and report drift")
	_, _ = fmt.Fprintln(w, "  verify-cert  Verify a decision certificate: verify-cert <jws> [keys-url]")
	_, _ = fmt.Fprintln(w, "  help         Show this help")
}
