// Command tcptransfer-log views and analyzes tcptransfer protocol traces.
//
// Trace files are written by tcptransfer when it runs with -protocol-log.
//
// Usage:
//
//	tcptransfer-log <command> [flags] <file.tlog>
//
// Commands:
//
//	view     View a trace in human-readable format
//	export   Export a trace to JSONL or CSV
//	filter   Filter a trace and write the matches to a new file
//	stats    Show per-transfer statistics
//
// Examples:
//
//	# View all events
//	tcptransfer-log view sender.tlog
//
//	# View only TLS events
//	tcptransfer-log view -layer tls sender.tlog
//
//	# Export to CSV
//	tcptransfer-log export -format csv -o trace.csv sender.tlog
//
//	# Keep one transfer's errors
//	tcptransfer-log filter -transfer-id 6f1c2a9e -category error -o errors.tlog sender.tlog
//
//	# Show statistics
//	tcptransfer-log stats sender.tlog
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/tcptransfer/tcptransfer-go/cmd/tcptransfer-log/commands"
)

const usage = `tcptransfer-log - tcptransfer trace analyzer

Usage:
  tcptransfer-log <command> [flags] <file.tlog>

Commands:
  view     View a trace in human-readable format
  export   Export a trace to JSONL or CSV
  filter   Filter a trace and write the matches to a new file
  stats    Show per-transfer statistics

Use "tcptransfer-log <command> -help" for more information about a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "view":
		runView(args)
	case "export":
		runExport(args)
	case "filter":
		runFilter(args)
	case "stats":
		runStats(args)
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
}

// fail prints err and exits.
func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func requirePath(fs *flag.FlagSet) string {
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: log file path required")
		fs.Usage()
		os.Exit(1)
	}
	return fs.Arg(0)
}

func runView(args []string) {
	fs := flag.NewFlagSet("view", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `tcptransfer-log view - View a trace in human-readable format

Usage:
  tcptransfer-log view [flags] <file.tlog>

Flags:
`)
		fs.PrintDefaults()
	}

	layer := fs.String("layer", "", "Filter by layer (transport, tls, transfer)")
	direction := fs.String("direction", "", "Filter by direction (in, out, none)")
	category := fs.String("category", "", "Filter by category (frame, state, handshake, progress, error)")
	role := fs.String("role", "", "Filter by role (sender, receiver)")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	path := requirePath(fs)

	var filter commands.ViewFilter

	if *layer != "" {
		l, err := commands.ParseLayerFlag(*layer)
		if err != nil {
			fail(err)
		}
		filter.Layer = &l
	}
	if *direction != "" {
		d, err := commands.ParseDirectionFlag(*direction)
		if err != nil {
			fail(err)
		}
		filter.Direction = &d
	}
	if *category != "" {
		c, err := commands.ParseCategoryFlag(*category)
		if err != nil {
			fail(err)
		}
		filter.Category = &c
	}
	if *role != "" {
		r, err := commands.ParseRoleFlag(*role)
		if err != nil {
			fail(err)
		}
		filter.Role = &r
	}

	if err := commands.RunView(path, filter, os.Stdout); err != nil {
		fail(err)
	}
}

func runExport(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `tcptransfer-log export - Export a trace to JSONL or CSV

Usage:
  tcptransfer-log export [flags] <file.tlog>

Flags:
`)
		fs.PrintDefaults()
	}

	format := fs.String("format", "jsonl", "Output format (jsonl, csv)")
	output := fs.String("o", "", "Output file (default: stdout)")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	path := requirePath(fs)

	if err := commands.RunExport(path, *format, *output); err != nil {
		fail(err)
	}
}

func runFilter(args []string) {
	fs := flag.NewFlagSet("filter", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `tcptransfer-log filter - Filter a trace and write the matches to a new file

Usage:
  tcptransfer-log filter [flags] <file.tlog>

Flags:
`)
		fs.PrintDefaults()
	}

	output := fs.String("o", "", "Output file (required)")
	transferID := fs.String("transfer-id", "", "Filter by transfer ID (a prefix is enough)")
	role := fs.String("role", "", "Filter by role (sender, receiver)")
	timeStart := fs.String("time-start", "", "Filter by start time (RFC3339)")
	timeEnd := fs.String("time-end", "", "Filter by end time (RFC3339)")
	layer := fs.String("layer", "", "Filter by layer (transport, tls, transfer)")
	direction := fs.String("direction", "", "Filter by direction (in, out, none)")
	category := fs.String("category", "", "Filter by category (frame, state, handshake, progress, error)")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	path := requirePath(fs)

	if *output == "" {
		fmt.Fprintln(os.Stderr, "Error: output file (-o) required")
		fs.Usage()
		os.Exit(1)
	}

	opts := commands.FilterOptions{
		Output:     *output,
		TransferID: *transferID,
		Role:       *role,
		TimeStart:  *timeStart,
		TimeEnd:    *timeEnd,
		Layer:      *layer,
		Direction:  *direction,
		Category:   *category,
	}

	if err := commands.RunFilter(path, opts, os.Stdout); err != nil {
		fail(err)
	}
}

func runStats(args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `tcptransfer-log stats - Show per-transfer statistics

Usage:
  tcptransfer-log stats <file.tlog>

`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	path := requirePath(fs)

	if err := commands.RunStats(path, os.Stdout); err != nil {
		fail(err)
	}
}
