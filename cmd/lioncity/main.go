// lioncity is the Lion City loyalty server and its command line client.
//
// Usage:
//
//	lioncity serve [flags]             Run the HTTP server
//	lioncity status                    Show balance, boost and daily claims
//	lioncity balance                   Print the point balance
//	lioncity history                   List recent transactions
//	lioncity earn <amount> [reason]    Credit points (--source scan|game|manual)
//	lioncity spend <amount> [reason]   Deduct points (--key issues a redemption key)
//	lioncity scan <text>               Submit decoded QR text
//	lioncity redeem <kind> <id>        Redeem a reward or discount
//	lioncity offers                    Show the evaluated offer board
//	lioncity messages [channel]        Show status messages
//	lioncity reset                     Reset the demo state
//	lioncity seed <file>               Load state from a JSON file
//	lioncity state                     Dump the persisted state
//	lioncity advance <duration>        Move the simulated clock forward
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/MiKapsDev/Lion-City/internal/client"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cmd, args, addr := parseArgs(os.Args[1:])

	if cmd == "" || cmd == "help" || cmd == "--help" || cmd == "-h" {
		printUsage(os.Stdout)
		if cmd == "" {
			os.Exit(1)
		}
		return
	}

	if err := run(cmd, args, client.New(addr), os.Stdout); err != nil {
		if errors.Is(err, errUnknownCommand) {
			fmt.Fprintf(os.Stderr, "lioncity: unknown command %q\n\n", cmd)
			printUsage(os.Stderr)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "lioncity: %v\n", err)
		os.Exit(1)
	}
}

var errUnknownCommand = errors.New("unknown command")

func run(cmd string, args []string, c *client.Client, out io.Writer) error {
	switch cmd {
	case "version", "--version", "-v":
		fmt.Fprintf(out, "lioncity version %s\n", version)
		return nil
	case "serve":
		return cmdServe(args)
	case "status":
		return printJSON(out)(c.Status())
	case "balance":
		return cmdBalance(c, out)
	case "history":
		return printJSON(out)(c.Transactions())
	case "earn":
		return cmdEarn(c, out, args)
	case "spend":
		return cmdSpend(c, out, args)
	case "scan":
		if len(args) < 1 {
			return fmt.Errorf("usage: lioncity scan <text>")
		}
		return printJSON(out)(c.Scan(strings.Join(args, " ")))
	case "redeem":
		if len(args) < 2 {
			return fmt.Errorf("usage: lioncity redeem <reward|discount> <id>")
		}
		return printJSON(out)(c.Redeem(args[0], args[1]))
	case "offers":
		return printJSON(out)(c.Offers())
	case "messages":
		channel := ""
		if len(args) > 0 {
			channel = args[0]
		}
		return printJSON(out)(c.Messages(channel))
	case "reset":
		return printJSON(out)(c.Reset())
	case "seed":
		if len(args) < 1 {
			return fmt.Errorf("usage: lioncity seed <file>")
		}
		return printJSON(out)(c.Seed(args[0]))
	case "state":
		return printJSON(out)(c.State())
	case "advance":
		if len(args) < 1 {
			return fmt.Errorf("usage: lioncity advance <duration>")
		}
		d, err := time.ParseDuration(args[0])
		if err != nil {
			return fmt.Errorf("invalid duration: %w", err)
		}
		return printJSON(out)(c.AdvanceTime(d))
	case "health":
		ok, body := c.Health()
		if !ok {
			return fmt.Errorf("unhealthy: %s", body)
		}
		fmt.Fprintln(out, body)
		return nil
	default:
		return errUnknownCommand
	}
}

// parseArgs extracts the subcommand, its args and the --addr value.
// Flags after the subcommand are left for the subcommand to parse.
func parseArgs(raw []string) (command string, args []string, addr string) {
	addr = os.Getenv("LIONCITY_ADDR")

	var filtered []string
	for i := 0; i < len(raw); i++ {
		if raw[i] == "--addr" && i+1 < len(raw) && len(filtered) == 0 {
			addr = raw[i+1]
			i++
			continue
		}
		filtered = append(filtered, raw[i])
	}

	if len(filtered) == 0 {
		return "", nil, addr
	}
	return filtered[0], filtered[1:], addr
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, `lioncity %s

Usage:
  lioncity [--addr <url>] <command> [arguments]

Commands:
  serve [flags]              Run the HTTP server (see lioncity serve -h)
  status                     Show balance, boost and daily claims
  balance                    Print the point balance
  history                    List recent transactions
  earn <amount> [reason]     Credit points (--source scan|game|manual)
  spend <amount> [reason]    Deduct points (--key to issue a redemption key)
  scan <text>                Submit decoded QR text
  redeem <kind> <id>         Redeem a reward or discount
  offers                     Show the evaluated offer board
  messages [channel]         Show status messages (points|groups|game|scan)
  reset                      Reset the demo state
  seed <file>                Load state from a JSON file
  state                      Dump the persisted state
  advance <duration>         Move the simulated clock forward (e.g. 24h)
  health                     Check the server is up
  version                    Print the lioncity version

Options:
  --addr <url>      Server address (default: %s)

Environment:
  LIONCITY_ADDR     Server address for client commands
  LIONCITY_CONFIG   Config file for serve (default: ~/.lioncity/config.yaml)
`, version, client.DefaultBaseURL)
}

// ---------------------------------------------------------------------------
// lioncity balance
// ---------------------------------------------------------------------------

func cmdBalance(c *client.Client, out io.Writer) error {
	n, err := c.Balance()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%d points\n", n)
	return nil
}

// ---------------------------------------------------------------------------
// lioncity earn / spend
// ---------------------------------------------------------------------------

func cmdEarn(c *client.Client, out io.Writer, args []string) error {
	fs := flag.NewFlagSet("earn", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	source := fs.String("source", "manual", "earn source: scan, game or manual")
	amount, reason, err := parseAmount(fs, args, "usage: lioncity earn [--source s] <amount> [reason]")
	if err != nil {
		return err
	}
	return printJSON(out)(c.Earn(amount, *source, reason))
}

func cmdSpend(c *client.Client, out io.Writer, args []string) error {
	fs := flag.NewFlagSet("spend", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	key := fs.Bool("key", false, "issue a redemption key")
	amount, reason, err := parseAmount(fs, args, "usage: lioncity spend [--key] <amount> [reason]")
	if err != nil {
		return err
	}
	return printJSON(out)(c.Spend(amount, reason, *key))
}

func parseAmount(fs *flag.FlagSet, args []string, usage string) (int, string, error) {
	if err := fs.Parse(args); err != nil {
		return 0, "", fmt.Errorf("%s: %w", usage, err)
	}
	rest := fs.Args()
	if len(rest) < 1 {
		return 0, "", errors.New(usage)
	}
	amount, err := strconv.Atoi(rest[0])
	if err != nil {
		return 0, "", fmt.Errorf("invalid amount %q", rest[0])
	}
	return amount, strings.Join(rest[1:], " "), nil
}

// printJSON returns a sink that pretty-prints a client response. Rejections
// carry a JSON body too; it is printed before the error is returned.
func printJSON(out io.Writer) func(string, error) error {
	return func(raw string, err error) error {
		var se *client.StatusError
		if err != nil && !errors.As(err, &se) {
			return err
		}
		if raw != "" {
			if pretty, perr := prettyJSON(raw); perr == nil {
				fmt.Fprintln(out, pretty)
			} else {
				fmt.Fprintln(out, raw)
			}
		}
		return err
	}
}

// prettyJSON re-formats a JSON string with indentation.
func prettyJSON(raw string) (string, error) {
	var parsed json.RawMessage
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return "", err
	}
	indented, err := json.MarshalIndent(parsed, "", "  ")
	if err != nil {
		return "", err
	}
	return string(indented), nil
}
