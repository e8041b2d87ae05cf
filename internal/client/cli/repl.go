package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn(ctx context.Context) bool
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	SignIn(ctx context.Context) error
	SignOut(ctx context.Context) error
	Observation(ctx context.Context) error
	Cull(ctx context.Context) error
	List(ctx context.Context) error
	Sync(ctx context.Context) error
	Status(ctx context.Context) error
	Track(ctx context.Context, args []string) error
}

// runREPL starts a simple read-eval-print loop.
//
// It reads a line from the provided scanner, parses the first token as the
// command, and dispatches to methods on 'a'. Unknown commands are reported
// back to the user. The loop exits on scanner EOF or when the user types
// "exit" or "quit".
//
// Any errors returned by command handlers are ignored here; handlers report
// their own errors. This keeps the REPL loop resilient and focused on I/O.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		printlnFn(fmt.Sprintf("fieldsync %s > ", statusFn()))
		if !scanner.Scan() {
			return
		}
		line := scanner.Text()
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd := parts[0]
		args := parts[1:]

		switch cmd {
		case "help":
			if a.isLoggedIn(ctx) {
				printlnFn("Available commands: signin, signout, (o)bservation, cull, (l)ist, sync, status, track, logout, exit")
			} else {
				printlnFn("Available commands: login, status, exit")
			}

		case "login":
			_ = a.Login(ctx)

		case "logout":
			_ = a.Logout(ctx)

		case "signin":
			_ = a.SignIn(ctx)

		case "signout":
			_ = a.SignOut(ctx)

		case "o", "observation":
			_ = a.Observation(ctx)

		case "cull":
			_ = a.Cull(ctx)

		case "l", "list":
			_ = a.List(ctx)

		case "sync":
			_ = a.Sync(ctx)

		case "status":
			_ = a.Status(ctx)

		case "track":
			_ = a.Track(ctx, args)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}
	}
}
