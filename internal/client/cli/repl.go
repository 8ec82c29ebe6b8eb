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
	isLoggedIn() bool
	Register(ctx context.Context) error
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	ChangePassword(ctx context.Context) error
	WhoAmI(ctx context.Context) error
	UpdateAccount(ctx context.Context) error
	SetAvatar(ctx context.Context, path string) error
	SetCoverImage(ctx context.Context, path string) error
	Channel(ctx context.Context, username string) error
	History(ctx context.Context) error
}

// runREPL reads commands from scanner and dispatches them to a until EOF or
// "exit"/"quit". Command errors are printed and the loop continues.
//
//	Not logged in:
//	  - help, register, login, exit | quit
//
//	Logged in:
//	  - help, whoami, update, avatar <path>, cover <path>,
//	    channel <username>, history, passwd, logout, exit | quit
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		printlnFn(fmt.Sprintf("tube (%s)> ", statusFn()))
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		var err error
		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn("Available commands: whoami, update, avatar <path>, cover <path>, channel <username>, history, passwd, logout, exit")
			} else {
				printlnFn("Available commands: register, login, exit")
			}

		case "register":
			err = a.Register(ctx)

		case "login":
			err = a.Login(ctx)

		case "logout":
			err = a.Logout(ctx)

		case "passwd":
			err = a.ChangePassword(ctx)

		case "whoami":
			err = a.WhoAmI(ctx)

		case "update":
			err = a.UpdateAccount(ctx)

		case "avatar", "cover", "channel":
			if len(args) != 1 {
				printlnFn("Usage:", cmd, "<arg>")
				continue
			}
			switch cmd {
			case "avatar":
				err = a.SetAvatar(ctx, args[0])
			case "cover":
				err = a.SetCoverImage(ctx, args[0])
			default:
				err = a.Channel(ctx, args[0])
			}

		case "history":
			err = a.History(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}

		if err != nil {
			printlnFn("Error:", err)
		}
	}
}
