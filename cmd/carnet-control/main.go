package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/google/shlex"

	"github.com/carnet-go/vehicle-command/internal/log"
	"github.com/carnet-go/vehicle-command/pkg/account"
	"github.com/carnet-go/vehicle-command/pkg/action"
	"github.com/carnet-go/vehicle-command/pkg/cli"
	"github.com/carnet-go/vehicle-command/pkg/protocol"
	"github.com/carnet-go/vehicle-command/pkg/session"
	"github.com/carnet-go/vehicle-command/pkg/vehicle"
)

func writeErr(format string, a ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
}

const usageNotes = `
 * All commands require account credentials: a saved token or a username and password.
 * Vehicle commands also require a VIN.
 * lock, unlock, and aux-heat-on require the S-PIN (-spin or $CARNET_SPIN, or a prompt).
 * Without a COMMAND, commands are read from standard input.`

func Usage() {
	out := flag.CommandLine.Output()
	fmt.Fprintf(out, "Usage: %s [OPTION...] COMMAND [ARG...]\n", os.Args[0])
	fmt.Fprintf(out, "\nRun %s help COMMAND for more information.\n", os.Args[0])
	fmt.Fprintln(out, usageNotes)
	fmt.Fprintln(out, "\nAvailable OPTIONs:")
	flag.PrintDefaults()
	fmt.Fprintln(out, "\nAvailable COMMANDs:")
	listCommands(out)
}

func listCommands(out io.Writer) {
	names := make([]string, 0, len(commands))
	width := 0
	for name := range commands {
		names = append(names, name)
		width = max(width, len(name))
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(out, "  %-*s %s\n", width, name, commands[name].help)
	}
}

// describeError turns err into a message for the user.
func describeError(err error) string {
	var (
		conflict *protocol.ConflictError
		authErr  *protocol.AuthError
		timeout  *protocol.CommandTimeoutError
	)
	switch {
	case errors.As(err, &conflict):
		return fmt.Sprintf("Another %s command is still in progress (request %s)", conflict.Kind, conflict.RequestID)
	case errors.As(err, &timeout):
		return fmt.Sprintf("The vehicle did not confirm the command in time; it may still be executed: %s", err)
	case protocol.MayHaveSucceeded(err):
		return fmt.Sprintf("Couldn't verify success: %s", err)
	case errors.Is(err, session.ErrNoSession):
		return "You must log in with -username or provide a saved token with -token-file, -token-cache, or -token-name"
	case errors.Is(err, protocol.ErrInvalidCredentials):
		return "The username or password was rejected"
	case errors.As(err, &authErr) && authErr.Kind == protocol.AuthConsentRequired:
		return "The account must accept updated terms or grant consent in the vendor's app before logging in"
	case errors.Is(err, vehicle.ErrSpinLocked):
		return "The S-PIN has too few attempts left; reset it in the vendor's app"
	case errors.Is(err, action.ErrInvalidSpin):
		return "The S-PIN must consist of 4 digits"
	case errors.Is(err, vehicle.ErrUnsupported):
		return fmt.Sprintf("The vehicle does not support this command: %s", err)
	case errors.Is(err, ErrUnknownCommand):
		return fmt.Sprintf("%s (run help for a list of commands)", err)
	}
	return fmt.Sprintf("Failed to execute command: %s", err)
}

// shell runs commands against one account and, optionally, one vehicle.
type shell struct {
	acct    *account.Account
	car     *vehicle.Vehicle
	timeout time.Duration
}

func (s *shell) run(args []string) int {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := execute(ctx, s.acct, s.car, args); err != nil {
		writeErr("%s", describeError(err))
		return 1
	}
	return 0
}

func (s *shell) prompt() {
	if s.car != nil {
		fmt.Printf("%s> ", s.car.VIN())
		return
	}
	fmt.Print("> ")
}

// interactive reads commands from in until it is exhausted or the user exits. Errors are reported
// but do not end the session.
func (s *shell) interactive(in io.Reader) int {
	scanner := bufio.NewScanner(in)
	for s.prompt(); scanner.Scan(); s.prompt() {
		args, err := shlex.Split(scanner.Text())
		if err != nil {
			writeErr("Invalid command: %s", err)
			continue
		}
		if len(args) == 0 {
			continue
		}
		switch args[0] {
		case "exit", "quit":
			return 0
		case "help":
			if len(args) > 1 {
				if info, ok := commands[args[1]]; ok {
					info.Usage(args[1])
					continue
				}
			}
			listCommands(os.Stdout)
			continue
		}
		s.run(args)
	}
	if err := scanner.Err(); err != nil {
		writeErr("Error reading command: %s", err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(run())
}

func run() int {
	var (
		debug          bool
		commandTimeout time.Duration
		connTimeout    time.Duration
	)
	config, err := cli.NewConfig(cli.FlagAll)
	if err != nil {
		writeErr("Failed to load credential configuration: %s", err)
		return 1
	}
	flag.Usage = Usage
	flag.BoolVar(&debug, "debug", false, "Enable verbose debugging messages")
	flag.DurationVar(&commandTimeout, "command-timeout", 2*time.Minute, "Set timeout for commands sent to the vehicle, including waiting for confirmation.")
	flag.DurationVar(&connTimeout, "connect-timeout", 30*time.Second, "Set timeout for logging in and fetching vehicle state.")
	config.RegisterCommandLineFlags()
	flag.Parse()

	if value, ok := os.LookupEnv(cli.EnvVerbose); ok && !debug {
		debug = value != "false" && value != "0"
	}
	if debug {
		log.SetLevel(log.LevelDebug)
	}
	config.ReadFromEnvironment()
	if err := config.ReadConfigFile(); err != nil {
		writeErr("Error reading configuration file: %s", err)
		return 1
	}
	spinCode = config.SpinCode

	args := flag.Args()
	if len(args) > 0 && args[0] == "help" {
		if len(args) == 1 {
			Usage()
			return 0
		}
		info, ok := commands[args[1]]
		if !ok {
			writeErr("Unrecognized command: %s", args[1])
			return 1
		}
		info.Usage(args[1])
		return 0
	}
	if len(args) > 0 {
		if err := configureFlags(config, args[0]); err != nil {
			writeErr("%s", describeError(err))
			return 1
		}
	}

	if err := config.LoadCredentials(); err != nil {
		writeErr("Error loading credentials: %s", err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), connTimeout)
	defer cancel()
	acct, car, err := config.Connect(ctx)
	if err != nil {
		writeErr("%s", describeError(err))
		return 1
	}
	defer acct.Close()

	sh := &shell{acct: acct, car: car, timeout: commandTimeout}
	if len(args) > 0 {
		return sh.run(args)
	}
	return sh.interactive(os.Stdin)
}
