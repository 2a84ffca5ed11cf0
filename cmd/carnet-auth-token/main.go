// Utility for logging in and saving the resulting token set

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/carnet-go/vehicle-command/internal/log"
	"github.com/carnet-go/vehicle-command/pkg/account"
	"github.com/carnet-go/vehicle-command/pkg/cli"
)

func usage() {
	w := flag.CommandLine.Output()
	fmt.Fprintf(w, "usage: %s [OPTION...]\n", filepath.Base(os.Args[0]))
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Logs in to the account and saves the token set to the token file, token cache,")
	fmt.Fprintf(w, "and/or system keyring. The username defaults to $%s.\n", cli.EnvUsername)
	fmt.Fprintln(w, "")
	flag.PrintDefaults()
}

func main() {
	returnCode := 1
	defer func() {
		os.Exit(returnCode)
	}()

	config, err := cli.NewConfig(cli.FlagAccount | cli.FlagKeyring)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load credential configuration: %s\n", err)
		return
	}

	var (
		savePassword bool
		printToken   bool
		logout       bool
		debug        bool
		timeout      time.Duration
	)
	flag.BoolVar(&savePassword, "save-password", false, "Also save the password in the system keyring")
	flag.BoolVar(&printToken, "print", false, "Write the token set to stdout")
	flag.BoolVar(&logout, "logout", false, "Revoke the saved session and delete it instead of logging in")
	flag.BoolVar(&debug, "debug", false, "Enable verbose debugging messages")
	flag.DurationVar(&timeout, "timeout", 30*time.Second, "Timeout for the login flow")
	flag.Usage = usage
	config.RegisterCommandLineFlags()
	flag.Parse()
	if debug {
		log.SetLevel(log.LevelDebug)
	}
	config.ReadFromEnvironment()
	if err := config.ReadConfigFile(); err != nil {
		fmt.Fprintf(os.Stderr, "Error reading configuration file: %s\n", err)
		return
	}

	if config.TokenFilename == "" && config.CacheFilename == "" && config.KeyringTokenName == "" && !printToken && !logout {
		fmt.Fprintln(os.Stderr, "Nowhere to save the token: use -token-file, -token-cache, -token-name, or -print")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if logout {
		acct, err := config.Account(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "No saved session: %s\n", err)
			return
		}
		if err := acct.Logout(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error revoking session: %s\n", err)
		}
		if err := config.SaveToken(nil); err != nil {
			fmt.Fprintf(os.Stderr, "Error deleting saved token: %s\n", err)
			return
		}
		returnCode = 0
		return
	}

	password, err := config.Password()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		return
	}

	acct, err := account.New(account.Options{BaseURL: config.BaseURL})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		return
	}
	if err := acct.Login(ctx, config.Username, password); err != nil {
		fmt.Fprintf(os.Stderr, "Login failed: %s\n", err)
		return
	}

	set := acct.Token()
	if err := config.SaveToken(set); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving token: %s\n", err)
		return
	}
	if savePassword {
		if err := config.SavePasswordToKeyring(password); err != nil {
			fmt.Fprintf(os.Stderr, "Error saving password to keyring: %s\n", err)
			return
		}
	}
	if printToken {
		encoded, err := json.MarshalIndent(set, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error encoding token: %s\n", err)
			return
		}
		fmt.Println(string(encoded))
	}
	log.Info("Token expires at %s", set.ExpiresAt.Local().Format(time.DateTime))

	returnCode = 0
}
