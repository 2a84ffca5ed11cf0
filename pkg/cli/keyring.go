package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/99designs/keyring"
	"golang.org/x/term"

	"github.com/carnet-go/vehicle-command/pkg/token"
)

const (
	keyringServiceName     = "digital.cariad.carnet"
	keyringTokenService    = "tokenset"
	keyringPasswordService = "password"
)

type backendType struct {
	config *Config
}

func (b backendType) String() string {
	if b.config == nil || len(b.config.Backend.AllowedBackends) == 0 {
		return string(keyring.InvalidBackend)
	}
	return string(b.config.Backend.AllowedBackends[0])
}

func (b backendType) Set(v string) error {
	if b.config == nil {
		return fmt.Errorf("invalid backendType")
	}
	if v == "" {
		return nil
	}
	available := keyring.AvailableBackends()
	names := make([]string, 0, len(available))
	for _, name := range available {
		if name == keyring.BackendType(v) {
			b.config.Backend.AllowedBackends = []keyring.BackendType{name}
			return nil
		}
		names = append(names, string(name))
	}
	return fmt.Errorf("unsupported credential storage %q (available: %s)", v, strings.Join(names, ", "))
}

// prompt reads a secret from the terminal without echoing it. The label is written to stderr so
// that stdout stays usable for command output.
func prompt(label string) (string, error) {
	stdin := int(os.Stdin.Fd())
	if !term.IsTerminal(stdin) {
		return "", errors.New("cannot prompt for a secret: standard input is not a terminal")
	}
	fmt.Fprintf(os.Stderr, "%s: ", label)
	secret, err := term.ReadPassword(stdin)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(secret), "\r\n"), nil
}

func (c *Config) getPassword(label string) (string, error) {
	if c.password != nil && *c.password != "" {
		return *c.password, nil
	}
	password, err := prompt(label)
	if err != nil {
		return "", err
	}
	c.password = &password
	return password, nil
}

func (c *Config) openKeyring() (keyring.Keyring, error) {
	if c.Backend.FileDir == "" {
		c.Backend.FileDir = keyringDirectory
	}
	keyring.Debug = c.Debug
	return keyring.Open(c.Backend)
}

func (c *Config) tokenKey() string {
	return keyringTokenService + "." + c.KeyringTokenName
}

func (c *Config) passwordKey() string {
	return keyringPasswordService + "." + c.Username
}

// LoadTokenFromKeyring loads a token set from the system keyring.
//
// The name must match the value used with SaveTokenToKeyring.
func (c *Config) LoadTokenFromKeyring() (*token.Set, error) {
	kr, err := c.openKeyring()
	if err != nil {
		return nil, err
	}

	item, err := kr.Get(c.tokenKey())
	if err != nil {
		return nil, fmt.Errorf("could not load token: %w", err)
	}
	var set token.Set
	if err := json.Unmarshal(item.Data, &set); err != nil {
		return nil, fmt.Errorf("could not decode token: %w", err)
	}
	return &set, nil
}

// SaveTokenToKeyring writes the account's token set to the system keyring.
//
// c.KeyringTokenName identifies the token set for future use with LoadTokenFromKeyring and does
// not necessarily need to match the account username.
func (c *Config) SaveTokenToKeyring(set *token.Set) error {
	kr, err := c.openKeyring()
	if err != nil {
		return err
	}
	data, err := json.Marshal(set)
	if err != nil {
		return err
	}

	if err := kr.Set(keyring.Item{
		Key:   c.tokenKey(),
		Label: "Vehicle account token for " + c.KeyringTokenName,
		Data:  data,
	}); err != nil {
		return fmt.Errorf("failed to enroll token in keyring: %s", err)
	}
	return nil
}

// DeleteTokenFromKeyring removes the token set from the system keyring.
func (c *Config) DeleteTokenFromKeyring() error {
	kr, err := c.openKeyring()
	if err != nil {
		return err
	}
	return kr.Remove(c.tokenKey())
}

// LoadPasswordFromKeyring reads the password of c.Username from the system keyring.
func (c *Config) LoadPasswordFromKeyring() (string, error) {
	kr, err := c.openKeyring()
	if err != nil {
		return "", err
	}
	item, err := kr.Get(c.passwordKey())
	if err != nil {
		return "", fmt.Errorf("could not load password: %w", err)
	}
	return string(item.Data), nil
}

// SavePasswordToKeyring writes the password of c.Username to the system keyring.
func (c *Config) SavePasswordToKeyring(password string) error {
	if c.Username == "" {
		return ErrNoAccount
	}
	kr, err := c.openKeyring()
	if err != nil {
		return err
	}
	if err := kr.Set(keyring.Item{
		Key:   c.passwordKey(),
		Label: "Vehicle account password for " + c.Username,
		Data:  []byte(password),
	}); err != nil {
		return fmt.Errorf("failed to enroll password in keyring: %s", err)
	}
	return nil
}

// DeletePassword removes the password of c.Username from the system keyring.
func (c *Config) DeletePassword() error {
	kr, err := c.openKeyring()
	if err != nil {
		return err
	}
	return kr.Remove(c.passwordKey())
}
