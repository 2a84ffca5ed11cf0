/*
Package cli facilitates building command-line applications that talk to the vendor backend. It
defines a [Config] type that can be used to register common command-line flags (using the Golang
flag package), environment variable equivalents, and an optional TOML configuration file.

The package uses [keyring]'s platform-agnostic interface for storing sensitive values (account
passwords and token sets) in an OS-dependent credential store.

# Examples

	import flag

	config, err := NewConfig(FlagAll)
	if err != nil {
		panic(err)
	}
	config.RegisterCommandLineFlags() // Adds command-line flags for credentials, VIN, etc.
	flag.Parse()
	config.ReadFromEnvironment()      // Fills in missing fields using environment variables
	config.ReadConfigFile()           // Fills in remaining fields from $CARNET_CONFIG
	config.LoadCredentials()          // Prompt for passwords if needed

	// Logs in (or resumes a saved session) and fetches the vehicle selected by the VIN, if any.
	acct, car, err := config.Connect(ctx)
	if err != nil {
		panic(err)
	}
	defer acct.Close()

Precedence is command-line flags, then environment variables, then the configuration file. Use a
[Flag] mask to control which [Config] fields are populated; config.Flags must be set before calling
[flag.Parse] or [Config.ReadFromEnvironment].
*/
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"

	"github.com/99designs/keyring"
	"github.com/BurntSushi/toml"

	"github.com/carnet-go/vehicle-command/internal/log"
	"github.com/carnet-go/vehicle-command/pkg/account"
	"github.com/carnet-go/vehicle-command/pkg/cache"
	"github.com/carnet-go/vehicle-command/pkg/token"
	"github.com/carnet-go/vehicle-command/pkg/vehicle"
)

// Environment variable names used are used by [Config.ReadFromEnvironment] to set common parameters.
const (
	EnvUsername     = "CARNET_USERNAME"
	EnvPassword     = "CARNET_PASSWORD"
	EnvVIN          = "CARNET_VIN"
	EnvSpin         = "CARNET_SPIN"
	EnvBaseURL      = "CARNET_BASE_URL"
	EnvTokenName    = "CARNET_TOKEN_NAME"
	EnvTokenFile    = "CARNET_TOKEN_FILE"
	EnvCacheFile    = "CARNET_CACHE_FILE"
	EnvConfig       = "CARNET_CONFIG"
	EnvKeyringType  = "CARNET_KEYRING_TYPE"
	EnvKeyringPass  = "CARNET_KEYRING_PASSWORD"
	EnvKeyringPath  = "CARNET_KEYRING_PATH"
	EnvKeyringDebug = "CARNET_KEYRING_DEBUG"
	EnvVerbose      = "CARNET_VERBOSE"
)

// Flag controls what options should be scanned from the command line and/or environment variables.
type Flag int

func (f Flag) isSet(other Flag) bool {
	return (f & other) == other
}

const (
	FlagVIN     Flag = 1 // Enable VIN option.
	FlagAccount Flag = 2 // Enable account options (username, password, saved tokens).
	FlagSpin    Flag = 4 // Enable S-PIN option. Required for locking and unlocking.
	FlagKeyring Flag = 8 // Enable keyring options. Requires FlagAccount.
	FlagAll     Flag = FlagVIN | FlagAccount | FlagSpin | FlagKeyring
)

var (
	ErrNoAccount    = errors.New("account username not provided")
	ErrNoCredential = errors.New("no saved token or password available")
	ErrNoSpin       = errors.New("S-PIN not provided")
	ErrKeyNotFound  = keyring.ErrKeyNotFound
)

// fileConfig is the layout of the TOML configuration file.
type fileConfig struct {
	Username    string `toml:"username"`
	VIN         string `toml:"vin"`
	BaseURL     string `toml:"base_url"`
	TokenName   string `toml:"token_name"`
	TokenFile   string `toml:"token_file"`
	CacheFile   string `toml:"cache_file"`
	KeyringType string `toml:"keyring_type"`
	KeyringPath string `toml:"keyring_path"`
}

// Config fields determine how a client authenticates to the vendor backend.
type Config struct {
	Flags            Flag // Controls which set of environment variables/CLI flags to use.
	Username         string
	VIN              string
	Spin             string
	BaseURL          string
	KeyringTokenName string // Name of the token set in the system keyring
	TokenFilename    string
	CacheFilename    string
	ConfigFilename   string
	Backend          keyring.Config
	BackendType      backendType
	Debug            bool // Enable keyring debug messages

	password        *string // Keyring password
	accountPassword string
	tokens          *cache.TokenCache
	acct            *account.Account
	set             *token.Set
}

func NewConfig(flags Flag) (*Config, error) {
	c := Config{
		Flags: flags,
		Backend: keyring.Config{
			ServiceName:              keyringServiceName,
			KeychainTrustApplication: true,
			KeyCtlScope:              "user",
		},
	}
	c.BackendType = backendType{&c}
	c.Backend.KeychainPasswordFunc = c.getPassword
	c.Backend.FilePasswordFunc = c.getPassword

	return &c, nil
}

// RegisterCommandLineFlags registers c's options with the flag package's default set.
func (c *Config) RegisterCommandLineFlags() {
	c.RegisterFlags(flag.CommandLine)
}

// RegisterFlags registers c's options with fs.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	if c.Flags.isSet(FlagVIN) {
		fs.StringVar(&c.VIN, "vin", "", "Vehicle Identification Number. Defaults to $CARNET_VIN.")
	}
	if c.Flags.isSet(FlagSpin) {
		fs.StringVar(&c.Spin, "spin", "", "Four digit S-PIN. Defaults to $CARNET_SPIN; prompted for if needed.")
	}
	if c.Flags.isSet(FlagAccount) {
		fs.StringVar(&c.Username, "username", "", "Account `email`. Defaults to $CARNET_USERNAME.")
		fs.StringVar(&c.BaseURL, "base-url", "", "API gateway `URL`. Defaults to $CARNET_BASE_URL.")
		fs.StringVar(&c.TokenFilename, "token-file", "", "`File` containing a saved token set. Defaults to $CARNET_TOKEN_FILE.")
		fs.StringVar(&c.CacheFilename, "token-cache", "", "Load token cache from `file`. Defaults to $CARNET_CACHE_FILE.")
		fs.StringVar(&c.ConfigFilename, "config", "", "TOML configuration `file`. Defaults to $CARNET_CONFIG.")
	}
	if c.Flags.isSet(FlagKeyring) {
		var names []string
		for _, name := range keyring.AvailableBackends() {
			names = append(names, string(name))
		}
		sort.Strings(names)
		fs.StringVar(&c.KeyringTokenName, "token-name", "", "System keyring `name` for the token set. Defaults to $CARNET_TOKEN_NAME.")
		fs.Var(&c.BackendType, "keyring-type", "Keyring `type` ("+strings.Join(names, "|")+"). Defaults to $CARNET_KEYRING_TYPE.")
		fs.StringVar(&c.Backend.FileDir, "keyring-file-dir", "", "keyring `directory` for file-backed keyring types. Defaults to "+keyringDirectory+".")
		fs.BoolVar(&c.Debug, "keyring-debug", false, "Enable keyring debug logging")
	}
}

// ReadFromEnvironment populates c using environment variables. Values that are already populated
// are not overwritten.
//
// Calling ReadFromEnvironment after flag.Parse() (or other initialization method) will prevent the
// environment from overriding explicit command-line parameters and avoid potentially misleading
// debug log messages.
func (c *Config) ReadFromEnvironment() {
	if c.Flags.isSet(FlagVIN) && c.VIN == "" {
		c.VIN = os.Getenv(EnvVIN)
		log.Debug("Set VIN to '%s'", c.VIN)
	}
	if c.Flags.isSet(FlagSpin) && c.Spin == "" {
		c.Spin = os.Getenv(EnvSpin)
		if c.Spin != "" {
			log.Debug("Set S-PIN to %s", log.Redact(c.Spin))
		}
	}
	if c.Flags.isSet(FlagAccount) {
		if c.Username == "" {
			c.Username = os.Getenv(EnvUsername)
			log.Debug("Set username to '%s'", c.Username)
		}
		if c.accountPassword == "" {
			c.accountPassword = os.Getenv(EnvPassword)
		}
		if c.BaseURL == "" {
			c.BaseURL = os.Getenv(EnvBaseURL)
		}
		if c.TokenFilename == "" {
			c.TokenFilename = os.Getenv(EnvTokenFile)
			log.Debug("Set token file to '%s'", c.TokenFilename)
		}
		if c.CacheFilename == "" {
			c.CacheFilename = os.Getenv(EnvCacheFile)
			log.Debug("Set token cache file to '%s'", c.CacheFilename)
		}
		if c.ConfigFilename == "" {
			c.ConfigFilename = os.Getenv(EnvConfig)
		}
	}
	if c.Flags.isSet(FlagKeyring) {
		if c.KeyringTokenName == "" {
			c.KeyringTokenName = os.Getenv(EnvTokenName)
			log.Debug("Set token name to '%s'", c.KeyringTokenName)
		}
		if c.BackendType.String() == string(keyring.InvalidBackend) {
			if err := c.BackendType.Set(os.Getenv(EnvKeyringType)); err == nil {
				log.Debug("Set keyring type to '%s'", c.BackendType)
			}
		}
		if c.password == nil {
			password := os.Getenv(EnvKeyringPass)
			c.password = &password
			if len(password) > 0 {
				log.Debug("Set keyring File Password to %s", strings.Repeat("*", len("hunter2")))
			}
		}
		if c.Backend.FileDir == "" {
			c.Backend.FileDir = os.Getenv(EnvKeyringPath)
			log.Debug("Set keyring File Path to '%s'", c.Backend.FileDir)
		}
		if !c.Debug {
			_, c.Debug = os.LookupEnv(EnvKeyringDebug)
			log.Debug("Set keyring Debug Logging to '%v'", c.Debug)
		}
	}
}

// ReadConfigFile fills the fields that are still empty from the TOML file named by
// c.ConfigFilename. A missing file is not an error.
func (c *Config) ReadConfigFile() error {
	if c.ConfigFilename == "" {
		return nil
	}
	var file fileConfig
	md, err := toml.DecodeFile(expandHome(c.ConfigFilename), &file)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Debug("No configuration file at %s", c.ConfigFilename)
			return nil
		}
		return fmt.Errorf("parsing config file %s: %w", c.ConfigFilename, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		log.Warning("Ignoring unknown keys in %s: %v", c.ConfigFilename, undecoded)
	}
	fill := func(field *string, value string) {
		if *field == "" {
			*field = value
		}
	}
	if c.Flags.isSet(FlagVIN) {
		fill(&c.VIN, file.VIN)
	}
	if c.Flags.isSet(FlagAccount) {
		fill(&c.Username, file.Username)
		fill(&c.BaseURL, file.BaseURL)
		fill(&c.TokenFilename, file.TokenFile)
		fill(&c.CacheFilename, file.CacheFile)
	}
	if c.Flags.isSet(FlagKeyring) {
		fill(&c.KeyringTokenName, file.TokenName)
		fill(&c.Backend.FileDir, file.KeyringPath)
		if c.BackendType.String() == string(keyring.InvalidBackend) && file.KeyringType != "" {
			if err := c.BackendType.Set(file.KeyringType); err != nil {
				return fmt.Errorf("config file %s: %w", c.ConfigFilename, err)
			}
		}
	}
	return nil
}

func expandHome(path string) string {
	if rest, ok := strings.CutPrefix(path, "~/"); ok {
		if home, err := os.UserHomeDir(); err == nil {
			return home + "/" + rest
		}
	}
	return path
}

func (c *Config) keyringEnabled() bool {
	return c.Flags.isSet(FlagKeyring) && c.KeyringTokenName != ""
}

// LoadCredentials loads a saved token set or, failing that, obtains the account password from the
// environment, the keyring, or an interactive prompt. Call this method before [Config.Connect] to
// prevent interactive prompts from counting against timeouts.
func (c *Config) LoadCredentials() error {
	if !c.Flags.isSet(FlagAccount) {
		return nil
	}
	if set, err := c.Token(); err == nil && set != nil {
		return nil
	}
	_, err := c.Password()
	return err
}

// Password returns the account password from the environment, the keyring, or an interactive
// prompt, in that order.
func (c *Config) Password() (string, error) {
	if c.Username == "" {
		return "", ErrNoAccount
	}
	if c.accountPassword != "" {
		return c.accountPassword, nil
	}
	if c.keyringEnabled() {
		if password, err := c.LoadPasswordFromKeyring(); err == nil {
			c.accountPassword = password
			return password, nil
		}
	}
	password, err := prompt(fmt.Sprintf("Password for %s", c.Username))
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrNoCredential, err)
	}
	c.accountPassword = password
	return password, nil
}

// SetPassword sets the account password used when no saved token set is available.
func (c *Config) SetPassword(password string) {
	c.accountPassword = password
}

// SpinCode returns the configured S-PIN, prompting for it if necessary.
func (c *Config) SpinCode() (string, error) {
	if c.Spin != "" {
		return c.Spin, nil
	}
	if !c.Flags.isSet(FlagSpin) {
		return "", ErrNoSpin
	}
	spin, err := prompt("S-PIN")
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrNoSpin, err)
	}
	c.Spin = spin
	return spin, nil
}

func (c *Config) loadCache() error {
	if c.CacheFilename == "" || c.tokens != nil {
		return nil
	}
	log.Debug("Loading cache from %s...", c.CacheFilename)
	var err error
	c.tokens, err = cache.ImportFromFile(expandHome(c.CacheFilename))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load token cache: %s", err)
		}
		// Create a new cache if one couldn't be loaded from the file
		c.tokens = cache.New(0)
	}
	return nil
}

func readTokenFile(filename string) (*token.Set, error) {
	data, err := os.ReadFile(expandHome(filename))
	if err != nil {
		return nil, err
	}
	var set token.Set
	if err := json.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("invalid token file %s: %w", filename, err)
	}
	if set.AccessToken == "" {
		return nil, token.ErrMissingAccessToken
	}
	return &set, nil
}

// Token returns the saved token set, looking in the token file, the token cache, and the keyring in
// that order. Returns ErrNoCredential if none is found.
func (c *Config) Token() (*token.Set, error) {
	if c.set != nil {
		return c.set, nil
	}
	if c.TokenFilename != "" {
		set, err := readTokenFile(c.TokenFilename)
		if err == nil {
			c.set = set
			return set, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		// If the token file doesn't exist, fall through to the other stores.
	}
	if err := c.loadCache(); err != nil {
		return nil, err
	}
	if c.tokens != nil && c.Username != "" {
		if set, ok := c.tokens.Get(c.Username); ok {
			c.set = set
			return set, nil
		}
	}
	if c.keyringEnabled() {
		set, err := c.LoadTokenFromKeyring()
		if err == nil {
			c.set = set
			return set, nil
		}
		log.Debug("No token in keyring: %s", err)
	}
	return nil, ErrNoCredential
}

// SaveToken writes set to every configured store. A nil set removes the saved token from the cache
// and keyring.
func (c *Config) SaveToken(set *token.Set) error {
	c.set = set
	var errs []error
	if c.TokenFilename != "" && set != nil {
		data, err := json.MarshalIndent(set, "", "  ")
		if err == nil {
			err = os.WriteFile(expandHome(c.TokenFilename), data, 0600)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to write token file: %w", err))
		}
	}
	if c.CacheFilename != "" && c.Username != "" {
		if err := c.loadCache(); err != nil {
			errs = append(errs, err)
		} else {
			c.tokens.Update(c.Username, set)
			if err := c.tokens.ExportToFile(expandHome(c.CacheFilename)); err != nil {
				errs = append(errs, fmt.Errorf("failed to update token cache: %w", err))
			}
		}
	}
	if c.keyringEnabled() {
		var err error
		if set == nil {
			err = c.DeleteTokenFromKeyring()
		} else {
			err = c.SaveTokenToKeyring(set)
		}
		if err != nil && !errors.Is(err, ErrKeyNotFound) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Account returns the configured account, resuming a saved session or logging in. Token
// replacements are saved to the configured stores.
func (c *Config) Account(ctx context.Context) (*account.Account, error) {
	if c.acct != nil {
		return c.acct, nil
	}
	acct, err := account.New(account.Options{BaseURL: c.BaseURL})
	if err != nil {
		return nil, err
	}
	if set, err := c.Token(); err == nil {
		if err := acct.RestoreToken(set); err != nil {
			return nil, err
		}
	} else if c.Username == "" {
		return nil, ErrNoAccount
	} else if c.accountPassword == "" {
		return nil, ErrNoCredential
	} else {
		log.Info("Logging in as %s...", c.Username)
		if err := acct.Login(ctx, c.Username, c.accountPassword); err != nil {
			return nil, err
		}
		if err := c.SaveToken(acct.Token()); err != nil {
			log.Warning("Failed to save token: %s", err)
		}
	}
	acct.Session().OnTokenChange(func(set *token.Set) {
		if err := c.SaveToken(set); err != nil {
			log.Warning("Failed to save token: %s", err)
		}
	})
	c.acct = acct
	return acct, nil
}

// Connect logs in to the configured account, and, if c includes a VIN, also fetches the
// corresponding vehicle and its current state.
func (c *Config) Connect(ctx context.Context) (acct *account.Account, car *vehicle.Vehicle, err error) {
	acct, err = c.Account(ctx)
	if err != nil {
		return nil, nil, err
	}
	if !c.Flags.isSet(FlagVIN) || c.VIN == "" {
		return acct, nil, nil
	}
	car, err = acct.GetVehicle(ctx, c.VIN)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to find vehicle: %w", err)
	}
	log.Info("Fetching vehicle state...")
	if err := car.Discover(ctx); err != nil {
		return nil, nil, err
	}
	if err := car.Update(ctx); err != nil {
		log.Warning("Vehicle state incomplete: %s", err)
	}
	return acct, car, nil
}
