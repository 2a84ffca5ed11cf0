package cli_test

import (
	"errors"
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/carnet-go/vehicle-command/pkg/cli"
	"github.com/carnet-go/vehicle-command/pkg/token"
)

func testToken() *token.Set {
	return &token.Set{
		AccessToken:  "access",
		RefreshToken: "refresh",
		TokenType:    "Bearer",
		ExpiresAt:    time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func newConfig(t *testing.T, flags cli.Flag, args ...string) *cli.Config {
	t.Helper()
	config, err := cli.NewConfig(flags)
	if err != nil {
		t.Fatal(err)
	}
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	config.RegisterFlags(fs)
	if err := fs.Parse(args); err != nil {
		t.Fatalf("Failed to parse %v: %s", args, err)
	}
	return config
}

func TestFlagsOverrideEnvironment(t *testing.T) {
	t.Setenv(cli.EnvVIN, "ENVVIN")
	t.Setenv(cli.EnvUsername, "env@example.com")
	t.Setenv(cli.EnvSpin, "1234")
	config := newConfig(t, cli.FlagAll, "-vin", "FLAGVIN")
	config.ReadFromEnvironment()
	if config.VIN != "FLAGVIN" {
		t.Errorf("Environment overrode flag: %s", config.VIN)
	}
	if config.Username != "env@example.com" {
		t.Errorf("Username not read from environment: %s", config.Username)
	}
	if spin, err := config.SpinCode(); err != nil || spin != "1234" {
		t.Errorf("Unexpected S-PIN %q %v", spin, err)
	}
}

func TestFlagMask(t *testing.T) {
	t.Setenv(cli.EnvVIN, "ENVVIN")
	config := newConfig(t, cli.FlagAccount)
	config.ReadFromEnvironment()
	if config.VIN != "" {
		t.Error("VIN read although FlagVIN is not set")
	}
	if _, err := config.SpinCode(); !errors.Is(err, cli.ErrNoSpin) {
		t.Errorf("Expected ErrNoSpin, got %v", err)
	}
}

func TestConfigFile(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "carnet.toml")
	contents := `
username = "file@example.com"
vin = "FILEVIN"
base_url = "https://gateway.example"
unknown = true
`
	if err := os.WriteFile(filename, []byte(contents), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(cli.EnvConfig, filename)
	t.Setenv(cli.EnvUsername, "env@example.com")
	t.Setenv(cli.EnvVIN, "")
	config := newConfig(t, cli.FlagAll)
	config.ReadFromEnvironment()
	if err := config.ReadConfigFile(); err != nil {
		t.Fatalf("ReadConfigFile failed: %s", err)
	}
	if config.Username != "env@example.com" {
		t.Errorf("Config file overrode environment: %s", config.Username)
	}
	if config.VIN != "FILEVIN" || config.BaseURL != "https://gateway.example" {
		t.Errorf("Config file not applied: %+v", config)
	}
}

func TestConfigFileErrors(t *testing.T) {
	config := newConfig(t, cli.FlagAll, "-config", filepath.Join(t.TempDir(), "missing.toml"))
	if err := config.ReadConfigFile(); err != nil {
		t.Errorf("Missing config file should be ignored: %s", err)
	}

	filename := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(filename, []byte("username = "), 0600); err != nil {
		t.Fatal(err)
	}
	config = newConfig(t, cli.FlagAll, "-config", filename)
	if err := config.ReadConfigFile(); err == nil {
		t.Error("Expected error for malformed config file")
	}
}

func TestTokenFile(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "token.json")
	config := newConfig(t, cli.FlagAccount, "-token-file", filename)
	if _, err := config.Token(); !errors.Is(err, cli.ErrNoCredential) {
		t.Errorf("Expected ErrNoCredential, got %v", err)
	}
	if err := config.SaveToken(testToken()); err != nil {
		t.Fatalf("SaveToken failed: %s", err)
	}
	info, err := os.Stat(filename)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("Token file is readable by others: %s", info.Mode())
	}

	config = newConfig(t, cli.FlagAccount, "-token-file", filename)
	set, err := config.Token()
	if err != nil {
		t.Fatalf("Token failed: %s", err)
	}
	if set.AccessToken != "access" || !set.ExpiresAt.Equal(testToken().ExpiresAt) {
		t.Errorf("Unexpected token %s", set)
	}
	if err := config.LoadCredentials(); err != nil {
		t.Errorf("LoadCredentials should not need a password: %s", err)
	}
}

func TestTokenCache(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "cache.json")
	config := newConfig(t, cli.FlagAccount, "-token-cache", filename, "-username", "user@example.com")
	if err := config.SaveToken(testToken()); err != nil {
		t.Fatalf("SaveToken failed: %s", err)
	}

	config = newConfig(t, cli.FlagAccount, "-token-cache", filename, "-username", "user@example.com")
	if _, err := config.Token(); err != nil {
		t.Fatalf("Token not found in cache: %s", err)
	}
	if err := config.SaveToken(nil); err != nil {
		t.Fatalf("SaveToken failed: %s", err)
	}

	config = newConfig(t, cli.FlagAccount, "-token-cache", filename, "-username", "other@example.com")
	if _, err := config.Token(); !errors.Is(err, cli.ErrNoCredential) {
		t.Errorf("Expected ErrNoCredential, got %v", err)
	}
}

func TestLoadCredentialsFromEnvironment(t *testing.T) {
	t.Setenv(cli.EnvUsername, "user@example.com")
	t.Setenv(cli.EnvPassword, "hunter22")
	t.Setenv(cli.EnvTokenFile, "")
	t.Setenv(cli.EnvCacheFile, "")
	config := newConfig(t, cli.FlagAccount)
	config.ReadFromEnvironment()
	if err := config.LoadCredentials(); err != nil {
		t.Errorf("LoadCredentials failed: %s", err)
	}

	t.Setenv(cli.EnvUsername, "")
	config = newConfig(t, cli.FlagAccount)
	config.ReadFromEnvironment()
	if err := config.LoadCredentials(); !errors.Is(err, cli.ErrNoAccount) {
		t.Errorf("Expected ErrNoAccount, got %v", err)
	}
}

func TestFileKeyring(t *testing.T) {
	t.Setenv(cli.EnvKeyringPass, "keyring password")
	t.Setenv(cli.EnvTokenName, "")
	config := newConfig(t, cli.FlagAll,
		"-keyring-type", "file",
		"-keyring-file-dir", t.TempDir(),
		"-token-name", "test",
		"-username", "user@example.com")
	config.ReadFromEnvironment()

	if err := config.SaveTokenToKeyring(testToken()); err != nil {
		t.Fatalf("SaveTokenToKeyring failed: %s", err)
	}
	set, err := config.LoadTokenFromKeyring()
	if err != nil {
		t.Fatalf("LoadTokenFromKeyring failed: %s", err)
	}
	if set.RefreshToken != "refresh" {
		t.Errorf("Unexpected token %s", set)
	}

	if err := config.SavePasswordToKeyring("hunter22"); err != nil {
		t.Fatalf("SavePasswordToKeyring failed: %s", err)
	}
	if password, err := config.LoadPasswordFromKeyring(); err != nil || password != "hunter22" {
		t.Errorf("Unexpected password %q %v", password, err)
	}
	if err := config.DeletePassword(); err != nil {
		t.Errorf("DeletePassword failed: %s", err)
	}
	if _, err := config.LoadPasswordFromKeyring(); !errors.Is(err, cli.ErrKeyNotFound) {
		t.Errorf("Expected ErrKeyNotFound, got %v", err)
	}
}
