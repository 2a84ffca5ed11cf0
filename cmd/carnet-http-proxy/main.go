package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/carnet-go/vehicle-command/internal/log"
	"github.com/carnet-go/vehicle-command/pkg/cli"
	"github.com/carnet-go/vehicle-command/pkg/proxy"
)

const defaultPort = 4443

const (
	EnvTlsCert = "CARNET_HTTP_PROXY_TLS_CERT"
	EnvTlsKey  = "CARNET_HTTP_PROXY_TLS_KEY"
	EnvHost    = "CARNET_HTTP_PROXY_HOST"
	EnvPort    = "CARNET_HTTP_PROXY_PORT"
	EnvTimeout = "CARNET_HTTP_PROXY_TIMEOUT"
	EnvVerbose = cli.EnvVerbose
)

const nonLocalhostWarning = `
Do not listen on a network interface without adding client authentication. Unauthorized clients
can lock, unlock, and locate your vehicles, and excessive traffic from your IP address may cause
the backend to rate limit or block your account.`

// proxyConfig holds the server options. Command-line flags take precedence over the environment.
type proxyConfig struct {
	certFile string
	keyFile  string
	host     string
	port     int
	timeout  time.Duration
	verbose  bool
}

func (c *proxyConfig) registerFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.certFile, "cert", "", "TLS certificate chain `file` with concatenated server, intermediate CA, and root CA certificates. A self-signed certificate is generated if omitted.")
	fs.StringVar(&c.keyFile, "tls-key", "", "Server TLS private key `file`")
	fs.StringVar(&c.host, "host", "localhost", "Proxy server `hostname`")
	fs.IntVar(&c.port, "port", defaultPort, "`Port` to listen on")
	fs.DurationVar(&c.timeout, "timeout", proxy.DefaultTimeout, "Timeout interval when sending commands")
	fs.BoolVar(&c.verbose, "verbose", false, "Enable verbose logging")
}

// applyEnvironment fills in options that were not set on the command line of fs.
func (c *proxyConfig) applyEnvironment(fs *flag.FlagSet, lookup func(string) (string, bool)) error {
	explicit := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { explicit[f.Name] = true })

	fromEnv := func(name, env string, apply func(string) error) error {
		if explicit[name] {
			return nil
		}
		value, ok := lookup(env)
		if !ok || value == "" {
			return nil
		}
		if err := apply(value); err != nil {
			return fmt.Errorf("invalid $%s: %w", env, err)
		}
		return nil
	}
	setString := func(dst *string) func(string) error {
		return func(value string) error {
			*dst = value
			return nil
		}
	}

	options := []struct {
		flag, env string
		apply     func(string) error
	}{
		{"cert", EnvTlsCert, setString(&c.certFile)},
		{"tls-key", EnvTlsKey, setString(&c.keyFile)},
		{"host", EnvHost, setString(&c.host)},
		{"port", EnvPort, func(value string) (err error) {
			c.port, err = strconv.Atoi(value)
			if err == nil && (c.port <= 0 || c.port > 65535) {
				err = fmt.Errorf("port %d out of range", c.port)
			}
			return
		}},
		{"timeout", EnvTimeout, func(value string) (err error) {
			c.timeout, err = time.ParseDuration(value)
			return
		}},
		{"verbose", EnvVerbose, func(value string) error {
			c.verbose = value != "false" && value != "0"
			return nil
		}},
	}
	for _, option := range options {
		if err := fromEnv(option.flag, option.env, option.apply); err != nil {
			return err
		}
	}
	return nil
}

func (c *proxyConfig) addr() string {
	return net.JoinHostPort(c.host, strconv.Itoa(c.port))
}

func usage() {
	out := flag.CommandLine.Output()
	fmt.Fprintf(out, "Usage: %s [OPTION...]\n", os.Args[0])
	fmt.Fprintln(out, "\nA server that exposes a REST API for reading and controlling the vehicles of an account.")
	fmt.Fprintln(out, nonLocalhostWarning)
	fmt.Fprintln(out, "\nOptions:")
	flag.PrintDefaults()
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func run() error {
	config, err := cli.NewConfig(cli.FlagAccount | cli.FlagKeyring | cli.FlagSpin)
	if err != nil {
		return fmt.Errorf("failed to load credential configuration: %w", err)
	}

	var options proxyConfig
	options.registerFlags(flag.CommandLine)
	config.RegisterCommandLineFlags()
	flag.Usage = usage
	flag.Parse()
	if err := options.applyEnvironment(flag.CommandLine, os.LookupEnv); err != nil {
		return err
	}
	config.ReadFromEnvironment()
	if err := config.ReadConfigFile(); err != nil {
		return err
	}
	if options.verbose {
		log.SetLevel(log.LevelDebug)
	}
	if options.host != "localhost" {
		fmt.Fprintln(os.Stderr, nonLocalhostWarning)
	}

	tlsConf, certPEM, err := tlsConfig(options.certFile, options.keyFile, options.host)
	if err != nil {
		return err
	}

	if err := config.LoadCredentials(); err != nil {
		return err
	}
	loginCtx, cancel := context.WithTimeout(context.Background(), options.timeout)
	acct, err := config.Account(loginCtx)
	cancel()
	if err != nil {
		return err
	}
	defer acct.Close()

	p := proxy.New(proxy.Live(acct))
	p.Timeout = options.timeout
	p.Spin = config.Spin

	// Wrap p in your own http.Handler to add client authentication before exposing the proxy on a
	// network interface.
	server := newServer(options.addr(), p, tlsConf)
	if certPEM != nil {
		log.Info("Using self-signed certificate:\n%s", certPEM)
	}
	log.Info("Listening on %s", server.Addr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return serve(ctx, server)
}
