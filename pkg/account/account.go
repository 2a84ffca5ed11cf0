// Package account connects to the vendor backend on behalf of one user account.
//
// An [Account] owns the session of the account and sends authenticated API requests. The vehicles
// enrolled in the account are listed by [Account.Update] and returned as [vehicle.Vehicle] values
// that share the account's session.
package account

import (
	"context"
	_ "embed" // Used to embed version for use with user agent
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/carnet-go/vehicle-command/internal/authentication"
	"github.com/carnet-go/vehicle-command/internal/log"
	"github.com/carnet-go/vehicle-command/pkg/connector"
	"github.com/carnet-go/vehicle-command/pkg/connector/inet"
	"github.com/carnet-go/vehicle-command/pkg/session"
	"github.com/carnet-go/vehicle-command/pkg/token"
	"github.com/carnet-go/vehicle-command/pkg/vehicle"
)

var (
	//go:embed version.txt
	libraryVersion string
)

// ErrUnknownVehicle indicates the VIN is not enrolled in the account.
var ErrUnknownVehicle = errors.New("vehicle not found in account")

func buildUserAgent(app string) string {
	library := strings.TrimSpace("carnet-sdk/" + libraryVersion)
	build, ok := debug.ReadBuildInfo()
	if !ok {
		return fmt.Sprintf("%s %s", connector.AppUserAgent, library)
	}
	path := strings.Split(build.Path, "/")
	if len(path) == 0 {
		return fmt.Sprintf("%s %s", connector.AppUserAgent, library)
	}

	if app == "" {
		app = path[len(path)-1]
		var version string
		if build.Main.Version != "(devel)" && build.Main.Version != "" {
			version = build.Main.Version
		} else {
			for _, info := range build.Settings {
				if info.Key == "vcs.revision" {
					if len(info.Value) > 8 {
						version = info.Value[0:8]
					}
					break
				}
			}
		}

		if version != "" {
			app = fmt.Sprintf("%s/%s", app, version)
		}
	}

	// The gateway only accepts requests that look like they come from the mobile application.
	return fmt.Sprintf("%s %s %s", connector.AppUserAgent, app, library)
}

// Options configure an Account. The zero value connects to [connector.DefaultBaseURL].
type Options struct {
	// BaseURL of the API gateway and identity provider.
	BaseURL string
	// UserAgent overrides the generated user agent.
	UserAgent string
	// HTTPClient is used for all requests. Its redirect policy and cookie jar are replaced.
	HTTPClient *http.Client
	// PollInterval and CommandDeadline control command tracking. Zero keeps the defaults.
	PollInterval    time.Duration
	CommandDeadline time.Duration
	// Skew is the minimum remaining lifetime of the access token before it is refreshed.
	Skew time.Duration
}

// Account allows interaction with a vendor account.
type Account struct {
	// The default UserAgent is constructed from the global UserAgent, but can be overridden.
	UserAgent string
	BaseURL   string

	transport *inet.Transport
	auth      *authentication.Flow
	session   *session.Manager
	tokens    tokenSource
	status    *serviceStatus
	sleepFunc func(context.Context, time.Duration) error
	options   Options

	lock     sync.Mutex
	vehicles map[string]*vehicle.Vehicle
	listed   bool
}

// New returns an [Account]. Call [Account.Login] or [Account.RestoreToken] before sending requests.
func New(opts Options) (*Account, error) {
	if opts.BaseURL == "" {
		opts.BaseURL = connector.DefaultBaseURL
	}
	if !strings.HasPrefix(opts.BaseURL, "https://") && !strings.HasPrefix(opts.BaseURL, "http://") {
		return nil, fmt.Errorf("invalid base URL %q", opts.BaseURL)
	}
	userAgent := buildUserAgent(opts.UserAgent)
	if opts.UserAgent != "" {
		userAgent = opts.UserAgent
	}
	transport := inet.NewTransport(opts.HTTPClient, userAgent)
	flow := authentication.NewFlow(transport, opts.BaseURL)
	manager := session.NewManager(flow)
	if opts.Skew > 0 {
		manager.Skew = opts.Skew
	}

	a := &Account{
		UserAgent: userAgent,
		BaseURL:   strings.TrimSuffix(opts.BaseURL, "/"),
		transport: transport,
		auth:      flow,
		session:   manager,
		tokens:    manager,
		status:    newServiceStatus(),
		sleepFunc: timeSleep,
		options:   opts,
		vehicles:  make(map[string]*vehicle.Vehicle),
	}
	manager.OnTokenChange(func(set *token.Set) {
		if set != nil {
			a.status.set(ServiceToken, StatusUp)
		}
	})
	return a, nil
}

// Login authenticates with the user's credentials. The credentials are kept in memory so that the
// session can be re-established if the refresh token is rejected.
func (a *Account) Login(ctx context.Context, username, password string) error {
	_, err := a.session.Login(ctx, authentication.Credentials{Username: username, Password: password})
	if err != nil {
		a.status.recordAuthFailure(err)
	}
	return err
}

// Session returns the session manager of the account.
func (a *Account) Session() *session.Manager {
	return a.session
}

// Token returns the current token set, which may be nil. Callers persist it to skip the login
// flow on the next start.
func (a *Account) Token() *token.Set {
	return a.session.Current()
}

// RestoreToken installs a token set saved by a previous session.
func (a *Account) RestoreToken(set *token.Set) error {
	return a.session.Restore(set)
}

func (a *Account) newVehicle(summary Summary) *vehicle.Vehicle {
	car := vehicle.New(summary.VIN, a)
	car.SetCommandTiming(a.options.PollInterval, a.options.CommandDeadline)
	car.SetDescription(summary.Nickname, summary.Model)
	return car
}

func (a *Account) refreshVehicleList(ctx context.Context) error {
	summaries, err := a.VehicleList(ctx)
	if err != nil {
		return err
	}
	a.lock.Lock()
	defer a.lock.Unlock()
	seen := make(map[string]bool, len(summaries))
	for _, summary := range summaries {
		seen[summary.VIN] = true
		if car, ok := a.vehicles[summary.VIN]; ok {
			car.SetDescription(summary.Nickname, summary.Model)
			continue
		}
		log.Info("Found vehicle %s (%s)", summary.VIN, summary.Model)
		a.vehicles[summary.VIN] = a.newVehicle(summary)
	}
	for vin, car := range a.vehicles {
		if !seen[vin] {
			log.Info("Vehicle %s left the account", vin)
			car.Close()
			delete(a.vehicles, vin)
		}
	}
	a.listed = true
	return nil
}

// Update refreshes the vehicle list if it has not been fetched yet and then the state of every
// vehicle. Failures of individual vehicles do not stop the others; the returned error joins them.
func (a *Account) Update(ctx context.Context) error {
	a.lock.Lock()
	listed := a.listed
	a.lock.Unlock()
	if !listed {
		if err := a.refreshVehicleList(ctx); err != nil {
			return err
		}
	}
	var errs []error
	for _, car := range a.Vehicles() {
		if err := car.Update(ctx); err != nil {
			log.Warning("Failed to update %s: %s", car.VIN(), err)
			errs = append(errs, fmt.Errorf("%s: %w", car.VIN(), err))
		}
	}
	return errors.Join(errs...)
}

// ListVehicles fetches the vehicle list and returns the account's vehicles ordered by VIN. The
// state of the vehicles is not refreshed.
func (a *Account) ListVehicles(ctx context.Context) ([]*vehicle.Vehicle, error) {
	if err := a.refreshVehicleList(ctx); err != nil {
		return nil, err
	}
	return a.Vehicles(), nil
}

// Rediscover fetches the vehicle list again on the next Update.
func (a *Account) Rediscover() {
	a.lock.Lock()
	a.listed = false
	a.lock.Unlock()
}

// Vehicles returns the known vehicles ordered by VIN.
func (a *Account) Vehicles() []*vehicle.Vehicle {
	a.lock.Lock()
	defer a.lock.Unlock()
	cars := make([]*vehicle.Vehicle, 0, len(a.vehicles))
	for _, car := range a.vehicles {
		cars = append(cars, car)
	}
	sort.Slice(cars, func(i, j int) bool { return cars[i].VIN() < cars[j].VIN() })
	return cars
}

// GetVehicle returns the Vehicle belonging to the account with the provided vin. The vehicle list
// is fetched if necessary.
func (a *Account) GetVehicle(ctx context.Context, vin string) (*vehicle.Vehicle, error) {
	a.lock.Lock()
	car, ok := a.vehicles[vin]
	listed := a.listed
	a.lock.Unlock()
	if ok {
		return car, nil
	}
	if !listed {
		if err := a.refreshVehicleList(ctx); err != nil {
			return nil, err
		}
		a.lock.Lock()
		car, ok = a.vehicles[vin]
		a.lock.Unlock()
		if ok {
			return car, nil
		}
	}
	return nil, fmt.Errorf("%s: %w", vin, ErrUnknownVehicle)
}

// ServiceStatus returns the status of each backend service class as observed by recent requests.
func (a *Account) ServiceStatus() map[string]string {
	return a.status.snapshot()
}

// Logout revokes the session and forgets the account's vehicles and cookies.
func (a *Account) Logout(ctx context.Context) error {
	a.Close()
	a.transport.ClearCookies()
	return a.session.Logout(ctx)
}

// Close stops tracking outstanding commands of all vehicles.
func (a *Account) Close() {
	a.lock.Lock()
	cars := a.vehicles
	a.vehicles = make(map[string]*vehicle.Vehicle)
	a.listed = false
	a.lock.Unlock()
	for _, car := range cars {
		car.Close()
	}
}
