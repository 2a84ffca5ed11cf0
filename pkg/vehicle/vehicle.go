// Package vehicle models a single vehicle of an account.
//
// A [Vehicle] caches the capabilities document and the raw status documents of the vehicle. Status
// values are exposed through a closed table of instruments (see [Vehicle.Instruments]), each gated
// by the capability model. Commands are checked against the capabilities, submitted to the backend,
// and tracked until the backend reports an outcome:
//
//	req, err := car.Lock(ctx, spin)
//	if err != nil {
//		return err
//	}
//	if _, err := req.Wait(ctx); err != nil {
//		return err
//	}
package vehicle

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/carnet-go/vehicle-command/internal/dispatcher"
	"github.com/carnet-go/vehicle-command/pkg/capability"
	"github.com/carnet-go/vehicle-command/pkg/connector"
)

var (
	// ErrUnsupported indicates the vehicle does not advertise the capability or operations a command
	// requires.
	ErrUnsupported = errors.New("command not supported by vehicle")

	// ErrSpinLocked indicates the client refused to send the S-PIN because too few attempts remain.
	ErrSpinLocked = errors.New("S-PIN has too few remaining attempts")

	// ErrNoPosition indicates a command needs the vehicle position but none is known.
	ErrNoPosition = errors.New("vehicle position unknown")
)

//go:generate mockgen -destination=../../mocks/vehicle_api.go -package=mocks -mock_names=API=VehicleAPI github.com/carnet-go/vehicle-command/pkg/vehicle API

// API is the subset of the vendor backend used by a Vehicle. [account.Account] implements API.
type API interface {
	Capabilities(ctx context.Context, vin string) ([]byte, error)
	SelectiveStatus(ctx context.Context, vin string, jobs ...string) (map[string]json.RawMessage, error)
	ParkingPosition(ctx context.Context, vin string) (json.RawMessage, error)
	LastTrip(ctx context.Context, vin, kind string) (json.RawMessage, error)
	PendingRequests(ctx context.Context, vin string) ([]connector.PendingRequest, error)
	SpinState(ctx context.Context) (*connector.SpinState, error)
	Action(ctx context.Context, vin, method, path string, payload interface{}) (string, error)
}

// Request is the handle of a submitted command.
type Request = dispatcher.Request

// CommandStatus is the status of a [Request].
type CommandStatus = dispatcher.Status

const (
	CommandQueued     = dispatcher.StatusQueued
	CommandInProgress = dispatcher.StatusInProgress
	CommandSucceeded  = dispatcher.StatusSucceeded
	CommandFailed     = dispatcher.StatusFailed
	CommandTimedOut   = dispatcher.StatusTimedOut
)

// A Vehicle represents a vehicle enrolled in an account.
type Vehicle struct {
	vin      string
	api      API
	commands *dispatcher.Dispatcher

	// Clock returns the current time.
	Clock func() time.Time

	lock         sync.RWMutex
	nickname     string
	model        string
	capabilities *capability.Set
	discovered   bool
	state        map[string]interface{}
	updatedAt    time.Time
}

// New returns a Vehicle that talks to the backend through api.
func New(vin string, api API) *Vehicle {
	return &Vehicle{
		vin:      vin,
		api:      api,
		commands: dispatcher.New(api),
		Clock:    time.Now,
		state:    make(map[string]interface{}),
	}
}

func (v *Vehicle) now() time.Time {
	if v.Clock == nil {
		return time.Now()
	}
	return v.Clock()
}

func (v *Vehicle) VIN() string {
	return v.vin
}

// SetDescription records the nickname and model reported by the vehicle list.
func (v *Vehicle) SetDescription(nickname, model string) {
	v.lock.Lock()
	defer v.lock.Unlock()
	v.nickname = nickname
	v.model = model
}

func (v *Vehicle) Nickname() string {
	v.lock.RLock()
	defer v.lock.RUnlock()
	return v.nickname
}

func (v *Vehicle) Model() string {
	v.lock.RLock()
	defer v.lock.RUnlock()
	return v.model
}

// SetCommandTiming changes how often outstanding commands are polled and how long they may take.
// Zero values keep the current setting. It must be called before the first command is sent.
func (v *Vehicle) SetCommandTiming(pollInterval, deadline time.Duration) {
	if pollInterval > 0 {
		v.commands.PollInterval = pollInterval
	}
	if deadline > 0 {
		v.commands.Deadline = deadline
	}
}

// Outstanding returns the commands that have not reached a terminal status.
func (v *Vehicle) Outstanding() []*Request {
	return v.commands.Outstanding(v.vin)
}

// Close stops tracking outstanding commands. Commands that have not finished end with
// [CommandTimedOut].
func (v *Vehicle) Close() {
	v.commands.Close()
}
