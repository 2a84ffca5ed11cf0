// Package action builds the commands accepted by the vendor backend.
//
// Each constructor returns an [Action] describing the endpoint, the capability and operations the
// vehicle must advertise for the command, and the JSON payload. Actions are executed by
// [github.com/carnet-go/vehicle-command/pkg/vehicle.Vehicle.Execute].
package action

import (
	"errors"
	"net/http"
	"regexp"

	"github.com/carnet-go/vehicle-command/pkg/capability"
	"github.com/carnet-go/vehicle-command/pkg/protocol"
)

// Command kinds. At most one command of each kind may be outstanding per vehicle.
const (
	KindAccess           = "access"
	KindClimatisation    = "climatisation"
	KindCharging         = "charging"
	KindChargingCare     = "chargingCare"
	KindBatterySupport   = "batterySupport"
	KindWindowHeating    = "windowHeating"
	KindAuxiliaryHeating = "auxiliaryHeating"
	KindHonkAndFlash     = "honkAndFlash"
	KindWakeup           = "wakeup"
)

var (
	ErrInvalidSpin = errors.New("S-PIN must be 4 digits")
)

var spinPattern = regexp.MustCompile(`^[0-9]{4}$`)

// Action is a command ready to be sent to a vehicle.
type Action struct {
	// Name is a human readable name, e.g. "lock".
	Name string
	// Kind groups actions that must not run concurrently on the same vehicle.
	Kind string
	// Method and Path address the endpoint relative to the vehicle.
	Method string
	Path   string
	// Capability and Operations the vehicle must advertise.
	Capability protocol.Service
	Operations []string
	// RequiresSpin is true if Payload carries the S-PIN.
	RequiresSpin bool
	// Tracked is false for actions the backend executes without a request id.
	Tracked bool
	Payload interface{}
}

// SpinPayload carries the S-PIN.
type SpinPayload struct {
	Spin string `json:"spin"`
}

func validateSpin(spin string) error {
	if !spinPattern.MatchString(spin) {
		return ErrInvalidSpin
	}
	return nil
}

func post(name, kind, path string, service protocol.Service, op string, payload interface{}) *Action {
	return &Action{
		Name:       name,
		Kind:       kind,
		Method:     http.MethodPost,
		Path:       path,
		Capability: service,
		Operations: []string{op},
		Tracked:    true,
		Payload:    payload,
	}
}

func put(name, kind, path string, service protocol.Service, op string, payload interface{}) *Action {
	a := post(name, kind, path, service, op, payload)
	a.Method = http.MethodPut
	return a
}

// Lock locks the doors. Requires the S-PIN.
func Lock(spin string) (*Action, error) {
	if err := validateSpin(spin); err != nil {
		return nil, err
	}
	a := post("lock", KindAccess, "access/lock", protocol.ServiceAccess, capability.OpAccessLock, &SpinPayload{Spin: spin})
	a.RequiresSpin = true
	return a, nil
}

// Unlock unlocks the doors. Requires the S-PIN.
func Unlock(spin string) (*Action, error) {
	if err := validateSpin(spin); err != nil {
		return nil, err
	}
	a := post("unlock", KindAccess, "access/unlock", protocol.ServiceAccess, capability.OpAccessUnlock, &SpinPayload{Spin: spin})
	a.RequiresSpin = true
	return a, nil
}

// Wakeup asks the vehicle to connect and publish fresh status. The backend does not track the
// request.
func Wakeup() *Action {
	a := post("wakeup", KindWakeup, "vehiclewakeuptrigger", protocol.ServiceVehicleWakeUp, capability.OpVehicleWakeUpTrigger, struct{}{})
	a.Tracked = false
	return a
}
