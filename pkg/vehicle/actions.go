package vehicle

import (
	"context"
	"errors"
	"fmt"

	"github.com/carnet-go/vehicle-command/internal/log"
	"github.com/carnet-go/vehicle-command/pkg/action"
)

// Supports returns true if v advertises the capability and operations a requires.
func (v *Vehicle) Supports(a *action.Action) bool {
	return a != nil && v.Capabilities().Supported(string(a.Capability), a.Operations...)
}

func (v *Vehicle) checkSpin(ctx context.Context) error {
	state, err := v.api.SpinState(ctx)
	if err != nil {
		return fmt.Errorf("could not check S-PIN state: %w", err)
	}
	if !state.Usable() {
		log.Warning("Refusing to send S-PIN for %s: %d attempts remaining", v.vin, state.RemainingTries)
		return ErrSpinLocked
	}
	return nil
}

// Execute sends a to the vehicle and returns a handle that tracks the command.
//
// Execute returns an error wrapping [ErrUnsupported] without contacting the backend if the vehicle
// does not support a. If a carries the S-PIN, the S-PIN state is checked first. If a command of the
// same kind is outstanding, Execute returns a *protocol.ConflictError.
//
// Actions that the backend does not track (see [action.Action.Tracked]) return a nil Request once
// the backend accepts them.
func (v *Vehicle) Execute(ctx context.Context, a *action.Action) (*Request, error) {
	if a == nil {
		return nil, errors.New("no action")
	}
	if !v.Supports(a) {
		return nil, fmt.Errorf("%s: %w", a.Name, ErrUnsupported)
	}
	send := func(ctx context.Context) (string, error) {
		if a.RequiresSpin {
			if err := v.checkSpin(ctx); err != nil {
				return "", err
			}
		}
		log.Debug("Sending %s to %s", a.Name, v.vin)
		return v.api.Action(ctx, v.vin, a.Method, a.Path, a.Payload)
	}
	if !a.Tracked {
		_, err := send(ctx)
		return nil, err
	}
	return v.commands.Submit(ctx, v.vin, a.Kind, send)
}

func (v *Vehicle) execute(ctx context.Context, a *action.Action, err error) (*Request, error) {
	if err != nil {
		return nil, err
	}
	return v.Execute(ctx, a)
}

// Lock locks the doors.
func (v *Vehicle) Lock(ctx context.Context, spin string) (*Request, error) {
	a, err := action.Lock(spin)
	return v.execute(ctx, a, err)
}

// Unlock unlocks the doors.
func (v *Vehicle) Unlock(ctx context.Context, spin string) (*Request, error) {
	a, err := action.Unlock(spin)
	return v.execute(ctx, a, err)
}

// StartClimate starts climatisation. If settings is nil, the vehicle's stored settings apply.
func (v *Vehicle) StartClimate(ctx context.Context, settings *action.ClimateSettings) (*Request, error) {
	a, err := action.StartClimate(settings)
	return v.execute(ctx, a, err)
}

func (v *Vehicle) StopClimate(ctx context.Context) (*Request, error) {
	return v.Execute(ctx, action.StopClimate())
}

func (v *Vehicle) SetClimateSettings(ctx context.Context, settings *action.ClimateSettings) (*Request, error) {
	a, err := action.SetClimateSettings(settings)
	return v.execute(ctx, a, err)
}

func (v *Vehicle) StartCharging(ctx context.Context) (*Request, error) {
	return v.Execute(ctx, action.StartCharging())
}

func (v *Vehicle) StopCharging(ctx context.Context) (*Request, error) {
	return v.Execute(ctx, action.StopCharging())
}

func (v *Vehicle) SetChargingSettings(ctx context.Context, settings *action.ChargingSettings) (*Request, error) {
	a, err := action.SetChargingSettings(settings)
	return v.execute(ctx, a, err)
}

func (v *Vehicle) SetBatteryCareMode(ctx context.Context, mode action.BatteryCareMode) (*Request, error) {
	a, err := action.SetBatteryCareMode(mode)
	return v.execute(ctx, a, err)
}

func (v *Vehicle) SetBatterySupport(ctx context.Context, enabled bool) (*Request, error) {
	return v.Execute(ctx, action.SetBatterySupport(enabled))
}

func (v *Vehicle) StartWindowHeating(ctx context.Context) (*Request, error) {
	return v.Execute(ctx, action.StartWindowHeating())
}

func (v *Vehicle) StopWindowHeating(ctx context.Context) (*Request, error) {
	return v.Execute(ctx, action.StopWindowHeating())
}

// StartAuxiliaryHeating starts the fuel operated heater for durationMin minutes (zero for the
// vehicle's default).
func (v *Vehicle) StartAuxiliaryHeating(ctx context.Context, spin string, durationMin int) (*Request, error) {
	a, err := action.StartAuxiliaryHeating(spin, durationMin)
	return v.execute(ctx, a, err)
}

func (v *Vehicle) StopAuxiliaryHeating(ctx context.Context) (*Request, error) {
	return v.Execute(ctx, action.StopAuxiliaryHeating())
}

// HonkAndFlash flashes the lights, and honks if mode is [action.ModeHonkAndFlash]. The backend
// requires the requester's position, so the vehicle's parking position must be known (see
// [Vehicle.Update]).
func (v *Vehicle) HonkAndFlash(ctx context.Context, mode action.HonkMode) (*Request, error) {
	position, ok := v.Position()
	if !ok {
		return nil, ErrNoPosition
	}
	a, err := action.HonkAndFlash(mode, position)
	return v.execute(ctx, a, err)
}

// Wakeup asks the vehicle to publish fresh status. Call Update after the vehicle had time to
// respond.
func (v *Vehicle) Wakeup(ctx context.Context) error {
	_, err := v.Execute(ctx, action.Wakeup())
	return err
}
