package proxy

import (
	"errors"
	"fmt"

	"github.com/carnet-go/vehicle-command/pkg/action"
	"github.com/carnet-go/vehicle-command/pkg/vehicle"
)

var (
	// ErrCommandNotImplemented indicates a command name is known but not supported by the SDK.
	ErrCommandNotImplemented = errors.New("command not implemented")

	// ErrUnknownCommand indicates the command name is not recognized.
	ErrUnknownCommand = errors.New("unknown command")
)

// ActionBuilder produces the action for a command. Some commands depend on vehicle state, so the
// action is built once the vehicle is known.
type ActionBuilder func(car Vehicle) (*action.Action, error)

// RequestParameters holds the decoded JSON body of a command request.
type RequestParameters map[string]interface{}

func missingParamError(key string) error {
	return fmt.Errorf("%w: missing %s param", ErrInvalidParameter, key)
}

func invalidParamError(key string) error {
	return fmt.Errorf("%w: invalid %s param", ErrInvalidParameter, key)
}

func (p RequestParameters) getString(key string, required bool) (string, error) {
	if value, ok := p[key]; ok {
		if s, ok := value.(string); ok {
			return s, nil
		}
		return "", invalidParamError(key)
	} else if !required {
		return "", nil
	}
	return "", missingParamError(key)
}

func (p RequestParameters) getBool(key string, required bool) (bool, error) {
	if value, ok := p[key]; ok {
		if b, ok := value.(bool); ok {
			return b, nil
		}
		return false, invalidParamError(key)
	} else if !required {
		return false, nil
	}
	return false, missingParamError(key)
}

func (p RequestParameters) getNumber(key string, required bool) (float64, error) {
	if value, ok := p[key]; ok {
		switch n := value.(type) {
		case float64:
			return n, nil
		case int:
			return float64(n), nil
		}
		return 0, invalidParamError(key)
	} else if !required {
		return 0, nil
	}
	return 0, missingParamError(key)
}

// build wraps an action that does not depend on vehicle state.
func build(a *action.Action, err error) (ActionBuilder, error) {
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidParameter, err)
	}
	return func(Vehicle) (*action.Action, error) { return a, nil }, nil
}

func honk(mode action.HonkMode) ActionBuilder {
	return func(car Vehicle) (*action.Action, error) {
		position, ok := car.Position()
		if !ok {
			return nil, vehicle.ErrNoPosition
		}
		return action.HonkAndFlash(mode, position)
	}
}

func (p RequestParameters) climateSettings(required bool) (*action.ClimateSettings, error) {
	temperature, err := p.getNumber("temperature", required)
	if err != nil {
		return nil, err
	}
	if temperature == 0 {
		return nil, nil
	}
	settings, err := action.NewClimateSettings(temperature)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidParameter, err)
	}
	if _, ok := p["without_external_power"]; ok {
		on, err := p.getBool("without_external_power", false)
		if err != nil {
			return nil, err
		}
		settings.ClimatisationWithoutExternalPower = &on
	}
	return settings, nil
}

// ExtractCommandAction maps a command name and its parameters to a function that builds the
// action for a vehicle. Parameter errors wrap [ErrInvalidParameter].
func ExtractCommandAction(command string, params RequestParameters) (ActionBuilder, error) {
	switch command {
	// Access
	case "door_lock", "lock":
		spin, err := params.getString("spin", true)
		if err != nil {
			return nil, err
		}
		return build(action.Lock(spin))
	case "door_unlock", "unlock":
		spin, err := params.getString("spin", true)
		if err != nil {
			return nil, err
		}
		return build(action.Unlock(spin))
	// Climate controls
	case "climate_start", "auto_conditioning_start":
		settings, err := params.climateSettings(false)
		if err != nil {
			return nil, err
		}
		return build(action.StartClimate(settings))
	case "climate_stop", "auto_conditioning_stop":
		return build(action.StopClimate(), nil)
	case "climate_settings", "set_temps":
		settings, err := params.climateSettings(true)
		if err != nil {
			return nil, err
		}
		return build(action.SetClimateSettings(settings))
	case "window_heating_start":
		return build(action.StartWindowHeating(), nil)
	case "window_heating_stop":
		return build(action.StopWindowHeating(), nil)
	case "aux_heating_start":
		spin, err := params.getString("spin", true)
		if err != nil {
			return nil, err
		}
		duration, err := params.getNumber("duration_min", false)
		if err != nil {
			return nil, err
		}
		return build(action.StartAuxiliaryHeating(spin, int(duration)))
	case "aux_heating_stop":
		return build(action.StopAuxiliaryHeating(), nil)
	// Charging
	case "charge_start":
		return build(action.StartCharging(), nil)
	case "charge_stop":
		return build(action.StopCharging(), nil)
	case "set_charge_limit":
		percent, err := params.getNumber("percent", true)
		if err != nil {
			return nil, err
		}
		return build(action.SetChargingSettings(&action.ChargingSettings{TargetSOCPercent: int(percent)}))
	case "set_charging_amps", "set_charge_current":
		settings := &action.ChargingSettings{}
		switch current := params["current"].(type) {
		case string:
			settings.MaxChargeCurrentAC = action.ChargeCurrent(current)
		case float64:
			settings.MaxChargeCurrentACAmpere = int(current)
		case nil:
			return nil, missingParamError("current")
		default:
			return nil, invalidParamError("current")
		}
		return build(action.SetChargingSettings(settings))
	case "battery_care":
		on, err := params.getBool("on", true)
		if err != nil {
			return nil, err
		}
		mode := action.BatteryCareDeactivated
		if on {
			mode = action.BatteryCareActivated
		}
		return build(action.SetBatteryCareMode(mode))
	case "battery_support":
		on, err := params.getBool("on", true)
		if err != nil {
			return nil, err
		}
		return build(action.SetBatterySupport(on), nil)
	// Exterior
	case "flash_lights":
		return honk(action.ModeFlash), nil
	case "honk_horn":
		return honk(action.ModeHonkAndFlash), nil
	case "wake_up":
		return build(action.Wakeup(), nil)
	// Known names of other vendors' APIs that this backend has no equivalent for
	case "remote_start_drive", "actuate_trunk", "sun_roof_control", "trigger_homelink":
		return nil, ErrCommandNotImplemented
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, command)
}
