package action

import (
	"fmt"

	"github.com/carnet-go/vehicle-command/pkg/capability"
	"github.com/carnet-go/vehicle-command/pkg/protocol"
)

// Target temperature bounds, in degrees Celsius.
const (
	MinTargetTemperature     = 15.5
	MaxTargetTemperature     = 30.0
	DefaultTargetTemperature = 20.0
)

// ClimateSettings are the climatisation settings. Nil options are omitted and left unchanged by the
// backend.
type ClimateSettings struct {
	TargetTemperature                 float64 `json:"targetTemperature"`
	TargetTemperatureUnit             string  `json:"targetTemperatureUnit"`
	ClimatisationWithoutExternalPower *bool   `json:"climatisationWithoutExternalPower,omitempty"`
	ClimatizationAtUnlock             *bool   `json:"climatizationAtUnlock,omitempty"`
	WindowHeatingEnabled              *bool   `json:"windowHeatingEnabled,omitempty"`
	ZoneFrontLeftEnabled              *bool   `json:"zoneFrontLeftEnabled,omitempty"`
	ZoneFrontRightEnabled             *bool   `json:"zoneFrontRightEnabled,omitempty"`
}

// NewClimateSettings returns settings with the given target temperature in degrees Celsius.
func NewClimateSettings(celsius float64) (*ClimateSettings, error) {
	s := &ClimateSettings{TargetTemperature: celsius, TargetTemperatureUnit: "celsius"}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate returns an error if the target temperature is out of range.
func (s *ClimateSettings) Validate() error {
	if s.TargetTemperature < MinTargetTemperature || s.TargetTemperature > MaxTargetTemperature {
		return fmt.Errorf("target temperature must be between %.1f and %.1f °C, got %.1f",
			MinTargetTemperature, MaxTargetTemperature, s.TargetTemperature)
	}
	if s.TargetTemperatureUnit == "" {
		s.TargetTemperatureUnit = "celsius"
	}
	return nil
}

// StartClimate starts climatisation. If settings is nil, the vehicle's stored settings apply.
func StartClimate(settings *ClimateSettings) (*Action, error) {
	var payload interface{} = struct{}{}
	if settings != nil {
		if err := settings.Validate(); err != nil {
			return nil, err
		}
		payload = settings
	}
	return post("start climatisation", KindClimatisation, "climatisation/start", protocol.ServiceClimatisation, capability.OpClimatisationStart, payload), nil
}

// StopClimate stops climatisation.
func StopClimate() *Action {
	return post("stop climatisation", KindClimatisation, "climatisation/stop", protocol.ServiceClimatisation, capability.OpClimatisationStop, struct{}{})
}

// SetClimateSettings changes the climatisation settings without starting climatisation.
func SetClimateSettings(settings *ClimateSettings) (*Action, error) {
	if settings == nil {
		return nil, fmt.Errorf("no climatisation settings provided")
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return put("set climatisation settings", KindClimatisation, "climatisation/settings", protocol.ServiceClimatisation, capability.OpClimatisationSettings, settings), nil
}

// StartWindowHeating starts front and rear window heating.
func StartWindowHeating() *Action {
	return post("start window heating", KindWindowHeating, "windowheating/start", protocol.ServiceClimatisation, capability.OpWindowHeatingStart, struct{}{})
}

// StopWindowHeating stops window heating.
func StopWindowHeating() *Action {
	return post("stop window heating", KindWindowHeating, "windowheating/stop", protocol.ServiceClimatisation, capability.OpWindowHeatingStop, struct{}{})
}

// AuxiliaryHeatingPayload starts the fuel operated auxiliary heater.
type AuxiliaryHeatingPayload struct {
	Spin        string `json:"spin"`
	DurationMin int    `json:"duration_min,omitempty"`
}

// StartAuxiliaryHeating starts the auxiliary heater for durationMin minutes, or the vehicle's
// default duration if zero. Requires the S-PIN.
func StartAuxiliaryHeating(spin string, durationMin int) (*Action, error) {
	if err := validateSpin(spin); err != nil {
		return nil, err
	}
	if durationMin < 0 || durationMin > 60 || durationMin%10 != 0 {
		return nil, fmt.Errorf("auxiliary heating duration must be a multiple of 10 up to 60 minutes, got %d", durationMin)
	}
	payload := &AuxiliaryHeatingPayload{Spin: spin, DurationMin: durationMin}
	a := post("start auxiliary heating", KindAuxiliaryHeating, "auxiliaryheating/start", protocol.ServiceAuxiliaryHeating, capability.OpAuxiliaryHeatingStart, payload)
	a.RequiresSpin = true
	return a, nil
}

// StopAuxiliaryHeating stops the auxiliary heater.
func StopAuxiliaryHeating() *Action {
	return post("stop auxiliary heating", KindAuxiliaryHeating, "auxiliaryheating/stop", protocol.ServiceAuxiliaryHeating, capability.OpAuxiliaryHeatingStop, struct{}{})
}
