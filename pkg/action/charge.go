package action

import (
	"fmt"

	"github.com/carnet-go/vehicle-command/pkg/capability"
	"github.com/carnet-go/vehicle-command/pkg/protocol"
)

// ChargeCurrent selects the AC charging current limit.
type ChargeCurrent string

const (
	ChargeCurrentMaximum ChargeCurrent = "maximum"
	ChargeCurrentReduced ChargeCurrent = "reduced"
)

// BatteryCareMode toggles the vendor's battery preservation strategy.
type BatteryCareMode string

const (
	BatteryCareActivated   BatteryCareMode = "activated"
	BatteryCareDeactivated BatteryCareMode = "deactivated"
)

// ChargeCurrentLimits lists the AC current limits, in amperes, accepted by the backend.
var ChargeCurrentLimits = []int{5, 10, 13, 16, 32}

// ChargingSettings are the charging settings of a vehicle. Zero fields are omitted and left
// unchanged by the backend.
type ChargingSettings struct {
	MaxChargeCurrentAC          ChargeCurrent `json:"maxChargeCurrentAC,omitempty"`
	MaxChargeCurrentACAmpere    int           `json:"maxChargeCurrentAC_A,omitempty"`
	AutoUnlockPlugWhenChargedAC string        `json:"autoUnlockPlugWhenChargedAC,omitempty"`
	TargetSOCPercent            int           `json:"targetSOC_pct,omitempty"`
}

// Validate returns an error if s contains a value the backend rejects.
func (s *ChargingSettings) Validate() error {
	switch s.MaxChargeCurrentAC {
	case "", ChargeCurrentMaximum, ChargeCurrentReduced:
	default:
		return fmt.Errorf("unsupported charge current %q", s.MaxChargeCurrentAC)
	}
	if s.MaxChargeCurrentACAmpere != 0 {
		allowed := false
		for _, limit := range ChargeCurrentLimits {
			if limit == s.MaxChargeCurrentACAmpere {
				allowed = true
				break
			}
		}
		if !allowed {
			return fmt.Errorf("unsupported charge current limit %dA", s.MaxChargeCurrentACAmpere)
		}
	}
	switch s.AutoUnlockPlugWhenChargedAC {
	case "", "on", "off", "permanent":
	default:
		return fmt.Errorf("unsupported plug unlock mode %q", s.AutoUnlockPlugWhenChargedAC)
	}
	if s.TargetSOCPercent != 0 && (s.TargetSOCPercent < 50 || s.TargetSOCPercent > 100 || s.TargetSOCPercent%10 != 0) {
		return fmt.Errorf("target state of charge must be a multiple of 10 between 50 and 100, got %d", s.TargetSOCPercent)
	}
	if *s == (ChargingSettings{}) {
		return fmt.Errorf("no charging setting provided")
	}
	return nil
}

// StartCharging starts charging.
func StartCharging() *Action {
	return post("start charging", KindCharging, "charging/start", protocol.ServiceCharging, capability.OpChargingStart, struct{}{})
}

// StopCharging stops charging.
func StopCharging() *Action {
	return post("stop charging", KindCharging, "charging/stop", protocol.ServiceCharging, capability.OpChargingStop, struct{}{})
}

// SetChargingSettings changes the charging settings.
func SetChargingSettings(settings *ChargingSettings) (*Action, error) {
	if settings == nil {
		return nil, fmt.Errorf("no charging setting provided")
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return put("set charging settings", KindCharging, "charging/settings", protocol.ServiceCharging, capability.OpChargingSettings, settings), nil
}

// SetBatteryCareMode activates or deactivates battery care.
func SetBatteryCareMode(mode BatteryCareMode) (*Action, error) {
	switch mode {
	case BatteryCareActivated, BatteryCareDeactivated:
	default:
		return nil, fmt.Errorf("unsupported battery care mode %q", mode)
	}
	payload := map[string]BatteryCareMode{"batteryCareMode": mode}
	return put("set battery care mode", KindChargingCare, "charging/care/settings", protocol.ServiceBatteryChargingCare, capability.OpChargingCareSettings, payload), nil
}

// SetBatterySupport enables or disables use of the high voltage battery to supply the 12V network
// while parked.
func SetBatterySupport(enabled bool) *Action {
	payload := map[string]bool{"batterySupportEnabled": enabled}
	return put("set battery support", KindBatterySupport, "readiness/batterysupport", protocol.ServiceBatterySupport, capability.OpReadinessBatterySupport, payload)
}
