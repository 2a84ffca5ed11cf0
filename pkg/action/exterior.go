package action

import (
	"fmt"
	"math"

	"github.com/carnet-go/vehicle-command/pkg/capability"
	"github.com/carnet-go/vehicle-command/pkg/protocol"
)

// HonkMode selects between flashing the lights only and honking as well.
type HonkMode string

const (
	ModeFlash        HonkMode = "flash"
	ModeHonkAndFlash HonkMode = "honk"
)

// HonkDuration is the duration, in seconds, requested by HonkAndFlash.
const HonkDuration = 15

// Position is a WGS84 coordinate.
type Position struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Valid returns true if p is a plausible coordinate.
func (p Position) Valid() bool {
	return !math.IsNaN(p.Latitude) && !math.IsNaN(p.Longitude) &&
		math.Abs(p.Latitude) <= 90 && math.Abs(p.Longitude) <= 180 &&
		!(p.Latitude == 0 && p.Longitude == 0)
}

type honkPayload struct {
	UserPosition Position `json:"userPosition"`
	Mode         HonkMode `json:"mode"`
	Duration     int      `json:"duration_s"`
}

// HonkAndFlash honks and/or flashes the lights. The backend requires the requester to be close to
// the vehicle; position is usually the vehicle's parking position.
func HonkAndFlash(mode HonkMode, position Position) (*Action, error) {
	switch mode {
	case ModeFlash, ModeHonkAndFlash:
	case "":
		mode = ModeFlash
	default:
		return nil, fmt.Errorf("unsupported honk and flash mode %q", mode)
	}
	if !position.Valid() {
		return nil, fmt.Errorf("invalid position %f,%f", position.Latitude, position.Longitude)
	}
	payload := &honkPayload{UserPosition: position, Mode: mode, Duration: HonkDuration}
	return post("honk and flash", KindHonkAndFlash, "honkandflash", protocol.ServiceHonkAndFlash, capability.OpHonkAndFlash, payload), nil
}
