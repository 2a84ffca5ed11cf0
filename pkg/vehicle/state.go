package vehicle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/carnet-go/vehicle-command/internal/log"
	"github.com/carnet-go/vehicle-command/pkg/action"
	"github.com/carnet-go/vehicle-command/pkg/capability"
	"github.com/carnet-go/vehicle-command/pkg/connector"
	"github.com/carnet-go/vehicle-command/pkg/protocol"
)

// Keys of the raw state that are not selective status jobs.
const (
	StateParkingPosition = "parkingposition"
	StateIsMoving        = "isMoving"
	StateTripLast        = "trip_last"
	StateTripLongTerm    = "trip_longterm"
	StateTripRefuel      = "trip_refuel"
)

var tripStates = []struct {
	kind string
	key  string
}{
	{connector.TripShortTerm, StateTripLast},
	{connector.TripLongTerm, StateTripLongTerm},
	{connector.TripCyclic, StateTripRefuel},
}

// Discover fetches the capabilities document.
func (v *Vehicle) Discover(ctx context.Context) error {
	doc, err := v.api.Capabilities(ctx, v.vin)
	if err != nil {
		return fmt.Errorf("could not fetch capabilities of %s: %w", v.vin, err)
	}
	set, err := capability.Parse(doc)
	if err != nil {
		return &protocol.ProtocolError{Endpoint: "capabilities", Err: err}
	}
	v.lock.Lock()
	v.capabilities = set
	v.discovered = true
	v.lock.Unlock()
	log.Debug("%s capabilities: %s", v.vin, strings.Join(set.IDs(), ", "))
	return nil
}

// Capabilities returns the capabilities discovered so far. The result is nil before Discover
// succeeds; a nil Set supports nothing.
func (v *Vehicle) Capabilities() *capability.Set {
	v.lock.RLock()
	defer v.lock.RUnlock()
	return v.capabilities
}

// statusJobs returns the selective status jobs worth requesting. Services the capabilities
// document lists but disables are skipped; unlisted services are requested anyway since several
// status jobs have no capability of their own.
func statusJobs(set *capability.Set) []string {
	jobs := make([]string, 0, len(protocol.StatusServices))
	for _, service := range protocol.StatusServices {
		if d := set.Get(string(service)); d != nil && !d.Usable() {
			continue
		}
		jobs = append(jobs, string(service))
	}
	return jobs
}

func decode(raw json.RawMessage) (interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var value interface{}
	if err := dec.Decode(&value); err != nil {
		return nil, err
	}
	return value, nil
}

// Update refreshes the raw state. It fetches the selective status of the vehicle's services and,
// if the vehicle supports them, its parking position and trip statistics. The capabilities are
// discovered first if necessary.
//
// Partial failures do not discard the documents that were fetched; the returned error joins the
// individual failures.
func (v *Vehicle) Update(ctx context.Context) error {
	v.lock.RLock()
	discovered := v.discovered
	v.lock.RUnlock()
	if !discovered {
		if err := v.Discover(ctx); err != nil {
			return err
		}
	}
	set := v.Capabilities()
	updates := make(map[string]interface{})
	var errs []error

	status, err := v.api.SelectiveStatus(ctx, v.vin, statusJobs(set)...)
	if err != nil {
		errs = append(errs, fmt.Errorf("selective status: %w", err))
	}
	for job, raw := range status {
		value, err := decode(raw)
		if err != nil {
			log.Warning("Skipping malformed %s status of %s: %s", job, v.vin, err)
			continue
		}
		updates[job] = value
	}

	if set.Enabled(string(protocol.ServiceParkingPosition)) {
		raw, err := v.api.ParkingPosition(ctx, v.vin)
		switch {
		case err != nil:
			errs = append(errs, fmt.Errorf("parking position: %w", err))
		case raw == nil:
			updates[StateIsMoving] = true
			updates[StateParkingPosition] = map[string]interface{}{}
		default:
			if value, err := decode(raw); err == nil {
				updates[StateIsMoving] = false
				updates[StateParkingPosition] = value
			} else {
				errs = append(errs, &protocol.ProtocolError{Endpoint: "parkingposition", Err: err})
			}
		}
	}

	if set.Enabled(string(protocol.ServiceTripStatistics)) {
		for _, trip := range tripStates {
			raw, err := v.api.LastTrip(ctx, v.vin, trip.kind)
			if err != nil {
				var permanent *protocol.PermanentApiError
				if errors.As(err, &permanent) {
					log.Debug("No %s trip data for %s: %s", trip.kind, v.vin, err)
					continue
				}
				errs = append(errs, fmt.Errorf("%s trip: %w", trip.kind, err))
				continue
			}
			if raw == nil {
				continue
			}
			if value, err := decode(raw); err == nil {
				updates[trip.key] = value
			}
		}
	}

	v.lock.Lock()
	for key, value := range updates {
		v.state[key] = value
	}
	if len(updates) > 0 {
		v.updatedAt = v.now()
	}
	v.lock.Unlock()
	return errors.Join(errs...)
}

// UpdatedAt returns when the raw state last changed.
func (v *Vehicle) UpdatedAt() time.Time {
	v.lock.RLock()
	defer v.lock.RUnlock()
	return v.updatedAt
}

// RawState returns a copy of the top level of the raw state. Nested values are shared and must not
// be modified.
func (v *Vehicle) RawState() map[string]interface{} {
	v.lock.RLock()
	defer v.lock.RUnlock()
	out := make(map[string]interface{}, len(v.state))
	for k, value := range v.state {
		out[k] = value
	}
	return out
}

// Lookup returns the raw state value at path. Path components are separated by dots; numeric
// components index into arrays. ok is false if the path does not exist. A JSON null at the end of
// the path exists and yields a nil value.
func (v *Vehicle) Lookup(path string) (value interface{}, ok bool) {
	v.lock.RLock()
	defer v.lock.RUnlock()
	return lookup(v.state, path)
}

func lookup(root interface{}, path string) (interface{}, bool) {
	if path == "" {
		return root, true
	}
	node := root
	for _, key := range strings.Split(path, ".") {
		switch n := node.(type) {
		case map[string]interface{}:
			next, ok := n[key]
			if !ok {
				return nil, false
			}
			node = next
		case []interface{}:
			i, err := strconv.Atoi(key)
			if err != nil || i < 0 || i >= len(n) {
				return nil, false
			}
			node = n[i]
		default:
			return nil, false
		}
	}
	return node, true
}

// Position returns the last known parking position.
func (v *Vehicle) Position() (action.Position, bool) {
	lat, ok := v.Lookup(StateParkingPosition + ".lat")
	if !ok {
		return action.Position{}, false
	}
	lon, ok := v.Lookup(StateParkingPosition + ".lon")
	if !ok {
		return action.Position{}, false
	}
	latitude, ok1 := toFloat(lat)
	longitude, ok2 := toFloat(lon)
	if !ok1 || !ok2 {
		return action.Position{}, false
	}
	p := action.Position{Latitude: latitude, Longitude: longitude}
	return p, p.Valid()
}

func toFloat(value interface{}) (float64, bool) {
	switch n := value.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}
