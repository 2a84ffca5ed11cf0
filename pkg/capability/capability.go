// Package capability interprets the capabilities document of a vehicle.
//
// The backend lists each feature (a capability, such as "access" or "charging") with its
// enablement, the license and permission status of the feature, and the operations the vehicle
// accepts for it. Whether a feature can be used is a pure function of this document.
package capability

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/carnet-go/vehicle-command/internal/log"
)

// Status codes that make a capability unusable regardless of its isEnabled flag.
const (
	StatusMissingLicense     = "MissingLicense"
	StatusLicenseExpired     = "LicenseExpired"
	StatusVehicleDisabled    = "VehicleDisabled"
	StatusInsufficientRights = "InsufficientRights"
	StatusDisabledByUser     = "DisabledByUser"
)

// BlockingStatuses is the set of status codes that block a capability.
var BlockingStatuses = map[string]bool{
	StatusMissingLicense:     true,
	StatusLicenseExpired:     true,
	StatusVehicleDisabled:    true,
	StatusInsufficientRights: true,
}

// Descriptor describes one capability.
type Descriptor struct {
	ID                   string
	IsEnabled            bool
	UserDisablingAllowed bool
	Status               []string
	Operations           map[string]bool
	Parameters           map[string]string
	ExpirationDate       string
}

// Blocked returns the first blocking status of d, if any.
func (d *Descriptor) Blocked() (string, bool) {
	for _, s := range d.Status {
		if BlockingStatuses[s] {
			return s, true
		}
	}
	return "", false
}

// Usable returns true if the capability is enabled and not blocked.
func (d *Descriptor) Usable() bool {
	if d == nil || !d.IsEnabled {
		return false
	}
	_, blocked := d.Blocked()
	return !blocked
}

// HasOperations returns true if every op is available.
func (d *Descriptor) HasOperations(ops ...string) bool {
	for _, op := range ops {
		if !d.Operations[op] {
			return false
		}
	}
	return true
}

// Set is the parsed capabilities document of a vehicle. The zero value supports nothing.
type Set struct {
	descriptors map[string]*Descriptor
	// Parameters are vehicle-wide parameters published alongside the capabilities.
	Parameters map[string]string
}

// Get returns the descriptor of capability id, or nil.
func (s *Set) Get(id string) *Descriptor {
	if s == nil {
		return nil
	}
	return s.descriptors[id]
}

// IDs returns the ids of all capabilities in s, sorted.
func (s *Set) IDs() []string {
	if s == nil {
		return nil
	}
	ids := make([]string, 0, len(s.descriptors))
	for id := range s.descriptors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Enabled returns true if capability id is usable, ignoring operations.
func (s *Set) Enabled(id string) bool {
	return s.Get(id).Usable()
}

// Supported returns true if capability id exists, is enabled, carries no blocking status, and
// offers every operation in ops.
func (s *Set) Supported(id string, ops ...string) bool {
	d := s.Get(id)
	return d.Usable() && d.HasOperations(ops...)
}

type wireDocument struct {
	Capabilities json.RawMessage `json:"capabilities"`
	Parameters   json.RawMessage `json:"parameters"`
}

type wireDescriptor struct {
	ID                   string          `json:"id"`
	IsEnabled            bool            `json:"isEnabled"`
	UserDisablingAllowed bool            `json:"userDisablingAllowed"`
	Status               json.RawMessage `json:"status"`
	Operations           json.RawMessage `json:"operations"`
	Parameters           json.RawMessage `json:"parameters"`
	ExpirationDate       string          `json:"expirationDate"`
}

// Parse decodes a capabilities document. The capability list may be a JSON array or an object keyed
// by capability id. Entries that cannot be decoded are skipped.
func Parse(doc []byte) (*Set, error) {
	var wire wireDocument
	if err := json.Unmarshal(doc, &wire); err != nil {
		return nil, fmt.Errorf("invalid capabilities document: %w", err)
	}
	set := &Set{
		descriptors: make(map[string]*Descriptor),
		Parameters:  parseParameters(wire.Parameters),
	}
	entries := make(map[string]json.RawMessage)
	switch firstByte(wire.Capabilities) {
	case '[':
		var list []json.RawMessage
		if err := json.Unmarshal(wire.Capabilities, &list); err != nil {
			return nil, fmt.Errorf("invalid capabilities list: %w", err)
		}
		for i, raw := range list {
			entries["#"+strconv.Itoa(i)] = raw
		}
	case '{':
		if err := json.Unmarshal(wire.Capabilities, &entries); err != nil {
			return nil, fmt.Errorf("invalid capabilities object: %w", err)
		}
	case 0, 'n':
		log.Warning("Capabilities document lists no capabilities")
	default:
		return nil, fmt.Errorf("unexpected capabilities type")
	}

	for key, raw := range entries {
		var w wireDescriptor
		if err := json.Unmarshal(raw, &w); err != nil {
			log.Warning("Skipping capability %s: %s", key, err)
			continue
		}
		if w.ID == "" && !strings.HasPrefix(key, "#") {
			w.ID = key
		}
		if w.ID == "" {
			log.Warning("Skipping capability without id")
			continue
		}
		set.descriptors[w.ID] = &Descriptor{
			ID:                   w.ID,
			IsEnabled:            w.IsEnabled,
			UserDisablingAllowed: w.UserDisablingAllowed,
			Status:               parseStatus(w.Status),
			Operations:           parseOperations(w.Operations),
			Parameters:           parseParameters(w.Parameters),
			ExpirationDate:       w.ExpirationDate,
		}
	}
	return set, nil
}

func firstByte(raw json.RawMessage) byte {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return 0
	}
	return trimmed[0]
}

// scalar renders a JSON string, number, or boolean as a string.
func scalar(raw json.RawMessage) (string, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), true
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return strconv.FormatBool(b), true
	}
	return "", false
}

func parseStatus(raw json.RawMessage) []string {
	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err != nil {
		if s, ok := scalar(raw); ok && s != "" {
			return []string{s}
		}
		return nil
	}
	status := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := scalar(item); ok {
			status = append(status, s)
		}
	}
	return status
}

type wireOperation struct {
	ID string `json:"id"`
}

func parseOperations(raw json.RawMessage) map[string]bool {
	ops := make(map[string]bool)
	switch firstByte(raw) {
	case '{':
		var byKey map[string]json.RawMessage
		if err := json.Unmarshal(raw, &byKey); err != nil {
			log.Warning("Skipping malformed operations: %s", err)
			return ops
		}
		for key, value := range byKey {
			var op wireOperation
			if err := json.Unmarshal(value, &op); err == nil && op.ID != "" {
				ops[op.ID] = true
			} else {
				ops[key] = true
			}
		}
	case '[':
		var list []json.RawMessage
		if err := json.Unmarshal(raw, &list); err != nil {
			log.Warning("Skipping malformed operations: %s", err)
			return ops
		}
		for _, item := range list {
			var op wireOperation
			if err := json.Unmarshal(item, &op); err == nil && op.ID != "" {
				ops[op.ID] = true
			} else if s, ok := scalar(item); ok && s != "" {
				ops[s] = true
			}
		}
	}
	return ops
}

type wireParameter struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

func parseParameters(raw json.RawMessage) map[string]string {
	params := make(map[string]string)
	switch firstByte(raw) {
	case '{':
		var byKey map[string]json.RawMessage
		if err := json.Unmarshal(raw, &byKey); err != nil {
			return params
		}
		for key, value := range byKey {
			if s, ok := scalar(value); ok {
				params[key] = s
			}
		}
	case '[':
		var list []wireParameter
		if err := json.Unmarshal(raw, &list); err != nil {
			return params
		}
		for _, p := range list {
			if s, ok := scalar(p.Value); ok && p.Key != "" {
				params[p.Key] = s
			}
		}
	}
	return params
}
