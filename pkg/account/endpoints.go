package account

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/carnet-go/vehicle-command/internal/log"
	"github.com/carnet-go/vehicle-command/pkg/connector"
	"github.com/carnet-go/vehicle-command/pkg/protocol"
)

var errMissingRequestID = errors.New("response did not include a request id")

// Summary describes a vehicle enrolled in the account.
type Summary struct {
	VIN              string `json:"vin"`
	Role             string `json:"role"`
	EnrollmentStatus string `json:"enrollmentStatus"`
	Model            string `json:"model"`
	Nickname         string `json:"nickname"`
}

type envelope struct {
	Data json.RawMessage `json:"data"`
}

func vehiclePath(vin string, parts ...string) string {
	path := "/vehicle/v1/vehicles/" + url.PathEscape(vin)
	for _, p := range parts {
		path += "/" + strings.TrimPrefix(p, "/")
	}
	return path
}

// unwrap returns the "data" member of body, or body itself when there is none.
func unwrap(endpoint string, body []byte) (json.RawMessage, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, &protocol.ProtocolError{Endpoint: endpoint, Err: err}
	}
	if len(env.Data) == 0 {
		return body, nil
	}
	return env.Data, nil
}

// VehicleList fetches the vehicles enrolled in the account.
func (a *Account) VehicleList(ctx context.Context) ([]Summary, error) {
	const endpoint = "/vehicle/v2/vehicles"
	var rsp struct {
		Data []Summary `json:"data"`
	}
	if err := a.GetJSON(ctx, endpoint, &rsp); err != nil {
		return nil, err
	}
	vehicles := rsp.Data[:0]
	for _, v := range rsp.Data {
		if v.VIN == "" {
			log.Warning("Skipping vehicle without VIN")
			continue
		}
		vehicles = append(vehicles, v)
	}
	return vehicles, nil
}

// Capabilities fetches the capabilities document of vin.
func (a *Account) Capabilities(ctx context.Context, vin string) ([]byte, error) {
	return a.Get(ctx, vehiclePath(vin, "capabilities"))
}

// SelectiveStatus fetches the status documents of the given jobs. The result maps each job name
// returned by the backend to its document.
func (a *Account) SelectiveStatus(ctx context.Context, vin string, jobs ...string) (map[string]json.RawMessage, error) {
	if len(jobs) == 0 {
		return map[string]json.RawMessage{}, nil
	}
	endpoint := vehiclePath(vin, "selectivestatus") + "?jobs=" + url.QueryEscape(strings.Join(jobs, ","))
	status := make(map[string]json.RawMessage)
	if err := a.GetJSON(ctx, endpoint, &status); err != nil {
		return nil, err
	}
	return status, nil
}

// ParkingPosition fetches the parking position of vin. Returns nil without error if the backend
// reports the vehicle is moving.
func (a *Account) ParkingPosition(ctx context.Context, vin string) (json.RawMessage, error) {
	endpoint := vehiclePath(vin, "parkingposition")
	body, err := a.Get(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	return unwrap(endpoint, body)
}

// LastTrip fetches the most recent trip statistics of the given kind.
func (a *Account) LastTrip(ctx context.Context, vin, kind string) (json.RawMessage, error) {
	switch kind {
	case connector.TripShortTerm, connector.TripLongTerm, connector.TripCyclic:
	default:
		return nil, fmt.Errorf("unknown trip kind %q", kind)
	}
	endpoint := fmt.Sprintf("/vehicle/v1/trips/%s/%s/last", url.PathEscape(vin), kind)
	body, err := a.Get(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	return unwrap(endpoint, body)
}

// PendingRequests fetches the requests the backend has not yet completed for vin.
func (a *Account) PendingRequests(ctx context.Context, vin string) ([]connector.PendingRequest, error) {
	var rsp struct {
		Data []connector.PendingRequest `json:"data"`
	}
	if err := a.GetJSON(ctx, vehiclePath(vin, "pendingrequests"), &rsp); err != nil {
		return nil, err
	}
	return rsp.Data, nil
}

// SpinState fetches the S-PIN status of the account.
func (a *Account) SpinState(ctx context.Context) (*connector.SpinState, error) {
	var state connector.SpinState
	if err := a.GetJSON(ctx, "/vehicle/v1/spin/state", &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// Action sends a command to vin and returns the request id the backend assigned to it.
//
// path is relative to the vehicle (e.g., "access/lock"). Actions the backend executes
// synchronously answer 204 and yield an empty request id.
func (a *Account) Action(ctx context.Context, vin, method, path string, payload interface{}) (string, error) {
	endpoint := vehiclePath(vin, path)
	var body []byte
	if payload != nil {
		var err error
		if body, err = json.Marshal(payload); err != nil {
			return "", fmt.Errorf("error encoding %s payload: %w", path, err)
		}
	} else if method != http.MethodGet {
		body = []byte("{}")
	}
	rsp, err := a.do(ctx, method, endpoint, body)
	if err != nil {
		return "", err
	}
	if len(bytes.TrimSpace(rsp)) == 0 {
		return "", nil
	}
	var result struct {
		Data struct {
			RequestID json.RawMessage `json:"requestID"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rsp, &result); err != nil {
		return "", &protocol.ProtocolError{Endpoint: endpoint, Err: err, PossibleSuccess: true}
	}
	id, err := requestID(result.Data.RequestID)
	if err != nil {
		return "", &protocol.ProtocolError{Endpoint: endpoint, Err: err, PossibleSuccess: true}
	}
	return id, nil
}

// requestID accepts both string and numeric ids.
func requestID(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", errMissingRequestID
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s == "" {
			return "", errMissingRequestID
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("unexpected request id %s", raw)
	}
	return n.String(), nil
}
