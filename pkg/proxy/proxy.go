package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/carnet-go/vehicle-command/internal/log"
	"github.com/carnet-go/vehicle-command/pkg/account"
	"github.com/carnet-go/vehicle-command/pkg/action"
	"github.com/carnet-go/vehicle-command/pkg/protocol"
	"github.com/carnet-go/vehicle-command/pkg/session"
	"github.com/carnet-go/vehicle-command/pkg/vehicle"
)

const (
	DefaultTimeout      = 30 * time.Second
	maxRequestBodyBytes = 4096
	vinLength           = 17
)

//go:generate mockgen -destination=../../mocks/proxy.go -package=mocks -mock_names=Account=ProxyAccount,Vehicle=ProxyVehicle,Command=ProxyCommand github.com/carnet-go/vehicle-command/pkg/proxy Account,Vehicle,Command

// Account is the part of an [account.Account] the proxy uses. See [Live].
type Account interface {
	ListVehicles(ctx context.Context) ([]Vehicle, error)
	GetVehicle(ctx context.Context, vin string) (Vehicle, error)
	ServiceStatus() map[string]string
	Get(ctx context.Context, endpoint string) ([]byte, error)
}

// Vehicle is the part of a [vehicle.Vehicle] the proxy uses.
type Vehicle interface {
	VIN() string
	Nickname() string
	Model() string
	UpdatedAt() time.Time
	Update(ctx context.Context) error
	Instruments() []vehicle.Reading
	Position() (action.Position, bool)
	Send(ctx context.Context, a *action.Action) (Command, error)
}

// Command is a command the backend is tracking.
type Command interface {
	RequestID() string
	Wait(ctx context.Context) (vehicle.CommandStatus, error)
}

// ErrInvalidParameter indicates a request carried missing or malformed parameters.
var ErrInvalidParameter = errors.New("invalid request parameters")

// Proxy exposes an HTTP API for reading and controlling the vehicles of an account.
type Proxy struct {
	// Timeout bounds each request, including the time spent waiting for a command to finish.
	Timeout time.Duration
	// Spin is sent with commands that require the S-PIN if the request does not carry one.
	Spin string

	acct    Account
	vinLock sync.Map
}

// New creates an http proxy for acct.
func New(acct Account) *Proxy {
	return &Proxy{
		Timeout: DefaultTimeout,
		acct:    acct,
	}
}

// lockVIN locks a VIN-specific mutex, blocking until the operation succeeds or ctx expires.
func (p *Proxy) lockVIN(ctx context.Context, vin string) error {
	lock := make(chan bool, 1)
	for {
		if obj, loaded := p.vinLock.LoadOrStore(vin, lock); loaded {
			select {
			case <-obj.(chan bool):
				// The goroutine that reads from the channel doesn't necessarily own the mutex. This
				// allows the mutex owner to delete the entry from the map, limiting the size of the
				// map to the number of concurrent vehicle requests.
			case <-ctx.Done():
				return ctx.Err()
			}
		} else {
			return nil
		}
	}
}

// unlockVIN releases a VIN-specific mutex.
func (p *Proxy) unlockVIN(vin string) {
	obj, ok := p.vinLock.Load(vin)
	if !ok {
		panic("called unlock without owning mutex")
	}
	p.vinLock.Delete(vin)  // Allow someone else to claim the mutex
	close(obj.(chan bool)) // Unblock goroutines
}

// Response contains a server's response to a client request.
type Response struct {
	Response interface{} `json:"response,omitempty"`
	Error    string      `json:"error,omitempty"`
}

type commandResponse struct {
	Result    bool   `json:"result"`
	Reason    string `json:"reason"`
	RequestID string `json:"request_id,omitempty"`
	Status    string `json:"status,omitempty"`
}

type vehicleSummary struct {
	VIN       string     `json:"vin"`
	Nickname  string     `json:"nickname,omitempty"`
	Model     string     `json:"model,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

func summarize(car Vehicle) vehicleSummary {
	summary := vehicleSummary{VIN: car.VIN(), Nickname: car.Nickname(), Model: car.Model()}
	if t := car.UpdatedAt(); !t.IsZero() {
		summary.UpdatedAt = &t
	}
	return summary
}

// statusForError maps the error taxonomy onto HTTP status codes.
func statusForError(err error) int {
	var (
		conflict  *protocol.ConflictError
		timeout   *protocol.CommandTimeoutError
		authErr   *protocol.AuthError
		transient *protocol.TransientApiError
		permanent *protocol.PermanentApiError
		protoErr  *protocol.ProtocolError
	)
	switch {
	case errors.Is(err, ErrInvalidParameter), errors.Is(err, ErrUnknownCommand), errors.Is(err, action.ErrInvalidSpin):
		return http.StatusBadRequest
	case errors.Is(err, account.ErrUnknownVehicle):
		return http.StatusNotFound
	case errors.Is(err, vehicle.ErrUnsupported), errors.Is(err, ErrCommandNotImplemented):
		return http.StatusNotImplemented
	case errors.Is(err, vehicle.ErrSpinLocked):
		return http.StatusLocked
	case errors.Is(err, vehicle.ErrNoPosition):
		return http.StatusPreconditionFailed
	case errors.As(err, &conflict):
		return http.StatusConflict
	case errors.As(err, &timeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusAccepted
	case errors.As(err, &authErr), errors.Is(err, session.ErrNoSession):
		return http.StatusUnauthorized
	case errors.As(err, &permanent) && permanent.StatusCode == http.StatusUnauthorized:
		return http.StatusUnauthorized
	case errors.As(err, &transient), errors.As(err, &permanent), errors.As(err, &protoErr):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, code int, reply interface{}) {
	jsonBytes, err := json.Marshal(reply)
	if err != nil {
		log.Error("Error serializing reply %+v: %s", reply, err)
		code = http.StatusInternalServerError
		jsonBytes = []byte("{\"error\": \"internal server error\"}")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	jsonBytes = append(jsonBytes, '\n')
	w.Write(jsonBytes)
}

func writeJSONError(w http.ResponseWriter, code int, err error) {
	reply := Response{}
	if code == 0 {
		code = statusForError(err)
	}
	if err == nil {
		reply.Error = http.StatusText(code)
	} else {
		reply.Error = err.Error()
	}
	if code >= http.StatusInternalServerError {
		log.Error("Returning error %s: %s", http.StatusText(code), reply.Error)
	} else {
		log.Warning("Returning error %s: %s", http.StatusText(code), reply.Error)
	}
	writeJSON(w, code, &reply)
}

func (p *Proxy) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	log.Info("Received %s request for %s", req.Method, req.URL.Path)

	path := strings.Split(strings.TrimSuffix(req.URL.Path, "/"), "/")
	if len(path) < 3 || path[0] != "" || path[1] != "api" || path[2] != "1" {
		writeJSONError(w, http.StatusNotFound, nil)
		return
	}
	path = path[3:]

	switch {
	case len(path) == 1 && path[0] == "vehicles":
		if !allowMethod(w, req, http.MethodGet) {
			return
		}
		p.handleVehicleList(w, req)
	case len(path) == 1 && path[0] == "service_status":
		if !allowMethod(w, req, http.MethodGet) {
			return
		}
		writeJSON(w, http.StatusOK, &Response{Response: p.acct.ServiceStatus()})
	case len(path) > 1 && path[0] == "raw":
		if !allowMethod(w, req, http.MethodGet) {
			return
		}
		p.handleRaw(w, req, "/"+strings.Join(path[1:], "/"))
	case len(path) >= 3 && path[0] == "vehicles":
		vin := path[1]
		if len(vin) != vinLength {
			writeJSONError(w, http.StatusNotFound, errors.New("expected 17-character VIN in path"))
			return
		}
		switch {
		case len(path) == 3 && path[2] == "instruments":
			if allowMethod(w, req, http.MethodGet) {
				p.handleInstruments(w, req, vin, false)
			}
		case len(path) == 3 && path[2] == "update":
			if allowMethod(w, req, http.MethodPost) {
				p.handleInstruments(w, req, vin, true)
			}
		case len(path) == 4 && path[2] == "command":
			if allowMethod(w, req, http.MethodPost) {
				p.handleVehicleCommand(w, req, vin, path[3])
			}
		default:
			writeJSONError(w, http.StatusNotFound, nil)
		}
	default:
		writeJSONError(w, http.StatusNotFound, nil)
	}
}

func allowMethod(w http.ResponseWriter, req *http.Request, method string) bool {
	if req.Method == method {
		return true
	}
	w.Header().Set("Allow", method)
	writeJSONError(w, http.StatusMethodNotAllowed, nil)
	return false
}

func (p *Proxy) handleVehicleList(w http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), p.Timeout)
	defer cancel()

	cars, err := p.acct.ListVehicles(ctx)
	if err != nil {
		writeJSONError(w, 0, err)
		return
	}
	summaries := make([]vehicleSummary, 0, len(cars))
	for _, car := range cars {
		summaries = append(summaries, summarize(car))
	}
	writeJSON(w, http.StatusOK, &Response{Response: summaries})
}

func (p *Proxy) handleInstruments(w http.ResponseWriter, req *http.Request, vin string, update bool) {
	ctx, cancel := context.WithTimeout(req.Context(), p.Timeout)
	defer cancel()

	car, err := p.acct.GetVehicle(ctx, vin)
	if err != nil {
		writeJSONError(w, 0, err)
		return
	}
	if update {
		if err := p.lockVIN(ctx, vin); err != nil {
			writeJSONError(w, http.StatusServiceUnavailable, err)
			return
		}
		err := car.Update(ctx)
		p.unlockVIN(vin)
		if err != nil {
			writeJSONError(w, 0, err)
			return
		}
	}

	all := req.URL.Query().Get("all") == "true"
	readings := make([]vehicle.Reading, 0)
	for _, reading := range car.Instruments() {
		if reading.Supported || all {
			readings = append(readings, reading)
		}
	}
	writeJSON(w, http.StatusOK, &Response{Response: map[string]interface{}{
		"vehicle":     summarize(car),
		"instruments": readings,
	}})
}

// handleRaw relays an authenticated GET to the backend, for endpoints the proxy does not model.
func (p *Proxy) handleRaw(w http.ResponseWriter, req *http.Request, endpoint string) {
	ctx, cancel := context.WithTimeout(req.Context(), p.Timeout)
	defer cancel()

	if req.URL.RawQuery != "" {
		endpoint += "?" + req.URL.RawQuery
	}
	body, err := p.acct.Get(ctx, endpoint)
	if err != nil {
		writeJSONError(w, 0, err)
		return
	}
	if len(body) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}
