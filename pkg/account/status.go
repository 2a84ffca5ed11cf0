package account

import (
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/carnet-go/vehicle-command/pkg/protocol"
)

// ServiceStatus values reported by [Account.ServiceStatus].
const (
	StatusUp           = "Up"
	StatusUnauthorized = "Unauthorized"
	StatusForbidden    = "Forbidden"
	StatusRateLimited  = "Rate limited"
	StatusError        = "Error"
	StatusDown         = "Down"
)

// Endpoint classes tracked by [Account.ServiceStatus].
const (
	ServiceVehicles        = "vehicles"
	ServiceParkingPosition = "parkingposition"
	ServiceTrips           = "trips"
	ServiceCapabilities    = "capabilities"
	ServiceSelectiveStatus = "selectivestatus"
	ServiceToken           = "token"
)

func endpointClass(endpoint string) string {
	path := endpoint
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	switch {
	case strings.HasSuffix(path, "/vehicle/v2/vehicles"):
		return ServiceVehicles
	case strings.HasSuffix(path, "/parkingposition"):
		return ServiceParkingPosition
	case strings.Contains(path, "/trips/"):
		return ServiceTrips
	case strings.HasSuffix(path, "/capabilities"):
		return ServiceCapabilities
	case strings.HasSuffix(path, "/selectivestatus"):
		return ServiceSelectiveStatus
	}
	return ""
}

func describeStatus(code int) string {
	switch code {
	case http.StatusOK, http.StatusNoContent, http.StatusMultiStatus:
		return StatusUp
	case http.StatusUnauthorized:
		return StatusUnauthorized
	case http.StatusForbidden:
		return StatusForbidden
	case http.StatusTooManyRequests:
		return StatusRateLimited
	case 0:
		return StatusError
	}
	return StatusDown
}

type serviceStatus struct {
	lock     sync.Mutex
	statuses map[string]string
}

func newServiceStatus() *serviceStatus {
	return &serviceStatus{statuses: make(map[string]string)}
}

// record stores the outcome of a request to endpoint. code is zero if no response was received.
func (s *serviceStatus) record(endpoint string, code int) {
	class := endpointClass(endpoint)
	if class == "" {
		return
	}
	s.set(class, describeStatus(code))
}

func (s *serviceStatus) recordAuthFailure(err error) {
	var authErr *protocol.AuthError
	if errors.As(err, &authErr) && authErr.Kind == protocol.AuthNetworkError {
		s.set(ServiceToken, StatusError)
		return
	}
	s.set(ServiceToken, StatusUnauthorized)
}

func (s *serviceStatus) set(class, status string) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.statuses[class] = status
}

func (s *serviceStatus) snapshot() map[string]string {
	s.lock.Lock()
	defer s.lock.Unlock()
	out := make(map[string]string, len(s.statuses))
	for k, v := range s.statuses {
		out[k] = v
	}
	return out
}
