package dispatcher

import (
	"strings"

	"github.com/carnet-go/vehicle-command/pkg/connector"
)

// Status of a command request. A request starts Queued and only moves forward.
type Status string

const (
	StatusQueued     Status = "QUEUED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusSucceeded  Status = "SUCCEEDED"
	StatusFailed     Status = "FAILED"
	StatusTimedOut   Status = "TIMED_OUT"
)

// Terminal returns true for statuses that never change.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusTimedOut
}

func (s Status) String() string {
	return string(s)
}

// Pending is an entry of the vendor's pending request list.
type Pending = connector.PendingRequest

var vendorStatuses = map[string]Status{
	"queued":             StatusQueued,
	"in_progress":        StatusInProgress,
	"fetched":            StatusInProgress,
	"unfetched":          StatusInProgress,
	"delayed":            StatusInProgress,
	"successful":         StatusSucceeded,
	"request_successful": StatusSucceeded,
	"failed":             StatusFailed,
	"request_fail":       StatusFailed,
	"fail_ignition_on":   StatusFailed,
}

// MapVendorStatus converts a status string reported by the backend. Unknown strings map to
// StatusInProgress and known is false.
func MapVendorStatus(vendor string) (status Status, known bool) {
	vendor = strings.ToLower(strings.TrimSpace(vendor))
	if s, ok := vendorStatuses[vendor]; ok {
		return s, true
	}
	if strings.HasPrefix(vendor, "fail_") {
		return StatusFailed, true
	}
	return StatusInProgress, false
}
