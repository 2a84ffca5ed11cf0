package dispatcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/looplab/fsm"

	"github.com/carnet-go/vehicle-command/internal/log"
	"github.com/carnet-go/vehicle-command/pkg/protocol"
)

const (
	eventProgress = "progress"
	eventSucceed  = "succeed"
	eventFail     = "fail"
	eventExpire   = "expire"
)

var statusEvents = map[Status]string{
	StatusInProgress: eventProgress,
	StatusSucceeded:  eventSucceed,
	StatusFailed:     eventFail,
	StatusTimedOut:   eventExpire,
}

var requestEvents = fsm.Events{
	{Name: eventProgress, Src: []string{string(StatusQueued)}, Dst: string(StatusInProgress)},
	{Name: eventSucceed, Src: []string{string(StatusQueued), string(StatusInProgress)}, Dst: string(StatusSucceeded)},
	{Name: eventFail, Src: []string{string(StatusQueued), string(StatusInProgress)}, Dst: string(StatusFailed)},
	{Name: eventExpire, Src: []string{string(StatusQueued), string(StatusInProgress)}, Dst: string(StatusTimedOut)},
}

// Request tracks a command submitted to the backend.
type Request struct {
	ID          string
	VIN         string
	Kind        string
	SubmittedAt time.Time

	deadline time.Duration
	done     chan struct{}

	lock         sync.Mutex
	machine      *fsm.FSM
	vendorStatus string
	polls        int
	seen         bool
}

func newRequest(vin, kind string, submittedAt time.Time, deadline time.Duration) *Request {
	r := &Request{
		VIN:         vin,
		Kind:        kind,
		SubmittedAt: submittedAt,
		deadline:    deadline,
		done:        make(chan struct{}),
	}
	r.machine = fsm.NewFSM(string(StatusQueued), requestEvents, fsm.Callbacks{
		"enter_state": func(_ context.Context, e *fsm.Event) {
			log.Debug("%s request %s for %s: %s -> %s", r.Kind, r.ID, r.VIN, e.Src, e.Dst)
			if Status(e.Dst).Terminal() {
				close(r.done)
			}
		},
	})
	return r
}

// Status returns the current status.
func (r *Request) Status() Status {
	r.lock.Lock()
	defer r.lock.Unlock()
	return Status(r.machine.Current())
}

// VendorStatus returns the last status string reported by the backend.
func (r *Request) VendorStatus() string {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.vendorStatus
}

// Polls returns the number of completed status polls.
func (r *Request) Polls() int {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.polls
}

// Done returns a channel that is closed once the request reaches a terminal status.
func (r *Request) Done() <-chan struct{} {
	return r.done
}

// advance moves the request to status. Transitions that would move the request backwards, or out
// of a terminal status, are ignored. The caller must hold r.lock.
func (r *Request) advance(status Status) {
	event, ok := statusEvents[status]
	if !ok || !r.machine.Can(event) {
		return
	}
	if err := r.machine.Event(context.Background(), event); err != nil {
		log.Error("Unexpected transition error for request %s: %s", r.ID, err)
	}
}

// observe applies one poll of the pending request list.
func (r *Request) observe(pending []Pending) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.polls++
	for _, p := range pending {
		if p.ID != r.ID {
			continue
		}
		r.seen = true
		r.vendorStatus = p.Status
		status, known := MapVendorStatus(p.Status)
		if !known {
			log.Warning("Unknown status '%s' for %s request %s", p.Status, r.Kind, r.ID)
		}
		r.advance(status)
		return
	}
	if r.seen {
		// The list does not say how a request that dropped out of it ended. It stays unresolved and
		// times out unless it reappears with a terminal status.
		log.Debug("Request %s no longer listed as pending", r.ID)
	}
}

func (r *Request) expire() {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.advance(StatusTimedOut)
}

func (r *Request) terminal() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

// result converts a terminal status into the error returned by Wait.
func (r *Request) result() (Status, error) {
	status := r.Status()
	switch status {
	case StatusSucceeded:
		return status, nil
	case StatusFailed:
		return status, &protocol.NominalError{Details: fmt.Errorf("%s command %s failed: %s", r.Kind, r.ID, r.VendorStatus())}
	default:
		return status, &protocol.CommandTimeoutError{
			VIN:        r.VIN,
			Kind:       r.Kind,
			RequestID:  r.ID,
			Deadline:   r.deadline,
			LastStatus: r.VendorStatus(),
		}
	}
}

// Wait blocks until the request reaches a terminal status or ctx expires. Cancelling ctx does not
// stop polling.
func (r *Request) Wait(ctx context.Context) (Status, error) {
	select {
	case <-r.done:
		return r.result()
	case <-ctx.Done():
		return r.Status(), ctx.Err()
	}
}
