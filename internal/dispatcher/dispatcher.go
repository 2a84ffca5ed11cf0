// Package dispatcher submits vehicle commands and tracks them to completion.
//
// The backend acknowledges a command with a request id and executes it asynchronously. The
// [Dispatcher] polls the vehicle's pending request list until the request succeeds, fails, or its
// deadline passes. At most one request of each kind may be outstanding per vehicle.
package dispatcher

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/carnet-go/vehicle-command/internal/log"
	"github.com/carnet-go/vehicle-command/pkg/protocol"
)

const (
	DefaultPollInterval = 10 * time.Second
	DefaultDeadline     = 3 * time.Minute
)

var ErrClosed = errors.New("dispatcher: closed")

// Poller fetches the pending request list of a vehicle.
type Poller interface {
	PendingRequests(ctx context.Context, vin string) ([]Pending, error)
}

// SubmitFunc sends a command to the backend and returns the request id it was assigned.
type SubmitFunc func(ctx context.Context) (requestID string, err error)

type gateKey struct {
	vin  string
	kind string
}

// Dispatcher owns the poll loops of outstanding requests.
type Dispatcher struct {
	PollInterval time.Duration
	Deadline     time.Duration
	// Clock returns the current time. Deadlines are measured against it.
	Clock func() time.Time

	poller    Poller
	sleepFunc func(ctx context.Context, d time.Duration) error

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	lock     sync.Mutex
	inflight map[gateKey]*Request
	closed   bool
}

// New returns a Dispatcher that polls through poller.
func New(poller Poller) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		PollInterval: DefaultPollInterval,
		Deadline:     DefaultDeadline,
		Clock:        time.Now,
		poller:       poller,
		sleepFunc:    timeSleep,
		ctx:          ctx,
		cancel:       cancel,
		inflight:     make(map[gateKey]*Request),
	}
}

func timeSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (d *Dispatcher) now() time.Time {
	if d.Clock == nil {
		return time.Now()
	}
	return d.Clock()
}

// Submit claims the (vin, kind) slot, invokes submit, and starts polling the returned request id.
//
// If a request of the same kind is already outstanding for vin, Submit returns a
// *protocol.ConflictError without invoking submit. Errors returned by submit release the slot and
// are passed through.
func (d *Dispatcher) Submit(ctx context.Context, vin, kind string, submit SubmitFunc) (*Request, error) {
	key := gateKey{vin: vin, kind: kind}
	d.lock.Lock()
	if d.closed {
		d.lock.Unlock()
		return nil, ErrClosed
	}
	if existing, ok := d.inflight[key]; ok {
		d.lock.Unlock()
		return nil, &protocol.ConflictError{VIN: vin, Kind: kind, RequestID: existing.ID}
	}
	r := newRequest(vin, kind, d.now(), d.Deadline)
	d.inflight[key] = r
	d.lock.Unlock()

	id, err := submit(ctx)
	if err == nil && id == "" {
		err = &protocol.ProtocolError{Endpoint: kind, Err: errors.New("response did not include a request id"), PossibleSuccess: true}
	}
	if err != nil {
		d.release(key, r)
		return nil, err
	}

	d.lock.Lock()
	r.ID = id
	r.SubmittedAt = d.now()
	if d.closed {
		// The command was sent but can no longer be tracked.
		d.lock.Unlock()
		d.release(key, r)
		r.expire()
		return r, nil
	}
	d.wg.Add(1)
	d.lock.Unlock()
	log.Info("Submitted %s for %s (request %s)", kind, vin, id)
	go d.poll(key, r)
	return r, nil
}

func (d *Dispatcher) release(key gateKey, r *Request) {
	d.lock.Lock()
	defer d.lock.Unlock()
	if d.inflight[key] == r {
		delete(d.inflight, key)
	}
}

func (d *Dispatcher) poll(key gateKey, r *Request) {
	defer d.wg.Done()
	defer d.release(key, r)
	deadline := r.SubmittedAt.Add(d.Deadline)
	for {
		remaining := deadline.Sub(d.now())
		if remaining <= 0 {
			break
		}
		wait := d.PollInterval
		if wait > remaining {
			wait = remaining
		}
		if err := d.sleepFunc(d.ctx, wait); err != nil {
			break
		}
		if !d.now().Before(deadline) {
			break
		}
		pollCtx, cancel := context.WithDeadline(d.ctx, deadline)
		pending, err := d.poller.PendingRequests(pollCtx, r.VIN)
		cancel()
		if err != nil {
			log.Warning("Failed to poll %s request %s: %s", r.Kind, r.ID, err)
			continue
		}
		r.observe(pending)
		if r.terminal() {
			log.Info("%s request %s for %s finished: %s", r.Kind, r.ID, r.VIN, r.Status())
			return
		}
	}
	r.expire()
	log.Warning("%s request %s for %s timed out (last status '%s')", r.Kind, r.ID, r.VIN, r.VendorStatus())
}

// Outstanding returns the requests for vin that have not reached a terminal status.
func (d *Dispatcher) Outstanding(vin string) []*Request {
	d.lock.Lock()
	defer d.lock.Unlock()
	var requests []*Request
	for key, r := range d.inflight {
		if key.vin == vin && r.ID != "" {
			requests = append(requests, r)
		}
	}
	return requests
}

// Close stops all poll loops. Requests that were still outstanding end TIMED_OUT immediately,
// before their deadline, since their outcome is no longer observed. A command whose submission
// completes after Close is returned already TIMED_OUT.
func (d *Dispatcher) Close() {
	d.lock.Lock()
	d.closed = true
	d.lock.Unlock()
	d.cancel()
	d.wg.Wait()
}
