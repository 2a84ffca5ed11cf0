package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/carnet-go/vehicle-command/internal/log"
	"github.com/carnet-go/vehicle-command/pkg/protocol"
)

func readParameters(w http.ResponseWriter, req *http.Request) (RequestParameters, error) {
	params := make(RequestParameters)
	body, err := io.ReadAll(http.MaxBytesReader(w, req.Body, maxRequestBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidParameter, err)
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &params); err != nil {
			return nil, fmt.Errorf("%w: invalid JSON: %s", ErrInvalidParameter, err)
		}
	}
	if params == nil {
		params = make(RequestParameters)
	}
	return params, nil
}

func (p *Proxy) handleVehicleCommand(w http.ResponseWriter, req *http.Request, vin, command string) {
	params, err := readParameters(w, req)
	if err != nil {
		writeJSONError(w, 0, err)
		return
	}
	if _, ok := params["spin"]; !ok && p.Spin != "" {
		params["spin"] = p.Spin
	}
	builder, err := ExtractCommandAction(command, params)
	if err != nil {
		writeJSONError(w, 0, err)
		return
	}

	ctx, cancel := context.WithTimeout(req.Context(), p.Timeout)
	defer cancel()

	car, err := p.acct.GetVehicle(ctx, vin)
	if err != nil {
		writeJSONError(w, 0, err)
		return
	}
	a, err := builder(car)
	if err != nil {
		writeJSONError(w, 0, err)
		return
	}

	// The VIN lock only serializes submission. Conflicting commands are rejected by the vehicle's
	// dispatcher, so the lock is not held while waiting.
	if err := p.lockVIN(ctx, vin); err != nil {
		writeJSONError(w, http.StatusServiceUnavailable, err)
		return
	}
	cmd, err := car.Send(ctx, a)
	p.unlockVIN(vin)

	reply := commandResponse{}
	if err != nil {
		if protocol.IsNominalError(err) {
			reply.Reason = err.Error()
			writeJSON(w, http.StatusOK, &Response{Response: &reply})
			return
		}
		writeJSONError(w, 0, err)
		return
	}
	if cmd == nil {
		log.Info("Sent %s to %s", a.Name, vin)
		reply.Result = true
		writeJSON(w, http.StatusOK, &Response{Response: &reply})
		return
	}

	reply.RequestID = cmd.RequestID()
	status, err := cmd.Wait(ctx)
	reply.Status = status.String()
	var timeout *protocol.CommandTimeoutError
	switch {
	case err == nil:
		log.Info("%s on %s completed (request %s)", a.Name, vin, reply.RequestID)
		reply.Result = true
		writeJSON(w, http.StatusOK, &Response{Response: &reply})
	case protocol.IsNominalError(err):
		reply.Reason = err.Error()
		writeJSON(w, http.StatusOK, &Response{Response: &reply})
	case errors.As(err, &timeout), errors.Is(err, context.DeadlineExceeded):
		// The vehicle may still execute the command. Clients can follow up with the request id.
		reply.Reason = "command pending"
		writeJSON(w, http.StatusAccepted, &Response{Response: &reply})
	default:
		writeJSONError(w, 0, err)
	}
}
