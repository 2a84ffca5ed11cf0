package proxy_test

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/carnet-go/vehicle-command/mocks"
	"github.com/carnet-go/vehicle-command/pkg/account"
	"github.com/carnet-go/vehicle-command/pkg/action"
	"github.com/carnet-go/vehicle-command/pkg/protocol"
	"github.com/carnet-go/vehicle-command/pkg/proxy"
	"github.com/carnet-go/vehicle-command/pkg/session"
	"github.com/carnet-go/vehicle-command/pkg/vehicle"
)

const (
	vin = "WVWZZZAUZKW000001"
)

var _ = Describe("Proxy", func() {
	var (
		ctrl        *gomock.Controller
		p           *proxy.Proxy
		mockAccount *mocks.ProxyAccount
	)

	sendRequest := func(method, path string, body []byte) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, bytes.NewReader(body))
		rr := httptest.NewRecorder()
		p.ServeHTTP(rr, req)
		return rr
	}

	commandPath := func(name string) string {
		return fmt.Sprintf("/api/1/vehicles/%s/command/%s", vin, name)
	}

	BeforeEach(func() {
		ctrl = gomock.NewController(GinkgoT())
		mockAccount = mocks.NewProxyAccount(ctrl)
		p = proxy.New(mockAccount)
		p.Timeout = time.Second
		DeferCleanup(func() {
			ctrl.Finish()
		})
	})

	Context("routing", func() {
		It("returns not found for unknown paths", func() {
			Expect(sendRequest(http.MethodGet, "/api/2/vehicles", nil).Code).To(Equal(http.StatusNotFound))
			Expect(sendRequest(http.MethodGet, "/api/1/nothing", nil).Code).To(Equal(http.StatusNotFound))
		})

		It("rejects the wrong method", func() {
			rr := sendRequest(http.MethodGet, commandPath("charge_start"), nil)
			Expect(rr.Code).To(Equal(http.StatusMethodNotAllowed))
			Expect(rr.Header().Get("Allow")).To(Equal(http.MethodPost))
		})
	})

	Context("vehicle list", func() {
		It("summarizes vehicles", func() {
			updated := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
			car := mocks.NewProxyVehicle(ctrl)
			car.EXPECT().VIN().Return(vin)
			car.EXPECT().Nickname().Return("Ernie")
			car.EXPECT().Model().Return("ID.3")
			car.EXPECT().UpdatedAt().Return(updated)
			mockAccount.EXPECT().ListVehicles(gomock.Any()).Return([]proxy.Vehicle{car}, nil)

			rr := sendRequest(http.MethodGet, "/api/1/vehicles", nil)
			Expect(rr.Code).To(Equal(http.StatusOK))
			Expect(rr.Body.String()).To(MatchJSON(fmt.Sprintf(
				`{"response":[{"vin":"%s","nickname":"Ernie","model":"ID.3","updated_at":"2024-05-01T12:00:00Z"}]}`, vin)))
		})

		It("reports an expired session as unauthorized", func() {
			mockAccount.EXPECT().ListVehicles(gomock.Any()).Return(nil, session.ErrNoSession)
			rr := sendRequest(http.MethodGet, "/api/1/vehicles", nil)
			Expect(rr.Code).To(Equal(http.StatusUnauthorized))
		})

		It("reports exhausted retries as bad gateway", func() {
			mockAccount.EXPECT().ListVehicles(gomock.Any()).Return(nil, &protocol.TransientApiError{StatusCode: 503, Attempts: 3})
			rr := sendRequest(http.MethodGet, "/api/1/vehicles", nil)
			Expect(rr.Code).To(Equal(http.StatusBadGateway))
		})
	})

	Context("instruments", func() {
		var car *mocks.ProxyVehicle

		BeforeEach(func() {
			car = mocks.NewProxyVehicle(ctrl)
			car.EXPECT().VIN().Return(vin).AnyTimes()
			car.EXPECT().Nickname().Return("").AnyTimes()
			car.EXPECT().Model().Return("").AnyTimes()
			car.EXPECT().UpdatedAt().Return(time.Time{}).AnyTimes()
			car.EXPECT().Instruments().Return([]vehicle.Reading{
				{Name: "battery_level", Component: "sensor", Unit: "%", Value: 72.0, Supported: true},
				{Name: "climatisation", Component: "switch", Supported: false},
			}).AnyTimes()
			mockAccount.EXPECT().GetVehicle(gomock.Any(), vin).Return(car, nil)
		})

		It("returns supported instruments", func() {
			rr := sendRequest(http.MethodGet, fmt.Sprintf("/api/1/vehicles/%s/instruments", vin), nil)
			Expect(rr.Code).To(Equal(http.StatusOK))
			Expect(rr.Body.String()).To(MatchJSON(fmt.Sprintf(`{"response":{
				"vehicle":{"vin":"%s"},
				"instruments":[{"name":"battery_level","component":"sensor","unit":"%%","value":72,"supported":true}]}}`, vin)))
		})

		It("includes unsupported instruments on request", func() {
			rr := sendRequest(http.MethodGet, fmt.Sprintf("/api/1/vehicles/%s/instruments?all=true", vin), nil)
			Expect(rr.Code).To(Equal(http.StatusOK))
			Expect(rr.Body.String()).To(ContainSubstring(`"climatisation"`))
		})

		It("updates before reading", func() {
			car.EXPECT().Update(gomock.Any()).Return(nil)
			rr := sendRequest(http.MethodPost, fmt.Sprintf("/api/1/vehicles/%s/update", vin), nil)
			Expect(rr.Code).To(Equal(http.StatusOK))
		})
	})

	Context("vehicle commands", func() {
		Context("invalid VIN", func() {
			It("returns not found", func() {
				rr := sendRequest(http.MethodPost, "/api/1/vehicles/ABC/command/honk_horn", nil)
				Expect(rr.Code).To(Equal(http.StatusNotFound))
			})
		})

		Context("unknown VIN", func() {
			It("returns not found", func() {
				mockAccount.EXPECT().GetVehicle(gomock.Any(), vin).Return(nil, fmt.Errorf("%s: %w", vin, account.ErrUnknownVehicle))
				rr := sendRequest(http.MethodPost, commandPath("charge_start"), nil)
				Expect(rr.Code).To(Equal(http.StatusNotFound))
			})
		})

		Context("invalid parameters", func() {
			It("rejects malformed JSON", func() {
				rr := sendRequest(http.MethodPost, commandPath("door_lock"), []byte("{"))
				Expect(rr.Code).To(Equal(http.StatusBadRequest))
			})

			It("rejects a missing S-PIN", func() {
				rr := sendRequest(http.MethodPost, commandPath("door_lock"), nil)
				Expect(rr.Code).To(Equal(http.StatusBadRequest))
			})

			It("rejects unknown commands", func() {
				rr := sendRequest(http.MethodPost, commandPath("launch"), nil)
				Expect(rr.Code).To(Equal(http.StatusBadRequest))
			})
		})

		Context("tracked command", func() {
			var (
				car *mocks.ProxyVehicle
				cmd *mocks.ProxyCommand
			)

			BeforeEach(func() {
				car = mocks.NewProxyVehicle(ctrl)
				cmd = mocks.NewProxyCommand(ctrl)
				mockAccount.EXPECT().GetVehicle(gomock.Any(), vin).Return(car, nil)
			})

			It("returns successful response", func() {
				car.EXPECT().Send(gomock.Any(), gomock.AssignableToTypeOf(&action.Action{})).DoAndReturn(
					func(_ context.Context, a *action.Action) (proxy.Command, error) {
						Expect(a.Path).To(Equal("access/lock"))
						Expect(a.Payload).To(Equal(&action.SpinPayload{Spin: "1234"}))
						return cmd, nil
					})
				cmd.EXPECT().RequestID().Return("42")
				cmd.EXPECT().Wait(gomock.Any()).Return(vehicle.CommandSucceeded, nil)

				rr := sendRequest(http.MethodPost, commandPath("door_lock"), []byte(`{"spin":"1234"}`))
				Expect(rr.Code).To(Equal(http.StatusOK))
				Expect(rr.Body.String()).To(MatchJSON(`{"response":{"result":true,"reason":"","request_id":"42","status":"SUCCEEDED"}}`))
			})

			It("uses the configured S-PIN", func() {
				p.Spin = "9876"
				car.EXPECT().Send(gomock.Any(), gomock.Any()).DoAndReturn(
					func(_ context.Context, a *action.Action) (proxy.Command, error) {
						Expect(a.Payload).To(Equal(&action.SpinPayload{Spin: "9876"}))
						return cmd, nil
					})
				cmd.EXPECT().RequestID().Return("43")
				cmd.EXPECT().Wait(gomock.Any()).Return(vehicle.CommandSucceeded, nil)

				rr := sendRequest(http.MethodPost, commandPath("door_unlock"), nil)
				Expect(rr.Code).To(Equal(http.StatusOK))
			})

			It("reports commands the vehicle rejected", func() {
				car.EXPECT().Send(gomock.Any(), gomock.Any()).Return(cmd, nil)
				cmd.EXPECT().RequestID().Return("44")
				cmd.EXPECT().Wait(gomock.Any()).Return(vehicle.CommandFailed,
					&protocol.NominalError{Details: fmt.Errorf("charging command 44 failed: plug not connected")})

				rr := sendRequest(http.MethodPost, commandPath("charge_start"), nil)
				Expect(rr.Code).To(Equal(http.StatusOK))
				Expect(rr.Body.String()).To(MatchJSON(`{"response":{"result":false,"reason":"charging command 44 failed: plug not connected","request_id":"44","status":"FAILED"}}`))
			})

			It("returns accepted when the command is still pending", func() {
				car.EXPECT().Send(gomock.Any(), gomock.Any()).Return(cmd, nil)
				cmd.EXPECT().RequestID().Return("45")
				cmd.EXPECT().Wait(gomock.Any()).Return(vehicle.CommandTimedOut,
					&protocol.CommandTimeoutError{VIN: vin, Kind: action.KindCharging, RequestID: "45"})

				rr := sendRequest(http.MethodPost, commandPath("charge_stop"), nil)
				Expect(rr.Code).To(Equal(http.StatusAccepted))
				Expect(rr.Body.String()).To(ContainSubstring(`"request_id":"45"`))
			})

			It("returns conflict when a command of the same kind is outstanding", func() {
				car.EXPECT().Send(gomock.Any(), gomock.Any()).Return(nil,
					&protocol.ConflictError{VIN: vin, Kind: action.KindCharging, RequestID: "7"})

				rr := sendRequest(http.MethodPost, commandPath("charge_stop"), nil)
				Expect(rr.Code).To(Equal(http.StatusConflict))
				Expect(rr.Body.String()).To(ContainSubstring("request 7"))
			})

			It("returns not implemented for unsupported commands", func() {
				car.EXPECT().Send(gomock.Any(), gomock.Any()).Return(nil, fmt.Errorf("start charging: %w", vehicle.ErrUnsupported))

				rr := sendRequest(http.MethodPost, commandPath("charge_start"), nil)
				Expect(rr.Code).To(Equal(http.StatusNotImplemented))
			})

			It("refuses to send the S-PIN when few tries remain", func() {
				car.EXPECT().Send(gomock.Any(), gomock.Any()).Return(nil, vehicle.ErrSpinLocked)

				rr := sendRequest(http.MethodPost, commandPath("door_lock"), []byte(`{"spin":"1234"}`))
				Expect(rr.Code).To(Equal(http.StatusLocked))
			})

			It("needs a position to honk", func() {
				car.EXPECT().Position().Return(action.Position{}, false)

				rr := sendRequest(http.MethodPost, commandPath("honk_horn"), nil)
				Expect(rr.Code).To(Equal(http.StatusPreconditionFailed))
			})

			It("returns success for untracked commands", func() {
				car.EXPECT().Send(gomock.Any(), gomock.Any()).Return(nil, nil)

				rr := sendRequest(http.MethodPost, commandPath("wake_up"), nil)
				Expect(rr.Code).To(Equal(http.StatusOK))
				Expect(rr.Body.String()).To(MatchJSON(`{"response":{"result":true,"reason":""}}`))
			})
		})
	})

	Context("raw passthrough", func() {
		It("relays the backend response", func() {
			mockAccount.EXPECT().Get(gomock.Any(), "/vehicle/v1/vehicles?x=1").Return([]byte(`{"data":[]}`), nil)
			rr := sendRequest(http.MethodGet, "/api/1/raw/vehicle/v1/vehicles?x=1", nil)
			Expect(rr.Code).To(Equal(http.StatusOK))
			Expect(rr.Body.String()).To(MatchJSON(`{"data":[]}`))
		})

		It("maps backend errors", func() {
			mockAccount.EXPECT().Get(gomock.Any(), "/vehicle/v1/missing").Return(nil, &protocol.PermanentApiError{StatusCode: 404})
			rr := sendRequest(http.MethodGet, "/api/1/raw/vehicle/v1/missing", nil)
			Expect(rr.Code).To(Equal(http.StatusBadGateway))
		})
	})

	It("reports service status", func() {
		mockAccount.EXPECT().ServiceStatus().Return(map[string]string{"token": "Up"})
		rr := sendRequest(http.MethodGet, "/api/1/service_status", nil)
		Expect(rr.Code).To(Equal(http.StatusOK))
		Expect(rr.Body.String()).To(MatchJSON(`{"response":{"token":"Up"}}`))
	})
})
