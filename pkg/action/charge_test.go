package action_test

import (
	"encoding/json"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/carnet-go/vehicle-command/pkg/action"
	"github.com/carnet-go/vehicle-command/pkg/capability"
	"github.com/carnet-go/vehicle-command/pkg/protocol"
)

var _ = Describe("Charge", func() {
	Describe("StartCharging", func() {
		It("posts to charging/start", func() {
			a := action.StartCharging()
			Expect(a.Method).To(Equal(http.MethodPost))
			Expect(a.Path).To(Equal("charging/start"))
			Expect(a.Capability).To(Equal(protocol.ServiceCharging))
			Expect(a.Operations).To(ConsistOf(capability.OpChargingStart))
			Expect(a.Kind).To(Equal(action.KindCharging))
			Expect(a.Tracked).To(BeTrue())
		})
	})

	Describe("StopCharging", func() {
		It("shares the kind of StartCharging", func() {
			Expect(action.StopCharging().Kind).To(Equal(action.StartCharging().Kind))
			Expect(action.StopCharging().Operations).To(ConsistOf(capability.OpChargingStop))
		})
	})

	Describe("SetChargingSettings", func() {
		It("omits fields that are not set", func() {
			a, err := action.SetChargingSettings(&action.ChargingSettings{TargetSOCPercent: 80})
			Expect(err).ToNot(HaveOccurred())
			Expect(a.Method).To(Equal(http.MethodPut))
			encoded, err := json.Marshal(a.Payload)
			Expect(err).ToNot(HaveOccurred())
			Expect(encoded).To(MatchJSON(`{"targetSOC_pct": 80}`))
		})

		It("accepts a supported current limit", func() {
			_, err := action.SetChargingSettings(&action.ChargingSettings{MaxChargeCurrentACAmpere: 16})
			Expect(err).ToNot(HaveOccurred())
		})

		DescribeTable("rejects invalid settings",
			func(settings *action.ChargingSettings) {
				_, err := action.SetChargingSettings(settings)
				Expect(err).To(HaveOccurred())
			},
			Entry("nil", (*action.ChargingSettings)(nil)),
			Entry("empty", &action.ChargingSettings{}),
			Entry("current limit", &action.ChargingSettings{MaxChargeCurrentACAmpere: 20}),
			Entry("current mode", &action.ChargingSettings{MaxChargeCurrentAC: "fast"}),
			Entry("target too low", &action.ChargingSettings{TargetSOCPercent: 40}),
			Entry("target not a multiple of 10", &action.ChargingSettings{TargetSOCPercent: 85}),
			Entry("plug mode", &action.ChargingSettings{AutoUnlockPlugWhenChargedAC: "sometimes"}),
		)
	})

	Describe("SetBatteryCareMode", func() {
		It("encodes the mode", func() {
			a, err := action.SetBatteryCareMode(action.BatteryCareActivated)
			Expect(err).ToNot(HaveOccurred())
			Expect(a.Path).To(Equal("charging/care/settings"))
			Expect(a.Capability).To(Equal(protocol.ServiceBatteryChargingCare))
			encoded, err := json.Marshal(a.Payload)
			Expect(err).ToNot(HaveOccurred())
			Expect(encoded).To(MatchJSON(`{"batteryCareMode": "activated"}`))
		})

		It("rejects unknown modes", func() {
			_, err := action.SetBatteryCareMode("sometimes")
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("SetBatterySupport", func() {
		It("encodes the flag", func() {
			encoded, err := json.Marshal(action.SetBatterySupport(false).Payload)
			Expect(err).ToNot(HaveOccurred())
			Expect(encoded).To(MatchJSON(`{"batterySupportEnabled": false}`))
		})
	})
})
