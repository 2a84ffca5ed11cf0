package action_test

import (
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/carnet-go/vehicle-command/pkg/action"
	"github.com/carnet-go/vehicle-command/pkg/capability"
	"github.com/carnet-go/vehicle-command/pkg/protocol"
)

var _ = Describe("Climate", func() {
	Describe("NewClimateSettings", func() {
		It("accepts the bounds", func() {
			_, err := action.NewClimateSettings(action.MinTargetTemperature)
			Expect(err).ToNot(HaveOccurred())
			_, err = action.NewClimateSettings(action.MaxTargetTemperature)
			Expect(err).ToNot(HaveOccurred())
		})

		It("rejects temperatures out of range", func() {
			_, err := action.NewClimateSettings(15)
			Expect(err).To(HaveOccurred())
			_, err = action.NewClimateSettings(30.5)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("StartClimate", func() {
		It("sends the settings", func() {
			settings, err := action.NewClimateSettings(21.5)
			Expect(err).ToNot(HaveOccurred())
			enabled := true
			settings.WindowHeatingEnabled = &enabled
			a, err := action.StartClimate(settings)
			Expect(err).ToNot(HaveOccurred())
			Expect(a.Path).To(Equal("climatisation/start"))
			Expect(a.Operations).To(ConsistOf(capability.OpClimatisationStart))
			encoded, err := json.Marshal(a.Payload)
			Expect(err).ToNot(HaveOccurred())
			Expect(encoded).To(MatchJSON(`{"targetTemperature": 21.5, "targetTemperatureUnit": "celsius", "windowHeatingEnabled": true}`))
		})

		It("sends an empty object without settings", func() {
			a, err := action.StartClimate(nil)
			Expect(err).ToNot(HaveOccurred())
			encoded, err := json.Marshal(a.Payload)
			Expect(err).ToNot(HaveOccurred())
			Expect(encoded).To(MatchJSON(`{}`))
		})

		It("rejects invalid settings", func() {
			_, err := action.StartClimate(&action.ClimateSettings{TargetTemperature: 40})
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("SetClimateSettings", func() {
		It("requires settings", func() {
			_, err := action.SetClimateSettings(nil)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("window heating", func() {
		It("is gated by climatisation", func() {
			Expect(action.StartWindowHeating().Capability).To(Equal(protocol.ServiceClimatisation))
			Expect(action.StopWindowHeating().Operations).To(ConsistOf(capability.OpWindowHeatingStop))
			Expect(action.StartWindowHeating().Kind).ToNot(Equal(action.StopClimate().Kind))
		})
	})

	Describe("StartAuxiliaryHeating", func() {
		It("carries the S-PIN", func() {
			a, err := action.StartAuxiliaryHeating("1234", 30)
			Expect(err).ToNot(HaveOccurred())
			Expect(a.RequiresSpin).To(BeTrue())
			encoded, err := json.Marshal(a.Payload)
			Expect(err).ToNot(HaveOccurred())
			Expect(encoded).To(MatchJSON(`{"spin": "1234", "duration_min": 30}`))
		})

		It("rejects bad input", func() {
			_, err := action.StartAuxiliaryHeating("12", 30)
			Expect(err).To(MatchError(action.ErrInvalidSpin))
			_, err = action.StartAuxiliaryHeating("1234", 25)
			Expect(err).To(HaveOccurred())
		})
	})
})
