package action_test

import (
	"encoding/json"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/carnet-go/vehicle-command/pkg/action"
	"github.com/carnet-go/vehicle-command/pkg/capability"
)

var _ = Describe("Exterior", func() {
	position := action.Position{Latitude: 52.4227, Longitude: 10.7865}

	Describe("HonkAndFlash", func() {
		It("encodes position, mode and duration", func() {
			a, err := action.HonkAndFlash(action.ModeFlash, position)
			Expect(err).ToNot(HaveOccurred())
			Expect(a.Path).To(Equal("honkandflash"))
			Expect(a.Operations).To(ConsistOf(capability.OpHonkAndFlash))
			encoded, err := json.Marshal(a.Payload)
			Expect(err).ToNot(HaveOccurred())
			Expect(encoded).To(MatchJSON(`{
				"userPosition": {"latitude": 52.4227, "longitude": 10.7865},
				"mode": "flash",
				"duration_s": 15
			}`))
		})

		It("defaults to flashing", func() {
			a, err := action.HonkAndFlash("", position)
			Expect(err).ToNot(HaveOccurred())
			encoded, _ := json.Marshal(a.Payload)
			Expect(string(encoded)).To(ContainSubstring(`"mode":"flash"`))
		})

		It("rejects unknown modes", func() {
			_, err := action.HonkAndFlash("disco", position)
			Expect(err).To(HaveOccurred())
		})

		DescribeTable("rejects invalid positions",
			func(p action.Position) {
				_, err := action.HonkAndFlash(action.ModeFlash, p)
				Expect(err).To(HaveOccurred())
			},
			Entry("origin", action.Position{}),
			Entry("latitude", action.Position{Latitude: 91, Longitude: 10}),
			Entry("NaN", action.Position{Latitude: math.NaN(), Longitude: 10}),
		)
	})
})
