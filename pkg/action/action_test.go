package action_test

import (
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/carnet-go/vehicle-command/pkg/action"
	"github.com/carnet-go/vehicle-command/pkg/capability"
	"github.com/carnet-go/vehicle-command/pkg/protocol"
)

var _ = Describe("Access", func() {
	Describe("Lock", func() {
		It("carries the S-PIN", func() {
			a, err := action.Lock("0042")
			Expect(err).ToNot(HaveOccurred())
			Expect(a.Path).To(Equal("access/lock"))
			Expect(a.RequiresSpin).To(BeTrue())
			Expect(a.Capability).To(Equal(protocol.ServiceAccess))
			Expect(a.Operations).To(ConsistOf(capability.OpAccessLock))
			encoded, err := json.Marshal(a.Payload)
			Expect(err).ToNot(HaveOccurred())
			Expect(encoded).To(MatchJSON(`{"spin": "0042"}`))
		})

		DescribeTable("rejects malformed S-PINs",
			func(spin string) {
				_, err := action.Lock(spin)
				Expect(err).To(MatchError(action.ErrInvalidSpin))
				_, err = action.Unlock(spin)
				Expect(err).To(MatchError(action.ErrInvalidSpin))
			},
			Entry("empty", ""),
			Entry("short", "123"),
			Entry("long", "12345"),
			Entry("letters", "12a4"),
		)
	})

	It("shares a kind between lock and unlock", func() {
		lock, _ := action.Lock("1234")
		unlock, _ := action.Unlock("1234")
		Expect(lock.Kind).To(Equal(unlock.Kind))
		Expect(unlock.Operations).To(ConsistOf(capability.OpAccessUnlock))
	})

	Describe("Wakeup", func() {
		It("is not tracked", func() {
			a := action.Wakeup()
			Expect(a.Tracked).To(BeFalse())
			Expect(a.Path).To(Equal("vehiclewakeuptrigger"))
			Expect(a.Operations).To(ConsistOf(capability.OpVehicleWakeUpTrigger))
		})
	})
})
