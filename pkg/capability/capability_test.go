package capability_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/carnet-go/vehicle-command/pkg/capability"
)

const listDocument = `{
  "capabilities": [
    {
      "id": "access",
      "isEnabled": true,
      "userDisablingAllowed": false,
      "status": [],
      "operations": {
        "postAccessLock": {"id": "postAccessLock", "scopes": ["remote"]},
        "postAccessUnlock": {"id": "postAccessUnlock", "scopes": ["remote"]}
      }
    },
    {
      "id": "climatisation",
      "isEnabled": false,
      "status": ["DisabledByUser"],
      "operations": {"postClimatisationStart": {"id": "postClimatisationStart"}}
    },
    {
      "id": "charging",
      "isEnabled": true,
      "status": ["LicenseExpired"],
      "operations": [{"id": "postChargingStart"}, "postChargingStop"],
      "parameters": [{"key": "supportsTargetStateOfCharge", "value": "true"}]
    },
    {"id": "honkAndFlash", "isEnabled": true, "operations": {}},
    "garbage"
  ],
  "parameters": {"vehicleCapabilitiesVersion": 3, "userRole": "primaryUser"}
}`

const objectDocument = `{
  "capabilities": {
    "access": {"isEnabled": true, "operations": {"postAccessLock": {"scopes": []}}},
    "measurements": {"id": "measurements", "isEnabled": true, "status": [1004]}
  },
  "parameters": [{"key": "region", "value": "EU"}]
}`

var _ = Describe("Capabilities", func() {
	Describe("Parse", func() {
		It("accepts a capability list", func() {
			set, err := capability.Parse([]byte(listDocument))
			Expect(err).ToNot(HaveOccurred())
			Expect(set.IDs()).To(Equal([]string{"access", "charging", "climatisation", "honkAndFlash"}))
			Expect(set.Parameters).To(HaveKeyWithValue("vehicleCapabilitiesVersion", "3"))
			Expect(set.Parameters).To(HaveKeyWithValue("userRole", "primaryUser"))
			Expect(set.Get("charging").Parameters).To(HaveKeyWithValue("supportsTargetStateOfCharge", "true"))
			Expect(set.Get("charging").Operations).To(HaveKey("postChargingStop"))
		})

		It("accepts a capability object keyed by id", func() {
			set, err := capability.Parse([]byte(objectDocument))
			Expect(err).ToNot(HaveOccurred())
			Expect(set.Supported("access", capability.OpAccessLock)).To(BeTrue())
			Expect(set.Get("measurements").Status).To(Equal([]string{"1004"}))
			Expect(set.Parameters).To(HaveKeyWithValue("region", "EU"))
		})

		It("rejects a document that is not JSON", func() {
			_, err := capability.Parse([]byte("<html>"))
			Expect(err).To(HaveOccurred())
		})

		It("tolerates a document without capabilities", func() {
			set, err := capability.Parse([]byte(`{}`))
			Expect(err).ToNot(HaveOccurred())
			Expect(set.Supported("access")).To(BeFalse())
		})
	})

	Describe("Supported", func() {
		var set *capability.Set

		BeforeEach(func() {
			var err error
			set, err = capability.Parse([]byte(listDocument))
			Expect(err).ToNot(HaveOccurred())
		})

		It("supports lock when access is enabled with postAccessLock", func() {
			Expect(set.Supported("access", capability.OpAccessLock)).To(BeTrue())
			Expect(set.Supported("access", capability.OpAccessLock, capability.OpAccessUnlock)).To(BeTrue())
		})

		It("does not support a capability disabled by the user", func() {
			Expect(set.Supported("climatisation")).To(BeFalse())
			Expect(set.Supported("climatisation", capability.OpClimatisationStart)).To(BeFalse())
		})

		It("does not support a capability with a blocking status", func() {
			Expect(set.Get("charging").IsEnabled).To(BeTrue())
			Expect(set.Supported("charging", capability.OpChargingStart)).To(BeFalse())
			status, blocked := set.Get("charging").Blocked()
			Expect(blocked).To(BeTrue())
			Expect(status).To(Equal(capability.StatusLicenseExpired))
		})

		It("requires every operation", func() {
			Expect(set.Supported("honkAndFlash")).To(BeTrue())
			Expect(set.Supported("honkAndFlash", capability.OpHonkAndFlash)).To(BeFalse())
		})

		It("does not support unknown capabilities", func() {
			Expect(set.Supported("teleport")).To(BeFalse())
		})

		It("never panics on a nil set", func() {
			var empty *capability.Set
			Expect(empty.Supported("access", capability.OpAccessLock)).To(BeFalse())
			Expect(empty.Enabled("access")).To(BeFalse())
		})

		It("is a pure function of the descriptor", func() {
			d := &capability.Descriptor{ID: "access", IsEnabled: true, Operations: map[string]bool{"postAccessLock": true}}
			Expect(d.Usable()).To(BeTrue())
			for _, status := range []string{
				capability.StatusMissingLicense,
				capability.StatusLicenseExpired,
				capability.StatusVehicleDisabled,
				capability.StatusInsufficientRights,
			} {
				blocked := *d
				blocked.Status = []string{status}
				Expect(blocked.Usable()).To(BeFalse(), status)
			}
		})
	})
})
