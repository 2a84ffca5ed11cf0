package connector

// SpinState is the S-PIN status of the account.
type SpinState struct {
	RemainingTries    int    `json:"remainingTries"`
	LockedWaitingTime int    `json:"lockedWaitingTimeInSeconds"`
	State             string `json:"state"`
}

// MinSpinTries is the number of remaining S-PIN attempts below which the client refuses to send the
// S-PIN. The vendor locks the S-PIN after the last attempt.
const MinSpinTries = 3

// Usable returns false if sending the S-PIN risks locking it.
func (s *SpinState) Usable() bool {
	return s != nil && s.RemainingTries >= MinSpinTries
}

// Trip statistic kinds.
const (
	TripShortTerm = "shortterm"
	TripLongTerm  = "longterm"
	TripCyclic    = "cyclic"
)
