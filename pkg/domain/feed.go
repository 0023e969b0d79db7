package domain

// FeedPhase is a state of the feed sequencer.
type FeedPhase string

const (
	PhaseIdle           FeedPhase = "idle"
	PhaseDrive          FeedPhase = "phase1_drive"
	PhaseSettle         FeedPhase = "phase1_settle"
	PhaseReverse        FeedPhase = "phase2_reverse"
	PhaseWaitEntryClear FeedPhase = "wait_entry_clear"
	PhaseDriveToExit    FeedPhase = "drive_to_exit"
	PhaseDone           FeedPhase = "done"

	PhaseTimeoutAtEntry FeedPhase = "timeout_at_entry"
	PhaseTimeoutAtClear FeedPhase = "timeout_at_clear"
	PhaseTimeoutAtExit  FeedPhase = "timeout_at_exit"
)

// Terminal reports whether the phase ends a feed cycle.
func (p FeedPhase) Terminal() bool {
	switch p {
	case PhaseDone, PhaseTimeoutAtEntry, PhaseTimeoutAtClear, PhaseTimeoutAtExit:
		return true
	}
	return false
}
