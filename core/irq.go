package core

// Irq is a registered interrupt callback with its context value.
// It mirrors the callback+context pair an MCU vector table would hold.
type Irq struct {
	Callback func(context any)
	Context  any
}

// maskState tracks the masking discipline of one interrupt source.
// A source moves to maskClosedPending when a delivery arrives while
// masked; unmasking replays that deferred delivery exactly once.
type maskState uint8

const (
	maskOpen          maskState = iota // deliveries invoke the callback directly
	maskClosed                         // deliveries are deferred
	maskClosedPending                  // masked with one deferred delivery owed
)

// deliverable reports whether a delivery may invoke the callback now.
// If not, the source records the delivery as pending.
func (m *maskState) deliverable() bool {
	if *m == maskOpen {
		return true
	}
	*m = maskClosedPending
	return false
}

// unmask opens the source and reports whether a deferred delivery is owed.
func (m *maskState) unmask() bool {
	pending := *m == maskClosedPending
	*m = maskOpen
	return pending
}

// mask closes the source. An already-pending delivery stays owed.
func (m *maskState) mask() {
	if *m == maskOpen {
		*m = maskClosed
	}
}

// discard drops any deferred delivery but keeps the mask closed/open as is.
func (m *maskState) discard() {
	if *m == maskClosedPending {
		*m = maskClosed
	}
}
