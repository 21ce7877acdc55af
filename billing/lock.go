package billing

// =============================================================================
// EDIT-LOCK POLICY
// =============================================================================

// LockReasonFor returns why p may not be mutated on today, or "" if it may.
//
// A closed production is always locked. An open one is only mutable on the
// calendar day it was created; the caller supplies CreatedAt in the same
// location today was computed in.
func LockReasonFor(p Production, today Date) LockReason {
	if p.Status.IsClosed() {
		return LockPeriodClosed
	}
	if !DateOf(p.CreatedAt).Equal(today) {
		return LockNotSameDay
	}
	return ""
}

// CanEdit reports whether p may be updated, deleted or duplicated today.
func CanEdit(p Production, today Date) bool {
	return LockReasonFor(p, today) == ""
}

// CheckEditable returns an EditLockedError when p is locked.
func CheckEditable(p Production, today Date) error {
	if reason := LockReasonFor(p, today); reason != "" {
		return &EditLockedError{ProductionID: p.ID, Reason: reason}
	}
	return nil
}
