package casenote

// Actions are the workflow operations the UI may offer the viewer for a
// record. The operations themselves run on the case-note backend.
type Actions struct {
	CanReturn       bool `json:"can_return"`
	CanHandover     bool `json:"can_handover"`
	CanApprove      bool `json:"can_approve"`
	CanReject       bool `json:"can_reject"`
	CanVerifyReturn bool `json:"can_verify_return"`
	CanRejectReturn bool `json:"can_reject_return"`
}

// Any reports whether at least one action is available.
func (a Actions) Any() bool {
	return a.CanReturn || a.CanHandover || a.CanApprove || a.CanReject ||
		a.CanVerifyReturn || a.CanRejectReturn
}

// AvailableActions gates the workflow buttons for viewer on r.
func AvailableActions(r *Request, viewer Viewer) Actions {
	var a Actions

	holds := viewer.ID != 0 && r.PIC() == viewer.ID
	if viewer.IsCA() && holds {
		a.CanReturn = IsReturnable(r)
		a.CanHandover = IsReturnable(r) && !r.IsWaitingForApproval &&
			(r.Status == StatusApproved || r.Status == StatusInProgress)
	}

	if viewer.IsMR() {
		awaitingDecision := r.IsIndividual() || r.Status == StatusPending
		a.CanApprove = awaitingDecision
		a.CanReject = awaitingDecision

		pending := IsPendingReturn(r)
		a.CanVerifyReturn = pending
		a.CanRejectReturn = pending
	}

	return a
}
