package casenote

import "strings"

// Involvement is the viewer's relationship to a record. Exactly one applies
// per (viewer, record) pair.
type Involvement string

const (
	InvolvementRequestedAndVerified Involvement = "Requested & Verified"
	InvolvementCreated              Involvement = "Created"
	InvolvementHandedOver           Involvement = "Handed Over"
	InvolvementHandedOverToMe       Involvement = "Handed Over to Me"
	InvolvementPreviouslyInvolved   Involvement = "Previously Involved"
	InvolvementRequestedByMe        Involvement = "Requested by Me"
	InvolvementReturnedAndCompleted Involvement = "Returned & Completed"
)

// Involvements lists every category in display order.
var Involvements = []Involvement{
	InvolvementRequestedByMe,
	InvolvementRequestedAndVerified,
	InvolvementCreated,
	InvolvementHandedOver,
	InvolvementHandedOverToMe,
	InvolvementPreviouslyInvolved,
	InvolvementReturnedAndCompleted,
}

// Slug is the query-string form of the category, e.g. "handed_over_to_me".
func (i Involvement) Slug() string {
	s := strings.ToLower(string(i))
	s = strings.ReplaceAll(s, " & ", "_and_")
	return strings.ReplaceAll(s, " ", "_")
}

// ParseInvolvement matches a filter value against the category names or
// their slugs, ignoring case. Empty means "any".
func ParseInvolvement(s string) (Involvement, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", true
	}
	for _, inv := range Involvements {
		if strings.EqualFold(string(inv), s) || strings.EqualFold(inv.Slug(), s) {
			return inv, true
		}
	}
	return "", false
}

// ClassifyInvolvement walks the priority chain for r as seen by viewerID.
// A nil, zero or absent person in charge all count as unassigned, and an
// unassigned PIC never matches the viewer.
func ClassifyInvolvement(r *Request, viewerID int64) Involvement {
	pic := r.PIC()
	holds := pic != 0 && pic == viewerID

	if r.IsIndividual() {
		return InvolvementRequestedByMe
	}

	createdByViewer := r.RequestedByUserID == viewerID
	if r.Status == StatusCompleted && createdByViewer && !holds {
		return InvolvementReturnedAndCompleted
	}

	if createdByViewer {
		switch {
		case holds:
			return InvolvementRequestedAndVerified
		case pic == 0:
			return InvolvementCreated
		default:
			return InvolvementHandedOver
		}
	}

	if holds {
		return InvolvementHandedOverToMe
	}
	return InvolvementPreviouslyInvolved
}
