package casenote

import (
	"encoding/json"
	"strings"
	"time"
)

// Status is the server-authoritative workflow status of a case-note request.
type Status string

const (
	StatusPending    Status = "pending"
	StatusApproved   Status = "approved"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusRejected   Status = "rejected"

	// StatusPendingReturnVerification is reported by some listings in place
	// of the is_pending_return flag.
	StatusPendingReturnVerification Status = "pending_return_verification"
)

var knownStatuses = map[Status]bool{
	StatusPending:    true,
	StatusApproved:   true,
	StatusInProgress: true,
	StatusCompleted:  true,
	StatusRejected:   true,
}

// ParseStatus validates a status filter value. Empty is allowed and means
// "any status".
func ParseStatus(s string) (Status, bool) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if st == "" {
		return "", true
	}
	return st, knownStatuses[st]
}

// Kind discriminates standard case-note requests from filing-batch
// sub-requests that are still waiting for MR approval.
type Kind string

const (
	KindStandard   Kind = "standard"
	KindIndividual Kind = "individual"
)

// Role identifies what a viewer is allowed to see and act on.
type Role string

const (
	RoleCA      Role = "CA"
	RoleMRStaff Role = "MR_STAFF"
	RoleAdmin   Role = "ADMIN"
)

// ParseRole accepts the role spellings used by the identity provider
// ("ca", "mr_staff", "MR-STAFF", ...).
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", "_")))
	switch r {
	case RoleCA, RoleMRStaff, RoleAdmin:
		return r, true
	}
	return "", false
}

// Viewer is the acting user every classification is relative to.
type Viewer struct {
	ID   int64 `json:"id"`
	Role Role  `json:"role"`
}

// IsMR reports whether the viewer may act as medical-records staff.
func (v Viewer) IsMR() bool { return v.Role == RoleMRStaff || v.Role == RoleAdmin }

// IsCA reports whether the viewer may act as a clinic assistant.
func (v Viewer) IsCA() bool { return v.Role == RoleCA || v.Role == RoleAdmin }

type UserRef struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

type PatientRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	MRN  string `json:"mrn,omitempty"`
}

type DepartmentRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type DoctorRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type LocationRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Request is a snapshot of one case-note request as handed over by a record
// source. Classification never mutates it.
type Request struct {
	ID            int64  `json:"id"`
	RequestNumber string `json:"request_number"`
	Kind          Kind   `json:"kind"`
	Status        Status `json:"status"`

	RequestedByUserID int64  `json:"requested_by_user_id"`
	CurrentPICUserID  *int64 `json:"current_pic_user_id"`

	IsReceived           bool `json:"is_received"`
	IsReturned           bool `json:"is_returned"`
	IsRejectedReturn     bool `json:"is_rejected_return"`
	IsPendingReturn      bool `json:"is_pending_return"`
	IsWaitingForApproval bool `json:"is_waiting_for_approval"`

	ReturnedByUserID *int64     `json:"returned_by_user_id,omitempty"`
	ReturnNotes      *string    `json:"return_notes,omitempty"`
	ReturnedAt       *time.Time `json:"returned_at,omitempty"`

	RejectionReason *string    `json:"rejection_reason,omitempty"`
	RejectedAt      *time.Time `json:"rejected_at,omitempty"`
	RejectedBy      *UserRef   `json:"rejected_by,omitempty"`

	Purpose    *string    `json:"purpose,omitempty"`
	NeededDate *time.Time `json:"needed_date,omitempty"`

	Patient     *PatientRef    `json:"patient,omitempty"`
	Department  *DepartmentRef `json:"department,omitempty"`
	Doctor      *DoctorRef     `json:"doctor,omitempty"`
	Location    *LocationRef   `json:"location,omitempty"`
	RequestedBy *UserRef       `json:"requested_by,omitempty"`
	ApprovedBy  *UserRef       `json:"approved_by,omitempty"`
	CompletedBy *UserRef       `json:"completed_by,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UnmarshalJSON accepts both the explicit kind field and the legacy
// is_individual_request flag, then normalises the record.
func (r *Request) UnmarshalJSON(data []byte) error {
	type plain Request
	var aux struct {
		plain
		IsIndividualRequest bool `json:"is_individual_request"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*r = Request(aux.plain)
	if aux.IsIndividualRequest {
		r.Kind = KindIndividual
	}
	r.Normalize()
	return nil
}

// MarshalJSON keeps is_individual_request on the wire for UI code that
// still branches on it.
func (r Request) MarshalJSON() ([]byte, error) {
	type plain Request
	return json.Marshal(struct {
		plain
		IsIndividualRequest bool `json:"is_individual_request"`
	}{plain(r), r.Kind == KindIndividual})
}

// Normalize fills the default kind and enforces that individual requests
// have no person in charge.
func (r *Request) Normalize() {
	if r.Kind == "" {
		r.Kind = KindStandard
	}
	if r.Kind == KindIndividual {
		r.CurrentPICUserID = nil
	}
	if r.CurrentPICUserID != nil && *r.CurrentPICUserID == 0 {
		r.CurrentPICUserID = nil
	}
	if r.RequestedByUserID == 0 && r.RequestedBy != nil {
		r.RequestedByUserID = r.RequestedBy.ID
	}
}

// PIC returns the current person in charge, 0 when unassigned.
func (r *Request) PIC() int64 {
	if r.CurrentPICUserID == nil {
		return 0
	}
	return *r.CurrentPICUserID
}

// IsIndividual reports whether the record is a filing-batch sub-request.
func (r *Request) IsIndividual() bool { return r.Kind == KindIndividual }

// RequesterID is the grouping key for MR review: the origin requester.
func (r *Request) RequesterID() int64 {
	if r.RequestedBy != nil && r.RequestedBy.ID != 0 {
		return r.RequestedBy.ID
	}
	return r.RequestedByUserID
}

func (r *Request) PatientName() string {
	if r.Patient == nil || r.Patient.Name == "" {
		return "N/A"
	}
	return r.Patient.Name
}

func (r *Request) PatientMRN() string {
	if r.Patient == nil || r.Patient.MRN == "" {
		return "N/A"
	}
	return r.Patient.MRN
}

func (r *Request) DepartmentName() string {
	if r.Department == nil || r.Department.Name == "" {
		return "Unknown Department"
	}
	return r.Department.Name
}

func (r *Request) DoctorName() string {
	if r.Doctor == nil || r.Doctor.Name == "" {
		return "Unknown Doctor"
	}
	return r.Doctor.Name
}

func (r *Request) LocationName() string {
	if r.Location == nil || r.Location.Name == "" {
		return "Unknown Location"
	}
	return r.Location.Name
}

func (r *Request) RequesterName() string {
	if r.RequestedBy == nil || r.RequestedBy.Name == "" {
		return "Unknown User"
	}
	return r.RequestedBy.Name
}

// TimelineEvent is one lifecycle event from the request detail endpoint.
type TimelineEvent struct {
	Type        string          `json:"type"`
	Description string          `json:"description"`
	OccurredAt  time.Time       `json:"occurred_at"`
	Actor       *UserRef        `json:"actor,omitempty"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
}
