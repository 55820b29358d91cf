package casenote

import "context"

// ReviewQuery narrows the records MR staff triage by requester.
type ReviewQuery struct {
	Status       Status
	DepartmentID int64
}

// Repository is a read-only source of case-note request snapshots.
// Implementations return ErrNotFound for unknown IDs.
type Repository interface {
	GetByID(ctx context.Context, id int64) (*Request, error)
	Timeline(ctx context.Context, id int64) ([]TimelineEvent, error)
	// ListInvolving returns standard records the user created, holds, or
	// held at some point.
	ListInvolving(ctx context.Context, userID int64) ([]*Request, error)
	// ListIndividualByRequester returns filing-batch sub-requests the user
	// submitted that MR staff has not approved yet.
	ListIndividualByRequester(ctx context.Context, userID int64) ([]*Request, error)
	// IsInvolved reports whether the user created, holds, or previously held
	// the standard record id, using the same rule as ListInvolving.
	IsInvolved(ctx context.Context, id, userID int64) (bool, error)
	// ListHeldBy returns standard records whose current PIC is the user.
	ListHeldBy(ctx context.Context, userID int64) ([]*Request, error)
	ListForReview(ctx context.Context, q ReviewQuery) ([]*Request, error)
}
