package casenote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

type requestRepoPG struct{ db queryable }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &requestRepoPG{db: pool}
}

const requestCols = `r.id, r.request_number, r.status, r.requested_by_user_id, r.current_pic_user_id,
	r.is_received, r.is_returned, r.is_rejected_return, r.is_pending_return, r.is_waiting_for_approval,
	r.returned_by_user_id, r.return_notes, r.returned_at,
	r.rejection_reason, r.rejected_at, rj.id, rj.name, rj.email,
	r.purpose, r.needed_date,
	p.id, p.name, p.mrn, d.id, d.name, doc.id, doc.name, l.id, l.name,
	rb.id, rb.name, rb.email, ab.id, ab.name, ab.email, cb.id, cb.name, cb.email,
	r.created_at, r.updated_at`

const requestFrom = ` FROM case_note_requests r
	LEFT JOIN patients p ON p.id = r.patient_id
	LEFT JOIN departments d ON d.id = r.department_id
	LEFT JOIN doctors doc ON doc.id = r.doctor_id
	LEFT JOIN locations l ON l.id = r.location_id
	LEFT JOIN users rb ON rb.id = r.requested_by_user_id
	LEFT JOIN users ab ON ab.id = r.approved_by_user_id
	LEFT JOIN users cb ON cb.id = r.completed_by_user_id
	LEFT JOIN users rj ON rj.id = r.rejected_by_user_id`

const individualCols = `f.id, f.request_number, f.status, f.requested_by_user_id, f.purpose, f.needed_date,
	p.id, p.name, p.mrn, d.id, d.name, doc.id, doc.name, l.id, l.name,
	rb.id, rb.name, rb.email, f.created_at, f.updated_at`

const individualFrom = ` FROM filing_requests f
	LEFT JOIN patients p ON p.id = f.patient_id
	LEFT JOIN departments d ON d.id = f.department_id
	LEFT JOIN doctors doc ON doc.id = f.doctor_id
	LEFT JOIN locations l ON l.id = f.location_id
	LEFT JOIN users rb ON rb.id = f.requested_by_user_id`

// nullRef scans a LEFT JOINed reference; extra carries email or MRN.
type nullRef struct {
	id    *int64
	name  *string
	extra *string
}

func (n nullRef) user() *UserRef {
	if n.id == nil {
		return nil
	}
	return &UserRef{ID: *n.id, Name: deref(n.name), Email: deref(n.extra)}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

type refs struct {
	patient                nullRef
	dept, doctor, location nullRef
}

func (x refs) apply(r *Request) {
	if x.patient.id != nil {
		r.Patient = &PatientRef{ID: *x.patient.id, Name: deref(x.patient.name), MRN: deref(x.patient.extra)}
	}
	if x.dept.id != nil {
		r.Department = &DepartmentRef{ID: *x.dept.id, Name: deref(x.dept.name)}
	}
	if x.doctor.id != nil {
		r.Doctor = &DoctorRef{ID: *x.doctor.id, Name: deref(x.doctor.name)}
	}
	if x.location.id != nil {
		r.Location = &LocationRef{ID: *x.location.id, Name: deref(x.location.name)}
	}
}

func scanRequest(row pgx.Row) (*Request, error) {
	var (
		r                            Request
		status                       string
		rejectedBy, reqBy, apBy, cBy nullRef
		x                            refs
	)
	err := row.Scan(&r.ID, &r.RequestNumber, &status, &r.RequestedByUserID, &r.CurrentPICUserID,
		&r.IsReceived, &r.IsReturned, &r.IsRejectedReturn, &r.IsPendingReturn, &r.IsWaitingForApproval,
		&r.ReturnedByUserID, &r.ReturnNotes, &r.ReturnedAt,
		&r.RejectionReason, &r.RejectedAt, &rejectedBy.id, &rejectedBy.name, &rejectedBy.extra,
		&r.Purpose, &r.NeededDate,
		&x.patient.id, &x.patient.name, &x.patient.extra,
		&x.dept.id, &x.dept.name, &x.doctor.id, &x.doctor.name, &x.location.id, &x.location.name,
		&reqBy.id, &reqBy.name, &reqBy.extra, &apBy.id, &apBy.name, &apBy.extra, &cBy.id, &cBy.name, &cBy.extra,
		&r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	r.Kind = KindStandard
	r.Status = Status(status)
	r.RejectedBy = rejectedBy.user()
	r.RequestedBy = reqBy.user()
	r.ApprovedBy = apBy.user()
	r.CompletedBy = cBy.user()
	x.apply(&r)
	r.Normalize()
	return &r, nil
}

func scanIndividual(row pgx.Row) (*Request, error) {
	var (
		r      Request
		status string
		reqBy  nullRef
		x      refs
	)
	err := row.Scan(&r.ID, &r.RequestNumber, &status, &r.RequestedByUserID, &r.Purpose, &r.NeededDate,
		&x.patient.id, &x.patient.name, &x.patient.extra,
		&x.dept.id, &x.dept.name, &x.doctor.id, &x.doctor.name, &x.location.id, &x.location.name,
		&reqBy.id, &reqBy.name, &reqBy.extra, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	r.Kind = KindIndividual
	r.Status = Status(status)
	r.RequestedBy = reqBy.user()
	x.apply(&r)
	r.Normalize()
	return &r, nil
}

func mapPGError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (r *requestRepoPG) queryMany(ctx context.Context, scan func(pgx.Row) (*Request, error), sql string, args ...interface{}) ([]*Request, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := make([]*Request, 0)
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *requestRepoPG) GetByID(ctx context.Context, id int64) (*Request, error) {
	req, err := scanRequest(r.db.QueryRow(ctx, `SELECT `+requestCols+requestFrom+` WHERE r.id = $1`, id))
	if err != nil {
		return nil, mapPGError(err)
	}
	return req, nil
}

func (r *requestRepoPG) Timeline(ctx context.Context, id int64) ([]TimelineEvent, error) {
	rows, err := r.db.Query(ctx, `
		SELECT e.type, e.description, e.occurred_at, u.id, u.name, u.email, e.metadata
		FROM case_note_events e
		LEFT JOIN users u ON u.id = e.actor_user_id
		WHERE e.request_id = $1
		ORDER BY e.occurred_at ASC, e.id ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("query timeline: %w", err)
	}
	defer rows.Close()

	events := make([]TimelineEvent, 0)
	for rows.Next() {
		var (
			ev       TimelineEvent
			actor    nullRef
			metadata []byte
		)
		if err := rows.Scan(&ev.Type, &ev.Description, &ev.OccurredAt,
			&actor.id, &actor.name, &actor.extra, &metadata); err != nil {
			return nil, fmt.Errorf("scan timeline event: %w", err)
		}
		ev.Actor = actor.user()
		if len(metadata) > 0 {
			ev.Metadata = json.RawMessage(metadata)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// involvingWhere matches records the user ($1) created, holds, or held.
const involvingWhere = `(r.requested_by_user_id = $1
	   OR r.current_pic_user_id = $1
	   OR EXISTS (SELECT 1 FROM case_note_request_involvements i
	              WHERE i.request_id = r.id AND i.user_id = $1))`

func (r *requestRepoPG) ListInvolving(ctx context.Context, userID int64) ([]*Request, error) {
	return r.queryMany(ctx, scanRequest, `SELECT `+requestCols+requestFrom+`
		WHERE `+involvingWhere+`
		ORDER BY r.created_at DESC, r.id DESC`, userID)
}

func (r *requestRepoPG) IsInvolved(ctx context.Context, id, userID int64) (bool, error) {
	var ok bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM case_note_requests r
		WHERE r.id = $2 AND `+involvingWhere+`)`, userID, id).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("check involvement: %w", err)
	}
	return ok, nil
}

func (r *requestRepoPG) ListIndividualByRequester(ctx context.Context, userID int64) ([]*Request, error) {
	return r.queryMany(ctx, scanIndividual, `SELECT `+individualCols+individualFrom+`
		WHERE f.requested_by_user_id = $1 AND f.status = 'pending'
		ORDER BY f.created_at DESC, f.id DESC`, userID)
}

func (r *requestRepoPG) ListHeldBy(ctx context.Context, userID int64) ([]*Request, error) {
	return r.queryMany(ctx, scanRequest, `SELECT `+requestCols+requestFrom+`
		WHERE r.current_pic_user_id = $1
		ORDER BY r.created_at DESC, r.id DESC`, userID)
}

func (r *requestRepoPG) ListForReview(ctx context.Context, q ReviewQuery) ([]*Request, error) {
	standard, err := r.queryMany(ctx, scanRequest, `SELECT `+requestCols+requestFrom+`
		WHERE ($1::text = '' OR r.status = $1::text)
		  AND ($2::bigint = 0 OR r.department_id = $2)
		ORDER BY r.created_at DESC, r.id DESC`, string(q.Status), q.DepartmentID)
	if err != nil {
		return nil, err
	}
	if q.Status != "" && q.Status != StatusPending {
		return standard, nil
	}

	individual, err := r.queryMany(ctx, scanIndividual, `SELECT `+individualCols+individualFrom+`
		WHERE f.status = 'pending'
		  AND ($1::bigint = 0 OR f.department_id = $1)
		ORDER BY f.created_at DESC, f.id DESC`, q.DepartmentID)
	if err != nil {
		return nil, err
	}
	return append(standard, individual...), nil
}
