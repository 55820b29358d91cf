package casenote

import "sort"

// Bucket is where a record lands on the return page.
type Bucket string

const (
	BucketReturnable          Bucket = "returnable"
	BucketPendingVerification Bucket = "pending_verification"
	BucketReturned            Bucket = "returned"
	BucketNotReceived         Bucket = "not_received"
)

// IsPendingReturn reports whether a return is waiting for MR verification.
func IsPendingReturn(r *Request) bool {
	return r.IsPendingReturn || r.Status == StatusPendingReturnVerification
}

// IsReturnable reports whether a return may be started for r: it has been
// received and was either never returned or its last return was rejected.
// Records mid-verification are not returnable.
func IsReturnable(r *Request) bool {
	if !r.IsReceived || IsPendingReturn(r) {
		return false
	}
	return !r.IsReturned || r.IsRejectedReturn
}

// ReturnBucket places r in exactly one return-page bucket.
func ReturnBucket(r *Request) Bucket {
	switch {
	case IsPendingReturn(r):
		return BucketPendingVerification
	case IsReturnable(r):
		return BucketReturnable
	case r.IsReceived:
		return BucketReturned
	default:
		return BucketNotReceived
	}
}

// Selection is a set of record IDs chosen for a batch return. Functions
// that change a selection return a new value and leave the input untouched.
type Selection map[int64]struct{}

// NewSelection builds a selection from ids.
func NewSelection(ids ...int64) Selection {
	s := make(Selection, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Has reports whether id is selected.
func (s Selection) Has(id int64) bool {
	_, ok := s[id]
	return ok
}

// IDs returns the selected IDs in ascending order.
func (s Selection) IDs() []int64 {
	ids := make([]int64, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// SelectAllReturnable selects every returnable record among visible.
func SelectAllReturnable(visible []*Request) Selection {
	s := make(Selection)
	for _, r := range visible {
		if IsReturnable(r) {
			s[r.ID] = struct{}{}
		}
	}
	return s
}

// ReconcileSelection drops IDs that are no longer visible or no longer
// returnable, e.g. after the list was filtered or reloaded.
func ReconcileSelection(sel Selection, visible []*Request) Selection {
	out := make(Selection)
	for _, r := range visible {
		if sel.Has(r.ID) && IsReturnable(r) {
			out[r.ID] = struct{}{}
		}
	}
	return out
}

// Toggle flips id in the selection. Only visible returnable records can be
// added; removing is always allowed.
func Toggle(sel Selection, id int64, visible []*Request) Selection {
	out := make(Selection, len(sel)+1)
	for k := range sel {
		out[k] = struct{}{}
	}
	if out.Has(id) {
		delete(out, id)
		return out
	}
	for _, r := range visible {
		if r.ID == id && IsReturnable(r) {
			out[id] = struct{}{}
			break
		}
	}
	return out
}
