package casenote

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
)

// Recorder observes classified views, e.g. for metrics.
type Recorder interface {
	ObserveViews(surface string, views []View)
}

type Service struct {
	repo Repository
	rec  Recorder
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// SetRecorder attaches an optional Recorder to the service.
func (s *Service) SetRecorder(rec Recorder) {
	s.rec = rec
}

func (s *Service) observe(surface string, views []View) {
	if s.rec != nil {
		s.rec.ObserveViews(surface, views)
	}
}

// MyRequestsFilter narrows the "my requests" listing. Zero values match all.
type MyRequestsFilter struct {
	Status      Status
	Involvement Involvement
	Search      string
}

// ReturnFilter narrows the records offered on the return page.
type ReturnFilter struct {
	Search       string
	DepartmentID int64
}

// ReturnList splits the viewer's held records into the two return buckets.
type ReturnList struct {
	Returnable          []View `json:"returnable"`
	PendingVerification []View `json:"pending_verification"`
}

// Detail is one record with its lifecycle timeline.
type Detail struct {
	View
	Timeline []TimelineEvent `json:"timeline"`
}

// MyRequests lists every record the viewer is involved in, including
// filing-batch requests still waiting for MR approval, newest first.
func (s *Service) MyRequests(ctx context.Context, viewer Viewer, f MyRequestsFilter) ([]View, error) {
	if viewer.ID == 0 {
		return nil, ErrNoViewer
	}

	var standard, individual []*Request
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		standard, err = s.repo.ListInvolving(gctx, viewer.ID)
		return err
	})
	g.Go(func() error {
		var err error
		individual, err = s.repo.ListIndividualByRequester(gctx, viewer.ID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("list requests for user %d: %w", viewer.ID, err)
	}

	records := make([]*Request, 0, len(standard)+len(individual))
	seen := make(map[int64]bool, len(standard))
	for _, r := range standard {
		if seen[r.ID] {
			continue
		}
		seen[r.ID] = true
		records = append(records, r)
	}
	for _, r := range individual {
		if r.RequestedByUserID == 0 {
			cp := *r
			cp.RequestedByUserID = viewer.ID
			r = &cp
		}
		records = append(records, r)
	}
	sortNewestFirst(records)

	views := make([]View, 0, len(records))
	for _, r := range records {
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		if !matchesSearch(r, f.Search) {
			continue
		}
		v := Classify(r, viewer)
		if f.Involvement != "" && v.Involvement != f.Involvement {
			continue
		}
		views = append(views, v)
	}
	s.observe("my_requests", views)
	return views, nil
}

func (s *Service) visibleForReturn(ctx context.Context, viewer Viewer, f ReturnFilter) ([]*Request, error) {
	if viewer.ID == 0 {
		return nil, ErrNoViewer
	}
	held, err := s.repo.ListHeldBy(ctx, viewer.ID)
	if err != nil {
		return nil, fmt.Errorf("list held case notes for user %d: %w", viewer.ID, err)
	}
	visible := make([]*Request, 0, len(held))
	for _, r := range held {
		if f.DepartmentID != 0 && (r.Department == nil || r.Department.ID != f.DepartmentID) {
			continue
		}
		if !matchesSearch(r, f.Search) {
			continue
		}
		visible = append(visible, r)
	}
	sortNewestFirst(visible)
	return visible, nil
}

// ReturnCaseNotes lists the viewer's held case notes that can be returned
// now, and those whose return is waiting for MR verification.
func (s *Service) ReturnCaseNotes(ctx context.Context, viewer Viewer, f ReturnFilter) (*ReturnList, error) {
	visible, err := s.visibleForReturn(ctx, viewer, f)
	if err != nil {
		return nil, err
	}
	list := &ReturnList{Returnable: []View{}, PendingVerification: []View{}}
	for _, r := range visible {
		switch ReturnBucket(r) {
		case BucketReturnable:
			list.Returnable = append(list.Returnable, Classify(r, viewer))
		case BucketPendingVerification:
			list.PendingVerification = append(list.PendingVerification, Classify(r, viewer))
		}
	}
	s.observe("returns", list.Returnable)
	s.observe("returns_pending", list.PendingVerification)
	return list, nil
}

// ReconcileReturnSelection reloads the visible return list and returns the
// selection restricted to it. With selectAll the selection becomes every
// visible returnable record.
func (s *Service) ReconcileReturnSelection(ctx context.Context, viewer Viewer, ids []int64, selectAll bool, f ReturnFilter) (Selection, error) {
	visible, err := s.visibleForReturn(ctx, viewer, f)
	if err != nil {
		return nil, err
	}
	if selectAll {
		return SelectAllReturnable(visible), nil
	}
	return ReconcileSelection(NewSelection(ids...), visible), nil
}

// ReviewGroups groups review records by requester for MR staff triage.
func (s *Service) ReviewGroups(ctx context.Context, viewer Viewer, q ReviewQuery, onlyPending bool) ([]RequesterGroup, error) {
	if !viewer.IsMR() {
		return nil, ErrForbidden
	}
	records, err := s.repo.ListForReview(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list review records: %w", err)
	}
	groups := GroupByRequester(records)
	if onlyPending {
		groups = WithPending(groups)
	}
	if groups == nil {
		groups = []RequesterGroup{}
	}
	return groups, nil
}

// Detail loads a record and its timeline. Clinic assistants only see records
// they created, hold, held before, or appear in the timeline of.
func (s *Service) Detail(ctx context.Context, viewer Viewer, id int64) (*Detail, error) {
	if viewer.ID == 0 {
		return nil, ErrNoViewer
	}

	var (
		r        *Request
		timeline []TimelineEvent
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		r, err = s.repo.GetByID(gctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		timeline, err = s.repo.Timeline(gctx, id)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load case note request %d: %w", id, err)
	}

	if !viewer.IsMR() && !involved(r, timeline, viewer.ID) {
		ok, err := s.repo.IsInvolved(ctx, id, viewer.ID)
		if err != nil {
			return nil, fmt.Errorf("check involvement in case note request %d: %w", id, err)
		}
		if !ok {
			return nil, ErrForbidden
		}
	}
	if timeline == nil {
		timeline = []TimelineEvent{}
	}

	v := Classify(r, viewer)
	s.observe("detail", []View{v})
	return &Detail{View: v, Timeline: timeline}, nil
}

// ClassifySnapshot classifies caller-supplied records without touching the
// record source.
func (s *Service) ClassifySnapshot(viewer Viewer, records []*Request) []View {
	views := ClassifyAll(records, viewer)
	s.observe("snapshot", views)
	return views
}

func involved(r *Request, timeline []TimelineEvent, userID int64) bool {
	if r.RequestedByUserID == userID || r.PIC() == userID {
		return true
	}
	for _, ev := range timeline {
		if ev.Actor != nil && ev.Actor.ID == userID {
			return true
		}
	}
	return false
}

func matchesSearch(r *Request, q string) bool {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return true
	}
	fields := []string{r.RequestNumber}
	if r.Patient != nil {
		fields = append(fields, r.Patient.Name, r.Patient.MRN)
	}
	if r.Department != nil {
		fields = append(fields, r.Department.Name)
	}
	if r.Doctor != nil {
		fields = append(fields, r.Doctor.Name)
	}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), q) {
			return true
		}
	}
	return false
}

func sortNewestFirst(records []*Request) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
}
