package casenote

import (
	"sort"
	"time"
)

// StatusCounts tallies a requester's records by status.
type StatusCounts struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	Approved   int `json:"approved"`
	InProgress int `json:"in_progress"`
	Completed  int `json:"completed"`
	Rejected   int `json:"rejected"`
	Other      int `json:"other"`
}

func (c *StatusCounts) add(s Status) {
	c.Total++
	switch s {
	case StatusPending:
		c.Pending++
	case StatusApproved:
		c.Approved++
	case StatusInProgress:
		c.InProgress++
	case StatusCompleted:
		c.Completed++
	case StatusRejected:
		c.Rejected++
	default:
		c.Other++
	}
}

// RequesterGroup collects the records one clinic assistant originated.
type RequesterGroup struct {
	RequesterID       int64        `json:"requester_id"`
	RequesterName     string       `json:"requester_name"`
	RequesterEmail    string       `json:"requester_email"`
	Records           []*Request   `json:"records"`
	Counts            StatusCounts `json:"counts"`
	LatestRequestDate time.Time    `json:"latest_request_date"`
}

// GroupByRequester groups records by their origin requester (never by the
// current PIC) in a single pass. Groups are ordered by latest request date,
// newest first; ties keep first-seen order so repeated runs are identical.
func GroupByRequester(records []*Request) []RequesterGroup {
	index := make(map[int64]int)
	var groups []RequesterGroup

	for _, r := range records {
		key := r.RequesterID()
		i, ok := index[key]
		if !ok {
			g := RequesterGroup{
				RequesterID:   key,
				RequesterName: r.RequesterName(),
			}
			if r.RequestedBy != nil {
				g.RequesterEmail = r.RequestedBy.Email
			}
			groups = append(groups, g)
			i = len(groups) - 1
			index[key] = i
		}

		g := &groups[i]
		g.Records = append(g.Records, r)
		g.Counts.add(r.Status)
		if r.CreatedAt.After(g.LatestRequestDate) {
			g.LatestRequestDate = r.CreatedAt
		}
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].LatestRequestDate.After(groups[j].LatestRequestDate)
	})
	return groups
}

// WithPending keeps the groups that still have pending records.
func WithPending(groups []RequesterGroup) []RequesterGroup {
	out := make([]RequesterGroup, 0, len(groups))
	for _, g := range groups {
		if g.Counts.Pending > 0 {
			out = append(out, g)
		}
	}
	return out
}
