package store

import (
	"context"
	"fmt"
	"sort"

	"github.com/syntheticore/skip/internal/queryir"
)

// EventType distinguishes timeline entries.
type EventType int

const (
	EventCallSite EventType = iota
	EventCompilation
)

// String returns the event type as a string.
func (t EventType) String() string {
	switch t {
	case EventCallSite:
		return "call_site"
	case EventCompilation:
		return "compilation"
	default:
		return "unknown"
	}
}

// Event is one entry of a merged journal timeline.
type Event struct {
	Type        EventType
	Seq         int64
	CallSite    *CallSite
	Compilation *Compilation
}

// Token returns the call site token the event belongs to.
func (e Event) Token() string {
	if e.CallSite != nil {
		return e.CallSite.Token
	}
	if e.Compilation != nil {
		return e.Compilation.Token
	}
	return ""
}

// Filter narrows a Timeline. Zero fields match everything.
type Filter struct {
	Token    string `json:"token,omitempty"`
	Function string `json:"function,omitempty"`
	// State keeps compilations that ended in this state, and the call
	// sites they belong to.
	State string `json:"state,omitempty"`
	// Since drops events with a lower seq.
	Since int64 `json:"since,omitempty"`
}

func (f Filter) predicate(withState bool) queryir.Predicate {
	var ps []queryir.Predicate
	if f.Token != "" {
		ps = append(ps, queryir.Equals{Field: "token", Value: f.Token})
	}
	if f.Function != "" {
		ps = append(ps, queryir.Equals{Field: "function", Value: f.Function})
	}
	if withState && f.State != "" {
		ps = append(ps, queryir.Equals{Field: "state", Value: f.State})
	}
	if f.Since > 0 {
		ps = append(ps, queryir.AtLeast{Field: "seq", Value: f.Since})
	}
	return queryir.All(ps...)
}

// Timeline returns call site and compilation events as one stream ordered
// by seq. A filter naming a token that was never journaled returns
// ErrNotFound.
func (s *Store) Timeline(ctx context.Context, f Filter) ([]Event, error) {
	if f.Token != "" {
		if _, err := s.ReadCallSite(ctx, f.Token); err != nil {
			return nil, err
		}
	}
	sites, err := s.QueryCallSites(ctx, f.predicate(false))
	if err != nil {
		return nil, err
	}
	comps, err := s.QueryCompilations(ctx, f.predicate(true))
	if err != nil {
		return nil, err
	}
	if f.State != "" {
		keep := make(map[string]bool, len(comps))
		for _, c := range comps {
			keep[c.Token] = true
		}
		kept := sites[:0]
		for _, cs := range sites {
			if keep[cs.Token] {
				kept = append(kept, cs)
			}
		}
		sites = kept
	}

	events := make([]Event, 0, len(sites)+len(comps))
	for i := range sites {
		events = append(events, Event{Type: EventCallSite, Seq: sites[i].Seq, CallSite: &sites[i]})
	}
	for i := range comps {
		events = append(events, Event{Type: EventCompilation, Seq: comps[i].Seq, Compilation: &comps[i]})
	}
	sortEvents(events)
	return events, nil
}

// sortEvents orders by seq, with call sites before compilations for equal
// seq, then by token.
func sortEvents(events []Event) {
	sort.SliceStable(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if a.Seq != b.Seq {
			return a.Seq < b.Seq
		}
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		return a.Token() < b.Token()
	})
}

// FindUncompiled returns call sites that have no compilation record.
// Results ordered by seq ASC.
func (s *Store) FindUncompiled(ctx context.Context) ([]CallSite, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT cs.token, cs.func_name, cs.func_hash, cs.arity, cs.seq
		FROM call_sites cs
		WHERE NOT EXISTS (SELECT 1 FROM compilations c WHERE c.token = cs.token)
		ORDER BY cs.seq ASC, cs.token COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("find uncompiled: %w", err)
	}
	return collectCallSites(rows)
}

// GetLastSeq returns the highest seq number used in the journal.
// Used to resume the logical clock from the correct position.
func (s *Store) GetLastSeq(ctx context.Context) (int64, error) {
	var siteSeq, compSeq int64
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM call_sites`).Scan(&siteSeq); err != nil {
		return 0, fmt.Errorf("get last seq from call_sites: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM compilations`).Scan(&compSeq); err != nil {
		return 0, fmt.Errorf("get last seq from compilations: %w", err)
	}
	return max(siteSeq, compSeq), nil
}
