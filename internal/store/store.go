// Package store owns the canonical in-memory ticket collection.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/agenthands/ticketkg/internal/blob"
	"github.com/agenthands/ticketkg/internal/ticket"
)

// Status describes the current snapshot.
type Status struct {
	Count       int        `json:"count"`
	Source      string     `json:"source"`
	LastUpdated *time.Time `json:"last_updated"`
}

// Listener is called after every reload with the new snapshot.
type Listener func(ctx context.Context, tickets []ticket.Ticket)

type Options struct {
	Bucket    string
	Key       string
	LocalPath string
	Remote    blob.Fetcher // nil disables the remote source
	Local     blob.Fetcher
	Logger    *slog.Logger
}

type Store struct {
	opts   Options
	logger *slog.Logger
	now    func() time.Time

	mu        sync.RWMutex
	tickets   []ticket.Ticket
	source    string
	updated   *time.Time
	listeners []Listener
}

func New(opts Options) *Store {
	if opts.Local == nil {
		opts.Local = blob.FileFetcher{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{opts: opts, logger: logger, now: time.Now, source: "none"}
}

// Subscribe registers fn to run after each reload.
func (s *Store) Subscribe(fn Listener) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// Reload fetches the collection from the remote source, falling back to the
// local cache file. It never fails: problems are reflected in the returned
// Status source and logged.
func (s *Store) Reload(ctx context.Context) Status {
	source := "none"
	var tickets []ticket.Ticket
	loaded := false

	if s.opts.Remote != nil && s.opts.Bucket != "" {
		kb, err := s.opts.Remote.FetchTickets(ctx, s.opts.Bucket, s.opts.Key)
		if err != nil {
			s.logger.Warn("remote ticket fetch failed", "bucket", s.opts.Bucket, "key", s.opts.Key, "error", err)
			source = "s3-error:" + err.Error()
		} else {
			tickets, loaded = kb, true
			source = fmt.Sprintf("s3://%s/%s", s.opts.Bucket, s.opts.Key)
			if s.opts.LocalPath != "" {
				if err := blob.WriteLocal(s.opts.LocalPath, kb); err != nil {
					s.logger.Warn("failed to cache tickets locally", "path", s.opts.LocalPath, "error", err)
				}
			}
		}
	}

	if !loaded && s.opts.LocalPath != "" {
		kb, err := s.opts.Local.FetchTickets(ctx, "", s.opts.LocalPath)
		if err != nil {
			s.logger.Warn("local ticket file unavailable", "path", s.opts.LocalPath, "error", err)
		} else if len(kb) > 0 {
			tickets = kb
			source = s.opts.LocalPath
		}
	}

	if tickets == nil {
		tickets = []ticket.Ticket{}
	}
	now := s.now().UTC()

	s.mu.Lock()
	s.tickets = tickets
	s.source = source
	s.updated = &now
	listeners := append([]Listener(nil), s.listeners...)
	s.mu.Unlock()

	s.logger.Info("tickets reloaded", "count", len(tickets), "source", source)

	for _, fn := range listeners {
		fn(ctx, s.Tickets())
	}

	return Status{Count: len(tickets), Source: source, LastUpdated: &now}
}

// Tickets returns a shallow copy of the current collection.
func (s *Store) Tickets() []ticket.Ticket {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]ticket.Ticket(nil), s.tickets...)
}

func (s *Store) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := Status{Count: len(s.tickets), Source: s.source}
	if s.updated != nil {
		t := *s.updated
		st.LastUpdated = &t
	}
	return st
}

// FindByID matches ticketId or displayId case-insensitively.
func (s *Store) FindByID(id string) (ticket.Ticket, bool) {
	id = strings.ToLower(strings.TrimSpace(id))
	if id == "" {
		return nil, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.tickets {
		if strings.ToLower(t.String("ticketId")) == id || strings.ToLower(t.String("displayId")) == id {
			return t, true
		}
	}
	return nil, false
}

const (
	subjectMatchWeight     = 10
	descriptionMatchWeight = 2
)

// SearchByText is the cheap local scorer: a substring hit in the subject
// counts more than one in the description. Ties keep collection order.
func (s *Store) SearchByText(query string, topK int) []ticket.Ticket {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" || topK <= 0 {
		return []ticket.Ticket{}
	}
	tickets := s.Tickets()

	type scored struct {
		t     ticket.Ticket
		score int
	}
	var hits []scored
	for _, t := range tickets {
		score := 0
		if strings.Contains(strings.ToLower(t.String("subject")), q) {
			score += subjectMatchWeight
		}
		if strings.Contains(strings.ToLower(t.String("description")), q) {
			score += descriptionMatchWeight
		}
		if score > 0 {
			hits = append(hits, scored{t, score})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	if len(hits) > topK {
		hits = hits[:topK]
	}
	out := make([]ticket.Ticket, len(hits))
	for i, h := range hits {
		out[i] = h.t
	}
	return out
}
