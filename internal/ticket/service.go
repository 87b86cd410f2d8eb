// Package ticket implements the ticketing business logic behind the tools.
package ticket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/ticketbridge/ticketbridge/internal/adapter/outbound/ticketstore"
	"github.com/ticketbridge/ticketbridge/internal/domain"
)

// Store is the persistence contract the service needs.
type Store interface {
	Create(ctx context.Context, t domain.Ticket) (domain.Ticket, error)
	Get(ctx context.Context, id int64) (domain.Ticket, error)
	List(ctx context.Context, f domain.TicketFilter) ([]domain.Ticket, error)
	Update(ctx context.Context, t domain.Ticket) error
	Delete(ctx context.Context, id int64) error
	Search(ctx context.Context, terms []string, limit int) ([]domain.Ticket, error)
	CountByColumn(ctx context.Context, column string) (map[string]int, error)
	CountSince(ctx context.Context, cutoff time.Time) (int, error)
	ResolvedDurations(ctx context.Context) ([]time.Duration, error)
}

// CreateParams are the inputs for creating a ticket.
type CreateParams struct {
	Title       string
	Description string
	Priority    domain.TicketPriority
	Category    domain.TicketCategory
	Assignee    string
	Reporter    string
	Tags        []string
}

// ScoredTicket is a search hit with its relevance score.
type ScoredTicket struct {
	Ticket domain.Ticket
	Score  float64
}

// SearchResult is the outcome of a ticket search.
type SearchResult struct {
	Matches      []ScoredTicket
	TotalCount   int
	SearchTimeMS float64
}

// Service carries the ticket business logic on top of a Store.
type Service struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a ticket service.
func NewService(store Store, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		logger: logger.With("component", "ticket_service"),
		now:    time.Now,
	}
}

// Create validates and persists a new ticket. New tickets always start open.
func (s *Service) Create(ctx context.Context, p CreateParams) (domain.Ticket, error) {
	title := strings.TrimSpace(p.Title)
	description := strings.TrimSpace(p.Description)
	if title == "" {
		return domain.Ticket{}, domain.NewHandlerError("InvalidTicket", "title must not be empty")
	}
	if description == "" {
		return domain.Ticket{}, domain.NewHandlerError("InvalidTicket", "description must not be empty")
	}
	if p.Priority == "" {
		p.Priority = domain.PriorityMedium
	}
	if p.Category == "" {
		p.Category = domain.CategoryOther
	}

	ticket, err := s.store.Create(ctx, domain.Ticket{
		Title:       title,
		Description: description,
		Status:      domain.StatusOpen,
		Priority:    p.Priority,
		Category:    p.Category,
		Assignee:    p.Assignee,
		Reporter:    p.Reporter,
		Tags:        p.Tags,
	})
	if err != nil {
		return domain.Ticket{}, fmt.Errorf("failed to create ticket: %w", err)
	}
	s.logger.Info("Created ticket.", slog.Int64("ticket_id", ticket.ID))
	return ticket, nil
}

// Get returns a single ticket.
func (s *Service) Get(ctx context.Context, id int64) (domain.Ticket, error) {
	ticket, err := s.store.Get(ctx, id)
	if errors.Is(err, ticketstore.ErrTicketNotFound) {
		return domain.Ticket{}, domain.NewHandlerError("TicketNotFound",
			fmt.Sprintf("ticket %d not found", id))
	}
	return ticket, err
}

// List returns tickets matching the filter.
func (s *Service) List(ctx context.Context, f domain.TicketFilter) ([]domain.Ticket, error) {
	return s.store.List(ctx, f)
}

// Update applies a partial update. When the status transitions into
// resolved or closed, resolved_at is stamped once.
func (s *Service) Update(ctx context.Context, id int64, u domain.TicketUpdate) (domain.Ticket, error) {
	if u.Empty() {
		return domain.Ticket{}, domain.NewHandlerError("EmptyUpdate", "no fields to update provided")
	}

	ticket, err := s.Get(ctx, id)
	if err != nil {
		return domain.Ticket{}, err
	}

	if u.Title != nil {
		title := strings.TrimSpace(*u.Title)
		if title == "" {
			return domain.Ticket{}, domain.NewHandlerError("InvalidTicket", "title must not be empty")
		}
		ticket.Title = title
	}
	if u.Description != nil {
		description := strings.TrimSpace(*u.Description)
		if description == "" {
			return domain.Ticket{}, domain.NewHandlerError("InvalidTicket", "description must not be empty")
		}
		ticket.Description = description
	}
	if u.Status != nil {
		ticket.Status = *u.Status
		if (ticket.Status == domain.StatusResolved || ticket.Status == domain.StatusClosed) && ticket.ResolvedAt == nil {
			resolvedAt := s.now().UTC()
			ticket.ResolvedAt = &resolvedAt
		}
	}
	if u.Priority != nil {
		ticket.Priority = *u.Priority
	}
	if u.Category != nil {
		ticket.Category = *u.Category
	}
	if u.Assignee != nil {
		ticket.Assignee = *u.Assignee
	}
	if u.ResolutionNotes != nil {
		ticket.ResolutionNotes = *u.ResolutionNotes
	}
	if u.Tags != nil {
		ticket.Tags = u.Tags
	}

	updatedAt := s.now().UTC()
	ticket.UpdatedAt = &updatedAt

	if err := s.store.Update(ctx, ticket); err != nil {
		if errors.Is(err, ticketstore.ErrTicketNotFound) {
			return domain.Ticket{}, domain.NewHandlerError("TicketNotFound",
				fmt.Sprintf("ticket %d not found", id))
		}
		return domain.Ticket{}, fmt.Errorf("failed to update ticket %d: %w", id, err)
	}
	s.logger.Info("Updated ticket.", slog.Int64("ticket_id", id))
	return ticket, nil
}

// Delete removes a ticket.
func (s *Service) Delete(ctx context.Context, id int64) error {
	err := s.store.Delete(ctx, id)
	if errors.Is(err, ticketstore.ErrTicketNotFound) {
		return domain.NewHandlerError("TicketNotFound", fmt.Sprintf("ticket %d not found", id))
	}
	return err
}

// Search runs a keyword search over title, description and tags, ranked by
// a naive term-frequency score. Title hits weigh more than body hits.
func (s *Service) Search(ctx context.Context, query string, limit int) (SearchResult, error) {
	start := s.now()
	terms := searchTerms(query)
	if len(terms) == 0 {
		return SearchResult{}, domain.NewHandlerError("InvalidQuery", "search query must not be empty")
	}

	// Over-fetch so ranking can pick the best hits, not the newest.
	candidates, err := s.store.Search(ctx, terms, limit*10)
	if err != nil {
		return SearchResult{}, fmt.Errorf("failed to search tickets: %w", err)
	}

	matches := make([]ScoredTicket, 0, len(candidates))
	for _, t := range candidates {
		if score := relevance(t, terms); score > 0 {
			matches = append(matches, ScoredTicket{Ticket: t, Score: score})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	total := len(matches)
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}

	elapsed := float64(s.now().Sub(start).Microseconds()) / 1000.0
	s.logger.Debug("Searched tickets.",
		slog.String("query", query),
		slog.Int("matches", len(matches)),
		slog.Float64("elapsed_ms", elapsed))
	return SearchResult{Matches: matches, TotalCount: total, SearchTimeMS: elapsed}, nil
}

// Analytics aggregates counts and average resolution time across all tickets.
func (s *Service) Analytics(ctx context.Context) (domain.TicketAnalytics, error) {
	byStatus, err := s.store.CountByColumn(ctx, "status")
	if err != nil {
		return domain.TicketAnalytics{}, err
	}
	byPriority, err := s.store.CountByColumn(ctx, "priority")
	if err != nil {
		return domain.TicketAnalytics{}, err
	}
	byCategory, err := s.store.CountByColumn(ctx, "category")
	if err != nil {
		return domain.TicketAnalytics{}, err
	}
	recent, err := s.store.CountSince(ctx, s.now().Add(-7*24*time.Hour))
	if err != nil {
		return domain.TicketAnalytics{}, err
	}
	durations, err := s.store.ResolvedDurations(ctx)
	if err != nil {
		return domain.TicketAnalytics{}, err
	}

	a := domain.TicketAnalytics{
		TicketsByStatus:   byStatus,
		TicketsByPriority: byPriority,
		TicketsByCategory: byCategory,
		RecentActivity:    recent,
	}
	for status, n := range byStatus {
		a.TotalTickets += n
		switch domain.TicketStatus(status) {
		case domain.StatusResolved, domain.StatusClosed:
			a.ClosedTickets += n
		default:
			a.OpenTickets += n
		}
	}
	if len(durations) > 0 {
		var total time.Duration
		for _, d := range durations {
			total += d
		}
		avg := total / time.Duration(len(durations))
		a.AvgResolutionTimeHours = avg.Hours()
	}
	return a, nil
}

func searchTerms(query string) []string {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(query)))
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		if f != "" {
			terms = append(terms, f)
		}
	}
	return terms
}

func relevance(t domain.Ticket, terms []string) float64 {
	title := strings.ToLower(t.Title)
	description := strings.ToLower(t.Description)
	tags := strings.ToLower(strings.Join(t.Tags, " "))

	var score float64
	for _, term := range terms {
		score += 3 * float64(strings.Count(title, term))
		score += float64(strings.Count(description, term))
		score += 2 * float64(strings.Count(tags, term))
	}
	return score
}
