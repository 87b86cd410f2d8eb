package ticketstore_test

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ticketbridge/ticketbridge/internal/adapter/outbound/ticketstore"
	"github.com/ticketbridge/ticketbridge/internal/domain"
)

var dsnSeq int

// newStore opens a fresh in-memory database per test. The shared cache keeps
// the database alive across the pooled connections.
func newStore(t *testing.T) *ticketstore.Store {
	t.Helper()
	dsnSeq++
	dsn := fmt.Sprintf("file:store_test_%d?mode=memory&cache=shared", dsnSeq)
	db, err := ticketstore.Open(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	store := ticketstore.New(db, logger)
	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func newTicket(title string) domain.Ticket {
	return domain.Ticket{
		Title:       title,
		Description: "description for " + title,
		Priority:    domain.PriorityMedium,
		Category:    domain.CategorySoftware,
		Reporter:    "alice",
	}
}

func TestStore_CreateAndGet(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	in := newTicket("VPN down")
	in.Tags = []string{"vpn", "network"}
	in.Assignee = "bob"

	created, err := store.Create(ctx, in)
	require.NoError(t, err)
	assert.Positive(t, created.ID)
	assert.Equal(t, domain.StatusOpen, created.Status, "status defaults to open")
	assert.False(t, created.CreatedAt.IsZero())

	got, err := store.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "VPN down", got.Title)
	assert.Equal(t, domain.PriorityMedium, got.Priority)
	assert.Equal(t, domain.CategorySoftware, got.Category)
	assert.Equal(t, "bob", got.Assignee)
	assert.Equal(t, "alice", got.Reporter)
	assert.Equal(t, []string{"vpn", "network"}, got.Tags)
	assert.Nil(t, got.UpdatedAt)
	assert.Nil(t, got.ResolvedAt)
	assert.True(t, got.CreatedAt.Equal(created.CreatedAt))
}

func TestStore_GetNotFound(t *testing.T) {
	store := newStore(t)

	_, err := store.Get(context.Background(), 9999)
	require.Error(t, err)
	assert.ErrorIs(t, err, ticketstore.ErrTicketNotFound)
}

func TestStore_ListFilters(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	mk := func(title string, status domain.TicketStatus, prio domain.TicketPriority, assignee string) {
		tk := newTicket(title)
		tk.Status = status
		tk.Priority = prio
		tk.Assignee = assignee
		_, err := store.Create(ctx, tk)
		require.NoError(t, err)
	}
	mk("a", domain.StatusOpen, domain.PriorityHigh, "bob")
	mk("b", domain.StatusInProgress, domain.PriorityLow, "bob")
	mk("c", domain.StatusResolved, domain.PriorityHigh, "carol")
	mk("d", domain.StatusOpen, domain.PriorityCritical, "")

	all, err := store.List(ctx, domain.TicketFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 4)

	open, err := store.List(ctx, domain.TicketFilter{Status: []domain.TicketStatus{domain.StatusOpen}})
	require.NoError(t, err)
	assert.Len(t, open, 2)

	highOrCrit, err := store.List(ctx, domain.TicketFilter{
		Priority: []domain.TicketPriority{domain.PriorityHigh, domain.PriorityCritical},
	})
	require.NoError(t, err)
	assert.Len(t, highOrCrit, 3)

	bobs, err := store.List(ctx, domain.TicketFilter{Assignee: "bob"})
	require.NoError(t, err)
	assert.Len(t, bobs, 2)

	limited, err := store.List(ctx, domain.TicketFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestStore_ListNewestFirst(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	for _, title := range []string{"first", "second", "third"} {
		_, err := store.Create(ctx, newTicket(title))
		require.NoError(t, err)
	}

	list, err := store.List(ctx, domain.TicketFilter{})
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "third", list[0].Title)
	assert.Equal(t, "first", list[2].Title)
}

func TestStore_Update(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	created, err := store.Create(ctx, newTicket("printer jam"))
	require.NoError(t, err)

	now := time.Now().UTC()
	created.Status = domain.StatusResolved
	created.ResolutionNotes = "cleared the tray"
	created.UpdatedAt = &now
	created.ResolvedAt = &now
	require.NoError(t, store.Update(ctx, created))

	got, err := store.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusResolved, got.Status)
	assert.Equal(t, "cleared the tray", got.ResolutionNotes)
	require.NotNil(t, got.ResolvedAt)
	assert.True(t, got.ResolvedAt.Equal(now))
}

func TestStore_UpdateNotFound(t *testing.T) {
	store := newStore(t)

	tk := newTicket("ghost")
	tk.ID = 404
	tk.Status = domain.StatusOpen
	err := store.Update(context.Background(), tk)
	assert.ErrorIs(t, err, ticketstore.ErrTicketNotFound)
}

func TestStore_Delete(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	created, err := store.Create(ctx, newTicket("to delete"))
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, created.ID))
	_, err = store.Get(ctx, created.ID)
	assert.ErrorIs(t, err, ticketstore.ErrTicketNotFound)

	assert.ErrorIs(t, store.Delete(ctx, created.ID), ticketstore.ErrTicketNotFound)
}

func TestStore_Search(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	a := newTicket("VPN connection drops")
	a.Tags = []string{"vpn"}
	_, err := store.Create(ctx, a)
	require.NoError(t, err)

	b := newTicket("Printer offline")
	b.Description = "office printer does not respond"
	_, err = store.Create(ctx, b)
	require.NoError(t, err)

	c := newTicket("Slow dashboard")
	c.Description = "dashboard loads slowly over VPN"
	_, err = store.Create(ctx, c)
	require.NoError(t, err)

	hits, err := store.Search(ctx, []string{"vpn"}, 10)
	require.NoError(t, err)
	assert.Len(t, hits, 2, "matches in title, tags and description all count")

	hits, err = store.Search(ctx, []string{"printer", "vpn"}, 10)
	require.NoError(t, err)
	assert.Len(t, hits, 3, "terms are OR-combined")

	hits, err = store.Search(ctx, []string{"kubernetes"}, 10)
	require.NoError(t, err)
	assert.Empty(t, hits)

	hits, err = store.Search(ctx, nil, 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestStore_Counts(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	mk := func(status domain.TicketStatus, prio domain.TicketPriority) {
		tk := newTicket("t")
		tk.Status = status
		tk.Priority = prio
		_, err := store.Create(ctx, tk)
		require.NoError(t, err)
	}
	mk(domain.StatusOpen, domain.PriorityHigh)
	mk(domain.StatusOpen, domain.PriorityLow)
	mk(domain.StatusClosed, domain.PriorityHigh)

	byStatus, err := store.CountByColumn(ctx, "status")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"open": 2, "closed": 1}, byStatus)

	byPriority, err := store.CountByColumn(ctx, "priority")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"high": 2, "low": 1}, byPriority)

	_, err = store.CountByColumn(ctx, "reporter; DROP TABLE tickets")
	assert.Error(t, err)

	recent, err := store.CountSince(ctx, time.Now().UTC().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 3, recent)

	none, err := store.CountSince(ctx, time.Now().UTC().Add(time.Hour))
	require.NoError(t, err)
	assert.Zero(t, none)
}

func TestStore_ResolvedDurations(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	created, err := store.Create(ctx, newTicket("resolved one"))
	require.NoError(t, err)
	resolved := created.CreatedAt.Add(2 * time.Hour)
	created.Status = domain.StatusResolved
	created.ResolvedAt = &resolved
	require.NoError(t, store.Update(ctx, created))

	_, err = store.Create(ctx, newTicket("still open"))
	require.NoError(t, err)

	durations, err := store.ResolvedDurations(ctx)
	require.NoError(t, err)
	require.Len(t, durations, 1)
	assert.Equal(t, 2*time.Hour, durations[0])
}

func TestOpen_EmptyDSN(t *testing.T) {
	_, err := ticketstore.Open("")
	assert.Error(t, err)
}
