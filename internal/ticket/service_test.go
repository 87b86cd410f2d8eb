package ticket_test

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
	"github.com/ticketbridge/ticketbridge/internal/ticket"
)

var dsnSeq int

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func newService(t *testing.T) *ticket.Service {
	t.Helper()
	dsnSeq++
	dsn := fmt.Sprintf("file:service_test_%d?mode=memory&cache=shared", dsnSeq)
	db, err := ticketstore.Open(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := testLogger()
	store := ticketstore.New(db, logger)
	require.NoError(t, store.Migrate(context.Background()))
	return ticket.NewService(store, logger)
}

func handlerKind(t *testing.T, err error) string {
	t.Helper()
	require.Error(t, err)
	herr, ok := err.(*domain.HandlerError)
	require.True(t, ok, "expected *domain.HandlerError, got %T", err)
	return herr.Kind
}

func TestService_CreateDefaults(t *testing.T) {
	svc := newService(t)

	created, err := svc.Create(context.Background(), ticket.CreateParams{
		Title:       "  VPN down  ",
		Description: "cannot connect",
		Reporter:    "alice",
	})
	require.NoError(t, err)
	assert.Equal(t, "VPN down", created.Title, "title is trimmed")
	assert.Equal(t, domain.StatusOpen, created.Status)
	assert.Equal(t, domain.PriorityMedium, created.Priority)
	assert.Equal(t, domain.CategoryOther, created.Category)
}

func TestService_CreateRejectsBlankFields(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, ticket.CreateParams{Title: "   ", Description: "d", Reporter: "a"})
	assert.Equal(t, "InvalidTicket", handlerKind(t, err))

	_, err = svc.Create(ctx, ticket.CreateParams{Title: "t", Description: "\t", Reporter: "a"})
	assert.Equal(t, "InvalidTicket", handlerKind(t, err))
}

func TestService_GetNotFound(t *testing.T) {
	svc := newService(t)

	_, err := svc.Get(context.Background(), 12345)
	assert.Equal(t, "TicketNotFound", handlerKind(t, err))
}

func TestService_UpdateStampsResolvedAtOnce(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, ticket.CreateParams{
		Title: "printer jam", Description: "tray 2", Reporter: "alice",
	})
	require.NoError(t, err)

	resolved := domain.StatusResolved
	updated, err := svc.Update(ctx, created.ID, domain.TicketUpdate{Status: &resolved})
	require.NoError(t, err)
	require.NotNil(t, updated.ResolvedAt)
	require.NotNil(t, updated.UpdatedAt)
	firstResolved := *updated.ResolvedAt

	// A later transition to closed must keep the original resolution time.
	time.Sleep(5 * time.Millisecond)
	closed := domain.StatusClosed
	updated, err = svc.Update(ctx, created.ID, domain.TicketUpdate{Status: &closed})
	require.NoError(t, err)
	require.NotNil(t, updated.ResolvedAt)
	assert.True(t, updated.ResolvedAt.Equal(firstResolved))
}

func TestService_UpdateEmpty(t *testing.T) {
	svc := newService(t)

	_, err := svc.Update(context.Background(), 1, domain.TicketUpdate{})
	assert.Equal(t, "EmptyUpdate", handlerKind(t, err))
}

func TestService_UpdateUnknownTicket(t *testing.T) {
	svc := newService(t)

	title := "new title"
	_, err := svc.Update(context.Background(), 9999, domain.TicketUpdate{Title: &title})
	assert.Equal(t, "TicketNotFound", handlerKind(t, err))
}

func TestService_DeleteUnknownTicket(t *testing.T) {
	svc := newService(t)

	err := svc.Delete(context.Background(), 9999)
	assert.Equal(t, "TicketNotFound", handlerKind(t, err))
}

func TestService_SearchRanksTitleAboveBody(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	mk := func(title, description string, tags ...string) {
		_, err := svc.Create(ctx, ticket.CreateParams{
			Title: title, Description: description, Reporter: "alice", Tags: tags,
		})
		require.NoError(t, err)
	}
	mk("VPN outage", "users cannot log in")
	mk("Dashboard slow", "loading takes minutes over vpn")
	mk("New laptop request", "for the design team", "vpn")

	result, err := svc.Search(ctx, "VPN", 10)
	require.NoError(t, err)
	require.Len(t, result.Matches, 3)
	assert.Equal(t, 3, result.TotalCount)

	// Title match (x3) outranks tag match (x2) outranks description match (x1).
	assert.Equal(t, "VPN outage", result.Matches[0].Ticket.Title)
	assert.Equal(t, "New laptop request", result.Matches[1].Ticket.Title)
	assert.Equal(t, "Dashboard slow", result.Matches[2].Ticket.Title)
	assert.Greater(t, result.Matches[0].Score, result.Matches[1].Score)
	assert.GreaterOrEqual(t, result.SearchTimeMS, 0.0)
}

func TestService_SearchHonorsLimit(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	for i := 0; i < 8; i++ {
		_, err := svc.Create(ctx, ticket.CreateParams{
			Title:       fmt.Sprintf("VPN issue %d", i),
			Description: "connection drops",
			Reporter:    "alice",
		})
		require.NoError(t, err)
	}

	result, err := svc.Search(ctx, "vpn", 5)
	require.NoError(t, err)
	assert.Len(t, result.Matches, 5)
	assert.Equal(t, 8, result.TotalCount)
}

func TestService_SearchEmptyQuery(t *testing.T) {
	svc := newService(t)

	_, err := svc.Search(context.Background(), "   ", 5)
	assert.Equal(t, "InvalidQuery", handlerKind(t, err))
}

func TestService_Analytics(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	mk := func(prio domain.TicketPriority, cat domain.TicketCategory) domain.Ticket {
		tk, err := svc.Create(ctx, ticket.CreateParams{
			Title: "t", Description: "d", Reporter: "alice", Priority: prio, Category: cat,
		})
		require.NoError(t, err)
		return tk
	}
	mk(domain.PriorityHigh, domain.CategoryNetwork)
	mk(domain.PriorityLow, domain.CategoryNetwork)
	third := mk(domain.PriorityHigh, domain.CategorySoftware)

	resolved := domain.StatusResolved
	_, err := svc.Update(ctx, third.ID, domain.TicketUpdate{Status: &resolved})
	require.NoError(t, err)

	a, err := svc.Analytics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, a.TotalTickets)
	assert.Equal(t, 2, a.OpenTickets)
	assert.Equal(t, 1, a.ClosedTickets)
	assert.Equal(t, map[string]int{"open": 2, "resolved": 1}, a.TicketsByStatus)
	assert.Equal(t, map[string]int{"high": 2, "low": 1}, a.TicketsByPriority)
	assert.Equal(t, map[string]int{"network": 2, "software": 1}, a.TicketsByCategory)
	assert.Equal(t, 3, a.RecentActivity)
	assert.GreaterOrEqual(t, a.AvgResolutionTimeHours, 0.0)
}
