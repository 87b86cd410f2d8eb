// Package ticketstore persists tickets in SQLite via database/sql.
package ticketstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	// Pure-Go SQLite driver, registers "sqlite" with database/sql.
	_ "modernc.org/sqlite"

	"github.com/ticketbridge/ticketbridge/internal/domain"
)

// ErrTicketNotFound is returned when a ticket id does not exist.
var ErrTicketNotFound = errors.New("ticket not found")

const defaultListLimit = 100

const schemaDDL = `
CREATE TABLE IF NOT EXISTS tickets (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	title            TEXT NOT NULL,
	description      TEXT NOT NULL,
	status           TEXT NOT NULL DEFAULT 'open',
	priority         TEXT NOT NULL DEFAULT 'medium',
	category         TEXT NOT NULL DEFAULT 'other',
	assignee         TEXT,
	reporter         TEXT NOT NULL,
	created_at       TEXT NOT NULL,
	updated_at       TEXT,
	resolved_at      TEXT,
	tags             TEXT,
	resolution_notes TEXT
);
CREATE INDEX IF NOT EXISTS idx_tickets_status   ON tickets(status);
CREATE INDEX IF NOT EXISTS idx_tickets_priority ON tickets(priority);
CREATE INDEX IF NOT EXISTS idx_tickets_category ON tickets(category);
`

// Open opens (or creates) the ticket database and verifies the connection.
func Open(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("database DSN must not be empty")
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// Store is a SQLite-backed ticket store.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// New creates a Store over an open database handle.
func New(db *sql.DB, logger *slog.Logger) *Store {
	return &Store{
		db:     db,
		logger: logger.With("component", "ticket_store"),
	}
}

// Migrate creates the schema if it does not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("failed to migrate ticket schema: %w", err)
	}
	s.logger.Debug("Ticket schema ready.")
	return nil
}

// Ping verifies the database connection, for health checks.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Create inserts a ticket and returns it with the assigned id and creation
// timestamp filled in.
func (s *Store) Create(ctx context.Context, t domain.Ticket) (domain.Ticket, error) {
	now := time.Now().UTC()
	t.CreatedAt = now
	if t.Status == "" {
		t.Status = domain.StatusOpen
	}

	tags, err := marshalTags(t.Tags)
	if err != nil {
		return domain.Ticket{}, err
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO tickets (title, description, status, priority, category, assignee, reporter, created_at, tags, resolution_notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.Title, t.Description, string(t.Status), string(t.Priority), string(t.Category),
		nullable(t.Assignee), t.Reporter, formatTime(now), tags, nullable(t.ResolutionNotes))
	if err != nil {
		return domain.Ticket{}, fmt.Errorf("failed to insert ticket: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.Ticket{}, fmt.Errorf("failed to read inserted ticket id: %w", err)
	}
	t.ID = id
	s.logger.Debug("Inserted ticket.", slog.Int64("ticket_id", id))
	return t, nil
}

// Get returns one ticket by id, or ErrTicketNotFound.
func (s *Store) Get(ctx context.Context, id int64) (domain.Ticket, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id)
	t, err := scanTicket(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Ticket{}, fmt.Errorf("ticket %d: %w", id, ErrTicketNotFound)
	}
	return t, err
}

// List returns tickets matching the filter, newest first.
func (s *Store) List(ctx context.Context, f domain.TicketFilter) ([]domain.Ticket, error) {
	query := selectColumns
	var conds []string
	var args []any

	if clause, vals := inClause("status", statusStrings(f.Status)); clause != "" {
		conds = append(conds, clause)
		args = append(args, vals...)
	}
	if clause, vals := inClause("priority", priorityStrings(f.Priority)); clause != "" {
		conds = append(conds, clause)
		args = append(args, vals...)
	}
	if clause, vals := inClause("category", categoryStrings(f.Category)); clause != "" {
		conds = append(conds, clause)
		args = append(args, vals...)
	}
	if f.Assignee != "" {
		conds = append(conds, "assignee = ?")
		args = append(args, f.Assignee)
	}
	if f.Reporter != "" {
		conds = append(conds, "reporter = ?")
		args = append(args, f.Reporter)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	limit := f.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	return s.queryTickets(ctx, query, args...)
}

// Update overwrites the mutable columns of a ticket.
func (s *Store) Update(ctx context.Context, t domain.Ticket) error {
	tags, err := marshalTags(t.Tags)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE tickets
		SET title = ?, description = ?, status = ?, priority = ?, category = ?,
		    assignee = ?, updated_at = ?, resolved_at = ?, tags = ?, resolution_notes = ?
		WHERE id = ?`,
		t.Title, t.Description, string(t.Status), string(t.Priority), string(t.Category),
		nullable(t.Assignee), formatTimePtr(t.UpdatedAt), formatTimePtr(t.ResolvedAt),
		tags, nullable(t.ResolutionNotes), t.ID)
	if err != nil {
		return fmt.Errorf("failed to update ticket %d: %w", t.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result for ticket %d: %w", t.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("ticket %d: %w", t.ID, ErrTicketNotFound)
	}
	return nil
}

// Delete removes a ticket by id, or returns ErrTicketNotFound.
func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tickets WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete ticket %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read delete result for ticket %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("ticket %d: %w", id, ErrTicketNotFound)
	}
	s.logger.Debug("Deleted ticket.", slog.Int64("ticket_id", id))
	return nil
}

// Search returns tickets whose title, description or tags contain any of the
// given terms, newest first. Relevance ranking is the service's concern.
func (s *Store) Search(ctx context.Context, terms []string, limit int) ([]domain.Ticket, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if len(terms) == 0 {
		return nil, nil
	}

	var conds []string
	var args []any
	for _, term := range terms {
		pattern := "%" + strings.ToLower(term) + "%"
		conds = append(conds, "(lower(title) LIKE ? OR lower(description) LIKE ? OR lower(coalesce(tags, '')) LIKE ?)")
		args = append(args, pattern, pattern, pattern)
	}
	query := selectColumns + " WHERE " + strings.Join(conds, " OR ") +
		" ORDER BY created_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	return s.queryTickets(ctx, query, args...)
}

// CountByColumn groups tickets by one of the enum columns.
func (s *Store) CountByColumn(ctx context.Context, column string) (map[string]int, error) {
	switch column {
	case "status", "priority", "category":
	default:
		return nil, fmt.Errorf("cannot group tickets by column %q", column)
	}
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf("SELECT %s, COUNT(*) FROM tickets GROUP BY %s", column, column))
	if err != nil {
		return nil, fmt.Errorf("failed to count tickets by %s: %w", column, err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return nil, fmt.Errorf("failed to scan %s count: %w", column, err)
		}
		counts[key] = n
	}
	return counts, rows.Err()
}

// CountSince returns the number of tickets created at or after the cutoff.
func (s *Store) CountSince(ctx context.Context, cutoff time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tickets WHERE created_at >= ?`, formatTime(cutoff.UTC())).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count recent tickets: %w", err)
	}
	return n, nil
}

// ResolvedDurations returns created_at/resolved_at pairs for all resolved
// tickets, for average resolution time computation.
func (s *Store) ResolvedDurations(ctx context.Context) ([]time.Duration, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT created_at, resolved_at FROM tickets WHERE resolved_at IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("failed to query resolved tickets: %w", err)
	}
	defer rows.Close()

	var durations []time.Duration
	for rows.Next() {
		var createdRaw, resolvedRaw string
		if err := rows.Scan(&createdRaw, &resolvedRaw); err != nil {
			return nil, fmt.Errorf("failed to scan resolution times: %w", err)
		}
		created, err := parseTime(createdRaw)
		if err != nil {
			return nil, err
		}
		resolved, err := parseTime(resolvedRaw)
		if err != nil {
			return nil, err
		}
		durations = append(durations, resolved.Sub(created))
	}
	return durations, rows.Err()
}

const selectColumns = `
	SELECT id, title, description, status, priority, category, assignee, reporter,
	       created_at, updated_at, resolved_at, tags, resolution_notes
	FROM tickets`

func (s *Store) queryTickets(ctx context.Context, query string, args ...any) ([]domain.Ticket, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tickets: %w", err)
	}
	defer rows.Close()

	var tickets []domain.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, t)
	}
	return tickets, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTicket(row rowScanner) (domain.Ticket, error) {
	var t domain.Ticket
	var status, priority, category, createdRaw string
	var assignee, tags, notes, updatedRaw, resolvedRaw sql.NullString
	err := row.Scan(&t.ID, &t.Title, &t.Description, &status, &priority, &category,
		&assignee, &t.Reporter, &createdRaw, &updatedRaw, &resolvedRaw, &tags, &notes)
	if err != nil {
		return domain.Ticket{}, err
	}
	t.Status = domain.TicketStatus(status)
	t.Priority = domain.TicketPriority(priority)
	t.Category = domain.TicketCategory(category)
	t.Assignee = assignee.String
	t.ResolutionNotes = notes.String

	if t.CreatedAt, err = parseTime(createdRaw); err != nil {
		return domain.Ticket{}, err
	}
	if t.UpdatedAt, err = parseTimePtr(updatedRaw); err != nil {
		return domain.Ticket{}, err
	}
	if t.ResolvedAt, err = parseTimePtr(resolvedRaw); err != nil {
		return domain.Ticket{}, err
	}

	if tags.Valid && tags.String != "" {
		if err := json.Unmarshal([]byte(tags.String), &t.Tags); err != nil {
			return domain.Ticket{}, fmt.Errorf("failed to decode tags for ticket %d: %w", t.ID, err)
		}
	}
	return t, nil
}

// inClause builds "col IN (?, ...)" and its bind values. Empty input yields
// an empty clause, meaning no constraint.
func inClause(column string, values []string) (string, []any) {
	if len(values) == 0 {
		return "", nil
	}
	placeholders := make([]string, len(values))
	args := make([]any, len(values))
	for i, v := range values {
		placeholders[i] = "?"
		args[i] = v
	}
	return fmt.Sprintf("%s IN (%s)", column, strings.Join(placeholders, ", ")), args
}

func statusStrings(in []domain.TicketStatus) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = string(v)
	}
	return out
}

func priorityStrings(in []domain.TicketPriority) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = string(v)
	}
	return out
}

func categoryStrings(in []domain.TicketCategory) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = string(v)
	}
	return out
}

func marshalTags(tags []string) (sql.NullString, error) {
	if len(tags) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(tags)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to encode tags: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTimePtr(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseTime(raw string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse stored timestamp %q: %w", raw, err)
	}
	return t, nil
}

func parseTimePtr(raw sql.NullString) (*time.Time, error) {
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}
	t, err := parseTime(raw.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
