package ticket

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ticketbridge/ticketbridge/internal/domain"
	"github.com/ticketbridge/ticketbridge/internal/usecase"
)

const summaryLimit = 200

// RegisterTools registers every ticket tool on the given registry. It is
// called once at startup; any error is fatal for the registering process.
func RegisterTools(registry usecase.ToolRegistry, svc *Service) error {
	for _, binding := range toolBindings(svc) {
		if err := registry.Register(binding.descriptor, binding.handler); err != nil {
			return err
		}
	}
	return nil
}

type toolBinding struct {
	descriptor domain.ToolDescriptor
	handler    usecase.ToolHandler
}

func toolBindings(svc *Service) []toolBinding {
	return []toolBinding{
		{createTicketDescriptor(), svc.handleCreateTicket},
		{getTicketDescriptor(), svc.handleGetTicket},
		{listTicketsDescriptor(), svc.handleListTickets},
		{updateTicketDescriptor(), svc.handleUpdateTicket},
		{deleteTicketDescriptor(), svc.handleDeleteTicket},
		{searchTicketsDescriptor(), svc.handleSearchTickets},
		{analyticsDescriptor(), svc.handleAnalytics},
	}
}

func createTicketDescriptor() domain.ToolDescriptor {
	return domain.ToolDescriptor{
		Name:        "create_ticket",
		Description: "Create a new incident ticket",
		InputSchema: domain.InputSchema{Parameters: []domain.Parameter{
			{Name: "title", Type: domain.ParamString, Description: "Ticket title", Required: true},
			{Name: "description", Type: domain.ParamString, Description: "Detailed description of the issue", Required: true},
			{Name: "priority", Type: domain.ParamString, Description: "Priority level", Enum: domain.Priorities(), Default: "medium"},
			{Name: "category", Type: domain.ParamString, Description: "Issue category", Enum: domain.Categories(), Default: "other"},
			{Name: "assignee", Type: domain.ParamString, Description: "Assigned user"},
			{Name: "reporter", Type: domain.ParamString, Description: "User reporting the issue", Required: true},
			{Name: "tags", Type: domain.ParamArray, Description: "List of tags", Items: domain.ParamString},
		}},
	}
}

func (s *Service) handleCreateTicket(ctx context.Context, args map[string]any) (any, error) {
	tags, err := argStrings(args, "tags")
	if err != nil {
		return nil, err
	}
	ticket, err := s.Create(ctx, CreateParams{
		Title:       argString(args, "title"),
		Description: argString(args, "description"),
		Priority:    domain.TicketPriority(argString(args, "priority")),
		Category:    domain.TicketCategory(argString(args, "category")),
		Assignee:    argString(args, "assignee"),
		Reporter:    argString(args, "reporter"),
		Tags:        tags,
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"message":    fmt.Sprintf("Ticket created successfully with ID %d", ticket.ID),
		"ticket_id":  ticket.ID,
		"title":      ticket.Title,
		"status":     ticket.Status,
		"created_at": ticket.CreatedAt.Format(time.RFC3339),
	}, nil
}

func getTicketDescriptor() domain.ToolDescriptor {
	return domain.ToolDescriptor{
		Name:        "get_ticket",
		Description: "Get detailed information about a specific ticket",
		InputSchema: domain.InputSchema{Parameters: []domain.Parameter{
			{Name: "ticket_id", Type: domain.ParamInteger, Description: "Ticket ID", Required: true},
		}},
	}
}

func (s *Service) handleGetTicket(ctx context.Context, args map[string]any) (any, error) {
	ticket, err := s.Get(ctx, argInt(args, "ticket_id"))
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

func listTicketsDescriptor() domain.ToolDescriptor {
	return domain.ToolDescriptor{
		Name:        "list_tickets",
		Description: "List tickets with optional filtering",
		InputSchema: domain.InputSchema{Parameters: []domain.Parameter{
			{Name: "status", Type: domain.ParamArray, Description: "Filter by status", Items: domain.ParamString},
			{Name: "priority", Type: domain.ParamArray, Description: "Filter by priority", Items: domain.ParamString},
			{Name: "category", Type: domain.ParamArray, Description: "Filter by category", Items: domain.ParamString},
			{Name: "assignee", Type: domain.ParamString, Description: "Filter by assignee"},
			{Name: "reporter", Type: domain.ParamString, Description: "Filter by reporter"},
			{Name: "limit", Type: domain.ParamInteger, Description: "Maximum results", Default: 10},
		}},
	}
}

func (s *Service) handleListTickets(ctx context.Context, args map[string]any) (any, error) {
	filter := domain.TicketFilter{
		Assignee: argString(args, "assignee"),
		Reporter: argString(args, "reporter"),
		Limit:    int(argInt(args, "limit")),
	}

	statuses, err := argStrings(args, "status")
	if err != nil {
		return nil, err
	}
	for _, v := range statuses {
		if !domain.ValidStatus(v) {
			return nil, domain.NewHandlerError("InvalidArgument",
				fmt.Sprintf("invalid status %q, must be one of: %s", v, strings.Join(domain.Statuses(), ", ")))
		}
		filter.Status = append(filter.Status, domain.TicketStatus(v))
	}
	priorities, err := argStrings(args, "priority")
	if err != nil {
		return nil, err
	}
	for _, v := range priorities {
		if !domain.ValidPriority(v) {
			return nil, domain.NewHandlerError("InvalidArgument",
				fmt.Sprintf("invalid priority %q, must be one of: %s", v, strings.Join(domain.Priorities(), ", ")))
		}
		filter.Priority = append(filter.Priority, domain.TicketPriority(v))
	}
	categories, err := argStrings(args, "category")
	if err != nil {
		return nil, err
	}
	for _, v := range categories {
		if !domain.ValidCategory(v) {
			return nil, domain.NewHandlerError("InvalidArgument",
				fmt.Sprintf("invalid category %q, must be one of: %s", v, strings.Join(domain.Categories(), ", ")))
		}
		filter.Category = append(filter.Category, domain.TicketCategory(v))
	}

	tickets, err := s.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	summaries := make([]map[string]any, 0, len(tickets))
	for _, t := range tickets {
		summaries = append(summaries, ticketSummary(t))
	}
	return map[string]any{
		"tickets":     summaries,
		"total_count": len(summaries),
	}, nil
}

func updateTicketDescriptor() domain.ToolDescriptor {
	return domain.ToolDescriptor{
		Name:        "update_ticket",
		Description: "Update an existing ticket",
		InputSchema: domain.InputSchema{Parameters: []domain.Parameter{
			{Name: "ticket_id", Type: domain.ParamInteger, Description: "Ticket ID", Required: true},
			{Name: "title", Type: domain.ParamString, Description: "New title"},
			{Name: "description", Type: domain.ParamString, Description: "New description"},
			{Name: "status", Type: domain.ParamString, Description: "New status", Enum: domain.Statuses()},
			{Name: "priority", Type: domain.ParamString, Description: "New priority", Enum: domain.Priorities()},
			{Name: "category", Type: domain.ParamString, Description: "New category", Enum: domain.Categories()},
			{Name: "assignee", Type: domain.ParamString, Description: "New assignee"},
			{Name: "resolution_notes", Type: domain.ParamString, Description: "Resolution notes"},
			{Name: "tags", Type: domain.ParamArray, Description: "New tags", Items: domain.ParamString},
		}},
	}
}

func (s *Service) handleUpdateTicket(ctx context.Context, args map[string]any) (any, error) {
	var update domain.TicketUpdate
	if v, ok := args["title"]; ok {
		update.Title = stringPtr(v)
	}
	if v, ok := args["description"]; ok {
		update.Description = stringPtr(v)
	}
	if v, ok := args["status"]; ok {
		status := domain.TicketStatus(fmt.Sprintf("%v", v))
		update.Status = &status
	}
	if v, ok := args["priority"]; ok {
		priority := domain.TicketPriority(fmt.Sprintf("%v", v))
		update.Priority = &priority
	}
	if v, ok := args["category"]; ok {
		category := domain.TicketCategory(fmt.Sprintf("%v", v))
		update.Category = &category
	}
	if v, ok := args["assignee"]; ok {
		update.Assignee = stringPtr(v)
	}
	if v, ok := args["resolution_notes"]; ok {
		update.ResolutionNotes = stringPtr(v)
	}
	if _, ok := args["tags"]; ok {
		tags, err := argStrings(args, "tags")
		if err != nil {
			return nil, err
		}
		update.Tags = tags
	}

	ticket, err := s.Update(ctx, argInt(args, "ticket_id"), update)
	if err != nil {
		return nil, err
	}
	result := map[string]any{
		"message": fmt.Sprintf("Ticket %d updated successfully", ticket.ID),
		"id":      ticket.ID,
		"title":   ticket.Title,
		"status":  ticket.Status,
	}
	if ticket.UpdatedAt != nil {
		result["updated_at"] = ticket.UpdatedAt.Format(time.RFC3339)
	}
	return result, nil
}

func deleteTicketDescriptor() domain.ToolDescriptor {
	return domain.ToolDescriptor{
		Name:        "delete_ticket",
		Description: "Delete a ticket permanently",
		InputSchema: domain.InputSchema{Parameters: []domain.Parameter{
			{Name: "ticket_id", Type: domain.ParamInteger, Description: "Ticket ID", Required: true},
		}},
	}
}

func (s *Service) handleDeleteTicket(ctx context.Context, args map[string]any) (any, error) {
	id := argInt(args, "ticket_id")
	if err := s.Delete(ctx, id); err != nil {
		return nil, err
	}
	return map[string]any{
		"message":   fmt.Sprintf("Ticket %d deleted", id),
		"ticket_id": id,
	}, nil
}

func searchTicketsDescriptor() domain.ToolDescriptor {
	return domain.ToolDescriptor{
		Name:        "search_tickets",
		Description: "Search tickets by keyword over title, description and tags",
		InputSchema: domain.InputSchema{Parameters: []domain.Parameter{
			{Name: "query", Type: domain.ParamString, Description: "Search query", Required: true},
			{Name: "limit", Type: domain.ParamInteger, Description: "Maximum results", Default: 10},
			{Name: "use_semantic_search", Type: domain.ParamBoolean, Description: "Accepted for compatibility; keyword search is always used", Default: true},
		}},
	}
}

func (s *Service) handleSearchTickets(ctx context.Context, args map[string]any) (any, error) {
	result, err := s.Search(ctx, argString(args, "query"), int(argInt(args, "limit")))
	if err != nil {
		return nil, err
	}
	matches := make([]map[string]any, 0, len(result.Matches))
	for _, m := range result.Matches {
		summary := ticketSummary(m.Ticket)
		summary["similarity_score"] = m.Score
		matches = append(matches, summary)
	}
	return map[string]any{
		"matches":        matches,
		"count":          len(matches),
		"total_count":    result.TotalCount,
		"search_time_ms": result.SearchTimeMS,
	}, nil
}

func analyticsDescriptor() domain.ToolDescriptor {
	return domain.ToolDescriptor{
		Name:        "get_ticket_analytics",
		Description: "Get ticket statistics and analytics",
		InputSchema: domain.InputSchema{},
	}
}

func (s *Service) handleAnalytics(ctx context.Context, args map[string]any) (any, error) {
	return s.Analytics(ctx)
}

// ticketSummary is the compact listing form of a ticket, with the
// description cut to a readable length.
func ticketSummary(t domain.Ticket) map[string]any {
	return map[string]any{
		"id":          t.ID,
		"title":       t.Title,
		"description": truncate(t.Description, summaryLimit),
		"status":      t.Status,
		"priority":    t.Priority,
		"category":    t.Category,
		"assignee":    t.Assignee,
		"reporter":    t.Reporter,
		"created_at":  t.CreatedAt.Format(time.RFC3339),
		"tags":        t.Tags,
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

func argString(args map[string]any, name string) string {
	v, ok := args[name]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

func argInt(args map[string]any, name string) int64 {
	switch v := args[name].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	default:
		return 0
	}
}

func argStrings(args map[string]any, name string) ([]string, error) {
	v, ok := args[name]
	if !ok {
		return nil, nil
	}
	switch list := v.(type) {
	case []string:
		return list, nil
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, domain.NewHandlerError("InvalidArgument",
					fmt.Sprintf("argument %q must be a list of strings", name))
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, domain.NewHandlerError("InvalidArgument",
			fmt.Sprintf("argument %q must be a list of strings", name))
	}
}

func stringPtr(v any) *string {
	s := fmt.Sprintf("%v", v)
	return &s
}
