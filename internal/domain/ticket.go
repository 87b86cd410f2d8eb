package domain

import "time"

// TicketStatus is the lifecycle state of a ticket.
type TicketStatus string

const (
	StatusOpen       TicketStatus = "open"
	StatusInProgress TicketStatus = "in_progress"
	StatusPending    TicketStatus = "pending"
	StatusResolved   TicketStatus = "resolved"
	StatusClosed     TicketStatus = "closed"
)

// TicketPriority is the urgency of a ticket.
type TicketPriority string

const (
	PriorityLow      TicketPriority = "low"
	PriorityMedium   TicketPriority = "medium"
	PriorityHigh     TicketPriority = "high"
	PriorityCritical TicketPriority = "critical"
)

// TicketCategory classifies the kind of issue.
type TicketCategory string

const (
	CategoryHardware    TicketCategory = "hardware"
	CategorySoftware    TicketCategory = "software"
	CategoryNetwork     TicketCategory = "network"
	CategoryAccess      TicketCategory = "access"
	CategoryPerformance TicketCategory = "performance"
	CategorySecurity    TicketCategory = "security"
	CategoryOther       TicketCategory = "other"
)

// Statuses, Priorities and Categories list the valid enum values in a stable
// order, used both for schema enums and for input validation messages.
func Statuses() []string {
	return []string{"open", "in_progress", "pending", "resolved", "closed"}
}

func Priorities() []string {
	return []string{"low", "medium", "high", "critical"}
}

func Categories() []string {
	return []string{"hardware", "software", "network", "access", "performance", "security", "other"}
}

// ValidStatus reports whether s is a known status value.
func ValidStatus(s string) bool { return contains(Statuses(), s) }

// ValidPriority reports whether p is a known priority value.
func ValidPriority(p string) bool { return contains(Priorities(), p) }

// ValidCategory reports whether c is a known category value.
func ValidCategory(c string) bool { return contains(Categories(), c) }

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// Ticket is an incident ticket.
type Ticket struct {
	ID              int64          `json:"id"`
	Title           string         `json:"title"`
	Description     string         `json:"description"`
	Status          TicketStatus   `json:"status"`
	Priority        TicketPriority `json:"priority"`
	Category        TicketCategory `json:"category"`
	Assignee        string         `json:"assignee,omitempty"`
	Reporter        string         `json:"reporter"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       *time.Time     `json:"updated_at,omitempty"`
	ResolvedAt      *time.Time     `json:"resolved_at,omitempty"`
	Tags            []string       `json:"tags,omitempty"`
	ResolutionNotes string         `json:"resolution_notes,omitempty"`
}

// TicketFilter narrows a ticket listing. Empty slices and zero values mean
// "no constraint"; Limit <= 0 falls back to the store default.
type TicketFilter struct {
	Status   []TicketStatus
	Priority []TicketPriority
	Category []TicketCategory
	Assignee string
	Reporter string
	Limit    int
}

// TicketUpdate holds a partial update. Nil pointers mean "leave unchanged".
type TicketUpdate struct {
	Title           *string
	Description     *string
	Status          *TicketStatus
	Priority        *TicketPriority
	Category        *TicketCategory
	Assignee        *string
	ResolutionNotes *string
	Tags            []string
}

// Empty reports whether the update changes nothing.
func (u TicketUpdate) Empty() bool {
	return u.Title == nil && u.Description == nil && u.Status == nil &&
		u.Priority == nil && u.Category == nil && u.Assignee == nil &&
		u.ResolutionNotes == nil && u.Tags == nil
}

// TicketAnalytics aggregates counts and timing over the whole ticket set.
type TicketAnalytics struct {
	TotalTickets           int            `json:"total_tickets"`
	OpenTickets            int            `json:"open_tickets"`
	ClosedTickets          int            `json:"closed_tickets"`
	AvgResolutionTimeHours float64        `json:"avg_resolution_time_hours"`
	TicketsByStatus        map[string]int `json:"tickets_by_status"`
	TicketsByPriority      map[string]int `json:"tickets_by_priority"`
	TicketsByCategory      map[string]int `json:"tickets_by_category"`
	RecentActivity         int            `json:"recent_activity"`
}
