package models

// Event is a prize-bearing event that users can join until its scheduled
// time. ScheduledTime keeps the raw stored text; it is parsed when the
// sweeper decides whether the event is past due.
type Event struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	ScheduledTime string `json:"scheduled_time"`
	Prize         int64  `json:"prize"`
}

// Participant is a ticket: one identity's entry into one event.
type Participant struct {
	ID            int64  `json:"id"`
	EventID       int64  `json:"event_id"`
	Name          string `json:"name"`
	IdentityToken string `json:"identity_token"`
	TicketNumber  int64  `json:"ticket_number"`
}

// Ticket is the result of a join. Created is false when the identity
// already held a ticket for the event.
type Ticket struct {
	EventID      int64 `json:"event_id"`
	TicketNumber int64 `json:"ticket_number"`
	Created      bool  `json:"created"`
}

// JoinedEvent pairs an event with the ticket an identity holds for it.
type JoinedEvent struct {
	Event        Event `json:"event"`
	TicketNumber int64 `json:"ticket_number"`
}

// Winner records the outcome of finalizing an event. It outlives the
// event row it refers to.
type Winner struct {
	ID                  int64  `json:"id"`
	EventID             int64  `json:"event_id"`
	EventName           string `json:"event_name"`
	Prize               int64  `json:"prize"`
	WinnerName          string `json:"winner_name"`
	WinnerIdentityToken string `json:"winner_identity_token"`
	TicketNumber        int64  `json:"ticket_number"`
	DrawnAtMillis       int64  `json:"drawn_at"`
}

// User is a registered identity that can join events.
type User struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Organiser is the person who registered an event.
type Organiser struct {
	ID      int64  `json:"id"`
	EventID int64  `json:"event_id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
}

// SweepFailure describes an event the sweeper could not classify.
type SweepFailure struct {
	EventID       int64  `json:"event_id"`
	ScheduledTime string `json:"scheduled_time"`
	Reason        string `json:"reason"`
}

// ExpiryReport is the outcome of a hard-expiry sweep.
type ExpiryReport struct {
	Removed []int64        `json:"removed"`
	Skipped []SweepFailure `json:"skipped"`
}

// FinalizeReport is the outcome of a finalize sweep. Expired lists past
// events that had no participants and were deleted without a winner.
type FinalizeReport struct {
	Winners []Winner       `json:"winners"`
	Expired []int64        `json:"expired"`
	Skipped []SweepFailure `json:"skipped"`
}
