package services

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/logger"

	"prizedraw/internal/clock"
	"prizedraw/internal/models"
	"prizedraw/internal/store"
)

// Picker returns an index in [0, n). The default draws uniformly.
type Picker func(n int) int

// LotteryService runs the event lifecycle: registration, ticket issuance
// and the winner draw. All state lives in the injected store.
type LotteryService struct {
	store      store.Store
	identities IdentityResolver
	clock      clock.Clock
	pick       Picker
	location   *time.Location
}

// Option configures a LotteryService.
type Option func(*LotteryService)

// WithClock overrides the source of "now".
func WithClock(c clock.Clock) Option {
	return func(s *LotteryService) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithPicker overrides the winner selection.
func WithPicker(p Picker) Option {
	return func(s *LotteryService) {
		if p != nil {
			s.pick = p
		}
	}
}

// WithLocation sets the zone used for scheduled times without an offset.
func WithLocation(loc *time.Location) Option {
	return func(s *LotteryService) {
		if loc != nil {
			s.location = loc
		}
	}
}

// WithIdentityResolver replaces the users-table identity lookup.
func WithIdentityResolver(r IdentityResolver) Option {
	return func(s *LotteryService) {
		if r != nil {
			s.identities = r
		}
	}
}

// NewLotteryService creates a LotteryService on top of st.
func NewLotteryService(st store.Store, opts ...Option) *LotteryService {
	s := &LotteryService{
		store:      st,
		identities: NewStoreIdentityResolver(st),
		clock:      clock.NewSystem(),
		pick:       rand.IntN,
		location:   time.UTC,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterUser adds an identity that can later join events.
func (s *LotteryService) RegisterUser(ctx context.Context, name, email string) (*models.User, error) {
	u := &models.User{Name: strings.TrimSpace(name), Email: strings.TrimSpace(email)}
	if u.Name == "" || u.Email == "" {
		return nil, ErrInvalidUser
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrUserExists
		}
		return nil, storageErr("register user", err)
	}
	logger.Infof("Registered user %d (%s)", u.ID, u.Email)
	return u, nil
}

// RegisterEventInput describes a new event. The organiser fields are
// optional; when either is set an organiser row is recorded with the event.
type RegisterEventInput struct {
	Name           string
	ScheduledTime  string
	Prize          int64
	OrganiserName  string
	OrganiserEmail string
}

// RegisterEvent validates and stores a new event.
func (s *LotteryService) RegisterEvent(ctx context.Context, in RegisterEventInput) (*models.Event, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, ErrEventNameRequired
	}
	if in.Prize < 0 {
		return nil, ErrInvalidPrize
	}
	scheduled := strings.TrimSpace(in.ScheduledTime)
	if _, err := ParseScheduledTime(scheduled, s.location); err != nil {
		return nil, err
	}

	event := &models.Event{Name: name, ScheduledTime: scheduled, Prize: in.Prize}
	err := s.store.RunInTransaction(ctx, func(tx store.Store) error {
		if err := tx.CreateEvent(ctx, event); err != nil {
			return err
		}
		orgName, orgEmail := strings.TrimSpace(in.OrganiserName), strings.TrimSpace(in.OrganiserEmail)
		if orgName == "" && orgEmail == "" {
			return nil
		}
		return tx.CreateOrganiser(ctx, &models.Organiser{EventID: event.ID, Name: orgName, Email: orgEmail})
	})
	if err != nil {
		return nil, storageErr("register event", err)
	}
	logger.Infof("Registered event %d %q at %s with prize %d", event.ID, event.Name, event.ScheduledTime, event.Prize)
	return event, nil
}

// ListEvents returns every event that has not been swept yet, including
// ones whose deadline has already passed.
func (s *LotteryService) ListEvents(ctx context.Context) ([]*models.Event, error) {
	events, err := s.store.ListEvents(ctx)
	if err != nil {
		return nil, storageErr("list events", err)
	}
	if events == nil {
		events = []*models.Event{}
	}
	return events, nil
}

// Join gives identityToken a ticket for the event. Joining again returns the
// ticket issued the first time with Created set to false.
func (s *LotteryService) Join(ctx context.Context, eventID int64, identityToken string) (models.Ticket, error) {
	token := strings.TrimSpace(identityToken)
	if token == "" {
		return models.Ticket{}, ErrIdentityNotFound
	}
	name, err := s.identities.Resolve(ctx, token)
	if err != nil {
		return models.Ticket{}, err
	}

	// A duplicate insert means a concurrent join for the same identity won;
	// one retry finds its row through the idempotent branch.
	for attempt := 0; ; attempt++ {
		ticket, err := s.joinOnce(ctx, eventID, token, name)
		if errors.Is(err, store.ErrDuplicate) && attempt == 0 {
			continue
		}
		if err != nil {
			return models.Ticket{}, storageErr("join event", err)
		}
		if ticket.Created {
			logger.Infof("Issued ticket %d for event %d to %s", ticket.TicketNumber, eventID, token)
		}
		return ticket, nil
	}
}

func (s *LotteryService) joinOnce(ctx context.Context, eventID int64, token, name string) (models.Ticket, error) {
	now := s.clock.Now()
	var ticket models.Ticket
	err := s.store.RunInTransaction(ctx, func(tx store.Store) error {
		event, err := tx.LockEvent(ctx, eventID)
		if errors.Is(err, store.ErrNotFound) {
			return ErrEventNotFound
		}
		if err != nil {
			return err
		}

		existing, err := tx.GetParticipant(ctx, eventID, token)
		if err == nil {
			ticket = models.Ticket{EventID: eventID, TicketNumber: existing.TicketNumber}
			return nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return err
		}

		deadline, err := ParseScheduledTime(event.ScheduledTime, s.location)
		if err != nil {
			return err
		}
		if !deadline.After(now) {
			return ErrEventClosed
		}

		highest, err := tx.MaxTicketNumber(ctx, eventID)
		if err != nil {
			return err
		}
		p := &models.Participant{
			EventID:       eventID,
			Name:          name,
			IdentityToken: token,
			TicketNumber:  highest + 1,
		}
		if err := tx.CreateParticipant(ctx, p); err != nil {
			return err
		}
		ticket = models.Ticket{EventID: eventID, TicketNumber: p.TicketNumber, Created: true}
		return nil
	})
	return ticket, err
}

// JoinedEventsFor lists the events identityToken holds tickets for.
func (s *LotteryService) JoinedEventsFor(ctx context.Context, identityToken string) ([]*models.JoinedEvent, error) {
	joined, err := s.store.ListJoinedEvents(ctx, strings.TrimSpace(identityToken))
	if err != nil {
		return nil, storageErr("list joined events", err)
	}
	if joined == nil {
		joined = []*models.JoinedEvent{}
	}
	return joined, nil
}

// ListWinners returns the winner ledger, newest first.
func (s *LotteryService) ListWinners(ctx context.Context) ([]*models.Winner, error) {
	winners, err := s.store.ListWinners(ctx)
	if err != nil {
		return nil, storageErr("list winners", err)
	}
	if winners == nil {
		winners = []*models.Winner{}
	}
	return winners, nil
}
