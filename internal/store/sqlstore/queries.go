package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"prizedraw/internal/models"
	"prizedraw/internal/store"
)

const eventColumns = `id, name, scheduled_time, prize`

const participantColumns = `id, event_id, name, identity_token, ticket_number`

const winnerColumns = `id, event_id, event_name, prize, winner_name, winner_identity_token, ticket_number, drawn_at`

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// querier runs the store's statements against an executor, rebinding
// placeholders for the active dialect. Both Store and txStore embed it.
type querier struct {
	ex executor
	d  *dialect
}

type scanner interface {
	Scan(dest ...any) error
}

func (q querier) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return q.ex.ExecContext(ctx, q.d.rebind(query), args...)
}

func (q querier) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return q.ex.QueryContext(ctx, q.d.rebind(query), args...)
}

func (q querier) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return q.ex.QueryRowContext(ctx, q.d.rebind(query), args...)
}

// insertReturningID runs an INSERT ... RETURNING id statement.
func (q querier) insertReturningID(ctx context.Context, query string, args ...any) (int64, error) {
	var id int64
	if err := q.queryRow(ctx, query, args...).Scan(&id); err != nil {
		if q.d.isUniqueViolation(err) {
			return 0, store.ErrDuplicate
		}
		return 0, err
	}
	return id, nil
}

func (q querier) CreateUser(ctx context.Context, u *models.User) error {
	id, err := q.insertReturningID(ctx,
		`INSERT INTO users (name, email) VALUES (?, ?) RETURNING id`,
		u.Name, u.Email,
	)
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return err
		}
		return fmt.Errorf("create user: %w", err)
	}
	u.ID = id
	return nil
}

func (q querier) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := q.queryRow(ctx, `SELECT id, name, email FROM users WHERE email = ?`, email).
		Scan(&u.ID, &u.Name, &u.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

func (q querier) CreateOrganiser(ctx context.Context, o *models.Organiser) error {
	id, err := q.insertReturningID(ctx,
		`INSERT INTO organisers (event_id, name, email) VALUES (?, ?, ?) RETURNING id`,
		o.EventID, o.Name, o.Email,
	)
	if err != nil {
		return fmt.Errorf("create organiser: %w", err)
	}
	o.ID = id
	return nil
}

func (q querier) DeleteOrganisers(ctx context.Context, eventID int64) (int64, error) {
	return q.deleteByEvent(ctx, `DELETE FROM organisers WHERE event_id = ?`, eventID)
}

func (q querier) CreateEvent(ctx context.Context, e *models.Event) error {
	id, err := q.insertReturningID(ctx,
		`INSERT INTO events (name, scheduled_time, prize) VALUES (?, ?, ?) RETURNING id`,
		e.Name, e.ScheduledTime, e.Prize,
	)
	if err != nil {
		return fmt.Errorf("create event: %w", err)
	}
	e.ID = id
	return nil
}

func (q querier) GetEvent(ctx context.Context, id int64) (*models.Event, error) {
	return q.getEvent(ctx, `SELECT `+eventColumns+` FROM events WHERE id = ?`, id)
}

func (q querier) LockEvent(ctx context.Context, id int64) (*models.Event, error) {
	return q.getEvent(ctx, `SELECT `+eventColumns+` FROM events WHERE id = ?`+q.d.forUpdate, id)
}

func (q querier) getEvent(ctx context.Context, query string, id int64) (*models.Event, error) {
	e, err := scanEvent(q.queryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("get event %d: %w", id, err)
	}
	return e, nil
}

func (q querier) ListEvents(ctx context.Context) ([]*models.Event, error) {
	rows, err := q.query(ctx, `SELECT `+eventColumns+` FROM events ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []*models.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (q querier) DeleteEvent(ctx context.Context, id int64) error {
	res, err := q.exec(ctx, `DELETE FROM events WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete event %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete event %d: %w", id, err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (q querier) CreateParticipant(ctx context.Context, p *models.Participant) error {
	id, err := q.insertReturningID(ctx, `
		INSERT INTO participants (event_id, name, identity_token, ticket_number)
		VALUES (?, ?, ?, ?) RETURNING id`,
		p.EventID, p.Name, p.IdentityToken, p.TicketNumber,
	)
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return err
		}
		return fmt.Errorf("create participant: %w", err)
	}
	p.ID = id
	return nil
}

func (q querier) GetParticipant(ctx context.Context, eventID int64, identityToken string) (*models.Participant, error) {
	row := q.queryRow(ctx,
		`SELECT `+participantColumns+` FROM participants WHERE event_id = ? AND identity_token = ?`,
		eventID, identityToken,
	)
	p, err := scanParticipant(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("get participant: %w", err)
	}
	return p, nil
}

func (q querier) MaxTicketNumber(ctx context.Context, eventID int64) (int64, error) {
	var highest int64
	err := q.queryRow(ctx,
		`SELECT COALESCE(MAX(ticket_number), 0) FROM participants WHERE event_id = ?`, eventID,
	).Scan(&highest)
	if err != nil {
		return 0, fmt.Errorf("max ticket number: %w", err)
	}
	return highest, nil
}

func (q querier) ListParticipants(ctx context.Context, eventID int64) ([]*models.Participant, error) {
	rows, err := q.query(ctx,
		`SELECT `+participantColumns+` FROM participants WHERE event_id = ? ORDER BY ticket_number`, eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	defer rows.Close()

	var participants []*models.Participant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		participants = append(participants, p)
	}
	return participants, rows.Err()
}

func (q querier) DeleteParticipants(ctx context.Context, eventID int64) (int64, error) {
	return q.deleteByEvent(ctx, `DELETE FROM participants WHERE event_id = ?`, eventID)
}

func (q querier) ListJoinedEvents(ctx context.Context, identityToken string) ([]*models.JoinedEvent, error) {
	rows, err := q.query(ctx, `
		SELECT e.id, e.name, e.scheduled_time, e.prize, p.ticket_number
		FROM participants p
		JOIN events e ON e.id = p.event_id
		WHERE p.identity_token = ?
		ORDER BY e.id`,
		identityToken,
	)
	if err != nil {
		return nil, fmt.Errorf("list joined events: %w", err)
	}
	defer rows.Close()

	var joined []*models.JoinedEvent
	for rows.Next() {
		var j models.JoinedEvent
		if err := rows.Scan(&j.Event.ID, &j.Event.Name, &j.Event.ScheduledTime, &j.Event.Prize, &j.TicketNumber); err != nil {
			return nil, fmt.Errorf("scan joined event: %w", err)
		}
		joined = append(joined, &j)
	}
	return joined, rows.Err()
}

func (q querier) CreateWinner(ctx context.Context, w *models.Winner) error {
	id, err := q.insertReturningID(ctx, `
		INSERT INTO winners (event_id, event_name, prize, winner_name, winner_identity_token, ticket_number, drawn_at)
		VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		w.EventID, w.EventName, w.Prize, w.WinnerName, w.WinnerIdentityToken, w.TicketNumber, w.DrawnAtMillis,
	)
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return err
		}
		return fmt.Errorf("create winner: %w", err)
	}
	w.ID = id
	return nil
}

func (q querier) DeleteWinners(ctx context.Context, eventID int64) (int64, error) {
	return q.deleteByEvent(ctx, `DELETE FROM winners WHERE event_id = ?`, eventID)
}

func (q querier) ListWinners(ctx context.Context) ([]*models.Winner, error) {
	rows, err := q.query(ctx, `SELECT `+winnerColumns+` FROM winners ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list winners: %w", err)
	}
	defer rows.Close()

	var winners []*models.Winner
	for rows.Next() {
		var w models.Winner
		if err := rows.Scan(&w.ID, &w.EventID, &w.EventName, &w.Prize, &w.WinnerName,
			&w.WinnerIdentityToken, &w.TicketNumber, &w.DrawnAtMillis); err != nil {
			return nil, fmt.Errorf("scan winner: %w", err)
		}
		winners = append(winners, &w)
	}
	return winners, rows.Err()
}

func (q querier) deleteByEvent(ctx context.Context, query string, eventID int64) (int64, error) {
	res, err := q.exec(ctx, query, eventID)
	if err != nil {
		return 0, fmt.Errorf("delete for event %d: %w", eventID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete for event %d: %w", eventID, err)
	}
	return n, nil
}

func scanEvent(s scanner) (*models.Event, error) {
	var e models.Event
	if err := s.Scan(&e.ID, &e.Name, &e.ScheduledTime, &e.Prize); err != nil {
		return nil, err
	}
	return &e, nil
}

func scanParticipant(s scanner) (*models.Participant, error) {
	var p models.Participant
	if err := s.Scan(&p.ID, &p.EventID, &p.Name, &p.IdentityToken, &p.TicketNumber); err != nil {
		return nil, err
	}
	return &p, nil
}
