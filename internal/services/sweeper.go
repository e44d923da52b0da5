package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/logger"

	"prizedraw/internal/models"
	"prizedraw/internal/store"
)

// RemovePastEvents tears down every event whose scheduled time is not in
// the future, without drawing a winner. Events whose scheduled time cannot
// be parsed are reported in Skipped and left in place.
func (s *LotteryService) RemovePastEvents(ctx context.Context) (models.ExpiryReport, error) {
	report := models.ExpiryReport{Removed: []int64{}, Skipped: []models.SweepFailure{}}

	past, skipped, err := s.pastEvents(ctx, s.clock.Now())
	report.Skipped = skipped
	if err != nil {
		return report, err
	}

	for _, event := range past {
		removed, err := s.expireEvent(ctx, event.ID)
		if err != nil {
			return report, storageErr(fmt.Sprintf("expire event %d", event.ID), err)
		}
		if removed {
			logger.Infof("Expired event %d %q", event.ID, event.Name)
			report.Removed = append(report.Removed, event.ID)
		}
	}
	return report, nil
}

// expireEvent deletes one event with its tickets, organisers and any ledger
// row. It reports false when the event was already gone.
func (s *LotteryService) expireEvent(ctx context.Context, eventID int64) (bool, error) {
	removed := false
	err := s.store.RunInTransaction(ctx, func(tx store.Store) error {
		if _, err := tx.LockEvent(ctx, eventID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil
			}
			return err
		}
		if _, err := tx.DeleteWinners(ctx, eventID); err != nil {
			return err
		}
		if _, err := tx.DeleteParticipants(ctx, eventID); err != nil {
			return err
		}
		if _, err := tx.DeleteOrganisers(ctx, eventID); err != nil {
			return err
		}
		if err := tx.DeleteEvent(ctx, eventID); err != nil {
			return err
		}
		removed = true
		return nil
	})
	return removed, err
}

// FinalizeEvents draws a winner for every past event that has participants
// and deletes the event with its tickets. Past events nobody joined are
// deleted without a winner and listed in Expired.
func (s *LotteryService) FinalizeEvents(ctx context.Context) (models.FinalizeReport, error) {
	report := models.FinalizeReport{
		Winners: []models.Winner{},
		Expired: []int64{},
		Skipped: []models.SweepFailure{},
	}

	now := s.clock.Now()
	past, skipped, err := s.pastEvents(ctx, now)
	report.Skipped = skipped
	if err != nil {
		return report, err
	}

	for _, event := range past {
		winner, expired, err := s.finalizeEvent(ctx, event.ID, now)
		if err != nil {
			return report, storageErr(fmt.Sprintf("finalize event %d", event.ID), err)
		}
		switch {
		case winner != nil:
			logger.Infof("Event %d %q won by %s with ticket %d", event.ID, event.Name, winner.WinnerIdentityToken, winner.TicketNumber)
			report.Winners = append(report.Winners, *winner)
		case expired:
			logger.Infof("Event %d %q had no participants, removed without a winner", event.ID, event.Name)
			report.Expired = append(report.Expired, event.ID)
		}
	}
	return report, nil
}

// finalizeEvent draws and records the winner of one event and deletes it,
// all in one transaction. It returns (nil, false, nil) when a concurrent
// sweep already took the event.
func (s *LotteryService) finalizeEvent(ctx context.Context, eventID int64, now time.Time) (*models.Winner, bool, error) {
	var (
		winner  *models.Winner
		expired bool
	)
	err := s.store.RunInTransaction(ctx, func(tx store.Store) error {
		event, err := tx.LockEvent(ctx, eventID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil
			}
			return err
		}

		participants, err := tx.ListParticipants(ctx, eventID)
		if err != nil {
			return err
		}
		if len(participants) == 0 {
			if _, err := tx.DeleteOrganisers(ctx, eventID); err != nil {
				return err
			}
			if err := tx.DeleteEvent(ctx, eventID); err != nil {
				return err
			}
			expired = true
			return nil
		}

		idx := s.pick(len(participants))
		if idx < 0 || idx >= len(participants) {
			return fmt.Errorf("picker returned %d for %d participants", idx, len(participants))
		}
		drawn := participants[idx]
		w := &models.Winner{
			EventID:             event.ID,
			EventName:           event.Name,
			Prize:               event.Prize,
			WinnerName:          drawn.Name,
			WinnerIdentityToken: drawn.IdentityToken,
			TicketNumber:        drawn.TicketNumber,
			DrawnAtMillis:       now.UnixMilli(),
		}
		if err := tx.CreateWinner(ctx, w); err != nil {
			return err
		}
		if _, err := tx.DeleteParticipants(ctx, eventID); err != nil {
			return err
		}
		if _, err := tx.DeleteOrganisers(ctx, eventID); err != nil {
			return err
		}
		if err := tx.DeleteEvent(ctx, eventID); err != nil {
			return err
		}
		winner = w
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return winner, expired, nil
}

// pastEvents classifies every stored event against now. Unparseable
// scheduled times are returned as failures rather than aborting the sweep.
func (s *LotteryService) pastEvents(ctx context.Context, now time.Time) ([]*models.Event, []models.SweepFailure, error) {
	failures := []models.SweepFailure{}
	events, err := s.store.ListEvents(ctx)
	if err != nil {
		return nil, failures, storageErr("list events", err)
	}

	var past []*models.Event
	for _, event := range events {
		at, err := ParseScheduledTime(event.ScheduledTime, s.location)
		if err != nil {
			logger.Warningf("Sweep skipped event %d: %v", event.ID, err)
			failures = append(failures, models.SweepFailure{
				EventID:       event.ID,
				ScheduledTime: event.ScheduledTime,
				Reason:        err.Error(),
			})
			continue
		}
		if !at.After(now) {
			past = append(past, event)
		}
	}
	return past, failures, nil
}

// Sweeper finalizes past events on a fixed interval. It stands in for an
// external scheduler when the server is configured to poll.
type Sweeper struct {
	service  *LotteryService
	interval time.Duration
}

// NewSweeper creates a Sweeper that runs every interval.
func NewSweeper(service *LotteryService, interval time.Duration) *Sweeper {
	return &Sweeper{service: service, interval: interval}
}

// Run sweeps until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce runs a single finalize pass and logs its outcome.
func (s *Sweeper) SweepOnce(ctx context.Context) models.FinalizeReport {
	report, err := s.service.FinalizeEvents(ctx)
	if err != nil {
		logger.Errorf("Finalize sweep failed: %v", err)
	}
	if len(report.Winners) > 0 || len(report.Expired) > 0 || len(report.Skipped) > 0 {
		logger.Infof("Finalize sweep: %d winners, %d expired, %d skipped",
			len(report.Winners), len(report.Expired), len(report.Skipped))
	}
	return report
}
