// Package sweeper runs the three time-windowed reminder sweeps over the
// active event's enrollments.
package sweeper

import (
	"context"
	"fmt"
	"time"

	"log/slog"

	"tadbirbot/internal/bot"
	"tadbirbot/internal/logger"
	"tadbirbot/internal/models"
	"tadbirbot/internal/outbound"
	"tadbirbot/internal/storage"
)

// tierSpec describes one reminder window in minutes before event start.
type tierSpec struct {
	tier      storage.Tier
	target    float64
	tolerance float64
	name      string
}

var tiers = []tierSpec{
	{tier: storage.Tier1, target: 24 * 60, tolerance: 30, name: "1day"},
	{tier: storage.Tier2, target: 60, tolerance: 10, name: "1hour"},
	{tier: storage.Tier3, target: 30, tolerance: 5, name: "30min"},
}

const (
	tier1TextFmt = "Ertaga \"%s\" tadbiri boʻlib oʻtadi. Kelasizmi?"
	tier2TextFmt = "\"%s\" tadbiri 1 soatdan soʻng boshlanadi. Kutib qolamiz!"
	tier3TextFmt = "\"%s\" tadbiri 30 daqiqadan soʻng boshlanadi. Tez orada koʻrishamiz!"
)

// inWindow is the shared window test:
// target − tolerance < minutes-until-start ≤ target + tolerance.
func inWindow(startsAt, now time.Time, target, tolerance float64) bool {
	diff := startsAt.Sub(now).Minutes()
	return diff > target-tolerance && diff <= target+tolerance
}

// Sweeper scans the active event and advances reminder tiers. Each sweep
// is idempotent: the monotone reminded flags are the sole de-duplication
// guard, so a flag is set on the send attempt (even when the send fails),
// trading a possibly missed reminder for guaranteed non-duplication.
type Sweeper struct {
	events      storage.Events
	enrollments storage.Enrollments
	out         outbound.Sender
	now         func() time.Time
}

// New assembles a sweeper. nowFn defaults to time.Now.
func New(events storage.Events, enrollments storage.Enrollments, out outbound.Sender, nowFn func() time.Time) *Sweeper {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Sweeper{
		events:      events,
		enrollments: enrollments,
		out:         out,
		now:         nowFn,
	}
}

// RunTier executes one sweep of the given tier.
func (s *Sweeper) RunTier(ctx context.Context, tier storage.Tier) error {
	spec, err := specFor(tier)
	if err != nil {
		return err
	}

	event, err := s.events.Active(ctx)
	if err != nil {
		return fmt.Errorf("sweeper: active event: %w", err)
	}
	if event == nil || !inWindow(event.StartsAt, s.now(), spec.target, spec.tolerance) {
		return nil
	}

	due, err := s.enrollments.Due(ctx, event.ID, tier)
	if err != nil {
		return fmt.Errorf("sweeper: due enrollments: %w", err)
	}

	sent := 0
	for _, d := range due {
		// Mark before sending; if marking fails the enrollment is
		// skipped so an unguarded send can never repeat on a re-run.
		if err := s.enrollments.MarkReminded(ctx, d.ID, tier); err != nil {
			logger.Error(ctx, logger.SWEEP, "sweep.mark.fail",
				slog.String("tier", spec.name),
				slog.Int64("enrollment_id", d.ID),
				slog.String("err", logger.ErrText(err)),
			)
			continue
		}
		if err := s.send(ctx, spec, event, d); err != nil {
			logger.Warn(ctx, logger.SWEEP, "sweep.send.fail",
				slog.String("tier", spec.name),
				slog.Int64("enrollment_id", d.ID),
				slog.Int64("recipient", d.TelegramID),
				slog.String("err", logger.ErrText(err)),
			)
			continue
		}
		sent++
	}

	if len(due) > 0 {
		logger.Info(ctx, logger.SWEEP, "sweep.done",
			slog.String("tier", spec.name),
			slog.Int64("event_id", event.ID),
			slog.Int("due", len(due)),
			slog.Int("sent", sent),
		)
	}
	return nil
}

func (s *Sweeper) send(ctx context.Context, spec tierSpec, event *models.Event, d storage.DueEnrollment) error {
	switch spec.tier {
	case storage.Tier1:
		text := fmt.Sprintf(tier1TextFmt, event.Title)
		return s.out.SendButtons(ctx, d.TelegramID, text, bot.RSVPKeyboard(d.ID))
	case storage.Tier2:
		return s.out.SendText(ctx, d.TelegramID, fmt.Sprintf(tier2TextFmt, event.Title))
	case storage.Tier3:
		return s.out.SendText(ctx, d.TelegramID, fmt.Sprintf(tier3TextFmt, event.Title))
	}
	return fmt.Errorf("sweeper: unknown tier %d", spec.tier)
}

func specFor(tier storage.Tier) (tierSpec, error) {
	for _, spec := range tiers {
		if spec.tier == tier {
			return spec, nil
		}
	}
	return tierSpec{}, fmt.Errorf("sweeper: unknown tier %d", tier)
}

// Start runs the three tier sweeps on independent tickers until ctx is
// done. The tiers may overlap freely; idempotence makes that safe.
func (s *Sweeper) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	for _, spec := range tiers {
		go s.loop(ctx, spec, interval)
	}
	logger.SWEEP.Info("sweeper started",
		slog.String("event", "start"),
		slog.Duration("interval", interval),
	)
}

func (s *Sweeper) loop(ctx context.Context, spec tierSpec, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.RunTier(ctx, spec.tier); err != nil {
				logger.SWEEP.Error("sweep failed",
					slog.String("event", "sweep.fail"),
					slog.String("tier", spec.name),
					slog.String("err", logger.ErrText(err)),
				)
			}
		}
	}
}
