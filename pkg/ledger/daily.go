package ledger

import (
	"context"
	"fmt"
	"time"

	"pitboss/pkg/protocol"
)

// Counters returns a snapshot of the day's rolling aggregate.
func (l *Ledger) Counters() protocol.DailyCounters {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.counters
}

// SetLiveStats updates the session-derived counters. These mirror live state
// pushed by the session layer; they are not derived from the ledger itself.
func (l *Ledger) SetLiveStats(usersOnline, gamesActive int) {
	l.mu.Lock()
	l.counters.UsersOnline = usersOnline
	l.counters.GamesActive = gamesActive
	l.mu.Unlock()
}

// Run drives the midnight rollover check until ctx is cancelled. The
// boundary is checked once per ResetCheckInterval (default 1m).
func (l *Ledger) Run(ctx context.Context) {
	ticker := time.NewTicker(l.cfg.ResetCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = l.CheckRollover(ctx)
		}
	}
}

// CheckRollover detects a local-midnight boundary crossing, archives the
// prior day's counters under their date key, and zeroes the day-scoped
// totals. Live session counters carry over. Safe to call at any time.
func (l *Ledger) CheckRollover(ctx context.Context) error {
	today := l.today()

	l.mu.Lock()
	if l.counters.Date == today {
		l.mu.Unlock()
		return nil
	}
	prior := l.counters
	l.counters = protocol.DailyCounters{
		Date:        today,
		UsersOnline: prior.UsersOnline,
		GamesActive: prior.GamesActive,
	}
	l.mu.Unlock()

	_, err := l.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO daily_archive (date, earned, purchased, spins, revenue, users_online, games_active)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		prior.Date, prior.Earned, prior.Purchased, prior.Spins, prior.Revenue,
		prior.UsersOnline, prior.GamesActive)
	if err != nil {
		return fmt.Errorf("archive daily counters for %s: %w", prior.Date, err)
	}
	return nil
}

// ArchivedDay returns the archived counter snapshot for a YYYY-MM-DD date.
func (l *Ledger) ArchivedDay(ctx context.Context, date string) (protocol.DailyCounters, error) {
	var c protocol.DailyCounters
	err := l.db.QueryRowContext(ctx,
		`SELECT date, earned, purchased, spins, revenue, users_online, games_active
		 FROM daily_archive WHERE date = ?`, date).
		Scan(&c.Date, &c.Earned, &c.Purchased, &c.Spins, &c.Revenue, &c.UsersOnline, &c.GamesActive)
	if err != nil {
		return protocol.DailyCounters{}, fmt.Errorf("load daily archive %s: %w", date, err)
	}
	return c, nil
}

// today formats the current local date as the counter day key.
func (l *Ledger) today() string {
	return l.nowFunc().Local().Format("2006-01-02")
}
