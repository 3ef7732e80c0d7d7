package store

import (
	"context"
	"fmt"
	"time"
)

// Follow re-evaluates live subscriptions when another connection commits to
// the database file, polling PRAGMA data_version every interval. It blocks
// until ctx is done and returns ctx.Err(), or returns the first query error.
//
// Commits made through this Store are delivered without Follow.
func (s *Store) Follow(ctx context.Context, interval time.Duration) error {
	last, err := s.dataVersion(ctx)
	if err != nil {
		return err
	}
	// Commits from elsewhere before the baseline was read are otherwise lost.
	s.writeMu.Lock()
	s.changed()
	s.writeMu.Unlock()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		v, err := s.dataVersion(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		if v == last {
			continue
		}
		last = v
		s.log.Debug("external commit observed", "data_version", v)

		s.writeMu.Lock()
		s.changed()
		s.writeMu.Unlock()
	}
}

func (s *Store) dataVersion(ctx context.Context) (int64, error) {
	var v int64
	if err := s.db.QueryRowContext(ctx, "PRAGMA data_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("read data_version: %w", err)
	}
	return v, nil
}
