// Package sweeper purges visitor and message records orphaned by session
// deletion. Session deletes do not cascade; this scheduled job keeps the
// store tidy instead.
package sweeper

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/zulandar/qrchat/internal/models"
	"gorm.io/gorm"
)

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Sweeper runs the orphan purge on a cron schedule.
type Sweeper struct {
	db    *gorm.DB
	sched cron.Schedule
}

// New creates a Sweeper from a 5-field cron expression.
func New(db *gorm.DB, schedule string) (*Sweeper, error) {
	if db == nil {
		return nil, fmt.Errorf("sweeper: db is required")
	}
	sched, err := cronParser.Parse(schedule)
	if err != nil {
		return nil, fmt.Errorf("sweeper: parse schedule %q: %w", schedule, err)
	}
	return &Sweeper{db: db, sched: sched}, nil
}

// Run blocks, purging at each scheduled fire time until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	for {
		next := s.sched.Next(time.Now())
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			res, err := s.Purge(ctx)
			if err != nil {
				log.Printf("sweeper: purge failed: %v", err)
				continue
			}
			if res.Total() > 0 {
				log.Printf("sweeper: purged %d visitors, %d members, %d messages",
					res.Visitors, res.Members, res.Messages)
			}
		}
	}
}

// Result counts the rows removed by one purge pass.
type Result struct {
	Visitors int64
	Members  int64
	Messages int64
}

// Total returns the number of rows removed.
func (r Result) Total() int64 { return r.Visitors + r.Members + r.Messages }

// Purge removes every visitor, member, and message whose session no longer
// exists.
func (s *Sweeper) Purge(ctx context.Context) (Result, error) {
	var res Result
	db := s.db.WithContext(ctx)
	liveSessions := db.Model(&models.Session{}).Select("id")

	del := db.Where("session_id NOT IN (?)", liveSessions).Delete(&models.Visitor{})
	if del.Error != nil {
		return res, fmt.Errorf("sweeper: purge visitors: %w", del.Error)
	}
	res.Visitors = del.RowsAffected

	liveVisitors := db.Model(&models.Visitor{}).Select("id")
	del = db.Where("visitor_id NOT IN (?)", liveVisitors).Delete(&models.VisitorMember{})
	if del.Error != nil {
		return res, fmt.Errorf("sweeper: purge members: %w", del.Error)
	}
	res.Members = del.RowsAffected

	del = db.Where("session_id NOT IN (?)", liveSessions).Delete(&models.Message{})
	if del.Error != nil {
		return res, fmt.Errorf("sweeper: purge messages: %w", del.Error)
	}
	res.Messages = del.RowsAffected

	return res, nil
}
