package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"market-cache-api/internal/models"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// Topic is the realtime topic cache events are published on.
const Topic = "cache"

const maxRecent = 500

// Publisher fans a message out to subscribers of a topic.
type Publisher interface {
	Publish(topic string, message []byte)
}

// Log persists cache management events and publishes each one after it is stored.
type Log struct {
	db    *gorm.DB
	pub   Publisher
	clock clock.Clock
	log   zerolog.Logger
}

func New(db *gorm.DB, pub Publisher, clk clock.Clock, log zerolog.Logger) *Log {
	if clk == nil {
		clk = clock.New()
	}
	return &Log{db: db, pub: pub, clock: clk, log: log}
}

// Record stores ev with a fresh id and timestamp and returns the stored event.
func (l *Log) Record(ctx context.Context, ev models.CacheEvent) (models.CacheEvent, error) {
	ev.ID = uuid.NewString()
	ev.CreatedAt = l.clock.Now().UTC()

	if err := l.db.WithContext(ctx).Create(&ev).Error; err != nil {
		return ev, fmt.Errorf("record cache event: %w", err)
	}

	l.log.Info().
		Str("action", string(ev.Action)).
		Str("selector", ev.Selector).
		Int("removed", ev.Removed).
		Str("actor", ev.Actor).
		Msg("cache event")

	if l.pub != nil {
		if b, err := json.Marshal(ev); err == nil {
			l.pub.Publish(Topic, b)
		}
	}
	return ev, nil
}

// Recent returns up to limit events, newest first.
func (l *Log) Recent(ctx context.Context, limit int) ([]models.CacheEvent, error) {
	if limit < 1 {
		limit = 50
	}
	if limit > maxRecent {
		limit = maxRecent
	}
	var events []models.CacheEvent
	if err := l.db.WithContext(ctx).Order("created_at desc").Limit(limit).Find(&events).Error; err != nil {
		return nil, fmt.Errorf("list cache events: %w", err)
	}
	return events, nil
}
