package archive

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
	"lukechampine.com/blake3"

	"stakingcore/core/events"
	"stakingcore/core/types"
)

// ErrDSNRequired is returned when no archive database is configured.
var ErrDSNRequired = errors.New("archive DSN must be configured")

// Record is one archived staking event. Digest is the blake3 hash of the
// canonical event encoding and is unique, so replays are ignored.
type Record struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	Digest     string    `gorm:"size:64;uniqueIndex"`
	Type       string    `gorm:"size:64;index"`
	PositionID string    `gorm:"size:64;index"`
	Owner      string    `gorm:"size:96;index"`
	Attributes string    `gorm:"type:text"`
	CreatedAt  time.Time `gorm:"index"`
}

// TableName pins the table name across drivers.
func (Record) TableName() string { return "stake_events" }

// Event decodes the stored payload.
func (r Record) Event() (*types.Event, error) {
	attrs := map[string]string{}
	if r.Attributes != "" {
		if err := json.Unmarshal([]byte(r.Attributes), &attrs); err != nil {
			return nil, fmt.Errorf("decode attributes: %w", err)
		}
	}
	return &types.Event{Type: r.Type, Attributes: attrs}, nil
}

// Filter narrows Query results. Empty fields match everything.
type Filter struct {
	Type       string
	Owner      string
	PositionID string
	Limit      int
}

// Archive persists committed events to a SQL database.
type Archive struct {
	db     *gorm.DB
	logger *slog.Logger
	now    func() time.Time
}

var _ events.Emitter = (*Archive)(nil)

// Open connects to dsn. postgres:// URLs and key=value DSNs containing host=
// use the Postgres driver; anything else is treated as a sqlite path or URI.
func Open(dsn string, log *slog.Logger) (*Archive, error) {
	trimmed := strings.TrimSpace(dsn)
	if trimmed == "" {
		return nil, ErrDSNRequired
	}
	var dialector gorm.Dialector
	if isPostgres(trimmed) {
		dialector = postgres.Open(trimmed)
	} else {
		dialector = sqlite.Open(trimmed)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	return New(db, log)
}

// New wraps an existing connection and migrates the schema.
func New(db *gorm.DB, log *slog.Logger) (*Archive, error) {
	if db == nil {
		return nil, errors.New("archive: nil database")
	}
	if log == nil {
		log = slog.Default()
	}
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("migrate archive: %w", err)
	}
	return &Archive{db: db, logger: log, now: time.Now}, nil
}

func isPostgres(dsn string) bool {
	lower := strings.ToLower(dsn)
	return strings.HasPrefix(lower, "postgres://") ||
		strings.HasPrefix(lower, "postgresql://") ||
		strings.Contains(lower, "host=")
}

// SetNowFunc overrides the clock used for CreatedAt.
func (a *Archive) SetNowFunc(now func() time.Time) {
	if now != nil {
		a.now = now
	}
}

// Digest returns the hex blake3 hash of the canonical event encoding.
func Digest(evt *types.Event) (string, error) {
	if evt == nil {
		return "", errors.New("archive: nil event")
	}
	// encoding/json writes map keys in sorted order.
	canonical, err := json.Marshal(evt)
	if err != nil {
		return "", err
	}
	sum := blake3.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// Emit implements events.Emitter. Failures are logged; the staking state has
// already been committed when events are published.
func (a *Archive) Emit(evt events.Event) {
	if a == nil || evt == nil {
		return
	}
	payload := evt.Event()
	if payload == nil {
		return
	}
	if _, err := a.Append(context.Background(), payload); err != nil {
		a.logger.Error("archive event", "type", payload.Type, "error", err)
	}
}

// Append stores evt unless an identical event was archived before. It
// reports whether a new row was written.
func (a *Archive) Append(ctx context.Context, evt *types.Event) (bool, error) {
	digest, err := Digest(evt)
	if err != nil {
		return false, err
	}
	attrs, err := json.Marshal(evt.Attributes)
	if err != nil {
		return false, err
	}
	record := Record{
		ID:         uuid.New(),
		Digest:     digest,
		Type:       evt.Type,
		PositionID: evt.Attr("positionId"),
		Owner:      evt.Attr("owner"),
		Attributes: string(attrs),
		CreatedAt:  a.now().UTC(),
	}
	result := a.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "digest"}}, DoNothing: true}).
		Create(&record)
	if result.Error != nil {
		return false, fmt.Errorf("insert event: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}

// Query returns archived events in insertion order.
func (a *Archive) Query(ctx context.Context, filter Filter) ([]Record, error) {
	q := a.db.WithContext(ctx).Model(&Record{})
	if filter.Type != "" {
		q = q.Where("type = ?", filter.Type)
	}
	if filter.Owner != "" {
		q = q.Where("owner = ?", filter.Owner)
	}
	if filter.PositionID != "" {
		q = q.Where("position_id = ?", strings.TrimPrefix(strings.ToLower(filter.PositionID), "0x"))
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	var out []Record
	if err := q.Order("created_at ASC").Order("digest ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	return out, nil
}

// Count returns the number of archived events.
func (a *Archive) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := a.db.WithContext(ctx).Model(&Record{}).Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

// Close releases the underlying connection pool.
func (a *Archive) Close() error {
	if a == nil || a.db == nil {
		return nil
	}
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
