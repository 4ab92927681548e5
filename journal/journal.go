// Package journal keeps a sqlite record of pipeline outcomes.
package journal

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/nvr-ai/go-sentry/images"
	"github.com/nvr-ai/go-sentry/models"
	"github.com/nvr-ai/go-sentry/pipeline"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

const schema = `
	CREATE TABLE IF NOT EXISTS events (
		event_id TEXT PRIMARY KEY,
		ts INTEGER NOT NULL,
		camera TEXT NOT NULL,
		kind TEXT NOT NULL,
		status TEXT NOT NULL,
		label TEXT,
		score DOUBLE,
		region_x1 INTEGER, region_y1 INTEGER, region_x2 INTEGER, region_y2 INTEGER,
		subject_x1 INTEGER, subject_y1 INTEGER, subject_x2 INTEGER, subject_y2 INTEGER,
		path TEXT
	);
	CREATE INDEX IF NOT EXISTS events_ts ON events (ts);
`

// Event is one journaled pipeline outcome.
type Event struct {
	ID     uuid.UUID
	Time   time.Time
	Camera string
	Kind   models.Kind
	Status string
	Label  string
	Score  float32
	// Region is the motion region in frame pixels.
	Region images.Rect
	// Subject is the best detection in frame pixels.
	Subject images.Rect
	// Path is the stored image, if any.
	Path string
}

// EventFromOutcome converts a pipeline outcome into an Event.
func EventFromOutcome(camera string, ts time.Time, o pipeline.Outcome, path string) Event {
	e := Event{
		Time:   ts,
		Camera: camera,
		Kind:   o.Kind,
		Status: o.Status.String(),
		Region: o.Region,
		Path:   path,
	}
	if o.Present() {
		e.Label = o.Best.Label
		e.Score = o.Best.Score
		e.Subject = o.SubjectInFrame()
	}
	return e
}

// Journal is a sqlite-backed event log.
type Journal struct {
	*sql.DB

	now   func() time.Time
	newID func() uuid.UUID
}

// Open opens or creates the journal database at path.
//
// Arguments:
//   - path: The sqlite database file.
//
// Returns:
//   - *Journal: The journal with its schema in place.
//   - error: The error if the database cannot be opened.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open journal %s", path)
	}
	// sqlite allows a single writer.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to create journal schema")
	}

	return &Journal{DB: db, now: time.Now, newID: uuid.New}, nil
}

// Record inserts e, filling in its ID and time when they are zero.
//
// Arguments:
//   - ctx: The context for the insert.
//   - e: The event. A missing ID or time is filled in.
//
// Returns:
//   - Event: The stored event.
//   - error: The insert error.
func (j *Journal) Record(ctx context.Context, e Event) (Event, error) {
	if e.ID == uuid.Nil {
		e.ID = j.newID()
	}
	if e.Time.IsZero() {
		e.Time = j.now()
	}

	_, err := j.ExecContext(ctx, `
		INSERT INTO events (
			event_id, ts, camera, kind, status, label, score,
			region_x1, region_y1, region_x2, region_y2,
			subject_x1, subject_y1, subject_x2, subject_y2,
			path
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID.String(), e.Time.UnixNano(), e.Camera, string(e.Kind), e.Status, e.Label, float64(e.Score),
		e.Region.X1, e.Region.Y1, e.Region.X2, e.Region.Y2,
		e.Subject.X1, e.Subject.Y1, e.Subject.X2, e.Subject.Y2,
		e.Path,
	)
	if err != nil {
		return e, errors.Wrap(err, "failed to record event")
	}
	return e, nil
}

// Recent returns up to limit events, newest first.
//
// Arguments:
//   - ctx: The context for the query.
//   - limit: The maximum number of events.
//
// Returns:
//   - []Event: The events, newest first.
//   - error: The query error.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		return nil, nil
	}

	rows, err := j.QueryContext(ctx, `
		SELECT
			event_id, ts, camera, kind, status, label, score,
			region_x1, region_y1, region_x2, region_y2,
			subject_x1, subject_y1, subject_x2, subject_y2,
			path
		FROM events ORDER BY ts DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query events")
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			e     Event
			id    string
			ts    int64
			kind  string
			score float64
		)
		if err := rows.Scan(
			&id, &ts, &e.Camera, &kind, &e.Status, &e.Label, &score,
			&e.Region.X1, &e.Region.Y1, &e.Region.X2, &e.Region.Y2,
			&e.Subject.X1, &e.Subject.Y1, &e.Subject.X2, &e.Subject.Y2,
			&e.Path,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan event")
		}
		if e.ID, err = uuid.Parse(id); err != nil {
			return nil, errors.Wrapf(err, "bad event id %q", id)
		}
		e.Time = time.Unix(0, ts)
		e.Kind = models.Kind(kind)
		e.Score = float32(score)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

// CountByStatus returns the number of events per status.
func (j *Journal) CountByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := j.QueryContext(ctx, "SELECT status, COUNT(*) FROM events GROUP BY status")
	if err != nil {
		return nil, errors.Wrap(err, "failed to count events")
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}
