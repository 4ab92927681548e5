package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/nvr-ai/go-sentry/detector"
	"github.com/nvr-ai/go-sentry/images"
	"github.com/nvr-ai/go-sentry/models"
	"github.com/nvr-ai/go-sentry/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) *Journal {
	t.Helper()

	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func TestJournal_RecordAndRecent(t *testing.T) {
	j := openTemp(t)
	ctx := context.Background()
	base := time.Date(2026, 10, 19, 14, 3, 22, 0, time.UTC)

	first := Event{
		Time:    base,
		Camera:  "porch",
		Kind:    models.KindPerson,
		Status:  "present",
		Label:   "person",
		Score:   0.875,
		Region:  images.Rect{X1: 938, Y1: 663, X2: 1432, Y2: 1080},
		Subject: images.Rect{X1: 1036, Y1: 704, X2: 1234, Y2: 871},
		Path:    "out/people/10-19-2026--14-03-22_person.jpg",
	}
	second := Event{Time: base.Add(time.Second), Camera: "porch", Kind: models.KindFace, Status: "absent"}

	recorded, err := j.Record(ctx, first)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, recorded.ID)
	_, err = j.Record(ctx, second)
	require.NoError(t, err)

	events, err := j.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, "absent", events[0].Status, "newest first")
	assert.True(t, events[1].Time.Equal(base))
	events[1].Time = recorded.Time
	if diff := cmp.Diff(recorded, events[1]); diff != "" {
		t.Errorf("Recent() mismatch (-want +got):\n%s", diff)
	}

	events, err = j.Recent(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, events, 1)

	events, err = j.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, events)

	counts, err := j.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"present": 1, "absent": 1}, counts)
}

func TestJournal_DefaultsIDAndTime(t *testing.T) {
	j := openTemp(t)
	fixed := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)
	id := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	j.now = func() time.Time { return fixed }
	j.newID = func() uuid.UUID { return id }

	e, err := j.Record(context.Background(), Event{Camera: "yard", Kind: models.KindPerson, Status: "no_subject"})
	require.NoError(t, err)
	assert.Equal(t, id, e.ID)
	assert.Equal(t, fixed, e.Time)

	_, err = j.Record(context.Background(), Event{ID: id, Status: "absent"})
	assert.Error(t, err, "duplicate id")
}

func TestJournal_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")

	j, err := Open(path)
	require.NoError(t, err)
	_, err = j.Record(context.Background(), Event{Camera: "a", Status: "absent"})
	require.NoError(t, err)
	require.NoError(t, j.Close())

	j, err = Open(path)
	require.NoError(t, err)
	defer j.Close()

	events, err := j.Recent(context.Background(), 5)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestEventFromOutcome(t *testing.T) {
	ts := time.Date(2026, 10, 19, 14, 3, 22, 0, time.UTC)
	present := pipeline.Outcome{
		Kind:    models.KindPerson,
		Status:  pipeline.StatusPresent,
		Region:  images.Rect{X1: 100, Y1: 50, X2: 400, Y2: 350},
		Best:    detector.Detection{Label: "person", Score: 0.9},
		Subject: images.Rect{X1: 10, Y1: 20, X2: 110, Y2: 220},
	}

	e := EventFromOutcome("porch", ts, present, "x.jpg")
	assert.Equal(t, "present", e.Status)
	assert.Equal(t, "person", e.Label)
	assert.Equal(t, float32(0.9), e.Score)
	assert.Equal(t, images.Rect{X1: 110, Y1: 70, X2: 210, Y2: 270}, e.Subject)
	assert.Equal(t, "x.jpg", e.Path)

	absent := EventFromOutcome("porch", ts, pipeline.Outcome{Kind: models.KindFace, Status: pipeline.StatusAbsent}, "")
	assert.Equal(t, "absent", absent.Status)
	assert.Empty(t, absent.Label)
	assert.Zero(t, absent.Subject)
}
