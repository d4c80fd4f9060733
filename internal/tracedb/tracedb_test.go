package tracedb

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/clockdrive/internal/monitoring"
	"github.com/banshee-data/clockdrive/internal/road"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	t.Cleanup(monitoring.Quiet())

	db, err := Open(filepath.Join(t.TempDir(), "traces.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func testRecord(started time.Time) SessionRecord {
	return SessionRecord{
		ID:            uuid.New(),
		StartedAt:     started,
		FinishedAt:    started.Add(65 * time.Second),
		Interval:      5 * time.Second,
		Segments:      12,
		FilterRadius:  2,
		Normalization: "radius",
		ExportPath:    "datas/RoadData.20260119_173129.csv",
		Samples:       3,
		PathLength:    12.5,
		ResidualRMS:   0.75,
	}
}

func TestOpen_MigratesSchema(t *testing.T) {
	db := openTestDB(t)

	version, dirty, err := db.MigrateVersion()
	require.NoError(t, err)
	assert.EqualValues(t, 2, version)
	assert.False(t, dirty)

	// Running the migrations again is a no-op.
	require.NoError(t, db.MigrateUp())
}

func TestOpen_Reopen(t *testing.T) {
	t.Cleanup(monitoring.Quiet())
	path := filepath.Join(t.TempDir(), "traces.db")

	db, err := Open(path)
	require.NoError(t, err)
	rec := testRecord(time.Date(2026, 1, 19, 17, 30, 0, 0, time.UTC))
	require.NoError(t, db.SaveSession(context.Background(), rec, road.Trace{{X: 1, Y: 1}}, road.Trace{{X: 2, Y: 2}}))
	require.NoError(t, db.Close())

	db, err = Open(path)
	require.NoError(t, err)
	defer db.Close()

	sessions, err := db.Sessions(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, rec.ID, sessions[0].ID)
}

func TestSaveSession_RoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	raw := road.Trace{{X: 0, Y: 0}, {X: 2.5, Y: 0}, {X: 4, Y: -1.25}}
	filtered := road.Trace{{X: 8, Y: 0}, {X: 6, Y: 0}, {X: 12, Y: 0}}
	rec := testRecord(time.Date(2026, 1, 19, 17, 30, 0, 123456789, time.UTC))
	require.NoError(t, db.SaveSession(ctx, rec, raw, filtered))

	sessions, err := db.Sessions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, rec, sessions[0])

	gotRaw, err := db.Points(ctx, rec.ID, KindRaw)
	require.NoError(t, err)
	assert.Equal(t, raw, gotRaw)

	gotFiltered, err := db.Points(ctx, rec.ID, KindFiltered)
	require.NoError(t, err)
	assert.Equal(t, filtered, gotFiltered)
}

func TestSaveSession_SubMillisecondInterval(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	rec := testRecord(time.Date(2026, 1, 20, 9, 0, 0, 0, time.UTC))
	rec.Interval = 2500*time.Microsecond + 250*time.Nanosecond
	require.NoError(t, db.SaveSession(ctx, rec, nil, nil))

	sessions, err := db.Sessions(ctx, 1)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, rec.Interval, sessions[0].Interval)
}

func TestSaveSession_DuplicateRollsBack(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	rec := testRecord(time.Date(2026, 1, 19, 17, 30, 0, 0, time.UTC))
	require.NoError(t, db.SaveSession(ctx, rec, road.Trace{{X: 1}}, road.Trace{{X: 2}}))

	err := db.SaveSession(ctx, rec, road.Trace{{X: 9}, {X: 10}}, nil)
	require.Error(t, err)

	// The failed save left the original points untouched.
	pts, err := db.Points(ctx, rec.ID, KindRaw)
	require.NoError(t, err)
	assert.Equal(t, road.Trace{{X: 1}}, pts)
}

func TestSessions_OrderAndLimit(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 19, 9, 0, 0, 0, time.UTC)
	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		rec := testRecord(base.Add(time.Duration(i) * time.Hour))
		ids = append(ids, rec.ID)
		require.NoError(t, db.SaveSession(ctx, rec, nil, nil))
	}

	all, err := db.Sessions(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, ids[2], all[0].ID)
	assert.Equal(t, ids[0], all[2].ID)

	latest, err := db.Sessions(ctx, 2)
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, ids[1], latest[1].ID)
}

func TestPoints_UnknownSessionAndKind(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	pts, err := db.Points(ctx, uuid.New(), KindRaw)
	require.NoError(t, err)
	assert.Empty(t, pts)

	_, err = db.Points(ctx, uuid.New(), PointKind("smoothed"))
	assert.True(t, errors.Is(err, ErrUnknownKind))
}

func TestAttachAdminRoutes(t *testing.T) {
	db := openTestDB(t)
	mux := http.NewServeMux()
	require.NoError(t, db.AttachAdminRoutes(mux))

	for _, path := range []string{"/debug/tailsql/", "/debug/backup"} {
		_, pattern := mux.Handler(httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, path, pattern)
	}
}

func TestServeBackup(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.SaveSession(context.Background(), testRecord(time.Now().UTC()), nil, nil))

	rec := httptest.NewRecorder()
	db.serveBackup(rec, httptest.NewRequest(http.MethodGet, "/debug/backup", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/gzip", rec.Header().Get("Content-Type"))
	// gzip magic bytes
	require.GreaterOrEqual(t, rec.Body.Len(), 2)
	assert.Equal(t, []byte{0x1f, 0x8b}, rec.Body.Bytes()[:2])
}
