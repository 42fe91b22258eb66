package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/smallnest/stepgraph/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ticket struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

const (
	insertSQL = "INSERT INTO checkpoints (run_id, step, node, state, paused_before, created_at) VALUES ($1, $2, $3, $4, $5, $6)"
	loadSQL   = "SELECT run_id, step, node, state, paused_before, created_at FROM checkpoints WHERE run_id = $1 ORDER BY seq DESC LIMIT 1"
	listSQL   = "SELECT seq, step, node, created_at FROM checkpoints WHERE run_id = $1 ORDER BY seq ASC"
)

func TestPostgresCheckpointer_Save(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	cpr := NewCheckpointerWithPool[ticket](mock, "checkpoints")

	cp := store.Checkpoint[ticket]{
		RunID:     "run-1",
		Step:      2,
		Node:      "triage",
		CreatedAt: time.Date(2025, 4, 5, 6, 7, 8, 0, time.UTC),
		State:     ticket{ID: "T-1", Status: "open"},
	}
	stateJSON, _ := json.Marshal(cp.State)

	mock.ExpectExec(regexp.QuoteMeta(insertSQL)).
		WithArgs(cp.RunID, cp.Step, cp.Node, stateJSON, "", cp.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	assert.NoError(t, cpr.Save(context.Background(), cp))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCheckpointer_Save_TruncatesToMicroseconds(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	cpr := NewCheckpointerWithPool[ticket](mock, "checkpoints")

	cp := store.Checkpoint[ticket]{
		RunID:     "run-1",
		Step:      1,
		Node:      "triage",
		CreatedAt: time.Date(2025, 4, 5, 8, 7, 8, 123456789, time.FixedZone("CEST", 2*3600)),
		State:     ticket{ID: "T-1"},
	}
	stateJSON, _ := json.Marshal(cp.State)

	mock.ExpectExec(regexp.QuoteMeta(insertSQL)).
		WithArgs(cp.RunID, cp.Step, cp.Node, stateJSON, "", time.Date(2025, 4, 5, 6, 7, 8, 123456000, time.UTC)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	assert.NoError(t, cpr.Save(context.Background(), cp))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCheckpointer_Save_Errors(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	cpr := NewCheckpointerWithPool[ticket](mock, "")

	err = cpr.Save(context.Background(), store.Checkpoint[ticket]{RunID: ""})
	assert.ErrorIs(t, err, store.ErrInvalidRunID)

	mock.ExpectExec(regexp.QuoteMeta(insertSQL)).
		WillReturnError(errors.New("connection reset"))

	err = cpr.Save(context.Background(), store.Checkpoint[ticket]{RunID: "run-1", Node: "n"})
	assert.ErrorContains(t, err, "failed to save checkpoint")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCheckpointer_Load(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	cpr := NewCheckpointerWithPool[ticket](mock, "checkpoints")

	createdAt := time.Date(2025, 4, 5, 6, 7, 8, 0, time.UTC)
	stateJSON, _ := json.Marshal(ticket{ID: "T-1", Status: "closed"})

	rows := pgxmock.NewRows([]string{"run_id", "step", "node", "state", "paused_before", "created_at"}).
		AddRow("run-1", 3, "close", stateJSON, "", createdAt)

	mock.ExpectQuery(regexp.QuoteMeta(loadSQL)).
		WithArgs("run-1").
		WillReturnRows(rows)

	loaded, err := cpr.Load(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, &store.Checkpoint[ticket]{
		RunID:     "run-1",
		Step:      3,
		Node:      "close",
		CreatedAt: createdAt,
		State:     ticket{ID: "T-1", Status: "closed"},
	}, loaded)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCheckpointer_Load_ReturnsUTC(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	cpr := NewCheckpointerWithPool[ticket](mock, "checkpoints")

	saved := store.Timestamp(time.Date(2025, 4, 5, 6, 7, 8, 987654321, time.UTC))
	stateJSON, _ := json.Marshal(ticket{ID: "T-1"})

	// pgx scans TIMESTAMPTZ in the session time zone.
	rows := pgxmock.NewRows([]string{"run_id", "step", "node", "state", "paused_before", "created_at"}).
		AddRow("run-1", 1, "triage", stateJSON, "", saved.In(time.FixedZone("PDT", -7*3600)))

	mock.ExpectQuery(regexp.QuoteMeta(loadSQL)).
		WithArgs("run-1").
		WillReturnRows(rows)

	loaded, err := cpr.Load(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, saved, loaded.CreatedAt)
	assert.Equal(t, time.UTC, loaded.CreatedAt.Location())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCheckpointer_Load_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	cpr := NewCheckpointerWithPool[ticket](mock, "checkpoints")

	mock.ExpectQuery(regexp.QuoteMeta(loadSQL)).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	loaded, err := cpr.Load(context.Background(), "missing")
	assert.NoError(t, err)
	assert.Nil(t, loaded)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCheckpointer_Load_DatabaseError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	cpr := NewCheckpointerWithPool[ticket](mock, "checkpoints")

	mock.ExpectQuery(regexp.QuoteMeta(loadSQL)).
		WithArgs("run-1").
		WillReturnError(errors.New("database connection failed"))

	loaded, err := cpr.Load(context.Background(), "run-1")
	assert.Nil(t, loaded)
	assert.ErrorContains(t, err, "failed to load checkpoint")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCheckpointer_Load_InvalidStateJSON(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	cpr := NewCheckpointerWithPool[ticket](mock, "checkpoints")

	rows := pgxmock.NewRows([]string{"run_id", "step", "node", "state", "paused_before", "created_at"}).
		AddRow("run-1", 1, "n", []byte("{invalid json"), "", time.Now())

	mock.ExpectQuery(regexp.QuoteMeta(loadSQL)).
		WithArgs("run-1").
		WillReturnRows(rows)

	loaded, err := cpr.Load(context.Background(), "run-1")
	assert.Nil(t, loaded)
	assert.ErrorContains(t, err, "failed to unmarshal state")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCheckpointer_List(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	cpr := NewCheckpointerWithPool[ticket](mock, "checkpoints")
	ts := time.Date(2025, 4, 5, 6, 7, 8, 0, time.UTC)

	rows := pgxmock.NewRows([]string{"seq", "step", "node", "created_at"}).
		AddRow(int64(10), 1, "triage", ts).
		AddRow(int64(11), 2, "assign", ts.Add(time.Second))

	mock.ExpectQuery(regexp.QuoteMeta(listSQL)).
		WithArgs("run-1").
		WillReturnRows(rows)

	history, err := cpr.List(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, []store.Metadata{
		{Seq: 10, Step: 1, Node: "triage", CreatedAt: ts},
		{Seq: 11, Step: 2, Node: "assign", CreatedAt: ts.Add(time.Second)},
	}, history)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCheckpointer_List_EmptyAndError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	cpr := NewCheckpointerWithPool[ticket](mock, "checkpoints")

	mock.ExpectQuery(regexp.QuoteMeta(listSQL)).
		WithArgs("empty").
		WillReturnRows(pgxmock.NewRows([]string{"seq", "step", "node", "created_at"}))

	history, err := cpr.List(context.Background(), "empty")
	assert.NoError(t, err)
	assert.Empty(t, history)

	mock.ExpectQuery(regexp.QuoteMeta(listSQL)).
		WithArgs("broken").
		WillReturnError(errors.New("boom"))

	history, err = cpr.List(context.Background(), "broken")
	assert.Nil(t, history)
	assert.ErrorContains(t, err, "failed to list checkpoints")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCheckpointer_InitSchemaAndClear(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	cpr := NewCheckpointerWithPool[ticket](mock, "graph_checkpoints")

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS graph_checkpoints")).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM graph_checkpoints WHERE run_id = $1")).
		WithArgs("run-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 3))

	require.NoError(t, cpr.InitSchema(context.Background()))
	require.NoError(t, cpr.Clear(context.Background(), "run-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
