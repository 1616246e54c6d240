package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evtop/evtop/internal/engine"
	"github.com/evtop/evtop/internal/event"
	"github.com/evtop/evtop/internal/extract"
	"github.com/evtop/evtop/internal/filter"
	"github.com/evtop/evtop/internal/table"
)

func newTestServer(t *testing.T) (*Server, *engine.Engine, *engine.Entry, context.CancelFunc) {
	t.Helper()

	eng := engine.New(zerolog.Nop(), 16)

	factory := extract.NewFactory()
	tbl := table.New(table.Config{
		Mode:              table.ModeTable,
		RefreshIntervalNS: uint64(time.Second),
		Output:            table.OutputNone,
		Factory:           factory,
		Compiler:          filter.NewCompiler(factory),
		Threads:           eng.Threads(),
		Logger:            zerolog.Nop(),
	})
	require.NoError(t, tbl.Configure([]table.ColumnSpec{
		{Field: "proc.name", IsKey: true},
		{Field: "evt.count", Aggregation: table.AggrSum},
	}, "", false, 0))
	entry := eng.Register("procs", tbl)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = eng.Run(ctx) }()

	srv := NewServer(DefaultServerConfig(), eng, zerolog.Nop())
	return srv, eng, entry, cancel
}

func TestHealthEndpoint(t *testing.T) {
	srv, _, _, cancel := newTestServer(t)
	defer cancel()

	resp, err := srv.App().Test(httptest.NewRequest("GET", "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
}

func TestListTables(t *testing.T) {
	srv, _, entry, cancel := newTestServer(t)
	defer cancel()

	resp, err := srv.App().Test(httptest.NewRequest("GET", "/api/v1/tables", nil))
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var payload struct {
		Tables []struct {
			ID      string   `json:"id"`
			Name    string   `json:"name"`
			Mode    string   `json:"mode"`
			Columns []string `json:"columns"`
		} `json:"tables"`
	}
	require.NoError(t, json.Unmarshal(body, &payload))
	require.Len(t, payload.Tables, 1)
	assert.Equal(t, entry.ID, payload.Tables[0].ID)
	assert.Equal(t, "procs", payload.Tables[0].Name)
	assert.Equal(t, "table", payload.Tables[0].Mode)
	assert.Equal(t, []string{"proc.name", "evt.count"}, payload.Tables[0].Columns)
}

func TestSampleEndpoint(t *testing.T) {
	srv, eng, entry, cancel := newTestServer(t)
	defer cancel()

	mk := func(ts uint64, name string) *event.Syscall {
		return &event.Syscall{
			Timestamp: ts,
			ThreadID:  1,
			EvtType:   3,
			TInfo:     &event.ThreadInfo{Tid: 1, Pid: 1, Comm: name},
		}
	}

	// Drive the pipeline on the engine goroutine.
	eng.Do(func() {
		eng.HandleEvent(mk(100, "worker"))
		eng.HandleEvent(mk(uint64(time.Second)+100, "worker"))
	})

	resp, err := srv.App().Test(httptest.NewRequest("GET", "/api/v1/tables/"+entry.ID+"/sample", nil))
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var payload struct {
		Table   string `json:"table"`
		FlushTS uint64 `json:"flush_ts"`
		Rows    []struct {
			Key    string `json:"key"`
			Values []any  `json:"values"`
		} `json:"rows"`
	}
	require.NoError(t, json.Unmarshal(body, &payload))
	assert.Equal(t, "procs", payload.Table)
	require.Len(t, payload.Rows, 1)
	assert.Equal(t, "worker", payload.Rows[0].Key)
}

func TestSampleUnknownTable(t *testing.T) {
	srv, _, _, cancel := newTestServer(t)
	defer cancel()

	resp, err := srv.App().Test(httptest.NewRequest("GET", "/api/v1/tables/bogus/sample", nil))
	require.NoError(t, err)
	assert.Equal(t, 404, resp.StatusCode)
}

func TestPauseResume(t *testing.T) {
	srv, _, entry, cancel := newTestServer(t)
	defer cancel()

	resp, err := srv.App().Test(httptest.NewRequest("POST", "/api/v1/tables/"+entry.ID+"/pause", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	resp, err = srv.App().Test(httptest.NewRequest("POST", "/api/v1/tables/"+entry.ID+"/resume", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
}

func TestSortEndpointValidation(t *testing.T) {
	srv, _, entry, cancel := newTestServer(t)
	defer cancel()

	// Sorting by key is invalid for keyed tables.
	req := httptest.NewRequest("POST", "/api/v1/tables/"+entry.ID+"/sort", strings.NewReader(`{"col":0}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := srv.App().Test(req)
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)

	req = httptest.NewRequest("POST", "/api/v1/tables/"+entry.ID+"/sort", strings.NewReader(`{"col":1}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err = srv.App().Test(req)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
}

func TestClearRejectsKeyedTable(t *testing.T) {
	srv, _, entry, cancel := newTestServer(t)
	defer cancel()

	resp, err := srv.App().Test(httptest.NewRequest("POST", "/api/v1/tables/"+entry.ID+"/clear", nil))
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)
}
