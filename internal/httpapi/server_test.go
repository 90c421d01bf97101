package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/specialistvlad/graphmut/internal/coordinator"
	"github.com/specialistvlad/graphmut/internal/entity"
	"github.com/specialistvlad/graphmut/internal/inmemorygraph"
	"github.com/specialistvlad/graphmut/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	t     *testing.T
	srv   *Server
	coord *coordinator.Coordinator
	logs  *testutil.SafeBuffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logs := &testutil.SafeBuffer{}
	coord := coordinator.New(inmemorygraph.New(), coordinator.Options{})
	return &harness{t: t, srv: New(coord, testutil.NewLogger(logs)), coord: coord, logs: logs}
}

// do sends a request and decodes a JSON response into out when out is set.
func (h *harness) do(method, path, body string, out any) int {
	h.t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.srv.App().Test(req)
	require.NoError(h.t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(h.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestHealth(t *testing.T) {
	h := newHarness(t)
	var got map[string]any
	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/health", "", &got))
	assert.Equal(t, "ok", got["status"])
	assert.EqualValues(t, 0, got["nodes"])
	testutil.AssertLogged(t, h.logs, "Health check endpoint hit.")
}

func TestNodeLifecycle(t *testing.T) {
	h := newHarness(t)

	var created entity.Node
	status := h.do(http.MethodPost, "/nodes", `{"type":"policy","label":"Tax","properties":{"rate":0.2}}`, &created)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, entity.NodePolicy, created.Type)
	assert.NotEqual(t, uuid.Nil, created.ID)

	var fetched entity.Node
	require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/nodes/"+created.ID.String(), "", &fetched))
	assert.Equal(t, "Tax", fetched.Label)
	assert.Equal(t, 0.2, fetched.Properties["rate"])

	var updated entity.Node
	require.Equal(t, http.StatusOK, h.do(http.MethodPatch, "/nodes/"+created.ID.String(),
		`{"label":"Income tax","properties":{"rate":null,"band":"high"}}`, &updated))
	assert.Equal(t, "Income tax", updated.Label)
	assert.Equal(t, map[string]any{"band": "high"}, updated.Properties)

	var list []entity.Node
	require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/nodes?type=policy", "", &list))
	assert.Len(t, list, 1)
	require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/nodes?type=actor", "", &list))
	assert.Empty(t, list)

	assert.Equal(t, http.StatusNoContent, h.do(http.MethodDelete, "/nodes/"+created.ID.String(), "", nil))
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/nodes/"+created.ID.String(), "", nil))
}

func TestRelationshipsAndUndo(t *testing.T) {
	h := newHarness(t)
	var a, b entity.Node
	require.Equal(t, http.StatusCreated, h.do(http.MethodPost, "/nodes", `{"label":"A"}`, &a))
	require.Equal(t, http.StatusCreated, h.do(http.MethodPost, "/nodes", `{"label":"B"}`, &b))

	var rel entity.Relationship
	body := `{"source_id":"` + a.ID.String() + `","target_id":"` + b.ID.String() + `","kind":"funds","weight":0.5}`
	require.Equal(t, http.StatusCreated, h.do(http.MethodPost, "/relationships", body, &rel))
	assert.Equal(t, "FUNDS", rel.Kind)

	var incident []entity.Relationship
	require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/relationships?node="+b.ID.String(), "", &incident))
	require.Len(t, incident, 1)
	assert.Equal(t, rel.ID, incident[0].ID)

	var step map[string]any
	require.Equal(t, http.StatusOK, h.do(http.MethodPost, "/undo", "", &step))
	assert.Equal(t, true, step["applied"])
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/relationships/"+rel.ID.String(), "", nil))

	require.Equal(t, http.StatusOK, h.do(http.MethodPost, "/redo", "", &step))
	assert.Equal(t, true, step["applied"])
	assert.Equal(t, false, step["can_redo"])
	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/relationships/"+rel.ID.String(), "", nil))

	require.Equal(t, http.StatusOK, h.do(http.MethodPost, "/redo", "", &step))
	assert.Equal(t, false, step["applied"])

	var hist map[string][]map[string]any
	require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/history", "", &hist))
	assert.Len(t, hist["history"], 3)
	assert.Len(t, hist["undo"], 3)
	assert.Empty(t, hist["redo"])

	assert.Equal(t, http.StatusNoContent, h.do(http.MethodDelete, "/relationships/"+rel.ID.String(), "", nil))
	assert.Empty(t, h.coord.ListRelationships(t.Context(), uuid.Nil))
}

func TestBatchAndTransactions(t *testing.T) {
	h := newHarness(t)

	var res coordinator.BatchResult
	status := h.do(http.MethodPost, "/batch", `{
		"metadata": {"source": "import"},
		"mutations": [
			{"op": "create_node", "ref": "a", "node": {"label": "A"}},
			{"op": "create_node", "ref": "b", "node": {"label": "B"}},
			{"op": "create_relationship", "from": "a", "to": "b"}
		]
	}`, &res)
	require.Equal(t, http.StatusCreated, status)
	assert.Len(t, res.Nodes, 2)
	assert.Len(t, res.Relationships, 1)

	var failed map[string]any
	status = h.do(http.MethodPost, "/batch", `{"mutations": [
		{"op": "create_node", "ref": "c", "node": {"label": "C"}},
		{"op": "remove_node", "id": "`+uuid.NewString()+`"}
	]}`, &failed)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "not_found", failed["kind"])

	var stats coordinator.Overview
	require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/stats", "", &stats))
	assert.Equal(t, 2, stats.Nodes)
	assert.Equal(t, 1, stats.Transactions.Committed)
	assert.Equal(t, 1, stats.Transactions.RolledBack)

	var txns struct {
		Transactions []map[string]any `json:"transactions"`
	}
	require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/transactions?limit=1", "", &txns))
	require.Len(t, txns.Transactions, 1)
	assert.Equal(t, "rolled_back", txns.Transactions[0]["status"])
}

func TestErrorMapping(t *testing.T) {
	h := newHarness(t)
	var a entity.Node
	require.Equal(t, http.StatusCreated, h.do(http.MethodPost, "/nodes", `{"label":"A"}`, &a))

	testCases := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{name: "malformed id", method: http.MethodGet, path: "/nodes/not-a-uuid", want: http.StatusBadRequest},
		{name: "malformed body", method: http.MethodPost, path: "/nodes", body: `{`, want: http.StatusBadRequest},
		{name: "unknown type", method: http.MethodPost, path: "/nodes", body: `{"type":"alien","label":"x"}`, want: http.StatusBadRequest},
		{name: "unknown type filter", method: http.MethodGet, path: "/nodes?type=alien", want: http.StatusBadRequest},
		{name: "duplicate id", method: http.MethodPost, path: "/nodes", body: `{"id":"` + a.ID.String() + `","label":"again"}`, want: http.StatusConflict},
		{name: "missing endpoint", method: http.MethodPost, path: "/relationships",
			body: `{"source_id":"` + a.ID.String() + `","target_id":"` + uuid.NewString() + `"}`, want: http.StatusNotFound},
		{name: "empty batch", method: http.MethodPost, path: "/batch", body: `{"mutations":[]}`, want: http.StatusBadRequest},
		{name: "bad limit", method: http.MethodGet, path: "/transactions?limit=0", want: http.StatusBadRequest},
		{name: "unknown route", method: http.MethodGet, path: "/nowhere", want: http.StatusNotFound},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var got map[string]any
			assert.Equal(t, tc.want, h.do(tc.method, tc.path, tc.body, &got))
			assert.NotEmpty(t, got["error"])
		})
	}
	testutil.AssertLogged(t, h.logs, "Request rejected.", "status=409")
}
