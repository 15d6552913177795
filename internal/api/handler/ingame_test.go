package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albapepper/matchsheet/internal/config"
	"github.com/albapepper/matchsheet/internal/ingest"
	"github.com/albapepper/matchsheet/internal/payload"
	"github.com/albapepper/matchsheet/internal/sink"
)

type fakeSink struct {
	calls int
	rng   string
	table payload.Table
	err   error
}

func (f *fakeSink) Append(_ context.Context, sheetID, rangeExpr string, table payload.Table) (sink.Updates, error) {
	f.calls++
	f.rng, f.table = rangeExpr, table
	if f.err != nil {
		return sink.Updates{}, f.err
	}
	return sink.Updates{
		SpreadsheetID: sheetID,
		UpdatedRange:  "'Sheet1'!A2:B3",
		UpdatedRows:   int64(len(table)),
		UpdatedCells:  int64(table.CellCount()),
	}, nil
}

func newTestHandler(fs *fakeSink, cfg *config.Config) *Handler {
	if cfg.SheetName == "" {
		cfg.SheetName = "Sheet1"
	}
	svc := ingest.New(fs, "sheet-1", cfg.SheetName, nil)
	return New(svc, cfg, nil)
}

func post(h *Handler, body, contentType string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/ingame", strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	h.Ingame(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestIngameAppendsRows(t *testing.T) {
	fs := &fakeSink{}
	h := newTestHandler(fs, &config.Config{})

	rec := post(h, `[[1,2],[null,"x"]]`, "application/json", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{
		"ok": true,
		"updates": {"spreadsheetId": "sheet-1", "updatedRange": "'Sheet1'!A2:B3", "updatedRows": 2, "updatedCells": 4}
	}`, rec.Body.String())
	assert.Equal(t, 1, fs.calls)
	assert.Equal(t, "'Sheet1'!A1", fs.rng)
	assert.Equal(t, payload.StringCell(""), fs.table[1][0])
}

func TestIngameEscapesTabName(t *testing.T) {
	fs := &fakeSink{}
	h := newTestHandler(fs, &config.Config{SheetName: "O'Brien"})

	rec := post(h, `{"rows":[["a"]]}`, "application/json", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "'O''Brien'!A1", fs.rng)
}

func TestIngameAcceptedEncodings(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		contentType string
	}{
		{name: "double encoded", body: `"[[1,2],[3,4]]"`, contentType: "application/json"},
		{name: "form", body: "rows=" + url.QueryEscape(`[[1,2],[3,4]]`), contentType: "application/x-www-form-urlencoded"},
		{name: "text plain array", body: `[[1,2],[3,4]]`, contentType: "text/plain"},
	}

	plain := &fakeSink{}
	require.Equal(t, http.StatusOK, post(newTestHandler(plain, &config.Config{}), `[[1,2],[3,4]]`, "application/json", nil).Code)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := &fakeSink{}
			rec := post(newTestHandler(fs, &config.Config{}), tt.body, tt.contentType, nil)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.Equal(t, plain.table, fs.table)
		})
	}
}

func TestIngameMatchResult(t *testing.T) {
	fs := &fakeSink{}
	h := newTestHandler(fs, &config.Config{})

	body := `{"result":"Blue","time_played":"12:34","players":[
		{"side":"Blue","player_name":"FW NaiLiu","hero":"Marja","kills":7,"deaths":1,"assists":0,"gold":0,"mvp_points":0,"damage_dealt":140235,"damage_received":108498}
	]}`
	rec := post(h, body, "application/json", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	sent, err := json.Marshal(fs.table)
	require.NoError(t, err)
	assert.JSONEq(t, `[["","Blue","FW","FW NaiLiu","Marja",7,1,0,0,0,140235,108498,"12:34","Blue"]]`, string(sent))
}

func TestIngameShapeFailure(t *testing.T) {
	fs := &fakeSink{}
	h := newTestHandler(fs, &config.Config{})

	rec := post(h, `{}`, "application/json", nil)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	out := decode(t, rec)
	assert.Equal(t, false, out["ok"])
	assert.Equal(t, "application/json", out["content_type"])
	assert.Equal(t, "{}", out["body_preview"])
	assert.Equal(t, "object", out["kind"])
	assert.Contains(t, out["error"], "expected JSON")
	assert.Zero(t, fs.calls)

	rec = post(h, `not json at all`, "text/plain", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "none", decode(t, rec)["kind"])
}

func TestIngameSecret(t *testing.T) {
	fs := &fakeSink{}
	h := newTestHandler(fs, &config.Config{SharedSecret: "s3cret"})

	for name, header := range map[string]http.Header{
		"missing":  nil,
		"mismatch": {SecretHeader: {"wrong"}},
	} {
		t.Run(name, func(t *testing.T) {
			rec := post(h, `[[1]]`, "application/json", header)
			require.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.JSONEq(t, `{"ok":false,"error":"unauthorized"}`, rec.Body.String())
		})
	}
	assert.Zero(t, fs.calls)

	rec := post(h, `[[1]]`, "application/json", http.Header{SecretHeader: {"s3cret"}})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, fs.calls)
}

func TestIngameSecretCheckedBeforeBody(t *testing.T) {
	fs := &fakeSink{}
	h := newTestHandler(fs, &config.Config{SharedSecret: "s3cret", MaxBodyBytes: 4})

	rec := post(h, `[[1,2,3,4,5,6]]`, "application/json", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestIngameRemoteError(t *testing.T) {
	detail := `{"error":{"code":404,"message":"Requested entity was not found.","status":"NOT_FOUND"}}`
	fs := &fakeSink{err: sink.NewRemoteError(http.StatusNotFound, []byte(detail), errors.New("googleapi: Error 404"))}
	h := newTestHandler(fs, &config.Config{})

	rec := post(h, `[[1]]`, "application/json", nil)

	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"ok":false,"google_status":404,"google_error":`+detail+`}`, rec.Body.String())
	assert.Equal(t, 1, fs.calls)
}

func TestIngameServerErrors(t *testing.T) {
	tests := map[string]error{
		"missing credentials": errors.Join(config.ErrMissing, errors.New("GOOGLE_SA_JSON")),
		"unexpected":          errors.New("connection reset by peer"),
	}
	for name, err := range tests {
		t.Run(name, func(t *testing.T) {
			h := newTestHandler(&fakeSink{err: err}, &config.Config{})
			rec := post(h, `[[1]]`, "application/json", nil)
			require.Equal(t, http.StatusInternalServerError, rec.Code)
			assert.JSONEq(t, `{"ok":false,"error":"server exception"}`, rec.Body.String())
		})
	}
}

func TestIngameBodyTooLarge(t *testing.T) {
	fs := &fakeSink{}
	h := newTestHandler(fs, &config.Config{MaxBodyBytes: 8})

	rec := post(h, `[[1,2,3,4,5,6]]`, "application/json", nil)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Zero(t, fs.calls)
}

func TestHealthz(t *testing.T) {
	h := newTestHandler(&fakeSink{}, &config.Config{})
	rec := httptest.NewRecorder()
	h.Healthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}
