package payload

import (
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func num(s string) Cell { return NumberCell(json.Number(s)) }

func mustNormalize(t *testing.T, raw, contentType string) Table {
	t.Helper()
	table, err := Normalize(NewInput(raw, contentType))
	require.NoError(t, err)
	return table
}

func TestNormalizeAcceptedShapes(t *testing.T) {
	want := Table{
		{num("1"), num("2")},
		{num("3"), num("4")},
	}

	tests := []struct {
		name        string
		body        string
		contentType string
	}{
		{name: "top-level array", body: `[[1,2],[3,4]]`, contentType: "application/json"},
		{name: "wrapped rows", body: `{"rows":[[1,2],[3,4]]}`, contentType: "application/json"},
		{name: "double-encoded array", body: `"[[1,2],[3,4]]"`, contentType: "application/json"},
		{name: "double-encoded wrapper", body: `"{\"rows\":[[1,2],[3,4]]}"`, contentType: "application/json"},
		{name: "rows as string", body: `{"rows":"[[1,2],[3,4]]"}`, contentType: "application/json"},
		{name: "array with text content type", body: "  [[1,2],[3,4]]\n", contentType: "text/plain"},
		{name: "no content type", body: `[[1,2],[3,4]]`},
		{name: "byte order mark", body: "\ufeff" + `{"rows":[[1,2],[3,4]]}`, contentType: "application/json"},
		{
			name:        "form encoded",
			body:        "rows=" + url.QueryEscape(`[[1,2],[3,4]]`),
			contentType: "application/x-www-form-urlencoded; charset=utf-8",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, want, mustNormalize(t, tt.body, tt.contentType))
		})
	}
}

func TestNormalizeSanitizesNulls(t *testing.T) {
	got := mustNormalize(t, `[[null, 1]]`, "application/json")
	assert.Equal(t, Table{{StringCell(""), num("1")}}, got)

	out, err := json.Marshal(got)
	require.NoError(t, err)
	assert.JSONEq(t, `[["",1]]`, string(out))
}

func TestNormalizeWrapsScalarRows(t *testing.T) {
	got := mustNormalize(t, `[1, "a", null, [true]]`, "application/json")
	assert.Equal(t, Table{
		{num("1")},
		{StringCell("a")},
		{StringCell("")},
		{BoolCell(true)},
	}, got)
}

func TestNormalizeNestedCellsBecomeText(t *testing.T) {
	got := mustNormalize(t, `[[{"b":2,"a":1}, [1,2]]]`, "application/json")
	assert.Equal(t, Table{{StringCell(`{"a":1,"b":2}`), StringCell(`[1,2]`)}}, got)
}

func TestNormalizeKeepsNumberLiterals(t *testing.T) {
	got := mustNormalize(t, `[[140235, 1.50, -0]]`, "application/json")
	out, err := json.Marshal(got)
	require.NoError(t, err)
	assert.Equal(t, `[[140235,1.50,-0]]`, string(out))
}

func TestNormalizeMatchResult(t *testing.T) {
	body := `{
		"result": "Blue",
		"time_played": "12:34",
		"players": [{
			"side": "Blue", "player_name": "FW NaiLiu", "hero": "Marja",
			"kills": 7, "deaths": 1, "assists": 0, "gold": 0, "mvp_points": 0,
			"damage_dealt": 140235, "damage_received": 108498
		}]
	}`

	got := mustNormalize(t, body, "application/json")
	want := Table{{
		StringCell(""), StringCell("Blue"), StringCell("FW"), StringCell("FW NaiLiu"), StringCell("Marja"),
		num("7"), num("1"), num("0"), num("0"), num("0"), num("140235"), num("108498"),
		StringCell("12:34"), StringCell("Blue"),
	}}
	assert.Equal(t, want, got)
	assert.Len(t, got[0], len(MatchColumns))

	out, err := json.Marshal(got)
	require.NoError(t, err)
	assert.JSONEq(t, `[["","Blue","FW","FW NaiLiu","Marja",7,1,0,0,0,140235,108498,"12:34","Blue"]]`, string(out))

	encoded, err := json.Marshal(body)
	require.NoError(t, err)
	assert.Equal(t, want, mustNormalize(t, string(encoded), "application/json"))
}

func TestNormalizeMatchResultDefaults(t *testing.T) {
	body := `{"players":[{"player_name":"Solo","kills":null},{"player_name":""},"skip me",{}]}`

	got := mustNormalize(t, body, "application/json")
	require.Len(t, got, 3)

	zero := num("0")
	assert.Equal(t, StringCell("Solo"), got[0][2])
	assert.Equal(t, zero, got[0][5])
	assert.Equal(t, StringCell(""), got[1][2])
	for _, row := range got {
		assert.Len(t, row, len(MatchColumns))
		assert.Equal(t, StringCell(""), row[12], "time_played defaults to empty")
		assert.Equal(t, StringCell(""), row[13], "result defaults to empty")
		for _, c := range row[5:12] {
			assert.Equal(t, zero, c)
		}
	}
}

func TestNormalizeRowsTakePrecedenceOverPlayers(t *testing.T) {
	got := mustNormalize(t, `{"rows":[["x"]],"players":[{"player_name":"A B"}]}`, "application/json")
	assert.Equal(t, Table{{StringCell("x")}}, got)

	got = mustNormalize(t, `{"rows":null,"players":[{"player_name":"A B"}]}`, "application/json")
	require.Len(t, got, 1)
	assert.Equal(t, StringCell("A"), got[0][2])
}

func TestNormalizeRejects(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		contentType string
	}{
		{name: "empty object", body: `{}`, contentType: "application/json"},
		{name: "empty array", body: `[]`, contentType: "application/json"},
		{name: "empty body", body: ``, contentType: "application/json"},
		{name: "scalar", body: `42`, contentType: "application/json"},
		{name: "rows not array", body: `{"rows":{"a":1}}`, contentType: "application/json"},
		{name: "players not array", body: `{"players":"nope"}`, contentType: "application/json"},
		{name: "no players", body: `{"players":[]}`, contentType: "application/json"},
		{name: "broken json", body: `[[1,2]`, contentType: "application/json"},
		{name: "plain string", body: `"hello"`, contentType: "application/json"},
		{name: "bracketed garbage", body: `[not json]`, contentType: "text/plain"},
		{name: "form without rows", body: `cols=%5B%5B1%5D%5D`, contentType: "application/x-www-form-urlencoded"},
		{name: "form rows not json", body: `rows=abc`, contentType: "application/x-www-form-urlencoded"},
		{name: "form body without form type", body: "rows=" + url.QueryEscape(`[[1]]`), contentType: "text/plain"},
		{name: "deeply encoded", body: deepEncode(`[[1]]`, 6), contentType: "application/json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(NewInput(tt.body, tt.contentType))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrShapeUnrecognized))

			var shapeErr *ShapeError
			require.ErrorAs(t, err, &shapeErr)
			assert.Equal(t, tt.contentType, shapeErr.ContentType)
		})
	}
}

func TestShapeErrorPreviewIsBounded(t *testing.T) {
	body := `{"junk":"` + strings.Repeat("é", 500) + `"}`
	_, err := Normalize(NewInput(body, "application/json"))

	var shapeErr *ShapeError
	require.ErrorAs(t, err, &shapeErr)
	assert.Equal(t, PreviewLen, len([]rune(shapeErr.Preview)))
	assert.True(t, strings.HasPrefix(body, shapeErr.Preview))
}

func TestInputParsedKind(t *testing.T) {
	assert.Equal(t, "none", NewInput("rows=1", "application/x-www-form-urlencoded").ParsedKind())
	assert.Equal(t, "object", NewInput(`{}`, "").ParsedKind())
	assert.Equal(t, "array", NewInput(`[]`, "").ParsedKind())
	assert.Equal(t, "string", NewInput(`"x"`, "").ParsedKind())
	assert.Equal(t, "null", NewInput(`null`, "").ParsedKind())
}

func TestTeamTag(t *testing.T) {
	assert.Equal(t, "FW", TeamTag("FW NaiLiu"))
	assert.Equal(t, "Solo", TeamTag("Solo"))
	assert.Equal(t, "", TeamTag(""))
	assert.Equal(t, "", TeamTag(" leading"))
}

func deepEncode(s string, layers int) string {
	for range layers {
		b, _ := json.Marshal(s)
		s = string(b)
	}
	return s
}
