package payload

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"
)

const (
	// PreviewLen bounds the raw body excerpt carried by ShapeError.
	PreviewLen = 200

	// maxDecodeDepth bounds how many layers of string-encoded JSON are
	// unwrapped before giving up.
	maxDecodeDepth = 4

	formContentType = "application/x-www-form-urlencoded"
	byteOrderMark   = "\ufeff"
)

// ErrShapeUnrecognized is matched by every ShapeError.
var ErrShapeUnrecognized = errors.New("payload shape unrecognized")

// ShapeError reports a body that matched none of the accepted shapes.
type ShapeError struct {
	ContentType string
	Preview     string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("payload shape unrecognized (content type %q)", e.ContentType)
}

func (e *ShapeError) Unwrap() error { return ErrShapeUnrecognized }

// Input is one inbound body. Parsed is nil when the body was not JSON.
type Input struct {
	Parsed      *Value
	Raw         string
	ContentType string
}

// NewInput wraps a raw body, attempting one JSON parse. A leading UTF-8
// byte order mark is dropped.
func NewInput(raw, contentType string) Input {
	raw = strings.TrimPrefix(raw, byteOrderMark)
	in := Input{Raw: raw, ContentType: contentType}
	if v, ok := tryParse(raw); ok {
		in.Parsed = &v
	}
	return in
}

// ParsedKind describes the parsed body for diagnostics, or "none" when the
// body did not parse.
func (in Input) ParsedKind() string {
	if in.Parsed == nil {
		return "none"
	}
	return in.Parsed.Kind().String()
}

// Preview returns the first PreviewLen characters of the raw body.
func (in Input) Preview() string {
	if utf8.RuneCountInString(in.Raw) <= PreviewLen {
		return in.Raw
	}
	r := []rune(in.Raw)
	return string(r[:PreviewLen])
}

// fallback is one way of recovering a table from the raw body.
type fallback func(in Input) (Table, bool)

// fallbacks run in order once the parsed value fails to classify.
var fallbacks = []fallback{
	rawArray,
	doubleEncoded,
	formRows,
}

// Normalize reduces an inbound body to a Table. It never panics on
// malformed input; anything unrecognized yields a *ShapeError.
func Normalize(in Input) (Table, error) {
	if in.Parsed != nil {
		if t, ok := classify(*in.Parsed, 0); ok {
			return t, nil
		}
	}
	for _, fb := range fallbacks {
		if t, ok := fb(in); ok {
			return t, nil
		}
	}
	return nil, &ShapeError{ContentType: in.ContentType, Preview: in.Preview()}
}

// matcher recognizes one shape. It returns (table, ok, matched); matched
// stops the search even when the candidate turns out invalid.
type matcher func(v Value, depth int) (Table, bool, bool)

// matchers run in precedence order. Assigned in init because matchRows
// and matchEncoded recurse back into classify.
var matchers []matcher

func init() {
	matchers = []matcher{
		matchArray,
		matchRows,
		matchPlayers,
		matchEncoded,
	}
}

func classify(v Value, depth int) (Table, bool) {
	for _, m := range matchers {
		if t, ok, matched := m(v, depth); matched {
			return t, ok
		}
	}
	return nil, false
}

func matchArray(v Value, _ int) (Table, bool, bool) {
	if v.kind != KindArray {
		return nil, false, false
	}
	t, ok := finalize(v)
	return t, ok, true
}

// matchRows handles {"rows": ...}. A null rows value counts as absent so
// a players list next to it still gets a chance.
func matchRows(v Value, depth int) (Table, bool, bool) {
	rows, ok := v.Field("rows")
	if !ok || rows.kind == KindNull {
		return nil, false, false
	}
	if rows.kind == KindString {
		t, ok := decodeAndClassify(rows.str, depth)
		return t, ok, true
	}
	t, ok := finalize(rows)
	return t, ok, true
}

func matchPlayers(v Value, _ int) (Table, bool, bool) {
	if _, ok := v.Field("players"); !ok {
		return nil, false, false
	}
	t, ok := matchTable(v)
	if !ok {
		return nil, false, true
	}
	return t, validate(t), true
}

// matchEncoded unwraps a value that was JSON-encoded twice.
func matchEncoded(v Value, depth int) (Table, bool, bool) {
	s, ok := v.Str()
	if !ok {
		return nil, false, false
	}
	t, ok := decodeAndClassify(s, depth)
	return t, ok, true
}

func decodeAndClassify(s string, depth int) (Table, bool) {
	if depth >= maxDecodeDepth {
		return nil, false
	}
	inner, ok := tryParse(s)
	if !ok {
		return nil, false
	}
	return classify(inner, depth+1)
}

// rawArray retries a body that looks like an array literal.
func rawArray(in Input) (Table, bool) {
	trimmed := strings.TrimSpace(in.Raw)
	if !strings.HasPrefix(trimmed, "[") || !strings.HasSuffix(trimmed, "]") {
		return nil, false
	}
	v, ok := tryParse(trimmed)
	if !ok {
		return nil, false
	}
	return classify(v, 0)
}

// doubleEncoded handles a body that is a quoted JSON string whose content
// is itself JSON.
func doubleEncoded(in Input) (Table, bool) {
	trimmed := strings.TrimSpace(in.Raw)
	if len(trimmed) < 2 || !strings.HasPrefix(trimmed, `"`) || !strings.HasSuffix(trimmed, `"`) {
		return nil, false
	}
	outer, ok := tryParse(trimmed)
	if !ok {
		return nil, false
	}
	s, ok := outer.Str()
	if !ok {
		return nil, false
	}
	return decodeAndClassify(s, 0)
}

// formRows reads rows=<json> from a form-encoded body. The decoded value is
// used as the table directly.
func formRows(in Input) (Table, bool) {
	if !strings.Contains(strings.ToLower(in.ContentType), formContentType) {
		return nil, false
	}
	// ParseQuery keeps every well-formed pair even when it reports an error.
	form, _ := url.ParseQuery(in.Raw)
	if !form.Has("rows") {
		return nil, false
	}
	v, ok := tryParse(form.Get("rows"))
	if !ok {
		return nil, false
	}
	return finalize(v)
}

// finalize sanitizes a candidate and validates the result.
func finalize(candidate Value) (Table, bool) {
	t, ok := sanitize(candidate)
	if !ok {
		return nil, false
	}
	return t, validate(t)
}

// sanitize rewrites nulls to "" and wraps scalar rows as one-cell rows.
// Only arrays can be sanitized.
func sanitize(candidate Value) (Table, bool) {
	items, ok := candidate.Items()
	if !ok {
		return nil, false
	}
	t := make(Table, 0, len(items))
	for _, item := range items {
		cells, isRow := item.Items()
		if !isRow {
			t = append(t, Row{cellOf(item)})
			continue
		}
		row := make(Row, len(cells))
		for i, c := range cells {
			row[i] = cellOf(c)
		}
		t = append(t, row)
	}
	return t, true
}

// validate accepts only a non-empty table. Rows are always sequences once
// sanitized, so the first-row check reduces to the length check.
func validate(t Table) bool {
	return len(t) > 0 && t[0] != nil
}
