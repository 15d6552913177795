// Package sink defines the append-only destination for normalized tables
// and the errors it reports.
package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/albapepper/matchsheet/internal/payload"
)

// Appender appends a table below the existing rows of a sheet. Rows are
// inserted, never overwritten, and values are stored as given.
type Appender interface {
	Append(ctx context.Context, sheetID, rangeExpr string, table payload.Table) (Updates, error)
}

// Updates is the append summary reported by the sink. Field names follow
// the Sheets API so responses pass through untouched.
type Updates struct {
	SpreadsheetID  string `json:"spreadsheetId,omitempty"`
	UpdatedRange   string `json:"updatedRange,omitempty"`
	UpdatedRows    int64  `json:"updatedRows,omitempty"`
	UpdatedColumns int64  `json:"updatedColumns,omitempty"`
	UpdatedCells   int64  `json:"updatedCells,omitempty"`
}

// RemoteError is a failure reported by the sink itself (permission denied,
// sheet not found, quota exceeded). Status and Detail are mirrored to the
// caller.
type RemoteError struct {
	Status int
	Detail json.RawMessage
	Err    error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("sink returned %d: %v", e.Status, e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// HTTPStatus returns Status when it is an HTTP error code and 502 otherwise.
func (e *RemoteError) HTTPStatus() int {
	if e.Status >= 400 && e.Status <= 599 {
		return e.Status
	}
	return http.StatusBadGateway
}

// NewRemoteError builds a RemoteError whose Detail is body when body is
// JSON, or {"raw": err.Error()} otherwise.
func NewRemoteError(status int, body []byte, err error) *RemoteError {
	detail := json.RawMessage(body)
	if len(body) == 0 || !json.Valid(body) {
		detail, _ = json.Marshal(map[string]string{"raw": err.Error()})
	}
	return &RemoteError{Status: status, Detail: detail, Err: err}
}

// EscapeTab doubles embedded single quotes so the tab name can sit inside
// a quoted A1 range.
func EscapeTab(tab string) string {
	return strings.ReplaceAll(tab, "'", "''")
}

// RangeFor returns the A1 range that anchors an append on tab.
func RangeFor(tab string) string {
	return "'" + EscapeTab(tab) + "'!A1"
}
