// Package sheets appends tables to a Google Sheets spreadsheet with a
// service account.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/albapepper/matchsheet/internal/config"
	"github.com/albapepper/matchsheet/internal/payload"
	"github.com/albapepper/matchsheet/internal/sink"
)

const (
	valueInputRaw  = "RAW"
	insertRowsMode = "INSERT_ROWS"
)

// Client is a sink.Appender backed by the Sheets v4 values.append call.
type Client struct {
	svc    *sheetsapi.Service
	logger *slog.Logger
}

// New authenticates with a service account key and builds a client.
func New(ctx context.Context, key []byte, logger *slog.Logger) (*Client, error) {
	creds, err := google.CredentialsFromJSONWithType(ctx, key, google.ServiceAccount, sheetsapi.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("%w: service account key: %v", config.ErrMalformed, err)
	}
	return NewWithOptions(ctx, logger, option.WithCredentials(creds))
}

// NewWithOptions builds a client from raw API options. Tests use it to point
// the client at a local server.
func NewWithOptions(ctx context.Context, logger *slog.Logger, opts ...option.ClientOption) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	svc, err := sheetsapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &Client{svc: svc, logger: logger}, nil
}

// Append inserts table below the data found at rangeExpr. Values are
// stored raw, so strings that look like formulas stay strings.
func (c *Client) Append(ctx context.Context, sheetID, rangeExpr string, table payload.Table) (sink.Updates, error) {
	body := &sheetsapi.ValueRange{
		MajorDimension: "ROWS",
		Values:         table.Values(),
	}

	resp, err := c.svc.Spreadsheets.Values.Append(sheetID, rangeExpr, body).
		ValueInputOption(valueInputRaw).
		InsertDataOption(insertRowsMode).
		Context(ctx).
		Do()
	if err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) {
			c.logger.Warn("Sheets append rejected",
				"sheet_id", sheetID, "range", rangeExpr, "status", gerr.Code, "error", gerr.Message)
			return sink.Updates{}, sink.NewRemoteError(gerr.Code, []byte(gerr.Body), err)
		}
		return sink.Updates{}, fmt.Errorf("sheets append %s: %w", rangeExpr, err)
	}

	updates := sink.Updates{SpreadsheetID: resp.SpreadsheetId}
	if u := resp.Updates; u != nil {
		updates = sink.Updates{
			SpreadsheetID:  u.SpreadsheetId,
			UpdatedRange:   u.UpdatedRange,
			UpdatedRows:    u.UpdatedRows,
			UpdatedColumns: u.UpdatedColumns,
			UpdatedCells:   u.UpdatedCells,
		}
	}
	c.logger.Debug("Sheets append done",
		"sheet_id", sheetID, "range", updates.UpdatedRange, "rows", updates.UpdatedRows)
	return updates, nil
}
