package sheets

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/erp/shipcheck/internal/domain/reconciliation"
)

const (
	valueInputUserEntered = "USER_ENTERED"
	valueRenderFormatted  = "FORMATTED_VALUE"
	insertRows            = "INSERT_ROWS"
)

// Config configures the spreadsheet gateway
type Config struct {
	SpreadsheetID string
	Retry         RetryConfig
}

// Gateway is the ledger gateway backed by the Google Sheets v4 API.
// Worksheets are addressed by title; rows and columns are 1-based.
type Gateway struct {
	values        *sheets.SpreadsheetsValuesService
	spreadsheetID string
	retryConfig   RetryConfig
	logger        *zap.Logger
}

// New authenticates with the service-account key and creates a Gateway
func New(ctx context.Context, credentials []byte, cfg Config, logger *zap.Logger) (*Gateway, error) {
	svc, err := sheets.NewService(ctx,
		option.WithCredentialsJSON(credentials),
		option.WithScopes(sheets.SpreadsheetsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return NewWithService(svc, cfg, logger), nil
}

// NewWithService creates a Gateway over an existing Sheets service
func NewWithService(svc *sheets.Service, cfg Config, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{
		values:        sheets.NewSpreadsheetsValuesService(svc),
		spreadsheetID: cfg.SpreadsheetID,
		retryConfig:   cfg.Retry,
		logger:        logger.Named("ledger"),
	}
}

// GetRows reads the whole sheet. The first row is the header.
func (g *Gateway) GetRows(ctx context.Context, sheet string) (*reconciliation.Snapshot, error) {
	var resp *sheets.ValueRange
	err := g.retry(ctx, "values.get", func() error {
		var err error
		resp, err = g.values.Get(g.spreadsheetID, SheetRange(sheet)).
			ValueRenderOption(valueRenderFormatted).
			Context(ctx).
			Do()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	return reconciliation.NewSnapshot(toStrings(resp.Values)), nil
}

// AppendRow appends one row after the sheet's last data row
func (g *Gateway) AppendRow(ctx context.Context, sheet string, values []string) error {
	row := make([]interface{}, len(values))
	for i, v := range values {
		row[i] = v
	}
	body := &sheets.ValueRange{Values: [][]interface{}{row}}

	err := g.retry(ctx, "values.append", func() error {
		_, err := g.values.Append(g.spreadsheetID, SheetRange(sheet), body).
			ValueInputOption(valueInputUserEntered).
			InsertDataOption(insertRows).
			Context(ctx).
			Do()
		return err
	})
	if err != nil {
		return fmt.Errorf("append to sheet %q: %w", sheet, err)
	}
	return nil
}

// UpdateCell overwrites a single cell
func (g *Gateway) UpdateCell(ctx context.Context, sheet string, row, col int, value string) error {
	cell := CellRange(sheet, row, col)
	body := &sheets.ValueRange{Values: [][]interface{}{{value}}}

	err := g.retry(ctx, "values.update", func() error {
		_, err := g.values.Update(g.spreadsheetID, cell, body).
			ValueInputOption(valueInputUserEntered).
			Context(ctx).
			Do()
		return err
	})
	if err != nil {
		return fmt.Errorf("update cell %s: %w", cell, err)
	}
	return nil
}

// FindColumn returns the 1-based index of the header cell equal to header
func (g *Gateway) FindColumn(ctx context.Context, sheet string, header string) (int, error) {
	var resp *sheets.ValueRange
	err := g.retry(ctx, "values.get", func() error {
		var err error
		resp, err = g.values.Get(g.spreadsheetID, HeaderRange(sheet)).
			ValueRenderOption(valueRenderFormatted).
			Context(ctx).
			Do()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("read header of sheet %q: %w", sheet, err)
	}

	snapshot := reconciliation.NewSnapshot(toStrings(resp.Values))
	idx, ok := snapshot.ColumnIndex(header)
	if !ok {
		return 0, fmt.Errorf("%w: %q in sheet %q", reconciliation.ErrColumnNotFound, header, sheet)
	}
	return idx, nil
}

func toStrings(values [][]interface{}) [][]string {
	out := make([][]string, len(values))
	for i, row := range values {
		out[i] = make([]string, len(row))
		for j, cell := range row {
			if cell == nil {
				continue
			}
			out[i][j] = fmt.Sprint(cell)
		}
	}
	return out
}

var _ reconciliation.LedgerGateway = (*Gateway)(nil)
