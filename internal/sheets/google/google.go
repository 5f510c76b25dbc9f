// Package google exports the expense list to a Google Sheets tab.
package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	gsheet "google.golang.org/api/sheets/v4"

	"expensectl/internal/core"
	"expensectl/internal/log"
	"expensectl/internal/ports"
)

// exportColumns is the last column written by Export.
const exportColumns = "E"

var headerRow = []any{"ID", "#", "Date", "Description", "Amount"}

var _ ports.Exporter = (*Client)(nil)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
	logger        *log.Logger
}

// Options configures NewFromConfig.
type Options struct {
	SpreadsheetID string
	SheetName     string
	Credentials   Credentials
	Logger        *log.Logger
}

// NewFromConfig creates a Sheets client from explicit options.
func NewFromConfig(ctx context.Context, opts Options) (*Client, error) {
	if strings.TrimSpace(opts.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentSheets)

	svc, err := newSheetsService(ctx, opts.Credentials, logger)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return NewWithService(svc, opts.SpreadsheetID, opts.SheetName, logger), nil
}

// NewFromEnv creates a Sheets client using GOOGLE_SPREADSHEET_ID,
// GOOGLE_SHEET_NAME (default "Expenses") and the GOOGLE_* credential variables.
func NewFromEnv(ctx context.Context, logger *log.Logger) (*Client, error) {
	return NewFromConfig(ctx, Options{
		SpreadsheetID: strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID")),
		SheetName:     strings.TrimSpace(os.Getenv("GOOGLE_SHEET_NAME")),
		Credentials:   CredentialsFromEnv(),
		Logger:        logger,
	})
}

// NewWithService wraps an existing Sheets service.
func NewWithService(svc *gsheet.Service, spreadsheetID, sheetName string, logger *log.Logger) *Client {
	if sheetName == "" {
		sheetName = "Expenses"
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &Client{svc: svc, spreadsheetID: spreadsheetID, sheetName: sheetName, logger: logger}
}

// Export replaces the tab contents with a header row and one row per expense,
// and returns the written range.
func (c *Client) Export(ctx context.Context, expenses []core.Expense) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	sheet := quoteSheetName(c.sheetName)

	clearRange := fmt.Sprintf("%s!A:%s", sheet, exportColumns)
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, clearRange, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return "", fmt.Errorf("clear %s: %w", clearRange, err)
	}

	rows := BuildRows(expenses)
	writeRange := fmt.Sprintf("%s!A1:%s%d", sheet, exportColumns, len(rows))
	// RAW keeps descriptions such as "=1+1" from being evaluated as formulas
	if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, writeRange, &gsheet.ValueRange{Values: rows}).
		ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return "", fmt.Errorf("write %s: %w", writeRange, err)
	}

	c.logger.InfoContext(ctx, "Exported expenses to sheet",
		log.FieldCount, len(expenses),
		log.FieldSheetsRef, writeRange)
	return writeRange, nil
}

// BuildRows renders the header and one row per expense in list order.
func BuildRows(expenses []core.Expense) [][]any {
	rows := make([][]any, 0, len(expenses)+1)
	rows = append(rows, headerRow)
	for _, e := range expenses {
		rows = append(rows, []any{
			e.ID,
			e.LocalID,
			e.Date.String(),
			e.Description,
			e.Amount.Round(2).InexactFloat64(),
		})
	}
	return rows
}

// quoteSheetName quotes names that A1 notation would otherwise misread.
func quoteSheetName(name string) string {
	for _, r := range name {
		if !(r == '_' || r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
			return "'" + strings.ReplaceAll(name, "'", "''") + "'"
		}
	}
	return name
}
