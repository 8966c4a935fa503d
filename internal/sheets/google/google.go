// Package google exports subscription tables into a Google spreadsheet.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	applog "mysubs/internal/log"
	"mysubs/internal/ports"
)

// maxTitleLength is the longest tab title the Sheets API accepts.
const maxTitleLength = 100

var _ ports.SheetExporter = (*Client)(nil)

type Config struct {
	SpreadsheetID string
	// SheetName prefixes every tab the exporter creates.
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetBase     string
	logger        *slog.Logger
}

// New creates a Sheets client authenticated with service account credentials.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	creds, err := credentials(cfg)
	if err != nil {
		return nil, err
	}
	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return NewWithService(svc, cfg.SpreadsheetID, cfg.SheetName, logger), nil
}

// NewWithService wraps an already configured Sheets service.
func NewWithService(svc *gsheet.Service, spreadsheetID, sheetBase string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(sheetBase) == "" {
		sheetBase = "Subscriptions"
	}
	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetBase:     strings.TrimSpace(sheetBase),
		logger:        logger.With(slog.String(applog.FieldComponent, applog.ComponentSheets)),
	}
}

func credentials(cfg Config) ([]byte, error) {
	switch {
	case strings.TrimSpace(cfg.CredentialsJSON) != "":
		return []byte(cfg.CredentialsJSON), nil
	case strings.TrimSpace(cfg.CredentialsFile) != "":
		b, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	}
	return nil, errors.New("missing service account credentials (set GOOGLE_CREDENTIALS_JSON or GOOGLE_CREDENTIALS_FILE)")
}

// ExportRows replaces the contents of the tab named after title, creating
// the tab when needed, and returns the updated A1 range.
func (c *Client) ExportRows(ctx context.Context, title string, rows [][]string) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	tab := tabTitle(c.sheetBase, title)
	if err := c.ensureTab(ctx, tab); err != nil {
		return "", err
	}

	rng := quoteRange(tab)
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return "", fmt.Errorf("clear %s: %w", tab, err)
	}
	resp, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng+"!A1", &gsheet.ValueRange{Values: toValues(rows)}).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("write %s: %w", tab, err)
	}

	c.logger.InfoContext(ctx, "Exported rows to spreadsheet",
		"tab", tab, "rows", len(rows), "range", resp.UpdatedRange)
	return resp.UpdatedRange, nil
}

func (c *Client) ensureTab(ctx context.Context, tab string) error {
	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read spreadsheet: %w", err)
	}
	for _, sh := range ss.Sheets {
		if sh.Properties != nil && sh.Properties.Title == tab {
			return nil
		}
	}
	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: tab}},
		}},
	}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("add sheet %q: %w", tab, err)
	}
	return nil
}

// tabTitle joins base and title into a valid tab name.
func tabTitle(base, title string) string {
	name := strings.TrimSpace(base)
	if t := strings.TrimSpace(title); t != "" {
		name = strings.TrimSpace(name + " " + t)
	}
	name = strings.Map(func(r rune) rune {
		switch r {
		case '[', ']', '*', '?', ':', '/', '\\':
			return '-'
		}
		return r
	}, name)
	if r := []rune(name); len(r) > maxTitleLength {
		name = string(r[:maxTitleLength])
	}
	return name
}

func quoteRange(tab string) string {
	return "'" + strings.ReplaceAll(tab, "'", "''") + "'"
}

func toValues(rows [][]string) [][]interface{} {
	out := make([][]interface{}, len(rows))
	for i, row := range rows {
		vals := make([]interface{}, len(row))
		for j, cell := range row {
			vals[j] = cell
		}
		out[i] = vals
	}
	return out
}
