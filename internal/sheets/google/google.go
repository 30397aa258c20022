package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"fintrack/internal/core"
	"fintrack/internal/log"
	ports "fintrack/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

const DefaultSheetName = "Transactions"

// Config selects the spreadsheet and the service account used to write it.
type Config struct {
	SpreadsheetID string
	SheetName     string
	// CredentialsJSON takes precedence over CredentialsFile.
	CredentialsJSON string
	CredentialsFile string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheet         string
	logger        *log.Logger

	// Numeric sheet id, resolved on first delete.
	mu       sync.Mutex
	sheetID  int64
	resolved bool
}

// Ensure interface conformance
var _ ports.Mirror = (*Client)(nil)

// New creates a Sheets client authenticated with a service account.
func New(ctx context.Context, cfg Config, logger *log.Logger) (*Client, error) {
	creds, err := credentials(cfg)
	if err != nil {
		return nil, err
	}
	return newClient(ctx, cfg, logger,
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsScope))
}

func newClient(ctx context.Context, cfg Config, logger *log.Logger, opts ...goption.ClientOption) (*Client, error) {
	id := strings.TrimSpace(cfg.SpreadsheetID)
	if id == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	sheet := strings.TrimSpace(cfg.SheetName)
	if sheet == "" {
		sheet = DefaultSheetName
	}
	if logger == nil {
		logger = log.FromContext(ctx)
	}

	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	logger = logger.WithComponent(log.ComponentSheets)
	logger.InfoContext(ctx, "Google Sheets service created", "sheet", sheet)
	return &Client{svc: svc, spreadsheetID: id, sheet: sheet, logger: logger}, nil
}

func credentials(cfg Config) ([]byte, error) {
	if js := strings.TrimSpace(cfg.CredentialsJSON); js != "" {
		return []byte(js), nil
	}
	path := strings.TrimSpace(cfg.CredentialsFile)
	if path == "" {
		path = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	if path == "" {
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read service account file: %w", err)
	}
	return b, nil
}

func (c *Client) AppendTransaction(ctx context.Context, t core.Transaction) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	if t.ID == "" {
		return errors.New("transaction id is required")
	}
	rows, err := c.findRows(ctx, colID, t.ID)
	if err != nil {
		return err
	}
	// Redelivered create: the row is already there.
	if len(rows) > 0 {
		return c.writeRow(ctx, rows[len(rows)-1], t)
	}
	return c.appendRow(ctx, t)
}

func (c *Client) UpdateTransaction(ctx context.Context, t core.Transaction) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	rows, err := c.findRows(ctx, colID, t.ID)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return c.appendRow(ctx, t)
	}
	return c.writeRow(ctx, rows[len(rows)-1], t)
}

func (c *Client) DeleteTransaction(ctx context.Context, id string) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	rows, err := c.findRows(ctx, colID, id)
	if err != nil {
		return err
	}
	return c.deleteRows(ctx, rows)
}

func (c *Client) DeleteUser(ctx context.Context, userID string) (int, error) {
	if c.svc == nil {
		return 0, errors.New("sheets service not initialized")
	}
	rows, err := c.findRows(ctx, colUser, userID)
	if err != nil {
		return 0, err
	}
	if err := c.deleteRows(ctx, rows); err != nil {
		return 0, err
	}
	return len(rows), nil
}

// findRows scans columns A:B and returns matching row indexes, highest first.
func (c *Client) findRows(ctx context.Context, col int, value string) ([]int64, error) {
	rng := a1(c.sheet, "A:B")
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return matchingRows(resp.Values, col, value), nil
}

func (c *Client) appendRow(ctx context.Context, t core.Transaction) error {
	rng := a1(c.sheet, "A:H")
	vr := &gsheet.ValueRange{Values: [][]any{rowFor(t)}}
	_, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append to sheet %s: %w", c.sheet, err)
	}
	return nil
}

func (c *Client) writeRow(ctx context.Context, index int64, t core.Transaction) error {
	row := index + 1
	rng := a1(c.sheet, fmt.Sprintf("A%d:H%d", row, row))
	vr := &gsheet.ValueRange{Values: [][]any{rowFor(t)}}
	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update %s: %w", rng, err)
	}
	return nil
}

// deleteRows removes rows given highest index first, in one batch.
func (c *Client) deleteRows(ctx context.Context, rows []int64) error {
	if len(rows) == 0 {
		return nil
	}
	sheetID, err := c.resolveSheetID(ctx)
	if err != nil {
		return err
	}

	reqs := make([]*gsheet.Request, 0, len(rows))
	for _, idx := range rows {
		reqs = append(reqs, &gsheet.Request{
			DeleteDimension: &gsheet.DeleteDimensionRequest{
				Range: &gsheet.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "ROWS",
					StartIndex: idx,
					EndIndex:   idx + 1,
					// Zero is a valid sheet id and row index.
					ForceSendFields: []string{"SheetId", "StartIndex"},
				},
			},
		})
	}

	_, err = c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, &gsheet.BatchUpdateSpreadsheetRequest{Requests: reqs}).
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("delete %d rows from sheet %s: %w", len(rows), c.sheet, err)
	}
	c.logger.DebugContext(ctx, "Deleted sheet rows", log.FieldCount, len(rows))
	return nil
}

func (c *Client) resolveSheetID(ctx context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.resolved {
		return c.sheetID, nil
	}
	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("read spreadsheet metadata: %w", err)
	}
	for _, sh := range ss.Sheets {
		if sh.Properties != nil && sh.Properties.Title == c.sheet {
			c.sheetID = sh.Properties.SheetId
			c.resolved = true
			return c.sheetID, nil
		}
	}
	return 0, fmt.Errorf("sheet %q not found", c.sheet)
}
