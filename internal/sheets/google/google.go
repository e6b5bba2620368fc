package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/nivanenko/shared-expenses-tracker/internal/core"
	"github.com/nivanenko/shared-expenses-tracker/internal/log"
	ports "github.com/nivanenko/shared-expenses-tracker/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Default sheet names. The ledger sheet is prefixed with the transaction year.
const (
	DefaultLedgerSheet   = "Ledger"
	DefaultWriteOffSheet = "Write-offs"
	DefaultGiftsSheet    = "Secret Santa"
)

var errNoService = errors.New("sheets service not initialized")

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	// Base name without year (e.g. "Ledger"); the transaction year is prefixed.
	ledgerBase    string
	writeOffSheet string
	giftsSheet    string
}

// Ensure interface conformance
var _ ports.LedgerMirror = (*Client)(nil)

// Options names the target spreadsheet and its sheets. Empty sheet names
// fall back to the defaults.
type Options struct {
	SpreadsheetID string
	LedgerSheet   string
	WriteOffSheet string
	GiftsSheet    string
}

// New creates a Sheets client authenticated with Service Account credentials
// from the environment.
func New(ctx context.Context, opts Options) (*Client, error) {
	if strings.TrimSpace(opts.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return newClient(svc, opts), nil
}

// NewFromEnv creates a Sheets client using environment variables.
// Required: GOOGLE_SPREADSHEET_ID
// Optional sheet names: GOOGLE_SHEET_NAME (default "Ledger"),
// GOOGLE_WRITEOFF_SHEET_NAME (default "Write-offs"),
// GOOGLE_GIFTS_SHEET_NAME (default "Secret Santa").
func NewFromEnv(ctx context.Context) (*Client, error) {
	return New(ctx, Options{
		SpreadsheetID: os.Getenv("GOOGLE_SPREADSHEET_ID"),
		LedgerSheet:   os.Getenv("GOOGLE_SHEET_NAME"),
		WriteOffSheet: os.Getenv("GOOGLE_WRITEOFF_SHEET_NAME"),
		GiftsSheet:    os.Getenv("GOOGLE_GIFTS_SHEET_NAME"),
	})
}

func newClient(svc *gsheet.Service, opts Options) *Client {
	return &Client{
		svc:           svc,
		spreadsheetID: strings.TrimSpace(opts.SpreadsheetID),
		ledgerBase:    orDefault(opts.LedgerSheet, DefaultLedgerSheet),
		writeOffSheet: orDefault(opts.WriteOffSheet, DefaultWriteOffSheet),
		giftsSheet:    orDefault(opts.GiftsSheet, DefaultGiftsSheet),
	}
}

func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return def
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
// Uses GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS.
func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	credentialsJSON, err := serviceAccountCredentials(ctx)
	if err != nil {
		return nil, err
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	slog.InfoContext(ctx, "Google Sheets service created successfully")
	return service, nil
}

func serviceAccountCredentials(ctx context.Context) ([]byte, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))

	// Also check the standard Google Cloud environment variable
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case serviceAccountJSON != "":
		slog.DebugContext(ctx, "Using inline JSON credentials")
		return []byte(serviceAccountJSON), nil
	case serviceAccountFile != "":
		slog.DebugContext(ctx, "Reading credentials from file", "path", serviceAccountFile)
		data, err := os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return data, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

// AppendTransaction implements ports.LedgerMirror. Transactions land on the
// ledger sheet of their own year.
func (c *Client) AppendTransaction(ctx context.Context, t core.Transaction) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return c.appendRows(ctx, c.ledgerSheet(t.Date.Year()), [][]any{ports.TransactionRow(t)})
}

// AppendWriteOff implements ports.LedgerMirror
func (c *Client) AppendWriteOff(ctx context.Context, through core.Date, deleted int64) error {
	if err := through.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return c.appendRows(ctx, c.writeOffSheet, [][]any{ports.WriteOffRow(through, deleted)})
}

// AppendGifts implements ports.LedgerMirror
func (c *Client) AppendGifts(ctx context.Context, group string, gifts []core.Gift) error {
	if len(gifts) == 0 {
		return nil
	}
	return c.appendRows(ctx, c.giftsSheet, ports.GiftRows(group, gifts))
}

func (c *Client) appendRows(ctx context.Context, sheet string, rows [][]any) error {
	if c.svc == nil {
		return errNoService
	}
	rng := fmt.Sprintf("%s!A:E", sheet)
	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, &gsheet.ValueRange{Values: rows}).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append to sheet %s: %w", sheet, err)
	}

	updated := ""
	if resp.Updates != nil {
		updated = resp.Updates.UpdatedRange
	}
	slog.InfoContext(ctx, "Rows appended to sheet",
		log.FieldSheet, sheet,
		"rows", len(rows),
		"range", updated)
	return nil
}

func (c *Client) ledgerSheet(year int) string {
	return yearPrefixedName(c.ledgerBase, year)
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}
