// Package google implements the partition store on Google Sheets, with
// partition containers located by name inside a Drive folder.
package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"finanzas/internal/cache"
	"finanzas/internal/core"
	ports "finanzas/internal/sheets"

	gdrive "google.golang.org/api/drive/v3"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Worksheet names inside every monthly spreadsheet.
const (
	tabExpenses   = "Gastos"
	tabIncomes    = "Ingresos"
	tabCategories = "Categorias"
	tabConfig     = "Configuracion"
	tabBudgets    = "Presupuestos"
	tabSavings    = "Ahorros"
	tabDebts      = "Deudores"
	tabRecurring  = "Recurrentes"
)

// Configuration keys stored in the Configuracion tab.
const (
	keyRate         = "TASA_USD"
	keyRateSource   = "TASA_SOURCE"
	keyConfirmation = "CONFIRMACION_REQUERIDA"
	keyRateBCV      = "RATE_BCV"
	keyRateParallel = "RATE_PARALELO"
)

var defaultCategories = []string{"Supermercado", "Comida", "Transporte", "Hogar", "Otros"}

type Client struct {
	sheetsSvc *gsheet.Service
	driveSvc  *gdrive.Service
	folderID  string

	// ids memoizes spreadsheet name to file ID, saving a Drive search on
	// every partition access. Spreadsheets are never renamed in place.
	ids *cache.LRU[string]
}

var _ ports.Store = (*Client)(nil)

// NewFromEnv creates a client using service account credentials.
// Required: GOOGLE_DRIVE_FOLDER_ID plus one of GOOGLE_SERVICE_ACCOUNT_JSON,
// GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_APPLICATION_CREDENTIALS.
func NewFromEnv(ctx context.Context) (*Client, error) {
	folderID := strings.TrimSpace(os.Getenv("GOOGLE_DRIVE_FOLDER_ID"))
	if folderID == "" {
		return nil, errors.New("missing GOOGLE_DRIVE_FOLDER_ID")
	}
	creds, err := credentialsFromEnv()
	if err != nil {
		return nil, err
	}
	return New(ctx, creds, folderID)
}

func New(ctx context.Context, credentialsJSON []byte, folderID string) (*Client, error) {
	sheetsSvc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	driveSvc, err := gdrive.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gdrive.DriveScope))
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}
	return &Client{
		sheetsSvc: sheetsSvc,
		driveSvc:  driveSvc,
		folderID:  folderID,
		ids:       cache.NewLRU[string](24, time.Hour),
	}, nil
}

func credentialsFromEnv() ([]byte, error) {
	if inline := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON")); inline != "" {
		return []byte(inline), nil
	}
	file := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	if file == "" {
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
	creds, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read service account file: %w", err)
	}
	return creds, nil
}

// SpreadsheetName is the naming convention partition containers must follow.
func SpreadsheetName(key core.MonthKey) string {
	return fmt.Sprintf("Gastos_%04d_%02d", key.Year, key.Month)
}

// Partition locates the month's spreadsheet in the Drive folder. Files are
// provisioned by hand; a missing file is core.ErrPartitionNotFound. A copy of
// the name with a leading space is tolerated, a quirk inherited from manually
// created files.
func (c *Client) Partition(ctx context.Context, key core.MonthKey) (ports.Partition, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	name := SpreadsheetName(key)
	if id, ok := c.ids.Get(name); ok {
		return &Partition{client: c, spreadsheetID: id, key: key}, nil
	}
	id, err := c.findSpreadsheet(ctx, name)
	if err != nil {
		return nil, err
	}
	if id == "" {
		id, err = c.findSpreadsheet(ctx, " "+name)
		if err != nil {
			return nil, err
		}
	}
	if id == "" {
		return nil, fmt.Errorf("%s: %w", name, core.ErrPartitionNotFound)
	}
	c.ids.Set(name, id)
	return &Partition{client: c, spreadsheetID: id, key: key}, nil
}

func (c *Client) findSpreadsheet(ctx context.Context, name string) (string, error) {
	query := fmt.Sprintf("name = '%s' and '%s' in parents and mimeType = 'application/vnd.google-apps.spreadsheet' and trashed = false",
		strings.ReplaceAll(name, "'", "\\'"), c.folderID)
	list, err := c.driveSvc.Files.List().
		Q(query).
		Fields("files(id, name)").
		PageSize(5).
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("search %q in folder: %w", name, err)
	}
	if len(list.Files) == 0 {
		return "", nil
	}
	return list.Files[0].Id, nil
}
