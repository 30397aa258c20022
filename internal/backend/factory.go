package backend

import (
	"context"
	"fmt"

	"fintrack/internal/log"
	gsheet "fintrack/internal/sheets/google"
	sheetsmem "fintrack/internal/sheets/memory"
	"fintrack/internal/storage"
	"fintrack/internal/storage/memory"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.FromContext(context.Background())
	}
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentBackend),
	}
}

// CreateBackend opens the configured store. The caller owns the result and
// must run Cleanup on shutdown.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		return f.createSQLBackend(ctx, storage.DialectSQLite, config.SQLiteDBPath)
	case PostgresBackend:
		return f.createSQLBackend(ctx, storage.DialectPostgres, config.DatabaseURL)
	case MemoryBackend:
		return f.createMemoryBackend()
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSQLBackend(ctx context.Context, dialect storage.Dialect, dsn string) (*BackendResult, error) {
	repo, err := storage.Open(ctx, dialect, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s repository: %w", dialect, err)
	}

	f.logger.InfoContext(ctx, "Initialized SQL backend", log.FieldBackend, string(dialect))

	return &BackendResult{
		Store:   repo,
		Cleanup: repo.Close,
	}, nil
}

func (f *DefaultFactory) createMemoryBackend() (*BackendResult, error) {
	f.logger.Warn("Initialized memory backend, data is lost on restart", log.FieldBackend, string(MemoryBackend))

	store := memory.New()
	return &BackendResult{
		Store:   store,
		Cleanup: store.Close,
	}, nil
}

// CreateMirror returns the Google Sheets mirror, or an in-memory one when no
// spreadsheet is configured.
func (f *DefaultFactory) CreateMirror(ctx context.Context, config MirrorConfig) (*MirrorResult, error) {
	if config.SpreadsheetID == "" {
		f.logger.WarnContext(ctx, "GOOGLE_SPREADSHEET_ID not set, mirroring events in memory only")
		return &MirrorResult{Mirror: sheetsmem.New()}, nil
	}

	cli, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:   config.SpreadsheetID,
		SheetName:       config.SheetName,
		CredentialsJSON: config.ServiceAccountJSON,
		CredentialsFile: config.ServiceAccountFile,
	}, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}

	f.logger.InfoContext(ctx, "Initialized Google Sheets mirror", "sheet", config.SheetName)
	return &MirrorResult{Mirror: cli, Remote: true}, nil
}
