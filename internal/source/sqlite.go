package source

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"utility-ledger/internal/models"
	"utility-ledger/pkg/errors"
	"utility-ledger/pkg/logger"

	_ "modernc.org/sqlite"
)

const latestSnapshotsQuery = `
SELECT id, timestamp, COALESCE(data, ''), COALESCE(status, ''), COALESCE(error_message, ''), COALESCE(screenshot_path, '')
FROM scraped_data
ORDER BY timestamp DESC, id DESC
LIMIT ?`

// SQLiteStore reads snapshots from the scraper's database. The store never
// writes; the scraper owns the schema.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger logger.Logger
}

// OpenSQLite opens the scraper database at path. The file must already exist.
func OpenSQLite(path string) (*SQLiteStore, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.SourceError(errors.CodeSourceUnavailable, path, err)
	}
	if info.IsDir() {
		return nil, errors.SourceError(errors.CodeSourceUnavailable, path, fmt.Errorf("%s is a directory", path))
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.SourceError(errors.CodeSourceUnavailable, path, err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.SourceError(errors.CodeSourceUnavailable, path, err)
	}

	return &SQLiteStore{
		db:     db,
		path:   path,
		logger: logger.GetGlobalLogger().WithComponent("sqlite_source").WithField("db_path", path),
	}, nil
}

// Close releases the database handle
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Latest returns up to limit snapshots, newest first
func (s *SQLiteStore) Latest(ctx context.Context, limit int) ([]*models.Snapshot, error) {
	if limit <= 0 {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "limit", limit, nil)
	}

	rows, err := s.db.QueryContext(ctx, latestSnapshotsQuery, limit)
	if err != nil {
		return nil, errors.SourceError(errors.CodeQueryFailed, s.path, err)
	}
	defer rows.Close()

	var snapshots []*models.Snapshot
	for rows.Next() {
		var (
			id             int64
			timestamp      string
			data           string
			status         string
			errorMessage   string
			screenshotPath string
		)
		if err := rows.Scan(&id, &timestamp, &data, &status, &errorMessage, &screenshotPath); err != nil {
			return nil, errors.SourceError(errors.CodeQueryFailed, s.path, err)
		}

		snapshot, err := models.DecodeScrapedData([]byte(data))
		if err != nil {
			return nil, errors.ParseError(errors.CodeInvalidData, s.path, 0, "data", err).
				WithContext("row_id", id)
		}
		snapshot.ID = id
		snapshot.Timestamp = timestamp
		snapshot.Status = status
		snapshot.ErrorMessage = errorMessage
		snapshot.ScreenshotPath = screenshotPath
		snapshots = append(snapshots, snapshot)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.SourceError(errors.CodeQueryFailed, s.path, err)
	}

	s.logger.WithFields(logger.Fields{
		"requested": limit,
		"found":     len(snapshots),
	}).Debug("Loaded snapshots")

	return snapshots, nil
}

// LatestOne returns the newest snapshot or a no-snapshot error
func (s *SQLiteStore) LatestOne(ctx context.Context) (*models.Snapshot, error) {
	snapshots, err := s.Latest(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(snapshots) == 0 {
		return nil, errors.SourceError(errors.CodeNoSnapshot, s.path, nil)
	}
	return snapshots[0], nil
}
