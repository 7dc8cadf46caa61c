package sqlite

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/mkarpin/blobfetch/internal/domain"
)

// Save upserts the session checkpoint for its object.
func (s *Store) Save(sess domain.DownloadSession) error {
	query := `
		INSERT INTO download_sessions (
			id, container, object_name, local_path,
			total_bytes, downloaded_bytes, expected_checksum, retry_count, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(container, object_name) DO UPDATE SET
			local_path = excluded.local_path,
			total_bytes = excluded.total_bytes,
			downloaded_bytes = excluded.downloaded_bytes,
			expected_checksum = excluded.expected_checksum,
			retry_count = excluded.retry_count,
			updated_at = excluded.updated_at
	`

	_, err := s.db.Exec(query,
		uuid.NewString(), sess.ContainerName, sess.ObjectName, sess.LocalFilePath,
		sess.TotalBytes, sess.DownloadedBytes, sess.ExpectedChecksum,
		sess.RetryCount, sess.LastUpdatedAt.UTC().Format(time.RFC3339Nano))
	return err
}

// Get returns the persisted session for an object.
func (s *Store) Get(containerName, objectName string) (domain.DownloadSession, error) {
	query := `
		SELECT container, object_name, local_path,
			   total_bytes, downloaded_bytes, expected_checksum, retry_count, updated_at
		FROM download_sessions
		WHERE container = ? AND object_name = ?
	`

	return scanSession(s.db.QueryRow(query, containerName, objectName))
}

// Delete removes the session for an object.
func (s *Store) Delete(containerName, objectName string) error {
	_, err := s.db.Exec(
		`DELETE FROM download_sessions WHERE container = ? AND object_name = ?`,
		containerName, objectName)
	return err
}

// ListPending returns all persisted sessions, oldest first.
func (s *Store) ListPending() ([]domain.DownloadSession, error) {
	query := `
		SELECT container, object_name, local_path,
			   total_bytes, downloaded_bytes, expected_checksum, retry_count, updated_at
		FROM download_sessions
		ORDER BY updated_at ASC
	`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []domain.DownloadSession
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (domain.DownloadSession, error) {
	var sess domain.DownloadSession
	var updatedAt string

	err := row.Scan(
		&sess.ContainerName, &sess.ObjectName, &sess.LocalFilePath,
		&sess.TotalBytes, &sess.DownloadedBytes, &sess.ExpectedChecksum,
		&sess.RetryCount, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return domain.DownloadSession{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.DownloadSession{}, err
	}

	if ts, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
		sess.LastUpdatedAt = ts
	}
	return sess, nil
}
