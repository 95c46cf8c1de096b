package catalog

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"skillshub/internal/faults"
)

// ValidatePort checks an SSH port is inside the valid range.
func ValidatePort(port int) error {
	if port < 1 || port > 65535 {
		return faults.New(faults.Validation, "port must be between 1 and 65535, got %d", port)
	}
	return nil
}

// CreateHost inserts a new remote host row.
func (s *Store) CreateHost(ctx context.Context, h *RemoteHost) error {
	if err := ValidatePort(h.Port); err != nil {
		return err
	}
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	if h.Status == "" {
		h.Status = HostIdle
	}
	ts := now()
	h.CreatedAt, h.UpdatedAt = ts, ts

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO remote_hosts (id, label, host, port, username, auth_method, key_path, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		h.ID, h.Label, h.Host, h.Port, h.Username, h.AuthMethod, h.KeyPath, h.Status, h.CreatedAt, h.UpdatedAt,
	)
	return err
}

const hostCols = `id, label, host, port, username, auth_method, key_path, status, created_at, updated_at, last_sync_at`

func scanHost(row interface{ Scan(...any) error }) (*RemoteHost, error) {
	var h RemoteHost
	var lastSync sql.NullString
	err := row.Scan(&h.ID, &h.Label, &h.Host, &h.Port, &h.Username, &h.AuthMethod,
		&h.KeyPath, &h.Status, &h.CreatedAt, &h.UpdatedAt, &lastSync)
	if err != nil {
		return nil, err
	}
	h.LastSyncAt = lastSync.String
	return &h, nil
}

// GetHost returns the remote host with the given id.
func (s *Store) GetHost(ctx context.Context, id string) (*RemoteHost, error) {
	h, err := scanHost(s.db.QueryRowContext(ctx,
		`SELECT `+hostCols+` FROM remote_hosts WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, faults.New(faults.NotAvailable, "remote host not found: %s", id)
	}
	return h, err
}

// ListHosts returns every remote host ordered by label.
func (s *Store) ListHosts(ctx context.Context) ([]RemoteHost, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+hostCols+` FROM remote_hosts ORDER BY label`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RemoteHost
	for rows.Next() {
		h, err := scanHost(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *h)
	}
	return out, rows.Err()
}

// UpdateHost rewrites the editable columns of a host row.
func (s *Store) UpdateHost(ctx context.Context, h *RemoteHost) error {
	if err := ValidatePort(h.Port); err != nil {
		return err
	}
	h.UpdatedAt = now()
	res, err := s.db.ExecContext(ctx,
		`UPDATE remote_hosts SET label = ?, host = ?, port = ?, username = ?, auth_method = ?, key_path = ?, updated_at = ? WHERE id = ?`,
		h.Label, h.Host, h.Port, h.Username, h.AuthMethod, h.KeyPath, h.UpdatedAt, h.ID,
	)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return faults.New(faults.NotAvailable, "remote host not found: %s", h.ID)
	}
	return nil
}

// SetHostStatus updates a host's connectivity status, stamping the last
// sync time when the status is a sync outcome.
func (s *Store) SetHostStatus(ctx context.Context, id, status string) error {
	if status == HostOK || status == HostError {
		_, err := s.db.ExecContext(ctx,
			`UPDATE remote_hosts SET status = ?, last_sync_at = ? WHERE id = ?`, status, now(), id)
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE remote_hosts SET status = ? WHERE id = ?`, status, id)
	return err
}

// DeleteHost removes a host row; custom targets on the host cascade.
func (s *Store) DeleteHost(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM remote_hosts WHERE id = ?`, id)
	return err
}

// CreateCustomTarget inserts a new custom target row. RemoteHostID may
// be empty for a local directory.
func (s *Store) CreateCustomTarget(ctx context.Context, t *CustomTarget) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	t.CreatedAt = now()

	var hostID any
	if t.RemoteHostID != "" {
		hostID = t.RemoteHostID
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO custom_targets (id, label, path, remote_host_id, created_at) VALUES (?, ?, ?, ?, ?)`,
		t.ID, t.Label, t.Path, hostID, t.CreatedAt,
	)
	return err
}

func scanCustomTarget(row interface{ Scan(...any) error }) (*CustomTarget, error) {
	var t CustomTarget
	var hostID sql.NullString
	err := row.Scan(&t.ID, &t.Label, &t.Path, &hostID, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	t.RemoteHostID = hostID.String
	return &t, nil
}

// GetCustomTarget returns the custom target with the given id.
func (s *Store) GetCustomTarget(ctx context.Context, id string) (*CustomTarget, error) {
	t, err := scanCustomTarget(s.db.QueryRowContext(ctx,
		`SELECT id, label, path, remote_host_id, created_at FROM custom_targets WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, faults.New(faults.NotAvailable, "custom target not found: %s", id)
	}
	return t, err
}

// ListCustomTargets returns every custom target ordered by label.
func (s *Store) ListCustomTargets(ctx context.Context) ([]CustomTarget, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, label, path, remote_host_id, created_at FROM custom_targets ORDER BY label`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CustomTarget
	for rows.Next() {
		t, err := scanCustomTarget(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// DeleteCustomTarget removes a custom target row.
func (s *Store) DeleteCustomTarget(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM custom_targets WHERE id = ?`, id)
	return err
}
