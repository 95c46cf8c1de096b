package catalog

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"skillshub/internal/faults"
)

// CreateSkill inserts a new skill row, assigning an id and timestamps
// when unset.
func (s *Store) CreateSkill(ctx context.Context, sk *Skill) error {
	if sk.ID == "" {
		sk.ID = uuid.NewString()
	}
	if sk.Status == "" {
		sk.Status = "active"
	}
	ts := now()
	sk.CreatedAt, sk.UpdatedAt = ts, ts

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO skills (id, name, description, source_type, source_ref, central_path, content_hash, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sk.ID, sk.Name, sk.Description, sk.SourceType, sk.SourceRef, sk.CentralPath, sk.ContentHash, sk.Status, sk.CreatedAt, sk.UpdatedAt,
	)
	return err
}

const skillCols = `id, name, description, source_type, source_ref, central_path, content_hash, status, created_at, updated_at, last_sync_at`

func scanSkill(row interface{ Scan(...any) error }) (*Skill, error) {
	var sk Skill
	var lastSync sql.NullString
	err := row.Scan(&sk.ID, &sk.Name, &sk.Description, &sk.SourceType, &sk.SourceRef,
		&sk.CentralPath, &sk.ContentHash, &sk.Status, &sk.CreatedAt, &sk.UpdatedAt, &lastSync)
	if err != nil {
		return nil, err
	}
	sk.LastSyncAt = lastSync.String
	return &sk, nil
}

// GetSkill returns the skill with the given id.
func (s *Store) GetSkill(ctx context.Context, id string) (*Skill, error) {
	sk, err := scanSkill(s.db.QueryRowContext(ctx,
		`SELECT `+skillCols+` FROM skills WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, faults.New(faults.NotAvailable, "skill not found: %s", id)
	}
	return sk, err
}

// GetSkillByName returns the skill with the given name, or nil when
// absent.
func (s *Store) GetSkillByName(ctx context.Context, name string) (*Skill, error) {
	sk, err := scanSkill(s.db.QueryRowContext(ctx,
		`SELECT `+skillCols+` FROM skills WHERE name = ?`, name))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return sk, err
}

// ListSkills returns every skill ordered by name.
func (s *Store) ListSkills(ctx context.Context) ([]Skill, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+skillCols+` FROM skills ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Skill
	for rows.Next() {
		sk, err := scanSkill(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sk)
	}
	return out, rows.Err()
}

// UpdateSkill rewrites the mutable columns of a skill row.
func (s *Store) UpdateSkill(ctx context.Context, sk *Skill) error {
	sk.UpdatedAt = now()
	res, err := s.db.ExecContext(ctx,
		`UPDATE skills SET name = ?, description = ?, source_type = ?, source_ref = ?, central_path = ?, content_hash = ?, status = ?, updated_at = ? WHERE id = ?`,
		sk.Name, sk.Description, sk.SourceType, sk.SourceRef, sk.CentralPath, sk.ContentHash, sk.Status, sk.UpdatedAt, sk.ID,
	)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return faults.New(faults.NotAvailable, "skill not found: %s", sk.ID)
	}
	return nil
}

// TouchSkillSync stamps a skill's last sync time.
func (s *Store) TouchSkillSync(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE skills SET last_sync_at = ? WHERE id = ?`, now(), id)
	return err
}

// DeleteSkill removes a skill row; its target rows go with it via the
// foreign key cascade.
func (s *Store) DeleteSkill(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM skills WHERE id = ?`, id)
	return err
}

// UpsertTarget records one mirror of one skill, replacing any previous
// row for the same (skill, target) pair.
func (s *Store) UpsertTarget(ctx context.Context, t *SkillTarget) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Status == "" {
		t.Status = TargetSynced
	}
	t.SyncedAt = now()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO skill_targets (id, skill_id, target_key, mode, dest_path, link_target, content_hash, status, last_error, synced_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(skill_id, target_key) DO UPDATE SET
			mode = excluded.mode,
			dest_path = excluded.dest_path,
			link_target = excluded.link_target,
			content_hash = excluded.content_hash,
			status = excluded.status,
			last_error = excluded.last_error,
			synced_at = excluded.synced_at`,
		t.ID, t.SkillID, t.TargetKey, t.Mode, t.DestPath, t.LinkTarget, t.ContentHash, t.Status, t.LastError, t.SyncedAt,
	)
	return err
}

const targetCols = `id, skill_id, target_key, mode, dest_path, link_target, content_hash, status, last_error, synced_at`

func scanTarget(row interface{ Scan(...any) error }) (*SkillTarget, error) {
	var t SkillTarget
	var syncedAt sql.NullString
	err := row.Scan(&t.ID, &t.SkillID, &t.TargetKey, &t.Mode, &t.DestPath, &t.LinkTarget, &t.ContentHash, &t.Status, &t.LastError, &syncedAt)
	if err != nil {
		return nil, err
	}
	t.SyncedAt = syncedAt.String
	return &t, nil
}

// GetTarget returns the target row for a (skill, target key) pair, or
// nil when the pair is not mirrored.
func (s *Store) GetTarget(ctx context.Context, skillID, targetKey string) (*SkillTarget, error) {
	t, err := scanTarget(s.db.QueryRowContext(ctx,
		`SELECT `+targetCols+` FROM skill_targets WHERE skill_id = ? AND target_key = ?`,
		skillID, targetKey))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return t, err
}

// ListTargets returns every target row for a skill.
func (s *Store) ListTargets(ctx context.Context, skillID string) ([]SkillTarget, error) {
	return s.queryTargets(ctx,
		`SELECT `+targetCols+` FROM skill_targets WHERE skill_id = ? ORDER BY target_key`, skillID)
}

// ListTargetsByKey returns every target row recorded against one target
// identifier, across all skills.
func (s *Store) ListTargetsByKey(ctx context.Context, targetKey string) ([]SkillTarget, error) {
	return s.queryTargets(ctx,
		`SELECT `+targetCols+` FROM skill_targets WHERE target_key = ? ORDER BY skill_id`, targetKey)
}

func (s *Store) queryTargets(ctx context.Context, query string, args ...any) ([]SkillTarget, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SkillTarget
	for rows.Next() {
		t, err := scanTarget(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// SetTargetError marks a target row failed with the given message.
func (s *Store) SetTargetError(ctx context.Context, skillID, targetKey, msg string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE skill_targets SET status = ?, last_error = ? WHERE skill_id = ? AND target_key = ?`,
		TargetError, msg, skillID, targetKey)
	return err
}

// DeleteTarget removes the target row for a (skill, target key) pair.
func (s *Store) DeleteTarget(ctx context.Context, skillID, targetKey string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM skill_targets WHERE skill_id = ? AND target_key = ?`, skillID, targetKey)
	return err
}
