package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/DmytroHlazyrin/Spy-cat-agency/internal/models"
)

type TargetRepository interface {
	Add(ctx context.Context, target models.Target) (models.Target, error)
	GetByMissionId(ctx context.Context, id int64) ([]models.Target, error)
	GetByMissionIds(ctx context.Context, ids []int64) (map[int64][]models.Target, error)
	GetById(ctx context.Context, id int64) (models.Target, error)
	CountByMissionId(ctx context.Context, id int64) (int, error)
	Update(ctx context.Context, id int64, update models.TargetUpdate) error
	DeleteByMissionId(ctx context.Context, id int64) error
	WithTx(tx *sql.Tx) TargetRepository
}

type SQLTargetRepository struct {
	db Querier
}

func NewSQLTargetRepository(db *sql.DB) *SQLTargetRepository {
	return &SQLTargetRepository{
		db: db,
	}
}

func (m *SQLTargetRepository) WithTx(tx *sql.Tx) TargetRepository {
	return &SQLTargetRepository{db: tx}
}

func (m *SQLTargetRepository) Add(ctx context.Context, target models.Target) (models.Target, error) {
	createTargetQuery := `INSERT INTO targets (mission_id, name, country, notes, is_complete) VALUES (?, ?, ?, ?, ?)`
	result, err := m.db.ExecContext(ctx, createTargetQuery,
		target.MissionId, target.Name, target.Country, nullableString(target.Notes), target.IsComplete)
	if err != nil {
		return models.Target{}, fmt.Errorf("failed to add target: %w", err)
	}
	target.Id, err = result.LastInsertId()
	if err != nil {
		return models.Target{}, fmt.Errorf("failed to get last insert id: %w", err)
	}
	return target, nil
}

const targetColumns = `id, mission_id, name, country, notes, is_complete`

func (m *SQLTargetRepository) GetByMissionId(ctx context.Context, id int64) ([]models.Target, error) {
	byMission, err := m.GetByMissionIds(ctx, []int64{id})
	if err != nil {
		return nil, err
	}
	targets := byMission[id]
	if targets == nil {
		targets = []models.Target{}
	}
	return targets, nil
}

// GetByMissionIds loads targets of several missions with one query, ordered by id.
func (m *SQLTargetRepository) GetByMissionIds(ctx context.Context, ids []int64) (map[int64][]models.Target, error) {
	result := make(map[int64][]models.Target, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")
	args := make([]any, 0, len(ids))
	for _, id := range ids {
		args = append(args, id)
	}
	getByMissionIdsQuery := `SELECT ` + targetColumns + ` FROM targets WHERE mission_id IN (` + placeholders + `) ORDER BY id`
	rows, err := m.db.QueryContext(ctx, getByMissionIdsQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get targets: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		t, err := scanTarget(rows)
		if err != nil {
			return nil, err
		}
		result[t.MissionId] = append(result[t.MissionId], t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}
	return result, nil
}

func (m *SQLTargetRepository) GetById(ctx context.Context, id int64) (models.Target, error) {
	getByIdQuery := `SELECT ` + targetColumns + ` FROM targets WHERE id = ?`
	t, err := scanTarget(m.db.QueryRowContext(ctx, getByIdQuery, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Target{}, ErrTargetNotFound
		}
		return models.Target{}, err
	}
	return t, nil
}

func (m *SQLTargetRepository) CountByMissionId(ctx context.Context, id int64) (int, error) {
	var count int
	countQuery := `SELECT COUNT(*) FROM targets WHERE mission_id = ?`
	if err := m.db.QueryRowContext(ctx, countQuery, id).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count targets: %w", err)
	}
	return count, nil
}

func (m *SQLTargetRepository) Update(ctx context.Context, id int64, update models.TargetUpdate) error {
	sets := []string{}
	args := []any{}
	if update.Notes != nil {
		sets = append(sets, "notes = ?")
		args = append(args, *update.Notes)
	}
	if update.IsComplete != nil {
		sets = append(sets, "is_complete = ?")
		args = append(args, *update.IsComplete)
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)
	updateQuery := `UPDATE targets SET ` + strings.Join(sets, ", ") + ` WHERE id = ?`
	if _, err := m.db.ExecContext(ctx, updateQuery, args...); err != nil {
		return fmt.Errorf("failed to update target: %w", err)
	}
	return nil
}

func (m *SQLTargetRepository) DeleteByMissionId(ctx context.Context, id int64) error {
	deleteQuery := `DELETE FROM targets WHERE mission_id = ?`
	if _, err := m.db.ExecContext(ctx, deleteQuery, id); err != nil {
		return fmt.Errorf("failed to delete targets: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTarget(row rowScanner) (models.Target, error) {
	var (
		t     models.Target
		notes sql.NullString
	)
	if err := row.Scan(&t.Id, &t.MissionId, &t.Name, &t.Country, &notes, &t.IsComplete); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Target{}, err
		}
		return models.Target{}, fmt.Errorf("scan failed: %w", err)
	}
	if notes.Valid {
		t.Notes = &notes.String
	}
	return t, nil
}

func nullableString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
