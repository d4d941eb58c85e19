package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/DmytroHlazyrin/Spy-cat-agency/internal/models"
)

type MissionRepository interface {
	Add(ctx context.Context, mission models.Mission) (models.Mission, error)
	GetById(ctx context.Context, id int64) (models.Mission, error)
	GetAll(ctx context.Context, skip, limit int) ([]models.Mission, error)
	Assign(ctx context.Context, missionId, catId int64) error
	Complete(ctx context.Context, id int64) error
	Update(ctx context.Context, id int64, update models.MissionUpdate) error
	Delete(ctx context.Context, id int64) error
	ReleaseCat(ctx context.Context, catId int64) (int64, error)
	WithTx(tx *sql.Tx) MissionRepository
}

type SQLMissionRepository struct {
	db Querier
}

func NewSQLMissionRepository(db *sql.DB) *SQLMissionRepository {
	return &SQLMissionRepository{
		db: db,
	}
}

func (m *SQLMissionRepository) WithTx(tx *sql.Tx) MissionRepository {
	return &SQLMissionRepository{db: tx}
}

// Add stores the mission row only, targets are saved by the target repository.
func (m *SQLMissionRepository) Add(ctx context.Context, mission models.Mission) (models.Mission, error) {
	newMissionQuery := `INSERT INTO missions (cat_id, is_complete) VALUES (?, ?)`
	result, err := m.db.ExecContext(ctx, newMissionQuery, nullableId(mission.CatId), mission.IsComplete)
	if err != nil {
		return models.Mission{}, fmt.Errorf("failed to add mission: %w", err)
	}
	mission.Id, err = result.LastInsertId()
	if err != nil {
		return models.Mission{}, fmt.Errorf("failed to get last insert id: %w", err)
	}
	return mission, nil
}

func (m *SQLMissionRepository) GetById(ctx context.Context, id int64) (models.Mission, error) {
	var (
		mission models.Mission
		catId   sql.NullInt64
	)
	getByIdQuery := `SELECT id, cat_id, is_complete FROM missions WHERE id = ?`
	err := m.db.QueryRowContext(ctx, getByIdQuery, id).
		Scan(&mission.Id, &catId, &mission.IsComplete)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Mission{}, ErrMissionNotFound
		}
		return models.Mission{}, fmt.Errorf("failed to get mission by id: %w", err)
	}
	if catId.Valid {
		mission.SetCatId(catId.Int64)
	}
	return mission, nil
}

func (m *SQLMissionRepository) GetAll(ctx context.Context, skip, limit int) ([]models.Mission, error) {
	missions := []models.Mission{}
	getAllQuery := `SELECT id, cat_id, is_complete FROM missions ORDER BY id LIMIT ? OFFSET ?`
	rows, err := m.db.QueryContext(ctx, getAllQuery, limit, skip)
	if err != nil {
		return nil, fmt.Errorf("failed to get all missions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			ms    models.Mission
			catId sql.NullInt64
		)
		if err := rows.Scan(&ms.Id, &catId, &ms.IsComplete); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		if catId.Valid {
			ms.SetCatId(catId.Int64)
		}
		missions = append(missions, ms)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}
	return missions, nil
}

// Assign does not look at affected rows: mysql reports 0 when the value did not change.
func (m *SQLMissionRepository) Assign(ctx context.Context, missionId, catId int64) error {
	assignMissionQuery := `UPDATE missions SET cat_id = ? WHERE id = ?`
	if _, err := m.db.ExecContext(ctx, assignMissionQuery, catId, missionId); err != nil {
		return fmt.Errorf("failed to assign cat: %w", err)
	}
	return nil
}

func (m *SQLMissionRepository) Complete(ctx context.Context, id int64) error {
	completeQuery := `UPDATE missions SET is_complete = ? WHERE id = ?`
	if _, err := m.db.ExecContext(ctx, completeQuery, true, id); err != nil {
		return fmt.Errorf("failed to complete mission: %w", err)
	}
	return nil
}

func (m *SQLMissionRepository) Update(ctx context.Context, id int64, update models.MissionUpdate) error {
	sets := []string{}
	args := []any{}
	if update.IsComplete != nil {
		sets = append(sets, "is_complete = ?")
		args = append(args, *update.IsComplete)
	}
	if update.CatId != nil {
		sets = append(sets, "cat_id = ?")
		args = append(args, *update.CatId)
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)
	updateQuery := `UPDATE missions SET ` + strings.Join(sets, ", ") + ` WHERE id = ?`
	if _, err := m.db.ExecContext(ctx, updateQuery, args...); err != nil {
		return fmt.Errorf("failed to update mission: %w", err)
	}
	return nil
}

func (m *SQLMissionRepository) Delete(ctx context.Context, id int64) error {
	deleteQuery := `DELETE FROM missions WHERE id = ?`
	res, err := m.db.ExecContext(ctx, deleteQuery, id)
	if err != nil {
		return fmt.Errorf("failed to delete mission: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return ErrMissionNotFound
	}
	return nil
}

// ReleaseCat unassigns the cat from all of its missions and returns how many were touched.
func (m *SQLMissionRepository) ReleaseCat(ctx context.Context, catId int64) (int64, error) {
	releaseQuery := `UPDATE missions SET cat_id = NULL WHERE cat_id = ?`
	res, err := m.db.ExecContext(ctx, releaseQuery, catId)
	if err != nil {
		return 0, fmt.Errorf("failed to release cat missions: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return rows, nil
}

func nullableId(id *int64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *id, Valid: true}
}
