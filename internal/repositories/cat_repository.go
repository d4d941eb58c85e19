package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/DmytroHlazyrin/Spy-cat-agency/internal/models"
)

type CatRepository interface {
	GetById(ctx context.Context, id int64) (models.Cat, error)
	GetAll(ctx context.Context) ([]models.Cat, error)
	DeleteById(ctx context.Context, id int64) error
	UpdateSalary(ctx context.Context, id int64, salary float64) error
	Add(ctx context.Context, cat models.Cat) (models.Cat, error)
	Exists(ctx context.Context, id int64) (bool, error)
	WithTx(tx *sql.Tx) CatRepository
}

type SQLCatRepository struct {
	db Querier
}

func NewSQLCatRepository(db *sql.DB) *SQLCatRepository {
	return &SQLCatRepository{db: db}
}

func (m *SQLCatRepository) WithTx(tx *sql.Tx) CatRepository {
	return &SQLCatRepository{db: tx}
}

func (m *SQLCatRepository) GetById(ctx context.Context, id int64) (models.Cat, error) {
	var c models.Cat
	getByIdQuery := "SELECT id, name, breed, years_of_experience, salary FROM spy_cats WHERE id = ?"
	err := m.db.QueryRowContext(ctx, getByIdQuery, id).
		Scan(&c.Id, &c.Name, &c.Breed, &c.YearsOfExperience, &c.Salary)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Cat{}, ErrCatNotFound
		}
		return models.Cat{}, fmt.Errorf("failed to get cat by id: %w", err)
	}
	return c, nil
}

func (m *SQLCatRepository) GetAll(ctx context.Context) ([]models.Cat, error) {
	cats := []models.Cat{}
	getAllQuery := "SELECT id, name, breed, years_of_experience, salary FROM spy_cats ORDER BY id"
	rows, err := m.db.QueryContext(ctx, getAllQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to get all cats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var cat models.Cat
		if err := rows.Scan(&cat.Id, &cat.Name, &cat.Breed, &cat.YearsOfExperience, &cat.Salary); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		cats = append(cats, cat)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}
	return cats, nil
}

func (m *SQLCatRepository) DeleteById(ctx context.Context, id int64) error {
	deleteCatQuery := "DELETE FROM spy_cats WHERE id = ?"
	res, err := m.db.ExecContext(ctx, deleteCatQuery, id)
	if err != nil {
		return fmt.Errorf("failed to delete cat: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return ErrCatNotFound
	}
	return nil
}

func (m *SQLCatRepository) UpdateSalary(ctx context.Context, id int64, salary float64) error {
	exists, err := m.Exists(ctx, id)
	if err != nil {
		return err
	}
	if !exists {
		return ErrCatNotFound
	}

	updateCatQuery := "UPDATE spy_cats SET salary = ? WHERE id = ?"
	_, err = m.db.ExecContext(ctx, updateCatQuery, salary, id)
	if err != nil {
		return fmt.Errorf("failed to update cat: %w", err)
	}
	return nil
}

func (m *SQLCatRepository) Add(ctx context.Context, cat models.Cat) (models.Cat, error) {
	newCatQuery := `INSERT INTO spy_cats (name, years_of_experience, salary, breed) VALUES (?, ?, ?, ?)`
	result, err := m.db.ExecContext(ctx, newCatQuery, cat.Name, cat.YearsOfExperience, cat.Salary, cat.Breed)
	if err != nil {
		if isUniqueViolation(err) {
			return models.Cat{}, ErrDuplicateName
		}
		return models.Cat{}, fmt.Errorf("failed to add new cat: %w", err)
	}

	cat.Id, err = result.LastInsertId()
	if err != nil {
		return models.Cat{}, fmt.Errorf("failed to get last insert id: %w", err)
	}
	return cat, nil
}

func (m *SQLCatRepository) Exists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	catExistsQuery := "SELECT EXISTS (SELECT 1 FROM spy_cats WHERE id = ?)"
	err := m.db.QueryRowContext(ctx, catExistsQuery, id).Scan(&exists)

	if err != nil {
		return false, fmt.Errorf("existence check failed: %w", err)
	}
	return exists, nil
}
