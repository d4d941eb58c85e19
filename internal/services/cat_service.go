package services

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/DmytroHlazyrin/Spy-cat-agency/internal/models"
	"github.com/DmytroHlazyrin/Spy-cat-agency/internal/myerrors"
	"github.com/DmytroHlazyrin/Spy-cat-agency/internal/repositories"
	"github.com/DmytroHlazyrin/Spy-cat-agency/pkg/catapi"
)

type CatService interface {
	Add(ctx context.Context, cat models.Cat) (models.Cat, error)
	GetById(ctx context.Context, id int64) (models.Cat, error)
	Update(ctx context.Context, id int64, update models.CatUpdate) (models.Cat, error)
	DeleteById(ctx context.Context, id int64) error
	GetAll(ctx context.Context) ([]models.Cat, error)
}

type DefaultCatService struct {
	catRepo     repositories.CatRepository
	missionRepo repositories.MissionRepository
	tx          repositories.Transactor
	breeds      catapi.BreedValidator
	logger      *slog.Logger
}

func NewDefaultCatService(
	catRepo repositories.CatRepository,
	missionRepo repositories.MissionRepository,
	tx repositories.Transactor,
	breeds catapi.BreedValidator,
	logger *slog.Logger,
) *DefaultCatService {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultCatService{
		catRepo:     catRepo,
		missionRepo: missionRepo,
		tx:          tx,
		breeds:      breeds,
		logger:      logger.With("component", "cat_service"),
	}
}

func (d *DefaultCatService) Add(ctx context.Context, cat models.Cat) (models.Cat, error) {
	if cat.YearsOfExperience < 0 || cat.Salary < 0 {
		return models.Cat{}, myerrors.Validation("Years of experience and salary must not be negative.")
	}
	valid, err := d.breeds.IsValid(ctx, cat.Breed)
	if err != nil {
		if errors.Is(err, catapi.ErrUnavailable) {
			return models.Cat{}, myerrors.Unavailable(err, "Could not connect to TheCatAPI.")
		}
		return models.Cat{}, err
	}
	if !valid {
		return models.Cat{}, myerrors.Validation("Breed '%s' not found.", cat.Breed)
	}

	newCat, err := d.catRepo.Add(ctx, cat)
	if err != nil {
		return models.Cat{}, translate(err)
	}
	return newCat, nil
}

func (d *DefaultCatService) GetById(ctx context.Context, id int64) (models.Cat, error) {
	cat, err := d.catRepo.GetById(ctx, id)
	if err != nil {
		return models.Cat{}, translate(err)
	}
	return cat, nil
}

func (d *DefaultCatService) Update(ctx context.Context, id int64, update models.CatUpdate) (models.Cat, error) {
	if update.Salary != nil {
		if *update.Salary < 0 {
			return models.Cat{}, myerrors.Validation("Salary must not be negative.")
		}
		if err := d.catRepo.UpdateSalary(ctx, id, *update.Salary); err != nil {
			return models.Cat{}, translate(err)
		}
	}
	updatedCat, err := d.catRepo.GetById(ctx, id)
	if err != nil {
		return models.Cat{}, translate(err)
	}
	return updatedCat, nil
}

// DeleteById removes the cat unconditionally. Missions it was assigned to
// become unassigned in the same transaction.
func (d *DefaultCatService) DeleteById(ctx context.Context, id int64) error {
	var released int64
	err := d.tx.WithTransaction(ctx, func(tx *sql.Tx) error {
		cats := d.catRepo.WithTx(tx)
		exists, err := cats.Exists(ctx, id)
		if err != nil {
			return err
		}
		if !exists {
			return repositories.ErrCatNotFound
		}
		released, err = d.missionRepo.WithTx(tx).ReleaseCat(ctx, id)
		if err != nil {
			return err
		}
		return cats.DeleteById(ctx, id)
	})
	if err != nil {
		return translate(err)
	}
	if released > 0 {
		d.logger.Info("deleted cat released its missions", "cat_id", id, "missions", released)
	}
	return nil
}

func (d *DefaultCatService) GetAll(ctx context.Context) ([]models.Cat, error) {
	cats, err := d.catRepo.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	return cats, nil
}
