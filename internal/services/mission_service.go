package services

import (
	"context"
	"database/sql"

	"github.com/DmytroHlazyrin/Spy-cat-agency/internal/models"
	"github.com/DmytroHlazyrin/Spy-cat-agency/internal/myerrors"
	"github.com/DmytroHlazyrin/Spy-cat-agency/internal/repositories"
)

type MissionService interface {
	Add(ctx context.Context, mission models.NewMission) (models.Mission, error)
	GetById(ctx context.Context, id int64) (models.Mission, error)
	GetAll(ctx context.Context, query models.PaginationQuery) ([]models.Mission, error)
	Assign(ctx context.Context, missionId, catId int64) (models.Mission, error)
	Complete(ctx context.Context, missionId int64) (models.Mission, error)
	Update(ctx context.Context, missionId int64, update models.MissionUpdate) (models.Mission, error)
	Delete(ctx context.Context, missionId int64) error
	AddTarget(ctx context.Context, missionId int64, target models.NewTarget) (models.Target, error)
	UpdateTarget(ctx context.Context, targetId int64, update models.TargetUpdate) (models.Target, error)
}

type ActionObserver interface {
	ObserveMissionAction(action string)
}

type DefaultMissionService struct {
	missionRepository repositories.MissionRepository
	targetRepository  repositories.TargetRepository
	catRepository     repositories.CatRepository
	tx                repositories.Transactor
	observer          ActionObserver
}

func NewDefaultMissionService(
	missionRepo repositories.MissionRepository,
	targetRepository repositories.TargetRepository,
	catRepository repositories.CatRepository,
	tx repositories.Transactor,
	observer ActionObserver,
) *DefaultMissionService {
	return &DefaultMissionService{
		missionRepository: missionRepo,
		targetRepository:  targetRepository,
		catRepository:     catRepository,
		tx:                tx,
		observer:          observer,
	}
}

// repos binds all repositories to one transaction.
type repos struct {
	missions repositories.MissionRepository
	targets  repositories.TargetRepository
	cats     repositories.CatRepository
}

func (d *DefaultMissionService) inTx(ctx context.Context, fn func(r repos) error) error {
	err := d.tx.WithTransaction(ctx, func(tx *sql.Tx) error {
		return fn(repos{
			missions: d.missionRepository.WithTx(tx),
			targets:  d.targetRepository.WithTx(tx),
			cats:     d.catRepository.WithTx(tx),
		})
	})
	return translate(err)
}

func (d *DefaultMissionService) observe(action string) {
	if d.observer != nil {
		d.observer.ObserveMissionAction(action)
	}
}

// Add saves the mission together with all of its targets or nothing at all.
func (d *DefaultMissionService) Add(ctx context.Context, mission models.NewMission) (models.Mission, error) {
	if n := len(mission.Targets); n < models.MinTargetsPerMission || n > models.MaxTargetsPerMission {
		return models.Mission{}, myerrors.Validation("A mission must have between %d and %d targets.",
			models.MinTargetsPerMission, models.MaxTargetsPerMission)
	}

	var saved models.Mission
	err := d.inTx(ctx, func(r repos) error {
		if mission.CatId != nil {
			if err := requireCat(ctx, r.cats, *mission.CatId); err != nil {
				return err
			}
		}
		sm, err := r.missions.Add(ctx, models.Mission{CatId: mission.CatId, IsComplete: mission.IsComplete})
		if err != nil {
			return err
		}
		sm.Targets = make([]models.Target, 0, len(mission.Targets))
		for _, t := range mission.Targets {
			nt, err := r.targets.Add(ctx, t.ToTarget(sm.Id))
			if err != nil {
				return err
			}
			sm.Targets = append(sm.Targets, nt)
		}
		saved = sm
		return nil
	})
	if err != nil {
		return models.Mission{}, err
	}
	d.observe("create")
	return saved, nil
}

func (d *DefaultMissionService) GetById(ctx context.Context, id int64) (models.Mission, error) {
	mission, err := d.missionRepository.GetById(ctx, id)
	if err != nil {
		return models.Mission{}, translate(err)
	}
	mission.Targets, err = d.targetRepository.GetByMissionId(ctx, id)
	if err != nil {
		return models.Mission{}, err
	}
	return mission, nil
}

func (d *DefaultMissionService) GetAll(ctx context.Context, query models.PaginationQuery) ([]models.Mission, error) {
	query = query.Normalize()
	missions, err := d.missionRepository.GetAll(ctx, query.Skip, query.Limit)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(missions))
	for _, m := range missions {
		ids = append(ids, m.Id)
	}
	targets, err := d.targetRepository.GetByMissionIds(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range missions {
		missions[i].Targets = targets[missions[i].Id]
		if missions[i].Targets == nil {
			missions[i].Targets = []models.Target{}
		}
	}
	return missions, nil
}

// Assign is idempotent: assigning the same cat twice leaves the mission unchanged.
func (d *DefaultMissionService) Assign(ctx context.Context, missionId, catId int64) (models.Mission, error) {
	var mission models.Mission
	err := d.inTx(ctx, func(r repos) error {
		if _, err := r.missions.GetById(ctx, missionId); err != nil {
			return err
		}
		if err := requireCat(ctx, r.cats, catId); err != nil {
			return err
		}
		if err := r.missions.Assign(ctx, missionId, catId); err != nil {
			return err
		}
		var err error
		mission, err = loadMission(ctx, r, missionId)
		return err
	})
	if err != nil {
		return models.Mission{}, err
	}
	d.observe("assign")
	return mission, nil
}

// Complete marks only the mission. Its targets stay as they are but can no
// longer be edited because updates check the owning mission.
func (d *DefaultMissionService) Complete(ctx context.Context, missionId int64) (models.Mission, error) {
	var mission models.Mission
	err := d.inTx(ctx, func(r repos) error {
		current, err := r.missions.GetById(ctx, missionId)
		if err != nil {
			return err
		}
		if !current.IsComplete {
			if err := r.missions.Complete(ctx, missionId); err != nil {
				return err
			}
		}
		mission, err = loadMission(ctx, r, missionId)
		return err
	})
	if err != nil {
		return models.Mission{}, err
	}
	d.observe("complete")
	return mission, nil
}

// Update is refused as a whole once a cat is assigned, whatever the fields.
// Completion is terminal, so is_complete can not go back to false.
func (d *DefaultMissionService) Update(ctx context.Context, missionId int64, update models.MissionUpdate) (models.Mission, error) {
	var mission models.Mission
	err := d.inTx(ctx, func(r repos) error {
		current, err := r.missions.GetById(ctx, missionId)
		if err != nil {
			return err
		}
		if current.Assigned() {
			return myerrors.InvalidState("Cannot update a mission assigned to a cat.")
		}
		if current.IsComplete && update.IsComplete != nil && !*update.IsComplete {
			return myerrors.InvalidState("A completed mission cannot be reopened.")
		}
		if update.CatId != nil {
			if err := requireCat(ctx, r.cats, *update.CatId); err != nil {
				return err
			}
		}
		if err := r.missions.Update(ctx, missionId, update); err != nil {
			return err
		}
		mission, err = loadMission(ctx, r, missionId)
		return err
	})
	if err != nil {
		return models.Mission{}, err
	}
	d.observe("update")
	return mission, nil
}

func (d *DefaultMissionService) Delete(ctx context.Context, missionId int64) error {
	err := d.inTx(ctx, func(r repos) error {
		current, err := r.missions.GetById(ctx, missionId)
		if err != nil {
			return err
		}
		if current.Assigned() {
			return myerrors.InvalidState("Cannot delete a mission assigned to a cat.")
		}
		if err := r.targets.DeleteByMissionId(ctx, missionId); err != nil {
			return err
		}
		return r.missions.Delete(ctx, missionId)
	})
	if err != nil {
		return err
	}
	d.observe("delete")
	return nil
}

func (d *DefaultMissionService) AddTarget(ctx context.Context, missionId int64, target models.NewTarget) (models.Target, error) {
	var saved models.Target
	err := d.inTx(ctx, func(r repos) error {
		mission, err := r.missions.GetById(ctx, missionId)
		if err != nil {
			return err
		}
		if mission.IsComplete {
			return myerrors.InvalidState("Targets for a completed mission cannot be added.")
		}
		count, err := r.targets.CountByMissionId(ctx, missionId)
		if err != nil {
			return err
		}
		if count >= models.MaxTargetsPerMission {
			return myerrors.InvalidState("Maximum number of targets reached for a mission.")
		}
		saved, err = r.targets.Add(ctx, target.ToTarget(missionId))
		return err
	})
	if err != nil {
		return models.Target{}, err
	}
	d.observe("add_target")
	return saved, nil
}

func (d *DefaultMissionService) UpdateTarget(ctx context.Context, targetId int64, update models.TargetUpdate) (models.Target, error) {
	var updated models.Target
	err := d.inTx(ctx, func(r repos) error {
		target, err := r.targets.GetById(ctx, targetId)
		if err != nil {
			return err
		}
		if target.IsComplete {
			return myerrors.InvalidState("Completed targets cannot be updated.")
		}
		mission, err := r.missions.GetById(ctx, target.MissionId)
		if err != nil {
			return err
		}
		if mission.IsComplete {
			return myerrors.InvalidState("Targets for a completed mission cannot be updated.")
		}
		if err := r.targets.Update(ctx, targetId, update); err != nil {
			return err
		}
		updated, err = r.targets.GetById(ctx, targetId)
		return err
	})
	if err != nil {
		return models.Target{}, err
	}
	d.observe("update_target")
	return updated, nil
}

func requireCat(ctx context.Context, cats repositories.CatRepository, catId int64) error {
	exists, err := cats.Exists(ctx, catId)
	if err != nil {
		return err
	}
	if !exists {
		return repositories.ErrCatNotFound
	}
	return nil
}

func loadMission(ctx context.Context, r repos, id int64) (models.Mission, error) {
	mission, err := r.missions.GetById(ctx, id)
	if err != nil {
		return models.Mission{}, err
	}
	mission.Targets, err = r.targets.GetByMissionId(ctx, id)
	if err != nil {
		return models.Mission{}, err
	}
	return mission, nil
}
