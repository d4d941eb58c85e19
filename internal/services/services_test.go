package services_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/DmytroHlazyrin/Spy-cat-agency/internal/logging"
	"github.com/DmytroHlazyrin/Spy-cat-agency/internal/models"
	"github.com/DmytroHlazyrin/Spy-cat-agency/internal/myerrors"
	"github.com/DmytroHlazyrin/Spy-cat-agency/internal/repositories"
	"github.com/DmytroHlazyrin/Spy-cat-agency/internal/services"
	"github.com/DmytroHlazyrin/Spy-cat-agency/internal/testutil"
	"github.com/DmytroHlazyrin/Spy-cat-agency/pkg/catapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBreeds struct {
	names map[string]bool
	err   error
}

func (f *fakeBreeds) IsValid(ctx context.Context, name string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.names[name], nil
}

type recordingObserver struct {
	actions []string
}

func (r *recordingObserver) ObserveMissionAction(action string) {
	r.actions = append(r.actions, action)
}

type fixture struct {
	cats     *services.DefaultCatService
	missions *services.DefaultMissionService
	breeds   *fakeBreeds
	observer *recordingObserver
	targets  repositories.TargetRepository
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	db := testutil.NewSQLiteDB(t)
	catRepo := repositories.NewSQLCatRepository(db)
	missionRepo := repositories.NewSQLMissionRepository(db)
	targetRepo := repositories.NewSQLTargetRepository(db)
	tx := repositories.NewSQLTransactor(db)
	breeds := &fakeBreeds{names: map[string]bool{"Abyssinian": true, "Siamese": true}}
	observer := &recordingObserver{}
	return fixture{
		cats:     services.NewDefaultCatService(catRepo, missionRepo, tx, breeds, logging.Discard()),
		missions: services.NewDefaultMissionService(missionRepo, targetRepo, catRepo, tx, observer),
		breeds:   breeds,
		observer: observer,
		targets:  targetRepo,
	}
}

func (f fixture) newCat(t *testing.T, name string) models.Cat {
	t.Helper()
	cat, err := f.cats.Add(context.Background(), models.Cat{Name: name, Breed: "Siamese", YearsOfExperience: 3, Salary: 1000})
	require.NoError(t, err)
	return cat
}

func (f fixture) newMission(t *testing.T, targets int) models.Mission {
	t.Helper()
	nm := models.NewMission{}
	for i := range targets {
		nm.Targets = append(nm.Targets, models.NewTarget{Name: fmt.Sprintf("target-%d", i), Country: "X"})
	}
	mission, err := f.missions.Add(context.Background(), nm)
	require.NoError(t, err)
	return mission
}

func requireKind(t *testing.T, kind myerrors.Kind, err error) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, kind, myerrors.KindOf(err), "unexpected error: %v", err)
}

func TestCreateMission(t *testing.T) {
	ctx := context.Background()

	t.Run("target count bounds", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.missions.Add(ctx, models.NewMission{})
		requireKind(t, myerrors.KindValidation, err)

		four := models.NewMission{}
		for range 4 {
			four.Targets = append(four.Targets, models.NewTarget{Name: "a", Country: "b"})
		}
		_, err = f.missions.Add(ctx, four)
		requireKind(t, myerrors.KindValidation, err)
	})

	t.Run("unknown cat is not found and nothing is saved", func(t *testing.T) {
		f := newFixture(t)
		missing := int64(404)
		_, err := f.missions.Add(ctx, models.NewMission{
			CatId:   &missing,
			Targets: []models.NewTarget{{Name: "Alpha", Country: "X"}},
		})
		requireKind(t, myerrors.KindNotFound, err)

		all, err := f.missions.GetAll(ctx, models.PaginationQuery{})
		require.NoError(t, err)
		assert.Empty(t, all)
	})

	t.Run("mission and targets are returned together", func(t *testing.T) {
		f := newFixture(t)
		cat := f.newCat(t, "Ash")
		mission, err := f.missions.Add(ctx, models.NewMission{
			CatId: &cat.Id,
			Targets: []models.NewTarget{
				{Name: "cucumber", Country: "USA"},
				{Name: "Christmas tree", Country: "Italy"},
			},
		})
		require.NoError(t, err)
		require.NotNil(t, mission.CatId)
		assert.Equal(t, cat.Id, *mission.CatId)
		require.Len(t, mission.Targets, 2)

		got, err := f.missions.GetById(ctx, mission.Id)
		require.NoError(t, err)
		assert.Equal(t, mission, got)
		assert.Equal(t, []string{"create"}, f.observer.actions)
	})
}

// failingTargets fails the failOn-th insert made through any repository it hands out.
type failingTargets struct {
	repositories.TargetRepository
	calls  *int
	failOn int
}

func (f failingTargets) WithTx(tx *sql.Tx) repositories.TargetRepository {
	return failingTargets{TargetRepository: f.TargetRepository.WithTx(tx), calls: f.calls, failOn: f.failOn}
}

func (f failingTargets) Add(ctx context.Context, target models.Target) (models.Target, error) {
	*f.calls++
	if *f.calls == f.failOn {
		return models.Target{}, errors.New("disk full")
	}
	return f.TargetRepository.Add(ctx, target)
}

func TestCreateMissionIsAtomic(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewSQLiteDB(t)
	calls := 0
	targets := failingTargets{TargetRepository: repositories.NewSQLTargetRepository(db), calls: &calls, failOn: 2}
	missions := services.NewDefaultMissionService(
		repositories.NewSQLMissionRepository(db),
		targets,
		repositories.NewSQLCatRepository(db),
		repositories.NewSQLTransactor(db),
		nil,
	)

	_, err := missions.Add(ctx, models.NewMission{Targets: []models.NewTarget{
		{Name: "first", Country: "X"},
		{Name: "second", Country: "Y"},
	}})
	require.Error(t, err)
	assert.Equal(t, 2, calls)

	all, err := missions.GetAll(ctx, models.PaginationQuery{})
	require.NoError(t, err)
	assert.Empty(t, all)

	var missionRows, targetRows int
	require.NoError(t, db.QueryRowContext(ctx, "SELECT COUNT(*) FROM missions").Scan(&missionRows))
	require.NoError(t, db.QueryRowContext(ctx, "SELECT COUNT(*) FROM targets").Scan(&targetRows))
	assert.Zero(t, missionRows)
	assert.Zero(t, targetRows)
}

func TestAddTarget(t *testing.T) {
	ctx := context.Background()

	t.Run("at most three targets", func(t *testing.T) {
		f := newFixture(t)
		mission := f.newMission(t, 1)

		for range 2 {
			_, err := f.missions.AddTarget(ctx, mission.Id, models.NewTarget{Name: "more", Country: "Y"})
			require.NoError(t, err)
		}
		_, err := f.missions.AddTarget(ctx, mission.Id, models.NewTarget{Name: "too many", Country: "Y"})
		requireKind(t, myerrors.KindInvalidState, err)

		count, err := f.targets.CountByMissionId(ctx, mission.Id)
		require.NoError(t, err)
		assert.Equal(t, 3, count)
	})

	t.Run("completed mission", func(t *testing.T) {
		f := newFixture(t)
		mission := f.newMission(t, 1)
		_, err := f.missions.Complete(ctx, mission.Id)
		require.NoError(t, err)

		_, err = f.missions.AddTarget(ctx, mission.Id, models.NewTarget{Name: "late", Country: "Y"})
		requireKind(t, myerrors.KindInvalidState, err)
	})

	t.Run("missing mission", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.missions.AddTarget(ctx, 777, models.NewTarget{Name: "a", Country: "b"})
		requireKind(t, myerrors.KindNotFound, err)
	})
}

func TestUpdateTarget(t *testing.T) {
	ctx := context.Background()
	notes := "spotted near the building"
	done := true

	t.Run("notes and completion", func(t *testing.T) {
		f := newFixture(t)
		mission := f.newMission(t, 1)
		target := mission.Targets[0]

		updated, err := f.missions.UpdateTarget(ctx, target.Id, models.TargetUpdate{Notes: &notes})
		require.NoError(t, err)
		require.NotNil(t, updated.Notes)
		assert.Equal(t, notes, *updated.Notes)
		assert.False(t, updated.IsComplete)

		updated, err = f.missions.UpdateTarget(ctx, target.Id, models.TargetUpdate{IsComplete: &done})
		require.NoError(t, err)
		assert.True(t, updated.IsComplete)
	})

	t.Run("completed target is frozen", func(t *testing.T) {
		f := newFixture(t)
		mission := f.newMission(t, 1)
		target := mission.Targets[0]
		_, err := f.missions.UpdateTarget(ctx, target.Id, models.TargetUpdate{IsComplete: &done})
		require.NoError(t, err)

		_, err = f.missions.UpdateTarget(ctx, target.Id, models.TargetUpdate{Notes: &notes})
		requireKind(t, myerrors.KindInvalidState, err)
	})

	t.Run("target of a completed mission is frozen", func(t *testing.T) {
		f := newFixture(t)
		mission := f.newMission(t, 2)
		completed, err := f.missions.Complete(ctx, mission.Id)
		require.NoError(t, err)
		assert.True(t, completed.IsComplete)
		for _, target := range completed.Targets {
			assert.False(t, target.IsComplete, "completion does not cascade")
		}

		_, err = f.missions.UpdateTarget(ctx, mission.Targets[1].Id, models.TargetUpdate{Notes: &notes})
		requireKind(t, myerrors.KindInvalidState, err)
	})

	t.Run("missing target", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.missions.UpdateTarget(ctx, 12345, models.TargetUpdate{Notes: &notes})
		requireKind(t, myerrors.KindNotFound, err)
	})
}

func TestAssignAndComplete(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	cat := f.newCat(t, "Morgana")
	mission := f.newMission(t, 1)

	_, err := f.missions.Assign(ctx, 999, cat.Id)
	requireKind(t, myerrors.KindNotFound, err)
	_, err = f.missions.Assign(ctx, mission.Id, 999)
	requireKind(t, myerrors.KindNotFound, err)

	for range 2 {
		assigned, err := f.missions.Assign(ctx, mission.Id, cat.Id)
		require.NoError(t, err)
		require.NotNil(t, assigned.CatId)
		assert.Equal(t, cat.Id, *assigned.CatId)
		assert.Len(t, assigned.Targets, 1)
	}

	for range 2 {
		completed, err := f.missions.Complete(ctx, mission.Id)
		require.NoError(t, err)
		assert.True(t, completed.IsComplete)
	}

	_, err = f.missions.Complete(ctx, 999)
	requireKind(t, myerrors.KindNotFound, err)
}

func TestUpdateMission(t *testing.T) {
	ctx := context.Background()
	done := true

	t.Run("blocked for any field once assigned", func(t *testing.T) {
		f := newFixture(t)
		cat := f.newCat(t, "Silky")
		mission := f.newMission(t, 1)
		_, err := f.missions.Assign(ctx, mission.Id, cat.Id)
		require.NoError(t, err)

		_, err = f.missions.Update(ctx, mission.Id, models.MissionUpdate{IsComplete: &done})
		requireKind(t, myerrors.KindInvalidState, err)
		_, err = f.missions.Update(ctx, mission.Id, models.MissionUpdate{CatId: &cat.Id})
		requireKind(t, myerrors.KindInvalidState, err)
		_, err = f.missions.Update(ctx, mission.Id, models.MissionUpdate{})
		requireKind(t, myerrors.KindInvalidState, err)
	})

	t.Run("unassigned mission can be updated", func(t *testing.T) {
		f := newFixture(t)
		cat := f.newCat(t, "Milky")
		mission := f.newMission(t, 1)

		updated, err := f.missions.Update(ctx, mission.Id, models.MissionUpdate{IsComplete: &done, CatId: &cat.Id})
		require.NoError(t, err)
		assert.True(t, updated.IsComplete)
		require.NotNil(t, updated.CatId)
		assert.Equal(t, cat.Id, *updated.CatId)
	})

	t.Run("unknown cat", func(t *testing.T) {
		f := newFixture(t)
		mission := f.newMission(t, 1)
		missing := int64(31337)
		_, err := f.missions.Update(ctx, mission.Id, models.MissionUpdate{CatId: &missing})
		requireKind(t, myerrors.KindNotFound, err)
	})

	t.Run("completed mission cannot be reopened", func(t *testing.T) {
		f := newFixture(t)
		mission := f.newMission(t, 1)
		_, err := f.missions.Complete(ctx, mission.Id)
		require.NoError(t, err)

		reopen := false
		_, err = f.missions.Update(ctx, mission.Id, models.MissionUpdate{IsComplete: &reopen})
		requireKind(t, myerrors.KindInvalidState, err)

		notes := "back in business"
		_, err = f.missions.AddTarget(ctx, mission.Id, models.NewTarget{Name: "late", Country: "Y"})
		requireKind(t, myerrors.KindInvalidState, err)
		_, err = f.missions.UpdateTarget(ctx, mission.Targets[0].Id, models.TargetUpdate{Notes: &notes})
		requireKind(t, myerrors.KindInvalidState, err)

		stored, err := f.missions.GetById(ctx, mission.Id)
		require.NoError(t, err)
		assert.True(t, stored.IsComplete)

		updated, err := f.missions.Update(ctx, mission.Id, models.MissionUpdate{IsComplete: &done})
		require.NoError(t, err)
		assert.True(t, updated.IsComplete)
	})
}

func TestDeleteMission(t *testing.T) {
	ctx := context.Background()

	t.Run("assigned mission cannot be deleted", func(t *testing.T) {
		f := newFixture(t)
		cat := f.newCat(t, "Bobby")
		mission := f.newMission(t, 1)
		_, err := f.missions.Assign(ctx, mission.Id, cat.Id)
		require.NoError(t, err)

		requireKind(t, myerrors.KindInvalidState, f.missions.Delete(ctx, mission.Id))
		_, err = f.missions.GetById(ctx, mission.Id)
		require.NoError(t, err)
	})

	t.Run("unassigned mission takes its targets along", func(t *testing.T) {
		f := newFixture(t)
		mission := f.newMission(t, 3)

		require.NoError(t, f.missions.Delete(ctx, mission.Id))
		_, err := f.missions.GetById(ctx, mission.Id)
		requireKind(t, myerrors.KindNotFound, err)
		for _, target := range mission.Targets {
			_, err := f.targets.GetById(ctx, target.Id)
			assert.ErrorIs(t, err, repositories.ErrTargetNotFound)
		}
		requireKind(t, myerrors.KindNotFound, f.missions.Delete(ctx, mission.Id))
	})
}

func TestCatService(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown breed", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.cats.Add(ctx, models.Cat{Name: "Fraud", Breed: "fraud"})
		requireKind(t, myerrors.KindValidation, err)
		assert.EqualError(t, err, "Breed 'fraud' not found.")
	})

	t.Run("directory unreachable", func(t *testing.T) {
		f := newFixture(t)
		f.breeds.err = fmt.Errorf("%w: dial tcp", catapi.ErrUnavailable)
		_, err := f.cats.Add(ctx, models.Cat{Name: "Tom", Breed: "Siamese"})
		requireKind(t, myerrors.KindUnavailable, err)
	})

	t.Run("duplicate name", func(t *testing.T) {
		f := newFixture(t)
		f.newCat(t, "Tom")
		_, err := f.cats.Add(ctx, models.Cat{Name: "Tom", Breed: "Abyssinian"})
		requireKind(t, myerrors.KindConflict, err)
	})

	t.Run("negative salary", func(t *testing.T) {
		f := newFixture(t)
		cat := f.newCat(t, "Tom")
		salary := -1.0
		_, err := f.cats.Update(ctx, cat.Id, models.CatUpdate{Salary: &salary})
		requireKind(t, myerrors.KindValidation, err)
	})

	t.Run("salary update", func(t *testing.T) {
		f := newFixture(t)
		cat := f.newCat(t, "Tom")
		salary := 2500.75
		updated, err := f.cats.Update(ctx, cat.Id, models.CatUpdate{Salary: &salary})
		require.NoError(t, err)
		assert.Equal(t, salary, updated.Salary)

		_, err = f.cats.Update(ctx, 4242, models.CatUpdate{Salary: &salary})
		requireKind(t, myerrors.KindNotFound, err)
	})

	t.Run("delete releases missions", func(t *testing.T) {
		f := newFixture(t)
		cat := f.newCat(t, "Phantom")
		mission := f.newMission(t, 1)
		_, err := f.missions.Assign(ctx, mission.Id, cat.Id)
		require.NoError(t, err)

		require.NoError(t, f.cats.DeleteById(ctx, cat.Id))
		got, err := f.missions.GetById(ctx, mission.Id)
		require.NoError(t, err)
		assert.Nil(t, got.CatId)

		// the mission is open again
		require.NoError(t, f.missions.Delete(ctx, mission.Id))
		requireKind(t, myerrors.KindNotFound, f.cats.DeleteById(ctx, cat.Id))
	})
}

func TestGetAllMissions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	empty, err := f.missions.GetAll(ctx, models.PaginationQuery{})
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	first := f.newMission(t, 2)
	second := f.newMission(t, 1)

	all, err := f.missions.GetAll(ctx, models.PaginationQuery{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, first, all[0])
	assert.Equal(t, second, all[1])

	page, err := f.missions.GetAll(ctx, models.PaginationQuery{Skip: 1, Limit: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, second.Id, page[0].Id)
}

func TestErrorsAreNotMasked(t *testing.T) {
	f := newFixture(t)
	f.breeds.err = errors.New("unexpected")
	_, err := f.cats.Add(context.Background(), models.Cat{Name: "Tom", Breed: "Siamese"})
	require.Error(t, err)
	assert.Equal(t, myerrors.KindUnknown, myerrors.KindOf(err))
}
