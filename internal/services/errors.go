package services

import (
	"errors"

	"github.com/DmytroHlazyrin/Spy-cat-agency/internal/myerrors"
	"github.com/DmytroHlazyrin/Spy-cat-agency/internal/repositories"
)

// translate turns repository sentinels into errors the API can show.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repositories.ErrCatNotFound):
		return myerrors.NotFound("Spy cat not found.")
	case errors.Is(err, repositories.ErrMissionNotFound):
		return myerrors.NotFound("Mission not found.")
	case errors.Is(err, repositories.ErrTargetNotFound):
		return myerrors.NotFound("Target not found.")
	case errors.Is(err, repositories.ErrDuplicateName):
		return myerrors.Conflict(err, "Spy cat with this name already exists.")
	}
	return err
}
