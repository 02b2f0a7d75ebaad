package services

import (
	"errors"

	"github.com/yoockh/erasreview/internal/utils"
)

// repoErr translates repository sentinels; anything else is internal.
func repoErr(op, msg string, err error) error {
	switch {
	case errors.Is(err, utils.ErrNotFound):
		return utils.E(utils.CodeNotFound, op, "not found", err)
	case errors.Is(err, utils.ErrConflict):
		return utils.E(utils.CodeConflict, op, "conflict", err)
	default:
		return utils.E(utils.CodeInternal, op, msg, err)
	}
}

// passAppErr keeps an AppError raised inside a transaction intact.
func passAppErr(op, msg string, err error) error {
	var ae *utils.AppError
	if errors.As(err, &ae) {
		return err
	}
	return repoErr(op, msg, err)
}
