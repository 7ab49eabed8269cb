package services

import (
	"errors"

	"github.com/DennisTemoye/propty-os1-sub003/internal/utils"
)

// infraErr wraps a repository failure as an InfrastructureError unless it
// already carries a classification.
func infraErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var (
		rv *utils.RuleViolationError
		ie *utils.InfrastructureError
		ig *utils.IntegrityError
	)
	if errors.As(err, &rv) || errors.As(err, &ie) || errors.As(err, &ig) {
		return err
	}
	return &utils.InfrastructureError{Op: op, Err: err}
}
