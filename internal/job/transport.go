package job

import (
	"strings"

	"github.com/google/uuid"

	"github.com/ahmethakanbesel/tgsearch-api/internal/apperror"
	"github.com/ahmethakanbesel/tgsearch-api/internal/search"
)

type GetJobRequest struct {
	ID string
}

func (r GetJobRequest) Validate() *apperror.AppError {
	if _, err := uuid.Parse(r.ID); err != nil {
		return apperror.New(apperror.BadRequest, "invalid job id")
	}
	return nil
}

// SubmitRequest is a search on behalf of an owner. Request is normalized in
// place by Validate.
type SubmitRequest struct {
	OwnerID string
	Request search.Request
}

func (r *SubmitRequest) Validate(limits search.Limits) *apperror.AppError {
	r.OwnerID = strings.TrimSpace(r.OwnerID)
	if r.OwnerID == "" {
		return apperror.New(apperror.Unauthorized, "owner id is required")
	}
	r.Request = r.Request.Normalize()
	return r.Request.Validate(limits)
}
