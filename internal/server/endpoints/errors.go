package endpoints

import (
	"errors"
	"net/http"

	"github.com/ryanmcguirecode/batchdesk/internal/lease"
	"github.com/ryanmcguirecode/batchdesk/internal/orgs"
	"github.com/ryanmcguirecode/batchdesk/internal/review"
	"github.com/ryanmcguirecode/batchdesk/internal/store"
)

// statusForError maps domain errors to HTTP status codes. orgMismatch is
// passed in because the route vocabulary differs: acquire reports tenant
// mismatch as 403, progress and finalize as 401.
func statusForError(err error, orgMismatch int) int {
	var held *lease.HeldError
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, lease.ErrWrongOrganization):
		return orgMismatch
	case errors.As(err, &held),
		errors.Is(err, lease.ErrNotHeld),
		errors.Is(err, lease.ErrFinished),
		errors.Is(err, store.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, orgs.ErrInvalidFields),
		errors.Is(err, review.ErrInvalidIndex),
		errors.Is(err, review.ErrWrongDocument):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
