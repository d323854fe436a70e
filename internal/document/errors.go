package document

import (
	"errors"
	"net/http"

	"github.com/noah-isme/backoffice-api/internal/common"
	"github.com/noah-isme/backoffice-api/internal/pricing"
)

// AppError maps status and editability errors onto HTTP errors. Other errors
// are returned unchanged.
func AppError(err error) error {
	switch {
	case errors.Is(err, ErrInvalidTransition):
		return common.Conflict("INVALID_TRANSITION", err.Error(), err)
	case errors.Is(err, ErrDocumentLocked):
		return common.Conflict("DOCUMENT_LOCKED", err.Error(), err)
	case errors.Is(err, ErrUnknownStatus):
		return common.BadRequest(err.Error(), err)
	case errors.Is(err, pricing.ErrAmountOutOfRange):
		return common.NewAppError("AMOUNT_OUT_OF_RANGE", "document totals exceed the supported amount range", http.StatusUnprocessableEntity, err)
	case errors.Is(err, ErrInvalidTerm):
		return common.NewAppError("INVALID_TERM", err.Error(), http.StatusUnprocessableEntity, err)
	}
	return err
}
