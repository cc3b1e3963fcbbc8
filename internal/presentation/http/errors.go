package httppresentation

import (
	"errors"
	"net/http"

	"github.com/Zhima-Mochi/storefront-bot/internal/application"
	domaudit "github.com/Zhima-Mochi/storefront-bot/internal/domain/audit"
	domcheckout "github.com/Zhima-Mochi/storefront-bot/internal/domain/checkout"
	domgiveaway "github.com/Zhima-Mochi/storefront-bot/internal/domain/giveaway"
	dominv "github.com/Zhima-Mochi/storefront-bot/internal/domain/inventory"
	"github.com/Zhima-Mochi/storefront-bot/internal/domain/messaging"
	domtrade "github.com/Zhima-Mochi/storefront-bot/internal/domain/trade"
	"github.com/Zhima-Mochi/storefront-bot/internal/pkg/apierror"
)

// mapError translates use-case errors into API errors. Server-side failures
// keep a generic message.
func mapError(err error) *apierror.Error {
	var apiErr *apierror.Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	switch {
	case errors.Is(err, application.ErrValidation),
		errors.Is(err, dominv.ErrInvalidPrice),
		errors.Is(err, dominv.ErrUnknownKind),
		errors.Is(err, dominv.ErrKindMismatch),
		errors.Is(err, domgiveaway.ErrInvalidDuration),
		errors.Is(err, domgiveaway.ErrMissingChannel),
		errors.Is(err, domaudit.ErrEmptyResend):
		return apierror.Validation(err.Error())
	case errors.Is(err, dominv.ErrCategoryNotFound),
		errors.Is(err, dominv.ErrItemNotFound),
		errors.Is(err, domcheckout.ErrNotFound),
		errors.Is(err, domgiveaway.ErrNotFound),
		errors.Is(err, domtrade.ErrNotFound):
		return apierror.NotFound(err.Error())
	case errors.Is(err, domcheckout.ErrForbidden),
		errors.Is(err, domtrade.ErrForbidden):
		return apierror.Forbidden(err.Error())
	case errors.Is(err, dominv.ErrNoStock):
		return apierror.Conflict("NO_STOCK", err.Error())
	case errors.Is(err, domcheckout.ErrDuplicatePending):
		return apierror.Conflict("DUPLICATE_PENDING", err.Error())
	case errors.Is(err, domcheckout.ErrNotPending),
		errors.Is(err, domcheckout.ErrInvalidTransition),
		errors.Is(err, domgiveaway.ErrNotActive),
		errors.Is(err, domtrade.ErrNotOpen):
		return apierror.Conflict("", err.Error())
	case errors.Is(err, domtrade.ErrNoReplacementStock):
		return apierror.Conflict("NO_REPLACEMENT_STOCK", err.Error())
	case errors.Is(err, domcheckout.ErrDelivery):
		return apierror.BadGateway("DELIVERY_FAILED", err.Error())
	case errors.Is(err, domcheckout.ErrGateway),
		errors.Is(err, messaging.ErrTransport):
		return apierror.BadGateway("", "upstream service unavailable")
	case errors.Is(err, dominv.ErrCorruptStore):
		return apierror.New(http.StatusInternalServerError, "CORRUPT_STORE", "inventory store is corrupt")
	default:
		return apierror.InternalError("")
	}
}
