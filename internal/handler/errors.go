package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/tableside/internal/domain/auth"
	"github.com/xenking/tableside/internal/domain/menu"
	"github.com/xenking/tableside/internal/domain/order"
	"github.com/xenking/tableside/internal/domain/table"
	"github.com/xenking/tableside/pkg/httpmiddleware"
)

// errBadRequest marks malformed bodies and query parameters.
var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return errors.Wrapf(errBadRequest, format, args...)
}

// statusOf maps a domain error to an HTTP status code.
func statusOf(err error) int {
	switch {
	case errors.Is(err, auth.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, auth.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, order.ErrNotFound),
		errors.Is(err, order.ErrItemNotFound),
		errors.Is(err, menu.ErrNotFound),
		errors.Is(err, table.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errBadRequest),
		errors.Is(err, menu.ErrInvalidInput),
		errors.Is(err, table.ErrInvalidInput),
		errors.Is(err, order.ErrInvalidQuantity),
		errors.Is(err, order.ErrInvalidInput),
		errors.Is(err, order.ErrInvalidStatus):
		return http.StatusBadRequest
	case errors.Is(err, order.ErrUnavailable),
		errors.Is(err, order.ErrInvalidTransition),
		errors.Is(err, order.ErrOrderClosed),
		errors.Is(err, menu.ErrInUse),
		errors.Is(err, table.ErrInUse),
		errors.Is(err, table.ErrDuplicateNumber):
		return http.StatusUnprocessableEntity
	case errors.Is(err, order.ErrConflict):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// fail writes err as a JSON error body. Internal errors are logged and
// their text is not sent to the client.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := statusOf(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		zctx.From(r.Context()).Error("Request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		msg = "internal error"
	}
	httpmiddleware.WriteError(w, code, msg)
}
