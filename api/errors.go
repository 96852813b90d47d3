package api

import (
	"net/http"

	"github.com/rs/zerolog"

	"kkv/fridge"
)

type ErrResponse struct {
	HTTPStatusCode int
	Message        string
	Kind           fridge.Kind
	Errno          int
}

var kindStatus = map[fridge.Kind]int{
	fridge.KindInvalidFlag:      http.StatusBadRequest,
	fridge.KindInvalidArgument:  http.StatusBadRequest,
	fridge.KindPermissionDenied: http.StatusForbidden,
	fridge.KindNotFound:         http.StatusNotFound,
	fridge.KindInterrupted:      http.StatusServiceUnavailable,
	fridge.KindOutOfMemory:      http.StatusInsufficientStorage,
	fridge.KindIO:               http.StatusInternalServerError,
}

// StatusFor returns the HTTP status code the API answers kind with
func StatusFor(kind fridge.Kind) int {
	if status, found := kindStatus[kind]; found {
		return status
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := fridge.KindOf(err)
	status := StatusFor(kind)

	logger := zerolog.Ctx(r.Context())
	event := logger.Debug()
	if kind == fridge.KindIO {
		event = logger.Error()
	}
	event.Err(err).Str("kind", string(kind)).Int("status-code", status).Msg("request failed")

	writeJSON(w, status, ErrResponse{
		HTTPStatusCode: status,
		Message:        err.Error(),
		Kind:           kind,
		Errno:          int(kind.Errno()),
	})
}
