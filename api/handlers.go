package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"kkv/fridge"
	"kkv/stats"
)

type DestroyResponse struct {
	Removed int `json:"removed"`
}

type MetricsResponse struct {
	Store fridge.Stats `json:"store"`
	Host  *stats.Stats `json:"host"`
}

func (a *Api) initHandler(w http.ResponseWriter, r *http.Request) {
	flags, ok := flagsParam(w, r)
	if !ok {
		return
	}

	if err := a.Fridge.Init(flags); err != nil {
		writeError(w, r, err)
		return
	}
	zerolog.Ctx(r.Context()).Info().Msg("store initialized")
	w.WriteHeader(http.StatusNoContent)
}

func (a *Api) destroyHandler(w http.ResponseWriter, r *http.Request) {
	flags, ok := flagsParam(w, r)
	if !ok {
		return
	}

	removed, err := a.Fridge.Destroy(flags)
	if err != nil {
		writeError(w, r, err)
		return
	}
	zerolog.Ctx(r.Context()).Info().Int("removed", removed).Msg("store destroyed")
	writeJSON(w, http.StatusOK, DestroyResponse{Removed: removed})
}

func (a *Api) putHandler(w http.ResponseWriter, r *http.Request) {
	flags, ok := flagsParam(w, r)
	if !ok {
		return
	}
	key, ok := keyParam(w, r)
	if !ok {
		return
	}

	// No single value can be larger than the whole store
	body := r.Body
	if maxBytes := a.Fridge.MaxBytes(); maxBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, maxBytes)
	}
	value, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, fmt.Errorf("%w: value on key %v exceeds the %d bytes bound", fridge.ErrOutOfMemory, key, tooLarge.Limit))
			return
		}
		writeError(w, r, fmt.Errorf("%w: error reading request body: %v", fridge.ErrInvalidArgument, err))
		return
	}

	if err := a.Fridge.Put(key, value, flags); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *Api) getHandler(w http.ResponseWriter, r *http.Request) {
	flags, ok := flagsParam(w, r)
	if !ok {
		return
	}
	key, ok := keyParam(w, r)
	if !ok {
		return
	}

	rawLength := r.URL.Query().Get("length")
	length, err := strconv.Atoi(rawLength)
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: length parameter %q isn't an integer", fridge.ErrInvalidArgument, rawLength))
		return
	}

	// The request context ends when the caller goes away or the server
	// shuts down, either one interrupts a blocked get
	value, err := a.Fridge.Get(r.Context(), key, length, flags)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(len(value)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(value); err != nil {
		zerolog.Ctx(r.Context()).Err(err).Msg("failed to write value")
	}
}

func (a *Api) metricsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, MetricsResponse{
		Store: a.Fridge.Stats(),
		Host:  stats.GetStats(a.DataDir),
	})
}

// Flags word of the request, missing means NonBlock. Anything that isn't a
// legal flag is rejected here the way the store would.
func flagsParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("flags")
	if raw == "" {
		return int(fridge.NonBlock), true
	}
	flags, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: %q", fridge.ErrInvalidFlag, raw))
		return 0, false
	}
	if _, err := fridge.ParseFlag(flags); err != nil {
		writeError(w, r, err)
		return 0, false
	}
	return flags, true
}

func keyParam(w http.ResponseWriter, r *http.Request) (fridge.Key, bool) {
	raw := chi.URLParam(r, "key")
	key, err := fridge.ParseKey(raw)
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: key parameter %q isn't a 64-bit integer", fridge.ErrInvalidArgument, raw))
		return 0, false
	}
	return key, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
