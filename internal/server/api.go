package server

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi"
	"github.com/google/uuid"

	"github.com/Decentr-net/agora/internal/api"
	"github.com/Decentr-net/agora/internal/entities"
	"github.com/Decentr-net/agora/internal/service"
	"github.com/Decentr-net/agora/internal/storage"
)

const maxLimit = 100
const defaultLimit = 20

// multipartMemory is a size of multipart form kept in memory, the rest goes to temp files.
const multipartMemory = 8 << 20

const idempotencyKeyHeader = "Idempotency-Key"

var errInvalidRequest = errors.New("invalid request")

func collectionParam(w http.ResponseWriter, r *http.Request) (entities.Collection, bool) {
	c := entities.Collection(chi.URLParam(r, "collection"))
	if !c.Valid() {
		api.WriteError(w, http.StatusNotFound, "unknown collection")
		return "", false
	}

	return c, true
}

func idParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		api.WriteError(w, http.StatusBadRequest, "invalid id")
		return "", false
	}

	return id, true
}

func extractListParamsFromQuery(c entities.Collection, q url.Values) (*storage.ListItemsParams, error) {
	out := storage.ListItemsParams{
		Collection: c,
		Limit:      defaultLimit,
	}

	if s := q.Get("limit"); s != "" {
		v, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to parse limit", errInvalidRequest)
		}

		if v == 0 || v > maxLimit {
			return nil, fmt.Errorf("%w: limit should be in [1, %d]", errInvalidRequest, maxLimit)
		}

		out.Limit = uint16(v)
	}

	if s := q.Get("author"); s != "" {
		out.AuthorID = &s
	}

	if s := q.Get("after"); s != "" {
		if _, err := uuid.Parse(s); err != nil {
			return nil, fmt.Errorf("%w: invalid after", errInvalidRequest)
		}
		out.After = &s
	}

	return &out, nil
}

// writeServiceError maps service errors to http statuses.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, action string) {
	var verr *service.ValidationError

	switch {
	case errors.As(err, &verr):
		api.WriteFieldError(w, http.StatusBadRequest, verr.Field, verr.Message)
	case errors.Is(err, service.ErrNotFound):
		api.WriteError(w, http.StatusNotFound, "not found")
	case errors.Is(err, service.ErrForbidden):
		api.WriteError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, service.ErrProfileRequired):
		api.WriteError(w, http.StatusPreconditionFailed, err.Error())
	case errors.Is(err, service.ErrDuplicateSubmission):
		api.WriteError(w, http.StatusConflict, "duplicate submission")
	default:
		api.WriteInternalErrorf(r.Context(), w, "failed to %s: %s", action, err.Error())
	}
}

// formFile returns nil file when field is missing.
func formFile(r *http.Request, field string) (*service.File, func(), error) {
	f, h, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, func() {}, nil
		}
		return nil, nil, fmt.Errorf("%w: failed to read %s", errInvalidRequest, field)
	}

	return &service.File{
			Name:        h.Filename,
			ContentType: h.Header.Get("Content-Type"),
			Size:        h.Size,
			Body:        f,
		}, func() {
			if err := f.Close(); err != nil {
				log.WithError(err).Warn("failed to close form file")
			}
		}, nil
}

func parseMultipartForm(w http.ResponseWriter, r *http.Request) bool {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		if strings.Contains(err.Error(), "request body too large") {
			api.WriteError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		api.WriteError(w, http.StatusBadRequest, "invalid multipart form")
		return false
	}

	return true
}
