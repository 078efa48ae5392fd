package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi"

	"github.com/Decentr-net/agora/internal/api"
	"github.com/Decentr-net/agora/internal/schema"
	"github.com/Decentr-net/agora/internal/service"
	"github.com/Decentr-net/agora/internal/storage"
)

func (s server) signIn(w http.ResponseWriter, r *http.Request) {
	// swagger:operation POST /session Session SignIn
	//
	// Creates profile on the first sign in and returns it.
	//
	// ---
	// produces:
	// - application/json
	// responses:
	//   '200':
	//     description: Profile
	//     schema:
	//       "$ref": "#/definitions/Profile"
	//   '401':
	//     description: unauthorized
	//     schema:
	//       "$ref": "#/definitions/Error"

	p, err := s.s.SignIn(r.Context(), getUser(r.Context()))
	if err != nil {
		writeServiceError(w, r, err, "sign in")
		return
	}

	api.WriteOK(w, http.StatusOK, schema.ToProfile(p))
}

func (s server) signOut(w http.ResponseWriter, r *http.Request) {
	// swagger:operation DELETE /session Session SignOut
	//
	// Revokes every token of the user.
	//
	// ---
	// responses:
	//   '204':
	//     description: signed out

	if err := s.a.SignOut(r.Context(), getToken(r.Context())); err != nil {
		api.WriteInternalErrorf(r.Context(), w, "failed to sign out: %s", err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s server) getMe(w http.ResponseWriter, r *http.Request) {
	p, err := s.s.GetProfile(r.Context(), getUser(r.Context()).ID)
	if err != nil {
		writeServiceError(w, r, err, "get profile")
		return
	}

	api.WriteOK(w, http.StatusOK, schema.ToProfile(p))
}

func (s server) getProfile(w http.ResponseWriter, r *http.Request) {
	// swagger:operation GET /profiles/{id} Profiles GetProfile
	//
	// Returns user's profile. Response is cached.
	//
	// ---
	// produces:
	// - application/json
	// parameters:
	// - name: id
	//   in: path
	//   required: true
	//   type: string
	// responses:
	//   '200':
	//     description: Profile
	//     schema:
	//       "$ref": "#/definitions/Profile"
	//   '404':
	//     description: profile not found
	//     schema:
	//       "$ref": "#/definitions/Error"

	p, err := s.s.GetProfile(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err, "get profile")
		return
	}

	api.WriteOK(w, http.StatusOK, schema.ToProfile(p))
}

func (s server) updateMe(w http.ResponseWriter, r *http.Request) {
	// swagger:operation PUT /profiles/me Profiles UpdateProfile
	//
	// Updates display name and bio of current user.
	//
	// ---
	// consumes:
	// - application/json
	// produces:
	// - application/json
	// parameters:
	// - name: request
	//   in: body
	//   required: true
	//   schema:
	//     "$ref": "#/definitions/UpdateProfileRequest"
	// responses:
	//   '200':
	//     description: Profile
	//     schema:
	//       "$ref": "#/definitions/Profile"
	//   '400':
	//     description: validation failed
	//     schema:
	//       "$ref": "#/definitions/Error"

	var req schema.UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id := getUser(r.Context()).ID

	p, err := s.s.UpdateProfile(r.Context(), id, &storage.UpdateProfileParams{
		DisplayName: req.DisplayName,
		Bio:         req.Bio,
	})
	if err != nil {
		writeServiceError(w, r, err, "update profile")
		return
	}

	s.invalidateProfile(r, id)

	api.WriteOK(w, http.StatusOK, schema.ToProfile(p))
}

func (s server) setProfileImage(w http.ResponseWriter, r *http.Request) {
	// swagger:operation POST /profiles/me/{kind} Profiles SetProfileImage
	//
	// Uploads avatar or cover image (multipart field `image`).
	//
	// ---
	// consumes:
	// - multipart/form-data
	// produces:
	// - application/json
	// parameters:
	// - name: kind
	//   in: path
	//   required: true
	//   type: string
	//   enum: [avatar, cover]
	// responses:
	//   '200':
	//     description: Profile
	//     schema:
	//       "$ref": "#/definitions/Profile"
	//   '400':
	//     description: validation failed
	//     schema:
	//       "$ref": "#/definitions/Error"

	kind := service.ImageKind(chi.URLParam(r, "kind"))
	if kind != service.AvatarImage && kind != service.CoverImage {
		api.WriteError(w, http.StatusNotFound, "unknown image kind")
		return
	}

	if !parseMultipartForm(w, r) {
		return
	}
	defer func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			log.WithError(err).Warn("failed to remove multipart form")
		}
	}()

	f, closeFn, err := formFile(r, "image")
	if err != nil {
		api.WriteFieldError(w, http.StatusBadRequest, "image", err.Error())
		return
	}
	defer closeFn()

	if f == nil {
		api.WriteFieldError(w, http.StatusBadRequest, "image", "No image selected.")
		return
	}

	id := getUser(r.Context()).ID

	p, err := s.s.SetProfileImage(r.Context(), id, kind, f)
	if err != nil {
		writeServiceError(w, r, err, "set profile image")
		return
	}

	s.invalidateProfile(r, id)

	api.WriteOK(w, http.StatusOK, schema.ToProfile(p))
}

func (s server) invalidateProfile(r *http.Request, id string) {
	if err := s.cache.Delete(r.Context(), "/v1/profiles/"+id); err != nil {
		api.GetLogger(r.Context()).WithError(err).Warn("failed to invalidate cached profile")
	}
}
