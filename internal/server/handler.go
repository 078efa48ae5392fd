package server

import (
	"encoding/json"
	"net/http"

	"github.com/Decentr-net/agora/internal/api"
	"github.com/Decentr-net/agora/internal/entities"
	"github.com/Decentr-net/agora/internal/schema"
)

func (s server) listItems(w http.ResponseWriter, r *http.Request) {
	// swagger:operation GET /{collection} Items ListItems
	//
	// Returns items of collection, newest first.
	//
	// ---
	// produces:
	// - application/json
	// parameters:
	// - name: collection
	//   in: path
	//   required: true
	//   type: string
	//   enum: [posts, shorts]
	// - name: author
	//   description: filters items by author
	//   in: query
	//   required: false
	// - name: limit
	//   description: limits count of returned items
	//   in: query
	//   required: false
	//   default: 20
	//   minimum: 1
	//   maximum: 100
	// - name: after
	//   description: sets not-including bound for list by item id
	//   in: query
	//   required: false
	//   example: df870e39-6fcb-11eb-9461-0242ac11000b
	// responses:
	//   '200':
	//     description: Items
	//     schema:
	//       "$ref": "#/definitions/Items"
	//   '400':
	//     description: bad request
	//     schema:
	//       "$ref": "#/definitions/Error"
	//   '401':
	//     description: unauthorized
	//     schema:
	//       "$ref": "#/definitions/Error"
	//   '500':
	//     description: internal server error
	//     schema:
	//       "$ref": "#/definitions/Error"

	c, ok := collectionParam(w, r)
	if !ok {
		return
	}

	params, err := extractListParamsFromQuery(c, r.URL.Query())
	if err != nil {
		api.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	items, err := s.s.ListItems(r.Context(), params)
	if err != nil {
		writeServiceError(w, r, err, "list items")
		return
	}

	api.WriteOK(w, http.StatusOK, schema.NewItems(c, items))
}

func (s server) getItem(w http.ResponseWriter, r *http.Request) {
	// swagger:operation GET /{collection}/{id} Items GetItem
	//
	// Returns a post or a short.
	//
	// ---
	// produces:
	// - application/json
	// responses:
	//   '200':
	//     description: Post or Short depending on collection
	//   '404':
	//     description: item not found
	//     schema:
	//       "$ref": "#/definitions/Error"

	c, ok := collectionParam(w, r)
	if !ok {
		return
	}

	id, ok := idParam(w, r)
	if !ok {
		return
	}

	item, err := s.s.GetItem(r.Context(), c, id)
	if err != nil {
		writeServiceError(w, r, err, "get item")
		return
	}

	writeItem(w, http.StatusOK, item)
}

func (s server) createItem(w http.ResponseWriter, r *http.Request) {
	// swagger:operation POST /{collection} Items CreateItem
	//
	// Creates a post (multipart fields `text`, `image`) or a short (multipart fields `caption`, `video`).
	//
	// ---
	// consumes:
	// - multipart/form-data
	// produces:
	// - application/json
	// responses:
	//   '201':
	//     description: Created Post or Short
	//   '400':
	//     description: validation failed
	//     schema:
	//       "$ref": "#/definitions/Error"
	//   '412':
	//     description: user has no profile yet
	//     schema:
	//       "$ref": "#/definitions/Error"
	//   '413':
	//     description: file is too large
	//     schema:
	//       "$ref": "#/definitions/Error"

	c, ok := collectionParam(w, r)
	if !ok {
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

	u := getUser(r.Context())

	var (
		item *entities.Item
		err  error
	)

	switch c {
	case entities.PostsCollection:
		f, closeFn, ferr := formFile(r, "image")
		if ferr != nil {
			api.WriteFieldError(w, http.StatusBadRequest, "image", ferr.Error())
			return
		}
		defer closeFn()

		item, err = s.s.CreatePost(r.Context(), u.ID, r.FormValue("text"), f)
	case entities.ShortsCollection:
		f, closeFn, ferr := formFile(r, "video")
		if ferr != nil {
			api.WriteFieldError(w, http.StatusBadRequest, "video", ferr.Error())
			return
		}
		defer closeFn()

		item, err = s.s.CreateShort(r.Context(), u.ID, r.FormValue("caption"), f)
	}

	if err != nil {
		writeServiceError(w, r, err, "create item")
		return
	}

	writeItem(w, http.StatusCreated, item)
}

func (s server) deleteItem(w http.ResponseWriter, r *http.Request) {
	// swagger:operation DELETE /{collection}/{id} Items DeleteItem
	//
	// Deletes own item.
	//
	// ---
	// responses:
	//   '204':
	//     description: deleted
	//   '403':
	//     description: item belongs to another user
	//     schema:
	//       "$ref": "#/definitions/Error"
	//   '404':
	//     description: item not found
	//     schema:
	//       "$ref": "#/definitions/Error"

	c, ok := collectionParam(w, r)
	if !ok {
		return
	}

	id, ok := idParam(w, r)
	if !ok {
		return
	}

	if err := s.s.DeleteItem(r.Context(), c, id, getUser(r.Context()).ID); err != nil {
		writeServiceError(w, r, err, "delete item")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s server) toggleLike(w http.ResponseWriter, r *http.Request) {
	// swagger:operation POST /{collection}/{id}/like Interactions ToggleLike
	//
	// Atomically likes item or removes the like when it's already there.
	//
	// ---
	// produces:
	// - application/json
	// responses:
	//   '200':
	//     description: like state after the call
	//     schema:
	//       "$ref": "#/definitions/LikeResponse"
	//   '404':
	//     description: item not found
	//     schema:
	//       "$ref": "#/definitions/Error"

	c, ok := collectionParam(w, r)
	if !ok {
		return
	}

	id, ok := idParam(w, r)
	if !ok {
		return
	}

	liked, err := s.s.ToggleLike(r.Context(), c, id, getUser(r.Context()).ID)
	if err != nil {
		writeServiceError(w, r, err, "toggle like")
		return
	}

	api.WriteOK(w, http.StatusOK, schema.LikeResponse{Liked: liked})
}

func (s server) addComment(w http.ResponseWriter, r *http.Request) {
	// swagger:operation POST /{collection}/{id}/comments Interactions AddComment
	//
	// Appends comment to item. Requests with the same Idempotency-Key are accepted once.
	//
	// ---
	// consumes:
	// - application/json
	// produces:
	// - application/json
	// parameters:
	// - name: Idempotency-Key
	//   in: header
	//   required: false
	//   type: string
	// - name: request
	//   in: body
	//   required: true
	//   schema:
	//     "$ref": "#/definitions/CreateCommentRequest"
	// responses:
	//   '201':
	//     description: created comment
	//     schema:
	//       "$ref": "#/definitions/Comment"
	//   '400':
	//     description: validation failed
	//     schema:
	//       "$ref": "#/definitions/Error"
	//   '409':
	//     description: duplicate submission
	//     schema:
	//       "$ref": "#/definitions/Error"

	c, ok := collectionParam(w, r)
	if !ok {
		return
	}

	id, ok := idParam(w, r)
	if !ok {
		return
	}

	var req schema.CreateCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	comment, err := s.s.AddComment(r.Context(), c, id, getUser(r.Context()).ID, req.Text, r.Header.Get(idempotencyKeyHeader))
	if err != nil {
		writeServiceError(w, r, err, "add comment")
		return
	}

	api.WriteOK(w, http.StatusCreated, schema.ToComment(*comment))
}

func writeItem(w http.ResponseWriter, status int, item *entities.Item) {
	if item.Collection == entities.ShortsCollection {
		api.WriteOK(w, status, schema.ToShort(item))
		return
	}

	api.WriteOK(w, status, schema.ToPost(item))
}
