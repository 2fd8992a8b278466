package handler

import (
	"log/slog"
	"net/http"

	"explorer/internal/domain"
	"explorer/internal/domain/services"
	"explorer/internal/httputil"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// FolderHandler handles folder HTTP requests. Each route only sees the part
// of the folder service it needs.
type FolderHandler struct {
	reader  services.FolderReader
	writer  services.FolderWriter
	deleter services.FolderDeleter
	logger  *slog.Logger
}

// NewFolderHandler creates a new folder handler
func NewFolderHandler(
	reader services.FolderReader,
	writer services.FolderWriter,
	deleter services.FolderDeleter,
	logger *slog.Logger,
) *FolderHandler {
	return &FolderHandler{
		reader:  reader,
		writer:  writer,
		deleter: deleter,
		logger:  logger,
	}
}

type createFolderRequest struct {
	Name        string `json:"name"`
	ParentID    *int64 `json:"parentId"`
	IsContainer *bool  `json:"isContainer"`
}

func (r createFolderRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required),
		validation.Field(&r.ParentID, validation.NilOrNotEmpty, validation.Min(int64(1))),
	)
}

type renameFolderRequest struct {
	Name httputil.OptionalString `json:"name"`
}

// GetTree returns the root level of the lazy folder tree
// GET /api/v1/folders/tree (?eager=true for the full nested tree)
func (h *FolderHandler) GetTree(w http.ResponseWriter, r *http.Request) {
	if httputil.QueryBool(r, "eager") {
		tree, err := h.reader.GetFullTree(r.Context())
		if err != nil {
			handleError(w, r, h.logger, err)
			return
		}
		httputil.RespondJSON(w, http.StatusOK, tree)
		return
	}

	tree, err := h.reader.GetTree(r.Context())
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, tree)
}

// Search finds folders and files by name
// GET /api/v1/folders/search?q=&limit=
func (h *FolderHandler) Search(w http.ResponseWriter, r *http.Request) {
	results, err := h.reader.Search(r.Context(), r.URL.Query().Get("q"), httputil.QueryInt(r, "limit", 0))
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, results)
}

// SearchPage is the cursor-paginated search
// GET /api/v1/folders/search/cursor?q=&limit=&cursor=
func (h *FolderHandler) SearchPage(w http.ResponseWriter, r *http.Request) {
	page, err := h.reader.SearchPage(r.Context(), services.SearchRequest{
		Query:  r.URL.Query().Get("q"),
		Limit:  httputil.QueryInt(r, "limit", 0),
		Cursor: r.URL.Query().Get("cursor"),
	})
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, page)
}

// List returns one offset page of every node
// GET /api/v1/folders?page=&limit=&includeDeleted=
func (h *FolderHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := h.reader.List(r.Context(), services.ListRequest{
		Page:           httputil.QueryInt(r, "page", 1),
		Limit:          httputil.QueryInt(r, "limit", 0),
		IncludeDeleted: httputil.QueryBool(r, "includeDeleted"),
	})
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, page)
}

// Count counts nodes
// GET /api/v1/folders/count?includeDeleted=
func (h *FolderHandler) Count(w http.ResponseWriter, r *http.Request) {
	count, err := h.reader.Count(r.Context(), httputil.QueryBool(r, "includeDeleted"))
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, map[string]int{"count": count})
}

// GetFolder retrieves a folder by ID
// GET /api/v1/folders/{id}?includeDeleted=
func (h *FolderHandler) GetFolder(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	folder, err := h.reader.GetByID(r.Context(), id, httputil.QueryBool(r, "includeDeleted"))
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	if folder == nil {
		handleError(w, r, h.logger, domain.NewNotFound(id))
		return
	}

	httputil.RespondJSON(w, http.StatusOK, folder)
}

// ListChildren lists the direct children of a folder
// GET /api/v1/folders/{id}/children ("root" for the top level)
func (h *FolderHandler) ListChildren(w http.ResponseWriter, r *http.Request) {
	parentID, err := parseParentID(r)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	children, err := h.reader.ListChildren(r.Context(), parentID)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, children)
}

// ListChildrenPage lists children one cursor page at a time
// GET /api/v1/folders/{id}/children/cursor?limit=&cursor=
func (h *FolderHandler) ListChildrenPage(w http.ResponseWriter, r *http.Request) {
	parentID, err := parseParentID(r)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	page, err := h.reader.ListChildrenPage(r.Context(), parentID, services.PageRequest{
		Limit:  httputil.QueryInt(r, "limit", 0),
		Cursor: r.URL.Query().Get("cursor"),
	})
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, page)
}

// ListSubfolders expands one level of the lazy tree
// GET /api/v1/folders/{id}/subfolders ("root" for the top level)
func (h *FolderHandler) ListSubfolders(w http.ResponseWriter, r *http.Request) {
	parentID, err := parseParentID(r)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	nodes, err := h.reader.ListContainerChildren(r.Context(), parentID)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, nodes)
}

// CreateFolder creates a folder, or a file when isContainer is false
// POST /api/v1/folders
func (h *FolderHandler) CreateFolder(w http.ResponseWriter, r *http.Request) {
	var req createFolderRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		handleError(w, r, h.logger, domain.NewValidation("body", err.Error()))
		return
	}
	if err := req.Validate(); err != nil {
		handleError(w, r, h.logger, domain.NewValidation("body", err.Error()))
		return
	}

	isContainer := true
	if req.IsContainer != nil {
		isContainer = *req.IsContainer
	}

	folder, err := h.writer.Create(r.Context(), &services.CreateFolderRequest{
		Name:        req.Name,
		ParentID:    req.ParentID,
		IsContainer: isContainer,
	})
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, folder)
}

// RenameFolder renames a folder
// PATCH /api/v1/folders/{id}
func (h *FolderHandler) RenameFolder(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	var req renameFolderRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		handleError(w, r, h.logger, domain.NewValidation("body", err.Error()))
		return
	}
	if !req.Name.IsSet() {
		handleError(w, r, h.logger, domain.NewValidation("name", "Folder name is required"))
		return
	}

	folder, err := h.writer.Rename(r.Context(), id, *req.Name.Value)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, folder)
}

// DeleteFolder soft-deletes a folder and everything under it
// DELETE /api/v1/folders/{id}
func (h *FolderHandler) DeleteFolder(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	if err := h.deleter.SoftDelete(r.Context(), id); err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// PurgeFolder permanently deletes a folder and everything under it
// DELETE /api/v1/folders/{id}/permanent
func (h *FolderHandler) PurgeFolder(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	if err := h.deleter.HardDelete(r.Context(), id); err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	h.logger.Info("folder purged", "id", id, "user_id", httputil.GetUserID(r))
	w.WriteHeader(http.StatusNoContent)
}

// RestoreFolder restores a soft-deleted folder and everything under it
// POST /api/v1/folders/{id}/restore
func (h *FolderHandler) RestoreFolder(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	folder, err := h.deleter.Restore(r.Context(), id)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, folder)
}
