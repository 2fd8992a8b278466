package handler

import "net/http"

// RegisterRoutes wires the folder and health endpoints onto mux (Go 1.22+
// method patterns). protect wraps the mutating routes.
func RegisterRoutes(mux *http.ServeMux, folders *FolderHandler, health *HealthHandler, protect func(http.Handler) http.Handler) {
	if protect == nil {
		protect = func(h http.Handler) http.Handler { return h }
	}
	guarded := func(fn http.HandlerFunc) http.Handler { return protect(fn) }

	// Health
	mux.HandleFunc("GET /health", health.Health)
	mux.HandleFunc("GET /health/live", health.Live)
	mux.HandleFunc("GET /health/ready", health.Ready)

	// Folder reads. Literal segments take precedence over {id}.
	mux.HandleFunc("GET /api/v1/folders", folders.List)
	mux.HandleFunc("GET /api/v1/folders/tree", folders.GetTree)
	mux.HandleFunc("GET /api/v1/folders/count", folders.Count)
	mux.HandleFunc("GET /api/v1/folders/search", folders.Search)
	mux.HandleFunc("GET /api/v1/folders/search/cursor", folders.SearchPage)
	mux.HandleFunc("GET /api/v1/folders/{id}", folders.GetFolder)
	mux.HandleFunc("GET /api/v1/folders/{id}/children", folders.ListChildren)
	mux.HandleFunc("GET /api/v1/folders/{id}/children/cursor", folders.ListChildrenPage)
	mux.HandleFunc("GET /api/v1/folders/{id}/subfolders", folders.ListSubfolders)

	// Folder writes
	mux.Handle("POST /api/v1/folders", guarded(folders.CreateFolder))
	mux.Handle("PATCH /api/v1/folders/{id}", guarded(folders.RenameFolder))
	mux.Handle("DELETE /api/v1/folders/{id}", guarded(folders.DeleteFolder))
	mux.Handle("DELETE /api/v1/folders/{id}/permanent", guarded(folders.PurgeFolder))
	mux.Handle("POST /api/v1/folders/{id}/restore", guarded(folders.RestoreFolder))
}
