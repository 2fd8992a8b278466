package handler

import (
	"net/http"
	"strconv"

	"explorer/internal/domain"
)

// parseID reads the {id} path value as a positive folder id
func parseID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.NewValidation("id", "Invalid folder ID")
	}
	return id, nil
}

// parseParentID reads the {id} path value of a children route; "root" selects
// the top level and yields nil
func parseParentID(r *http.Request) (*int64, error) {
	if r.PathValue("id") == "root" {
		return nil, nil
	}
	id, err := parseID(r)
	if err != nil {
		return nil, err
	}
	return &id, nil
}
