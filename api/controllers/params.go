package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/threadkart/marketplace-backend/api/middleware"
	"github.com/threadkart/marketplace-backend/api/validators"
	"github.com/threadkart/marketplace-backend/pkg/enums"
	pkgerrors "github.com/threadkart/marketplace-backend/pkg/errors"
	"github.com/threadkart/marketplace-backend/pkg/pagination"
)

// ParseUUIDParam extracts and validates a UUID path parameter.
func ParseUUIDParam(r *http.Request, name string) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, name))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, name+" is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+name)
	}
	return id, nil
}

// PaginationParams reads limit/cursor query parameters.
func PaginationParams(r *http.Request) (pagination.Params, error) {
	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return pagination.Params{}, err
	}
	return pagination.Params{
		Limit:  limit,
		Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
	}, nil
}

// PagedPayload is the body of every list response: one page of items plus
// the cursor for the next page, empty when the listing is exhausted.
type PagedPayload[T any] struct {
	Items      []T    `json:"items"`
	NextCursor string `json:"next_cursor,omitempty"`
}

// PageOf trims the repository lookahead row and packs the page with its
// next cursor.
func PageOf[T any](items []T, params pagination.Params, cursorOf func(T) pagination.Cursor) PagedPayload[T] {
	page, next := pagination.Page(items, params.Limit, cursorOf)
	if page == nil {
		page = []T{}
	}
	return PagedPayload[T]{Items: page, NextCursor: next}
}

// CallerIdentity resolves the authenticated user id and role from the
// request context seeded by the auth middleware.
func CallerIdentity(r *http.Request) (uuid.UUID, enums.ActorRole, error) {
	rawID := middleware.UserIDFromContext(r.Context())
	if rawID == "" {
		return uuid.Nil, "", pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	userID, err := uuid.Parse(rawID)
	if err != nil {
		return uuid.Nil, "", pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid subject")
	}
	role, err := enums.ParseActorRole(middleware.RoleFromContext(r.Context()))
	if err != nil {
		return uuid.Nil, "", pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "unknown role")
	}
	return userID, role, nil
}
