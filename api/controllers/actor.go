package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/sabunku/storefront-backend/api/middleware"
	"github.com/sabunku/storefront-backend/pkg/outbox"
)

// actorFromRequest returns the admin recorded on emitted events, or nil
// when the request carries no admin identity.
func actorFromRequest(r *http.Request) *outbox.ActorRef {
	adminID, err := uuid.Parse(middleware.AdminIDFromContext(r.Context()))
	if err != nil {
		return nil
	}
	return &outbox.ActorRef{AdminID: adminID, Role: middleware.RoleFromContext(r.Context())}
}
