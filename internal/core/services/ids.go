package services

import (
	"github.com/google/uuid"

	"github.com/custodia-labs/mirae/internal/core/domain"
)

// newProvisionalID mints a client-side id for an entity whose create has
// not resolved. It can never collide with a store-assigned id.
func newProvisionalID() string {
	return domain.ProvisionalPrefix + uuid.NewString()
}
