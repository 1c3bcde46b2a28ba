package api

import (
	"fmt"

	"github.com/verax/verax/internal/domain/model"
)

// parseKey decodes a 64-char hex identity key from a path or body field.
func parseKey(s string) (model.IdentityKey, error) {
	key, err := model.ParseIdentityKey(s)
	if err != nil {
		return model.IdentityKey{}, fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	return key, nil
}
