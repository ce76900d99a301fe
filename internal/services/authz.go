package services

import (
	"context"
	"database/sql"
	"errors"

	"bankloan/internal/models"
)

type RoleStore interface {
	GetRole(ctx context.Context, customerID string) (models.Role, error)
}

// requireCapability loads the caller's role from storage rather than
// trusting anything presented with the request.
func requireCapability(ctx context.Context, roles RoleStore, customerID string, c models.Capability) (models.Role, error) {
	role, err := roles.GetRole(ctx, customerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrMissingCapability
		}
		return "", err
	}
	if !role.Can(c) {
		return role, ErrMissingCapability
	}
	return role, nil
}
