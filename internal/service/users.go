package service

import (
	"context"
	"errors"
	"fmt"

	"tourbook/internal/auth"
	apperrors "tourbook/internal/errors"
	"tourbook/internal/models"
	"tourbook/internal/repository"
)

type UserService struct {
	*base
}

// Sync stores the profile carried by the caller's token
func (s *UserService) Sync(ctx context.Context) (*models.User, error) {
	id, err := auth.RequireUser(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	user := &models.User{
		ID:        id.UserID,
		Email:     id.Email,
		Name:      id.Name,
		Role:      id.Role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.UpsertUser(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to sync user: %w", err)
	}
	return user, nil
}

func (s *UserService) Current(ctx context.Context) (*models.User, error) {
	id, err := auth.RequireUser(ctx)
	if err != nil {
		return nil, err
	}
	user, err := s.store.GetUser(ctx, id.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: user profile not synced", apperrors.ErrUnauthorized)
		}
		return nil, err
	}
	return user, nil
}
