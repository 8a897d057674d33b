package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"timecapsule/pkg/apperr"
	"timecapsule/pkg/logger"
	"timecapsule/pkg/members"
	"timecapsule/pkg/models"
	"timecapsule/pkg/store/keys"
	"timecapsule/pkg/timeutil"
)

// RegisterUser stores an account. Registering an existing email returns the
// stored account with created=false.
func (s *Store) RegisterUser(ctx context.Context, u models.User) (models.User, bool, error) {
	if err := ctx.Err(); err != nil {
		return models.User{}, false, err
	}
	u.Email = models.NormalizeEmail(u.Email)
	u.Name = strings.TrimSpace(u.Name)
	if err := keys.ValidateEmail(u.Email); err != nil {
		return models.User{}, false, apperr.Validation("email", err.Error())
	}
	existing, err := s.GetUser(ctx, u.Email)
	if err == nil {
		return existing, false, nil
	}
	if !IsNotFound(err) {
		return models.User{}, false, err
	}
	if u.Name == "" {
		u.Name = members.UnknownName
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = timeutil.Now()
	}
	data, err := json.Marshal(u)
	if err != nil {
		return models.User{}, false, fmt.Errorf("marshal user: %w", err)
	}
	b, err := s.newBatch()
	if err != nil {
		return models.User{}, false, err
	}
	defer b.Close()
	if err := b.Set([]byte(keys.GenUserKey(u.Email)), data, nil); err != nil {
		return models.User{}, false, err
	}
	if err := s.apply(b); err != nil {
		return models.User{}, false, fmt.Errorf("register user: %w", err)
	}
	logger.Info("user_registered", "email", u.Email)
	return u, true, nil
}

// GetUser loads an account by email.
func (s *Store) GetUser(_ context.Context, email string) (models.User, error) {
	var u models.User
	err := s.getJSON(keys.GenUserKey(models.NormalizeEmail(email)), &u)
	return u, err
}

// VerifyMembers partitions proposed members into registered and unregistered
// accounts.
func (s *Store) VerifyMembers(ctx context.Context, proposed []models.Member) (models.Partition, error) {
	var lookupErr error
	p := members.Resolve(proposed, func(email string) (models.User, bool) {
		u, err := s.GetUser(ctx, email)
		if err != nil {
			if !IsNotFound(err) && lookupErr == nil {
				lookupErr = err
			}
			return models.User{}, false
		}
		return u, true
	})
	if lookupErr != nil {
		return models.Partition{}, fmt.Errorf("verify members: %w", lookupErr)
	}
	if len(p.NotFound) > 0 {
		logger.Info("member_resolution_partial", "found", len(p.Found), "not_found", len(p.NotFound))
	}
	return p, nil
}
