package service

import (
	"context"
	"errors"
	"fmt"

	"familydose/internal/apperr"
	"familydose/internal/database"
	"familydose/internal/lock"
	"familydose/internal/models"
	"familydose/internal/repository"
	"familydose/internal/validation"
)

// loadActor resolves the authenticated identity against the store
func loadActor(ctx context.Context, users *repository.UserRepository, actor models.Actor) (*models.User, error) {
	u, err := users.GetByID(ctx, actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if u == nil {
		return nil, apperr.NotFoundf("user %s not found", actor.UserID)
	}
	if u.Role != actor.Role {
		return nil, apperr.Forbiddenf("role %s does not match user %s", actor.Role, actor.UserID)
	}
	return u, nil
}

// loadUser fetches a user or fails with NotFound
func loadUser(ctx context.Context, users *repository.UserRepository, userID string) (*models.User, error) {
	u, err := users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if u == nil {
		return nil, apperr.NotFoundf("user %s not found", userID)
	}
	return u, nil
}

// loadItem fetches a household's catalog item or fails with NotFound
func loadItem(ctx context.Context, catalog *repository.CatalogRepository, itemID, connect string) (*models.CatalogItem, error) {
	item, err := catalog.Get(ctx, itemID, connect)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog item: %w", err)
	}
	if item == nil {
		return nil, apperr.NotFoundf("item %s not found", itemID)
	}
	return item, nil
}

func requireParent(u *models.User, action string) error {
	if !models.CanManageCatalog(u.Role) {
		return apperr.Forbiddenf("only a parent may %s", action)
	}
	return nil
}

func requireSameHousehold(requester, target *models.User) error {
	if requester.Connect != target.Connect {
		return apperr.Forbiddenf("user %s is not in your household", target.ID)
	}
	return nil
}

// requireSelfOrParent lets a parent act for any member and a child only for itself
func requireSelfOrParent(requester, target *models.User) error {
	if err := requireSameHousehold(requester, target); err != nil {
		return err
	}
	if !requester.IsParent() && requester.ID != target.ID {
		return apperr.Forbiddenf("children may only act for themselves")
	}
	return nil
}

// invalid converts a validation failure into InvalidArgument
func invalid(err error) error {
	var ve validation.ValidationError
	if errors.As(err, &ve) {
		return apperr.Invalidf("%s", ve.Error())
	}
	return apperr.Wrap(apperr.InvalidArgument, err, "invalid input")
}

// householdTx runs fn under the household's bounded-wait lock, inside one
// transaction that also holds the parent row lock.
func householdTx(ctx context.Context, db *database.DB, locks *lock.Keyed, connect string, fn func(repos *repository.Repositories) error) error {
	unlock, err := locks.Lock(ctx, lock.HouseholdKey(connect))
	if err != nil {
		return err
	}
	defer unlock()

	return db.InTx(ctx, func(tx *database.Tx) error {
		repos := repository.New(tx)
		parent, err := repos.Users.LockParent(ctx, connect)
		if err != nil {
			return err
		}
		if parent == nil {
			return apperr.NotFoundf("household %s not found", connect)
		}
		return fn(repos)
	})
}
