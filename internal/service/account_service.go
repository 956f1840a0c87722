package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"familydose/internal/apperr"
	"familydose/internal/credentials"
	"familydose/internal/database"
	"familydose/internal/lock"
	"familydose/internal/models"
	"familydose/internal/repository"
	"familydose/internal/security"
	"familydose/internal/validation"
)

// maxConnectAttempts bounds retries when a generated connect code collides
const maxConnectAttempts = 10

// NewParent is the signup input for a household's parent
type NewParent struct {
	ID        string `json:"id"`
	Password  string `json:"password"`
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	Age       *int   `json:"age,omitempty"`
	BirthDate string `json:"birth_date,omitempty"`
}

// NewChild is the signup input for a child joining an existing household
type NewChild struct {
	ID            string `json:"id"`
	Password      string `json:"password"`
	Name          string `json:"name"`
	Age           *int   `json:"age,omitempty"`
	BirthDate     string `json:"birth_date,omitempty"`
	ParentConnect string `json:"parent_connect"`
}

// AccountService manages households, their members and paired hardware
type AccountService struct {
	db       *database.DB
	repos    *repository.Repositories
	locks    *lock.Keyed
	hashCost int
	log      *zap.Logger
}

// NewAccountService creates a new account service
func NewAccountService(db *database.DB, repos *repository.Repositories, locks *lock.Keyed, hashCost int, logger *zap.Logger) *AccountService {
	return &AccountService{
		db:       db,
		repos:    repos,
		locks:    locks,
		hashCost: hashCost,
		log:      logger,
	}
}

func validateSignup(id, password, name string, age *int, birthDate string) error {
	if err := validation.ValidateID("id", id); err != nil {
		return invalid(err)
	}
	if err := validation.ValidatePassword(password); err != nil {
		return invalid(err)
	}
	if err := validation.ValidateName(name); err != nil {
		return invalid(err)
	}
	if err := validation.ValidateAge(age); err != nil {
		return invalid(err)
	}
	if err := validation.ValidateDate("birth_date", birthDate); err != nil {
		return invalid(err)
	}
	return nil
}

func (s *AccountService) ensureIDFree(ctx context.Context, id string) error {
	existing, err := s.repos.Users.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to check existing user: %w", err)
	}
	if existing != nil {
		return apperr.Conflictf("user id %s is already taken", id)
	}
	return nil
}

// CreateParent registers a parent and a fresh household connect code
func (s *AccountService) CreateParent(ctx context.Context, in NewParent) (*models.User, error) {
	if err := validateSignup(in.ID, in.Password, in.Name, in.Age, in.BirthDate); err != nil {
		return nil, err
	}
	if in.Email != "" {
		if err := validation.ValidateEmail(in.Email); err != nil {
			return nil, invalid(err)
		}
	}
	if err := s.ensureIDFree(ctx, in.ID); err != nil {
		return nil, err
	}

	hash, err := security.HashPassword(in.Password, s.hashCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		ID:           in.ID,
		Role:         models.RoleParent,
		Name:         strings.TrimSpace(in.Name),
		PasswordHash: hash,
		Email:        strings.TrimSpace(in.Email),
		Age:          in.Age,
		BirthDate:    in.BirthDate,
	}

	for attempt := 0; attempt < maxConnectAttempts; attempt++ {
		code, err := credentials.GenerateConnectCode()
		if err != nil {
			return nil, fmt.Errorf("failed to generate connect code: %w", err)
		}
		exists, err := s.repos.Users.ConnectExists(ctx, code)
		if err != nil {
			return nil, err
		}
		if exists {
			continue
		}

		user.Connect = code
		err = s.repos.Users.Create(ctx, user)
		if err == nil {
			s.log.Info("household created", zap.String("user_id", user.ID), zap.String("connect", code))
			return user, nil
		}
		if !errors.Is(err, repository.ErrDuplicate) {
			return nil, err
		}
		// Either the id was taken meanwhile or another signup won the same code.
		if err := s.ensureIDFree(ctx, in.ID); err != nil {
			return nil, err
		}
	}

	return nil, fmt.Errorf("failed to generate unique connect code after %d attempts", maxConnectAttempts)
}

// CreateChild registers a child inside the parent's household
func (s *AccountService) CreateChild(ctx context.Context, in NewChild) (*models.User, error) {
	if err := validateSignup(in.ID, in.Password, in.Name, in.Age, in.BirthDate); err != nil {
		return nil, err
	}
	connect := strings.ToUpper(strings.TrimSpace(in.ParentConnect))
	if connect == "" {
		return nil, apperr.Invalidf("parent connect code is required")
	}

	parent, err := s.repos.Users.GetParentByConnect(ctx, connect)
	if err != nil {
		return nil, err
	}
	if parent == nil {
		return nil, apperr.NotFoundf("no household with connect code %s", connect)
	}
	if err := s.ensureIDFree(ctx, in.ID); err != nil {
		return nil, err
	}

	hash, err := security.HashPassword(in.Password, s.hashCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	child := &models.User{
		ID:           in.ID,
		Role:         models.RoleChild,
		Connect:      connect,
		Name:         strings.TrimSpace(in.Name),
		PasswordHash: hash,
		Age:          in.Age,
		BirthDate:    in.BirthDate,
	}

	// The household's dispenser is copied under the same lock PairDispenser takes.
	err = householdTx(ctx, s.db, s.locks, connect, func(repos *repository.Repositories) error {
		locked, err := repos.Users.GetParentByConnect(ctx, connect)
		if err != nil {
			return err
		}
		child.DispenserID = locked.DispenserID
		return repos.Users.Create(ctx, child)
	})
	if errors.Is(err, repository.ErrDuplicate) {
		return nil, apperr.Conflictf("user id %s is already taken", in.ID)
	}
	if err != nil {
		return nil, err
	}

	s.log.Info("child joined household", zap.String("user_id", child.ID), zap.String("connect", connect))
	return child, nil
}

// PairDispenser binds a dispenser to the caller's whole household
func (s *AccountService) PairDispenser(ctx context.Context, actor models.Actor, dispenserID string) error {
	dispenserID = strings.TrimSpace(dispenserID)
	if dispenserID == "" {
		return apperr.Invalidf("dispenser id is required")
	}

	requester, err := loadActor(ctx, s.repos.Users, actor)
	if err != nil {
		return err
	}
	if err := requireParent(requester, "pair a dispenser"); err != nil {
		return err
	}

	err = householdTx(ctx, s.db, s.locks, requester.Connect, func(repos *repository.Repositories) error {
		owners, err := repos.Users.CountDispenserOwners(ctx, dispenserID, requester.Connect)
		if err != nil {
			return err
		}
		if owners > 0 {
			return apperr.Conflictf("dispenser %s is already paired to another household", dispenserID)
		}
		_, err = repos.Users.SetDispenserForConnect(ctx, requester.Connect, dispenserID)
		return err
	})
	if err != nil {
		return err
	}

	s.log.Info("dispenser paired",
		zap.String("connect", requester.Connect),
		zap.String("dispenser_id", dispenserID),
		zap.String("user_id", requester.ID),
	)
	return nil
}

// PairDailyKit binds a personal daily kit to the caller
func (s *AccountService) PairDailyKit(ctx context.Context, actor models.Actor, kitID string) error {
	kitID = strings.TrimSpace(kitID)
	if kitID == "" {
		return apperr.Invalidf("kit id is required")
	}

	user, err := loadActor(ctx, s.repos.Users, actor)
	if err != nil {
		return err
	}

	owner, err := s.repos.Users.GetByKitID(ctx, kitID)
	if err != nil {
		return err
	}
	if owner != nil && owner.ID != user.ID {
		return apperr.Conflictf("kit %s is already bound to another user", kitID)
	}

	if err := s.repos.Users.SetKitID(ctx, user.ID, kitID); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return apperr.Conflictf("kit %s is already bound to another user", kitID)
		}
		return err
	}

	s.log.Info("daily kit paired", zap.String("user_id", user.ID), zap.String("kit_id", kitID))
	return nil
}

// GetUser retrieves a user by id
func (s *AccountService) GetUser(ctx context.Context, userID string) (*models.User, error) {
	return loadUser(ctx, s.repos.Users, userID)
}

// Household lists a household's members, parent first
func (s *AccountService) Household(ctx context.Context, connect string) (*models.Household, error) {
	users, err := s.repos.Users.ListByConnect(ctx, connect)
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, apperr.NotFoundf("household %s not found", connect)
	}

	h := &models.Household{Connect: connect, Children: []models.User{}}
	for i := range users {
		if users[i].IsParent() {
			h.Parent = &users[i]
			h.DispenserID = users[i].DispenserID
			continue
		}
		h.Children = append(h.Children, users[i])
	}
	return h, nil
}

func (s *AccountService) loadChildOf(ctx context.Context, parent *models.User, childID string) (*models.User, error) {
	child, err := loadUser(ctx, s.repos.Users, childID)
	if err != nil {
		return nil, err
	}
	if err := requireSameHousehold(parent, child); err != nil {
		return nil, err
	}
	if child.IsParent() {
		return nil, apperr.Forbiddenf("a parent account cannot be changed here")
	}
	return child, nil
}

// UpdateChild changes a child's display name and age
func (s *AccountService) UpdateChild(ctx context.Context, actor models.Actor, childID, name string, age *int) (*models.User, error) {
	parent, err := loadActor(ctx, s.repos.Users, actor)
	if err != nil {
		return nil, err
	}
	if err := requireParent(parent, "edit a child"); err != nil {
		return nil, err
	}
	if err := validation.ValidateName(name); err != nil {
		return nil, invalid(err)
	}
	if err := validation.ValidateAge(age); err != nil {
		return nil, invalid(err)
	}

	child, err := s.loadChildOf(ctx, parent, childID)
	if err != nil {
		return nil, err
	}
	if err := s.repos.Users.UpdateProfile(ctx, child.ID, strings.TrimSpace(name), age); err != nil {
		return nil, err
	}
	return loadUser(ctx, s.repos.Users, child.ID)
}

// RemoveChild deletes a child with its schedules and dose history, and
// strikes the child from every item's target users
func (s *AccountService) RemoveChild(ctx context.Context, actor models.Actor, childID string) error {
	parent, err := loadActor(ctx, s.repos.Users, actor)
	if err != nil {
		return err
	}
	if err := requireParent(parent, "remove a child"); err != nil {
		return err
	}
	child, err := s.loadChildOf(ctx, parent, childID)
	if err != nil {
		return err
	}

	err = householdTx(ctx, s.db, s.locks, parent.Connect, func(repos *repository.Repositories) error {
		if err := repos.Schedules.DeleteForUser(ctx, child.ID); err != nil {
			return err
		}
		if err := repos.Doses.DeleteForUser(ctx, child.ID); err != nil {
			return err
		}
		items, err := repos.Catalog.ListByConnect(ctx, parent.Connect)
		if err != nil {
			return err
		}
		for i := range items {
			if !items[i].DropTarget(child.ID) {
				continue
			}
			if err := repos.Catalog.Update(ctx, &items[i]); err != nil {
				return err
			}
		}
		return repos.Users.Delete(ctx, child.ID)
	})
	if err != nil {
		return err
	}

	s.log.Info("child removed", zap.String("connect", parent.Connect), zap.String("user_id", child.ID))
	return nil
}

// pairingLink is shown as a QR code so unknown hardware can be claimed
type pairingLink struct {
	Type string `json:"type"`
	UID  string `json:"uid"`
}

// ResolveUID identifies a scanned hardware UID as a kit, a dispenser or neither
func (s *AccountService) ResolveUID(ctx context.Context, uid string) (*models.UIDResolution, error) {
	uid = strings.TrimSpace(uid)
	if uid == "" {
		return nil, apperr.Invalidf("uid is required")
	}

	owner, err := s.repos.Users.GetByKitID(ctx, uid)
	if err != nil {
		return nil, err
	}
	if owner != nil {
		return &models.UIDResolution{
			Kind:        models.UIDKit,
			UID:         uid,
			User:        owner,
			DispenserID: owner.DispenserID,
			Connect:     owner.Connect,
		}, nil
	}

	parent, err := s.repos.Users.GetParentByDispenserID(ctx, uid)
	if err != nil {
		return nil, err
	}
	if parent != nil {
		return &models.UIDResolution{
			Kind:        models.UIDDispenser,
			UID:         uid,
			DispenserID: uid,
			Connect:     parent.Connect,
		}, nil
	}

	payload, err := json.Marshal(pairingLink{Type: "familydose.pair", UID: uid})
	if err != nil {
		return nil, fmt.Errorf("failed to build pairing payload: %w", err)
	}
	return &models.UIDResolution{
		Kind:           models.UIDUnknown,
		UID:            uid,
		PairingPayload: string(payload),
	}, nil
}
