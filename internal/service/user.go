package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/Gopher0727/TeamMatch/internal/lock"
	"github.com/Gopher0727/TeamMatch/internal/model"
	"github.com/Gopher0727/TeamMatch/internal/repository"
	logger "github.com/Gopher0727/TeamMatch/middleware/log"
	"github.com/Gopher0727/TeamMatch/pkg/errcode"
)

// RegisterRequest represents a user registration request
type RegisterRequest struct {
	Username      string `json:"username" binding:"required"`
	Password      string `json:"password" binding:"required"`
	CheckPassword string `json:"checkPassword" binding:"required"`
}

// LoginRequest represents a user login request
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// IUserService defines the identity operations
type IUserService interface {
	Register(ctx context.Context, req *RegisterRequest) (int64, error)
	Login(ctx context.Context, req *LoginRequest) (*model.SafeUser, error)
	GetCurrent(ctx context.Context, callerID int64) (*model.SafeUser, error)
	UpdateProfile(ctx context.Context, callerID int64, patch *model.UserPatch) error
	SetAccountStatus(ctx context.Context, userID int64, status int8) error
	SearchByTags(ctx context.Context, tags []string, page model.PageRequest) (*model.Page[model.SafeUser], error)
	SearchByUsername(ctx context.Context, username string, page model.PageRequest) (*model.Page[model.SafeUser], error)
	Recommend(ctx context.Context, page model.PageRequest) (*model.Page[model.SafeUser], error)
	IsAdmin(ctx context.Context, userID int64) (bool, error)
}

// UserService implements the IUserService interface
type UserService struct {
	userRepo repository.IUserRepository
	hasher   PasswordHasher
	locker   lock.Locker
	log      *logger.Logger
	now      func() time.Time
}

// NewUserService creates a new IUserService instance
func NewUserService(userRepo repository.IUserRepository, hasher PasswordHasher, locker lock.Locker, log *logger.Logger) *UserService {
	return &UserService{
		userRepo: userRepo,
		hasher:   hasher,
		locker:   locker,
		log:      log.WithFields(zap.String("component", "user_service")),
		now:      time.Now,
	}
}

// Sanitize projects a user onto the fields that may leave the service.
func Sanitize(u *model.User) model.SafeUser {
	tags := []string(u.Tags)
	if tags == nil {
		tags = []string{}
	}
	return model.SafeUser{
		ID:          u.ID,
		Username:    u.Username,
		UnionID:     u.UnionID,
		OpenID:      u.OpenID,
		Phone:       u.Phone,
		Email:       u.Email,
		Sex:         u.Sex,
		Avatar:      u.Avatar,
		Profile:     u.Profile,
		Status:      u.Status,
		Role:        u.Role,
		Tags:        tags,
		LastLoginAt: u.LastLoginAt,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

// Register creates an enabled account and returns its id.
// The existence check and the insert run under a per-username lock; the
// unique index on username catches whatever slips past it.
func (s *UserService) Register(ctx context.Context, req *RegisterRequest) (int64, error) {
	if req == nil || req.Username == "" || req.Password == "" || req.CheckPassword == "" {
		return 0, errcode.ErrParamsNull
	}
	if req.Password != req.CheckPassword {
		return 0, errcode.New(errcode.KindValidation, errcode.ErrPassword.Code, "passwords do not match")
	}
	if err := validateUsername(req.Username); err != nil {
		return 0, err
	}
	if err := validatePassword(req.Password); err != nil {
		return 0, err
	}

	var id int64
	err := withLocks(ctx, s.locker, s.log, func() error {
		count, err := s.userRepo.CountByUsername(ctx, req.Username)
		if err != nil {
			return errcode.ErrSystem.Wrap(err)
		}
		if count > 0 {
			return errcode.ErrAccountExists
		}

		hash, err := s.hasher.Hash(req.Password)
		if err != nil {
			return errcode.ErrSystem.Wrap(err)
		}

		user := &model.User{
			Username: req.Username,
			Password: hash,
			Status:   model.UserStatusEnabled,
			Role:     model.RoleUser,
			Tags:     datatypes.JSONSlice[string]{},
		}
		if err := s.userRepo.Create(ctx, user); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return errcode.ErrAccountExists
			}
			return errcode.ErrRegister.Wrap(err)
		}
		id = user.ID
		return nil
	}, lock.UsernameKey(req.Username))
	if err != nil {
		return 0, err
	}

	s.log.InfoContext(ctx, "user registered", zap.Int64("user_id", id), zap.String("username", req.Username))
	return id, nil
}

// Login checks existence, then the password, then the account status.
func (s *UserService) Login(ctx context.Context, req *LoginRequest) (*model.SafeUser, error) {
	if req == nil || req.Username == "" || req.Password == "" {
		return nil, errcode.ErrParamsNull
	}

	user, err := s.userRepo.FindByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, errcode.ErrAccountNotFound
		}
		return nil, errcode.ErrSystem.Wrap(err)
	}
	if !s.hasher.Verify(user.Password, req.Password) {
		s.log.InfoContext(ctx, "login rejected: wrong password", zap.Int64("user_id", user.ID))
		return nil, errcode.ErrPassword
	}
	if user.Status == model.UserStatusDisabled {
		s.log.InfoContext(ctx, "login rejected: account locked", zap.Int64("user_id", user.ID))
		return nil, errcode.ErrAccountLocked
	}

	now := s.now()
	if _, err := s.userRepo.UpdateFields(ctx, user.ID, map[string]any{"last_login_at": now}); err != nil {
		s.log.WarnContext(ctx, "failed to record login time", zap.Int64("user_id", user.ID), zap.Error(err))
	} else {
		user.LastLoginAt = &now
	}

	safe := Sanitize(user)
	return &safe, nil
}

func (s *UserService) GetCurrent(ctx context.Context, callerID int64) (*model.SafeUser, error) {
	user, err := s.userRepo.FindByID(ctx, callerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, errcode.ErrAccountNotFound
		}
		return nil, errcode.ErrSystem.Wrap(err)
	}
	safe := Sanitize(user)
	return &safe, nil
}

// UpdateProfile writes the supplied fields of the caller's own profile.
func (s *UserService) UpdateProfile(ctx context.Context, callerID int64, patch *model.UserPatch) error {
	if patch == nil || patch.ID <= 0 {
		return errcode.ErrParams
	}
	if patch.ID != callerID {
		return errcode.ErrNoAuth.WithMessage("users may only edit their own profile")
	}

	fields := make(map[string]any)
	if patch.Phone != nil {
		fields["phone"] = strings.TrimSpace(*patch.Phone)
	}
	if patch.Email != nil {
		fields["email"] = strings.TrimSpace(*patch.Email)
	}
	if patch.Sex != nil {
		if *patch.Sex < 0 || *patch.Sex > 2 {
			return errcode.ErrParams.WithMessage("sex must be 0, 1 or 2")
		}
		fields["sex"] = *patch.Sex
	}
	if patch.Avatar != nil {
		fields["avatar"] = *patch.Avatar
	}
	if patch.Profile != nil {
		fields["profile"] = *patch.Profile
	}
	if patch.Tags != nil {
		fields["tags"] = datatypes.NewJSONSlice(normalizeTags(patch.Tags))
	}
	if len(fields) == 0 {
		return errcode.ErrParamsNull
	}

	rows, err := s.userRepo.UpdateFields(ctx, callerID, fields)
	if err != nil {
		return errcode.ErrSystem.Wrap(err)
	}
	if rows == 0 {
		return errcode.ErrAccountNotFound
	}
	return nil
}

// SetAccountStatus enables or disables an account. Zero matched rows fails.
func (s *UserService) SetAccountStatus(ctx context.Context, userID int64, status int8) error {
	if userID <= 0 || (status != model.UserStatusEnabled && status != model.UserStatusDisabled) {
		return errcode.ErrParams
	}

	rows, err := s.userRepo.UpdateStatus(ctx, userID, status)
	if err != nil {
		return errcode.ErrSystem.Wrap(err)
	}
	if rows == 0 {
		return errcode.ErrOperation
	}

	s.log.InfoContext(ctx, "account status changed", zap.Int64("target_id", userID), zap.Int8("status", status))
	return nil
}

func (s *UserService) SearchByTags(ctx context.Context, tags []string, page model.PageRequest) (*model.Page[model.SafeUser], error) {
	tags = normalizeTags(tags)
	if len(tags) == 0 {
		return nil, errcode.ErrParamsNull
	}
	page = page.Normalize()
	users, total, err := s.userRepo.SearchByTags(ctx, tags, page)
	if err != nil {
		return nil, errcode.ErrSystem.Wrap(err)
	}
	return sanitizePage(users, total, page), nil
}

func (s *UserService) SearchByUsername(ctx context.Context, username string, page model.PageRequest) (*model.Page[model.SafeUser], error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, errcode.ErrParamsNull
	}
	page = page.Normalize()
	users, total, err := s.userRepo.SearchByUsername(ctx, username, page)
	if err != nil {
		return nil, errcode.ErrSystem.Wrap(err)
	}
	return sanitizePage(users, total, page), nil
}

// Recommend pages through all users.
func (s *UserService) Recommend(ctx context.Context, page model.PageRequest) (*model.Page[model.SafeUser], error) {
	page = page.Normalize()
	users, total, err := s.userRepo.List(ctx, page)
	if err != nil {
		return nil, errcode.ErrSystem.Wrap(err)
	}
	return sanitizePage(users, total, page), nil
}

func (s *UserService) IsAdmin(ctx context.Context, userID int64) (bool, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, errcode.ErrSystem.Wrap(err)
	}
	return user.IsAdmin(), nil
}

func sanitizePage(users []model.User, total int64, page model.PageRequest) *model.Page[model.SafeUser] {
	records := make([]model.SafeUser, 0, len(users))
	for i := range users {
		records = append(records, Sanitize(&users[i]))
	}
	return model.NewPage(records, total, page)
}

// normalizeTags trims tags and drops blanks and duplicates, keeping order.
func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}
