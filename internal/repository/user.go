package repository

import (
	"context"
	"strconv"

	"gorm.io/gorm"

	"github.com/Gopher0727/TeamMatch/internal/model"
)

// IUserRepository defines the interface for user data operations
type IUserRepository interface {
	Create(ctx context.Context, user *model.User) error
	FindByID(ctx context.Context, id int64) (*model.User, error)
	FindByUsername(ctx context.Context, username string) (*model.User, error)
	CountByUsername(ctx context.Context, username string) (int64, error)
	UpdateStatus(ctx context.Context, id int64, status int8) (int64, error)
	UpdateFields(ctx context.Context, id int64, fields map[string]any) (int64, error)
	SearchByTags(ctx context.Context, tags []string, page model.PageRequest) ([]model.User, int64, error)
	SearchByUsername(ctx context.Context, username string, page model.PageRequest) ([]model.User, int64, error)
	List(ctx context.Context, page model.PageRequest) ([]model.User, int64, error)
}

// UserRepository implements IUserRepository interface
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new IUserRepository instance
func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts the user and fills in its ID. A taken username yields ErrDuplicate.
func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	return translate(conn(ctx, r.db).Create(user).Error)
}

// FindByID finds a user by ID
func (r *UserRepository) FindByID(ctx context.Context, id int64) (*model.User, error) {
	var user model.User
	if err := conn(ctx, r.db).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// FindByUsername finds a user by username
func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	var user model.User
	if err := conn(ctx, r.db).Where("username = ?", username).First(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (r *UserRepository) CountByUsername(ctx context.Context, username string) (int64, error) {
	var count int64
	err := conn(ctx, r.db).Model(&model.User{}).Where("username = ?", username).Count(&count).Error
	return count, translate(err)
}

// UpdateStatus sets the account status and reports the number of matched rows.
func (r *UserRepository) UpdateStatus(ctx context.Context, id int64, status int8) (int64, error) {
	res := conn(ctx, r.db).Model(&model.User{}).Where("id = ?", id).Update("status", status)
	return res.RowsAffected, translate(res.Error)
}

// UpdateFields touches only the given columns.
func (r *UserRepository) UpdateFields(ctx context.Context, id int64, fields map[string]any) (int64, error) {
	res := conn(ctx, r.db).Model(&model.User{}).Where("id = ?", id).Updates(fields)
	return res.RowsAffected, translate(res.Error)
}

// SearchByTags returns users whose tag list contains every tag.
func (r *UserRepository) SearchByTags(ctx context.Context, tags []string, page model.PageRequest) ([]model.User, int64, error) {
	return r.paginate(ctx, page, func(db *gorm.DB) *gorm.DB {
		for _, tag := range tags {
			db = db.Where("tags::text LIKE ?", containsPattern(strconv.Quote(tag)))
		}
		return db
	})
}

func (r *UserRepository) SearchByUsername(ctx context.Context, username string, page model.PageRequest) ([]model.User, int64, error) {
	return r.paginate(ctx, page, func(db *gorm.DB) *gorm.DB {
		return db.Where("username LIKE ?", containsPattern(username))
	})
}

func (r *UserRepository) List(ctx context.Context, page model.PageRequest) ([]model.User, int64, error) {
	return r.paginate(ctx, page, func(db *gorm.DB) *gorm.DB { return db })
}

func (r *UserRepository) paginate(ctx context.Context, page model.PageRequest, scope func(*gorm.DB) *gorm.DB) ([]model.User, int64, error) {
	var total int64
	if err := conn(ctx, r.db).Model(&model.User{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, translate(err)
	}
	if total == 0 {
		return []model.User{}, 0, nil
	}

	var users []model.User
	err := conn(ctx, r.db).Scopes(scope).
		Order("id ASC").
		Limit(page.PageSize).
		Offset(page.Offset()).
		Find(&users).Error
	if err != nil {
		return nil, 0, translate(err)
	}
	return users, total, nil
}
