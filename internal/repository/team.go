package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/Gopher0727/TeamMatch/internal/model"
)

// TeamFilter holds the predicates of a team listing; zero values are skipped.
// Status is always applied. Expiry is always applied as
// (expire_time > Now OR expire_time IS NULL).
type TeamFilter struct {
	IDs         []int64
	SearchText  string
	Name        string
	Description string
	MaxNum      int
	UserID      *int64
	Status      model.TeamStatus
	Now         time.Time
}

// ITeamRepository defines the interface for team data operations
type ITeamRepository interface {
	Create(ctx context.Context, team *model.Team) error
	FindByID(ctx context.Context, id int64) (*model.Team, error)
	CountByOwner(ctx context.Context, ownerID int64) (int64, error)
	UpdateFields(ctx context.Context, id int64, fields map[string]any) (int64, error)
	DeleteByIDAndOwner(ctx context.Context, id, ownerID int64) (int64, error)
	Delete(ctx context.Context, id int64) (int64, error)
	Query(ctx context.Context, filter TeamFilter, page model.PageRequest) ([]model.Team, int64, error)
}

// TeamRepository implements ITeamRepository on top of gorm.
// Deletes are soft: rows keep their deleted_at and drop out of every query.
type TeamRepository struct {
	db *gorm.DB
}

func NewTeamRepository(db *gorm.DB) *TeamRepository {
	return &TeamRepository{db: db}
}

func (r *TeamRepository) Create(ctx context.Context, team *model.Team) error {
	return translate(conn(ctx, r.db).Create(team).Error)
}

func (r *TeamRepository) FindByID(ctx context.Context, id int64) (*model.Team, error) {
	var team model.Team
	if err := conn(ctx, r.db).Where("id = ?", id).First(&team).Error; err != nil {
		return nil, translate(err)
	}
	return &team, nil
}

// CountByOwner counts the non-deleted teams owned by ownerID.
func (r *TeamRepository) CountByOwner(ctx context.Context, ownerID int64) (int64, error) {
	var count int64
	err := conn(ctx, r.db).Model(&model.Team{}).Where("user_id = ?", ownerID).Count(&count).Error
	return count, translate(err)
}

// UpdateFields touches only the given columns. A nil value writes NULL.
func (r *TeamRepository) UpdateFields(ctx context.Context, id int64, fields map[string]any) (int64, error) {
	res := conn(ctx, r.db).Model(&model.Team{}).Where("id = ?", id).Updates(fields)
	return res.RowsAffected, translate(res.Error)
}

// DeleteByIDAndOwner deletes the team only when ownerID owns it; the
// ownership check is part of the predicate.
func (r *TeamRepository) DeleteByIDAndOwner(ctx context.Context, id, ownerID int64) (int64, error) {
	res := conn(ctx, r.db).Where("id = ? AND user_id = ?", id, ownerID).Delete(&model.Team{})
	return res.RowsAffected, translate(res.Error)
}

func (r *TeamRepository) Delete(ctx context.Context, id int64) (int64, error) {
	res := conn(ctx, r.db).Where("id = ?", id).Delete(&model.Team{})
	return res.RowsAffected, translate(res.Error)
}

// Query returns one page of teams matching filter, newest first, and the total match count.
func (r *TeamRepository) Query(ctx context.Context, filter TeamFilter, page model.PageRequest) ([]model.Team, int64, error) {
	scope := filter.scope()

	var total int64
	if err := conn(ctx, r.db).Model(&model.Team{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, translate(err)
	}
	if total == 0 {
		return []model.Team{}, 0, nil
	}

	var teams []model.Team
	err := conn(ctx, r.db).Scopes(scope).
		Order("id DESC").
		Limit(page.PageSize).
		Offset(page.Offset()).
		Find(&teams).Error
	if err != nil {
		return nil, 0, translate(err)
	}
	return teams, total, nil
}

func (f TeamFilter) scope() func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if len(f.IDs) > 0 {
			db = db.Where("id IN ?", f.IDs)
		}
		if f.SearchText != "" {
			pattern := containsPattern(f.SearchText)
			db = db.Where("(name LIKE ? OR description LIKE ?)", pattern, pattern)
		}
		if f.Name != "" {
			db = db.Where("name LIKE ?", containsPattern(f.Name))
		}
		if f.Description != "" {
			db = db.Where("description LIKE ?", containsPattern(f.Description))
		}
		if f.MaxNum > 0 {
			db = db.Where("max_num <= ?", f.MaxNum)
		}
		if f.UserID != nil {
			db = db.Where("user_id = ?", *f.UserID)
		}
		db = db.Where("status = ?", f.Status)
		return db.Where("(expire_time > ? OR expire_time IS NULL)", f.Now)
	}
}
