package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/Gopher0727/TeamMatch/internal/model"
)

// IUserTeamRepository defines the interface for membership rows
type IUserTeamRepository interface {
	Create(ctx context.Context, member *model.UserTeam) error
	Exists(ctx context.Context, teamID, userID int64) (bool, error)
	CountByTeam(ctx context.Context, teamID int64) (int64, error)
	CountByUser(ctx context.Context, userID int64) (int64, error)
	ListByTeam(ctx context.Context, teamID int64) ([]model.UserTeam, error)
	Delete(ctx context.Context, teamID, userID int64) (int64, error)
	DeleteByTeam(ctx context.Context, teamID int64) (int64, error)
}

type UserTeamRepository struct {
	db *gorm.DB
}

func NewUserTeamRepository(db *gorm.DB) *UserTeamRepository {
	return &UserTeamRepository{db: db}
}

// Create inserts a membership row. A second row for the same pair yields ErrDuplicate.
func (r *UserTeamRepository) Create(ctx context.Context, member *model.UserTeam) error {
	return translate(conn(ctx, r.db).Create(member).Error)
}

func (r *UserTeamRepository) Exists(ctx context.Context, teamID, userID int64) (bool, error) {
	var count int64
	err := conn(ctx, r.db).Model(&model.UserTeam{}).
		Where("team_id = ? AND user_id = ?", teamID, userID).
		Count(&count).Error
	if err != nil {
		return false, translate(err)
	}
	return count > 0, nil
}

func (r *UserTeamRepository) CountByTeam(ctx context.Context, teamID int64) (int64, error) {
	var count int64
	err := conn(ctx, r.db).Model(&model.UserTeam{}).Where("team_id = ?", teamID).Count(&count).Error
	return count, translate(err)
}

func (r *UserTeamRepository) CountByUser(ctx context.Context, userID int64) (int64, error) {
	var count int64
	err := conn(ctx, r.db).Model(&model.UserTeam{}).Where("user_id = ?", userID).Count(&count).Error
	return count, translate(err)
}

// ListByTeam returns the members of a team in join order.
func (r *UserTeamRepository) ListByTeam(ctx context.Context, teamID int64) ([]model.UserTeam, error) {
	var members []model.UserTeam
	err := conn(ctx, r.db).
		Where("team_id = ?", teamID).
		Order("join_time ASC, id ASC").
		Find(&members).Error
	if err != nil {
		return nil, translate(err)
	}
	return members, nil
}

func (r *UserTeamRepository) Delete(ctx context.Context, teamID, userID int64) (int64, error) {
	res := conn(ctx, r.db).Where("team_id = ? AND user_id = ?", teamID, userID).Delete(&model.UserTeam{})
	return res.RowsAffected, translate(res.Error)
}

func (r *UserTeamRepository) DeleteByTeam(ctx context.Context, teamID int64) (int64, error) {
	res := conn(ctx, r.db).Where("team_id = ?", teamID).Delete(&model.UserTeam{})
	return res.RowsAffected, translate(res.Error)
}
