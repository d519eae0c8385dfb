package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Gopher0727/TeamMatch/config"
	"github.com/Gopher0727/TeamMatch/internal/event"
	"github.com/Gopher0727/TeamMatch/internal/lock"
	"github.com/Gopher0727/TeamMatch/internal/model"
	"github.com/Gopher0727/TeamMatch/internal/repository"
	logger "github.com/Gopher0727/TeamMatch/middleware/log"
	"github.com/Gopher0727/TeamMatch/pkg/errcode"
)

// ITeamService defines the team lifecycle and membership operations.
// callerID is always the authenticated user performing the call.
type ITeamService interface {
	CreateTeam(ctx context.Context, callerID int64, req *model.TeamCreate) (int64, error)
	DeleteTeam(ctx context.Context, callerID, teamID int64) error
	UpdateTeam(ctx context.Context, callerID int64, patch *model.TeamPatch) error
	GetTeam(ctx context.Context, teamID int64) (*model.Team, error)
	GetSafeTeam(team *model.Team) model.Team
	PageTeams(ctx context.Context, callerID int64, q *model.TeamQuery) (*model.Page[model.TeamView], error)
	ListTeams(ctx context.Context, callerID int64, q *model.TeamQuery) ([]model.TeamView, error)
	JoinTeam(ctx context.Context, callerID, teamID int64, password string) error
	ExitTeam(ctx context.Context, callerID, teamID int64) error
	ChangeLeader(ctx context.Context, callerID, teamID, newLeaderID int64) error
	KickOut(ctx context.Context, callerID, teamID, userID int64) error
}

// TeamService implements ITeamService
type TeamService struct {
	tx         repository.Transactor
	teamRepo   repository.ITeamRepository
	memberRepo repository.IUserTeamRepository
	userRepo   repository.IUserRepository
	locker     lock.Locker
	publisher  event.Publisher
	limits     config.TeamConfig
	log        *logger.Logger
	now        func() time.Time
}

func NewTeamService(
	tx repository.Transactor,
	teamRepo repository.ITeamRepository,
	memberRepo repository.IUserTeamRepository,
	userRepo repository.IUserRepository,
	locker lock.Locker,
	publisher event.Publisher,
	limits config.TeamConfig,
	log *logger.Logger,
) *TeamService {
	return &TeamService{
		tx:         tx,
		teamRepo:   teamRepo,
		memberRepo: memberRepo,
		userRepo:   userRepo,
		locker:     locker,
		publisher:  publisher,
		limits:     limits,
		log:        log.WithFields(zap.String("component", "team_service")),
		now:        time.Now,
	}
}

// CreateTeam validates the request, checks the owner's quota and inserts the
// team together with the owner's membership row in one transaction.
func (s *TeamService) CreateTeam(ctx context.Context, callerID int64, req *model.TeamCreate) (int64, error) {
	if req == nil {
		return 0, errcode.ErrParamsNull
	}
	if model.IsBlank(req.Name) {
		return 0, errcode.ErrParams.WithMessage("team name is required")
	}
	if !req.Status.Valid() {
		return 0, errcode.ErrParams.WithMessage("unknown team status %d", req.Status)
	}
	if err := s.checkMaxNum(req.MaxNum); err != nil {
		return 0, err
	}
	now := s.now()
	if req.ExpireTime != nil && !req.ExpireTime.After(now) {
		return 0, errcode.ErrParams.WithMessage("expire time must be in the future")
	}

	var password *string
	if req.Status == model.TeamSecret {
		if model.IsBlank(req.Password) {
			return 0, errcode.ErrParams.WithMessage("a secret team needs a password")
		}
		pw := req.Password
		password = &pw
	}

	team := &model.Team{
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		MaxNum:      req.MaxNum,
		ExpireTime:  req.ExpireTime,
		UserID:      callerID,
		Status:      req.Status,
		Password:    password,
	}

	err := withLocks(ctx, s.locker, s.log, func() error {
		owned, err := s.teamRepo.CountByOwner(ctx, callerID)
		if err != nil {
			return errcode.ErrSystem.Wrap(err)
		}
		if owned >= int64(s.limits.MaxOwned) {
			return errcode.ErrAlreadyLimited.WithMessage("a user may own at most %d teams", s.limits.MaxOwned)
		}

		return s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
			if err := s.teamRepo.Create(ctx, team); err != nil {
				return errcode.ErrOperation.Wrap(err)
			}
			member := &model.UserTeam{UserID: callerID, TeamID: team.ID, JoinTime: now}
			if err := s.memberRepo.Create(ctx, member); err != nil {
				return errcode.ErrOperation.Wrap(err)
			}
			return nil
		})
	}, lock.OwnerKey(callerID))
	if err != nil {
		s.logFailure(ctx, "create team", err, zap.Int64("owner_id", callerID))
		return 0, err
	}

	s.log.InfoContext(ctx, "team created", zap.Int64("team_id", team.ID), zap.Int64("owner_id", callerID))
	s.publish(ctx, event.TeamEvent{Type: event.TeamCreated, TeamID: team.ID, ActorID: callerID})
	return team.ID, nil
}

// DeleteTeam soft-deletes a team owned by the caller and removes its
// membership rows. Not found and not owner both surface as ErrOperation.
func (s *TeamService) DeleteTeam(ctx context.Context, callerID, teamID int64) error {
	if teamID <= 0 {
		return errcode.ErrParams
	}

	err := withLocks(ctx, s.locker, s.log, func() error {
		return s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
			rows, err := s.teamRepo.DeleteByIDAndOwner(ctx, teamID, callerID)
			if err != nil {
				return errcode.ErrSystem.Wrap(err)
			}
			if rows == 0 {
				return errcode.ErrOperation
			}
			if _, err := s.memberRepo.DeleteByTeam(ctx, teamID); err != nil {
				return errcode.ErrSystem.Wrap(err)
			}
			return nil
		})
	}, lock.TeamKey(teamID))
	if err != nil {
		s.logFailure(ctx, "delete team", err, zap.Int64("team_id", teamID))
		return err
	}

	s.log.InfoContext(ctx, "team deleted", zap.Int64("team_id", teamID))
	s.publish(ctx, event.TeamEvent{Type: event.TeamDeleted, TeamID: teamID, ActorID: callerID})
	return nil
}

// UpdateTeam applies the supplied fields. Moving into SECRET needs a
// password; moving out of SECRET always clears it. The team lock keeps the
// member count stable while a smaller maxNum is checked against it.
func (s *TeamService) UpdateTeam(ctx context.Context, callerID int64, patch *model.TeamPatch) error {
	if patch == nil || patch.ID <= 0 {
		return errcode.ErrParams
	}

	updated := false
	err := withLocks(ctx, s.locker, s.log, func() error {
		var err error
		updated, err = s.applyPatch(ctx, callerID, patch)
		return err
	}, lock.TeamKey(patch.ID))
	if err != nil {
		return err
	}

	if updated {
		s.publish(ctx, event.TeamEvent{Type: event.TeamUpdated, TeamID: patch.ID, ActorID: callerID})
	}
	return nil
}

// applyPatch reports whether any column changed.
func (s *TeamService) applyPatch(ctx context.Context, callerID int64, patch *model.TeamPatch) (bool, error) {
	team, err := s.findTeam(ctx, patch.ID)
	if err != nil {
		return false, err
	}
	if team.UserID != callerID {
		return false, errcode.ErrNoAuth.WithMessage("only the team owner may update it")
	}

	fields := make(map[string]any)
	if patch.Name != nil {
		if model.IsBlank(*patch.Name) {
			return false, errcode.ErrParams.WithMessage("team name is required")
		}
		fields["name"] = strings.TrimSpace(*patch.Name)
	}
	if patch.Description != nil {
		fields["description"] = *patch.Description
	}
	if patch.MaxNum != nil {
		if err := s.checkMaxNum(*patch.MaxNum); err != nil {
			return false, err
		}
		members, err := s.memberRepo.CountByTeam(ctx, team.ID)
		if err != nil {
			return false, errcode.ErrSystem.Wrap(err)
		}
		if int64(*patch.MaxNum) < members {
			return false, errcode.ErrParams.WithMessage("team already has %d members", members)
		}
		fields["max_num"] = *patch.MaxNum
	}
	if patch.ExpireTime != nil {
		if !patch.ExpireTime.After(s.now()) {
			return false, errcode.ErrParams.WithMessage("expire time must be in the future")
		}
		fields["expire_time"] = *patch.ExpireTime
	}

	status := team.Status
	if patch.Status != nil {
		if !patch.Status.Valid() {
			return false, errcode.ErrParams.WithMessage("unknown team status %d", *patch.Status)
		}
		status = *patch.Status
		fields["status"] = status
	}

	switch {
	case status == model.TeamSecret && team.Status != model.TeamSecret:
		if patch.Password == nil || model.IsBlank(*patch.Password) {
			return false, errcode.ErrParams.WithMessage("a secret team needs a password")
		}
		fields["password"] = *patch.Password
	case status == model.TeamSecret:
		if patch.Password != nil {
			if model.IsBlank(*patch.Password) {
				return false, errcode.ErrParams.WithMessage("a secret team needs a password")
			}
			fields["password"] = *patch.Password
		}
	case team.Status == model.TeamSecret:
		fields["password"] = nil
	}

	if len(fields) == 0 {
		return false, nil
	}

	rows, err := s.teamRepo.UpdateFields(ctx, team.ID, fields)
	if err != nil {
		s.logFailure(ctx, "update team", err, zap.Int64("team_id", team.ID))
		return false, errcode.ErrSystem.Wrap(err)
	}
	if rows == 0 {
		return false, errcode.ErrOperation
	}

	return true, nil
}

func (s *TeamService) GetTeam(ctx context.Context, teamID int64) (*model.Team, error) {
	if teamID <= 0 {
		return nil, errcode.ErrParams
	}
	return s.findTeam(ctx, teamID)
}

// GetSafeTeam returns a copy of team without its password.
func (s *TeamService) GetSafeTeam(team *model.Team) model.Team {
	return team.Safe()
}

// PageTeams runs a filtered, paged team query. Status defaults to PUBLIC;
// PRIVATE teams are listed for administrators only.
func (s *TeamService) PageTeams(ctx context.Context, callerID int64, q *model.TeamQuery) (*model.Page[model.TeamView], error) {
	if q == nil {
		return nil, errcode.ErrParamsNull
	}
	if q.Page <= 0 || q.PageSize <= 0 {
		return nil, errcode.ErrParams.WithMessage("page and pageSize are required")
	}
	page := model.PageRequest{Page: q.Page, PageSize: q.PageSize}.Clamp()
	return s.queryTeams(ctx, callerID, q, page)
}

func (s *TeamService) queryTeams(ctx context.Context, callerID int64, q *model.TeamQuery, page model.PageRequest) (*model.Page[model.TeamView], error) {

	status := model.TeamPublic
	if q.Status != nil {
		if !q.Status.Valid() {
			return nil, errcode.ErrParams.WithMessage("unknown team status %d", *q.Status)
		}
		status = *q.Status
	}
	if status == model.TeamPrivate {
		admin, err := s.isAdmin(ctx, callerID)
		if err != nil {
			return nil, err
		}
		if !admin {
			return nil, errcode.ErrNoAuth.WithMessage("private teams are visible to administrators only")
		}
	}

	filter := repository.TeamFilter{
		IDs:         q.IDs,
		SearchText:  strings.TrimSpace(q.SearchText),
		Name:        strings.TrimSpace(q.Name),
		Description: strings.TrimSpace(q.Description),
		MaxNum:      q.MaxNum,
		UserID:      q.UserID,
		Status:      status,
		Now:         s.now(),
	}

	teams, total, err := s.teamRepo.Query(ctx, filter, page)
	if err != nil {
		return nil, errcode.ErrSystem.Wrap(err)
	}

	views := make([]model.TeamView, 0, len(teams))
	for i := range teams {
		view, err := s.enrich(ctx, &teams[i])
		if err != nil {
			return nil, err
		}
		views = append(views, view)
	}
	return model.NewPage(views, total, page), nil
}

// ListTeams is PageTeams over a single unbounded page.
func (s *TeamService) ListTeams(ctx context.Context, callerID int64, q *model.TeamQuery) ([]model.TeamView, error) {
	if q == nil {
		return nil, errcode.ErrParamsNull
	}
	page, err := s.queryTeams(ctx, callerID, q, model.PageRequest{Page: model.FirstPage, PageSize: model.MaxPageSize})
	if err != nil {
		return nil, err
	}
	return page.Records, nil
}

// JoinTeam adds the caller to a team. Caller and team locks are held so the
// per-user quota and the team capacity cannot be overrun concurrently.
func (s *TeamService) JoinTeam(ctx context.Context, callerID, teamID int64, password string) error {
	if teamID <= 0 {
		return errcode.ErrParams
	}

	err := withLocks(ctx, s.locker, s.log, func() error {
		team, err := s.findTeam(ctx, teamID)
		if err != nil {
			return err
		}
		if team.Expired(s.now()) {
			return errcode.ErrParams.WithMessage("team has expired")
		}
		switch team.Status {
		case model.TeamPrivate:
			return errcode.ErrNoAuth.WithMessage("private teams cannot be joined")
		case model.TeamSecret:
			if !team.PasswordMatches(password) {
				return errcode.ErrPassword
			}
		}

		joined, err := s.memberRepo.Exists(ctx, teamID, callerID)
		if err != nil {
			return errcode.ErrSystem.Wrap(err)
		}
		if joined {
			return errcode.ErrAlreadyJoined
		}

		mine, err := s.memberRepo.CountByUser(ctx, callerID)
		if err != nil {
			return errcode.ErrSystem.Wrap(err)
		}
		if mine >= int64(s.limits.MaxJoined) {
			return errcode.ErrAlreadyLimited.WithMessage("a user may join at most %d teams", s.limits.MaxJoined)
		}

		members, err := s.memberRepo.CountByTeam(ctx, teamID)
		if err != nil {
			return errcode.ErrSystem.Wrap(err)
		}
		if members >= int64(team.MaxNum) {
			return errcode.ErrAlreadyLimited.WithMessage("team is full")
		}

		err = s.memberRepo.Create(ctx, &model.UserTeam{UserID: callerID, TeamID: teamID, JoinTime: s.now()})
		if errors.Is(err, repository.ErrDuplicate) {
			return errcode.ErrAlreadyJoined
		}
		if err != nil {
			return errcode.ErrOperation.Wrap(err)
		}
		return nil
	}, lock.MemberKey(callerID), lock.TeamKey(teamID))
	if err != nil {
		s.logFailure(ctx, "join team", err, zap.Int64("team_id", teamID))
		return err
	}

	s.publish(ctx, event.TeamEvent{Type: event.TeamJoined, TeamID: teamID, ActorID: callerID, TargetID: callerID})
	return nil
}

// ExitTeam removes the caller from a team. The last member leaving deletes
// the team; an owner leaving hands the team to the earliest remaining member.
func (s *TeamService) ExitTeam(ctx context.Context, callerID, teamID int64) error {
	if teamID <= 0 {
		return errcode.ErrParams
	}

	var (
		dissolved bool
		newOwner  int64
	)
	err := withLocks(ctx, s.locker, s.log, func() error {
		team, err := s.findTeam(ctx, teamID)
		if err != nil {
			return err
		}

		return s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
			members, err := s.memberRepo.ListByTeam(ctx, teamID)
			if err != nil {
				return errcode.ErrSystem.Wrap(err)
			}
			if !containsMember(members, callerID) {
				return errcode.ErrNotFound.WithMessage("not a member of the team")
			}

			if _, err := s.memberRepo.Delete(ctx, teamID, callerID); err != nil {
				return errcode.ErrSystem.Wrap(err)
			}

			if len(members) == 1 {
				if _, err := s.teamRepo.Delete(ctx, teamID); err != nil {
					return errcode.ErrSystem.Wrap(err)
				}
				dissolved = true
				return nil
			}

			if team.UserID == callerID {
				for _, m := range members {
					if m.UserID != callerID {
						newOwner = m.UserID
						break
					}
				}
				if _, err := s.teamRepo.UpdateFields(ctx, teamID, map[string]any{"user_id": newOwner}); err != nil {
					return errcode.ErrSystem.Wrap(err)
				}
			}
			return nil
		})
	}, lock.TeamKey(teamID))
	if err != nil {
		s.logFailure(ctx, "exit team", err, zap.Int64("team_id", teamID))
		return err
	}

	s.publish(ctx, event.TeamEvent{Type: event.TeamExited, TeamID: teamID, ActorID: callerID, TargetID: callerID})
	switch {
	case dissolved:
		s.log.InfoContext(ctx, "last member left, team deleted", zap.Int64("team_id", teamID))
		s.publish(ctx, event.TeamEvent{Type: event.TeamDeleted, TeamID: teamID, ActorID: callerID})
	case newOwner != 0:
		s.publish(ctx, event.TeamEvent{Type: event.TeamLeaderChanged, TeamID: teamID, ActorID: callerID, TargetID: newOwner})
	}
	return nil
}

// ChangeLeader hands ownership to another member. Only the owner may do it.
func (s *TeamService) ChangeLeader(ctx context.Context, callerID, teamID, newLeaderID int64) error {
	if teamID <= 0 || newLeaderID <= 0 {
		return errcode.ErrParams
	}

	changed := false
	err := withLocks(ctx, s.locker, s.log, func() error {
		team, err := s.findTeam(ctx, teamID)
		if err != nil {
			return err
		}
		if team.UserID != callerID {
			return errcode.ErrNoAuth.WithMessage("only the team owner may hand over the team")
		}
		if newLeaderID == callerID {
			return nil
		}

		member, err := s.memberRepo.Exists(ctx, teamID, newLeaderID)
		if err != nil {
			return errcode.ErrSystem.Wrap(err)
		}
		if !member {
			return errcode.ErrNotFound.WithMessage("new leader is not a member of the team")
		}

		owned, err := s.teamRepo.CountByOwner(ctx, newLeaderID)
		if err != nil {
			return errcode.ErrSystem.Wrap(err)
		}
		if owned >= int64(s.limits.MaxOwned) {
			return errcode.ErrAlreadyLimited.WithMessage("new leader already owns %d teams", owned)
		}

		rows, err := s.teamRepo.UpdateFields(ctx, teamID, map[string]any{"user_id": newLeaderID})
		if err != nil {
			return errcode.ErrSystem.Wrap(err)
		}
		if rows == 0 {
			return errcode.ErrOperation
		}
		changed = true
		return nil
	}, lock.OwnerKey(newLeaderID), lock.TeamKey(teamID))
	if err != nil {
		s.logFailure(ctx, "change leader", err, zap.Int64("team_id", teamID))
		return err
	}

	if changed {
		s.publish(ctx, event.TeamEvent{Type: event.TeamLeaderChanged, TeamID: teamID, ActorID: callerID, TargetID: newLeaderID})
	}
	return nil
}

// KickOut removes a member other than the owner. Only the owner may do it.
func (s *TeamService) KickOut(ctx context.Context, callerID, teamID, userID int64) error {
	if teamID <= 0 || userID <= 0 {
		return errcode.ErrParams
	}

	err := withLocks(ctx, s.locker, s.log, func() error {
		team, err := s.findTeam(ctx, teamID)
		if err != nil {
			return err
		}
		if team.UserID != callerID {
			return errcode.ErrNoAuth.WithMessage("only the team owner may remove members")
		}
		if userID == team.UserID {
			return errcode.ErrParams.WithMessage("the owner cannot be removed; exit or hand over the team instead")
		}

		rows, err := s.memberRepo.Delete(ctx, teamID, userID)
		if err != nil {
			return errcode.ErrSystem.Wrap(err)
		}
		if rows == 0 {
			return errcode.ErrNotFound.WithMessage("user is not a member of the team")
		}
		return nil
	}, lock.TeamKey(teamID))
	if err != nil {
		s.logFailure(ctx, "kick member", err, zap.Int64("team_id", teamID), zap.Int64("target_id", userID))
		return err
	}

	s.publish(ctx, event.TeamEvent{Type: event.TeamKicked, TeamID: teamID, ActorID: callerID, TargetID: userID})
	return nil
}

func (s *TeamService) checkMaxNum(n int) error {
	if n < s.limits.MinMembers || n > s.limits.MaxMembers {
		return errcode.ErrParams.WithMessage("maxNum must be between %d and %d", s.limits.MinMembers, s.limits.MaxMembers)
	}
	return nil
}

func (s *TeamService) findTeam(ctx context.Context, teamID int64) (*model.Team, error) {
	team, err := s.teamRepo.FindByID(ctx, teamID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, errcode.ErrNotFound.WithMessage("team %d does not exist", teamID)
		}
		return nil, errcode.ErrSystem.Wrap(err)
	}
	return team, nil
}

func (s *TeamService) isAdmin(ctx context.Context, userID int64) (bool, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, errcode.ErrSystem.Wrap(err)
	}
	return user.IsAdmin(), nil
}

// enrich attaches the creator's profile, the member count and whether the
// owner still holds a membership row.
func (s *TeamService) enrich(ctx context.Context, team *model.Team) (model.TeamView, error) {
	view := model.TeamView{
		ID:          team.ID,
		Name:        team.Name,
		Description: team.Description,
		MaxNum:      team.MaxNum,
		ExpireTime:  team.ExpireTime,
		UserID:      team.UserID,
		Status:      team.Status,
		CreatedAt:   team.CreatedAt,
		UpdatedAt:   team.UpdatedAt,
	}

	creator, err := s.userRepo.FindByID(ctx, team.UserID)
	switch {
	case err == nil:
		safe := Sanitize(creator)
		view.CreateUser = &safe
	case !errors.Is(err, repository.ErrNotFound):
		return view, errcode.ErrSystem.Wrap(err)
	}

	count, err := s.memberRepo.CountByTeam(ctx, team.ID)
	if err != nil {
		return view, errcode.ErrSystem.Wrap(err)
	}
	view.HasJoinNum = int(count)

	view.HasJoin, err = s.memberRepo.Exists(ctx, team.ID, team.UserID)
	if err != nil {
		return view, errcode.ErrSystem.Wrap(err)
	}
	return view, nil
}

func (s *TeamService) publish(ctx context.Context, evt event.TeamEvent) {
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = s.now()
	}
	if err := s.publisher.Publish(ctx, evt); err != nil {
		s.log.WarnContext(ctx, "failed to publish team event",
			zap.String("type", string(evt.Type)),
			zap.Int64("team_id", evt.TeamID),
			zap.Error(err),
		)
	}
}

// logFailure logs business rejections at Info and everything else at Error.
func (s *TeamService) logFailure(ctx context.Context, op string, err error, fields ...zap.Field) {
	fields = append(fields, zap.String("op", op), zap.Error(err))
	if errcode.From(err).Kind == errcode.KindInternal {
		s.log.ErrorContext(ctx, "team operation failed", fields...)
		return
	}
	s.log.InfoContext(ctx, "team operation rejected", fields...)
}

func containsMember(members []model.UserTeam, userID int64) bool {
	for _, m := range members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}
