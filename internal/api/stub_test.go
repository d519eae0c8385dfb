package api

import (
	"context"

	"github.com/Gopher0727/TeamMatch/internal/model"
	"github.com/Gopher0727/TeamMatch/internal/service"
)

type stubUsers struct {
	register   func(*service.RegisterRequest) (int64, error)
	login      func(*service.LoginRequest) (*model.SafeUser, error)
	current    func(int64) (*model.SafeUser, error)
	update     func(int64, *model.UserPatch) error
	setStatus  func(int64, int8) error
	searchTags func([]string, model.PageRequest) (*model.Page[model.SafeUser], error)
	admins     map[int64]bool
}

func (s *stubUsers) Register(_ context.Context, req *service.RegisterRequest) (int64, error) {
	return s.register(req)
}

func (s *stubUsers) Login(_ context.Context, req *service.LoginRequest) (*model.SafeUser, error) {
	return s.login(req)
}

func (s *stubUsers) GetCurrent(_ context.Context, callerID int64) (*model.SafeUser, error) {
	return s.current(callerID)
}

func (s *stubUsers) UpdateProfile(_ context.Context, callerID int64, patch *model.UserPatch) error {
	return s.update(callerID, patch)
}

func (s *stubUsers) SetAccountStatus(_ context.Context, userID int64, status int8) error {
	return s.setStatus(userID, status)
}

func (s *stubUsers) SearchByTags(_ context.Context, tags []string, page model.PageRequest) (*model.Page[model.SafeUser], error) {
	return s.searchTags(tags, page)
}

func (s *stubUsers) SearchByUsername(context.Context, string, model.PageRequest) (*model.Page[model.SafeUser], error) {
	return model.NewPage[model.SafeUser](nil, 0, model.PageRequest{Page: 1, PageSize: 10}), nil
}

func (s *stubUsers) Recommend(_ context.Context, page model.PageRequest) (*model.Page[model.SafeUser], error) {
	return model.NewPage[model.SafeUser](nil, 0, page.Normalize()), nil
}

func (s *stubUsers) IsAdmin(_ context.Context, userID int64) (bool, error) {
	return s.admins[userID], nil
}

type stubTeams struct {
	create func(int64, *model.TeamCreate) (int64, error)
	remove func(int64, int64) error
	get    func(int64) (*model.Team, error)
	page   func(int64, *model.TeamQuery) (*model.Page[model.TeamView], error)
	join   func(int64, int64, string) error
	kick   func(int64, int64, int64) error
}

func (s *stubTeams) CreateTeam(_ context.Context, callerID int64, req *model.TeamCreate) (int64, error) {
	return s.create(callerID, req)
}

func (s *stubTeams) DeleteTeam(_ context.Context, callerID, teamID int64) error {
	return s.remove(callerID, teamID)
}

func (s *stubTeams) UpdateTeam(context.Context, int64, *model.TeamPatch) error { return nil }

func (s *stubTeams) GetTeam(_ context.Context, teamID int64) (*model.Team, error) {
	return s.get(teamID)
}

func (s *stubTeams) GetSafeTeam(team *model.Team) model.Team { return team.Safe() }

func (s *stubTeams) PageTeams(_ context.Context, callerID int64, q *model.TeamQuery) (*model.Page[model.TeamView], error) {
	return s.page(callerID, q)
}

func (s *stubTeams) ListTeams(context.Context, int64, *model.TeamQuery) ([]model.TeamView, error) {
	return []model.TeamView{}, nil
}

func (s *stubTeams) JoinTeam(_ context.Context, callerID, teamID int64, password string) error {
	return s.join(callerID, teamID, password)
}

func (s *stubTeams) ExitTeam(context.Context, int64, int64) error { return nil }

func (s *stubTeams) ChangeLeader(context.Context, int64, int64, int64) error { return nil }

func (s *stubTeams) KickOut(_ context.Context, callerID, teamID, userID int64) error {
	return s.kick(callerID, teamID, userID)
}
