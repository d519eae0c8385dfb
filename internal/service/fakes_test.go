package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/Gopher0727/TeamMatch/config"
	"github.com/Gopher0727/TeamMatch/internal/event"
	"github.com/Gopher0727/TeamMatch/internal/lock"
	"github.com/Gopher0727/TeamMatch/internal/model"
	"github.com/Gopher0727/TeamMatch/internal/repository"
	logger "github.com/Gopher0727/TeamMatch/middleware/log"
)

// memStore is an in-memory stand-in for the three tables. Every repository
// fake shares one store so transactions can snapshot and restore it whole.
type memStore struct {
	mu      sync.Mutex
	nextID  int64
	users   map[int64]model.User
	teams   map[int64]model.Team
	members []model.UserTeam

	failTeamCreate   error
	failMemberCreate error
}

func newMemStore() *memStore {
	return &memStore{
		users: make(map[int64]model.User),
		teams: make(map[int64]model.Team),
	}
}

func (s *memStore) id() int64 {
	s.nextID++
	return s.nextID
}

type snapshot struct {
	nextID  int64
	users   map[int64]model.User
	teams   map[int64]model.Team
	members []model.UserTeam
}

func (s *memStore) snapshot() snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := snapshot{
		nextID:  s.nextID,
		users:   make(map[int64]model.User, len(s.users)),
		teams:   make(map[int64]model.Team, len(s.teams)),
		members: append([]model.UserTeam(nil), s.members...),
	}
	for k, v := range s.users {
		snap.users[k] = v
	}
	for k, v := range s.teams {
		snap.teams[k] = v
	}
	return snap
}

func (s *memStore) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID, s.users, s.teams, s.members = snap.nextID, snap.users, snap.teams, snap.members
}

func (s *memStore) liveTeams() []model.Team {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Team, 0, len(s.teams))
	for _, t := range s.teams {
		if !t.DeletedAt.Valid {
			out = append(out, t)
		}
	}
	return out
}

func (s *memStore) membersOf(teamID int64) []model.UserTeam {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.UserTeam
	for _, m := range s.members {
		if m.TeamID == teamID {
			out = append(out, m)
		}
	}
	return out
}

// memTx restores the store when fn fails.
type memTx struct{ store *memStore }

func (t memTx) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	snap := t.store.snapshot()
	if err := fn(ctx); err != nil {
		t.store.restore(snap)
		return err
	}
	return nil
}

func paginate[T any](items []T, page model.PageRequest) []T {
	start := page.Offset()
	if start >= len(items) {
		return []T{}
	}
	end := start + page.PageSize
	if end > len(items) || end < 0 {
		end = len(items)
	}
	return items[start:end]
}

type memUserRepo struct{ s *memStore }

func (r memUserRepo) Create(_ context.Context, u *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.users {
		if existing.Username == u.Username {
			return repository.ErrDuplicate
		}
	}
	u.ID = r.s.id()
	u.CreatedAt, u.UpdatedAt = time.Now(), time.Now()
	r.s.users[u.ID] = *u
	return nil
}

func (r memUserRepo) FindByID(_ context.Context, id int64) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (r memUserRepo) FindByUsername(_ context.Context, username string) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r memUserRepo) CountByUsername(ctx context.Context, username string) (int64, error) {
	if _, err := r.FindByUsername(ctx, username); err != nil {
		return 0, nil
	}
	return 1, nil
}

func (r memUserRepo) UpdateStatus(ctx context.Context, id int64, status int8) (int64, error) {
	return r.UpdateFields(ctx, id, map[string]any{"status": status})
}

func (r memUserRepo) UpdateFields(_ context.Context, id int64, fields map[string]any) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return 0, nil
	}
	for k, v := range fields {
		switch k {
		case "status":
			u.Status = v.(int8)
		case "last_login_at":
			t := v.(time.Time)
			u.LastLoginAt = &t
		case "phone":
			u.Phone = v.(string)
		case "email":
			u.Email = v.(string)
		case "sex":
			u.Sex = v.(int8)
		case "avatar":
			u.Avatar = v.(string)
		case "profile":
			u.Profile = v.(string)
		case "tags":
			u.Tags = v.(datatypes.JSONSlice[string])
		}
	}
	r.s.users[id] = u
	return 1, nil
}

func (r memUserRepo) filter(match func(model.User) bool, page model.PageRequest) ([]model.User, int64, error) {
	r.s.mu.Lock()
	var all []model.User
	for _, u := range r.s.users {
		if match(u) {
			all = append(all, u)
		}
	}
	r.s.mu.Unlock()
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return paginate(all, page), int64(len(all)), nil
}

func (r memUserRepo) SearchByTags(_ context.Context, tags []string, page model.PageRequest) ([]model.User, int64, error) {
	return r.filter(func(u model.User) bool {
		for _, want := range tags {
			found := false
			for _, have := range u.Tags {
				if have == want {
					found = true
				}
			}
			if !found {
				return false
			}
		}
		return true
	}, page)
}

func (r memUserRepo) SearchByUsername(_ context.Context, username string, page model.PageRequest) ([]model.User, int64, error) {
	return r.filter(func(u model.User) bool { return strings.Contains(u.Username, username) }, page)
}

func (r memUserRepo) List(_ context.Context, page model.PageRequest) ([]model.User, int64, error) {
	return r.filter(func(model.User) bool { return true }, page)
}

type memTeamRepo struct{ s *memStore }

func (r memTeamRepo) Create(_ context.Context, t *model.Team) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failTeamCreate != nil {
		return r.s.failTeamCreate
	}
	t.ID = r.s.id()
	t.CreatedAt, t.UpdatedAt = time.Now(), time.Now()
	r.s.teams[t.ID] = *t
	return nil
}

func (r memTeamRepo) FindByID(_ context.Context, id int64) (*model.Team, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.teams[id]
	if !ok || t.DeletedAt.Valid {
		return nil, repository.ErrNotFound
	}
	return &t, nil
}

func (r memTeamRepo) CountByOwner(_ context.Context, ownerID int64) (int64, error) {
	var n int64
	for _, t := range r.s.liveTeams() {
		if t.UserID == ownerID {
			n++
		}
	}
	return n, nil
}

func (r memTeamRepo) UpdateFields(_ context.Context, id int64, fields map[string]any) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.teams[id]
	if !ok || t.DeletedAt.Valid {
		return 0, nil
	}
	for k, v := range fields {
		switch k {
		case "name":
			t.Name = v.(string)
		case "description":
			t.Description = v.(string)
		case "max_num":
			t.MaxNum = v.(int)
		case "expire_time":
			e := v.(time.Time)
			t.ExpireTime = &e
		case "status":
			t.Status = v.(model.TeamStatus)
		case "password":
			if v == nil {
				t.Password = nil
			} else {
				pw := v.(string)
				t.Password = &pw
			}
		case "user_id":
			t.UserID = v.(int64)
		}
	}
	r.s.teams[id] = t
	return 1, nil
}

func (r memTeamRepo) deleteWhere(match func(model.Team) bool) int64 {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, t := range r.s.teams {
		if !t.DeletedAt.Valid && match(t) {
			t.DeletedAt = gorm.DeletedAt{Time: time.Now(), Valid: true}
			r.s.teams[id] = t
			n++
		}
	}
	return n
}

func (r memTeamRepo) DeleteByIDAndOwner(_ context.Context, id, ownerID int64) (int64, error) {
	return r.deleteWhere(func(t model.Team) bool { return t.ID == id && t.UserID == ownerID }), nil
}

func (r memTeamRepo) Delete(_ context.Context, id int64) (int64, error) {
	return r.deleteWhere(func(t model.Team) bool { return t.ID == id }), nil
}

func (r memTeamRepo) Query(_ context.Context, f repository.TeamFilter, page model.PageRequest) ([]model.Team, int64, error) {
	var out []model.Team
	for _, t := range r.s.liveTeams() {
		if len(f.IDs) > 0 && !containsID(f.IDs, t.ID) {
			continue
		}
		if f.SearchText != "" && !strings.Contains(t.Name, f.SearchText) && !strings.Contains(t.Description, f.SearchText) {
			continue
		}
		if f.Name != "" && !strings.Contains(t.Name, f.Name) {
			continue
		}
		if f.Description != "" && !strings.Contains(t.Description, f.Description) {
			continue
		}
		if f.MaxNum > 0 && t.MaxNum > f.MaxNum {
			continue
		}
		if f.UserID != nil && t.UserID != *f.UserID {
			continue
		}
		if t.Status != f.Status {
			continue
		}
		if t.ExpireTime != nil && !t.ExpireTime.After(f.Now) {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return paginate(out, page), int64(len(out)), nil
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

type memMemberRepo struct{ s *memStore }

func (r memMemberRepo) Create(_ context.Context, m *model.UserTeam) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failMemberCreate != nil {
		return r.s.failMemberCreate
	}
	for _, existing := range r.s.members {
		if existing.TeamID == m.TeamID && existing.UserID == m.UserID {
			return repository.ErrDuplicate
		}
	}
	m.ID = r.s.id()
	r.s.members = append(r.s.members, *m)
	return nil
}

func (r memMemberRepo) Exists(_ context.Context, teamID, userID int64) (bool, error) {
	for _, m := range r.s.membersOf(teamID) {
		if m.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (r memMemberRepo) CountByTeam(_ context.Context, teamID int64) (int64, error) {
	return int64(len(r.s.membersOf(teamID))), nil
}

func (r memMemberRepo) CountByUser(_ context.Context, userID int64) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, m := range r.s.members {
		if m.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (r memMemberRepo) ListByTeam(_ context.Context, teamID int64) ([]model.UserTeam, error) {
	members := r.s.membersOf(teamID)
	sort.SliceStable(members, func(i, j int) bool {
		if members[i].JoinTime.Equal(members[j].JoinTime) {
			return members[i].ID < members[j].ID
		}
		return members[i].JoinTime.Before(members[j].JoinTime)
	})
	return members, nil
}

func (r memMemberRepo) removeWhere(match func(model.UserTeam) bool) int64 {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	kept := r.s.members[:0:0]
	var n int64
	for _, m := range r.s.members {
		if match(m) {
			n++
			continue
		}
		kept = append(kept, m)
	}
	r.s.members = kept
	return n
}

func (r memMemberRepo) Delete(_ context.Context, teamID, userID int64) (int64, error) {
	return r.removeWhere(func(m model.UserTeam) bool { return m.TeamID == teamID && m.UserID == userID }), nil
}

func (r memMemberRepo) DeleteByTeam(_ context.Context, teamID int64) (int64, error) {
	return r.removeWhere(func(m model.UserTeam) bool { return m.TeamID == teamID }), nil
}

// recordingPublisher keeps every published event.
type recordingPublisher struct {
	mu     sync.Mutex
	events []event.TeamEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, evt event.TeamEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []event.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]event.Type, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

var testLimits = config.TeamConfig{MaxOwned: 5, MaxJoined: 5, MinMembers: 2, MaxMembers: 20}

var fixedNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	store     *memStore
	users     *UserService
	teams     *TeamService
	publisher *recordingPublisher
}

func newFixture() *fixture {
	store := newMemStore()
	log := logger.NewNop()
	hasher := &saltedMD5Hasher{salt: "symm"}
	pub := &recordingPublisher{}

	users := NewUserService(memUserRepo{store}, hasher, lock.NopLocker{}, log)
	users.now = func() time.Time { return fixedNow }

	teams := NewTeamService(memTx{store}, memTeamRepo{store}, memMemberRepo{store}, memUserRepo{store},
		lock.NopLocker{}, pub, testLimits, log)
	teams.now = func() time.Time { return fixedNow }

	return &fixture{store: store, users: users, teams: teams, publisher: pub}
}

// seedUser inserts a user directly and returns its id.
func (f *fixture) seedUser(username string, role, status int8) int64 {
	u := &model.User{
		Username: username,
		Password: md5Hex("symm", "passw0rd"),
		Role:     role,
		Status:   status,
	}
	if err := (memUserRepo{f.store}).Create(context.Background(), u); err != nil {
		panic(err)
	}
	return u.ID
}

func (f *fixture) createTeam(owner int64, req model.TeamCreate) int64 {
	id, err := f.teams.CreateTeam(context.Background(), owner, &req)
	if err != nil {
		panic(err)
	}
	return id
}

func ptr[T any](v T) *T { return &v }

// exclusiveLocker records every Obtain and refuses keys that are still held,
// like a redis lock whose wait has run out.
type exclusiveLocker struct {
	mu    sync.Mutex
	held  map[string]bool
	tried []string
}

func newExclusiveLocker() *exclusiveLocker {
	return &exclusiveLocker{held: make(map[string]bool)}
}

func (l *exclusiveLocker) Obtain(_ context.Context, key string) (lock.Lock, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tried = append(l.tried, key)
	if l.held[key] {
		return nil, lock.ErrNotObtained
	}
	l.held[key] = true
	return &exclusiveLock{owner: l, key: key}, nil
}

func (l *exclusiveLocker) attempts() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.tried...)
}

type exclusiveLock struct {
	owner *exclusiveLocker
	key   string
}

func (k *exclusiveLock) Release(context.Context) error {
	k.owner.mu.Lock()
	defer k.owner.mu.Unlock()
	delete(k.owner.held, k.key)
	return nil
}

// interleavingMemberRepo runs beforeCreate once, ahead of the first insert.
type interleavingMemberRepo struct {
	memMemberRepo
	beforeCreate func()
}

func (r *interleavingMemberRepo) Create(ctx context.Context, m *model.UserTeam) error {
	if hook := r.beforeCreate; hook != nil {
		r.beforeCreate = nil
		hook()
	}
	return r.memMemberRepo.Create(ctx, m)
}

// lockedTeams builds a TeamService over f's store that uses locker and the
// interleaving member repo.
func (f *fixture) lockedTeams(locker lock.Locker) (*TeamService, *interleavingMemberRepo) {
	members := &interleavingMemberRepo{memMemberRepo: memMemberRepo{f.store}}
	teams := NewTeamService(memTx{f.store}, memTeamRepo{f.store}, members, memUserRepo{f.store},
		locker, f.publisher, testLimits, logger.NewNop())
	teams.now = func() time.Time { return fixedNow }
	return teams, members
}
