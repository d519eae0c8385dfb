package model

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

type TeamStatus int8

const (
	TeamPublic  TeamStatus = 0
	TeamPrivate TeamStatus = 1
	TeamSecret  TeamStatus = 2
)

func (s TeamStatus) Valid() bool {
	return s >= TeamPublic && s <= TeamSecret
}

func (s TeamStatus) String() string {
	switch s {
	case TeamPublic:
		return "public"
	case TeamPrivate:
		return "private"
	case TeamSecret:
		return "secret"
	default:
		return "unknown"
	}
}

// Team 队伍模型, UserID is the owner (leader).
type Team struct {
	ID          int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string     `gorm:"not null;type:varchar(256)" json:"name"`
	Description string     `gorm:"type:varchar(1024)" json:"description"`
	MaxNum      int        `gorm:"not null" json:"maxNum"`
	ExpireTime  *time.Time `gorm:"index" json:"expireTime"`
	UserID      int64      `gorm:"index;not null" json:"userId"`
	Status      TeamStatus `gorm:"not null" json:"status"`
	Password    *string    `gorm:"type:varchar(512)" json:"password,omitempty"`

	CreatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"createTime"`
	UpdatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updateTime"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Team) TableName() string {
	return "teams"
}

// Expired reports whether the team has an expiry at or before now.
func (t *Team) Expired(now time.Time) bool {
	return t.ExpireTime != nil && !t.ExpireTime.After(now)
}

func (t *Team) PasswordMatches(password string) bool {
	return t.Password != nil && *t.Password == password
}

// Safe returns a copy with the password cleared.
func (t Team) Safe() Team {
	t.Password = nil
	return t
}

// UserTeam 成员关系, one row per (user, team) pair.
type UserTeam struct {
	ID       int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID   int64     `gorm:"not null;uniqueIndex:idx_user_team" json:"userId"`
	TeamID   int64     `gorm:"not null;uniqueIndex:idx_user_team;index" json:"teamId"`
	JoinTime time.Time `gorm:"not null" json:"joinTime"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"createTime"`
}

func (UserTeam) TableName() string {
	return "user_teams"
}

// TeamCreate is the input of team creation.
type TeamCreate struct {
	Name        string     `json:"name" binding:"required,max=256"`
	Description string     `json:"description" binding:"max=1024"`
	MaxNum      int        `json:"maxNum"`
	ExpireTime  *time.Time `json:"expireTime"`
	Status      TeamStatus `json:"status"`
	Password    string     `json:"password" binding:"max=512"`
}

// TeamPatch carries the fields of an update; nil means untouched.
type TeamPatch struct {
	ID          int64       `json:"id" binding:"required"`
	Name        *string     `json:"name"`
	Description *string     `json:"description"`
	MaxNum      *int        `json:"maxNum"`
	ExpireTime  *time.Time  `json:"expireTime"`
	Status      *TeamStatus `json:"status"`
	Password    *string     `json:"password"`
}

// TeamQuery filters team listings. Zero values mean "no predicate".
type TeamQuery struct {
	IDs         []int64     `form:"ids"`
	SearchText  string      `form:"searchText"`
	Name        string      `form:"name"`
	Description string      `form:"description"`
	MaxNum      int         `form:"maxNum"`
	UserID      *int64      `form:"userId"`
	Status      *TeamStatus `form:"status"`
	Page        int         `form:"page"`
	PageSize    int         `form:"pageSize"`
}

// TeamView is a team enriched for listings.
type TeamView struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	MaxNum      int        `json:"maxNum"`
	ExpireTime  *time.Time `json:"expireTime"`
	UserID      int64      `json:"userId"`
	Status      TeamStatus `json:"status"`
	CreatedAt   time.Time  `json:"createTime"`
	UpdatedAt   time.Time  `json:"updateTime"`
	CreateUser  *SafeUser  `json:"createUser"`
	HasJoinNum  int        `json:"hasJoinNum"`
	HasJoin     bool       `json:"hasJoin"`
}

func IsBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
