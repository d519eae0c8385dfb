package model

import (
	"time"

	"gorm.io/datatypes"
)

const (
	UserStatusDisabled int8 = 0
	UserStatusEnabled  int8 = 1
)

const (
	RoleUser  int8 = 0
	RoleAdmin int8 = 1
)

// User 用户模型
type User struct {
	ID       int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	Username string `gorm:"column:username;uniqueIndex;not null;type:varchar(32)" json:"username"`
	Password string `gorm:"not null;type:varchar(255)" json:"-"`
	UnionID  string `gorm:"type:varchar(64)" json:"unionId"`
	OpenID   string `gorm:"type:varchar(64)" json:"openId"`
	Phone    string `gorm:"type:varchar(32)" json:"phone"`
	Email    string `gorm:"type:varchar(255)" json:"email"`
	Sex      int8   `gorm:"not null" json:"sex"`
	Avatar   string `gorm:"type:varchar(1024)" json:"avatar"`
	Profile  string `gorm:"type:varchar(512)" json:"profile"`
	Status   int8   `gorm:"not null" json:"status"`
	Role     int8   `gorm:"not null" json:"role"`

	Tags datatypes.JSONSlice[string] `json:"tags"`

	LastLoginAt *time.Time `json:"lastLoginAt"`
	CreatedAt   time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP" json:"createTime"`
	UpdatedAt   time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updateTime"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// SafeUser is the projection of User that may cross the API boundary.
type SafeUser struct {
	ID          int64      `json:"id"`
	Username    string     `json:"username"`
	UnionID     string     `json:"unionId"`
	OpenID      string     `json:"openId"`
	Phone       string     `json:"phone"`
	Email       string     `json:"email"`
	Sex         int8       `json:"sex"`
	Avatar      string     `json:"avatar"`
	Profile     string     `json:"profile"`
	Status      int8       `json:"status"`
	Role        int8       `json:"role"`
	Tags        []string   `json:"tags"`
	LastLoginAt *time.Time `json:"lastLoginAt"`
	CreatedAt   time.Time  `json:"createTime"`
	UpdatedAt   time.Time  `json:"updateTime"`
}

// UserPatch carries the profile fields a user may change; nil means untouched.
type UserPatch struct {
	ID      int64    `json:"id" binding:"required"`
	Phone   *string  `json:"phone"`
	Email   *string  `json:"email"`
	Sex     *int8    `json:"sex"`
	Avatar  *string  `json:"avatar"`
	Profile *string  `json:"profile"`
	Tags    []string `json:"tags"`
}
