package domain

import "time"

const MaxNameLength = 35

type User struct {
	ID          UserID    `gorm:"type:uuid;primaryKey" json:"id"`
	Email       string    `gorm:"type:text;uniqueIndex:ux_users_email" json:"email"` // always stored lowercased
	Name        string    `gorm:"size:35" json:"name"`
	Surname     string    `gorm:"size:35" json:"surname"`
	IsActive    bool      `gorm:"not null;default:false" json:"isActive"`
	IsStaff     bool      `gorm:"not null;default:false" json:"-"`
	IsSuperuser bool      `gorm:"not null;default:false" json:"-"`
	CreatedAt   time.Time `gorm:"not null" json:"createdAt"`
	UpdatedAt   time.Time `gorm:"not null" json:"updatedAt"`
}

func (User) TableName() string { return "users" }

func (u *User) FullName() string { return u.Name + " " + u.Surname }
