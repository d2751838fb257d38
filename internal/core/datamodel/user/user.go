package user

import "time"

type User struct {
	ID           int64     `gorm:"primaryKey"`
	Email        string    `gorm:"column:email;uniqueIndex;not null"`
	Firstname    string    `gorm:"column:firstname;not null"`
	Lastname     string    `gorm:"column:lastname;not null"`
	Role         string    `gorm:"column:role;not null;default:'employee'"`
	IBAN         string    `gorm:"column:iban"`
	PasswordHash string    `gorm:"column:password_hash;not null"`
	CreatedAt    time.Time `gorm:"column:created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at"`
}

func (User) TableName() string {
	return "users"
}
