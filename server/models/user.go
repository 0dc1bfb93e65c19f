package models

import (
	"fmt"

	"github.com/mkhalif/rolodex/server/auth"
)

var allFieldsExceptPassword = []string{"id",
	"first_name",
	"last_name",
	"email",
	"created_at",
	"updated_at",
}

// User is never decoded from request bodies directly; the signup handler
// goes through its own params struct so the Contacts association can't be
// populated from caller input.
type User struct {
	BaseModel
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Email     string    `json:"email" gorm:"not null;unique"`
	Password  string    `json:"password,omitempty" gorm:"not null"`
	Contacts  []Contact `json:"contacts,omitempty" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}

// Owns reports whether contact belongs to user. Callers check this only
// after the contact is known to exist, so a failed check renders as
// forbidden rather than not-found.
func (user *User) Owns(contact *Contact) bool {
	return contact.UserID == user.ID
}

func CreateUser(user *User) error {
	passwordHash, err := auth.HashPassword(user.Password)
	if err != nil {
		return err
	}
	user.Password = passwordHash

	return db.Create(user).Error
}

func FindUserBy(field string, value interface{}) (*User, error) {
	user := User{}
	err := db.Select(allFieldsExceptPassword).First(&user, fmt.Sprintf("%v = ?", field), value).Error
	if err != nil {
		return nil, err
	}

	return &user, nil
}

func FindUserPassword(email string) (string, error) {
	user := &User{}
	err := db.Select("Password").First(user, "email = ?", email).Error

	if err != nil {
		return "", err
	}
	return user.Password, nil
}
