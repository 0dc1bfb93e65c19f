package models

import (
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"
)

type Contact struct {
	BaseModel
	Name     string    `json:"name" gorm:"not null"`
	Email    string    `json:"email" gorm:"not null"`
	Birthday time.Time `json:"birthday" gorm:"not null"`
	Company  string    `json:"company"`
	UserID   uint      `json:"user_id" gorm:"not null;index"`
}

// ContactFields carries the four caller-settable contact fields.
// Birthday arrives already parsed by the validation layer.
type ContactFields struct {
	Name     string
	Email    string
	Birthday time.Time
	Company  string
}

// ContactStore is the persistence contract the contact handlers depend on.
type ContactStore interface {
	ListByUser(userID uint) ([]Contact, error)
	ListUpcomingBirthdays(userID uint, now time.Time, windowDays int) ([]Contact, error)
	Get(id uint) (*Contact, error)
	Create(userID uint, fields ContactFields) (*Contact, error)
	Update(id uint, fields ContactFields) (*Contact, error)
	Delete(id uint) error
}

// SqliteContactStore is the gorm-backed ContactStore over the package db.
type SqliteContactStore struct {
	db *gorm.DB
}

// NewContactStore must be called after AutoMigrate/InitializeTestDb has
// opened the database.
func NewContactStore() *SqliteContactStore {
	return &SqliteContactStore{db: db}
}

func (store *SqliteContactStore) ListByUser(userID uint) ([]Contact, error) {
	contacts := []Contact{}
	err := store.db.Find(&contacts, "user_id = ?", userID).Error
	if err != nil {
		return nil, err
	}

	return contacts, nil
}

// ListUpcomingBirthdays returns the user's contacts whose birthday month/day
// falls between now and now+windowDays inclusive, soonest first. Matching is
// year-agnostic, and generating one key per day of the window means a window
// spanning Dec 28–Jan 5 matches December and January birthdays alike.
func (store *SqliteContactStore) ListUpcomingBirthdays(userID uint, now time.Time, windowDays int) ([]Contact, error) {
	keys := birthdayWindowKeys(now, windowDays)

	contacts := []Contact{}
	err := store.db.
		Where("user_id = ? AND strftime('%m-%d', birthday) IN ?", userID, keys).
		Find(&contacts).Error
	if err != nil {
		return nil, err
	}

	daysUntil := make(map[string]int, len(keys))
	for i, key := range keys {
		daysUntil[key] = i
	}

	sort.SliceStable(contacts, func(i, j int) bool {
		return daysUntil[monthDayKey(contacts[i].Birthday)] < daysUntil[monthDayKey(contacts[j].Birthday)]
	})

	return contacts, nil
}

func (store *SqliteContactStore) Get(id uint) (*Contact, error) {
	contact := Contact{}
	err := store.db.First(&contact, id).Error
	if err != nil {
		return nil, err
	}

	return &contact, nil
}

func (store *SqliteContactStore) Create(userID uint, fields ContactFields) (*Contact, error) {
	contact := Contact{
		Name:     fields.Name,
		Email:    fields.Email,
		Birthday: dateOnly(fields.Birthday),
		Company:  fields.Company,
		UserID:   userID,
	}

	if err := store.db.Create(&contact).Error; err != nil {
		return nil, err
	}

	return &contact, nil
}

// Update overwrites all four contact fields; partial updates are not part
// of the contract. UserID is never touched.
func (store *SqliteContactStore) Update(id uint, fields ContactFields) (*Contact, error) {
	contact := Contact{}
	if err := store.db.First(&contact, id).Error; err != nil {
		return nil, err
	}

	contact.Name = fields.Name
	contact.Email = fields.Email
	contact.Birthday = dateOnly(fields.Birthday)
	contact.Company = fields.Company

	if err := store.db.Save(&contact).Error; err != nil {
		return nil, err
	}

	return &contact, nil
}

func (store *SqliteContactStore) Delete(id uint) error {
	result := store.db.Delete(&Contact{}, id)
	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}

// ---------------------------------------------------------------------------------//
// Helper functions
// --------------------------------------------------------------------------------//

// dateOnly drops the time-of-day & normalizes to UTC. Stored values carry
// no sub-second part, which keeps them parseable by sqlite's date functions.
func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func birthdayWindowKeys(now time.Time, windowDays int) []string {
	keys := make([]string, 0, windowDays+2)
	for i := 0; i <= windowDays; i++ {
		day := now.AddDate(0, 0, i)
		keys = append(keys, monthDayKey(day))

		// Feb 29 birthdays are celebrated on Feb 28 in non-leap years;
		// without this key they would only ever match once every four years.
		if day.Month() == time.February && day.Day() == 28 && !isLeapYear(day.Year()) {
			keys = append(keys, "02-29")
		}
	}

	return keys
}

func isLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

func monthDayKey(t time.Time) string {
	return fmt.Sprintf("%02d-%02d", int(t.Month()), t.Day())
}
