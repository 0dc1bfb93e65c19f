package server

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/mkhalif/rolodex/server/models"
)

// Birthdays always render as MM/DD/YYYY, whatever layout they arrived in.
const birthdayDisplayLayout = "01/02/2006"

type ContactData struct {
	ContactID   uint   `json:"contact_id"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	Birthday    string `json:"birthday"`
	Company     string `json:"company"`
	LastUpdated string `json:"last_updated"`
}

type ContactLinks struct {
	Self string `json:"self"`
}

// ContactResource is the external representation of a contact.
type ContactResource struct {
	Data  ContactData  `json:"data"`
	Links ContactLinks `json:"links"`
}

// NewContactResource maps a stored contact to its external shape.
// "last_updated" is recomputed on every render, never stored.
func NewContactResource(contact *models.Contact) ContactResource {
	return ContactResource{
		Data: ContactData{
			ContactID:   contact.ID,
			Name:        contact.Name,
			Email:       contact.Email,
			Birthday:    contact.Birthday.Format(birthdayDisplayLayout),
			Company:     contact.Company,
			LastUpdated: humanize.Time(contact.UpdatedAt),
		},
		Links: ContactLinks{Self: contactPath(contact.ID)},
	}
}

func NewContactCollection(contacts []models.Contact) []ContactResource {
	resources := make([]ContactResource, 0, len(contacts))
	for i := range contacts {
		resources = append(resources, NewContactResource(&contacts[i]))
	}

	return resources
}

func contactPath(id uint) string {
	return fmt.Sprintf("/contacts/%d", id)
}
