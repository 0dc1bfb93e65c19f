package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/mkhalif/rolodex/server/auth"
	"github.com/mkhalif/rolodex/server/auth/key"
	"github.com/mkhalif/rolodex/server/models"
	"gorm.io/gorm"
)

// contactParams is the write-path request body. Company is a pointer on
// purpose: the field must be present, but unlike the other three an empty
// string is allowed.
type contactParams struct {
	Name     string  `json:"name" validate:"required"`
	Email    string  `json:"email" validate:"required,email,email_domain"`
	Birthday string  `json:"birthday" validate:"required,birthday"`
	Company  *string `json:"company" validate:"required"`
}

func (params *contactParams) fields() models.ContactFields {
	// birthday already validated as parseable
	birthday, _ := parseBirthday(params.Birthday)

	return models.ContactFields{
		Name:     params.Name,
		Email:    params.Email,
		Birthday: birthday,
		Company:  *params.Company,
	}
}

// ---------------------------------------------------------------------------------//
// Account handlers
// --------------------------------------------------------------------------------//

// signUpParams is the only shape a signup body is read through. Decoding
// straight into models.User would let a payload smuggle in association
// rows (e.g. "contacts") that gorm would happily persist unvalidated.
type signUpParams struct {
	FirstName string `json:"first_name" validate:"required"`
	LastName  string `json:"last_name" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required"`
}

func signUp(rw http.ResponseWriter, r *http.Request) {
	params := signUpParams{}

	err := json.NewDecoder(r.Body).Decode(&params)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{"invalid request body"}}, http.StatusBadRequest)
		return
	}

	if err := validate.Struct(&params); err != nil {
		writeResponse(rw, ResponsePayload{Errors: fieldErrorMessages(err)}, http.StatusUnprocessableEntity)
		return
	}

	user := models.User{
		FirstName: params.FirstName,
		LastName:  params.LastName,
		Email:     params.Email,
		Password:  params.Password,
	}

	err = models.CreateUser(&user)
	if err != nil && strings.Contains(err.Error(), "UNIQUE") {
		writeResponse(rw,
			ResponsePayload{Errors: map[string][]string{"email": {"The email has already been taken."}}},
			http.StatusUnprocessableEntity)
		return
	}

	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	token, err := newAuthToken(&user)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	writeResponse(rw, ResponsePayload{Success: true, Data: map[string]string{"token": token}}, http.StatusCreated)
}

func logIn(rw http.ResponseWriter, r *http.Request) {
	data := make(map[string]string)
	decoder := json.NewDecoder(r.Body)
	decoder.Decode(&data)

	passwordHash, err := models.FindUserPassword(data["email"])
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	if !auth.CheckPasswordHash(data["password"], passwordHash) {
		writeResponse(rw, ResponsePayload{Errors: []string{"email/password is invalid"}}, http.StatusUnauthorized)
		return
	}

	user, err := models.FindUserBy("email", data["email"])
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	token, err := newAuthToken(user)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	writeResponse(rw, ResponsePayload{Data: map[string]string{"token": token}}, http.StatusOK)
}

func jwks(rw http.ResponseWriter, r *http.Request) {
	keyPairJWK, err := authKeyPair.JWK()
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	json.NewEncoder(rw).Encode(key.ExportJWKAsJWKS(keyPairJWK))
}

// ---------------------------------------------------------------------------------//
// Contact handlers
// --------------------------------------------------------------------------------//

func listContacts(rw http.ResponseWriter, r *http.Request) {
	contacts, err := contactStore.ListByUser(currentUser(r).ID)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	writeResponse(rw, ResponsePayload{Data: NewContactCollection(contacts)}, http.StatusOK)
}

func listBirthdays(rw http.ResponseWriter, r *http.Request) {
	contacts, err := contactStore.ListUpcomingBirthdays(currentUser(r).ID, time.Now(), birthdayWindowDays)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	writeResponse(rw, ResponsePayload{Data: NewContactCollection(contacts)}, http.StatusOK)
}

func createContact(rw http.ResponseWriter, r *http.Request) {
	params, ok := decodeContactParams(rw, r)
	if !ok {
		return
	}

	contact, err := contactStore.Create(currentUser(r).ID, params.fields())
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	writeResource(rw, NewContactResource(contact), http.StatusCreated)
}

func showContact(rw http.ResponseWriter, r *http.Request) {
	contact := fetchAuthorizedContact(rw, r)
	if contact == nil {
		return
	}

	writeResource(rw, NewContactResource(contact), http.StatusOK)
}

func updateContact(rw http.ResponseWriter, r *http.Request) {
	contact := fetchAuthorizedContact(rw, r)
	if contact == nil {
		return
	}

	params, ok := decodeContactParams(rw, r)
	if !ok {
		return
	}

	contact, err := contactStore.Update(contact.ID, params.fields())
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	writeResource(rw, NewContactResource(contact), http.StatusOK)
}

func deleteContact(rw http.ResponseWriter, r *http.Request) {
	contact := fetchAuthorizedContact(rw, r)
	if contact == nil {
		return
	}

	if err := contactStore.Delete(contact.ID); err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	rw.WriteHeader(http.StatusNoContent)
}

// decodeContactParams decodes & validates the write-path body. On failure
// the 400/422 response has already been written & ok is false; either way
// nothing has touched the store yet.
func decodeContactParams(rw http.ResponseWriter, r *http.Request) (*contactParams, bool) {
	params := contactParams{}

	err := json.NewDecoder(r.Body).Decode(&params)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{"invalid request body"}}, http.StatusBadRequest)
		return nil, false
	}

	// a name of all whitespace counts as missing
	params.Name = strings.TrimSpace(params.Name)

	if err := validate.Struct(&params); err != nil {
		writeResponse(rw, ResponsePayload{Errors: fieldErrorMessages(err)}, http.StatusUnprocessableEntity)
		return nil, false
	}

	return &params, true
}
