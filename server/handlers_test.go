package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mkhalif/rolodex/server/auth/key"
	"github.com/mkhalif/rolodex/server/models"
	"github.com/stretchr/testify/assert"
)

type errorsPayload struct {
	Errors map[string][]string `json:"errors"`
}

type collectionPayload struct {
	Data []ContactResource `json:"data"`
}

func setupTestApp(t *testing.T) {
	t.Helper()

	models.InitializeTestDb()

	var err error
	authKeyPair, err = key.NewRandomKeyPair()
	assert.Nil(t, err)

	assert.Nil(t, RegisterValidators(validate))

	contactStore = models.NewContactStore()
	birthdayWindowDays = DEFAULT_BIRTHDAY_WINDOW_DAYS
}

func createTestUser(t *testing.T, email string) (*models.User, string) {
	t.Helper()

	user := &models.User{
		FirstName: "tony",
		LastName:  "stark",
		Email:     email,
		Password:  "very-secure",
	}
	assert.Nil(t, models.CreateUser(user), "Should create user record")

	token, err := newAuthToken(user)
	assert.Nil(t, err)

	return user, token
}

func createTestContact(t *testing.T, userID uint) *models.Contact {
	t.Helper()

	contact, err := contactStore.Create(userID, models.ContactFields{
		Name:     "Pepper Potts",
		Email:    "pepper@stark.io",
		Birthday: time.Date(1991, time.January, 12, 0, 0, 0, 0, time.UTC),
		Company:  "Stark Industries",
	})
	assert.Nil(t, err)

	return contact
}

func doRequest(t *testing.T, method, target, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		assert.Nil(t, err)
		reader = bytes.NewReader(buf)
	}

	request := httptest.NewRequest(method, target, reader)
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}

	recorder := httptest.NewRecorder()
	NewRouter().ServeHTTP(recorder, request)

	return recorder
}

func contactData() map[string]interface{} {
	return map[string]interface{}{
		"name":     "Test Name",
		"email":    "test@email.com",
		"birthday": "01/12/1991",
		"company":  "ABC String",
	}
}

func decodeResource(t *testing.T, recorder *httptest.ResponseRecorder) ContactResource {
	t.Helper()

	resource := ContactResource{}
	assert.Nil(t, json.Unmarshal(recorder.Body.Bytes(), &resource))

	return resource
}

func decodeFieldErrors(t *testing.T, recorder *httptest.ResponseRecorder) map[string][]string {
	t.Helper()

	payload := errorsPayload{}
	assert.Nil(t, json.Unmarshal(recorder.Body.Bytes(), &payload))

	return payload.Errors
}

func TestListContactsForAuthenticatedUser(t *testing.T) {
	setupTestApp(t)

	firstUser, firstToken := createTestUser(t, "stark@avengers.com")
	secondUser, _ := createTestUser(t, "web@avengers.com")

	firstContact := createTestContact(t, firstUser.ID)
	createTestContact(t, secondUser.ID)

	recorder := doRequest(t, "GET", "/contacts", firstToken, nil)
	assert.Equal(t, http.StatusOK, recorder.Code)

	payload := collectionPayload{}
	assert.Nil(t, json.Unmarshal(recorder.Body.Bytes(), &payload))
	assert.Len(t, payload.Data, 1, "Only the caller's own contacts should be listed")
	assert.Equal(t, firstContact.ID, payload.Data[0].Data.ContactID)
}

func TestUnauthenticatedRequestsAreRejected(t *testing.T) {
	setupTestApp(t)

	user, _ := createTestUser(t, "stark@avengers.com")

	recorder := doRequest(t, "POST", "/contacts", "", contactData())
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)

	recorder = doRequest(t, "GET", "/contacts", "not-a-real-token", nil)
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)

	contacts, err := contactStore.ListByUser(user.ID)
	assert.Nil(t, err)
	assert.Empty(t, contacts, "No contact should be persisted for a rejected request")
}

func TestAuthTokenAcceptedAsQueryParameter(t *testing.T) {
	setupTestApp(t)

	user, token := createTestUser(t, "stark@avengers.com")
	contact := createTestContact(t, user.ID)

	recorder := doRequest(t, "GET", fmt.Sprintf("/contacts/%d?api_token=%s", contact.ID, token), "", nil)
	assert.Equal(t, http.StatusOK, recorder.Code)
}

func TestCreateContact(t *testing.T) {
	setupTestApp(t)

	user, token := createTestUser(t, "stark@avengers.com")

	recorder := doRequest(t, "POST", "/contacts", token, contactData())
	assert.Equal(t, http.StatusCreated, recorder.Code)

	resource := decodeResource(t, recorder)
	assert.Equal(t, "Test Name", resource.Data.Name)
	assert.Equal(t, "test@email.com", resource.Data.Email)
	assert.Equal(t, "01/12/1991", resource.Data.Birthday)
	assert.Equal(t, "ABC String", resource.Data.Company)
	assert.NotEmpty(t, resource.Data.LastUpdated)
	assert.Equal(t, fmt.Sprintf("/contacts/%d", resource.Data.ContactID), resource.Links.Self)

	contact, err := contactStore.Get(resource.Data.ContactID)
	assert.Nil(t, err)
	assert.Equal(t, user.ID, contact.UserID)
	assert.Equal(t, time.Date(1991, time.January, 12, 0, 0, 0, 0, time.UTC), contact.Birthday)
}

func TestContactFieldsAreRequired(t *testing.T) {
	setupTestApp(t)

	user, token := createTestUser(t, "stark@avengers.com")

	for _, field := range []string{"name", "email", "birthday", "company"} {
		t.Run(field, func(t *testing.T) {
			data := contactData()
			if field == "company" {
				// an empty company is allowed; only a missing field is not
				delete(data, field)
			} else {
				data[field] = ""
			}

			recorder := doRequest(t, "POST", "/contacts", token, data)
			assert.Equal(t, http.StatusUnprocessableEntity, recorder.Code)
			assert.Contains(t, decodeFieldErrors(t, recorder), field)

			contacts, err := contactStore.ListByUser(user.ID)
			assert.Nil(t, err)
			assert.Empty(t, contacts, "A rejected create should not persist a row")
		})
	}
}

func TestCompanyMayBeEmpty(t *testing.T) {
	setupTestApp(t)

	_, token := createTestUser(t, "stark@avengers.com")

	data := contactData()
	data["company"] = ""

	recorder := doRequest(t, "POST", "/contacts", token, data)
	assert.Equal(t, http.StatusCreated, recorder.Code)
	assert.Equal(t, "", decodeResource(t, recorder).Data.Company)
}

func TestWhitespaceNameIsTreatedAsMissing(t *testing.T) {
	setupTestApp(t)

	_, token := createTestUser(t, "stark@avengers.com")

	data := contactData()
	data["name"] = "   "

	recorder := doRequest(t, "POST", "/contacts", token, data)
	assert.Equal(t, http.StatusUnprocessableEntity, recorder.Code)
	assert.Contains(t, decodeFieldErrors(t, recorder), "name")
}

func TestEmailMustBeValid(t *testing.T) {
	setupTestApp(t)

	user, token := createTestUser(t, "stark@avengers.com")

	for _, email := range []string{"Not a valid email", "missing-domain@email"} {
		data := contactData()
		data["email"] = email

		recorder := doRequest(t, "POST", "/contacts", token, data)
		assert.Equal(t, http.StatusUnprocessableEntity, recorder.Code)
		assert.Contains(t, decodeFieldErrors(t, recorder), "email")
	}

	contacts, err := contactStore.ListByUser(user.ID)
	assert.Nil(t, err)
	assert.Empty(t, contacts)
}

func TestBirthdayInputFormats(t *testing.T) {
	setupTestApp(t)

	_, token := createTestUser(t, "stark@avengers.com")

	// both accepted layouts normalize to the same stored date & render
	// back as MM/DD/YYYY
	for _, birthday := range []string{"01/12/1991", "January 12, 1991"} {
		data := contactData()
		data["birthday"] = birthday

		recorder := doRequest(t, "POST", "/contacts", token, data)
		assert.Equal(t, http.StatusCreated, recorder.Code)

		resource := decodeResource(t, recorder)
		assert.Equal(t, "01/12/1991", resource.Data.Birthday)

		contact, err := contactStore.Get(resource.Data.ContactID)
		assert.Nil(t, err)
		assert.Equal(t, time.Date(1991, time.January, 12, 0, 0, 0, 0, time.UTC), contact.Birthday)
	}

	data := contactData()
	data["birthday"] = "not a date"

	recorder := doRequest(t, "POST", "/contacts", token, data)
	assert.Equal(t, http.StatusUnprocessableEntity, recorder.Code)
	assert.Contains(t, decodeFieldErrors(t, recorder), "birthday")
}

func TestShowContact(t *testing.T) {
	setupTestApp(t)

	user, token := createTestUser(t, "stark@avengers.com")
	contact := createTestContact(t, user.ID)

	recorder := doRequest(t, "GET", fmt.Sprintf("/contacts/%d", contact.ID), token, nil)
	assert.Equal(t, http.StatusOK, recorder.Code)

	resource := decodeResource(t, recorder)
	assert.Equal(t, contact.ID, resource.Data.ContactID)
	assert.Equal(t, "Pepper Potts", resource.Data.Name)
	assert.Equal(t, "01/12/1991", resource.Data.Birthday)
	assert.NotEmpty(t, resource.Data.LastUpdated)
}

func TestMissingContactIsNotFound(t *testing.T) {
	setupTestApp(t)

	_, token := createTestUser(t, "stark@avengers.com")

	for _, target := range []string{"/contacts/999", "/contacts/not-an-id"} {
		assert.Equal(t, http.StatusNotFound, doRequest(t, "GET", target, token, nil).Code)
		assert.Equal(t, http.StatusNotFound, doRequest(t, "PATCH", target, token, contactData()).Code)
		assert.Equal(t, http.StatusNotFound, doRequest(t, "DELETE", target, token, nil).Code)
	}
}

func TestOnlyTheOwnerCanAccessAContact(t *testing.T) {
	setupTestApp(t)

	owner, _ := createTestUser(t, "stark@avengers.com")
	_, strangerToken := createTestUser(t, "web@avengers.com")

	contact := createTestContact(t, owner.ID)
	target := fmt.Sprintf("/contacts/%d", contact.ID)

	assert.Equal(t, http.StatusForbidden, doRequest(t, "GET", target, strangerToken, nil).Code)
	assert.Equal(t, http.StatusForbidden, doRequest(t, "PATCH", target, strangerToken, contactData()).Code)
	assert.Equal(t, http.StatusForbidden, doRequest(t, "DELETE", target, strangerToken, nil).Code)

	// nothing was mutated
	fetched, err := contactStore.Get(contact.ID)
	assert.Nil(t, err)
	assert.Equal(t, "Pepper Potts", fetched.Name)
}

func TestUpdateContact(t *testing.T) {
	setupTestApp(t)

	user, token := createTestUser(t, "stark@avengers.com")
	contact := createTestContact(t, user.ID)

	recorder := doRequest(t, "PATCH", fmt.Sprintf("/contacts/%d", contact.ID), token, contactData())
	assert.Equal(t, http.StatusOK, recorder.Code)

	resource := decodeResource(t, recorder)
	assert.Equal(t, contact.ID, resource.Data.ContactID)
	assert.Equal(t, "Test Name", resource.Data.Name)
	assert.Equal(t, fmt.Sprintf("/contacts/%d", contact.ID), resource.Links.Self)

	fetched, err := contactStore.Get(contact.ID)
	assert.Nil(t, err)
	assert.Equal(t, "Test Name", fetched.Name)
	assert.Equal(t, "test@email.com", fetched.Email)
	assert.Equal(t, time.Date(1991, time.January, 12, 0, 0, 0, 0, time.UTC), fetched.Birthday)
	assert.Equal(t, "ABC String", fetched.Company)
}

func TestUpdateValidationLeavesContactUntouched(t *testing.T) {
	setupTestApp(t)

	user, token := createTestUser(t, "stark@avengers.com")
	contact := createTestContact(t, user.ID)

	data := contactData()
	data["email"] = "not-an-email"

	recorder := doRequest(t, "PATCH", fmt.Sprintf("/contacts/%d", contact.ID), token, data)
	assert.Equal(t, http.StatusUnprocessableEntity, recorder.Code)
	assert.Contains(t, decodeFieldErrors(t, recorder), "email")

	fetched, err := contactStore.Get(contact.ID)
	assert.Nil(t, err)
	assert.Equal(t, "Pepper Potts", fetched.Name)
	assert.Equal(t, "pepper@stark.io", fetched.Email)
}

func TestDeleteContact(t *testing.T) {
	setupTestApp(t)

	user, token := createTestUser(t, "stark@avengers.com")
	contact := createTestContact(t, user.ID)
	target := fmt.Sprintf("/contacts/%d", contact.ID)

	recorder := doRequest(t, "DELETE", target, token, nil)
	assert.Equal(t, http.StatusNoContent, recorder.Code)
	assert.Zero(t, recorder.Body.Len(), "Delete responses should have an empty body")

	assert.Equal(t, http.StatusNotFound, doRequest(t, "GET", target, token, nil).Code)

	contacts, err := contactStore.ListByUser(user.ID)
	assert.Nil(t, err)
	assert.Empty(t, contacts)
}

func TestUpcomingBirthdaysEndpoint(t *testing.T) {
	setupTestApp(t)

	user, token := createTestUser(t, "stark@avengers.com")

	soon := time.Now().AddDate(0, 0, 2)
	later := time.Now().AddDate(0, 0, 30)

	inWindow, err := contactStore.Create(user.ID, models.ContactFields{
		Name:     "Happy Hogan",
		Email:    "happy@stark.io",
		Birthday: time.Date(1970, soon.Month(), soon.Day(), 0, 0, 0, 0, time.UTC),
	})
	assert.Nil(t, err)

	_, err = contactStore.Create(user.ID, models.ContactFields{
		Name:     "Nick Fury",
		Email:    "fury@shield.gov",
		Birthday: time.Date(1960, later.Month(), later.Day(), 0, 0, 0, 0, time.UTC),
	})
	assert.Nil(t, err)

	recorder := doRequest(t, "GET", "/birthdays", token, nil)
	assert.Equal(t, http.StatusOK, recorder.Code)

	payload := collectionPayload{}
	assert.Nil(t, json.Unmarshal(recorder.Body.Bytes(), &payload))
	assert.Len(t, payload.Data, 1)
	assert.Equal(t, inWindow.ID, payload.Data[0].Data.ContactID)
}

func TestSignUpAndLogIn(t *testing.T) {
	setupTestApp(t)

	recorder := doRequest(t, "POST", "/signup", "", map[string]string{
		"first_name": "tony",
		"last_name":  "stark",
		"email":      "stark@avengers.com",
		"password":   "very-secure",
	})
	assert.Equal(t, http.StatusCreated, recorder.Code)

	signupPayload := struct {
		Data map[string]string `json:"data"`
	}{}
	assert.Nil(t, json.Unmarshal(recorder.Body.Bytes(), &signupPayload))
	assert.NotEmpty(t, signupPayload.Data["token"])

	recorder = doRequest(t, "GET", "/contacts", signupPayload.Data["token"], nil)
	assert.Equal(t, http.StatusOK, recorder.Code)

	recorder = doRequest(t, "POST", "/login", "", map[string]string{
		"email":    "stark@avengers.com",
		"password": "very-secure",
	})
	assert.Equal(t, http.StatusOK, recorder.Code)

	recorder = doRequest(t, "POST", "/login", "", map[string]string{
		"email":    "stark@avengers.com",
		"password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
}

func TestSignUpValidation(t *testing.T) {
	setupTestApp(t)

	recorder := doRequest(t, "POST", "/signup", "", map[string]string{
		"first_name": "tony",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, recorder.Code)

	fieldErrors := decodeFieldErrors(t, recorder)
	assert.Contains(t, fieldErrors, "email")
	assert.Contains(t, fieldErrors, "password")
}

func TestSignUpIgnoresEmbeddedContacts(t *testing.T) {
	setupTestApp(t)

	recorder := doRequest(t, "POST", "/signup", "", map[string]interface{}{
		"first_name": "tony",
		"last_name":  "stark",
		"email":      "stark@avengers.com",
		"password":   "very-secure",
		"contacts": []map[string]interface{}{
			{"name": "", "email": "not-an-email"},
		},
	})
	assert.Equal(t, http.StatusCreated, recorder.Code)

	user, err := models.FindUserBy("email", "stark@avengers.com")
	assert.Nil(t, err)

	contacts, err := contactStore.ListByUser(user.ID)
	assert.Nil(t, err)
	assert.Empty(t, contacts, "Contacts riding in on a signup body must never be persisted")
}

func TestJWKSEndpoint(t *testing.T) {
	setupTestApp(t)

	recorder := doRequest(t, "GET", "/.well-known/jwks.json", "", nil)
	assert.Equal(t, http.StatusOK, recorder.Code)

	payload := struct {
		Keys []map[string]interface{} `json:"keys"`
	}{}
	assert.Nil(t, json.Unmarshal(recorder.Body.Bytes(), &payload))
	assert.Len(t, payload.Keys, 1)
}
