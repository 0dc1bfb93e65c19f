package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator"
	"github.com/golang-jwt/jwt"
	"github.com/gorilla/mux"
	"github.com/mkhalif/rolodex/server/auth"
	"github.com/mkhalif/rolodex/server/models"
	"github.com/mkhalif/rolodex/utils"
	"gorm.io/gorm"
)

type ResponsePayload struct {
	// Errors is either a list of messages or a field => messages map
	// for validation failures.
	Errors  interface{} `json:"errors,omitempty"`
	Success bool        `json:"success,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// ---------------------------------------------------------------------------------//
// Handler Helper functions
// --------------------------------------------------------------------------------//

func writeResponse(rw http.ResponseWriter, payLoad ResponsePayload, statusCode int) {
	if statusCode >= http.StatusInternalServerError {
		logg.Error(payLoad.Errors)
	}

	rw.WriteHeader(statusCode)
	json.NewEncoder(rw).Encode(payLoad)
}

// writeResource writes a bare resource object, outside the ResponsePayload
// envelope. Single contacts are rendered this way.
func writeResource(rw http.ResponseWriter, resource interface{}, statusCode int) {
	rw.WriteHeader(statusCode)
	json.NewEncoder(rw).Encode(resource)
}

// fetchAuthorizedContact loads the contact targeted by the {id} route var
// & enforces the response ordering the API promises: not-found before
// forbidden. On failure the response has already been written & nil is
// returned.
func fetchAuthorizedContact(rw http.ResponseWriter, r *http.Request) *models.Contact {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{"contact not found"}}, http.StatusNotFound)
		return nil
	}

	contact, err := contactStore.Get(uint(id))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeResponse(rw, ResponsePayload{Errors: []string{"contact not found"}}, http.StatusNotFound)
		return nil
	}

	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return nil
	}

	if !currentUser(r).Owns(contact) {
		writeResponse(rw, ResponsePayload{Errors: []string{"action is forbidden"}}, http.StatusForbidden)
		return nil
	}

	return contact
}

func currentUser(r *http.Request) *models.User {
	user, _ := r.Context().Value(RequestContextKey("currentUser")).(*models.User)
	return user
}

func newAuthToken(user *models.User) (string, error) {
	claims := auth.TokenClaims{
		FirstName: user.FirstName,
		LastName:  user.LastName,
		StandardClaims: jwt.StandardClaims{
			Subject:   fmt.Sprint(user.ID),
			IssuedAt:  time.Now().Unix(),
			ExpiresAt: time.Now().Add(24 * time.Hour).Unix(),
			Issuer:    "rolodex",
		},
	}

	return auth.EncodeJWT(claims, authKeyPair)
}

// ---------------------------------------------------------------------------------//
// Validation Helper functions
// --------------------------------------------------------------------------------//

func RegisterValidators(validate *validator.Validate) error {
	// report fields by their json names
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	err := validate.RegisterValidation("birthday", func(fl validator.FieldLevel) bool {
		_, err := parseBirthday(fl.Field().String())
		return err == nil
	})
	if err != nil {
		return err
	}

	// the stock 'email' rule is lenient about bare hostnames;
	// contacts additionally need a dot in the domain part
	err = validate.RegisterValidation("email_domain", func(fl validator.FieldLevel) bool {
		parts := strings.Split(fl.Field().String(), "@")
		return len(parts) == 2 && strings.Contains(parts[1], ".")
	})

	return err
}

// parseBirthday tries each accepted layout in turn & normalizes the match
// to a bare date. Unparseable input is an error, never a silent zero date.
func parseBirthday(value string) (time.Time, error) {
	for _, layout := range birthdayLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized date: %q", value)
}

func fieldErrorMessages(err error) map[string][]string {
	fieldErrors := map[string][]string{}

	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		fieldErrors["base"] = []string{err.Error()}
		return fieldErrors
	}

	for _, fieldError := range validationErrors {
		field := fieldError.Field()
		fieldErrors[field] = append(fieldErrors[field], messageForTag(field, fieldError.Tag()))
	}

	return fieldErrors
}

func messageForTag(field, tag string) string {
	switch tag {
	case "required":
		return fmt.Sprintf("The %s field is required.", field)
	case "email", "email_domain":
		return "The email must be a valid email address."
	case "birthday":
		return "The birthday is not a valid date."
	}

	return fmt.Sprintf("The %s field is invalid.", field)
}

// ---------------------------------------------------------------------------------//
// Server Helper functions
// --------------------------------------------------------------------------------//

func serve(server *http.Server) {
	logg.Infof("Rolodex server is listening on %v...", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Fatal(err)
	}
}

// configDirectory retrieves the directory rolodex keeps its database in,
// or logs an error message and exits if it's unable to.
func configDirectory(devMode bool) string {
	// Use 'rolodex' folder in home directory for prod
	configFolderName := "rolodex"
	rootDir, err := os.UserHomeDir()
	fatalOnError(err)

	// Use 'dev' folder in current directory for dev mode
	if devMode {
		configFolderName = "dev"
		rootDir, err = os.Getwd()
		fatalOnError(err)
	}

	configDir := filepath.Join(rootDir, configFolderName)

	err = utils.CreateDirIfNotExist(configDir)
	fatalOnError(err)

	return configDir
}

func fatalOnError(err error) {
	if err != nil {
		logg.Fatal(err)
	}
}
