package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator"
	"github.com/gorilla/mux"
	"github.com/mkhalif/rolodex/server/auth/key"
	"github.com/mkhalif/rolodex/server/logger"
	"github.com/mkhalif/rolodex/server/models"
	"github.com/mkhalif/rolodex/shared"
	"github.com/spf13/viper"
)

const DEFAULT_BIRTHDAY_WINDOW_DAYS = 7

var (
	logg     = logger.NewLogger()
	validate = validator.New()

	authKeyPair  *key.KeyPair
	contactStore models.ContactStore

	birthdayWindowDays = DEFAULT_BIRTHDAY_WINDOW_DAYS
	birthdayLayouts    = []string{"01/02/2006", "January 2, 2006"}
)

func Start(config *viper.Viper, devMode bool) {
	fatalOnError(RegisterValidators(validate))

	serverConfig := parseServerConfig(config)
	applyContactsConfig(serverConfig.Rolodex.Contacts)

	var err error
	if serverConfig.Rolodex.PrivateKeyPem == "" {
		if !devMode {
			logg.Fatal("rolodex.privateKeyPem is required outside dev mode")
		}
		authKeyPair, err = key.NewRandomKeyPair()
	} else {
		authKeyPair, err = key.NewKeyPairFromRSAPrivateKeyPem(serverConfig.Rolodex.PrivateKeyPem)
	}
	fatalOnError(err)

	fatalOnError(models.AutoMigrate(serverConfig.Sqlite.PassPhrase, configDirectory(devMode)))
	contactStore = models.NewContactStore()

	server := &http.Server{
		Addr:    fmt.Sprintf(":%v", serverConfig.Rolodex.Listener.Port),
		Handler: NewRouter(),
	}

	go serve(server)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	cleanup(server)
}

func NewRouter() *mux.Router {
	router := mux.NewRouter()
	router.Use(loggingMiddleware, initialContextMiddleware)

	router.HandleFunc("/signup", signUp).Methods("POST")
	router.HandleFunc("/login", logIn).Methods("POST")
	router.HandleFunc("/.well-known/jwks.json", jwks).Methods("GET")

	protected := router.PathPrefix("/").Subrouter()
	protected.Use(protectedRouteMiddleware)
	protected.HandleFunc("/contacts", listContacts).Methods("GET")
	protected.HandleFunc("/contacts", createContact).Methods("POST")
	protected.HandleFunc("/contacts/{id}", showContact).Methods("GET")
	protected.HandleFunc("/contacts/{id}", updateContact).Methods("PATCH")
	protected.HandleFunc("/contacts/{id}", deleteContact).Methods("DELETE")
	protected.HandleFunc("/birthdays", listBirthdays).Methods("GET")

	return router
}

// ---------------------------------------------------------------------------------//
// Helper functions
// --------------------------------------------------------------------------------//

func parseServerConfig(config *viper.Viper) *shared.ServerConfig {
	serverConfig := &shared.ServerConfig{}

	fatalOnError(config.Unmarshal(serverConfig))
	fatalOnError(validate.Struct(serverConfig))

	return serverConfig
}

func applyContactsConfig(config shared.ContactsConfig) {
	if config.BirthdayWindowDays > 0 {
		birthdayWindowDays = config.BirthdayWindowDays
	}

	if len(config.BirthdayFormats) > 0 {
		birthdayLayouts = config.BirthdayFormats
	}
}

func cleanup(server *http.Server) {
	// Shutdown server gracefully
	ctxShutDown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctxShutDown); err != nil {
		logg.Fatalf("Rolodex server shutdown failed:%+s", err)
	}

	logg.Infof("Rolodex server stopped properly")
}
