package models

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	sqliteEncrypt "github.com/Daskott/gorm-sqlite-cipher"
	"github.com/mkhalif/rolodex/server/logger"
	"github.com/mkhalif/rolodex/utils"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

const DB_NAME = "rolodex.db"

var logg = logger.NewLogger()
var db *gorm.DB

// AutoMigrate opens the encrypted sqlite database & migrates the schema
func AutoMigrate(passPhrase string, dbRootDir string) error {
	err := openDB(passPhrase, dbRootDir)
	if err != nil {
		return err
	}

	return migrateSchema()
}

// InitializeTestDb points the package at a fresh in-memory database.
// Each call drops & re-creates all tables, so tests start clean.
func InitializeTestDb() {
	var err error

	dsn := "file::memory:?cache=shared&_pragma_key=rolodex-test&_pragma_cipher_page_size=4096"
	db, err = gorm.Open(sqliteEncrypt.Open(dsn), gormConfig())
	if err != nil {
		logg.Panicf("failed to open test database: %v", err)
	}

	if err = db.Migrator().DropTable(&Contact{}, &User{}); err != nil {
		logg.Panicf("failed to reset test database: %v", err)
	}

	if err = migrateSchema(); err != nil {
		logg.Panicf("failed to migrate test database: %v", err)
	}
}

// ---------------------------------------------------------------------------------//
// Helper functions
// --------------------------------------------------------------------------------//

func migrateSchema() error {
	return db.AutoMigrate(&User{}, &Contact{})
}

func openDB(passPhrase string, dbRootDir string) error {
	var err error
	var dbDSNVal string

	dbDSNVal, err = dbDSN(passPhrase, dbRootDir)
	if err != nil {
		return errors.Wrap(err, "failed to set sqlite DSN")
	}

	db, err = gorm.Open(sqliteEncrypt.Open(dbDSNVal), gormConfig())
	if err != nil {
		return errors.Wrap(err, "failed to connect database")
	}

	return nil
}

func gormConfig() *gorm.Config {
	return &gorm.Config{
		Logger: gormLogger.New(
			log.New(os.Stdout, "\r\n", log.LstdFlags),
			gormLogger.Config{
				LogLevel:                  gormLogger.Silent,
				IgnoreRecordNotFoundError: true,
				Colorful:                  false,
			},
		),
	}
}

func dbDSN(passPhrase string, dbRootDir string) (string, error) {
	dbDir, err := DbDirectory(dbRootDir)
	if err != nil {
		return "", err
	}

	dbFilePath := filepath.Join(dbDir, DB_NAME)
	dbName := fmt.Sprintf("file:%v", dbFilePath)

	return fmt.Sprintf(
		"%v?_pragma_key=%s&_pragma_cipher_page_size=4096&_journal_mode=WAL",
		dbName,
		passPhrase,
	), nil
}

func DbDirectory(dbRootDir string) (string, error) {
	dbDir := filepath.Join(dbRootDir, "db")

	err := utils.CreateDirIfNotExist(dbDir)
	if err != nil {
		return "", err
	}

	return dbDir, nil
}
