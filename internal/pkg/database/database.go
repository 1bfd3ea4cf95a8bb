package database

import (
	"gorm.io/gorm"
)

// DB is the shared GORM handle, populated by SetupDatabase on boot.
var DB *gorm.DB

func GetDB() *gorm.DB {
	return DB
}

// SetDB swaps the shared handle; used by tests that run against SQLite
// or a mocked connection.
func SetDB(db *gorm.DB) {
	DB = db
}
