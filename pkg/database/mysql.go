// Package database initializes the optional persistence backends.
package database

import (
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"miba-assist-go/pkg/log"
)

// DB is the global MySQL handle for the interaction log. Only set when
// analytics is enabled.
var DB *gorm.DB

// InitMySQL opens the MySQL connection and configures the pool.
func InitMySQL(dsn string) {
	var err error
	DB, err = gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to mysql", err)
	}

	sqlDB, err := DB.DB()
	if err != nil {
		log.Fatal("failed to get sql.DB", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	log.Info("mysql connected")
}
