package db

import (
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/yuanshang000/ds2api/internal/model"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var db *gorm.DB

func InitDB(dbType, dsn string, debug bool) error {
	var err error
	gormConfig := gorm.Config{Logger: logger.Discard}
	if debug {
		gormConfig.Logger = logger.Default.LogMode(logger.Info)
	}

	switch dbType {
	case "sqlite":
		db, err = gorm.Open(sqlite.Open(dsn), &gormConfig)
	case "mysql":
		db, err = gorm.Open(mysql.Open(dsn), &gormConfig)
	case "postgres", "postgresql":
		db, err = gorm.Open(postgres.Open(dsn), &gormConfig)
	default:
		return fmt.Errorf("unsupported database type: %s", dbType)
	}
	if err != nil {
		return err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)
	sqlDB.SetConnMaxIdleTime(10 * time.Minute)

	return db.AutoMigrate(
		&model.AccountToken{},
		&model.RequestLog{},
	)
}

func GetDB() *gorm.DB {
	return db
}

func Close() error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
