package models

import (
	"log"

	"github.com/GrainArc/TraceMap/config"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

var DB *gorm.DB

func openDialector() gorm.Dialector {
	switch config.DBType {
	case "postgres":
		return postgres.Open(config.DSN)
	case "mysql":
		return mysql.Open(config.DSN)
	default:
		return sqlite.Open(config.DSN)
	}
}

func InitDB() {
	var err error
	DB, err = gorm.Open(openDialector(), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NamingStrategy: schema.NamingStrategy{
			SingularTable: true,
		},
	})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := MigrateAllTables(DB); err != nil {
		log.Printf("Failed to migrate tables: %v", err)
	}
}

// MigrateAllTables 批量迁移所有表
func MigrateAllTables(db *gorm.DB) error {
	models := []interface{}{
		&Project{},
		&Layer{},
		&Feature{},
		&RasterImage{},
	}

	return db.AutoMigrate(models...)
}
