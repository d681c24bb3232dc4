package database

import (
	"fmt"
	"log"

	"unilms_backend/internal/config"
	"unilms_backend/internal/model"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func InitDB(cfg *config.Config) (*gorm.DB, error) {
	dc := cfg.Database
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=%t&loc=Local",
		dc.User,
		dc.Password,
		dc.Host,
		dc.Port,
		dc.DBName,
		dc.Charset,
		dc.ParseTime,
	)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Info),
	})

	if err != nil {
		return nil, err
	}

	log.Println("Database connection established")

	// release 模式默认跳过自动迁移，-migrate / -migrate-only 强制执行
	if !ShouldMigrate(cfg) {
		return db, nil
	}

	err = db.AutoMigrate(
		&model.User{},
		&model.Presentation{},
		&model.Checkpoint{},
		&model.LiveSession{},
		&model.CheckpointResponse{},
	)

	if err != nil {
		return nil, err
	}

	log.Println("Database migration completed")

	return db, nil
}

// ShouldMigrate 非release模式每次启动都迁移，release模式仅在显式要求时迁移
func ShouldMigrate(cfg *config.Config) bool {
	if cfg.ForceMigrate {
		return true
	}
	return cfg.Server.Mode != "release"
}
