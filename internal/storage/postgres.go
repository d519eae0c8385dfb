package storage

import (
	"fmt"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/Gopher0727/TeamMatch/config"
	"github.com/Gopher0727/TeamMatch/internal/model"
	logger "github.com/Gopher0727/TeamMatch/middleware/log"
)

// InitPostgres 打开 PostgreSQL 连接，设置连接池并迁移表结构
func InitPostgres(cfg *config.PostgresConfig, log *logger.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.PostgresDSN()), &gorm.Config{
		Logger: NewZapGormLogger(log, gormlogger.Warn, cfg.SlowThreshold, true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)

	if err := Migrate(db); err != nil {
		return nil, err
	}

	log.Info("postgres connected",
		zap.String("host", cfg.Host),
		zap.String("dbname", cfg.DBName),
	)
	return db, nil
}

// Migrate 自动迁移，唯一索引 (username / user_id+team_id) 也在这里建立
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&model.User{}, &model.Team{}, &model.UserTeam{}); err != nil {
		return fmt.Errorf("failed to migrate models: %w", err)
	}
	return nil
}

// ClosePostgres 关闭底层连接池
func ClosePostgres(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
