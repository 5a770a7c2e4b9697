package pgstore

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"

	"github.com/dwarvesf/mint-relayer/internal/utils/config"
	"github.com/dwarvesf/mint-relayer/internal/utils/logger"
)

// Enabled reports whether a postgres connection is configured.
func Enabled(appConfig *config.AppConfig) bool {
	return appConfig.Postgres.Host != ""
}

func New(appConfig *config.AppConfig, logger *logger.Logger) (*gorm.DB, error) {
	db, err := connectPostgres(appConfig)
	if err != nil {
		logger.Error("[pgstore.New][connectPostgres] failed to connect to postgres", map[string]string{
			"host":  appConfig.Postgres.Host,
			"error": err.Error(),
		})
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)

	logger.Info("database connected")
	return db, nil
}

func connectPostgres(appConfig *config.AppConfig) (*gorm.DB, error) {
	ds := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		appConfig.Postgres.Host,
		appConfig.Postgres.User,
		appConfig.Postgres.Pass,
		appConfig.Postgres.Name,
		appConfig.Postgres.Port,
		appConfig.Postgres.SSLMode,
	)

	return gorm.Open(postgres.Open(ds),
		&gorm.Config{
			NamingStrategy: schema.NamingStrategy{
				SingularTable: false,
			},
		})
}
