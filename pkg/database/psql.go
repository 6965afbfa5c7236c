package database

import (
	"context"
	"time"

	"direct_chat_service/pkg/logger"

	"github.com/jackc/pgx/v4/pgxpool"
	"go.uber.org/zap"
)

// NewDatabaseConnection create a new postgresSQL connection
func NewDatabaseConnection(d Connection) (*pgxpool.Pool, error) {
	var pool *pgxpool.Pool

	dbConfig, err := pgxpool.ParseConfig(d.ConnectStr)
	if err != nil {
		return nil, err
	}
	for i := 0; i < d.RetryCount; i++ {
		pool, err = pgxpool.ConnectConfig(context.Background(), dbConfig)
		if err == nil {
			break
		}
		logger.Log.Warn(
			"Failed to connect to postgreSQL database, retrying...",
			zap.Int("attempt", i+1),
			zap.String("host", dbConfig.ConnConfig.Host),
			zap.Error(err),
		)
		time.Sleep(d.RetryInterval)
	}

	return pool, err
}
