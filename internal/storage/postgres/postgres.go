// internal/storage/postgres/postgres.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/roninsweep/sweepbot/internal/storage"
	"github.com/roninsweep/sweepbot/internal/storage/models"
)

// gormLogger adapts zap to GORM's logger.Interface.
type gormLogger struct {
	zapLogger *zap.Logger
	logLevel  logger.LogLevel
}

func newGormLogger(zapLogger *zap.Logger) logger.Interface {
	return &gormLogger{
		zapLogger: zapLogger,
		logLevel:  logger.Warn,
	}
}

func (l *gormLogger) LogMode(level logger.LogLevel) logger.Interface {
	newLogger := *l
	newLogger.logLevel = level
	return &newLogger
}

func (l *gormLogger) Info(_ context.Context, msg string, data ...interface{}) {
	if l.logLevel >= logger.Info {
		l.zapLogger.Sugar().Infof(msg, data...)
	}
}

func (l *gormLogger) Warn(_ context.Context, msg string, data ...interface{}) {
	if l.logLevel >= logger.Warn {
		l.zapLogger.Sugar().Warnf(msg, data...)
	}
}

func (l *gormLogger) Error(_ context.Context, msg string, data ...interface{}) {
	if l.logLevel >= logger.Error {
		l.zapLogger.Sugar().Errorf(msg, data...)
	}
}

func (l *gormLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.logLevel <= logger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()

	fields := []zap.Field{
		zap.Duration("elapsed", elapsed),
		zap.String("sql", sql),
		zap.Int64("rows", rows),
	}

	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		l.zapLogger.Error("trace", append(fields, zap.Error(err))...)
		return
	}

	if l.logLevel >= logger.Info {
		l.zapLogger.Info("trace", fields...)
	}
}

type postgresStorage struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewStorage opens the postgres connection and configures the pool.
func NewStorage(dsn string, zapLogger *zap.Logger) (storage.Storage, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: newGormLogger(zapLogger.Named("gorm")),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
		DisableForeignKeyConstraintWhenMigrating: true,
		SkipDefaultTransaction:                   true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return &postgresStorage{
		db:     db,
		logger: zapLogger,
	}, nil
}

// RunMigrations auto-migrates under an advisory lock so concurrent instances
// do not race the schema.
func (p *postgresStorage) RunMigrations() error {
	var lockObtained bool
	err := p.db.Raw("SELECT pg_try_advisory_lock(204)").Scan(&lockObtained).Error
	if err != nil {
		return fmt.Errorf("failed to acquire migration lock: %w", err)
	}
	if !lockObtained {
		return fmt.Errorf("another migration is in progress")
	}
	defer p.db.Exec("SELECT pg_advisory_unlock(204)")

	err = p.db.AutoMigrate(
		&models.SweepTransaction{},
		&models.DailySpend{},
		&models.UserLimit{},
	)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

func (p *postgresStorage) SaveTransaction(ctx context.Context, tx *models.SweepTransaction) error {
	return p.db.WithContext(ctx).Create(tx).Error
}

func (p *postgresStorage) GetTransaction(ctx context.Context, hash string) (*models.SweepTransaction, error) {
	var tx models.SweepTransaction
	err := p.db.WithContext(ctx).Where("hash = ?", hash).First(&tx).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

func (p *postgresStorage) ListTransactions(ctx context.Context, userID string, limit, offset int) ([]*models.SweepTransaction, error) {
	var txs []*models.SweepTransaction
	err := p.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Limit(limit).
		Offset(offset).
		Find(&txs).Error
	return txs, err
}

// FinalizeTransaction writes the terminal state. The status guard keeps
// terminal records immutable: only a Pending row can transition.
func (p *postgresStorage) FinalizeTransaction(ctx context.Context, hash, status, errorMsg string, gasUsed uint64, at time.Time) error {
	return p.db.WithContext(ctx).Model(&models.SweepTransaction{}).
		Where("hash = ? AND status = ?", hash, models.StatusPending).
		Updates(map[string]interface{}{
			"status":        status,
			"error_message": errorMsg,
			"gas_used":      gasUsed,
			"confirmed_at":  at,
		}).Error
}

func (p *postgresStorage) GetDailySpend(ctx context.Context, userID string, day time.Time) (*big.Int, error) {
	var row models.DailySpend
	err := p.db.WithContext(ctx).
		Where("user_id = ? AND day = ?", userID, day).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return new(big.Int), nil
	}
	if err != nil {
		return nil, err
	}
	total, ok := new(big.Int).SetString(row.TotalSpent, 10)
	if !ok {
		return nil, fmt.Errorf("corrupt ledger total %q for user %s", row.TotalSpent, userID)
	}
	return total, nil
}

func (p *postgresStorage) AddDailySpend(ctx context.Context, userID string, day time.Time, amount *big.Int) error {
	return p.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "day"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"total_spent": gorm.Expr("daily_spends.total_spent + ?", amount.String()),
			"updated_at":  time.Now().UTC(),
		}),
	}).Create(&models.DailySpend{
		UserID:     userID,
		Day:        day,
		TotalSpent: amount.String(),
	}).Error
}

func (p *postgresStorage) GetDailyLimit(ctx context.Context, userID string) (*big.Int, error) {
	var row models.UserLimit
	err := p.db.WithContext(ctx).Where("user_id = ?", userID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	limit, ok := new(big.Int).SetString(row.DailyLimit, 10)
	if !ok {
		return nil, fmt.Errorf("corrupt daily limit %q for user %s", row.DailyLimit, userID)
	}
	return limit, nil
}

func (p *postgresStorage) SetDailyLimit(ctx context.Context, userID string, limit *big.Int) error {
	return p.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"daily_limit": limit.String(),
			"updated_at":  time.Now().UTC(),
		}),
	}).Create(&models.UserLimit{
		UserID:     userID,
		DailyLimit: limit.String(),
	}).Error
}
