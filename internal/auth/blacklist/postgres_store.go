package blacklist

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// RevokedToken is the durable row behind the Postgres revocation store.
type RevokedToken struct {
	JTI       string    `gorm:"primaryKey;type:varchar(64)"`
	ExpiresAt time.Time `gorm:"index;not null"`
	CreatedAt time.Time `gorm:"not null"`
}

// TableName sets the table name for GORM.
func (RevokedToken) TableName() string {
	return "revoked_tokens"
}

// PostgresStore implements RevocationStore on PostgreSQL via GORM.
type PostgresStore struct {
	db     *gorm.DB
	logger *zap.Logger
	clock  func() time.Time
}

// NewPostgresStore opens a connection with the given DSN, migrates the
// revoked_tokens table, and returns the store.
func NewPostgresStore(dsn string, logger *zap.Logger) (*PostgresStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}

	if err := db.AutoMigrate(&RevokedToken{}); err != nil {
		return nil, fmt.Errorf("failed to migrate revoked_tokens: %w", err)
	}

	return NewPostgresStoreWithDB(db, logger), nil
}

// NewPostgresStoreWithDB wraps an existing GORM handle. The caller owns
// migrations. Used by tests.
func NewPostgresStoreWithDB(db *gorm.DB, logger *zap.Logger) *PostgresStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostgresStore{
		db:     db,
		logger: logger,
		clock:  time.Now,
	}
}

// Add implements RevocationStore. Re-revoking the same jti is a no-op.
func (s *PostgresStore) Add(ctx context.Context, jti string, exp time.Time) error {
	row := &RevokedToken{
		JTI:       jti,
		ExpiresAt: exp,
		CreatedAt: s.clock(),
	}

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(row).Error
	if err != nil {
		return fmt.Errorf("failed to persist revoked token: %w", err)
	}
	return nil
}

// IsBlacklisted implements RevocationStore.
func (s *PostgresStore) IsBlacklisted(ctx context.Context, jti string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&RevokedToken{}).
		Where("jti = ? AND expires_at > ?", jti, s.clock()).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to query revoked token: %w", err)
	}
	return count > 0, nil
}

// GetActive implements RevocationStore.
func (s *PostgresStore) GetActive(ctx context.Context) ([]Entry, error) {
	var rows []RevokedToken
	err := s.db.WithContext(ctx).
		Where("expires_at > ?", s.clock()).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load active revocations: %w", err)
	}

	entries := make([]Entry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, Entry{JTI: row.JTI, ExpiresAt: row.ExpiresAt})
	}
	return entries, nil
}

// CleanupExpired implements RevocationStore.
func (s *PostgresStore) CleanupExpired(ctx context.Context) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("expires_at <= ?", s.clock()).
		Delete(&RevokedToken{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to purge expired revocations: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// Close implements RevocationStore.
func (s *PostgresStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ensure PostgresStore implements RevocationStore.
var _ RevocationStore = (*PostgresStore)(nil)
