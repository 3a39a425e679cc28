package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/plugbridge/go-kit/logger"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	glogger "gorm.io/gorm/logger"
)

// slotModel is the storage_slots table row
type slotModel struct {
	Key       string    `gorm:"column:slot_key;primaryKey;size:255"`
	Value     []byte    `gorm:"column:value"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

// TableName returns the table name for gorm
func (slotModel) TableName() string {
	return "storage_slots"
}

// mysqlStore implements Store on a MySQL table via gorm
type mysqlStore struct {
	logger logger.Logger
	db     *gorm.DB
}

// NewMySQL creates a MySQL-backed store and migrates the slot table
func NewMySQL(log logger.Logger, cfg *MySQLConfig) (Store, error) {
	if cfg == nil {
		cfg = DefaultMySQLConfig()
	} else {
		cfg = cfg.MergeDefaults()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var gormLogLevel glogger.LogLevel
	switch strings.ToLower(cfg.LogLevel) {
	case "silent":
		gormLogLevel = glogger.Silent
	case "error":
		gormLogLevel = glogger.Error
	case "warn":
		gormLogLevel = glogger.Warn
	case "info":
		gormLogLevel = glogger.Info
	default:
		gormLogLevel = glogger.Warn
	}

	db, err := gorm.Open(mysql.Open(cfg.DSN()), &gorm.Config{
		Logger: &gormLogger{
			logger:        log,
			level:         gormLogLevel,
			slowThreshold: cfg.SlowThreshold,
		},
		PrepareStmt: true,
	})
	if err != nil {
		return nil, ErrConnection(err)
	}

	sqldb, err := db.DB()
	if err != nil {
		return nil, ErrConnection(err)
	}
	sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := sqldb.Ping(); err != nil {
		return nil, ErrConnection(err)
	}

	if err := db.AutoMigrate(&slotModel{}); err != nil {
		return nil, ErrConnection(err)
	}

	return &mysqlStore{logger: log, db: db}, nil
}

// Get returns the slot's value and whether the slot exists
func (m *mysqlStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var row slotModel
	err := m.db.WithContext(ctx).Where("slot_key = ?", key).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, ErrRead(key, err)
	}
	return row.Value, true, nil
}

// Set overwrites the slot; a nil value clears it
func (m *mysqlStore) Set(ctx context.Context, key string, value []byte) error {
	if value == nil {
		return m.Delete(ctx, key)
	}

	row := slotModel{Key: key, Value: value, UpdatedAt: time.Now()}
	err := m.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "slot_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return ErrWrite(key, err)
	}
	return nil
}

// Delete clears the slot
func (m *mysqlStore) Delete(ctx context.Context, key string) error {
	err := m.db.WithContext(ctx).Where("slot_key = ?", key).Delete(&slotModel{}).Error
	if err != nil {
		return ErrWrite(key, err)
	}
	return nil
}

// Sweep removes slots not written for longer than olderThan
func (m *mysqlStore) Sweep(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan)
	result := m.db.WithContext(ctx).Where("updated_at < ?", cutoff).Delete(&slotModel{})
	if result.Error != nil {
		return 0, ErrWrite("storage_slots", result.Error)
	}
	return int(result.RowsAffected), nil
}

// Close closes the underlying connection pool
func (m *mysqlStore) Close() error {
	sqldb, err := m.db.DB()
	if err != nil {
		return ErrConnection(err)
	}
	return sqldb.Close()
}
