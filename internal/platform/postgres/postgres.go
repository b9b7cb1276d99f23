package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// PoolSettings sizes the database/sql pool behind GORM.
type PoolSettings struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	// SlowQuery logs statements slower than this at warn level.
	SlowQuery time.Duration
}

// DefaultPoolSettings keeps a small pool; placements hold a connection for
// the whole transaction, so MaxOpenConns bounds concurrent placements.
func DefaultPoolSettings() PoolSettings {
	return PoolSettings{
		MaxOpenConns:    20,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
		SlowQuery:       200 * time.Millisecond,
	}
}

// PoolSettingsFromEnv reads POSTGRES_MAX_OPEN_CONNS, POSTGRES_MAX_IDLE_CONNS
// and POSTGRES_CONN_MAX_LIFETIME on top of the defaults.
func PoolSettingsFromEnv() (PoolSettings, error) {
	settings := DefaultPoolSettings()
	if raw := strings.TrimSpace(os.Getenv("POSTGRES_MAX_OPEN_CONNS")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return settings, fmt.Errorf("POSTGRES_MAX_OPEN_CONNS must be a positive integer")
		}
		settings.MaxOpenConns = n
	}
	if raw := strings.TrimSpace(os.Getenv("POSTGRES_MAX_IDLE_CONNS")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return settings, fmt.Errorf("POSTGRES_MAX_IDLE_CONNS must be a non-negative integer")
		}
		settings.MaxIdleConns = n
	}
	if raw := strings.TrimSpace(os.Getenv("POSTGRES_CONN_MAX_LIFETIME")); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			return settings, fmt.Errorf("POSTGRES_CONN_MAX_LIFETIME must be a positive duration")
		}
		settings.ConnMaxLifetime = d
	}
	return settings, nil
}

// Connect opens a PostgreSQL connection via GORM, sizes its pool and verifies
// connectivity. Driver errors are left untranslated so callers can read the
// SQLSTATE and constraint name from *pgconn.PgError.
func Connect(ctx context.Context, dsn string, pool PoolSettings, logger *slog.Logger) (*gorm.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("postgres DSN is empty")
	}
	cfg := &gorm.Config{}
	if logger != nil {
		cfg.Logger = NewGormLogger(logger, pool.SlowQuery)
	}
	db, err := gorm.Open(postgres.Open(dsn), cfg)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if pool.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(pool.MaxOpenConns)
	}
	sqlDB.SetMaxIdleConns(pool.MaxIdleConns)
	if pool.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(pool.ConnMaxLifetime)
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// ConnectFromEnv dials PostgreSQL using POSTGRES_DSN and the pool variables and
// returns the DB plus a cleanup function.
func ConnectFromEnv(ctx context.Context, logger *slog.Logger) (*gorm.DB, func(), error) {
	dsn := strings.TrimSpace(os.Getenv("POSTGRES_DSN"))
	if dsn == "" {
		return nil, func() {}, errors.New("POSTGRES_DSN not set")
	}
	pool, err := PoolSettingsFromEnv()
	if err != nil {
		return nil, func() {}, err
	}
	db, err := Connect(ctx, dsn, pool, logger)
	if err != nil {
		return nil, func() {}, fmt.Errorf("connect to postgres: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, func() {}, fmt.Errorf("unwrap postgres connection: %w", err)
	}
	if logger != nil {
		logger.Info("postgres connection established", slog.Int("pool.max_open", pool.MaxOpenConns))
	}
	return db, func() { _ = sqlDB.Close() }, nil
}

// GormLogger routes GORM diagnostics to slog. Statements are traced at debug,
// slow ones at warn, and failures other than record-not-found at error.
type GormLogger struct {
	logger    *slog.Logger
	level     gormlogger.LogLevel
	slowQuery time.Duration
}

var _ gormlogger.Interface = (*GormLogger)(nil)

func NewGormLogger(logger *slog.Logger, slowQuery time.Duration) *GormLogger {
	return &GormLogger{logger: logger, level: gormlogger.Warn, slowQuery: slowQuery}
}

func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

func (l *GormLogger) Info(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Info {
		l.logger.InfoContext(ctx, fmt.Sprintf(msg, args...))
	}
}

func (l *GormLogger) Warn(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Warn {
		l.logger.WarnContext(ctx, fmt.Sprintf(msg, args...))
	}
}

func (l *GormLogger) Error(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Error {
		l.logger.ErrorContext(ctx, fmt.Sprintf(msg, args...))
	}
}

func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && l.level >= gormlogger.Error:
		sql, rows := fc()
		l.logger.LogAttrs(ctx, slog.LevelError, "sql statement failed",
			slog.String("sql", sql), slog.Int64("rows", rows),
			slog.Duration("elapsed", elapsed), slog.String("error", err.Error()))
	case l.slowQuery > 0 && elapsed > l.slowQuery && l.level >= gormlogger.Warn:
		sql, rows := fc()
		l.logger.LogAttrs(ctx, slog.LevelWarn, "slow sql statement",
			slog.String("sql", sql), slog.Int64("rows", rows), slog.Duration("elapsed", elapsed))
	case l.level >= gormlogger.Info:
		sql, rows := fc()
		l.logger.LogAttrs(ctx, slog.LevelDebug, "sql statement",
			slog.String("sql", sql), slog.Int64("rows", rows), slog.Duration("elapsed", elapsed))
	}
}
