package storage

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/emcapital/memberbot/internal/models"
	"github.com/glebarez/sqlite"
	"github.com/pressly/goose/v3"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

var (
	ErrNotFound = errors.New("record not found")
	ErrConflict = errors.New("record already exists")
)

type Storage struct {
	db     *gorm.DB
	driver string
}

// Open connects to the membership database. driver is "postgres" or "sqlite".
func Open(driver, dsn string) (*Storage, error) {
	var dialector gorm.Dialector
	switch driver {
	case DriverPostgres, "":
		driver = DriverPostgres
		dialector = postgres.Open(dsn)
	case DriverSQLite:
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		NowFunc:        func() time.Time { return time.Now().UTC() },
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening %s database: %w", driver, err)
	}

	return New(db, driver), nil
}

func New(db *gorm.DB, driver string) *Storage {
	return &Storage{db: db, driver: driver}
}

func (s *Storage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("getting sql db: %w", err)
	}
	return sqlDB.Close()
}

func (s *Storage) Migrate(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("getting sql db: %w", err)
	}

	dialect := goose.DialectPostgres
	if s.driver == DriverSQLite {
		dialect = goose.DialectSQLite3
	}

	migrations, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("opening migrations: %w", err)
	}

	provider, err := goose.NewProvider(dialect, sqlDB, migrations)
	if err != nil {
		return fmt.Errorf("creating migration provider: %w", err)
	}

	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}
	return nil
}

func (s *Storage) GetByUserID(ctx context.Context, userID string) (*models.MembershipRecord, error) {
	return s.first(ctx, "user_id = ?", userID)
}

func (s *Storage) GetByEmail(ctx context.Context, email string) (*models.MembershipRecord, error) {
	return s.first(ctx, "LOWER(email) = LOWER(?)", strings.TrimSpace(email))
}

// GetByHandle looks a record up by chat handle, case-insensitively. A leading "@" is ignored.
func (s *Storage) GetByHandle(ctx context.Context, handle string) (*models.MembershipRecord, error) {
	handle = strings.TrimPrefix(strings.TrimSpace(handle), "@")
	if handle == "" {
		return nil, ErrNotFound
	}
	return s.first(ctx, "LOWER(chat_handle) = LOWER(?)", handle)
}

func (s *Storage) GetByChatID(ctx context.Context, chatID int64) (*models.MembershipRecord, error) {
	return s.first(ctx, "chat_id = ?", chatID)
}

func (s *Storage) first(ctx context.Context, query string, args ...any) (*models.MembershipRecord, error) {
	var rec models.MembershipRecord
	if err := s.db.WithContext(ctx).Where(query, args...).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting record: %w", err)
	}
	return &rec, nil
}

// ListRecords returns every record, newest registration first.
func (s *Storage) ListRecords(ctx context.Context) ([]*models.MembershipRecord, error) {
	var result []*models.MembershipRecord
	if err := s.db.WithContext(ctx).Order("created_at DESC").Find(&result).Error; err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}
	return result, nil
}

// ListExpiringBetween returns records with from <= paid_until < to, ordered by expiry.
func (s *Storage) ListExpiringBetween(ctx context.Context, from, to time.Time) ([]*models.MembershipRecord, error) {
	var result []*models.MembershipRecord
	if err := s.db.
		WithContext(ctx).
		Where("paid_until >= ? AND paid_until < ?", from.UTC(), to.UTC()).
		Order("paid_until ASC").
		Order("email ASC").
		Find(&result).
		Error; err != nil {
		return nil, fmt.Errorf("listing expiring records: %w", err)
	}
	return result, nil
}

func (s *Storage) CreateRecord(ctx context.Context, rec *models.MembershipRecord) error {
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrConflict
		}
		return fmt.Errorf("creating record: %w", err)
	}
	return nil
}

// UpdateRecord applies upd to the record with userID and returns the row as stored afterwards.
func (s *Storage) UpdateRecord(ctx context.Context, userID string, upd models.RecordUpdate) (*models.MembershipRecord, error) {
	cols := upd.Columns(time.Now())
	if len(cols) == 0 {
		return s.GetByUserID(ctx, userID)
	}

	res := s.db.
		WithContext(ctx).
		Model(&models.MembershipRecord{}).
		Where("user_id = ?", userID).
		Updates(cols)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("updating record: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}

	return s.GetByUserID(ctx, userID)
}

func (s *Storage) DeleteRecord(ctx context.Context, userID string) error {
	if err := s.db.
		WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&models.PaymentEvent{}).
		Error; err != nil {
		return fmt.Errorf("deleting payments: %w", err)
	}

	res := s.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.MembershipRecord{})
	if res.Error != nil {
		return fmt.Errorf("deleting record: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Storage) InsertPayment(ctx context.Context, ev *models.PaymentEvent) error {
	ev.PaymentDate = ev.PaymentDate.UTC()
	ev.ValidUntil = ev.ValidUntil.UTC()
	if err := s.db.WithContext(ctx).Create(ev).Error; err != nil {
		return fmt.Errorf("inserting payment: %w", err)
	}
	return nil
}

// ListPayments returns payment events, newest first. An empty userID lists all of them.
func (s *Storage) ListPayments(ctx context.Context, userID string) ([]*models.PaymentEvent, error) {
	q := s.db.WithContext(ctx).Order("payment_date DESC")
	if userID != "" {
		q = q.Where("user_id = ?", userID)
	}

	var result []*models.PaymentEvent
	if err := q.Find(&result).Error; err != nil {
		return nil, fmt.Errorf("listing payments: %w", err)
	}
	return result, nil
}
