// Package pricecache is the durable USD price cache shared by monitor processes.
package pricecache

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/vadiminshakov/loanmon/internal/domain"
)

const defaultDBPath = "./data/price_cache.db"

type priceRow struct {
	Currency   string `gorm:"column:currency;primaryKey"`
	Price      string `gorm:"column:price;not null"`
	ObservedAt int64  `gorm:"column:observed_at;not null"`
	ExpiresAt  int64  `gorm:"column:expires_at;not null;index:idx_price_cache_expires_at"`
}

func (priceRow) TableName() string { return "price_cache" }

// Stats counts stored rows.
type Stats struct {
	Total int64 `json:"total"`
	Valid int64 `json:"valid"`
}

// Store keeps one price per currency with an expiry. Expired rows are
// treated as missing and removed by PurgeExpired.
type Store struct {
	db     *gorm.DB
	now    func() time.Time
	logger *zap.Logger
}

// Option customizes a Store.
type Option func(*Store)

// WithClock overrides the store clock.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New opens the SQLite database at path and migrates the schema.
// The database runs in WAL mode with a busy timeout so several processes can share it.
func New(path string, l *zap.Logger, opts ...Option) (*Store, error) {
	if path == "" {
		path = defaultDBPath
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrapf(err, "create price cache dir %s", dir)
		}
	}

	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "open price cache %s", path)
	}

	if err := db.AutoMigrate(&priceRow{}); err != nil {
		return nil, errors.Wrap(err, "migrate price cache schema")
	}

	s := &Store{
		db:     db,
		now:    time.Now,
		logger: l.With(zap.String("component", "price_store")),
	}
	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Get returns the price of currency if a row exists and has not expired.
func (s *Store) Get(ctx context.Context, currency string) (decimal.Decimal, bool, error) {
	entry, ok, err := s.GetEntry(ctx, currency)
	if err != nil || !ok {
		return decimal.Zero, false, err
	}
	return entry.Price, true, nil
}

// GetEntry is Get returning the whole observation.
func (s *Store) GetEntry(ctx context.Context, currency string) (domain.PriceEntry, bool, error) {
	var rows []priceRow
	err := s.db.WithContext(ctx).
		Where("currency = ? AND expires_at > ?", currency, s.now().UnixMilli()).
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return domain.PriceEntry{}, false, errors.Wrapf(err, "get cached price %s", currency)
	}
	if len(rows) == 0 {
		return domain.PriceEntry{}, false, nil
	}

	price, err := decimal.NewFromString(rows[0].Price)
	if err != nil {
		return domain.PriceEntry{}, false, errors.Wrapf(err, "decode cached price %s", currency)
	}

	return domain.PriceEntry{
		Currency:   rows[0].Currency,
		Price:      price,
		ObservedAt: time.UnixMilli(rows[0].ObservedAt),
		ExpiresAt:  time.UnixMilli(rows[0].ExpiresAt),
	}, true, nil
}

func (s *Store) row(currency string, price decimal.Decimal, ttl time.Duration) (priceRow, error) {
	// rows keep millisecond timestamps; a shorter ttl would store expires_at == observed_at
	if ttl < time.Millisecond {
		return priceRow{}, errors.Errorf("price ttl must be at least 1ms, got %s", ttl)
	}
	if !price.IsPositive() {
		return priceRow{}, errors.Errorf("price for %s must be positive, got %s", currency, price)
	}

	now := s.now()
	return priceRow{
		Currency:   currency,
		Price:      price.String(),
		ObservedAt: now.UnixMilli(),
		ExpiresAt:  now.Add(ttl).UnixMilli(),
	}, nil
}

func upsert(tx *gorm.DB, rows []priceRow) error {
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "currency"}},
		DoUpdates: clause.AssignmentColumns([]string{"price", "observed_at", "expires_at"}),
	}).Create(&rows).Error
}

// Put stores a price, replacing any previous row for the currency.
func (s *Store) Put(ctx context.Context, currency string, price decimal.Decimal, ttl time.Duration) error {
	row, err := s.row(currency, price, ttl)
	if err != nil {
		return err
	}

	if err := upsert(s.db.WithContext(ctx), []priceRow{row}); err != nil {
		return errors.Wrapf(err, "put cached price %s", currency)
	}

	return nil
}

// PutBatch stores every price in one transaction with the same ttl.
func (s *Store) PutBatch(ctx context.Context, prices map[string]decimal.Decimal, ttl time.Duration) error {
	if len(prices) == 0 {
		return nil
	}

	rows := make([]priceRow, 0, len(prices))
	for ccy, price := range prices {
		row, err := s.row(ccy, price, ttl)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return upsert(tx, rows)
	})
	if err != nil {
		return errors.Wrapf(err, "put %d cached prices", len(rows))
	}

	s.logger.Debug("cached prices", zap.Int("count", len(rows)), zap.Duration("ttl", ttl))
	return nil
}

// PurgeExpired deletes expired rows and returns how many were removed.
func (s *Store) PurgeExpired(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("expires_at <= ?", s.now().UnixMilli()).
		Delete(&priceRow{})
	if res.Error != nil {
		return 0, errors.Wrap(res.Error, "purge expired prices")
	}

	return res.RowsAffected, nil
}

// Stats reports total and unexpired row counts.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	db := s.db.WithContext(ctx).Model(&priceRow{})
	if err := db.Count(&st.Total).Error; err != nil {
		return Stats{}, errors.Wrap(err, "count cached prices")
	}
	err := s.db.WithContext(ctx).Model(&priceRow{}).
		Where("expires_at > ?", s.now().UnixMilli()).
		Count(&st.Valid).Error
	if err != nil {
		return Stats{}, errors.Wrap(err, "count valid cached prices")
	}

	return st, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return errors.Wrap(err, "get sql handle")
	}
	return sqlDB.Close()
}
