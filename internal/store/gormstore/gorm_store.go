package gormstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"stratlab/internal/market"
	"stratlab/internal/pkg/symbol"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

const upsertBatchSize = 500

// CandleStore 是规范日线库（Source A），基于 Gorm + SQLite。
type CandleStore struct {
	db *gorm.DB
}

var _ market.CandleSource = (*CandleStore)(nil)

// NewCandleStore 打开（必要时创建）SQLite 文件并迁移表结构。
func NewCandleStore(path string) (*CandleStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("candle store: 数据库路径不能为空")
	}
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&candleModel{}); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite + WAL: allow a little read parallelism for concurrent resolutions.
	sqlDB.SetMaxOpenConns(4)
	sqlDB.SetMaxIdleConns(4)
	return &CandleStore{db: db}, nil
}

func (s *CandleStore) Name() string { return "canonical" }

// Close closes the underlying database connection.
func (s *CandleStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Candles returns persisted bars in [from, to] ordered by date.
func (s *CandleStore) Candles(ctx context.Context, sym string, from, to time.Time) ([]market.Candle, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("candle store 未初始化")
	}
	key := symbol.Normalize(sym)
	if key == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	from, to = market.Day(from), market.Day(to)
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return nil, nil
	}
	q := s.db.WithContext(ctx).Where("symbol = ?", key)
	if !from.IsZero() {
		q = q.Where("date >= ?", datatypes.Date(from))
	}
	if !to.IsZero() {
		q = q.Where("date <= ?", datatypes.Date(to))
	}
	var rows []candleModel
	if err := q.Order("date ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]market.Candle, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toCandle())
	}
	return out, nil
}

// Upsert writes candles keyed by (symbol, date); existing rows are overwritten.
func (s *CandleStore) Upsert(ctx context.Context, candles []market.Candle, source string) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("candle store 未初始化")
	}
	if len(candles) == 0 {
		return 0, nil
	}
	source = strings.TrimSpace(source)
	now := time.Now()
	models := make([]candleModel, 0, len(candles))
	for _, c := range candles {
		if err := c.Validate(); err != nil {
			return 0, err
		}
		models = append(models, newCandleModel(c, source, now))
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "symbol"}, {Name: "date"}},
			DoUpdates: clause.AssignmentColumns([]string{"open", "high", "low", "close", "volume", "source", "updated_at"}),
		}).
		CreateInBatches(&models, upsertBatchSize).Error
	if err != nil {
		return 0, err
	}
	return len(models), nil
}

// LatestDate reports the newest stored date for a symbol.
func (s *CandleStore) LatestDate(ctx context.Context, sym string) (time.Time, bool, error) {
	if s == nil || s.db == nil {
		return time.Time{}, false, fmt.Errorf("candle store 未初始化")
	}
	var row candleModel
	err := s.db.WithContext(ctx).
		Where("symbol = ?", symbol.Normalize(sym)).
		Order("date DESC").
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return market.Day(time.Time(row.Date)), true, nil
}

// Symbols lists every symbol with at least one stored bar.
func (s *CandleStore) Symbols(ctx context.Context) ([]string, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("candle store 未初始化")
	}
	var out []string
	err := s.db.WithContext(ctx).Model(&candleModel{}).Distinct("symbol").Order("symbol").Pluck("symbol", &out).Error
	return out, err
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
