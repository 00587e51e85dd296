package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"todo-lifecycle/internal/models"
)

// todoRow is the gorm mapping of the todos table.
type todoRow struct {
	ID          int64      `gorm:"primaryKey;autoIncrement"`
	Description string     `gorm:"not null"`
	Status      string     `gorm:"size:16;not null;index:todos_status_due_idx,priority:1"`
	CreatedAt   time.Time  `gorm:"not null;autoCreateTime:false"`
	DueAt       time.Time  `gorm:"not null;index:todos_status_due_idx,priority:2"`
	DoneAt      *time.Time `gorm:"null"`
	Version     int64      `gorm:"not null;default:1"`
}

func (todoRow) TableName() string {
	return "todos"
}

func toRow(t models.Todo) todoRow {
	r := todoRow{
		ID:          t.ID,
		Description: t.Description,
		Status:      string(t.Status),
		CreatedAt:   t.CreatedAt.UTC(),
		DueAt:       t.DueAt.UTC(),
		Version:     t.Version,
	}
	if t.DoneAt != nil {
		d := t.DoneAt.UTC()
		r.DoneAt = &d
	}
	return r
}

func (r todoRow) toModel() models.Todo {
	t := models.Todo{
		ID:          r.ID,
		Description: r.Description,
		Status:      models.Status(r.Status),
		CreatedAt:   r.CreatedAt.UTC(),
		DueAt:       r.DueAt.UTC(),
		Version:     r.Version,
	}
	if r.DoneAt != nil {
		d := r.DoneAt.UTC()
		t.DoneAt = &d
	}
	return t
}

// OpenSQLite opens a sqlite database through gorm and migrates the todos
// table. An in-memory path is pinned to one connection so every query sees
// the same database.
func OpenSQLite(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}
	if path == ":memory:" {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	if err := db.AutoMigrate(&todoRow{}); err != nil {
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}
	return db, nil
}

// GormStore is the Store backed by a gorm connection, used with sqlite.
type GormStore struct {
	db *gorm.DB
}

var _ Store = (*GormStore)(nil)

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Get(ctx context.Context, id int64) (models.Todo, error) {
	var row todoRow
	if err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Todo{}, ErrNotFound
		}
		return models.Todo{}, fmt.Errorf("get todo %d: %w", id, err)
	}
	return row.toModel(), nil
}

func (s *GormStore) ScanAll(ctx context.Context) ([]models.Todo, error) {
	return s.find(s.db.WithContext(ctx))
}

func (s *GormStore) ScanByStatus(ctx context.Context, status models.Status) ([]models.Todo, error) {
	return s.find(s.db.WithContext(ctx).Where("status = ?", string(status)))
}

func (s *GormStore) find(q *gorm.DB) ([]models.Todo, error) {
	var rows []todoRow
	if err := q.Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("scan todos: %w", err)
	}
	out := make([]models.Todo, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

func (s *GormStore) Create(ctx context.Context, t models.Todo) (models.Todo, error) {
	row := toRow(t)
	row.ID = 0
	row.Version = 1
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return models.Todo{}, fmt.Errorf("create todo: %w", err)
	}
	return row.toModel(), nil
}

func (s *GormStore) Put(ctx context.Context, t models.Todo) (models.Todo, error) {
	row := toRow(t)
	res := s.db.WithContext(ctx).Model(&todoRow{}).
		Where("id = ? AND version = ?", t.ID, t.Version).
		Updates(map[string]any{
			"description": row.Description,
			"status":      row.Status,
			"due_at":      row.DueAt,
			"done_at":     row.DoneAt,
			"version":     gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return models.Todo{}, fmt.Errorf("put todo %d: %w", t.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := s.Get(ctx, t.ID); err != nil {
			return models.Todo{}, err
		}
		return models.Todo{}, ErrVersionConflict
	}
	return s.Get(ctx, t.ID)
}

func (s *GormStore) Transition(ctx context.Context, id int64, from, to models.Status, before time.Time) (bool, error) {
	res := s.db.WithContext(ctx).Model(&todoRow{}).
		Where("id = ? AND status = ? AND due_at < ?", id, string(from), before.UTC()).
		Updates(map[string]any{
			"status":  string(to),
			"version": gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return false, fmt.Errorf("transition todo %d: %w", id, res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (s *GormStore) BulkTransition(ctx context.Context, from, to models.Status, before time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Model(&todoRow{}).
		Where("status = ? AND due_at < ?", string(from), before.UTC()).
		Updates(map[string]any{
			"status":  string(to),
			"version": gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return 0, fmt.Errorf("bulk transition: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
