package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-authgate/idgate/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Store is the gorm-backed persistence used by the database identity store.
type Store struct {
	db *gorm.DB
}

func New(driver, dsn string) (*Store, error) {
	dialector, err := GetDialector(driver, dsn)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	if driver == "sqlite" {
		// every sqlite :memory: connection is a separate database
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if err := db.AutoMigrate(
		&models.Caller{},
		&models.CallerGroup{},
	); err != nil {
		return nil, err
	}

	return &Store{db: db}, nil
}

// CreateCaller inserts a caller and its group memberships in one transaction.
func (s *Store) CreateCaller(
	ctx context.Context,
	name, passwordHash string,
	groups []string,
) (*models.Caller, error) {
	caller := &models.Caller{
		ID:           uuid.New().String(),
		Name:         name,
		PasswordHash: passwordHash,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Caller{}).Where("name = ?", name).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrCallerConflict
		}
		if err := tx.Create(caller).Error; err != nil {
			return err
		}
		return addGroups(tx, name, groups)
	})
	if err != nil {
		return nil, err
	}
	return caller, nil
}

func addGroups(tx *gorm.DB, caller string, groups []string) error {
	for _, g := range groups {
		g = strings.TrimSpace(g)
		if g == "" {
			continue
		}
		var count int64
		if err := tx.Model(&models.CallerGroup{}).
			Where("caller_name = ? AND group_name = ?", caller, g).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			continue
		}
		if err := tx.Create(&models.CallerGroup{CallerName: caller, GroupName: g}).Error; err != nil {
			return fmt.Errorf("failed to add group %q: %w", g, err)
		}
	}
	return nil
}

// AddCallerGroups adds memberships, skipping ones that already exist.
func (s *Store) AddCallerGroups(ctx context.Context, caller string, groups ...string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return addGroups(tx, caller, groups)
	})
}

func (s *Store) GetCallerByName(ctx context.Context, name string) (*models.Caller, error) {
	var caller models.Caller
	if err := s.db.WithContext(ctx).Where("name = ?", name).First(&caller).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &caller, nil
}

// CallerGroups returns the group names of a caller ordered by name.
func (s *Store) CallerGroups(ctx context.Context, name string) ([]string, error) {
	groups := []string{}
	if err := s.db.WithContext(ctx).
		Model(&models.CallerGroup{}).
		Where("caller_name = ?", name).
		Order("group_name").
		Pluck("group_name", &groups).Error; err != nil {
		return nil, err
	}
	return groups, nil
}

// DeleteCaller removes a caller and its memberships.
func (s *Store) DeleteCaller(ctx context.Context, name string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("caller_name = ?", name).Delete(&models.CallerGroup{}).Error; err != nil {
			return err
		}
		return tx.Where("name = ?", name).Delete(&models.Caller{}).Error
	})
}

// LookupString runs a single-parameter query and returns the first column of
// the first row. ErrRecordNotFound is returned when the query yields no rows.
func (s *Store) LookupString(ctx context.Context, query, arg string) (string, error) {
	values, err := s.lookup(ctx, query, arg, 1)
	if err != nil {
		return "", err
	}
	if len(values) == 0 {
		return "", ErrRecordNotFound
	}
	return values[0], nil
}

// LookupStrings runs a single-parameter query and returns the first column of
// every row. NULL values are skipped.
func (s *Store) LookupStrings(ctx context.Context, query, arg string) ([]string, error) {
	return s.lookup(ctx, query, arg, 0)
}

func (s *Store) lookup(ctx context.Context, query, arg string, limit int) ([]string, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}

	rows, err := s.db.WithContext(ctx).Raw(query, arg).Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	values := []string{}
	for rows.Next() {
		var v sql.NullString
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		if v.Valid {
			values = append(values, v.String)
		}
		if limit > 0 && len(values) == limit {
			break
		}
	}
	return values, rows.Err()
}

// Health checks the database connection
func (s *Store) Health() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// DB returns the underlying gorm handle.
func (s *Store) DB() *gorm.DB {
	return s.db
}
