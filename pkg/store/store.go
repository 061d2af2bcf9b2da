package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/newdoli/dolisync/pkg/config"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Store provides persistence for the local mirror, the configuration
// table, the pending-mutation ledger, and the session record.
type Store interface {
	Start(ctx context.Context) error
	Stop() error

	// User CRUD.
	GetUser(ctx context.Context, id uint) (*User, error)
	GetUserByLogin(ctx context.Context, login string) (*User, error)
	ListUsers(ctx context.Context) ([]User, error)
	UpsertUser(ctx context.Context, user *User) error
	UpdateUser(ctx context.Context, user *User) error
	DeleteUser(ctx context.Context, id uint) error
	ReplaceUsers(ctx context.Context, users []User) error

	// Group CRUD.
	GetGroup(ctx context.Context, id uint) (*Group, error)
	ListGroups(ctx context.Context) ([]Group, error)
	ReplaceGroups(ctx context.Context, groups []Group) error

	// Permissions.
	ListPermissions(ctx context.Context) ([]Permission, error)
	ListPermissionsByModule(ctx context.Context, module string) ([]Permission, error)
	SeedDefaultPermissions(ctx context.Context) error

	// Third parties.
	GetThirdParty(ctx context.Context, id uint) (*ThirdParty, error)
	ListThirdParties(ctx context.Context) ([]ThirdParty, error)
	UpsertThirdParty(ctx context.Context, tp *ThirdParty) error
	DeleteThirdParty(ctx context.Context, id uint) error
	ReplaceThirdParties(ctx context.Context, tps []ThirdParty) error

	// Products.
	ListProducts(ctx context.Context) ([]Product, error)
	ReplaceProducts(ctx context.Context, products []Product) error

	// Configuration key/value.
	GetConfiguration(ctx context.Context, key string) (*Configuration, error)
	SetConfiguration(ctx context.Context, key, value, valueType, description string) error
	DeleteConfiguration(ctx context.Context, key string) error
	ListConfigurations(ctx context.Context) ([]Configuration, error)

	// Pending-mutation ledger.
	AppendLedgerEntry(ctx context.Context, entry *LedgerEntry) error
	PendingLedgerEntries(ctx context.Context) ([]LedgerEntry, error)
	MarkLedgerEntrySynced(ctx context.Context, id uint) error

	// Session record.
	GetSessionRecord(ctx context.Context) (*SessionRecord, error)
	PutSessionRecord(ctx context.Context, rec *SessionRecord) error
	DeleteSessionRecord(ctx context.Context) error
}

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Compile-time interface check.
var _ Store = (*store)(nil)

type store struct {
	log logrus.FieldLogger
	cfg *config.DatabaseConfig
	db  *gorm.DB
}

// NewStore creates a new Store backed by the configured database driver.
func NewStore(
	log logrus.FieldLogger,
	cfg *config.DatabaseConfig,
) Store {
	return &store{
		log: log.WithField("component", "store"),
		cfg: cfg,
	}
}

// Start opens the database connection and runs migrations.
func (s *store) Start(ctx context.Context) error {
	var dialector gorm.Dialector

	gormCfg := &gorm.Config{
		Logger: logger.Discard,
	}

	switch s.cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(s.cfg.SQLite.Path)
	case "postgres":
		dsn := fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			s.cfg.Postgres.Host,
			s.cfg.Postgres.Port,
			s.cfg.Postgres.User,
			s.cfg.Postgres.Password,
			s.cfg.Postgres.Database,
			s.cfg.Postgres.SSLMode,
		)
		dialector = postgres.Open(dsn)
	default:
		return fmt.Errorf("unsupported database driver: %s", s.cfg.Driver)
	}

	db, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}

	s.db = db

	if err := s.db.WithContext(ctx).AutoMigrate(
		&User{},
		&Group{},
		&Permission{},
		&ThirdParty{},
		&Product{},
		&Configuration{},
		&LedgerEntry{},
		&SessionRecord{},
	); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	s.log.WithField("driver", s.cfg.Driver).Info("Database connected")

	return nil
}

// Stop closes the underlying database connection.
func (s *store) Stop() error {
	if s.db == nil {
		return nil
	}

	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("getting underlying db: %w", err)
	}

	return sqlDB.Close()
}

// notFound maps gorm's sentinel onto the store's.
func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}

	return err
}

// --- User CRUD ---

func (s *store) GetUser(ctx context.Context, id uint) (*User, error) {
	var user User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, fmt.Errorf("getting user by id: %w", notFound(err))
	}

	return &user, nil
}

func (s *store) GetUserByLogin(
	ctx context.Context, login string,
) (*User, error) {
	var user User
	if err := s.db.WithContext(ctx).
		Where("login = ?", login).
		First(&user).Error; err != nil {
		return nil, fmt.Errorf("getting user by login: %w", notFound(err))
	}

	return &user, nil
}

func (s *store) ListUsers(ctx context.Context) ([]User, error) {
	var users []User
	if err := s.db.WithContext(ctx).
		Order("id ASC").
		Find(&users).Error; err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}

	return users, nil
}

// UpsertUser inserts or overwrites the row with the user's remote ID.
func (s *store) UpsertUser(ctx context.Context, user *User) error {
	if err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(user).Error; err != nil {
		return fmt.Errorf("upserting user: %w", err)
	}

	return nil
}

func (s *store) UpdateUser(ctx context.Context, user *User) error {
	if err := s.db.WithContext(ctx).Save(user).Error; err != nil {
		return fmt.Errorf("updating user: %w", err)
	}

	return nil
}

func (s *store) DeleteUser(ctx context.Context, id uint) error {
	if err := s.db.WithContext(ctx).
		Delete(&User{}, id).Error; err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}

	return nil
}

// ReplaceUsers swaps the whole user mirror inside one transaction so
// concurrent readers never observe a partially-replaced collection.
func (s *store) ReplaceUsers(ctx context.Context, users []User) error {
	return s.replace(ctx, &User{}, "users", func(tx *gorm.DB) error {
		if len(users) == 0 {
			return nil
		}

		return tx.Create(&users).Error
	})
}

// --- Group CRUD ---

func (s *store) GetGroup(ctx context.Context, id uint) (*Group, error) {
	var group Group
	if err := s.db.WithContext(ctx).First(&group, id).Error; err != nil {
		return nil, fmt.Errorf("getting group by id: %w", notFound(err))
	}

	return &group, nil
}

func (s *store) ListGroups(ctx context.Context) ([]Group, error) {
	var groups []Group
	if err := s.db.WithContext(ctx).
		Order("id ASC").
		Find(&groups).Error; err != nil {
		return nil, fmt.Errorf("listing groups: %w", err)
	}

	return groups, nil
}

func (s *store) ReplaceGroups(ctx context.Context, groups []Group) error {
	return s.replace(ctx, &Group{}, "groups", func(tx *gorm.DB) error {
		if len(groups) == 0 {
			return nil
		}

		return tx.Create(&groups).Error
	})
}

// --- Permissions ---

func (s *store) ListPermissions(ctx context.Context) ([]Permission, error) {
	var perms []Permission
	if err := s.db.WithContext(ctx).
		Order("id ASC").
		Find(&perms).Error; err != nil {
		return nil, fmt.Errorf("listing permissions: %w", err)
	}

	return perms, nil
}

func (s *store) ListPermissionsByModule(
	ctx context.Context, module string,
) ([]Permission, error) {
	var perms []Permission
	if err := s.db.WithContext(ctx).
		Where("module = ?", module).
		Order("id ASC").
		Find(&perms).Error; err != nil {
		return nil, fmt.Errorf("listing permissions by module: %w", err)
	}

	return perms, nil
}

// defaultPermissions is the capability catalogue seeded on first run.
var defaultPermissions = []Permission{
	{Name: "user_read", Module: "user", Description: "Read users"},
	{Name: "user_write", Module: "user", Description: "Write users"},
	{Name: "user_delete", Module: "user", Description: "Delete users"},
	{Name: "thirdparty_read", Module: "thirdparty", Description: "Read third parties"},
	{Name: "thirdparty_write", Module: "thirdparty", Description: "Write third parties"},
	{Name: "thirdparty_delete", Module: "thirdparty", Description: "Delete third parties"},
	{Name: "group_read", Module: "group", Description: "Read groups"},
	{Name: "group_write", Module: "group", Description: "Write groups"},
	{Name: "group_delete", Module: "group", Description: "Delete groups"},
	{Name: "product_read", Module: "product", Description: "Read products"},
	{Name: "product_write", Module: "product", Description: "Write products"},
	{Name: "product_delete", Module: "product", Description: "Delete products"},
}

// SeedDefaultPermissions inserts the default catalogue only when the
// permissions table is empty; a mirrored catalogue is left untouched.
func (s *store) SeedDefaultPermissions(ctx context.Context) error {
	var count int64
	if err := s.db.WithContext(ctx).
		Model(&Permission{}).
		Count(&count).Error; err != nil {
		return fmt.Errorf("counting permissions: %w", err)
	}

	if count > 0 {
		return nil
	}

	perms := make([]Permission, len(defaultPermissions))
	copy(perms, defaultPermissions)

	if err := s.db.WithContext(ctx).Create(&perms).Error; err != nil {
		return fmt.Errorf("seeding permissions: %w", err)
	}

	s.log.WithField("count", len(perms)).Info("Seeded default permissions")

	return nil
}

// --- Third parties ---

func (s *store) GetThirdParty(
	ctx context.Context, id uint,
) (*ThirdParty, error) {
	var tp ThirdParty
	if err := s.db.WithContext(ctx).First(&tp, id).Error; err != nil {
		return nil, fmt.Errorf("getting third party by id: %w", notFound(err))
	}

	return &tp, nil
}

func (s *store) ListThirdParties(ctx context.Context) ([]ThirdParty, error) {
	var tps []ThirdParty
	if err := s.db.WithContext(ctx).
		Order("id ASC").
		Find(&tps).Error; err != nil {
		return nil, fmt.Errorf("listing third parties: %w", err)
	}

	return tps, nil
}

func (s *store) UpsertThirdParty(ctx context.Context, tp *ThirdParty) error {
	if err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(tp).Error; err != nil {
		return fmt.Errorf("upserting third party: %w", err)
	}

	return nil
}

func (s *store) DeleteThirdParty(ctx context.Context, id uint) error {
	if err := s.db.WithContext(ctx).
		Delete(&ThirdParty{}, id).Error; err != nil {
		return fmt.Errorf("deleting third party: %w", err)
	}

	return nil
}

func (s *store) ReplaceThirdParties(
	ctx context.Context, tps []ThirdParty,
) error {
	return s.replace(ctx, &ThirdParty{}, "third parties", func(tx *gorm.DB) error {
		if len(tps) == 0 {
			return nil
		}

		return tx.Create(&tps).Error
	})
}

// --- Products ---

func (s *store) ListProducts(ctx context.Context) ([]Product, error) {
	var products []Product
	if err := s.db.WithContext(ctx).
		Order("id ASC").
		Find(&products).Error; err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}

	return products, nil
}

func (s *store) ReplaceProducts(
	ctx context.Context, products []Product,
) error {
	return s.replace(ctx, &Product{}, "products", func(tx *gorm.DB) error {
		if len(products) == 0 {
			return nil
		}

		return tx.Create(&products).Error
	})
}

// replace clears a mirror collection and bulk-inserts its replacement
// inside a single transaction.
func (s *store) replace(
	ctx context.Context,
	model any,
	what string,
	insert func(tx *gorm.DB) error,
) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(model).Error; err != nil {
			return fmt.Errorf("clearing %s: %w", what, err)
		}

		if err := insert(tx); err != nil {
			return fmt.Errorf("inserting %s: %w", what, err)
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("replacing %s: %w", what, err)
	}

	return nil
}

// --- Configuration ---

func (s *store) GetConfiguration(
	ctx context.Context, key string,
) (*Configuration, error) {
	var cfg Configuration
	if err := s.db.WithContext(ctx).
		Where("key = ?", key).
		First(&cfg).Error; err != nil {
		return nil, fmt.Errorf("getting configuration: %w", notFound(err))
	}

	return &cfg, nil
}

// SetConfiguration upserts a setting keyed by its unique key.
func (s *store) SetConfiguration(
	ctx context.Context, key, value, valueType, description string,
) error {
	cfg := &Configuration{Key: key}

	result := s.db.WithContext(ctx).
		Where("key = ?", key).
		Assign(map[string]any{
			"value":       value,
			"type":        valueType,
			"description": description,
		}).
		FirstOrCreate(cfg)
	if result.Error != nil {
		return fmt.Errorf("upserting configuration %q: %w", key, result.Error)
	}

	return nil
}

func (s *store) DeleteConfiguration(ctx context.Context, key string) error {
	if err := s.db.WithContext(ctx).
		Where("key = ?", key).
		Delete(&Configuration{}).Error; err != nil {
		return fmt.Errorf("deleting configuration %q: %w", key, err)
	}

	return nil
}

func (s *store) ListConfigurations(
	ctx context.Context,
) ([]Configuration, error) {
	var cfgs []Configuration
	if err := s.db.WithContext(ctx).
		Order("key ASC").
		Find(&cfgs).Error; err != nil {
		return nil, fmt.Errorf("listing configurations: %w", err)
	}

	return cfgs, nil
}

// --- Ledger ---

func (s *store) AppendLedgerEntry(
	ctx context.Context, entry *LedgerEntry,
) error {
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("appending ledger entry: %w", err)
	}

	return nil
}

func (s *store) PendingLedgerEntries(
	ctx context.Context,
) ([]LedgerEntry, error) {
	var entries []LedgerEntry
	if err := s.db.WithContext(ctx).
		Where("synced = ?", false).
		Order("id ASC").
		Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("listing pending ledger entries: %w", err)
	}

	return entries, nil
}

func (s *store) MarkLedgerEntrySynced(ctx context.Context, id uint) error {
	now := time.Now().UTC()

	if err := s.db.WithContext(ctx).
		Model(&LedgerEntry{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"synced":    true,
			"synced_at": &now,
		}).Error; err != nil {
		return fmt.Errorf("marking ledger entry synced: %w", err)
	}

	return nil
}

// --- Session record ---

func (s *store) GetSessionRecord(
	ctx context.Context,
) (*SessionRecord, error) {
	var rec SessionRecord
	if err := s.db.WithContext(ctx).
		First(&rec, sessionRecordID).Error; err != nil {
		return nil, fmt.Errorf("getting session record: %w", notFound(err))
	}

	return &rec, nil
}

// PutSessionRecord stores the single session row, overwriting any
// previous session.
func (s *store) PutSessionRecord(
	ctx context.Context, rec *SessionRecord,
) error {
	rec.ID = sessionRecordID

	if err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(rec).Error; err != nil {
		return fmt.Errorf("storing session record: %w", err)
	}

	return nil
}

func (s *store) DeleteSessionRecord(ctx context.Context) error {
	if err := s.db.WithContext(ctx).
		Delete(&SessionRecord{}, sessionRecordID).Error; err != nil {
		return fmt.Errorf("deleting session record: %w", err)
	}

	return nil
}
