package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stocklink/core/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrNotFound is returned when a store does not exist for the tenant.
var ErrNotFound = errors.New("store not found")

// Service handles store operations.
type Service struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewService creates a new store service.
func NewService(db *gorm.DB, logger *zap.Logger) *Service {
	return &Service{db: db, logger: logger}
}

// CreateStoreRequest is the payload for creating a store.
type CreateStoreRequest struct {
	Channel   string         `json:"channel" validate:"required,max=30"`
	Name      string         `json:"name" validate:"required,max=100"`
	IsEnabled *bool          `json:"is_enabled"`
	IsPrimary bool           `json:"is_primary"`
	Settings  map[string]any `json:"settings"`
}

// Create creates a store for the tenant.
func (s *Service) Create(ctx context.Context, tenantID uuid.UUID, req CreateStoreRequest) (*Store, error) {
	enabled := true
	if req.IsEnabled != nil {
		enabled = *req.IsEnabled
	}
	st := &Store{
		TenantID:  tenantID,
		Channel:   req.Channel,
		Name:      req.Name,
		IsEnabled: enabled,
		IsPrimary: req.IsPrimary,
		Settings:  utils.JSONMap(req.Settings),
	}
	if st.Settings == nil {
		st.Settings = utils.JSONMap{}
	}
	if err := s.db.WithContext(ctx).Create(st).Error; err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}
	return st, nil
}

// List returns all stores of the tenant.
func (s *Service) List(ctx context.Context, tenantID uuid.UUID) ([]Store, error) {
	var stores []Store
	err := s.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at").
		Find(&stores).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list stores: %w", err)
	}
	return stores, nil
}

// Get returns one store of the tenant.
func (s *Service) Get(ctx context.Context, tenantID, storeID uuid.UUID) (*Store, error) {
	return Get(ctx, s.db, tenantID, storeID)
}

// Get loads a tenant's store by id.
func Get(ctx context.Context, db *gorm.DB, tenantID, storeID uuid.UUID) (*Store, error) {
	var st Store
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, storeID).
		First(&st).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load store: %w", err)
	}
	return &st, nil
}

// TouchLastInventorySync stamps the store's last successful inventory sync
// and clears any previous sync error.
func TouchLastInventorySync(ctx context.Context, db *gorm.DB, storeID uuid.UUID) error {
	state, err := loadSyncState(ctx, db, storeID)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	state.LastInventorySync = &now
	state.LastError = ""
	if err := db.WithContext(ctx).Save(state).Error; err != nil {
		return fmt.Errorf("failed to update sync state: %w", err)
	}
	return nil
}

// SetLastSyncError records why the store's latest sync failed.
func SetLastSyncError(ctx context.Context, db *gorm.DB, storeID uuid.UUID, message string) error {
	state, err := loadSyncState(ctx, db, storeID)
	if err != nil {
		return err
	}
	state.LastError = message
	if err := db.WithContext(ctx).Save(state).Error; err != nil {
		return fmt.Errorf("failed to update sync state: %w", err)
	}
	return nil
}

func loadSyncState(ctx context.Context, db *gorm.DB, storeID uuid.UUID) (*SyncState, error) {
	var state SyncState
	err := db.WithContext(ctx).
		Where(&SyncState{StoreID: storeID}).
		Attrs(&SyncState{RateLimitState: utils.JSONMap{}}).
		FirstOrCreate(&state).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load sync state: %w", err)
	}
	return &state, nil
}
