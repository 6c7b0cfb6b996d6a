package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stocklink/feature/connector"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrNotFound is returned when an inventory item does not exist for the tenant.
var ErrNotFound = errors.New("inventory item not found")

func nowUTC() time.Time {
	return time.Now().UTC()
}

// Service handles inventory CRUD operations.
type Service struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewService creates a new inventory service.
func NewService(db *gorm.DB, logger *zap.Logger) *Service {
	return &Service{db: db, logger: logger}
}

// CreateItemRequest is the payload for creating an inventory item.
type CreateItemRequest struct {
	ItemType     string          `json:"item_type" validate:"required,max=20"`
	ItemNo       string          `json:"item_no" validate:"required,max=64"`
	ColorID      int             `json:"color_id"`
	Condition    string          `json:"condition" validate:"required,max=10"`
	QtyAvailable int             `json:"qty_available" validate:"gte=0"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	Currency     string          `json:"currency" validate:"omitempty,len=3"`
	Remarks      string          `json:"remarks"`
}

// UpdateItemRequest is the payload for updating an inventory item.
type UpdateItemRequest struct {
	QtyAvailable *int             `json:"qty_available" validate:"omitempty,gte=0"`
	UnitPrice    *decimal.Decimal `json:"unit_price"`
	Remarks      *string          `json:"remarks"`
}

// Create creates an inventory item for the tenant.
func (s *Service) Create(ctx context.Context, tenantID uuid.UUID, req CreateItemRequest) (*Item, error) {
	item := &Item{
		TenantID:     tenantID,
		ItemType:     req.ItemType,
		ItemNo:       req.ItemNo,
		ColorID:      req.ColorID,
		Condition:    req.Condition,
		QtyAvailable: req.QtyAvailable,
		UnitPrice:    req.UnitPrice,
		Currency:     req.Currency,
		Remarks:      req.Remarks,
	}
	if item.Currency == "" {
		item.Currency = "EUR"
	}
	if err := s.db.WithContext(ctx).Create(item).Error; err != nil {
		return nil, fmt.Errorf("failed to create inventory item: %w", err)
	}
	return item, nil
}

// Update applies a partial update to an item.
func (s *Service) Update(ctx context.Context, tenantID, itemID uuid.UUID, req UpdateItemRequest) (*Item, error) {
	item, err := s.Get(ctx, tenantID, itemID)
	if err != nil {
		return nil, err
	}
	if req.QtyAvailable != nil {
		item.QtyAvailable = *req.QtyAvailable
	}
	if req.UnitPrice != nil {
		item.UnitPrice = *req.UnitPrice
	}
	if req.Remarks != nil {
		item.Remarks = *req.Remarks
	}
	item.Version++
	if err := s.db.WithContext(ctx).Save(item).Error; err != nil {
		return nil, fmt.Errorf("failed to update inventory item: %w", err)
	}
	return item, nil
}

// List returns all inventory items of the tenant.
func (s *Service) List(ctx context.Context, tenantID uuid.UUID) ([]Item, error) {
	return ListByTenant(ctx, s.db, tenantID)
}

// Get returns one inventory item of the tenant.
func (s *Service) Get(ctx context.Context, tenantID, itemID uuid.UUID) (*Item, error) {
	var item Item
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, itemID).
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load inventory item: %w", err)
	}
	return &item, nil
}

// ListByTenant loads all inventory items of a tenant.
func ListByTenant(ctx context.Context, db *gorm.DB, tenantID uuid.UUID) ([]Item, error) {
	var items []Item
	err := db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("item_no").
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list inventory items: %w", err)
	}
	return items, nil
}

// FindByKey loads a tenant's item by its composite business key.
// Returns nil when no item matches.
func FindByKey(ctx context.Context, db *gorm.DB, tenantID uuid.UUID, key connector.Key) (*Item, error) {
	var item Item
	// Map conditions keep identifiers quoted; condition is reserved in MySQL.
	err := db.WithContext(ctx).
		Where(map[string]any{
			"tenant_id": tenantID,
			"item_type": key.ItemType,
			"item_no":   key.ItemNo,
			"color_id":  key.ColorID,
			"condition": key.Condition,
		}).
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load inventory item by key: %w", err)
	}
	return &item, nil
}

// UpsertExternalID records the store-assigned identifier for an item.
func UpsertExternalID(ctx context.Context, db *gorm.DB, tenantID, itemID, storeID uuid.UUID, externalID string) error {
	if externalID == "" {
		return nil
	}
	var mapping ExternalID
	err := db.WithContext(ctx).
		Where("inventory_item_id = ? AND store_id = ?", itemID, storeID).
		First(&mapping).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		mapping = ExternalID{
			TenantID:            tenantID,
			InventoryItemID:     itemID,
			StoreID:             storeID,
			ExternalInventoryID: externalID,
		}
	case err != nil:
		return fmt.Errorf("failed to load external id mapping: %w", err)
	default:
		mapping.ExternalInventoryID = externalID
	}
	now := nowUTC()
	mapping.LastSyncedAt = &now
	if err := db.WithContext(ctx).Save(&mapping).Error; err != nil {
		return fmt.Errorf("failed to upsert external id mapping: %w", err)
	}
	return nil
}
