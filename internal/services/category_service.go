package services

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	apperrors "nutriwatch/internal/errors"
	"nutriwatch/internal/models"
	"nutriwatch/internal/pagination"
)

const resourceItemCategories = "item_categories"

// categoryService handles inventory category business logic.
type categoryService struct {
	db    *gorm.DB
	audit AuditServicer
}

// NewCategoryService creates a new ItemCategoryServicer.
func NewCategoryService(db *gorm.DB, audit AuditServicer) ItemCategoryServicer {
	return &categoryService{db: db, audit: audit}
}

// CreateCategory creates a new item category
func (s *categoryService) CreateCategory(actorID, name, description string) (*models.ItemCategory, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "category name is required")
	}

	category := &models.ItemCategory{
		Name:        name,
		Description: strings.TrimSpace(description),
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		// Check if a category with the same name already exists
		var count int64
		if err := tx.Model(&models.ItemCategory{}).
			Where("LOWER(name) = ?", strings.ToLower(name)).
			Count(&count).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if count > 0 {
			return apperrors.WithMessage(apperrors.ErrConflict, "category with this name already exists")
		}

		if err := tx.Create(category).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		return s.audit.Record(tx, AuditEntry{
			ActorID:      actorID,
			Action:       models.AuditActionCreate,
			ResourceType: resourceItemCategories,
			ResourceID:   category.ID,
			Changes:      models.Diff(nil, category.Snapshot()),
			Description:  "Created item category " + category.Name,
		})
	})
	if err != nil {
		return nil, err
	}
	return category, nil
}

// GetCategories retrieves a paginated list of categories ordered by name.
func (s *categoryService) GetCategories(page pagination.PageRequest) (*pagination.PageResponse[models.ItemCategory], error) {
	result, err := pagination.Fetch[models.ItemCategory](s.db.Model(&models.ItemCategory{}), page, "name ASC")
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return result, nil
}

// GetCategoryByID retrieves a category by ID
func (s *categoryService) GetCategoryByID(categoryID string) (*models.ItemCategory, error) {
	return findCategory(s.db, categoryID)
}

// UpdateCategory updates the name and/or description of a category
func (s *categoryService) UpdateCategory(actorID, categoryID string, name, description *string) (*models.ItemCategory, error) {
	if name != nil && strings.TrimSpace(*name) == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "category name cannot be empty")
	}

	var category *models.ItemCategory
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		category, err = findCategory(tx, categoryID)
		if err != nil {
			return err
		}
		before := category.Snapshot()

		updates := make(map[string]interface{})
		if name != nil {
			category.Name = strings.TrimSpace(*name)
			updates["name"] = category.Name
		}
		if description != nil {
			category.Description = strings.TrimSpace(*description)
			updates["description"] = category.Description
		}
		if len(updates) == 0 {
			return nil
		}

		if err := tx.Model(category).Updates(updates).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		changes := models.Diff(before, category.Snapshot())
		if changes == nil {
			return nil
		}
		return s.audit.Record(tx, AuditEntry{
			ActorID:      actorID,
			Action:       models.AuditActionUpdate,
			ResourceType: resourceItemCategories,
			ResourceID:   category.ID,
			Changes:      changes,
			Description:  "Updated item category " + category.Name,
		})
	})
	if err != nil {
		return nil, err
	}
	return category, nil
}

// DeleteCategory deletes a category that no inventory item references.
func (s *categoryService) DeleteCategory(actorID, categoryID string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		category, err := findCategory(tx, categoryID)
		if err != nil {
			return err
		}

		var itemCount int64
		if err := tx.Model(&models.InventoryItem{}).Where("category_id = ?", categoryID).Count(&itemCount).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if itemCount > 0 {
			return apperrors.ErrCategoryInUse
		}

		if err := tx.Delete(category).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		return s.audit.Record(tx, AuditEntry{
			ActorID:      actorID,
			Action:       models.AuditActionDelete,
			ResourceType: resourceItemCategories,
			ResourceID:   category.ID,
			Changes:      models.Diff(category.Snapshot(), nil),
			Description:  "Deleted item category " + category.Name,
		})
	})
}

func findCategory(db *gorm.DB, categoryID string) (*models.ItemCategory, error) {
	var category models.ItemCategory
	if err := db.Where("id = ?", categoryID).First(&category).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrCategoryNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &category, nil
}
