package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"

	apperrors "nutriwatch/internal/errors"
	"nutriwatch/internal/models"
	"nutriwatch/internal/pagination"
)

const (
	resourceFoods = "foods"

	// MaxTextLength bounds the free-text candidate fields.
	MaxTextLength = 5000
	// MaxNutritionTags caps the number of tags kept on a candidate.
	MaxNutritionTags = 20
)

// DuplicatePolicy tunes the duplicate-candidate heuristic: a stored food or
// pending request is a duplicate when a submitted term appears, ignoring
// case, inside its name/description or its alternate names. The match is
// deliberately loose and will flag unrelated foods that share a word.
type DuplicatePolicy struct {
	// MinTermLength skips terms shorter than this many characters.
	MinTermLength int
	// CheckAlternateNames also matches each submitted alternate name.
	CheckAlternateNames bool
	// IncludePending also matches other pending food requests.
	IncludePending bool
}

// DefaultDuplicatePolicy matches the submitted name against foods and
// pending requests.
func DefaultDuplicatePolicy() DuplicatePolicy {
	return DuplicatePolicy{MinTermLength: 3, IncludePending: true}
}

// foodService handles the food catalog.
type foodService struct {
	db     *gorm.DB
	audit  AuditServicer
	policy DuplicatePolicy
}

// NewFoodService creates a new FoodServicer.
func NewFoodService(db *gorm.DB, audit AuditServicer, policy DuplicatePolicy) FoodServicer {
	return &foodService{db: db, audit: audit, policy: policy}
}

// CreateFood adds a catalog entry directly, without the request workflow.
func (s *foodService) CreateFood(actorID string, candidate FoodCandidate) (*models.Food, error) {
	c, err := normalizeCandidate(candidate)
	if err != nil {
		return nil, err
	}

	food := &models.Food{
		NameAndDescription: c.NameAndDescription,
		AlternateNames:     c.AlternateNames,
		EnergyKcal:         c.EnergyKcal,
		NutritionTags:      c.NutritionTags,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(food).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return s.audit.Record(tx, AuditEntry{
			ActorID:      actorID,
			Action:       models.AuditActionCreate,
			ResourceType: resourceFoods,
			ResourceID:   food.ID,
			Changes:      models.Diff(nil, food.Snapshot()),
			Description:  "Created food " + truncate(food.NameAndDescription, 80),
		})
	})
	if err != nil {
		return nil, err
	}
	return food, nil
}

// GetFoodByID retrieves a catalog entry.
func (s *foodService) GetFoodByID(foodID string) (*models.Food, error) {
	var food models.Food
	if err := s.db.Where("id = ?", foodID).First(&food).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrFoodNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &food, nil
}

// ListFoods searches the catalog by name, alternate names or tags, and
// optionally narrows it to one tag.
func (s *foodService) ListFoods(page pagination.PageRequest, search, tag string) (*pagination.PageResponse[models.Food], error) {
	base := s.db.Model(&models.Food{})
	if strings.TrimSpace(search) != "" {
		p := containsPattern(search)
		base = base.Where(
			"(LOWER(name_and_description) LIKE ? ESCAPE '\\' OR LOWER(alternate_names) LIKE ? ESCAPE '\\' OR LOWER(nutrition_tags) LIKE ? ESCAPE '\\')",
			p, p, p,
		)
	}
	if strings.TrimSpace(tag) != "" {
		base = base.Where("LOWER(nutrition_tags) LIKE ? ESCAPE '\\'", containsPattern(tag))
	}

	result, err := pagination.Fetch[models.Food](base, page, "name_and_description ASC, id ASC")
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return result, nil
}

// GetTags returns every distinct nutrition tag in the catalog, sorted.
func (s *foodService) GetTags() ([]string, error) {
	var raw []string
	if err := s.db.Model(&models.Food{}).
		Where("nutrition_tags <> ''").
		Pluck("nutrition_tags", &raw).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	seen := make(map[string]bool)
	tags := []string{}
	for _, r := range raw {
		for _, tag := range splitList(r) {
			key := strings.ToLower(tag)
			if !seen[key] {
				seen[key] = true
				tags = append(tags, tag)
			}
		}
	}
	sort.Slice(tags, func(i, j int) bool { return strings.ToLower(tags[i]) < strings.ToLower(tags[j]) })
	return tags, nil
}

// CheckDuplicate runs the duplicate-candidate heuristic without submitting
// anything. A nil match means no duplicate was found.
func (s *foodService) CheckDuplicate(name, alternateNames string) (*DuplicateMatch, error) {
	return findDuplicate(s.db, s.policy, name, alternateNames)
}

// findDuplicate returns the first food, then pending request, that contains
// one of the candidate's terms.
func findDuplicate(db *gorm.DB, policy DuplicatePolicy, name, alternateNames string) (*DuplicateMatch, error) {
	terms := []string{name}
	if policy.CheckAlternateNames {
		terms = append(terms, splitList(alternateNames)...)
	}

	const matchSQL = "(LOWER(name_and_description) LIKE ? ESCAPE '\\' OR LOWER(alternate_names) LIKE ? ESCAPE '\\')"

	for _, term := range terms {
		term = strings.TrimSpace(term)
		if utf8.RuneCountInString(term) < policy.MinTermLength || term == "" {
			continue
		}
		p := containsPattern(term)

		var foods []models.Food
		if err := db.Where(matchSQL, p, p).Order("created_at ASC").Limit(1).Find(&foods).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if len(foods) > 0 {
			return &DuplicateMatch{Source: resourceFoods, ID: foods[0].ID, Name: foods[0].NameAndDescription}, nil
		}

		if !policy.IncludePending {
			continue
		}
		var requests []models.FoodRequest
		if err := db.Where("status = ?", models.FoodRequestPending).
			Where(matchSQL, p, p).
			Order("created_at ASC").Limit(1).
			Find(&requests).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if len(requests) > 0 {
			return &DuplicateMatch{Source: resourceFoodRequests, ID: requests[0].ID, Name: requests[0].NameAndDescription}, nil
		}
	}
	return nil, nil
}

// normalizeCandidate validates a candidate and normalizes its list fields.
func normalizeCandidate(c FoodCandidate) (FoodCandidate, error) {
	c.NameAndDescription = strings.TrimSpace(c.NameAndDescription)
	if c.NameAndDescription == "" {
		return c, apperrors.WithMessage(apperrors.ErrInvalidInput, "food name and description is required")
	}
	if utf8.RuneCountInString(c.NameAndDescription) > MaxTextLength {
		return c, apperrors.WithMessage(apperrors.ErrInvalidInput,
			fmt.Sprintf("food name and description cannot exceed %d characters", MaxTextLength))
	}
	if c.EnergyKcal != nil && *c.EnergyKcal < 0 {
		return c, apperrors.WithMessage(apperrors.ErrInvalidInput, "energy kcal cannot be negative")
	}

	c.AlternateNames = normalizeList(c.AlternateNames, 0)
	if utf8.RuneCountInString(c.AlternateNames) > MaxTextLength {
		return c, apperrors.WithMessage(apperrors.ErrInvalidInput,
			fmt.Sprintf("alternate names cannot exceed %d characters", MaxTextLength))
	}
	c.NutritionTags = normalizeList(c.NutritionTags, MaxNutritionTags)
	return c, nil
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
