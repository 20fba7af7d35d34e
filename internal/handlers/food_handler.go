package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "nutriwatch/internal/errors"
	"nutriwatch/internal/events"
	"nutriwatch/internal/metrics"
	"nutriwatch/internal/pagination"
	"nutriwatch/internal/services"
)

// FoodHandler handles food catalog requests.
type FoodHandler struct {
	foodService services.FoodServicer
	publisher   events.Publisher
	metrics     *metrics.Metrics
}

// NewFoodHandler creates a new FoodHandler.
func NewFoodHandler(foodService services.FoodServicer, publisher events.Publisher, m *metrics.Metrics) *FoodHandler {
	return &FoodHandler{foodService: foodService, publisher: publisher, metrics: m}
}

// FoodCandidateRequest carries the catalog fields of a food or food request.
type FoodCandidateRequest struct {
	NameAndDescription string   `json:"food_name_and_description" binding:"required,min=1,max=5000"`
	AlternateNames     string   `json:"alternate_common_names" binding:"max=5000,comma_list"`
	EnergyKcal         *float64 `json:"energy_kcal" binding:"omitempty,gte=0"`
	NutritionTags      string   `json:"nutrition_tags" binding:"max=2000,comma_list"`
}

func (r FoodCandidateRequest) candidate() services.FoodCandidate {
	return services.FoodCandidate{
		NameAndDescription: r.NameAndDescription,
		AlternateNames:     r.AlternateNames,
		EnergyKcal:         r.EnergyKcal,
		NutritionTags:      r.NutritionTags,
	}
}

// CreateFood handles adding a food directly to the catalog
// @Summary     Create a food
// @Tags        foods
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body FoodCandidateRequest true "Food details"
// @Success     201 {object} models.Food "Food created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Router      /foods [post]
func (h *FoodHandler) CreateFood(c *gin.Context) {
	actorID, err := getActorID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req FoodCandidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	food, err := h.foodService.CreateFood(actorID, req.candidate())
	if err != nil {
		respondWithError(c, err)
		return
	}

	publish(c, h.publisher, h.metrics, events.New(events.TypeFoodCreated, food.ID,
		events.ResourceRef{ID: food.ID, ActorID: actorID, Name: food.NameAndDescription}))

	c.JSON(http.StatusCreated, gin.H{"food": food})
}

// GetFoodByID handles the retrieval of one food
// @Summary     Get food by ID
// @Tags        foods
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Food ID"
// @Success     200 {object} models.Food "Food"
// @Failure     404 {object} ErrorResponse "Food not found"
// @Router      /foods/{id} [get]
func (h *FoodHandler) GetFoodByID(c *gin.Context) {
	foodID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	food, err := h.foodService.GetFoodByID(foodID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"food": food})
}

// ListFoods handles searching the catalog
// @Summary     List foods
// @Tags        foods
// @Produce     json
// @Security    BearerAuth
// @Param       search query string false "Matches name, alternate names or tags"
// @Param       tag    query string false "Only foods carrying this tag"
// @Success     200 {object} pagination.PageResponse[models.Food] "Paginated foods"
// @Router      /foods [get]
func (h *FoodHandler) ListFoods(c *gin.Context) {
	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	result, err := h.foodService.ListFoods(page, c.Query("search"), c.Query("tag"))
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetTags handles listing the distinct nutrition tags
// @Summary     List nutrition tags
// @Tags        foods
// @Produce     json
// @Security    BearerAuth
// @Success     200 {array} string "Sorted tags"
// @Router      /foods/tags [get]
func (h *FoodHandler) GetTags(c *gin.Context) {
	tags, err := h.foodService.GetTags()
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"tags": tags})
}

// CheckDuplicate handles a dry run of the duplicate heuristic
// @Summary     Check for a duplicate food
// @Tags        foods
// @Produce     json
// @Security    BearerAuth
// @Param       name            query string true  "Candidate name and description"
// @Param       alternate_names query string false "Candidate alternate names"
// @Success     200 {object} services.DuplicateMatch "duplicate is null when none is found"
// @Router      /foods/check-duplicate [get]
func (h *FoodHandler) CheckDuplicate(c *gin.Context) {
	name := c.Query("name")
	if name == "" {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "name is required"))
		return
	}

	match, err := h.foodService.CheckDuplicate(name, c.Query("alternate_names"))
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"duplicate": match})
}
