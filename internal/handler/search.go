package handler

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/placescout/api/internal/model"
	"github.com/placescout/api/internal/service"
	"github.com/placescout/api/pkg/response"
)

// SearchService is the job API the handler drives
type SearchService interface {
	StartSearch(ctx context.Context, req *model.SearchStartRequest) (*model.SearchStartResponse, error)
	GetStatus(ctx context.Context, jobID string) (*model.SearchStatusResponse, error)
}

type SearchHandler struct {
	service   SearchService
	validator *validator.Validate
}

func NewSearchHandler(svc SearchService, v *validator.Validate) *SearchHandler {
	return &SearchHandler{
		service:   svc,
		validator: v,
	}
}

// Start handles POST /api/search/start
func (h *SearchHandler) Start(c *fiber.Ctx) error {
	var req model.SearchStartRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.service.StartSearch(c.Context(), &req)
	if err != nil {
		return response.ServiceError(c, err.Error())
	}

	return response.Accepted(c, result)
}

// Status handles GET /api/search/status/:jobId
func (h *SearchHandler) Status(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	result, err := h.service.GetStatus(c.Context(), jobID)
	if err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			return response.NotFound(c, "Job not found")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, result)
}

// NewValidator returns a validator with the search request rules registered
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterValidation("provider", func(fl validator.FieldLevel) bool {
		return model.Provider(fl.Field().String()).IsValid()
	})
	v.RegisterValidation("radius", func(fl validator.FieldLevel) bool {
		r := fl.Field().Int()
		return r >= model.MinRadius && r <= model.MaxRadius
	})
	return v
}

func formatValidationErrors(err error) interface{} {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		errs := make(map[string]string)
		for _, e := range validationErrors {
			errs[e.Field()] = e.Tag()
		}
		return errs
	}
	return nil
}
