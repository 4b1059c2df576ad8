package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromError(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{err: fiber.ErrNotFound, status: fiber.StatusNotFound, code: CodeNotFound},
		{err: fiber.ErrUpgradeRequired, status: fiber.StatusUpgradeRequired, code: CodeUpgradeRequired},
		{err: fiber.ErrRequestEntityTooLarge, status: fiber.StatusRequestEntityTooLarge, code: CodeValidationError},
		{err: errors.New("boom"), status: fiber.StatusInternalServerError, code: CodeServiceError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			app := fiber.New(fiber.Config{ErrorHandler: FromError})
			app.Get("/", func(*fiber.Ctx) error { return tt.err })

			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)

			var body ErrorResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, tt.code, body.Error.Code)
		})
	}
}
