package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"
)

// errorBody is the uniform error payload.
type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// errorJSON writes the uniform error payload. Ownership failures go
// through notFound instead so they are indistinguishable from missing
// resources.
func errorJSON(c *echo.Context, status int, code, message string) error {
	return c.JSON(status, errorBody{Error: message, Code: code})
}

// invalidJSON maps request-body parse failures to 400, never 500.
func invalidJSON(c *echo.Context) error {
	return errorJSON(c, http.StatusBadRequest, "INVALID_JSON", "request body is not valid JSON")
}

// unauthenticated is the single shape of a 401.
func unauthenticated(c *echo.Context) error {
	return errorJSON(c, http.StatusUnauthorized, "UNAUTHENTICATED", "authentication required")
}

// notFound hides both genuinely missing resources and resources the
// caller does not own.
func notFound(c *echo.Context) error {
	return errorJSON(c, http.StatusNotFound, "NOT_FOUND", "not found")
}
