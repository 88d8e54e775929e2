package api

import (
	"io"
	"net/http"
	"strconv"

	echo "github.com/labstack/echo/v5"

	"github.com/noshhq/nosh/pkg/places"
)

// photosHandler handles GET /api/v1/photos/places/:placeId/photos/:photoId.
// Proxies the upstream photo bytes so the provider key never reaches a
// client-visible URL.
func (s *Server) photosHandler(c *echo.Context) error {
	if !s.limiter.Allow(c.Request().Context(), "photos", c.RealIP(), "", s.cfg.RateLimit.PhotosPerMinute) {
		return errorJSON(c, http.StatusTooManyRequests, "RATE_LIMITED", "photo rate limit exceeded")
	}

	maxWidth := 0
	if v := c.QueryParam("maxWidthPx"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			maxWidth = n
		}
	}

	stream, err := s.photos.Photo(c.Request().Context(), c.Param("placeId"), c.Param("photoId"), maxWidth)
	if err != nil {
		switch places.KindOf(err) {
		case places.KindTimeout:
			return errorJSON(c, http.StatusGatewayTimeout, "UPSTREAM_TIMEOUT", "photo fetch timed out")
		case places.KindQuota:
			return errorJSON(c, http.StatusTooManyRequests, "RATE_LIMITED", "photo quota exceeded")
		default:
			return notFound(c)
		}
	}
	defer stream.Close()

	h := c.Response().Header()
	h.Set("Cache-Control", "public, max-age=86400")
	contentType := stream.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h.Set("Content-Type", contentType)

	c.Response().WriteHeader(http.StatusOK)
	_, err = io.Copy(c.Response(), stream.Body)
	return err
}
