package web

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/renderinc/dil/internal/dilerr"
)

// Message is the body of every non-2xx response.
type Message struct {
	Message string `json:"message"`
}

func respondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

func respondMessage(c *gin.Context, status int, format string, args ...any) {
	c.JSON(status, Message{Message: fmt.Sprintf(format, args...)})
}

// respondError maps err onto a status code. notFound is the message used
// when err is a not-found error.
func (s *Server) respondError(c *gin.Context, err error, notFound string) {
	switch {
	case errors.Is(err, dilerr.ErrNotFound):
		respondMessage(c, http.StatusNotFound, "%s", notFound)
	case errors.Is(err, dilerr.ErrValidation):
		respondMessage(c, http.StatusBadRequest, "%s", err.Error())
	case errors.Is(err, dilerr.ErrIntegrity):
		respondMessage(c, http.StatusConflict, "%s", err.Error())
	default:
		s.log.Error("request failed", "path", c.Request.URL.Path, "error", err)
		respondMessage(c, http.StatusInternalServerError, "It seems the server has trouble: %v", err)
	}
}
