package http

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/vogiaan1904/listenroom/internal/auth"
	"github.com/vogiaan1904/listenroom/pkg/response"
)

const identityKey = "identity"

// Authenticate requires a bearer token on every request it guards.
func (h *Handler) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			response.Error(c, errUnauthorized)
			return
		}

		id, err := h.verifier.Verify(c.Request.Context(), strings.TrimSpace(token))
		if err != nil {
			response.Error(c, h.mapHTTPError(err))
			return
		}

		c.Set(identityKey, id)
		c.Request = c.Request.WithContext(auth.WithIdentity(c.Request.Context(), id))
		c.Next()
	}
}

func identity(c *gin.Context) auth.Identity {
	v, _ := c.Get(identityKey)
	id, _ := v.(auth.Identity)
	return id
}
