package http

import "github.com/gin-gonic/gin"

func (h *Handler) Register(r *gin.Engine) {
	r.GET("/health", h.HealthCheck)
	r.GET("/ws", h.Socket)

	v1 := r.Group("/api/v1", h.Authenticate())

	rooms := v1.Group("/rooms")
	rooms.POST("", h.CreateRoom)
	rooms.GET("", h.ListRooms)
	rooms.POST("/join", h.JoinRoom)
	rooms.GET("/:id", h.GetRoom)
	rooms.DELETE("/:id", h.DeleteRoom)
	rooms.POST("/:id/leave", h.LeaveRoom)
	rooms.POST("/:id/queue", h.AddToQueue)
	rooms.DELETE("/:id/queue/:itemId", h.RemoveFromQueue)
	rooms.PUT("/:id/participants/:userId/role", h.ChangeRole)

	v1.GET("/songs/:id", h.GetSong)
}
