package rest

import "github.com/gin-gonic/gin"

// RegisterTaskRoutes mounts the task and settings endpoints on r.
// r must already authenticate the owner.
func RegisterTaskRoutes(r gin.IRoutes, h *Handler) {
	r.GET("/tasks", h.ListTasks)
	r.POST("/tasks", h.CreateTask)
	r.PUT("/tasks/reorder", h.ReorderTasks)
	r.GET("/tasks/analytics", h.GetAnalytics)
	r.GET("/tasks/:id", h.GetTask)
	r.PUT("/tasks/:id", h.UpdateTask)
	r.DELETE("/tasks/:id", h.DeleteTask)

	r.GET("/settings", h.GetSettings)
	r.PUT("/settings", h.UpdateSettings)
}
