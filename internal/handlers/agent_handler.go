package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/justsurfingit/jobtrackai/internal/dtos"
	"github.com/justsurfingit/jobtrackai/internal/services"
)

// AgentHandler exposes the conversational endpoint.
type AgentHandler struct {
	Agent *services.AgentService
}

func NewAgentHandler(agent *services.AgentService) *AgentHandler {
	return &AgentHandler{Agent: agent}
}

// HandleMessage is the POST /agent/message endpoint.
func (h *AgentHandler) HandleMessage(c *gin.Context) {
	var req dtos.UserMessage
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON format: " + err.Error()})
		return
	}

	resp := h.Agent.Process(c.Request.Context(), req)
	c.JSON(http.StatusOK, resp)
}
