package handler

import (
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/gin-gonic/gin"
	"github.com/joshuaclark5/MicroFreelanceHub-sub000/pkg/logger"
	"github.com/joshuaclark5/MicroFreelanceHub-sub000/service"
)

type DraftHandler struct {
	ai *service.AIService
}

func NewDraftHandler(ai *service.AIService) *DraftHandler {
	return &DraftHandler{ai: ai}
}

type DraftRequest struct {
	ClientName string `json:"client_name"`
	Brief      string `json:"brief"`
}

func (r DraftRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Brief, validation.Required, validation.Length(1, 4000)),
		validation.Field(&r.ClientName, validation.Length(0, 200)),
	)
}

// Draft asks the model for a deliverables suggestion. AI failures are soft:
// the client gets a null suggestion and types the contract by hand.
func (h *DraftHandler) Draft(c *gin.Context) {
	var req DraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	suggestion, err := h.ai.DraftDeliverables(c.Request.Context(), req.ClientName, req.Brief)
	if err != nil {
		logger.Warn(c.Request.Context(), "draft suggestion failed", "error", err)
		c.JSON(http.StatusOK, gin.H{"suggestion": nil})
		return
	}

	c.JSON(http.StatusOK, gin.H{"suggestion": suggestion})
}
