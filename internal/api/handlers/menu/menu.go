package menu

import (
	"context"
	"net/http"
	"strings"

	"dish-compat/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Service 菜單相關 handler 需要的引擎操作
type Service interface {
	ExtractDishCandidates(raw string) []common.DishCandidate
	ScanMenu(ctx context.Context, raw string, profile *common.UserSensitivityProfile) ([]common.ScoredCandidate, error)
}

// ExtractRequest OCR 文字
type ExtractRequest struct {
	Text string `json:"text"`
}

// ScanRequest OCR 文字加上使用者設定
type ScanRequest struct {
	Text    string                         `json:"text"`
	Profile *common.UserSensitivityProfile `json:"profile"`
}

// ExtractResponse 菜名候選
type ExtractResponse struct {
	Candidates []common.DishCandidate `json:"candidates"`
	Count      int                    `json:"count"`
}

// ScanResponse 評分後的菜單
type ScanResponse struct {
	Dishes []common.ScoredCandidate `json:"dishes"`
	Count  int                      `json:"count"`
}

// Handler 菜單處理程序
type Handler struct {
	service Service
}

// NewHandler 創建菜單處理程序
func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func bindText(c *gin.Context, requestID string, v interface{}, text func() string) bool {
	if err := c.ShouldBindJSON(v); err != nil || strings.TrimSpace(text()) == "" {
		common.LogWarn("菜單文字無效", zap.String("request_id", requestID))
		common.WriteError(c, common.NewValidationError("text is required"))
		return false
	}
	return true
}

// HandleExtract 從菜單文字擷取菜名候選
func (h *Handler) HandleExtract(c *gin.Context) {
	requestID := common.RequestID(c)

	var req ExtractRequest
	if !bindText(c, requestID, &req, func() string { return req.Text }) {
		return
	}

	candidates := h.service.ExtractDishCandidates(req.Text)
	if candidates == nil {
		candidates = []common.DishCandidate{}
	}
	common.LogInfo("菜名擷取完成",
		zap.String("request_id", requestID),
		zap.Int("candidates", len(candidates)),
	)
	c.JSON(http.StatusOK, ExtractResponse{Candidates: candidates, Count: len(candidates)})
}

// HandleScan 擷取菜名候選並依使用者設定評分排序
func (h *Handler) HandleScan(c *gin.Context) {
	requestID := common.RequestID(c)

	var req ScanRequest
	if !bindText(c, requestID, &req, func() string { return req.Text }) {
		return
	}

	dishes, err := h.service.ScanMenu(c.Request.Context(), req.Text, req.Profile)
	if err != nil {
		common.LogWarn("菜單評分失敗", zap.Error(err), zap.String("request_id", requestID))
		common.WriteError(c, err)
		return
	}
	if dishes == nil {
		dishes = []common.ScoredCandidate{}
	}

	common.LogInfo("菜單評分完成",
		zap.String("request_id", requestID),
		zap.Int("dishes", len(dishes)),
	)
	c.JSON(http.StatusOK, ScanResponse{Dishes: dishes, Count: len(dishes)})
}
