package analyze

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"dish-compat/internal/core/analysis"
	"dish-compat/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Service 分析相關 handler 需要的引擎操作
type Service interface {
	Analyze(ctx context.Context, req analysis.AnalyzeRequest, profile *common.UserSensitivityProfile) (*common.AnalysisResult, error)
	EvaluateBioCompatibility(ctx context.Context, dish common.Dish, profile *common.UserSensitivityProfile) (common.BCSResult, error)
	ScoreTasteMatch(ctx context.Context, dish common.Dish, profile *common.UserSensitivityProfile) (common.TasteResult, error)
	Search(ctx context.Context, query string, page, limit int) (*common.SearchPage, error)
	Suggest(req analysis.SuggestRequest) []common.SuggestionEntry
	Bootstrap(limit int) []common.SuggestionEntry
}

// AnalyzeBody 完整分析請求：食譜 id 或菜名/食材，加上使用者設定
type AnalyzeBody struct {
	analysis.AnalyzeRequest
	Profile *common.UserSensitivityProfile `json:"profile"`
}

// DishPayload 請求中的菜餚，食材為原始片語
type DishPayload struct {
	Title       string   `json:"title"`
	Ingredients []string `json:"ingredients"`
}

// ToDish 轉為引擎使用的菜餚
func (p DishPayload) ToDish() common.Dish {
	dish := common.Dish{Title: strings.TrimSpace(p.Title)}
	for _, phrase := range p.Ingredients {
		dish.Ingredients = append(dish.Ingredients, common.NewIngredientReference(phrase))
	}
	return dish
}

// DishBody BCS / 口味評分請求
type DishBody struct {
	Dish    DishPayload                    `json:"dish"`
	Profile *common.UserSensitivityProfile `json:"profile"`
}

// SuggestionsResponse 自動完成響應
type SuggestionsResponse struct {
	Query       string                   `json:"query,omitempty"`
	Suggestions []common.SuggestionEntry `json:"suggestions"`
	Count       int                      `json:"count"`
}

// Handler 分析處理程序
type Handler struct {
	service Service
}

// NewHandler 創建分析處理程序
func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// fail 記錄並寫出錯誤
func fail(c *gin.Context, requestID, msg string, err error) {
	fields := []zap.Field{zap.Error(err), zap.String("request_id", requestID)}
	if common.StatusOf(err) >= http.StatusInternalServerError {
		common.LogError(msg, fields...)
	} else {
		common.LogWarn(msg, fields...)
	}
	common.WriteError(c, err)
}

// intQuery 讀取整數查詢參數，空值回傳 0
func intQuery(c *gin.Context, name string) (int, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, common.NewValidationError(name + " must be an integer")
	}
	return v, nil
}

func boolQuery(c *gin.Context, name string) bool {
	switch strings.ToLower(strings.TrimSpace(c.Query(name))) {
	case "1", "true", "yes":
		return true
	}
	return false
}

// HandleAnalyze 完整分析：BCS、口味、替換建議與替代食譜
func (h *Handler) HandleAnalyze(c *gin.Context) {
	requestID := common.RequestID(c)

	var body AnalyzeBody
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, requestID, "請求格式無效", common.NewValidationError("invalid request format"))
		return
	}

	common.LogInfo("開始分析菜餚",
		zap.String("request_id", requestID),
		zap.String("recipe_id", body.RecipeID),
		zap.String("dish_name", body.DishName),
		zap.Int("ingredients", len(body.Ingredients)),
	)

	result, err := h.service.Analyze(c.Request.Context(), body.AnalyzeRequest, body.Profile)
	if err != nil {
		fail(c, requestID, "菜餚分析失敗", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// HandleBCS 只計算生物相容性分數
func (h *Handler) HandleBCS(c *gin.Context) {
	requestID := common.RequestID(c)

	var body DishBody
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, requestID, "請求格式無效", common.NewValidationError("invalid request format"))
		return
	}

	result, err := h.service.EvaluateBioCompatibility(c.Request.Context(), body.Dish.ToDish(), body.Profile)
	if err != nil {
		fail(c, requestID, "BCS 評分失敗", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// HandleTaste 只計算口味匹配分數
func (h *Handler) HandleTaste(c *gin.Context) {
	requestID := common.RequestID(c)

	var body DishBody
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, requestID, "請求格式無效", common.NewValidationError("invalid request format"))
		return
	}

	result, err := h.service.ScoreTasteMatch(c.Request.Context(), body.Dish.ToDish(), body.Profile)
	if err != nil {
		fail(c, requestID, "口味評分失敗", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// HandleSearch 食譜搜尋（分頁）
func (h *Handler) HandleSearch(c *gin.Context) {
	requestID := common.RequestID(c)

	page, err := intQuery(c, "page")
	if err != nil {
		fail(c, requestID, "查詢參數無效", err)
		return
	}
	limit, err := intQuery(c, "limit")
	if err != nil {
		fail(c, requestID, "查詢參數無效", err)
		return
	}

	result, err := h.service.Search(c.Request.Context(), c.Query("q"), page, limit)
	if err != nil {
		fail(c, requestID, "搜尋失敗", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// HandleSuggestions 自動完成建議；mode=legacy 只回傳食材建議
func (h *Handler) HandleSuggestions(c *gin.Context) {
	requestID := common.RequestID(c)

	limit, err := intQuery(c, "limit")
	if err != nil {
		fail(c, requestID, "查詢參數無效", err)
		return
	}

	query := c.Query("q")
	suggestions := h.service.Suggest(analysis.SuggestRequest{
		Query:         query,
		Limit:         limit,
		Legacy:        strings.EqualFold(c.Query("mode"), "legacy"),
		IncludeLegacy: boolQuery(c, "includeLegacy"),
	})
	if suggestions == nil {
		suggestions = []common.SuggestionEntry{}
	}
	c.JSON(http.StatusOK, SuggestionsResponse{Query: query, Suggestions: suggestions, Count: len(suggestions)})
}

// HandleBootstrap 前端離線自動完成用的索引快照
func (h *Handler) HandleBootstrap(c *gin.Context) {
	requestID := common.RequestID(c)

	limit, err := intQuery(c, "limit")
	if err != nil {
		fail(c, requestID, "查詢參數無效", err)
		return
	}

	suggestions := h.service.Bootstrap(limit)
	if suggestions == nil {
		suggestions = []common.SuggestionEntry{}
	}
	c.JSON(http.StatusOK, SuggestionsResponse{Suggestions: suggestions, Count: len(suggestions)})
}
