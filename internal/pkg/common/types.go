package common

import (
	"strings"
	"time"
)

// FlavorAxis 口味軸
type FlavorAxis string

const (
	AxisSweet  FlavorAxis = "sweet"
	AxisSpicy  FlavorAxis = "spicy"
	AxisBitter FlavorAxis = "bitter"
	AxisSour   FlavorAxis = "sour"
	AxisUmami  FlavorAxis = "umami"
	AxisCreamy FlavorAxis = "creamy"
)

// FlavorAxes 固定的六個口味軸，順序即向量順序
var FlavorAxes = []FlavorAxis{AxisSweet, AxisSpicy, AxisBitter, AxisSour, AxisUmami, AxisCreamy}

// SpiceTolerance 辣度耐受
type SpiceTolerance string

const (
	SpiceLow    SpiceTolerance = "Low"
	SpiceMedium SpiceTolerance = "Medium"
	SpiceHigh   SpiceTolerance = "High"
)

// DietType 飲食類型（可選）
type DietType string

const (
	DietAny        DietType = ""
	DietVegan      DietType = "vegan"
	DietVegetarian DietType = "vegetarian"
)

// Normalize 只辨識純素與素食（含 veg 縮寫），non-veg、other 與未知值一律視為不限制
func (d DietType) Normalize() DietType {
	switch strings.ToLower(strings.TrimSpace(string(d))) {
	case "vegan":
		return DietVegan
	case "vegetarian", "veg":
		return DietVegetarian
	default:
		return DietAny
	}
}

// UserSensitivityProfile 使用者敏感度設定，由呼叫端持有，引擎只讀
type UserSensitivityProfile struct {
	Allergies          []string           `json:"allergies"`
	Intolerances       []string           `json:"intolerances"`
	SpiceTolerance     SpiceTolerance     `json:"spice_tolerance"`
	FermentedSensitive bool               `json:"fermented_sensitive"`
	TastePreferences   map[FlavorAxis]int `json:"taste_preferences"`
	DietType           DietType           `json:"diet_type,omitempty"`
}

// Tolerance 回傳辣度耐受，未設定時視為 Medium
func (p *UserSensitivityProfile) Tolerance() SpiceTolerance {
	switch {
	case strings.EqualFold(string(p.SpiceTolerance), string(SpiceLow)):
		return SpiceLow
	case strings.EqualFold(string(p.SpiceTolerance), string(SpiceHigh)):
		return SpiceHigh
	default:
		return SpiceMedium
	}
}

// IngredientReference 單一食材原始文字（數量/處理方式已拆到 Hint）
type IngredientReference struct {
	Raw      string   `json:"raw"`
	Hint     string   `json:"hint,omitempty"`
	Triggers []string `json:"triggers,omitempty"` // 額外的過敏原/化學標註（例如知識庫）
}

// NewIngredientReference 由食材片語建立參考，逗號後視為處理方式
func NewIngredientReference(phrase string) IngredientReference {
	raw, hint, _ := strings.Cut(phrase, ",")
	return IngredientReference{
		Raw:  strings.TrimSpace(raw),
		Hint: strings.TrimSpace(hint),
	}
}

// Dish 待分析的菜餚
type Dish struct {
	RecipeID    string                `json:"recipe_id,omitempty"`
	Title       string                `json:"title"`
	Ingredients []IngredientReference `json:"ingredients"`
}

// FlavorRecord 風味資料庫查詢結果（含查無與錯誤標記）
type FlavorRecord struct {
	CanonicalName    string    `json:"canonical_name"`
	FoundName        string    `json:"found_name,omitempty"`
	ID               string    `json:"id,omitempty"`
	FlavorProfile    []string  `json:"flavor_profile,omitempty"`
	FunctionalGroups []string  `json:"functional_groups,omitempty"`
	Bitter           bool      `json:"bitter,omitempty"`
	SuperSweet       bool      `json:"super_sweet,omitempty"`
	Natural          bool      `json:"natural,omitempty"`
	NotFound         bool      `json:"not_found,omitempty"`
	Error            bool      `json:"error,omitempty"`
	FetchedAt        time.Time `json:"fetched_at"`
}

// HasFlavor 風味標籤是否包含 tag（子字串比對）
func (r FlavorRecord) HasFlavor(tag string) bool {
	return containsTag(r.FlavorProfile, tag)
}

// HasGroup 官能基是否包含 group（子字串比對）
func (r FlavorRecord) HasGroup(group string) bool {
	return containsTag(r.FunctionalGroups, group)
}

// Usable 是否有可用的風味標籤
func (r FlavorRecord) Usable() bool {
	return !r.NotFound && !r.Error && (len(r.FlavorProfile) > 0 || r.Bitter || r.SuperSweet)
}

func containsTag(tags []string, needle string) bool {
	for _, t := range tags {
		if strings.Contains(strings.ToLower(t), needle) {
			return true
		}
	}
	return false
}

// Severity 證據嚴重度
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityCaution  Severity = "caution"
)

// EvidenceItem BCS 每一筆扣分或封鎖的依據
type EvidenceItem struct {
	Ingredient     string   `json:"ingredient"`
	MatchedTrigger string   `json:"matched_trigger,omitempty"`
	Reason         string   `json:"reason"`
	Weight         int      `json:"weight"`
	Severity       Severity `json:"severity"`
}

// BCSResult 生物相容性評分結果
type BCSResult struct {
	BioScore int            `json:"bio_score"`
	Block    bool           `json:"block"`
	Evidence []EvidenceItem `json:"evidence"`
	Warnings []string       `json:"warnings"`
	Degraded bool           `json:"degraded,omitempty"`
}

// TasteVector 六軸口味向量（0-10）
type TasteVector map[FlavorAxis]float64

// TasteResult 口味匹配結果
type TasteResult struct {
	TasteScore int         `json:"taste_score"`
	Notes      []string    `json:"notes"`
	UserVector TasteVector `json:"user_vector,omitempty"`
	DishVector TasteVector `json:"dish_vector,omitempty"`
}

// KnowledgeEntry 菜單知識庫條目
type KnowledgeEntry struct {
	Name      string            `json:"name" yaml:"-"`
	Type      string            `json:"type" yaml:"type"`
	Tags      []string          `json:"tags,omitempty" yaml:"tags"`
	Chemicals map[string]string `json:"chemicals,omitempty" yaml:"chemicals"`
	Triggers  []string          `json:"triggers,omitempty" yaml:"triggers"`
	Benefits  []string          `json:"benefits,omitempty" yaml:"benefits"`
}

// HasTag 是否帶有指定標籤（不分大小寫）
func (e KnowledgeEntry) HasTag(tag string) bool {
	for _, t := range e.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// DishCandidate OCR 文字中一行被視為菜名的候選
type DishCandidate struct {
	Name               string           `json:"name"`
	OriginalText       string           `json:"original_text"`
	MatchedIngredients []KnowledgeEntry `json:"ingredients"`
	IsAnalyzed         bool             `json:"is_analyzed"`
	Confidence         int              `json:"confidence"`
}

// ScoredCandidate 已評分的菜單候選
type ScoredCandidate struct {
	DishCandidate
	Score      int            `json:"score"`
	BioScore   int            `json:"bio_score"`
	TasteScore int            `json:"taste_score"`
	Block      bool           `json:"block"`
	Reason     string         `json:"reason"`
	Reasons    []string       `json:"all_reasons"`
	Tags       []string       `json:"tags"`
	Evidence   []EvidenceItem `json:"evidence,omitempty"`
}

// SuggestionKind 建議條目類型
type SuggestionKind string

const (
	KindRecipe     SuggestionKind = "recipe"
	KindIngredient SuggestionKind = "ingredient"
)

// SuggestionItem 寫入建議索引的觀測
type SuggestionItem struct {
	Title  string         `json:"title"`
	Kind   SuggestionKind `json:"type"`
	Source string         `json:"source"`
}

// SuggestionEntry 建議索引條目
type SuggestionEntry struct {
	Title     string         `json:"title"`
	Key       string         `json:"-"`
	SourceTag string         `json:"source"`
	HitCount  int            `json:"hits"`
	LastSeen  time.Time      `json:"last_seen"`
	Kind      SuggestionKind `json:"type"`
}

// RecipeSummary 搜尋結果
type RecipeSummary struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// RecipeDetails 食譜明細
type RecipeDetails struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Ingredients []string `json:"ingredients"`
}

// Modification 食材替換建議
type Modification struct {
	Original string `json:"original"`
	Swap     string `json:"swap"`
	Reason   string `json:"reason"`
}

// AnalysisResult 完整分析結果
type AnalysisResult struct {
	Dish          Dish            `json:"dish"`
	BCS           BCSResult       `json:"bcs"`
	Taste         TasteResult     `json:"taste"`
	Modifications []Modification  `json:"modifications"`
	Alternatives  []RecipeSummary `json:"alternatives"`
}

// SearchPage 分頁搜尋結果
type SearchPage struct {
	Results  []RecipeSummary `json:"results"`
	Total    int             `json:"total"`
	Page     int             `json:"page"`
	Limit    int             `json:"limit"`
	HasMore  bool            `json:"has_more"`
	Degraded bool            `json:"degraded,omitempty"`
}
