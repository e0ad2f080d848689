package rules

// Weights 評分常數，可由設定覆寫
type Weights struct {
	IntolerancePenalty  int     `mapstructure:"intolerance_penalty"`
	FermentedPenalty    int     `mapstructure:"fermented_penalty"`
	SpiceLowPenalty     int     `mapstructure:"spice_low_penalty"`
	SpiceMediumPenalty  int     `mapstructure:"spice_medium_penalty"`
	NeutralScore        int     `mapstructure:"neutral_score"`
	TasteMaxDistance    float64 `mapstructure:"taste_max_distance"`
	TasteScaling        float64 `mapstructure:"taste_scaling"`
	TasteDefaultAxis    int     `mapstructure:"taste_default_axis"`
	MatchNoteMaxDiff    float64 `mapstructure:"match_note_max_diff"`
	MatchNoteMinDish    float64 `mapstructure:"match_note_min_dish"`
	MismatchNoteMinDiff float64 `mapstructure:"mismatch_note_min_diff"`
}

// AllergyWeight 過敏封鎖的證據權重
const AllergyWeight = 100

// MaxScore 分數上限
const MaxScore = 100

// DefaultWeights 預設權重
func DefaultWeights() Weights {
	return Weights{
		IntolerancePenalty:  30,
		FermentedPenalty:    15,
		SpiceLowPenalty:     20,
		SpiceMediumPenalty:  10,
		NeutralScore:        50,
		TasteMaxDistance:    20,
		TasteScaling:        0.3,
		TasteDefaultAxis:    5,
		MatchNoteMaxDiff:    3,
		MatchNoteMinDish:    6,
		MismatchNoteMinDiff: 6,
	}
}

// WithDefaults 以預設值補齊未設定（零值）的欄位
func (w Weights) WithDefaults() Weights {
	d := DefaultWeights()
	if w.IntolerancePenalty <= 0 {
		w.IntolerancePenalty = d.IntolerancePenalty
	}
	if w.FermentedPenalty <= 0 {
		w.FermentedPenalty = d.FermentedPenalty
	}
	if w.SpiceLowPenalty <= 0 {
		w.SpiceLowPenalty = d.SpiceLowPenalty
	}
	if w.SpiceMediumPenalty <= 0 {
		w.SpiceMediumPenalty = d.SpiceMediumPenalty
	}
	if w.NeutralScore <= 0 || w.NeutralScore > MaxScore {
		w.NeutralScore = d.NeutralScore
	}
	if w.TasteMaxDistance <= 0 {
		w.TasteMaxDistance = d.TasteMaxDistance
	}
	if w.TasteScaling <= 0 {
		w.TasteScaling = d.TasteScaling
	}
	if w.TasteDefaultAxis <= 0 {
		w.TasteDefaultAxis = d.TasteDefaultAxis
	}
	if w.MatchNoteMaxDiff <= 0 {
		w.MatchNoteMaxDiff = d.MatchNoteMaxDiff
	}
	if w.MatchNoteMinDish <= 0 {
		w.MatchNoteMinDish = d.MatchNoteMinDish
	}
	if w.MismatchNoteMinDiff <= 0 {
		w.MismatchNoteMinDiff = d.MismatchNoteMinDiff
	}
	return w
}
