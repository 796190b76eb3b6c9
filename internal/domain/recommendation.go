package domain

// DRIType is the Dietary Reference Intake category of a recommendation.
type DRIType string

const (
	DRIAI    DRIType = "AI"
	DRIAIK   DRIType = "AIK"    // AI per 1000 kcal of energy requirement
	DRIAIKG  DRIType = "AI/KG"  // AI per kg of body weight
	DRIALAP  DRIType = "ALAP"   // as low as possible
	DRIAMDR  DRIType = "AMDR"   // percent of energy requirement
	DRIRDA   DRIType = "RDA"
	DRIRDAKG DRIType = "RDA/KG" // RDA per kg of body weight
	DRIUL    DRIType = "UL"     // tolerable upper intake level
)

// IntakeRecommendation is a recommended intake of a nutrient for a demographic.
// A nil AgeMax is open-ended. AmountMin never exceeds AmountMax.
type IntakeRecommendation struct {
	ID         uint     `gorm:"primaryKey" json:"id"`
	NutrientID uint     `gorm:"not null;uniqueIndex:idx_recommendation;uniqueIndex:idx_recommendation_open,where:age_max IS NULL" json:"nutrientId"`
	DRIType    DRIType  `gorm:"column:dri_type;size:6;not null;uniqueIndex:idx_recommendation;uniqueIndex:idx_recommendation_open,where:age_max IS NULL" json:"driType"`
	Sex        Sex      `gorm:"size:1;not null;uniqueIndex:idx_recommendation;uniqueIndex:idx_recommendation_open,where:age_max IS NULL" json:"sex"`
	AgeMin     int      `gorm:"not null;uniqueIndex:idx_recommendation;uniqueIndex:idx_recommendation_open,where:age_max IS NULL" json:"ageMin"`
	AgeMax     *int     `gorm:"uniqueIndex:idx_recommendation" json:"ageMax,omitempty"`
	AmountMin  *float64 `json:"amountMin,omitempty"`
	AmountMax  *float64 `gorm:"check:chk_recommendation_amounts,amount_min IS NULL OR amount_max IS NULL OR amount_min <= amount_max" json:"amountMax,omitempty"`
	Nutrient   Nutrient `gorm:"foreignKey:NutrientID" json:"nutrient"`
}

// Applies reports whether the recommendation targets a person of the given age and sex.
func (r IntakeRecommendation) Applies(age int, sex Sex) bool {
	if r.Sex != sex && r.Sex != SexBoth {
		return false
	}
	if r.AgeMin > age {
		return false
	}
	return r.AgeMax == nil || age <= *r.AgeMax
}

// ProfileAmount adjusts a stored amount to p according to the DRI type.
// ok is false when the AMDR transform is undefined because the nutrient
// carries no energy; the returned amount is then 0.
func (r IntakeRecommendation) ProfileAmount(amount *float64, p Profile) (adjusted *float64, ok bool) {
	if amount == nil {
		return nil, true
	}
	v := *amount
	switch r.DRIType {
	case DRIAIK:
		v = v * float64(p.EnergyRequirement) / 1000
	case DRIAIKG, DRIRDAKG:
		v = v * p.Weight
	case DRIAMDR:
		if r.Nutrient.Energy == 0 {
			zero := 0.0
			return &zero, false
		}
		v = v * float64(p.EnergyRequirement) / (r.Nutrient.Energy * 100)
	}
	return &v, true
}

// Evaluation is a recommendation evaluated against a profile and an observed intake.
type Evaluation struct {
	RecommendationID uint     `json:"recommendationId"`
	NutrientID       uint     `json:"nutrientId"`
	Nutrient         string   `json:"nutrient"`
	DRIType          DRIType  `json:"driType"`
	AmountMin        *float64 `json:"amountMin"`
	AmountMax        *float64 `json:"amountMax"`
	Intake           *float64 `json:"intake"`
	DisplayedAmount  *float64 `json:"displayedAmount"`
	Progress         *int     `json:"progress"`
	OverLimit        bool     `json:"overLimit"`
}
