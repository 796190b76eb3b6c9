package domain

import "io"

// FDCNutrient is a row of FDC nutrient.csv.
type FDCNutrient struct {
	ID     int
	Name   string
	Unit   string
	Number string // nutrient_nbr, sometimes used in place of ID
}

// FDCFood is a row of FDC food.csv.
type FDCFood struct {
	FdcID       int
	DataType    string
	Description string
}

// FDCFoodNutrient is a raw row of FDC food_nutrient.csv. Fields are kept as
// read so malformed rows can be skipped individually.
type FDCFoodNutrient struct {
	FdcID    string
	Nutrient string // nutrient id or nutrient_nbr
	Amount   string
}

// FDCFoodDetails is a food returned by the FDC REST API.
type FDCFoodDetails struct {
	FdcID         int                 `json:"fdcId"`
	Description   string              `json:"description"`
	DataType      string              `json:"dataType"`
	FoodNutrients []FDCNutrientAmount `json:"foodNutrients"`
}

// FDCNutrientAmount is one nutrient amount per 100 g of an API food.
type FDCNutrientAmount struct {
	Nutrient struct {
		ID       int    `json:"id"`
		Number   string `json:"number"`
		Name     string `json:"name"`
		UnitName string `json:"unitName"`
	} `json:"nutrient"`
	Amount float64 `json:"amount"`
}

// FDCFoodRecords is one API food expressed as import rows.
type FDCFoodRecords struct {
	Food      FDCFood
	Nutrients []FDCNutrient
	Amounts   []FDCFoodNutrient
}

// SliceSource is a FoodNutrientSource over an in-memory slice.
type SliceSource struct {
	rows []FDCFoodNutrient
	pos  int
}

// NewSliceSource returns a source yielding rows in order.
func NewSliceSource(rows []FDCFoodNutrient) *SliceSource {
	return &SliceSource{rows: rows}
}

func (s *SliceSource) Next() (FDCFoodNutrient, error) {
	if s.pos >= len(s.rows) {
		return FDCFoodNutrient{}, io.EOF
	}
	row := s.rows[s.pos]
	s.pos++
	return row, nil
}
