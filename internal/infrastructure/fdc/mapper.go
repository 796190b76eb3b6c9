package fdc

import (
	"strconv"

	"github.com/nutritrack/backend/internal/domain"
)

// API data type names and their data_type tags in the FDC CSV exports.
var datasetTags = map[string]string{
	"Branded":        "branded_food",
	"Experimental":   "experimental_food",
	"Foundation":     "foundation_food",
	"SR Legacy":      "sr_legacy_food",
	"Survey (FNDDS)": "survey_fndds_food",
}

// DatasetTag converts an API data type to its CSV data_type tag. Unknown
// names are returned unchanged.
func DatasetTag(dataType string) string {
	if tag, ok := datasetTags[dataType]; ok {
		return tag
	}
	return dataType
}

// MapFoodDetails converts an API food to the rows of the FDC CSV exports.
func MapFoodDetails(d *domain.FDCFoodDetails) *domain.FDCFoodRecords {
	records := &domain.FDCFoodRecords{
		Food: domain.FDCFood{
			FdcID:       d.FdcID,
			DataType:    DatasetTag(d.DataType),
			Description: d.Description,
		},
	}

	fdcID := strconv.Itoa(d.FdcID)
	seen := make(map[int]bool, len(d.FoodNutrients))
	for _, fn := range d.FoodNutrients {
		n := fn.Nutrient
		if n.ID == 0 {
			continue
		}
		if !seen[n.ID] {
			seen[n.ID] = true
			records.Nutrients = append(records.Nutrients, domain.FDCNutrient{
				ID:     n.ID,
				Name:   n.Name,
				Unit:   n.UnitName,
				Number: n.Number,
			})
		}
		records.Amounts = append(records.Amounts, domain.FDCFoodNutrient{
			FdcID:    fdcID,
			Nutrient: strconv.Itoa(n.ID),
			Amount:   strconv.FormatFloat(fn.Amount, 'f', -1, 64),
		})
	}
	return records
}
