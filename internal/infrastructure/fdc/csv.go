package fdc

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/nutritrack/backend/internal/domain"
)

// File names inside an FDC full download.
const (
	NutrientFile     = "nutrient.csv"
	FoodFile         = "food.csv"
	FoodNutrientFile = "food_nutrient.csv"
)

// header maps column names to their index in a CSV record.
type header map[string]int

func readHeader(r *csv.Reader, required ...string) (header, error) {
	names, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	h := make(header, len(names))
	for i, name := range names {
		h[strings.TrimPrefix(strings.TrimSpace(name), "\ufeff")] = i
	}
	for _, col := range required {
		if _, ok := h[col]; !ok {
			return nil, fmt.Errorf("%w: missing column %q", domain.ErrInvalidRequest, col)
		}
	}
	return h, nil
}

func (h header) get(record []string, col string) string {
	i, ok := h[col]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

func newReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true
	return cr
}

// ReadNutrients reads nutrient.csv. Rows with a non-numeric id are skipped.
func ReadNutrients(r io.Reader) ([]domain.FDCNutrient, error) {
	cr := newReader(r)
	h, err := readHeader(cr, "id", "name", "unit_name")
	if err != nil {
		return nil, err
	}

	var nutrients []domain.FDCNutrient
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nutrients, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read nutrient row: %w", err)
		}
		id, err := strconv.Atoi(h.get(record, "id"))
		if err != nil {
			continue
		}
		nutrients = append(nutrients, domain.FDCNutrient{
			ID:     id,
			Name:   h.get(record, "name"),
			Unit:   h.get(record, "unit_name"),
			Number: h.get(record, "nutrient_nbr"),
		})
	}
}

// ReadFoods reads food.csv. Rows with a non-numeric fdc_id are skipped.
func ReadFoods(r io.Reader) ([]domain.FDCFood, error) {
	cr := newReader(r)
	h, err := readHeader(cr, "fdc_id", "data_type", "description")
	if err != nil {
		return nil, err
	}

	var foods []domain.FDCFood
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return foods, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read food row: %w", err)
		}
		id, err := strconv.Atoi(h.get(record, "fdc_id"))
		if err != nil {
			continue
		}
		foods = append(foods, domain.FDCFood{
			FdcID:       id,
			DataType:    h.get(record, "data_type"),
			Description: h.get(record, "description"),
		})
	}
}

// FoodNutrientReader streams food_nutrient.csv rows. Values are returned
// unparsed; the importer decides which rows are usable.
type FoodNutrientReader struct {
	r *csv.Reader
	h header
}

// NewFoodNutrientReader reads the header of food_nutrient.csv from r.
func NewFoodNutrientReader(r io.Reader) (*FoodNutrientReader, error) {
	cr := newReader(r)
	h, err := readHeader(cr, "fdc_id", "nutrient_id", "amount")
	if err != nil {
		return nil, err
	}
	return &FoodNutrientReader{r: cr, h: h}, nil
}

// Next returns the next row or io.EOF.
func (f *FoodNutrientReader) Next() (domain.FDCFoodNutrient, error) {
	record, err := f.r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return domain.FDCFoodNutrient{}, io.EOF
		}
		return domain.FDCFoodNutrient{}, fmt.Errorf("read food_nutrient row: %w", err)
	}
	return domain.FDCFoodNutrient{
		FdcID:    f.h.get(record, "fdc_id"),
		Nutrient: f.h.get(record, "nutrient_id"),
		Amount:   f.h.get(record, "amount"),
	}, nil
}

// Dataset is an opened FDC download directory.
type Dataset struct {
	Nutrients     []domain.FDCNutrient
	Foods         []domain.FDCFood
	FoodNutrients *FoodNutrientReader

	closer io.Closer
}

// Close releases the food_nutrient.csv handle.
func (d *Dataset) Close() error {
	if d.closer == nil {
		return nil
	}
	return d.closer.Close()
}

// OpenDataset reads nutrient.csv and food.csv from dir and opens
// food_nutrient.csv for streaming.
func OpenDataset(dir string) (*Dataset, error) {
	nutrients, err := readFile(filepath.Join(dir, NutrientFile), ReadNutrients)
	if err != nil {
		return nil, err
	}
	foods, err := readFile(filepath.Join(dir, FoodFile), ReadFoods)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(filepath.Join(dir, FoodNutrientFile))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", FoodNutrientFile, err)
	}
	rows, err := NewFoodNutrientReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", FoodNutrientFile, err)
	}
	return &Dataset{Nutrients: nutrients, Foods: foods, FoodNutrients: rows, closer: f}, nil
}

func readFile[T any](path string, read func(io.Reader) ([]T, error)) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	rows, err := read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return rows, nil
}
