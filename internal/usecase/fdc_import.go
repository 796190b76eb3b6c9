package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/nutritrack/backend/internal/domain"
	"github.com/nutritrack/backend/internal/pkg/logger"
)

// KnownDatasets are the FDC data_type tags an import may be restricted to.
var KnownDatasets = []string{
	"agricultural_acquisition",
	"branded_food",
	"experimental_food",
	"foundation_food",
	"market_acquistion", // sic, as spelled by FDC
	"sample_food",
	"sr_legacy_food",
	"sub_sample_food",
	"survey_fndds_food",
}

// ReconcileConfig configures how FDC records become canonical rows.
// Zero-valued fields take the values of DefaultReconcileConfig.
type ReconcileConfig struct {
	// NutrientMap maps FDC nutrient ids to canonical nutrient names.
	NutrientMap map[int]string
	// ExceptionIDs are FDC ids describing a nutrient with several records.
	ExceptionIDs []int
	// PreferredIDs override previously seen values of the same nutrient.
	PreferredIDs []int
	// AdditiveIDs are summed with previously seen values of the same nutrient.
	AdditiveIDs []int
	// Datasets is the allow-list of FDC data_type tags.
	Datasets []string
	// BatchSize limits buffered rows between writes. 0 writes once at the end.
	BatchSize int
	// DataSourceName names the FoodDataSource of imported ingredients.
	DataSourceName string
}

// DefaultReconcileConfig returns the FDC tables the application depends on.
func DefaultReconcileConfig() ReconcileConfig {
	return ReconcileConfig{
		NutrientMap: map[int]string{
			1003: "Protein",
			1004: "Lipid",
			1005: "Carbohydrate",
			1007: "Ash",
			1008: "Energy",
			1051: "Water",
			1079: "Fiber",
			1087: "Calcium",
			1088: "Chlorine",
			1089: "Iron",
			1090: "Magnesium",
			1091: "Phosphorus",
			1092: "Potassium",
			1093: "Sodium",
			1095: "Zinc",
			1096: "Chromium",
			1098: "Copper",
			1099: "Fluoride",
			1100: "Iodine",
			1101: "Manganese",
			1102: "Molybdenum",
			1103: "Selenium",
			1104: "Vitamin A",
			1106: "Vitamin A",
			1109: "Vitamin E",
			1110: "Vitamin D",
			1111: "Vitamin D2",
			1112: "Vitamin D3",
			1114: "Vitamin D",
			1134: "Arsenic",
			1137: "Boron",
			1146: "Nickel",
			1150: "Silicon",
			1155: "Vanadium",
			1162: "Vitamin C",
			1165: "Vitamin B1",
			1166: "Vitamin B2",
			1167: "Vitamin B3",
			1170: "Vitamin B5",
			1175: "Vitamin B6",
			1176: "Vitamin B7",
			1177: "Vitamin B9",
			1178: "Vitamin B12",
			1183: "Vitamin K",
			1184: "Vitamin K",
			1185: "Vitamin K",
			1190: "Vitamin B9",
			1210: "Tryptophan",
			1211: "Threonine",
			1212: "Isoleucine",
			1213: "Leucine",
			1214: "Lysine",
			1215: "Methionine",
			1216: "Cysteine",
			1217: "Phenylalanine",
			1218: "Tyrosine",
			1219: "Valine",
			1220: "Arginine",
			1221: "Histidine",
			1222: "Alanine",
			1223: "Aspartic acid",
			1224: "Glutamic acid",
			1225: "Glycine",
			1226: "Proline",
			1227: "Serine",
			1231: "Asparagine",
			1232: "Cysteine",
			1233: "Glutamine",
			1253: "Cholesterol",
			1257: "Trans fatty acid",
			1258: "Saturated fatty acids",
			1292: "Monounsaturated fatty acids",
			1293: "Polyunsaturated fatty acids",
			2000: "Sugars",
		},
		// Vitamin A (IU, RAE), Vitamin D (IU, D2+D3), Folate (total, DFE),
		// Vitamin K (phylloquinone, dihydrophylloquinone, menaquinone-4),
		// Cystine and Cysteine
		ExceptionIDs:   []int{1104, 1106, 1110, 1114, 1177, 1190, 1183, 1184, 1185, 1216, 1232},
		PreferredIDs:   []int{1106, 1114, 1177, 1232},
		AdditiveIDs:    []int{1183, 1184, 1185},
		Datasets:       []string{"sr_legacy_food", "survey_fndds_food"},
		DataSourceName: "FDC",
	}
}

// ImportResult summarizes one food_nutrient import run.
type ImportResult struct {
	RunID       uuid.UUID `json:"runId"`
	Written     int       `json:"written"`
	Skipped     int       `json:"skipped"`
	Nonstandard int       `json:"nonstandard"`
	Compounds   int       `json:"compounds"`
}

// ImportService reconciles FDC records into ingredients and ingredient nutrients.
type ImportService struct {
	db          *gorm.DB
	compounds   *CompoundService
	logger      *logger.Logger
	nutrientMap map[int]string
	exception   map[int]bool
	preferred   map[int]bool
	additive    map[int]bool
	datasets    map[string]bool
	batchSize   int
	sourceName  string
}

// NewImportService creates an import service. Unknown dataset tags fail with ErrInvalidDataset.
func NewImportService(db *gorm.DB, compounds *CompoundService, log *logger.Logger, cfg ReconcileConfig) (*ImportService, error) {
	def := DefaultReconcileConfig()
	if cfg.NutrientMap == nil {
		cfg.NutrientMap = def.NutrientMap
	}
	if cfg.ExceptionIDs == nil {
		cfg.ExceptionIDs = def.ExceptionIDs
	}
	if cfg.PreferredIDs == nil {
		cfg.PreferredIDs = def.PreferredIDs
	}
	if cfg.AdditiveIDs == nil {
		cfg.AdditiveIDs = def.AdditiveIDs
	}
	if len(cfg.Datasets) == 0 {
		cfg.Datasets = def.Datasets
	}
	if cfg.DataSourceName == "" {
		cfg.DataSourceName = def.DataSourceName
	}
	if cfg.BatchSize < 0 {
		return nil, fmt.Errorf("%w: negative batch size", domain.ErrInvalidRequest)
	}

	datasets := make(map[string]bool, len(cfg.Datasets))
	for _, d := range cfg.Datasets {
		if !isKnownDataset(d) {
			return nil, fmt.Errorf("%w: %q", domain.ErrInvalidDataset, d)
		}
		datasets[d] = true
	}

	return &ImportService{
		db:          db,
		compounds:   compounds,
		logger:      log.With("component", "fdc_import"),
		nutrientMap: cfg.NutrientMap,
		exception:   intSet(cfg.ExceptionIDs),
		preferred:   intSet(cfg.PreferredIDs),
		additive:    intSet(cfg.AdditiveIDs),
		datasets:    datasets,
		batchSize:   cfg.BatchSize,
		sourceName:  cfg.DataSourceName,
	}, nil
}

func isKnownDataset(d string) bool {
	for _, k := range KnownDatasets {
		if k == d {
			return true
		}
	}
	return false
}

func intSet(ids []int) map[int]bool {
	out := make(map[int]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out
}

func (s *ImportService) writeBatch() int {
	if s.batchSize > 0 && s.batchSize < maxInsertRows {
		return s.batchSize
	}
	return maxInsertRows
}

// ImportFoods creates ingredients for foods in the allowed datasets. Foods
// already imported are left untouched. It returns the number of new ingredients.
func (s *ImportService) ImportFoods(ctx context.Context, foods []domain.FDCFood) (int, error) {
	var src domain.FoodDataSource
	err := s.db.WithContext(ctx).
		Where(domain.FoodDataSource{Name: s.sourceName}).
		FirstOrCreate(&src).Error
	if err != nil {
		return 0, fmt.Errorf("get data source %q: %w", s.sourceName, err)
	}

	rows := make([]domain.Ingredient, 0, len(foods))
	for _, f := range foods {
		if !s.datasets[f.DataType] {
			continue
		}
		rows = append(rows, domain.Ingredient{
			DataSourceID: src.ID,
			ExternalID:   f.FdcID,
			Name:         f.Description,
			Dataset:      f.DataType,
		})
	}
	if len(rows) == 0 {
		return 0, nil
	}

	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(&rows, s.writeBatch())
	if res.Error != nil {
		return 0, fmt.Errorf("create ingredients: %w", res.Error)
	}
	s.logger.Info("imported foods", "candidates", len(rows), "created", res.RowsAffected)
	return int(res.RowsAffected), nil
}

// ImportFoodNutrients converts food_nutrient rows to ingredient nutrient
// amounts per 100 g in canonical units, then recomputes compound nutrients.
// The run is one transaction. It fails with a *domain.MissingNutrientsError
// when none of the mapped nutrients exist.
func (s *ImportService) ImportFoodNutrients(ctx context.Context, nutrients []domain.FDCNutrient, src domain.FoodNutrientSource) (*ImportResult, error) {
	result := &ImportResult{RunID: uuid.New()}
	log := s.logger.With("run_id", result.RunID.String())

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		canonical, err := s.canonicalNutrients(ctx, tx)
		if err != nil {
			return err
		}
		if len(canonical) == 0 {
			return &domain.MissingNutrientsError{Required: s.requiredNames()}
		}

		factors, nbrToID := s.conversionFactors(log, nutrients, canonical)
		ingredients, err := s.ingredientIDs(ctx, tx)
		if err != nil {
			return err
		}

		resolver := newNonstandardResolver(s.preferred, s.additive)
		buf := newAmountBuffer()
		flush := func() error {
			rows := buf.drain()
			if err := upsertAmounts(tx, rows); err != nil {
				return err
			}
			result.Written += len(rows)
			return nil
		}

		for {
			row, err := src.Next()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return fmt.Errorf("read food nutrients: %w", err)
			}

			ingredientID, fdcNutrientID, amount, ok := resolveRow(row, ingredients, nbrToID, factors)
			if !ok {
				result.Skipped++
				continue
			}
			key := pairKey{ingredient: ingredientID, nutrient: canonical[fdcNutrientID].ID}
			amount *= factors[fdcNutrientID]

			if s.exception[fdcNutrientID] {
				resolver.resolve(key, fdcNutrientID, amount)
				continue
			}
			buf.put(key, amount)
			if s.batchSize > 0 && buf.len() >= s.batchSize {
				if err := flush(); err != nil {
					return err
				}
			}
		}
		if err := flush(); err != nil {
			return err
		}

		resolved := resolver.rows()
		result.Nonstandard = len(resolved)
		for start := 0; start < len(resolved); start += s.writeBatch() {
			end := start + s.writeBatch()
			if end > len(resolved) {
				end = len(resolved)
			}
			if err := upsertAmounts(tx, resolved[start:end]); err != nil {
				return err
			}
		}
		result.Written += len(resolved)

		result.Compounds, err = s.compounds.WithTx(tx).RecomputeAll(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Info("imported food nutrients",
		"written", result.Written, "skipped", result.Skipped,
		"nonstandard", result.Nonstandard, "compounds", result.Compounds)
	return result, nil
}

// ImportByID fetches one food from the FDC API and imports it.
func (s *ImportService) ImportByID(ctx context.Context, client domain.FDCClient, fdcID int) (*ImportResult, error) {
	records, err := client.GetFood(ctx, fdcID)
	if err != nil {
		return nil, fmt.Errorf("fetch food %d: %w", fdcID, err)
	}
	if _, err := s.ImportFoods(ctx, []domain.FDCFood{records.Food}); err != nil {
		return nil, err
	}
	return s.ImportFoodNutrients(ctx, records.Nutrients, domain.NewSliceSource(records.Amounts))
}

func (s *ImportService) requiredNames() []string {
	seen := make(map[string]bool)
	var names []string
	for _, name := range s.nutrientMap {
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// canonicalNutrients maps FDC nutrient ids to existing canonical nutrients.
func (s *ImportService) canonicalNutrients(ctx context.Context, tx *gorm.DB) (map[int]domain.Nutrient, error) {
	var found []domain.Nutrient
	if err := tx.WithContext(ctx).Where("name IN ?", s.requiredNames()).Find(&found).Error; err != nil {
		return nil, fmt.Errorf("load canonical nutrients: %w", err)
	}
	byName := make(map[string]domain.Nutrient, len(found))
	for _, n := range found {
		byName[n.Name] = n
	}

	out := make(map[int]domain.Nutrient)
	for fdcID, name := range s.nutrientMap {
		if n, ok := byName[name]; ok {
			out[fdcID] = n
		}
	}
	return out, nil
}

// conversionFactors returns per FDC nutrient id the factor from the FDC unit
// to the canonical unit, and the nutrient_nbr to id lookup.
func (s *ImportService) conversionFactors(log *logger.Logger, nutrients []domain.FDCNutrient, canonical map[int]domain.Nutrient) (map[int]float64, map[string]int) {
	factors := make(map[int]float64)
	nbrToID := make(map[string]int)
	for _, n := range nutrients {
		if nbr := strings.TrimSpace(n.Number); nbr != "" {
			nbrToID[nbr] = n.ID
		}
		target, ok := canonical[n.ID]
		if !ok {
			continue
		}
		unit := domain.NormalizeFDCUnit(n.Unit)
		f, err := domain.ConversionFactor(unit, target.Unit, target.Name)
		if err != nil {
			log.Warn("skipping nutrient with unconvertible unit",
				"fdc_nutrient_id", n.ID, "nutrient", target.Name, "unit", n.Unit, "error", err)
			continue
		}
		factors[n.ID] = f
	}
	return factors, nbrToID
}

// ingredientIDs maps FDC ids to ingredient ids of this import's data source.
func (s *ImportService) ingredientIDs(ctx context.Context, tx *gorm.DB) (map[int]uint, error) {
	var src domain.FoodDataSource
	err := tx.WithContext(ctx).Where("name = ?", s.sourceName).Take(&src).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return map[int]uint{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load data source: %w", err)
	}

	var rows []domain.Ingredient
	err = tx.WithContext(ctx).
		Select("id", "external_id").
		Where("data_source_id = ?", src.ID).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load ingredients: %w", err)
	}
	out := make(map[int]uint, len(rows))
	for _, r := range rows {
		out[r.ExternalID] = r.ID
	}
	return out, nil
}

// resolveRow parses a food_nutrient row. ok is false for rows that reference
// unknown ingredients or nutrients, or carry a malformed amount.
func resolveRow(row domain.FDCFoodNutrient, ingredients map[int]uint, nbrToID map[string]int, factors map[int]float64) (ingredientID uint, fdcNutrientID int, amount float64, ok bool) {
	fdcID, err := strconv.Atoi(strings.TrimSpace(row.FdcID))
	if err != nil {
		return 0, 0, 0, false
	}
	if ingredientID, ok = ingredients[fdcID]; !ok {
		return 0, 0, 0, false
	}

	ref := strings.TrimSpace(row.Nutrient)
	fdcNutrientID, ok = nbrToID[ref]
	if !ok {
		if fdcNutrientID, err = strconv.Atoi(ref); err != nil {
			return 0, 0, 0, false
		}
	}
	if _, ok = factors[fdcNutrientID]; !ok {
		return 0, 0, 0, false
	}

	amount, err = strconv.ParseFloat(strings.TrimSpace(row.Amount), 64)
	if err != nil {
		return 0, 0, 0, false
	}
	return ingredientID, fdcNutrientID, amount, true
}

type pairKey struct {
	ingredient uint
	nutrient   uint
}

// amountBuffer holds pending rows, keeping the last amount per pair.
type amountBuffer struct {
	amounts map[pairKey]float64
	order   []pairKey
}

func newAmountBuffer() *amountBuffer {
	return &amountBuffer{amounts: make(map[pairKey]float64)}
}

func (b *amountBuffer) put(key pairKey, amount float64) {
	if _, ok := b.amounts[key]; !ok {
		b.order = append(b.order, key)
	}
	b.amounts[key] = amount
}

func (b *amountBuffer) len() int { return len(b.order) }

func (b *amountBuffer) drain() []domain.IngredientNutrient {
	rows := make([]domain.IngredientNutrient, 0, len(b.order))
	for _, k := range b.order {
		rows = append(rows, domain.IngredientNutrient{IngredientID: k.ingredient, NutrientID: k.nutrient, Amount: b.amounts[k]})
	}
	b.amounts = make(map[pairKey]float64)
	b.order = nil
	return rows
}

// nonstandardResolver settles nutrients FDC reports through several records.
// The first record sets the value, a preferred record overwrites it, an
// additive record adds to it and any other record is discarded.
type nonstandardResolver struct {
	preferred map[int]bool
	additive  map[int]bool
	buf       *amountBuffer
}

func newNonstandardResolver(preferred, additive map[int]bool) *nonstandardResolver {
	return &nonstandardResolver{preferred: preferred, additive: additive, buf: newAmountBuffer()}
}

func (r *nonstandardResolver) resolve(key pairKey, fdcNutrientID int, amount float64) {
	current, seen := r.buf.amounts[key]
	switch {
	case !seen, r.preferred[fdcNutrientID]:
		r.buf.put(key, amount)
	case r.additive[fdcNutrientID]:
		r.buf.put(key, current+amount)
	}
}

func (r *nonstandardResolver) rows() []domain.IngredientNutrient {
	return r.buf.drain()
}
