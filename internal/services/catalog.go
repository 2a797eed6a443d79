package services

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"ingrevia/internal/core"
	"ingrevia/internal/logger"
	"ingrevia/internal/normalize"
)

// Catalog columns
const (
	ColBrand       = "브랜드명"
	ColName        = "제품명"
	ColCategory    = "카테고리"
	ColEfficacy    = "효능"
	ColIngredients = "전성분"
	ColPrice       = "가격"
	ColVolume      = "용량"
	ColLink        = "링크"
	ColHarmScore   = "유해성_점수"
)

var requiredColumns = []string{ColBrand, ColName, ColCategory, ColIngredients}

// Catalog is the read-only product table loaded once at startup
type Catalog struct {
	records    []core.CatalogRecord
	byCategory map[core.Category][]int
}

// NewCatalog indexes records by canonical category, keeping file order
func NewCatalog(records []core.CatalogRecord) *Catalog {
	c := &Catalog{
		records:    make([]core.CatalogRecord, len(records)),
		byCategory: make(map[core.Category][]int),
	}
	for i, rec := range records {
		if !rec.CanonicalCategory.Known() {
			rec.CanonicalCategory = normalize.CanonicalCategory(rec.Category)
		}
		c.records[i] = rec
		c.byCategory[rec.CanonicalCategory] = append(c.byCategory[rec.CanonicalCategory], i)
	}
	return c
}

// LoadCatalog reads the catalog CSV. Any failure wraps core.ErrDataLoad.
func LoadCatalog(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open catalog: %v", core.ErrDataLoad, err)
	}
	defer f.Close()

	catalog, err := ReadCatalog(f)
	if err != nil {
		return nil, err
	}
	logger.Info().Str("path", path).Int("products", catalog.Len()).Msg("Catalog loaded")
	return catalog, nil
}

// ReadCatalog parses catalog CSV from r. The header row is required; column
// order is free and extra columns are ignored.
func ReadCatalog(r io.Reader) (*Catalog, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: read header: %v", core.ErrDataLoad, err)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		index[name] = i
	}
	var missing []string
	for _, col := range requiredColumns {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing columns %s", core.ErrDataLoad, strings.Join(missing, ", "))
	}

	var records []core.CatalogRecord
	line := 1
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", core.ErrDataLoad, line, err)
		}
		get := func(col string) string {
			i, ok := index[col]
			if !ok || i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}
		if get(ColName) == "" {
			continue
		}

		ingredientText := get(ColIngredients)
		efficacyText := get(ColEfficacy)
		harm := parseNumber(get(ColHarmScore))
		if harm < 0 {
			harm = 0
		}
		records = append(records, core.CatalogRecord{
			Brand:             get(ColBrand),
			Name:              get(ColName),
			Category:          get(ColCategory),
			CanonicalCategory: normalize.CanonicalCategory(get(ColCategory)),
			Ingredients:       splitList(ingredientText),
			IngredientText:    ingredientText,
			Efficacy:          splitList(efficacyText),
			EfficacyText:      efficacyText,
			Price:             parseNumber(get(ColPrice)),
			Volume:            get(ColVolume),
			Link:              get(ColLink),
			HarmScore:         harm,
		})
	}
	return NewCatalog(records), nil
}

// Len returns the number of products
func (c *Catalog) Len() int {
	return len(c.records)
}

// Records returns all products in file order
func (c *Catalog) Records() []core.CatalogRecord {
	return append([]core.CatalogRecord(nil), c.records...)
}

// ByCategory returns the products of one canonical category in file order
func (c *Catalog) ByCategory(category core.Category) []core.CatalogRecord {
	idx := c.byCategory[category]
	out := make([]core.CatalogRecord, 0, len(idx))
	for _, i := range idx {
		out = append(out, c.records[i])
	}
	return out
}

// SearchProducts finds products by brand or name substring
func (c *Catalog) SearchProducts(query string) []core.CatalogRecord {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return c.Records()
	}
	var results []core.CatalogRecord
	for _, rec := range c.records {
		if strings.Contains(strings.ToLower(rec.Name), q) ||
			strings.Contains(strings.ToLower(rec.Brand), q) {
			results = append(results, rec)
		}
	}
	return results
}

// parseNumber accepts "12,000원" style values; anything unparsable is 0
func parseNumber(s string) float64 {
	s = strings.NewReplacer(",", "", "원", "", " ", "").Replace(s)
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
