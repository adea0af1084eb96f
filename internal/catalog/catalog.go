// Package catalog holds the food reference data loaded once at startup: an
// ordered label table (row order = classifier class index) and the nutrition
// facts keyed by lower-cased food name. Immutable after Load.
package catalog

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// NutritionRecord is one row of the food catalog.
type NutritionRecord struct {
	FoodName string  `json:"food"`
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Carbs    float64 `json:"carbs"`
	Fats     float64 `json:"fats"`
}

type Catalog struct {
	records []NutritionRecord
	byName  map[string]int
}

// Load reads a CSV with header food_name,calories,protein,carbs,fats.
// Row order is significant: row i names class index i of the classifier.
func Load(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open food catalog: %w", err)
	}
	defer f.Close()

	c, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse food catalog %s: %w", path, err)
	}
	return c, nil
}

func Parse(r io.Reader) (*Catalog, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) < 5 || !strings.EqualFold(strings.TrimSpace(header[0]), "food_name") {
		return nil, fmt.Errorf("unexpected header %v, want food_name,calories,protein,carbs,fats", header)
	}

	c := &Catalog{byName: make(map[string]int)}
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}

		rec, err := parseRow(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", len(c.records)+2, err)
		}

		key := strings.ToLower(rec.FoodName)
		if _, dup := c.byName[key]; dup {
			return nil, fmt.Errorf("duplicate food %q", rec.FoodName)
		}
		c.byName[key] = len(c.records)
		c.records = append(c.records, rec)
	}

	if len(c.records) == 0 {
		return nil, fmt.Errorf("catalog has no entries")
	}
	return c, nil
}

func parseRow(row []string) (NutritionRecord, error) {
	var rec NutritionRecord
	if len(row) < 5 {
		return rec, fmt.Errorf("want 5 fields, got %d", len(row))
	}

	rec.FoodName = strings.TrimSpace(row[0])
	if rec.FoodName == "" {
		return rec, fmt.Errorf("empty food name")
	}

	vals := make([]float64, 4)
	for i, field := range row[1:5] {
		v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil {
			return rec, fmt.Errorf("food %q: bad numeric field %q", rec.FoodName, field)
		}
		if v < 0 {
			return rec, fmt.Errorf("food %q: negative nutrient value %v", rec.FoodName, v)
		}
		vals[i] = v
	}
	rec.Calories, rec.Protein, rec.Carbs, rec.Fats = vals[0], vals[1], vals[2], vals[3]
	return rec, nil
}

// NameAt resolves a classifier class index to a food name. The second return
// is false when the index is outside the table.
func (c *Catalog) NameAt(i int) (string, bool) {
	if i < 0 || i >= len(c.records) {
		return "", false
	}
	return c.records[i].FoodName, true
}

// Lookup is a case-insensitive exact-match lookup. Absence is a normal
// outcome, not an error.
func (c *Catalog) Lookup(name string) (NutritionRecord, bool) {
	i, ok := c.byName[strings.ToLower(name)]
	if !ok {
		return NutritionRecord{}, false
	}
	return c.records[i], true
}

// Names returns the food names in class-index order.
func (c *Catalog) Names() []string {
	names := make([]string, len(c.records))
	for i, rec := range c.records {
		names[i] = rec.FoodName
	}
	return names
}

func (c *Catalog) Len() int { return len(c.records) }
