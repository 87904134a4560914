package main

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Prices are compared at 4 decimal places, otherwise float noise splits identical lines.
func roundPrice(price float64) float64 {
	return math.Round(price*10000) / 10000
}

// Merger consolidates several purchase orders into one.
type Merger struct {
	cfg     *Config
	records *Record
	catalog ProductCatalog
}

func NewMerger(cfg *Config, catalog ProductCatalog) (*Merger, error) {
	records, err := LoadRecord(filepath.Join(cfg.Paths.OutputFolder, "merged_files.json"))
	if err != nil {
		return nil, err
	}

	return &Merger{
		cfg:     cfg,
		records: records,
		catalog: catalog,
	}, nil
}

// PurchaseOrders lists the purchase orders in the output folder, newest first.
func (m *Merger) PurchaseOrders() ([]string, error) {
	return ListFiles(m.cfg.Paths.OutputFolder, workbookExtensions, func(name string) bool {
		return strings.HasPrefix(name, orderPrefix)
	})
}

// ReadOrder reads the lines of a purchase order.  Orders edited by hand may have extra rows above the header.
func ReadOrder(path string) ([]OrderLine, error) {
	table, err := ReadWorkbook(path)
	if err != nil {
		return nil, err
	}

	if len(table.Rows) == 0 {
		return nil, nil
	}

	headerRow := FindHeaderRow(table)
	cols := MapColumns(table.Rows[headerRow])

	missing := []string{}
	for _, f := range []field{fieldBarcode, fieldQuantity, fieldPrice} {
		if !cols.Has(f) {
			missing = append(missing, string(f))
		}
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("%s: missing columns %s", path, strings.Join(missing, ", "))
	}

	lines := []OrderLine{}

	for _, row := range table.Rows[headerRow+1:] {
		if isEmptyRow(row) {
			continue
		}

		lines = append(lines, OrderLine{
			Barcode:  FormatBarcode(cols.Get(row, fieldBarcode)),
			Name:     CleanString(cols.Get(row, fieldName)),
			Quantity: ParseNumeric(cols.Get(row, fieldQuantity)),
			Gift:     ParseNumeric(cols.Get(row, fieldGift)),
			Price:    roundPrice(ParseNumeric(cols.Get(row, fieldPrice))),
		})
	}

	sugar.Infof("Read %d lines from %s", len(lines), path)

	return lines, nil
}

// key is what makes two lines the same product.  Without a barcode we fall back to the name.
func (m *Merger) key(ctx context.Context, line *OrderLine) string {
	if line.Barcode != "" {
		return line.Barcode
	}

	if line.Name == "" {
		return ""
	}

	if m.catalog != nil {
		entry, err := m.catalog.SearchName(ctx, line.Name)
		if err != nil {
			sugar.Warnf("Catalog search failed: %v", err)
		} else if entry != nil {
			sugar.Infof("Barcode for %s from catalog: %s", line.Name, entry.Barcode)
			line.Barcode = entry.Barcode
			return entry.Barcode
		}
	}

	return "name:" + NormalizeName(line.Name)
}

// MergeLines sums quantities and gifts of lines with the same product and price.  Lines with the same product at
// different prices stay separate.
func (m *Merger) MergeLines(ctx context.Context, orders [][]OrderLine) []OrderLine {
	type mergeKey struct {
		key   string
		price float64
	}

	merged := map[mergeKey]*OrderLine{}
	keys := []mergeKey{}

	for _, lines := range orders {
		for _, line := range lines {
			line := line

			if line.Quantity <= 0 && line.Gift <= 0 {
				continue
			}

			key := m.key(ctx, &line)
			if key == "" {
				continue
			}

			k := mergeKey{key: key, price: roundPrice(line.Price)}

			if existing, ok := merged[k]; ok {
				existing.Quantity += line.Quantity
				existing.Gift += line.Gift

				if existing.Name == "" {
					existing.Name = line.Name
				}

				continue
			}

			line.Price = k.price
			merged[k] = &line
			keys = append(keys, k)
		}
	}

	sort.SliceStable(keys, func(i, j int) bool {
		if keys[i].key != keys[j].key {
			return keys[i].key < keys[j].key
		}

		return keys[i].price < keys[j].price
	})

	result := make([]OrderLine, len(keys))
	for i, k := range keys {
		result[i] = *merged[k]
	}

	return result
}

// Merge reads and merges the given orders, or every purchase order in the output folder if none are given, and
// writes the consolidated order.
func (m *Merger) Merge(ctx context.Context, paths []string) (string, error) {
	if len(paths) == 0 {
		var err error

		paths, err = m.PurchaseOrders()
		if err != nil {
			return "", err
		}
	}

	if len(paths) == 0 {
		return "", ErrNoOrders
	}

	orders := [][]OrderLine{}

	for _, path := range paths {
		lines, err := ReadOrder(path)
		if err != nil {
			sugar.Warnf("Skip order %s: %v", path, err)
			continue
		}

		orders = append(orders, lines)
	}

	merged := m.MergeLines(ctx, orders)
	if len(merged) == 0 {
		return "", ErrNoOrders
	}

	output := filepath.Join(m.cfg.Paths.OutputFolder, mergedPrefix+time.Now().Format("20060102150405")+".xlsx")

	if err := WriteOrder(m.cfg.TemplatePath(), output, merged); err != nil {
		return "", err
	}

	for _, path := range paths {
		if err := m.records.Mark(path, output); err != nil {
			sugar.Warnf("Could not save record: %v", err)
			break
		}
	}

	sugar.Infof("Merged %d orders into %s, %d lines", len(orders), output, len(merged))

	return output, nil
}
