package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

const (
	orderPrefix  = "采购单_"
	mergedPrefix = "合并采购单_"
)

var workbookExtensions = []string{".xlsx"}

// GroupProducts folds products into one template line per barcode, in the order barcodes first appear.  Paid
// quantities add up and differing prices are averaged; free lines go into the gift column.
func GroupProducts(products []Product) []OrderLine {
	type group struct {
		line      OrderLine
		hasNormal bool
	}

	order := []string{}
	groups := map[string]*group{}

	for _, p := range products {
		if p.Barcode == "" {
			sugar.Warnf("Skip product without barcode: %s", p.Name)
			continue
		}

		g, ok := groups[p.Barcode]
		if !ok {
			g = &group{line: OrderLine{Barcode: p.Barcode, Name: p.Name}}
			groups[p.Barcode] = g
			order = append(order, p.Barcode)
		}

		if p.IsGift || p.Price == 0 {
			g.line.Gift += p.Quantity
			continue
		}

		if !g.hasNormal {
			g.hasNormal = true
			g.line.Name = p.Name
			g.line.Quantity = p.Quantity
			g.line.Price = p.Price
			continue
		}

		g.line.Quantity += p.Quantity

		if p.Price != g.line.Price {
			avg := (g.line.Price + p.Price) / 2
			sugar.Infof("Average price for %s: %v and %v -> %v", p.Barcode, g.line.Price, p.Price, avg)
			g.line.Price = avg
		}
	}

	lines := make([]OrderLine, 0, len(order))
	for _, barcode := range order {
		lines = append(lines, groups[barcode].line)
	}

	sugar.Infof("Grouped %d products into %d lines", len(products), len(lines))

	return lines
}

// OrderProcessor turns recognised workbooks into purchase orders on the template.
type OrderProcessor struct {
	cfg       *Config
	extractor *Extractor
	records   *Record
}

func NewOrderProcessor(cfg *Config, extractor *Extractor) (*OrderProcessor, error) {
	records, err := LoadRecord(filepath.Join(cfg.Paths.OutputFolder, "processed_files.json"))
	if err != nil {
		return nil, err
	}

	return &OrderProcessor{
		cfg:       cfg,
		extractor: extractor,
		records:   records,
	}, nil
}

func isGeneratedOrder(name string) bool {
	return strings.HasPrefix(name, orderPrefix) || strings.HasPrefix(name, mergedPrefix)
}

// LatestWorkbook is the newest recognised workbook in the output folder, ignoring our own orders.
func (o *OrderProcessor) LatestWorkbook() (string, error) {
	return LatestFile(o.cfg.Paths.OutputFolder, workbookExtensions, func(name string) bool {
		return !isGeneratedOrder(name)
	})
}

func (o *OrderProcessor) ProcessFile(ctx context.Context, path string) (string, error) {
	sugar.Infof("Process workbook %s", path)

	table, err := ReadWorkbook(path)
	if err != nil {
		return "", err
	}

	products, err := o.extractor.ExtractProducts(ctx, table)
	if err != nil {
		return "", fmt.Errorf("%s: %w", path, err)
	}

	lines := GroupProducts(products)
	output := filepath.Join(o.cfg.Paths.OutputFolder, orderPrefix+baseName(path)+".xlsx")

	if err := WriteOrder(o.cfg.TemplatePath(), output, lines); err != nil {
		return "", err
	}

	if err := o.records.Mark(path, output); err != nil {
		sugar.Warnf("Could not save record: %v", err)
	}

	sugar.Infof("Purchase order saved to %s, %d lines", output, len(lines))

	return output, nil
}

func (o *OrderProcessor) ProcessLatest(ctx context.Context) (string, error) {
	latest, err := o.LatestWorkbook()
	if err != nil {
		return "", fmt.Errorf("no workbook in %s: %w", o.cfg.Paths.OutputFolder, err)
	}

	return o.ProcessFile(ctx, latest)
}
