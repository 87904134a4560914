package main

import (
	"context"
	"fmt"
	"strings"
)

// Product is one order line as read off a supplier's sheet, after normalisation.
type Product struct {
	Barcode         string
	Name            string
	Specification   string
	Unit            string
	Quantity        float64
	Price           float64
	Amount          float64
	PackageQuantity int
	IsGift          bool
}

// Extractor turns the rows of a recognised order sheet into products.
type Extractor struct {
	converter *UnitConverter
	catalog   ProductCatalog
}

func NewExtractor(converter *UnitConverter, catalog ProductCatalog) *Extractor {
	if converter == nil {
		converter = NewUnitConverter()
	}

	return &Extractor{
		converter: converter,
		catalog:   catalog,
	}
}

func isEmptyRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}

	return true
}

func isSubtotalRow(row []string) bool {
	for _, cell := range row {
		if strings.Contains(cell, "小计") || strings.Contains(cell, "合计") {
			return true
		}
	}

	return false
}

// ExtractProducts finds the header, maps the columns and reads every usable row.
func (e *Extractor) ExtractProducts(ctx context.Context, t *Table) ([]Product, error) {
	if len(t.Rows) == 0 {
		return nil, ErrNoProducts
	}

	headerRow := FindHeaderRow(t)
	cols := MapColumns(t.Rows[headerRow])

	if !cols.Has(fieldBarcode) {
		return nil, ErrNoBarcodeColumn
	}

	products := []Product{}

	for i, row := range t.Rows[headerRow+1:] {
		rowNum := headerRow + i + 2

		if isEmptyRow(row) {
			continue
		}

		if isSubtotalRow(row) {
			sugar.Debugf("Skip subtotal row %d", rowNum)
			continue
		}

		products = append(products, e.extractRow(ctx, cols, row, rowNum)...)
	}

	sugar.Infof("Extracted %d products", len(products))

	if len(products) == 0 {
		return nil, ErrNoProducts
	}

	return products, nil
}

// extractRow returns zero, one or two products: an explicit gift quantity column gives a second, free, line.
func (e *Extractor) extractRow(ctx context.Context, cols Columns, row []string, rowNum int) []Product {
	barcode, ok := ValidateBarcode(cols.Get(row, fieldBarcode))
	if !ok {
		sugar.Debugf("Skip row %d, invalid barcode %q", rowNum, cols.Get(row, fieldBarcode))
		return nil
	}

	p := Product{
		Barcode:       barcode,
		Name:          CleanString(cols.Get(row, fieldName)),
		Specification: CleanString(cols.Get(row, fieldSpec)),
		Unit:          CleanString(cols.Get(row, fieldUnit)),
	}

	if e.catalog != nil && (p.Name == "" || p.Specification == "") {
		e.fillFromCatalog(ctx, &p)
	}

	if p.Specification != "" {
		if pkg, ok := ParseSpecification(p.Specification); ok {
			p.PackageQuantity = pkg
		}
	} else if p.Name != "" {
		if spec, pkg, ok := InferSpecification(p.Name); ok {
			sugar.Infof("Inferred spec from name %s -> %s", p.Name, spec)
			p.Specification = spec
			p.PackageQuantity = pkg
		}
	}

	qty, unit, ok := ParseQuantity(cols.Get(row, fieldQuantity))
	if ok {
		p.Quantity = qty
	}

	if p.Unit == "" && unit != "" {
		sugar.Debugf("Unit %s taken from quantity %q", unit, cols.Get(row, fieldQuantity))
		p.Unit = unit
	}

	if p.Name == "" {
		p.Name = fmt.Sprintf("商品 (%s)", p.Barcode)
	}

	price, priceOK := ParseAmount(cols.Get(row, fieldPrice))
	if priceOK {
		p.Price = price
	}

	amountCell := cols.Get(row, fieldAmount)
	amount, amountOK := ParseAmount(amountCell)
	if amountOK {
		p.Amount = amount
	} else {
		p.Amount = p.Quantity * p.Price
	}

	// No price, or an amount column left empty or zero, means the line is free.  An amount we can't read is not
	// enough on its own.
	switch {
	case !priceOK || price == 0:
		sugar.Debugf("Row %d has no price, gift", rowNum)
		p.IsGift = true
	case cols.Has(fieldAmount) && CleanString(amountCell) == "":
		sugar.Debugf("Row %d has no amount, gift", rowNum)
		p.IsGift = true
	case amountOK && amount == 0:
		sugar.Debugf("Row %d has zero amount, gift", rowNum)
		p.IsGift = true
	}

	if p.IsGift {
		p.Price = 0
		p.Amount = 0
	}

	// The gift quantity column is in the same units as the quantity column.  Lines already free don't get a
	// second one.
	var extraGift *Product
	if g, ok := ExtractNumber(cols.Get(row, fieldGift)); ok && g > 0 && !p.IsGift {
		gp := p
		gp.Quantity = g
		gp.Price = 0
		gp.Amount = 0
		gp.IsGift = true
		gp = e.converter.Convert(gp)
		extraGift = &gp
	}

	p = e.converter.Convert(p)

	products := []Product{}

	if p.Quantity > 0 {
		products = append(products, p)
	}

	if extraGift != nil {
		products = append(products, *extraGift)
	}

	if e.catalog != nil {
		for _, product := range products {
			e.indexInCatalog(ctx, product)
		}
	}

	return products
}
