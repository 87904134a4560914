package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
)

// Service holds the stages of the pipeline, built from one config.
type Service struct {
	cfg    *Config
	ocr    *OCRProcessor
	orders *OrderProcessor
	merger *Merger
}

// NewService wires the stages up.  A nil recognizer means the Baidu API.
func NewService(cfg *Config, recognizer TableRecognizer) (*Service, error) {
	if recognizer == nil {
		recognizer = NewBaiduClient(cfg.API)
	}

	converter := NewUnitConverter()

	special, err := cfg.SpecialBarcodes()
	if err != nil {
		return nil, err
	}

	for barcode, s := range special {
		converter.AddSpecialBarcode(barcode, s.Multiplier, s.TargetUnit)
	}

	catalog, err := newCatalog(cfg)
	if err != nil {
		return nil, err
	}

	ocr, err := NewOCRProcessor(cfg, recognizer)
	if err != nil {
		return nil, err
	}

	orders, err := NewOrderProcessor(cfg, NewExtractor(converter, catalog))
	if err != nil {
		return nil, err
	}

	merger, err := NewMerger(cfg, catalog)
	if err != nil {
		return nil, err
	}

	return &Service{
		cfg:    cfg,
		ocr:    ocr,
		orders: orders,
		merger: merger,
	}, nil
}

// newCatalog returns a nil interface, not a typed nil, when the catalog is off.
func newCatalog(cfg *Config) (ProductCatalog, error) {
	if !cfg.Catalog.Enabled {
		return nil, nil
	}

	catalog, err := NewElasticCatalog(cfg.CatalogAddresses(), cfg.Catalog.Index)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to catalog: %w", err)
	}

	return catalog, nil
}

// RunOCR recognises one image, or every unprocessed image when input is empty.  It returns the workbooks written.
func (s *Service) RunOCR(ctx context.Context, input string, batchSize int, maxWorkers int) ([]string, error) {
	if input != "" {
		output, err := s.ocr.ProcessImage(ctx, input)
		if err != nil {
			return nil, err
		}

		return []string{output}, nil
	}

	images, err := s.ocr.UnprocessedImages()
	if err != nil {
		return nil, err
	}

	total, success := s.ocr.ProcessBatch(ctx, batchSize, maxWorkers)
	if total > 0 && success == 0 {
		return nil, fmt.Errorf("all %d images failed", total)
	}

	outputs := []string{}

	for _, image := range images {
		if output, ok := s.ocr.records.Get(image); ok && fileExists(output) {
			outputs = append(outputs, output)
		}
	}

	return outputs, nil
}

// ProcessExcel turns one recognised workbook, or the latest, into a purchase order.
func (s *Service) ProcessExcel(ctx context.Context, input string) (string, error) {
	if input != "" {
		return s.orders.ProcessFile(ctx, input)
	}

	return s.orders.ProcessLatest(ctx)
}

func (s *Service) MergeOrders(ctx context.Context, inputs []string) (string, error) {
	return s.merger.Merge(ctx, inputs)
}

// Pipeline runs OCR, builds a purchase order from every new workbook, and merges them when there is more than one.
func (s *Service) Pipeline(ctx context.Context, input string) ([]string, error) {
	workbooks, err := s.RunOCR(ctx, input, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("OCR failed: %w", err)
	}

	if len(workbooks) == 0 {
		// Nothing new to recognise, but there may be a workbook waiting for the order stage.
		latest, err := s.orders.LatestWorkbook()
		if err != nil {
			return nil, fmt.Errorf("nothing to process: %w", err)
		}

		workbooks = []string{latest}
	}

	orders := []string{}

	for _, workbook := range workbooks {
		if err := ctx.Err(); err != nil {
			return orders, err
		}

		order, err := s.orders.ProcessFile(ctx, workbook)
		if err != nil {
			sugar.Errorf("Failed to build order from %s: %v", filepath.Base(workbook), err)
			continue
		}

		orders = append(orders, order)
	}

	if len(orders) == 0 {
		return nil, errors.New("no purchase orders produced")
	}

	if len(orders) > 1 {
		merged, err := s.merger.Merge(ctx, orders)
		if err != nil {
			return orders, fmt.Errorf("merge failed: %w", err)
		}

		orders = append(orders, merged)
	}

	sugar.Infof("Pipeline done: %d workbooks, %d outputs", len(workbooks), len(orders))

	return orders, nil
}
