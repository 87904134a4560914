package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// OCRProcessor runs the images in the input folder through table recognition, saving one workbook per image.
type OCRProcessor struct {
	cfg        *Config
	recognizer TableRecognizer
	records    *Record
}

func NewOCRProcessor(cfg *Config, recognizer TableRecognizer) (*OCRProcessor, error) {
	records, err := LoadRecord(cfg.Paths.ProcessedRecord)
	if err != nil {
		return nil, err
	}

	return &OCRProcessor{
		cfg:        cfg,
		recognizer: recognizer,
		records:    records,
	}, nil
}

// UnprocessedImages lists the images we haven't yet recognised, or all of them when skip_existing is off.
func (o *OCRProcessor) UnprocessedImages() ([]string, error) {
	images, err := ListFiles(o.cfg.Paths.InputFolder, o.cfg.AllowedExtensions(), nil)
	if err != nil {
		return nil, err
	}

	if !o.cfg.Performance.SkipExisting {
		return images, nil
	}

	todo := []string{}

	for _, image := range images {
		if output, ok := o.records.Get(image); ok && fileExists(output) {
			sugar.Debugf("Already processed %s -> %s", image, output)
			continue
		}

		todo = append(todo, image)
	}

	sugar.Infof("Found %d images, %d unprocessed", len(images), len(todo))

	return todo, nil
}

func (o *OCRProcessor) ValidateImage(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrInvalidImage, path)
	}

	if !hasExtension(path, o.cfg.AllowedExtensions()) {
		return fmt.Errorf("%w: unsupported file type %s", ErrInvalidImage, filepath.Ext(path))
	}

	if info.Size() == 0 {
		return fmt.Errorf("%w: %s is empty", ErrInvalidImage, path)
	}

	limit := int64(o.cfg.File.MaxFileSizeMB * 1024 * 1024)
	if limit > 0 && info.Size() > limit {
		return fmt.Errorf("%w: %s is %.2fMB, limit %vMB", ErrInvalidImage, path,
			float64(info.Size())/1024/1024, o.cfg.File.MaxFileSizeMB)
	}

	return nil
}

func (o *OCRProcessor) outputPath(image string) string {
	ext := o.cfg.File.ExcelExtension
	if ext == "" {
		ext = ".xlsx"
	}

	return filepath.Join(o.cfg.Paths.OutputFolder, baseName(image)+ext)
}

// ProcessImage recognises one image and returns the workbook it was saved to.
func (o *OCRProcessor) ProcessImage(ctx context.Context, path string) (string, error) {
	if o.cfg.Performance.SkipExisting {
		if output, ok := o.records.Get(path); ok && fileExists(output) {
			sugar.Infof("Skip %s, already processed to %s", path, output)
			return output, nil
		}

		// Workbook left over from a run whose record was lost.
		if output := o.outputPath(path); fileExists(output) {
			sugar.Infof("Skip %s, %s already exists", path, output)

			if err := o.records.Mark(path, output); err != nil {
				sugar.Warnf("Could not save record: %v", err)
			}

			return output, nil
		}
	}

	if err := o.ValidateImage(path); err != nil {
		return "", err
	}

	image, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	start := time.Now()

	table, err := o.recognizer.RecognizeTable(ctx, image)
	if err != nil {
		return "", fmt.Errorf("%s: %w", path, err)
	}

	output := o.outputPath(path)

	if err := WriteTable(output, table); err != nil {
		return "", err
	}

	if err := o.records.Mark(path, output); err != nil {
		sugar.Warnf("Could not save record: %v", err)
	}

	sugar.Infof("Recognised %s in %v, saved %s", path, time.Since(start), output)

	return output, nil
}

// ProcessBatch processes the unprocessed images in batches, each batch spread over up to maxWorkers workers.  One
// image failing doesn't stop the others.  Zero or negative arguments take the configured values.
func (o *OCRProcessor) ProcessBatch(ctx context.Context, batchSize int, maxWorkers int) (int, int) {
	if batchSize <= 0 {
		batchSize = o.cfg.Performance.BatchSize
	}

	if maxWorkers <= 0 {
		maxWorkers = o.cfg.Performance.MaxWorkers
	}

	images, err := o.UnprocessedImages()
	if err != nil {
		sugar.Errorf("Failed to list images: %v", err)
		return 0, 0
	}

	if len(images) == 0 {
		sugar.Infof("No images to process in %s", o.cfg.Paths.InputFolder)
		return 0, 0
	}

	var success int64

	for start := 0; start < len(images); start += batchSize {
		end := start + batchSize
		if end > len(images) {
			end = len(images)
		}

		sugar.Infof("Batch %d-%d of %d", start+1, end, len(images))

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(maxWorkers)

		for _, image := range images[start:end] {
			image := image

			g.Go(func() error {
				if _, err := o.ProcessImage(gctx, image); err != nil {
					sugar.Errorf("Failed to process %s: %v", image, err)
					return nil
				}

				atomic.AddInt64(&success, 1)
				return nil
			})
		}

		_ = g.Wait()

		if ctx.Err() != nil {
			sugar.Warnf("Stopped: %v", ctx.Err())
			break
		}
	}

	sugar.Infof("Processed %d images, %d succeeded", len(images), success)

	return len(images), int(success)
}
