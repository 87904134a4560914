package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroupProducts(t *testing.T) {
	lines := GroupProducts([]Product{
		{Barcode: "6901234567890", Name: "可乐", Quantity: 24, Price: 3},
		{Barcode: "6901234567891", Name: "雪碧", Quantity: 5, Price: 3},
		{Barcode: "6901234567891", Name: "雪碧", Quantity: 2, IsGift: true},
		{Barcode: "6901234567890", Name: "可乐", Quantity: 12, Price: 4},
		{Barcode: "6901234567892", Name: "赠品水", Quantity: 3, IsGift: true},
		{Name: "没有条码", Quantity: 1, Price: 1},
	})

	assert.Equal(t, []OrderLine{
		{Barcode: "6901234567890", Name: "可乐", Quantity: 36, Price: 3.5},
		{Barcode: "6901234567891", Name: "雪碧", Quantity: 5, Gift: 2, Price: 3},
		{Barcode: "6901234567892", Name: "赠品水", Gift: 3},
	}, lines)
}

func TestGroupProductsGiftFirst(t *testing.T) {
	lines := GroupProducts([]Product{
		{Barcode: "6901234567890", Name: "可乐(赠)", Quantity: 2, IsGift: true},
		{Barcode: "6901234567890", Name: "可乐", Quantity: 10, Price: 3},
	})

	assert.Equal(t, []OrderLine{
		{Barcode: "6901234567890", Name: "可乐", Quantity: 10, Gift: 2, Price: 3},
	}, lines)
}

func TestProcessFile(t *testing.T) {
	cfg := testConfig(t)

	input := filepath.Join(cfg.Paths.OutputFolder, "送货单.xlsx")
	require.NoError(t, WriteTable(input, NewTable(supplierSheet)))

	o, err := NewOrderProcessor(cfg, NewExtractor(nil, nil))
	require.NoError(t, err)

	output, err := o.ProcessLatest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cfg.Paths.OutputFolder, "采购单_送货单.xlsx"), output)

	lines, err := ReadOrder(output)
	require.NoError(t, err)
	require.Len(t, lines, 6)

	assert.Equal(t, OrderLine{Barcode: "6901234567890", Name: "可乐", Quantity: 24, Price: 3}, lines[0])
	assert.Equal(t, OrderLine{Barcode: "6901234567891", Name: "雪碧", Quantity: 5, Gift: 2, Price: 3}, lines[1])
	assert.Equal(t, OrderLine{Barcode: "6901234567892", Name: "赠品水", Gift: 3}, lines[2])

	// Recorded, and our own order isn't mistaken for a new workbook.
	assert.True(t, recorded(o.records, input))

	latest, err := o.LatestWorkbook()
	require.NoError(t, err)
	assert.Equal(t, input, latest)
}

func TestLatestWorkbook(t *testing.T) {
	cfg := testConfig(t)
	o, err := NewOrderProcessor(cfg, NewExtractor(nil, nil))
	require.NoError(t, err)

	_, err = o.LatestWorkbook()
	assert.ErrorIs(t, err, ErrNoInputFile)

	_, err = o.ProcessLatest(context.Background())
	assert.ErrorIs(t, err, ErrNoInputFile)

	old := filepath.Join(cfg.Paths.OutputFolder, "old.xlsx")
	newer := filepath.Join(cfg.Paths.OutputFolder, "new.xlsx")

	for _, name := range []string{old, newer, filepath.Join(cfg.Paths.OutputFolder, "~$new.xlsx"),
		filepath.Join(cfg.Paths.OutputFolder, "合并采购单_20240101120000.xlsx")} {
		require.NoError(t, os.WriteFile(name, []byte("x"), 0644))
	}

	hour := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(old, hour, hour))

	latest, err := o.LatestWorkbook()
	require.NoError(t, err)
	assert.Equal(t, newer, latest)
}
