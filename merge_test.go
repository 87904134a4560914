package main

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundPrice(t *testing.T) {
	assert.Equal(t, 2.1235, roundPrice(2.123456))
	assert.Equal(t, 3.0, roundPrice(2.99999))
	assert.Equal(t, 0.0, roundPrice(0))
}

func TestMergeLines(t *testing.T) {
	m := &Merger{}

	merged := m.MergeLines(context.Background(), [][]OrderLine{
		{
			{Barcode: "6901234567890", Name: "可乐", Quantity: 10, Price: 2.5},
			{Barcode: "6901234567891", Name: "雪碧", Gift: 3},
			{Barcode: "6901234567892", Name: "空行"},
		},
		{
			{Barcode: "6901234567890", Name: "可乐", Quantity: 5, Price: 2.50001},
			{Barcode: "6901234567890", Name: "可乐", Quantity: 1, Price: 3},
			{Name: "散装糖果", Quantity: 2, Price: 1},
			{Name: "散装糖果", Quantity: 1, Price: 1},
			{Quantity: 4, Price: 1},
		},
	})

	assert.Equal(t, []OrderLine{
		{Barcode: "6901234567890", Name: "可乐", Quantity: 15, Price: 2.5},
		{Barcode: "6901234567890", Name: "可乐", Quantity: 1, Price: 3},
		{Barcode: "6901234567891", Name: "雪碧", Gift: 3},
		{Name: "散装糖果", Quantity: 3, Price: 1},
	}, merged)
}

func TestMergeLinesCatalog(t *testing.T) {
	m := &Merger{catalog: newMemoryCatalog(CatalogEntry{Barcode: "6901234567893", Name: "大白兔奶糖"})}

	merged := m.MergeLines(context.Background(), [][]OrderLine{
		{{Barcode: "6901234567893", Quantity: 1, Price: 10}},
		{{Name: "大白兔奶糖", Quantity: 2, Price: 10}},
	})

	assert.Equal(t, []OrderLine{
		{Barcode: "6901234567893", Name: "大白兔奶糖", Quantity: 3, Price: 10},
	}, merged)
}

func TestMerge(t *testing.T) {
	cfg := testConfig(t)

	first := filepath.Join(cfg.Paths.OutputFolder, orderPrefix+"a.xlsx")
	second := filepath.Join(cfg.Paths.OutputFolder, orderPrefix+"b.xlsx")

	require.NoError(t, WriteOrder(cfg.TemplatePath(), first, []OrderLine{
		{Barcode: "6901234567890", Name: "可乐", Quantity: 24, Price: 3},
		{Barcode: "6901234567891", Name: "雪碧", Gift: 2},
	}))
	require.NoError(t, WriteOrder(cfg.TemplatePath(), second, []OrderLine{
		{Barcode: "6901234567890", Name: "可乐", Quantity: 12, Price: 3},
		{Barcode: "6901234567892", Name: "绿茶", Quantity: 15, Price: 2.6667},
	}))

	m, err := NewMerger(cfg, nil)
	require.NoError(t, err)

	orders, err := m.PurchaseOrders()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{first, second}, orders)

	output, err := m.Merge(context.Background(), nil)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(filepath.Base(output), mergedPrefix))

	lines, err := ReadOrder(output)
	require.NoError(t, err)
	assert.Equal(t, []OrderLine{
		{Barcode: "6901234567890", Name: "可乐", Quantity: 36, Price: 3},
		{Barcode: "6901234567891", Name: "雪碧", Gift: 2},
		{Barcode: "6901234567892", Name: "绿茶", Quantity: 15, Price: 2.6667},
	}, lines)

	assert.True(t, recorded(m.records, first))
	assert.True(t, recorded(m.records, second))

	// The merged order isn't itself a purchase order.
	orders, err = m.PurchaseOrders()
	require.NoError(t, err)
	assert.Len(t, orders, 2)
}

func TestMergeNothing(t *testing.T) {
	cfg := testConfig(t)

	m, err := NewMerger(cfg, nil)
	require.NoError(t, err)

	_, err = m.Merge(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoOrders)

	// Unreadable orders are skipped, leaving nothing.
	_, err = m.Merge(context.Background(), []string{filepath.Join(cfg.Paths.OutputFolder, "missing.xlsx")})
	assert.ErrorIs(t, err, ErrNoOrders)
}
