package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConvertCase(t *testing.T) {
	u := NewUnitConverter()

	p := u.Convert(Product{Barcode: "6901234567890", Quantity: 2, Unit: "箱", Specification: "1*12", Price: 36})
	assert.Equal(t, 24.0, p.Quantity)
	assert.Equal(t, "瓶", p.Unit)
	assert.Equal(t, 3.0, p.Price)

	// Package quantity already worked out wins over the spec.
	p = u.Convert(Product{Barcode: "6901234567890", Quantity: 1, Unit: "件", PackageQuantity: 24, Price: 48})
	assert.Equal(t, 24.0, p.Quantity)
	assert.Equal(t, 2.0, p.Price)
}

func TestConvertTwoLevelKept(t *testing.T) {
	u := NewUnitConverter()

	in := Product{Barcode: "6901234567890", Quantity: 3, Unit: "提", Specification: "1*6", Price: 12}
	assert.Equal(t, in, u.Convert(in))

	in.Unit = "盒"
	assert.Equal(t, in, u.Convert(in))
}

func TestConvertThreeLevel(t *testing.T) {
	u := NewUnitConverter()

	p := u.Convert(Product{Barcode: "6901234567890", Quantity: 2, Unit: "盒", Specification: "1*5*10", Price: 50})
	assert.Equal(t, 20.0, p.Quantity)
	assert.Equal(t, "瓶", p.Unit)
	assert.Equal(t, 5.0, p.Price)
}

func TestConvertSpecialBarcode(t *testing.T) {
	u := NewUnitConverter()

	p := u.Convert(Product{Barcode: "6925019900087", Quantity: 3, Unit: "箱", Specification: "1*20", Price: 50})
	assert.Equal(t, 30.0, p.Quantity)
	assert.Equal(t, "瓶", p.Unit)
	assert.Equal(t, 5.0, p.Price)

	u.AddSpecialBarcode("6901234567899", 6, "听")

	p = u.Convert(Product{Barcode: "6901234567899", Quantity: 2, Unit: "件"})
	assert.Equal(t, 12.0, p.Quantity)
	assert.Equal(t, "听", p.Unit)
	assert.Equal(t, 0.0, p.Price)
}

func TestConvertUnchanged(t *testing.T) {
	u := NewUnitConverter()

	for _, in := range []Product{
		{Barcode: "6901234567890", Quantity: 5, Unit: "瓶", Specification: "1*12", Price: 3},
		{Barcode: "6901234567890", Quantity: 2, Unit: "箱", Price: 36},
		{Barcode: "6901234567890", Quantity: 0, Unit: "箱", Specification: "1*12"},
		{Quantity: 2, Unit: "箱", Specification: "1*12"},
	} {
		assert.Equal(t, in, u.Convert(in))
	}
}
