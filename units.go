package main

// Units which describe a whole package rather than a single item.
var packageUnits = map[string]bool{"件": true, "箱": true, "提": true, "盒": true}

// The sellable unit we convert packages into.
const baseUnit = "瓶"

type SpecialBarcode struct {
	Multiplier float64
	TargetUnit string
}

// UnitConverter turns package quantities into item quantities, so that orders in cases and orders in bottles end up
// on the same footing.
type UnitConverter struct {
	special map[string]SpecialBarcode
}

func NewUnitConverter() *UnitConverter {
	return &UnitConverter{
		special: map[string]SpecialBarcode{
			"6925019900087": {Multiplier: 10, TargetUnit: baseUnit},
		},
	}
}

func (u *UnitConverter) AddSpecialBarcode(barcode string, multiplier float64, targetUnit string) {
	u.special[barcode] = SpecialBarcode{Multiplier: multiplier, TargetUnit: targetUnit}
	sugar.Infof("Special barcode %s: quantity x%v as %s", barcode, multiplier, targetUnit)
}

// Convert returns a copy of p with the quantity, unit and price expressed in items rather than packages where we can
// tell how big the package is.
func (u *UnitConverter) Convert(p Product) Product {
	if p.Barcode == "" || p.Quantity == 0 {
		return p
	}

	if special, ok := u.special[p.Barcode]; ok {
		sugar.Infof("Special barcode %s: %v%s -> %v%s", p.Barcode, p.Quantity, p.Unit,
			p.Quantity*special.Multiplier, special.TargetUnit)
		return p.scaled(special.Multiplier, special.TargetUnit)
	}

	if !packageUnits[p.Unit] {
		return p
	}

	pkg := p.PackageQuantity
	if pkg == 0 && p.Specification != "" {
		pkg, _ = ParseSpecification(p.Specification)
	}

	if pkg == 0 {
		return p
	}

	// A 提 or 盒 with a two level spec (1*12) is already the unit the shop sells; only three level specs open up.
	if (p.Unit == "提" || p.Unit == "盒") && !IsThreeLevel(p.Specification) {
		sugar.Debugf("Keep %s with two level spec %s", p.Unit, p.Specification)
		return p
	}

	sugar.Infof("Convert %v%s -> %v%s, spec %s", p.Quantity, p.Unit, p.Quantity*float64(pkg), baseUnit,
		p.Specification)

	return p.scaled(float64(pkg), baseUnit)
}

func (p Product) scaled(factor float64, unit string) Product {
	p.Quantity *= factor
	p.Unit = unit

	if p.Price != 0 {
		p.Price /= factor
	}

	return p
}
