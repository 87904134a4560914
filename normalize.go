package main

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	reSpaces        = regexp.MustCompile(`\s+`)
	reTrailingZeros = regexp.MustCompile(`\.0+$`)
	reNonDigits     = regexp.MustCompile(`\D`)
	reScientific    = regexp.MustCompile(`^-?\d+(\.\d+)?[eE][+-]?\d+$`)
	reNumber        = regexp.MustCompile(`-?\d+(\.\d+)?`)
	reNumberUnit    = regexp.MustCompile(`(-?\d+(?:\.\d+)?)\s*([^\d\s]+)?`)
	reQtyWithUnit   = regexp.MustCompile(`^([\d.]+)\s*([^\d\s.]+)$`)
	reQtyOnly       = regexp.MustCompile(`^[\d.]+$`)
	reUnitOnly      = regexp.MustCompile(`^([^\d\s.]+)$`)
)

// Cells which name the warehouse column rather than hold a barcode.
var warehouseMarkers = []string{"仓库", "仓库全名"}

func CleanString(str string) string {
	return strings.TrimSpace(reSpaces.ReplaceAllString(str, " "))
}

func CleanBarcode(barcode string) string {
	barcode = FormatBarcode(strings.TrimSpace(barcode))
	barcode = reTrailingZeros.ReplaceAllString(barcode, "")
	return reNonDigits.ReplaceAllString(barcode, "")
}

// FormatBarcode undoes spreadsheet scientific notation, so 6.9012345E+12 becomes 6901234500000.
func FormatBarcode(barcode string) string {
	barcode = strings.TrimSpace(barcode)

	if reScientific.MatchString(barcode) {
		if f, err := strconv.ParseFloat(barcode, 64); err == nil {
			return strconv.FormatFloat(f, 'f', 0, 64)
		}
	}

	return barcode
}

// ValidateBarcode returns the cleaned barcode and whether it looks like a real EAN/UPC code.
func ValidateBarcode(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)

	for _, marker := range warehouseMarkers {
		if trimmed == marker {
			sugar.Warnf("Barcode is a warehouse marker: %s", raw)
			return "", false
		}
	}

	barcode := CleanBarcode(trimmed)

	// OCR quite often reads a leading 6 as a 5.  53 is a genuine prefix though.
	if len(barcode) > 8 && strings.HasPrefix(barcode, "5") && !strings.HasPrefix(barcode, "53") {
		fixed := "6" + barcode[1:]
		sugar.Infof("Fix barcode prefix 5->6: %s -> %s", raw, fixed)
		barcode = fixed
	}

	if len(barcode) < 8 || len(barcode) > 13 {
		sugar.Debugf("Barcode length invalid: %s (%d)", barcode, len(barcode))
		return barcode, false
	}

	return barcode, true
}

func ExtractNumber(str string) (float64, bool) {
	match := reNumber.FindString(str)

	if match == "" {
		return 0, false
	}

	f, err := strconv.ParseFloat(match, 64)
	return f, err == nil
}

func ExtractNumberAndUnit(str string) (float64, string, bool) {
	m := reNumberUnit.FindStringSubmatch(str)

	if m == nil {
		return 0, "", false
	}

	f, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, "", false
	}

	return f, m[2], true
}

// ParseQuantity splits a quantity cell such as "2箱" into its number and unit.  A cell holding only a unit returns
// ok false with the unit set.
func ParseQuantity(str string) (qty float64, unit string, ok bool) {
	str = CleanString(str)

	if str == "" {
		return 0, "", false
	}

	if m := reQtyWithUnit.FindStringSubmatch(str); m != nil {
		if f, err := strconv.ParseFloat(m[1], 64); err == nil {
			return f, m[2], true
		}
	}

	if reQtyOnly.MatchString(str) {
		if f, err := strconv.ParseFloat(str, 64); err == nil {
			return f, "", true
		}
	}

	if m := reUnitOnly.FindStringSubmatch(str); m != nil {
		return 0, m[1], false
	}

	return ExtractNumberAndUnit(str)
}

// ParseAmount reads a money cell.  OCR sometimes gives a range such as "40-44", in which case we take the first value.
func ParseAmount(str string) (float64, bool) {
	str = CleanString(str)

	if i := strings.Index(str, "-"); i > 0 {
		str = str[:i]
	}

	if str == "" {
		return 0, false
	}

	f, err := strconv.ParseFloat(strings.ReplaceAll(str, ",", ""), 64)
	return f, err == nil
}

// ParseNumeric is the lenient coercion used when reading our own order sheets: anything unparseable is zero.
func ParseNumeric(str string) float64 {
	f, err := strconv.ParseFloat(strings.ReplaceAll(CleanString(str), ",", ""), 64)

	if err != nil {
		return 0
	}

	return f
}
