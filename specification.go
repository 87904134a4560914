package main

import (
	"fmt"
	"regexp"
	"strconv"
)

// Package specifications come in a handful of shapes: "1*15", "1x5x10", "24瓶/件", "500ml*15", "4L".  The number we
// want out of them is how many sellable units are in one package.

var (
	reSpecThree   = regexp.MustCompile(`(\d+)\s*[*xX×]\s*(\d+)\s*[*xX×]\s*(\d+)`)
	reSpecTwo     = regexp.MustCompile(`(\d+)\s*[*xX×]\s*(\d+)`)
	reSpecPerCase = regexp.MustCompile(`(\d+)[瓶个支袋][/／](件|箱)`)
	reSpecML      = regexp.MustCompile(`\d+(?:ml|ML|Ml|毫升)\s*[*xX×]\s*(\d+)`)
	reSpecLitre   = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*[Ll升]\s*[*×xX]?\s*(\d+)?`)
	reDigits      = regexp.MustCompile(`\d+`)
	reMultiplier  = regexp.MustCompile(`[*×xX]`)
)

// Rules for guessing a specification from a product name, in priority order.  Each yields the spec string.
var nameRules = []struct {
	re     *regexp.Regexp
	format func(m []string, rest string) (string, bool)
}{
	// 900树叶茉莉花茶12入纸箱
	{regexp.MustCompile(`(\d+)[入个](?:纸箱|箱装)`), perCase},
	// 绿茶1*15-纸箱开盖活动装
	{regexp.MustCompile(`(\d+)[*×xX](\d+)[-\s]?纸箱`), func(m []string, _ string) (string, bool) {
		return m[1] + "*" + m[2], true
	}},
	// 12.9L桶装水, unless a multiplier follows in which case a later rule has it.
	{regexp.MustCompile(`(\d+(?:\.\d+)?)[Ll升]`), func(m []string, rest string) (string, bool) {
		if reMultiplier.MatchString(rest) {
			return "", false
		}

		return m[1] + "L*1", true
	}},
	// 雪碧2L*6
	{regexp.MustCompile(`(\d+(?:\.\d+)?)[Ll升]\s*[*×xX]\s*(\d+)`), func(m []string, _ string) (string, bool) {
		return m[1] + "L*" + m[2], true
	}},
	{regexp.MustCompile(`箱装.*?(\d+)[入个]`), perCase},
	{regexp.MustCompile(`\D(\d+)入.*?箱`), perCase},
	// 500茶π蜜桃乌龙15纸箱
	{regexp.MustCompile(`(\d+)纸?箱`), perCase},
	{regexp.MustCompile(`(\d+)[*×xX](\d+)`), func(m []string, _ string) (string, bool) {
		return m[1] + "*" + m[2], true
	}},
	{regexp.MustCompile(`(\d+)[入个]$`), perCase},
}

// Counts that are almost always a case size when they turn up in a name.
var typicalCaseSizes = map[string]bool{"12": true, "15": true, "24": true, "30": true}

func perCase(m []string, _ string) (string, bool) {
	return "1*" + m[1], true
}

// ParseSpecification returns the package quantity described by spec.
func ParseSpecification(spec string) (int, bool) {
	spec = CleanString(spec)

	if spec == "" {
		return 0, false
	}

	var match string

	if m := reSpecThree.FindStringSubmatch(spec); m != nil {
		// Three level, e.g. 1*5*10: the last factor is the count per bag/box.
		match = m[3]
	} else if m := reSpecTwo.FindStringSubmatch(spec); m != nil {
		match = m[2]
	} else if m := reSpecPerCase.FindStringSubmatch(spec); m != nil {
		match = m[1]
	} else if m := reSpecML.FindStringSubmatch(spec); m != nil {
		match = m[1]
	} else if m := reSpecLitre.FindStringSubmatch(spec); m != nil {
		match = m[2]

		if match == "" {
			match = "1"
		}
	} else if nums := reDigits.FindAllString(spec, -1); len(nums) > 0 {
		// Fallback.  For things like "330ml/24" the last number is usually the count.
		match = nums[len(nums)-1]
	}

	n, err := strconv.Atoi(match)
	if err != nil || n <= 0 {
		return 0, false
	}

	return n, true
}

func IsThreeLevel(spec string) bool {
	return reSpecThree.MatchString(spec)
}

// InferSpecification guesses a specification from a product name, for rows where the spec column is empty.
func InferSpecification(name string) (string, int, bool) {
	name = CleanString(name)

	if name == "" {
		return "", 0, false
	}

	for _, rule := range nameRules {
		loc := rule.re.FindStringSubmatchIndex(name)

		if loc == nil {
			continue
		}

		m := submatches(name, loc)
		spec, ok := rule.format(m, name[loc[1]:])

		if !ok {
			continue
		}

		if qty, ok := ParseSpecification(spec); ok {
			sugar.Debugf("Inferred spec %s from name %s", spec, name)
			return spec, qty, true
		}
	}

	for _, num := range reDigits.FindAllString(name, -1) {
		if typicalCaseSizes[num] {
			qty, _ := strconv.Atoi(num)
			return fmt.Sprintf("1*%d", qty), qty, true
		}
	}

	sugar.Debugf("Unable to infer spec from name %s", name)

	return "", 0, false
}

func submatches(str string, loc []int) []string {
	m := make([]string, len(loc)/2)

	for i := range m {
		if loc[2*i] >= 0 {
			m[i] = str[loc[2*i]:loc[2*i+1]]
		}
	}

	return m
}
