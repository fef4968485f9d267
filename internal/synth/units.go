package synth

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Unit converts one measurement unit into a farmer-familiar one.
type Unit struct {
	// From lists the spellings of the source unit, e.g. "hectares", "ha".
	From   []string `yaml:"from" mapstructure:"from"`
	To     string   `yaml:"to" mapstructure:"to"`
	Factor float64  `yaml:"factor" mapstructure:"factor"`
}

// UnitMap is an ordered list of conversions.
type UnitMap []Unit

// DefaultUnitMap converts hectares to acres and tonnes to quintals.
func DefaultUnitMap() UnitMap {
	return UnitMap{
		{From: []string{"hectares", "hectare", "ha"}, To: "acres", Factor: 2.471},
		{From: []string{"tonnes", "tonne", "tons", "ton"}, To: "quintals", Factor: 10},
	}
}

// Apply rewrites every "<number> <unit>" occurrence in s.
func (m UnitMap) Apply(s string) string {
	for _, u := range m {
		re := u.pattern()
		if re == nil {
			continue
		}
		s = re.ReplaceAllStringFunc(s, func(match string) string {
			sub := re.FindStringSubmatch(match)
			v, err := strconv.ParseFloat(strings.ReplaceAll(sub[1], ",", ""), 64)
			if err != nil {
				return match
			}
			return formatNumber(v*u.Factor) + " " + u.To
		})
	}
	return s
}

func (u Unit) pattern() *regexp.Regexp {
	if len(u.From) == 0 || u.To == "" || u.Factor <= 0 {
		return nil
	}
	names := append([]string(nil), u.From...)
	// Longest first so "hectares" wins over "ha".
	sort.Slice(names, func(i, j int) bool { return len(names[i]) > len(names[j]) })
	for i, n := range names {
		names[i] = regexp.QuoteMeta(n)
	}
	return regexp.MustCompile(`(?i)\b(\d[\d,]*(?:\.\d+)?)\s*(?:` + strings.Join(names, "|") + `)\b`)
}

func formatNumber(v float64) string {
	s := strconv.FormatFloat(v, 'f', 1, 64)
	return strings.TrimSuffix(s, ".0")
}
