// Package memsize extracts memory quantities from free-form text and
// normalizes them to bytes.
//
// The grammar accepts an unsigned decimal (digit-group commas allowed)
// followed by an optional space and a size unit. All unit spellings use
// binary multipliers: KB and KiB both mean 1024 bytes, matching how
// Slurm interprets --mem suffixes.
package memsize

import (
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// ErrNoQuantity reports that no memory quantity with a recognizable
// unit could be extracted.
var ErrNoQuantity = errors.New("no memory quantity with a recognizable unit")

// Quantity is a memory amount parsed out of text.
type Quantity struct {
	Value float64 // numeric component as written, e.g. 8.2
	Unit  string  // canonical unit spelling, e.g. "GB"
	Bytes uint64  // Value normalized with binary multipliers
}

// String renders the quantity the way it appeared, e.g. "8.2 GB".
func (q Quantity) String() string {
	return strconv.FormatFloat(q.Value, 'f', -1, 64) + " " + q.Unit
}

var quantityRe = regexp.MustCompile(
	`(?i)(\d{1,3}(?:,\d{3})+(?:\.\d+)?|\d+(?:\.\d+)?)\s*(KiB|MiB|GiB|TiB|KB|MB|GB|TB|K|M|G|T)\b`)

var units = map[string]struct {
	canonical  string
	multiplier float64
}{
	"k": {"K", 1 << 10}, "kb": {"KB", 1 << 10}, "kib": {"KiB", 1 << 10},
	"m": {"M", 1 << 20}, "mb": {"MB", 1 << 20}, "mib": {"MiB", 1 << 20},
	"g": {"G", 1 << 30}, "gb": {"GB", 1 << 30}, "gib": {"GiB", 1 << 30},
	"t": {"T", 1 << 40}, "tb": {"TB", 1 << 40}, "tib": {"TiB", 1 << 40},
}

// ParseAll returns every valid quantity in text, in order of appearance.
// Candidates preceded by a minus sign or too large to represent in bytes
// are skipped. Zero is a valid quantity.
func ParseAll(text string) []Quantity {
	var out []Quantity
	for _, m := range quantityRe.FindAllStringSubmatchIndex(text, -1) {
		start := m[0]
		num := text[m[2]:m[3]]
		unit := strings.ToLower(text[m[4]:m[5]])

		if start > 0 && text[start-1] == '-' {
			continue
		}
		value, err := strconv.ParseFloat(strings.ReplaceAll(num, ",", ""), 64)
		if err != nil {
			continue
		}
		u := units[unit]
		bytes := value * u.multiplier
		if bytes >= math.MaxUint64 {
			continue
		}
		out = append(out, Quantity{
			Value: value,
			Unit:  u.canonical,
			Bytes: uint64(math.Round(bytes)),
		})
	}
	return out
}

// Parse extracts the memory quantity from text. When the text carries
// several candidates (a reply often lists minimum, expected, and
// worst-case figures) the largest wins: over-asking wastes quota, but
// under-asking gets the job killed.
func Parse(text string) (Quantity, error) {
	candidates := ParseAll(text)
	if len(candidates) == 0 {
		return Quantity{}, ErrNoQuantity
	}
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.Bytes > best.Bytes {
			best = c
		}
	}
	return best, nil
}
