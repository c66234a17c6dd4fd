package importer

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"
)

// Role names a semantic field a source column can map to.
type Role string

const (
	RoleIDNumber     Role = "idNumber"
	RoleName         Role = "name"
	RolePhone        Role = "phone"
	RoleCounty       Role = "county"
	RoleSubcounty    Role = "subcounty"
	RoleLocation     Role = "location"
	RoleDate         Role = "date"
	RoleGender       Role = "gender"
	RoleProgramme    Role = "programme"
	RoleRegisteredBy Role = "registeredBy"
	RoleExternalID   Role = "externalId"
	RoleVaccinated   Role = "vaccinated"
	RoleVaccines     Role = "vaccines"

	// Grouped roles: the same logical field replicated per animal
	RoleLiveWeight    Role = "liveWeight"
	RoleCarcassWeight Role = "carcassWeight"
	RolePrice         Role = "price"
	RoleUnitCount     Role = "unitCount"
)

// roleSpec pairs a role with its keyword set. A keyword with several words
// matches only when every word is contained in the normalized header, so
// "id number" matches "National ID Number" and "ID No./Number" alike.
type roleSpec struct {
	role     Role
	keywords []string
}

// singularSpecs is the fixed resolution priority order. More specific roles
// come first because each header index is consumed once a role claims it:
// subcounty before county (every subcounty header contains "county"),
// registeredBy and vaccines before name (both keyword sets contain "name").
var singularSpecs = []roleSpec{
	{RoleIDNumber, []string{"id number", "idno", "id no", "national id", "identity"}},
	{RoleExternalID, []string{"external id", "farmer code", "member code"}},
	{RolePhone, []string{"phone", "mobile", "telephone", "contact"}},
	{RoleSubcounty, []string{"sub county", "subcounty"}},
	{RoleCounty, []string{"county"}},
	{RoleLocation, []string{"location", "village", "ward"}},
	{RoleDate, []string{"date"}},
	{RoleGender, []string{"gender", "sex"}},
	{RoleProgramme, []string{"programme", "program"}},
	{RoleRegisteredBy, []string{"registered by", "recorded by", "officer name", "officer"}},
	{RoleVaccinated, []string{"vaccinated"}},
	{RoleVaccines, []string{"vaccine"}},
	{RoleName, []string{"name"}},
}

// groupedSpecs are roles that may repeat once per animal with an embedded
// unit number in the header ("Live Weight 2").
var groupedSpecs = []roleSpec{
	{RoleLiveWeight, []string{"live weight", "liveweight", "lwt"}},
	{RoleCarcassWeight, []string{"carcass weight", "carcassweight", "dressed weight", "cwt"}},
	{RoleUnitCount, []string{"number of animals", "no of animals", "animal count"}},
	{RolePrice, []string{"price", "amount paid", "value"}},
}

// ColumnMap is the resolved association from roles to column indexes for one
// header row.
type ColumnMap struct {
	// Singular maps each matched singular role to its column index.
	Singular map[Role]int

	// Units maps a discovered unit index to its per-role column indexes.
	Units map[int]map[Role]int

	// UnitOrder is the set of discovered unit indexes, ascending. It
	// defines processing order for per-unit extraction.
	UnitOrder []int
}

// Has reports whether a singular role was matched.
func (m ColumnMap) Has(role Role) bool {
	_, ok := m.Singular[role]
	return ok
}

// Grouped reports whether any grouped columns were discovered.
func (m ColumnMap) Grouped() bool {
	return len(m.Units) > 0
}

// Resolver maps normalized headers to column roles. The zero value is not
// usable; construct with NewResolver.
type Resolver struct {
	singular []roleSpec
	grouped  []roleSpec
}

// NewResolver returns a resolver with the built-in keyword sets.
func NewResolver() *Resolver {
	return &Resolver{singular: singularSpecs, grouped: groupedSpecs}
}

// KeywordOverrides is the YAML shape for deployment-specific extra keywords,
// keyed by role name.
type KeywordOverrides struct {
	Keywords map[string][]string `yaml:"keywords"`
}

// NewResolverFromFile returns a resolver whose keyword sets are extended by
// a YAML override file. Unknown role names in the file are rejected.
func NewResolverFromFile(path string) (*Resolver, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read keyword overrides: %w", err)
	}

	var overrides KeywordOverrides
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("failed to parse keyword overrides: %w", err)
	}

	r := &Resolver{
		singular: extendSpecs(singularSpecs, overrides.Keywords),
		grouped:  extendSpecs(groupedSpecs, overrides.Keywords),
	}

	known := make(map[string]bool)
	for _, spec := range singularSpecs {
		known[string(spec.role)] = true
	}
	for _, spec := range groupedSpecs {
		known[string(spec.role)] = true
	}
	for role := range overrides.Keywords {
		if !known[role] {
			return nil, fmt.Errorf("unknown role %q in keyword overrides", role)
		}
	}

	return r, nil
}

func extendSpecs(base []roleSpec, extra map[string][]string) []roleSpec {
	out := make([]roleSpec, len(base))
	for i, spec := range base {
		out[i] = spec
		if added, ok := extra[string(spec.role)]; ok {
			merged := make([]string, 0, len(spec.keywords)+len(added))
			merged = append(merged, spec.keywords...)
			for _, kw := range added {
				merged = append(merged, NormalizeHeader(kw))
			}
			out[i].keywords = merged
		}
	}
	return out
}

// Resolve maps a header row to a ColumnMap. Headers are normalized first;
// singular roles claim indexes in priority order, then grouped roles bucket
// the remaining headers by embedded unit number. A header matching a grouped
// keyword with no digit and no numbered siblings for that role becomes the
// sole ungrouped instance at unit 0.
func (r *Resolver) Resolve(headers []string) ColumnMap {
	normalized := make([]string, len(headers))
	for i, h := range headers {
		normalized[i] = NormalizeHeader(h)
	}

	cm := ColumnMap{
		Singular: make(map[Role]int),
		Units:    make(map[int]map[Role]int),
	}
	consumed := make([]bool, len(normalized))

	// Grouped roles claim digit-suffixed headers before singular ones run,
	// otherwise the date role would swallow "Sale Date 1" style headers.
	type undigited struct {
		role Role
		col  int
	}
	var pending []undigited
	digited := make(map[Role]bool)

	for col, header := range normalized {
		if header == "" {
			continue
		}
		for _, spec := range r.grouped {
			if !matchesAny(header, spec.keywords) {
				continue
			}
			if unit, ok := embeddedUnit(header); ok {
				bucket := cm.Units[unit]
				if bucket == nil {
					bucket = make(map[Role]int)
					cm.Units[unit] = bucket
				}
				if _, taken := bucket[spec.role]; !taken {
					bucket[spec.role] = col
					consumed[col] = true
					digited[spec.role] = true
				}
			} else {
				pending = append(pending, undigited{spec.role, col})
				consumed[col] = true
			}
			break
		}
	}

	// Digit-less grouped headers become unit 0 only when the role has no
	// numbered siblings.
	for _, p := range pending {
		if digited[p.role] {
			continue
		}
		bucket := cm.Units[0]
		if bucket == nil {
			bucket = make(map[Role]int)
			cm.Units[0] = bucket
		}
		if _, taken := bucket[p.role]; !taken {
			bucket[p.role] = p.col
		}
	}

	for _, spec := range r.singular {
		for col, header := range normalized {
			if consumed[col] || header == "" {
				continue
			}
			if matchesAny(header, spec.keywords) {
				cm.Singular[spec.role] = col
				consumed[col] = true
				break
			}
		}
	}

	for unit := range cm.Units {
		cm.UnitOrder = append(cm.UnitOrder, unit)
	}
	sort.Ints(cm.UnitOrder)

	return cm
}

// matchesAny reports whether every word of at least one keyword is contained
// in the header.
func matchesAny(header string, keywords []string) bool {
	for _, kw := range keywords {
		all := true
		for _, word := range strings.Fields(kw) {
			if !strings.Contains(header, word) {
				all = false
				break
			}
		}
		if all {
			return true
		}
	}
	return false
}

// embeddedUnit extracts the last digit run in a header as a unit index.
func embeddedUnit(header string) (int, bool) {
	end := -1
	for i := len(header) - 1; i >= 0; i-- {
		if unicode.IsDigit(rune(header[i])) {
			end = i
			break
		}
	}
	if end < 0 {
		return 0, false
	}
	start := end
	for start > 0 && unicode.IsDigit(rune(header[start-1])) {
		start--
	}
	n := 0
	for _, c := range header[start : end+1] {
		n = n*10 + int(c-'0')
	}
	return n, true
}
