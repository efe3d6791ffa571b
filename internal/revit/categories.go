package revit

import "strings"

// builtInCategories is the subset of Revit's built-in categories the bridge
// is expected to traffic in. Keys are the canonical enum-style names.
var builtInCategories = map[string]struct{}{
	"OST_Walls":                {},
	"OST_Doors":                {},
	"OST_Windows":              {},
	"OST_Floors":               {},
	"OST_Ceilings":             {},
	"OST_Roofs":                {},
	"OST_Stairs":               {},
	"OST_Railings":             {},
	"OST_Columns":              {},
	"OST_StructuralColumns":    {},
	"OST_StructuralFraming":    {},
	"OST_StructuralFoundation": {},
	"OST_Furniture":            {},
	"OST_FurnitureSystems":     {},
	"OST_Casework":             {},
	"OST_PlumbingFixtures":     {},
	"OST_LightingFixtures":     {},
	"OST_ElectricalFixtures":   {},
	"OST_ElectricalEquipment":  {},
	"OST_MechanicalEquipment":  {},
	"OST_DuctCurves":           {},
	"OST_PipeCurves":           {},
	"OST_Rooms":                {},
	"OST_Areas":                {},
	"OST_Levels":               {},
	"OST_Grids":                {},
	"OST_GenericModel":         {},
	"OST_Mass":                 {},
	"OST_Parking":              {},
	"OST_Planting":             {},
	"OST_Site":                 {},
	"OST_Topography":           {},
	"OST_CurtainWallPanels":    {},
	"OST_CurtainWallMullions":  {},
	"OST_Ramps":                {},
	"OST_SpecialityEquipment":  {},
	"OST_Views":                {},
	"OST_Sheets":               {},
}

// ResolveCategory maps a loosely spelled category name ("windows", "Window",
// "OST_WINDOWS") onto its canonical built-in category name. It returns the
// canonical name and whether the lookup succeeded.
//
// The search order is deliberate: an exact OST_ name wins, then prefixed
// casing variants, then singular/plural alternates of each of those.
func ResolveCategory(name string) (string, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", false
	}
	for _, cand := range categoryCandidates(name) {
		if canonical, ok := lookupCategory(cand); ok {
			return canonical, true
		}
	}
	return "", false
}

func lookupCategory(cand string) (string, bool) {
	key := strings.ReplaceAll(strings.ToLower(cand), " ", "")
	for canonical := range builtInCategories {
		if strings.ToLower(canonical) == key {
			return canonical, true
		}
	}
	return "", false
}

func categoryCandidates(name string) []string {
	base := name
	if !strings.HasPrefix(strings.ToUpper(base), "OST_") {
		base = "OST_" + base
	}
	trimmed := base[len("OST_"):]

	var cands []string
	add := func(s string) {
		for _, c := range cands {
			if c == s {
				return
			}
		}
		cands = append(cands, s)
	}

	forms := []string{
		trimmed,
		titleWords(trimmed),
		strings.ToUpper(trimmed),
		strings.ToLower(trimmed),
	}
	for _, f := range forms {
		add("OST_" + f)
	}
	// Singular/plural alternates of every form tried so far.
	for _, f := range forms {
		if strings.HasSuffix(strings.ToLower(f), "s") {
			add("OST_" + f[:len(f)-1])
		} else {
			add("OST_" + f + "s")
		}
	}
	return cands
}

// titleWords upper-cases the first letter of each space or underscore
// separated word without lowering the rest, so "curtainWallPanels" survives.
func titleWords(s string) string {
	var b strings.Builder
	upperNext := true
	for _, r := range s {
		switch {
		case r == ' ' || r == '_':
			b.WriteRune(r)
			upperNext = true
		case upperNext:
			b.WriteString(strings.ToUpper(string(r)))
			upperNext = false
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
