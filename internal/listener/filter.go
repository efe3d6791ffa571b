package listener

import (
	"fmt"
	"strconv"
	"strings"

	"revitmcp/internal/domain"
	"revitmcp/internal/revit"
)

// matchesFilters reports whether every parameter condition holds for the
// element. A condition on a parameter the element does not carry fails the
// match except for is_empty, which treats a missing parameter as empty.
func matchesFilters(el revit.Element, filters []domain.ParameterFilter) (bool, error) {
	for _, f := range filters {
		cond := f.Condition
		if cond == "" {
			cond = "equals"
		}
		p, present := el.Parameters[f.Name]
		if !present {
			if cond == "is_empty" {
				continue
			}
			return false, nil
		}
		ok, err := matchCondition(p, cond, f.Value)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// numericEpsilon absorbs float formatting noise when equating numeric
// parameter values, including feet-inches thresholds like 2' 3".
const numericEpsilon = 1e-6

func matchCondition(p revit.Parameter, cond, want string) (bool, error) {
	have := paramString(p)
	switch cond {
	case "equals":
		if isNumericKind(p.Kind) {
			ok, err := compareNumeric(p, want, func(a, b float64) bool {
				return a-b < numericEpsilon && b-a < numericEpsilon
			})
			if err == nil {
				return ok, nil
			}
		}
		return strings.EqualFold(have, want), nil
	case "contains":
		return strings.Contains(strings.ToLower(have), strings.ToLower(want)), nil
	case "startswith":
		return strings.HasPrefix(strings.ToLower(have), strings.ToLower(want)), nil
	case "endswith":
		return strings.HasSuffix(strings.ToLower(have), strings.ToLower(want)), nil
	case "greater_than":
		return compareNumeric(p, want, func(a, b float64) bool { return a > b })
	case "less_than":
		return compareNumeric(p, want, func(a, b float64) bool { return a < b })
	case "is_empty":
		return have == "", nil
	case "is_not_empty":
		return have != "", nil
	default:
		return false, fmt.Errorf("unknown filter condition %q", cond)
	}
}

func isNumericKind(k revit.ParameterKind) bool {
	switch k {
	case revit.KindNumber, revit.KindLength, revit.KindInteger:
		return true
	}
	return false
}

func compareNumeric(p revit.Parameter, want string, cmp func(a, b float64) bool) (bool, error) {
	threshold, err := strconv.ParseFloat(strings.TrimSpace(want), 64)
	if err != nil {
		// Length thresholds may arrive in feet-inches notation.
		threshold, err = revit.ParseLength(want)
		if err != nil {
			return false, fmt.Errorf("non-numeric comparison value %q", want)
		}
	}
	var have float64
	switch p.Kind {
	case revit.KindNumber, revit.KindLength:
		have = p.Number
	case revit.KindInteger, revit.KindYesNo:
		have = float64(p.Integer)
	default:
		v, err := strconv.ParseFloat(strings.TrimSpace(p.Text), 64)
		if err != nil {
			return false, nil
		}
		have = v
	}
	return cmp(have, threshold), nil
}

func paramString(p revit.Parameter) string {
	switch p.Kind {
	case revit.KindText:
		return p.Text
	case revit.KindInteger, revit.KindYesNo:
		return strconv.FormatInt(p.Integer, 10)
	default:
		return strconv.FormatFloat(p.Number, 'f', -1, 64)
	}
}
