package revit

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseLength converts a user supplied length into decimal feet, Revit's
// internal length unit. Accepted shapes:
//
//	12.5          plain decimal feet
//	2'            feet only
//	3"            inches only
//	2' 3"         feet and inches
//	2' 3 1/2"     feet, inches and a fraction
func ParseLength(raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, fmt.Errorf("empty length value")
	}
	if !strings.ContainsAny(s, `'"`) {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid length %q", raw)
		}
		return v, nil
	}

	feet := 0.0
	rest := s
	if i := strings.IndexByte(rest, '\''); i >= 0 {
		f, err := strconv.ParseFloat(strings.TrimSpace(rest[:i]), 64)
		if err != nil {
			return 0, fmt.Errorf("invalid feet in %q", raw)
		}
		feet = f
		rest = rest[i+1:]
	}
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return feet, nil
	}
	if !strings.HasSuffix(rest, `"`) {
		return 0, fmt.Errorf("invalid length %q", raw)
	}
	inches, err := parseInches(strings.TrimSpace(strings.TrimSuffix(rest, `"`)))
	if err != nil {
		return 0, fmt.Errorf("invalid inches in %q", raw)
	}
	return feet + inches/12.0, nil
}

// parseInches handles "3", "3.5" and "3 1/2".
func parseInches(s string) (float64, error) {
	if s == "" {
		return 0, fmt.Errorf("empty inches")
	}
	whole := s
	frac := 0.0
	if fields := strings.Fields(s); len(fields) == 2 {
		whole = fields[0]
		f, err := parseFraction(fields[1])
		if err != nil {
			return 0, err
		}
		frac = f
	} else if strings.Contains(s, "/") {
		return parseFraction(s)
	}
	v, err := strconv.ParseFloat(whole, 64)
	if err != nil {
		return 0, err
	}
	return v + frac, nil
}

func parseFraction(s string) (float64, error) {
	num, den, ok := strings.Cut(s, "/")
	if !ok {
		return 0, fmt.Errorf("not a fraction: %q", s)
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(num), 64)
	if err != nil {
		return 0, err
	}
	d, err := strconv.ParseFloat(strings.TrimSpace(den), 64)
	if err != nil {
		return 0, err
	}
	if d == 0 {
		return 0, fmt.Errorf("zero denominator in %q", s)
	}
	return n / d, nil
}
