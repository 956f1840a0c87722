package validation

import (
	"regexp"
	"strconv"
)

// AgeCheck is the outcome of the age-gate heuristic
type AgeCheck struct {
	Allowed        bool    `json:"allowed"`
	NeedsConsult   bool    `json:"needs_consult"`
	DoseMultiplier float64 `json:"dose_multiplier"`
	Reason         string  `json:"reason,omitempty"`
	RestrictedUpTo int     `json:"restricted_up_to,omitempty"`
}

// Contraindication markers naming an upper age limit, e.g. "만 12세 이하", "6세 미만",
// "under 12", "12 years and under".
var ageLimitPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(\d{1,3})\s*세\s*(?:이하|미만)`),
	regexp.MustCompile(`(?i)under\s+(\d{1,3})`),
	regexp.MustCompile(`(?i)(\d{1,3})\s*years?\s*(?:old\s+)?(?:and|or)\s+under`),
}

// CheckAge applies the age gate to a contraindication text.
// Nothing beyond the explicit age markers is parsed.
func CheckAge(age int, text string) AgeCheck {
	check := AgeCheck{Allowed: true, DoseMultiplier: DoseMultiplier(age)}

	if age < 2 {
		check.Allowed = false
		check.Reason = "not for children under 2"
		return check
	}

	if limit, ok := restrictedAge(text); ok {
		check.RestrictedUpTo = limit
		if age <= limit {
			check.Allowed = false
			check.Reason = "contraindicated at age " + strconv.Itoa(limit) + " and under"
			return check
		}
	}

	if age < 7 {
		check.NeedsConsult = true
		check.Reason = "consult a doctor or pharmacist for children under 7"
	}
	return check
}

// DoseMultiplier scales an adult dose by age
func DoseMultiplier(age int) float64 {
	switch {
	case age < 3:
		return 0
	case age < 7:
		return 0.25
	case age < 15:
		return 0.5
	default:
		return 1
	}
}

// restrictedAge returns the highest age limit named in text
func restrictedAge(text string) (int, bool) {
	limit, found := 0, false
	for _, re := range ageLimitPatterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			n, err := strconv.Atoi(m[1])
			if err != nil {
				continue
			}
			if !found || n > limit {
				limit, found = n, true
			}
		}
	}
	return limit, found
}
