package puzzles

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/zyedidia/generic/mapset"

	"locked-study/server/internal/state"
)

var (
	ErrIncorrectAnswer = fmt.Errorf("%w: incorrect answer", state.ErrValidationFailed)
	ErrMalformedAnswer = fmt.Errorf("%w: malformed answer", state.ErrValidationFailed)
	ErrPrerequisite    = fmt.Errorf("%w: another puzzle must be solved first", state.ErrPreconditionUnmet)
)

// validate runs the pure check for a non-jigsaw, non-item puzzle.
func validate(def Definition, secrets state.Secrets, answer string) error {
	expected := ""
	if def.Expected != nil {
		expected = def.Expected(secrets)
	}
	switch def.Kind {
	case KindCode:
		return validateCode(answer, expected, def.Digits)
	case KindClock:
		return validateClock(answer, expected)
	case KindPhrase:
		if normalizePhrase(answer) == "" {
			return ErrMalformedAnswer
		}
		if normalizePhrase(answer) != normalizePhrase(expected) {
			return ErrIncorrectAnswer
		}
		return nil
	case KindColorSet:
		return validateColorSet(answer, expected)
	case KindSequence:
		got := splitList(answer)
		want := splitList(expected)
		if len(got) == 0 {
			return ErrMalformedAnswer
		}
		if strings.Join(got, ",") != strings.Join(want, ",") {
			return ErrIncorrectAnswer
		}
		return nil
	default:
		return fmt.Errorf("%w: puzzle %s has no answer validator", state.ErrInvalidState, def.ID)
	}
}

func validateCode(answer, expected string, digits int) error {
	code := strings.Map(func(r rune) rune {
		if r == '-' || unicode.IsSpace(r) {
			return -1
		}
		return r
	}, answer)
	if code == "" {
		return ErrMalformedAnswer
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return ErrMalformedAnswer
		}
	}
	if digits > 0 && len(code) != digits {
		return ErrMalformedAnswer
	}
	if expected == "" || code != expected {
		return ErrIncorrectAnswer
	}
	return nil
}

// parseClock accepts "H:MM" or "HH:MM" on a 12 hour face.
func parseClock(value string) (int, int, bool) {
	hourText, minuteText, ok := strings.Cut(strings.TrimSpace(value), ":")
	if !ok {
		return 0, 0, false
	}
	hour, err := strconv.Atoi(hourText)
	if err != nil || hour < 1 || hour > 12 {
		return 0, 0, false
	}
	minute, err := strconv.Atoi(minuteText)
	if err != nil || len(minuteText) != 2 || minute < 0 || minute > 59 {
		return 0, 0, false
	}
	return hour, minute, true
}

func validateClock(answer, expected string) error {
	hour, minute, ok := parseClock(answer)
	if !ok {
		return ErrMalformedAnswer
	}
	wantHour, wantMinute, ok := parseClock(expected)
	if !ok || hour != wantHour || minute != wantMinute {
		return ErrIncorrectAnswer
	}
	return nil
}

func normalizePhrase(value string) string {
	return strings.ToUpper(strings.Join(strings.Fields(value), " "))
}

func splitList(value string) []string {
	fields := strings.FieldsFunc(value, func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})
	for i, field := range fields {
		fields[i] = strings.ToLower(field)
	}
	return fields
}

func validateColorSet(answer, expected string) error {
	got := mapset.New[string]()
	for _, color := range splitList(answer) {
		got.Put(color)
	}
	if got.Size() == 0 {
		return ErrMalformedAnswer
	}
	want := mapset.New[string]()
	for _, color := range splitList(expected) {
		want.Put(color)
	}
	if got.Size() != want.Size() {
		return ErrIncorrectAnswer
	}
	match := true
	want.Each(func(color string) {
		if !got.Has(color) {
			match = false
		}
	})
	if !match {
		return ErrIncorrectAnswer
	}
	return nil
}
