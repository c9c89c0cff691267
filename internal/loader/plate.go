package loader

import (
	"regexp"
	"strings"

	"github.com/Veraticus/contaflow/internal/model"
)

// UnknownPlate marks fuel invoices whose free text only carries an odometer
// reading.
const UnknownPlate = "?"

// Plate shapes in the order they are tried. Motorcycle plates come first so
// their leading M is kept.
var platePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)m\s?\d{6}`),
	regexp.MustCompile(`(?i)CL\d{6}`),
	regexp.MustCompile(`(?i)[A-Z]{2,3}[\s\-]?\d{3,4}|\d{6}|[A-Z]{3}\d{3}`),
}

var plateKeywords = []*regexp.Regexp{
	regexp.MustCompile(`(?i)placa\s*[:=]`),
	regexp.MustCompile(`(?i)pl\s*:`),
}

var (
	kmPrefix    = regexp.MustCompile(`(?i)^km[\s\-]`)
	kmCode      = regexp.MustCompile(`(?i)^km\s?\d+$`)
	kmReading   = regexp.MustCompile(`(?i)km[\s:]?\d+`)
	kmFiller    = regexp.MustCompile(`[:\s\-_.,;]+`)
	plateJunk   = regexp.MustCompile(`[^\w\s\-]`)
	spaceRuns   = regexp.MustCompile(`\s+`)
	keywordSpan = 50
)

// ExtractPlate finds a vehicle plate in an invoice's free text. A plate
// following a "placa:" or "pl:" label wins over one found elsewhere. Text
// holding nothing but an odometer reading yields UnknownPlate.
func ExtractPlate(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", false
	}

	for _, kw := range plateKeywords {
		loc := kw.FindStringIndex(text)
		if loc == nil {
			continue
		}
		after := []rune(text[loc[1]:])
		if len(after) > keywordSpan {
			after = after[:keywordSpan]
		}
		if plate := searchPlate(string(after)); plate != "" {
			return plate, true
		}
	}
	if plate := searchPlate(text); plate != "" {
		return plate, true
	}
	if onlyOdometer(text) {
		return UnknownPlate, true
	}
	return "", false
}

func searchPlate(text string) string {
	for i, re := range platePatterns {
		// The last shape must not start on an odometer label.
		found := findFrom(re, text, i == len(platePatterns)-1)
		if found == "" {
			continue
		}
		if kmCode.MatchString(strings.TrimSpace(found)) {
			return ""
		}
		return cleanPlate(found)
	}
	return ""
}

func findFrom(re *regexp.Regexp, text string, skipKM bool) string {
	for off := 0; off < len(text); {
		loc := re.FindStringIndex(text[off:])
		if loc == nil {
			return ""
		}
		start := off + loc[0]
		if skipKM && kmPrefix.MatchString(text[start:]) {
			off = start + 1
			continue
		}
		return text[start : off+loc[1]]
	}
	return ""
}

func cleanPlate(s string) string {
	s = spaceRuns.ReplaceAllString(strings.TrimSpace(s), " ")
	s = plateJunk.ReplaceAllString(s, "")
	return strings.ToUpper(s)
}

func onlyOdometer(text string) bool {
	if !kmReading.MatchString(text) {
		return false
	}
	for _, kw := range plateKeywords {
		if kw.MatchString(text) {
			return false
		}
	}
	rest := kmFiller.ReplaceAllString(kmReading.ReplaceAllString(text, ""), "")
	return len([]rune(rest)) < 5
}

// issuerExcluded reports whether company skips plate extraction for the
// invoice issuer, named either by its display name or its identifier.
func issuerExcluded(company model.CompanyProfile, name, id string) bool {
	folded := FoldKey(name)
	for _, ex := range company.ExcludedIssuers {
		if strings.TrimSpace(ex) == "" {
			continue
		}
		if (folded != "" && FoldKey(ex) == folded) || NormalizeCounterparty(ex) == id {
			return true
		}
	}
	return false
}
