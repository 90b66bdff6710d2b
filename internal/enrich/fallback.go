package enrich

import (
	"fmt"
	"strings"

	"github.com/daejeonsafe/safenet/internal/database"
	"github.com/daejeonsafe/safenet/internal/safe182"
)

// Keyword tables for the rule-based fallback classifier. These mirror the
// enrichment service's own backup keyword path so a gateway outage
// degrades quality, not behavior.
var (
	dementiaKeywords     = []string{"치매", "알츠하이머", "기억", "인지", "배회"}
	intellectualKeywords = []string{"지적장애", "발달장애", "정신지체"}
	autismKeywords       = []string{"자폐", "아스퍼거", "자폐스펙트럼"}
	mentalKeywords       = []string{"정신질환", "조현병", "우울증", "정신병"}
	runawayKeywords      = []string{"가출", "연락두절", "의도적"}
	mobilityKeywords     = []string{"휠체어", "보행기", "지팡이"}
	aloneKeywords        = []string{"혼자", "독거", "홀로"}
	wanderKeywords       = []string{"배회", "길잃음", "방향감각"}
	urgencyKeywords      = []string{"치매", "알츠하이머", "기억", "인지", "배회", "정신", "우울증", "약 복용"}
)

var featureKeywords = map[string][]string{
	"diseases":  {"치매", "알츠하이머", "파킨슨", "우울증", "조현병", "뇌전증", "간질"},
	"drugs":     {"약", "복용", "투약", "처방", "치료"},
	"clothing":  {"상의", "하의", "바지", "치마", "셔츠", "티셔츠", "모자", "신발", "양말"},
	"colors":    {"빨간", "파란", "노란", "검은", "흰", "회색", "갈색", "초록", "보라", "분홍"},
	"transport": {"휠체어", "지팡이", "보행기", "택시", "버스", "차량"},
	"behaviors": {"배회", "혼잣말", "반복", "고집", "우울", "불안", "떨림"},
	"items":     {"지갑", "핸드폰", "카드", "현금", "가방", "안경", "시계", "반지", "목걸이"},
}

// Fallback classifies one raw record with age thresholds and keyword
// rules, used when the enrichment service is unavailable.
func Fallback(raw safe182.RawPerson) Result {
	desc := strings.TrimSpace(raw.Features)

	var agePtr *int
	age, hasAge := raw.Age()
	if hasAge {
		v := age
		agePtr = &v
	}

	category := classify(desc, age, hasAge)
	risks := riskFactors(desc, age, hasAge, raw.SexCode)
	priority := prioritize(desc, age, hasAge, category, risks)

	description := desc
	if description == "" && hasAge {
		description = fmt.Sprintf("%d세 %s", age, raw.SexCode)
	}

	return Result{
		ID:           raw.ID(),
		Name:         raw.Name,
		Age:          agePtr,
		Gender:       raw.SexCode,
		Location:     raw.Address,
		Description:  description,
		PhotoDataURL: PhotoDataURL(raw.PhotoBase64),
		Priority:     priority,
		Category:     category,
		RiskFactors:  risks,
		Features:     extractFeatures(desc),
	}
}

func classify(desc string, age int, hasAge bool) string {
	if hasAge {
		switch {
		case age <= 8:
			return database.CategoryPreschoolChild
		case age <= 18:
			return database.CategorySchoolAgeChild
		case age >= 65:
			if containsAny(desc, dementiaKeywords) {
				return database.CategoryDementiaPatient
			}
			return database.CategoryElder
		}
	}

	switch {
	case containsAny(desc, intellectualKeywords):
		return database.CategoryIntellectualDisability
	case containsAny(desc, autismKeywords):
		return database.CategoryAutism
	case containsAny(desc, mentalKeywords):
		return database.CategoryMentalDisorder
	case containsAny(desc, dementiaKeywords):
		return database.CategoryDementiaPatient
	}

	if hasAge && age >= 19 {
		if containsAny(desc, runawayKeywords) {
			return database.CategoryAdultRunaway
		}
		return database.CategoryAdult
	}

	return database.CategoryOther
}

func riskFactors(desc string, age int, hasAge bool, gender string) []string {
	var risks []string

	if hasAge {
		switch {
		case age >= 80:
			risks = append(risks, "고령자(80세 이상)")
		case age >= 65:
			risks = append(risks, "고령자(65세 이상)")
		case age <= 10:
			risks = append(risks, "어린이(10세 이하)")
		case age <= 15:
			risks = append(risks, "청소년(15세 이하)")
		}
	}

	if desc == "" {
		if hasAge && gender == "여자" && age >= 70 {
			risks = append(risks, "고령 여성")
		}
		if hasAge && gender == "남자" && age >= 75 {
			risks = append(risks, "고령 남성")
		}
		return risks
	}

	if containsAny(desc, []string{"치매", "알츠하이머"}) {
		risks = append(risks, "치매 관련 질환")
	}
	if containsAny(desc, []string{"우울증", "조현병"}) {
		risks = append(risks, "정신건강 관련")
	}
	if containsAny(desc, mobilityKeywords) {
		risks = append(risks, "거동 불편")
	}
	if containsAny(desc, []string{"약", "복용", "투약"}) {
		risks = append(risks, "투약 중")
	}
	if containsAny(desc, aloneKeywords) {
		risks = append(risks, "독거 생활")
	}
	if containsAny(desc, wanderKeywords) {
		risks = append(risks, "배회 위험")
	}

	return risks
}

func prioritize(desc string, age int, hasAge bool, category string, risks []string) string {
	if category == database.CategoryDementiaPatient {
		return database.PriorityHigh
	}
	if hasAge && (age <= 8 || age >= 65) {
		return database.PriorityHigh
	}
	if containsAny(desc, urgencyKeywords) {
		return database.PriorityHigh
	}
	for _, r := range risks {
		switch r {
		case "치매 관련 질환", "정신건강 관련", "거동 불편":
			return database.PriorityHigh
		}
	}
	return database.PriorityMedium
}

func extractFeatures(desc string) map[string][]string {
	features := map[string][]string{}
	if desc == "" {
		return features
	}

	for class, keywords := range featureKeywords {
		for _, kw := range keywords {
			if strings.Contains(desc, kw) {
				features[class] = append(features[class], kw)
			}
		}
	}

	for _, line := range strings.Split(desc, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			features["additional"] = append(features["additional"], line)
		}
	}

	return features
}

// PhotoDataURL normalizes an inline photo payload into a data URL,
// detecting JPEG and PNG base64 prefixes. Payloads too short to be a real
// image are dropped.
func PhotoDataURL(b64 string) string {
	if len(b64) <= 50 {
		return ""
	}
	switch {
	case strings.HasPrefix(b64, "data:"):
		return b64
	case strings.HasPrefix(b64, "iVBORw0"):
		return "data:image/png;base64," + b64
	default:
		return "data:image/jpeg;base64," + b64
	}
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
