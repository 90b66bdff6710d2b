// Package geocode resolves free-text Korean addresses to coordinates
// within the Daejeon target region, using an ordered chain of candidate
// strategies against the Kakao Local address search API.
package geocode

import (
	"regexp"
	"strings"
)

// Region markers. An address (or a geocoder hit) counts as in-region when
// it carries either form of the city name.
const (
	regionFormal     = "대전광역시"
	regionColloquial = "대전"
)

// districts of Daejeon.
var districts = []string{"동구", "중구", "서구", "유성구", "대덕구"}

// outOfRegionKeywords disqualify an address outright when no Daejeon
// marker accompanies them. These are other metro cities and provinces.
var outOfRegionKeywords = []string{
	"서울", "부산", "대구", "인천", "광주", "울산", "세종",
	"경기", "강원", "충북", "충남", "전북", "전남", "경북", "경남", "제주",
}

// neighborhoodDistrict maps well-known Daejeon neighborhoods (동) to their
// administrative district, used to canonicalize partial addresses.
var neighborhoodDistrict = map[string]string{
	"중앙동":  "동구",
	"용전동":  "동구",
	"가양동":  "동구",
	"판암동":  "동구",
	"정동":   "동구",
	"대흥동":  "중구",
	"은행동":  "중구",
	"선화동":  "중구",
	"오류동":  "중구",
	"유천동":  "중구",
	"사정동":  "중구",
	"둔산동":  "서구",
	"탄방동":  "서구",
	"월평동":  "서구",
	"도마동":  "서구",
	"갈마동":  "서구",
	"관저동":  "서구",
	"봉명동":  "유성구",
	"궁동":   "유성구",
	"노은동":  "유성구",
	"지족동":  "유성구",
	"관평동":  "유성구",
	"구성동":  "유성구",
	"도룡동":  "유성구",
	"송촌동":  "대덕구",
	"신탄진동": "대덕구",
	"오정동":  "대덕구",
	"법동":   "대덕구",
}

// landmarks maps well-known place keywords to a canonical administrative
// address the geocoder resolves reliably.
var landmarks = map[string]string{
	"대전역":     "대전광역시 동구 정동",
	"서대전역":    "대전광역시 중구 오류동",
	"대전복합터미널": "대전광역시 동구 용전동",
	"대전시청":    "대전광역시 서구 둔산동",
	"시청":      "대전광역시 서구 둔산동",
	"유성온천":    "대전광역시 유성구 봉명동",
	"충남대":     "대전광역시 유성구 궁동",
	"카이스트":    "대전광역시 유성구 구성동",
	"KAIST":   "대전광역시 유성구 구성동",
	"엑스포":     "대전광역시 유성구 도룡동",
	"한빛탑":     "대전광역시 유성구 도룡동",
	"오월드":     "대전광역시 중구 사정동",
	"뿌리공원":    "대전광역시 중구 침산동",
	"한밭수목원":   "대전광역시 서구 만년동",
}

var roadSuffixes = []string{"대로", "로", "길", "번길"}

var buildingSuffixes = []string{
	"아파트", "빌라", "빌딩", "오피스텔", "맨션", "타운", "주공", "마을",
}

var (
	trailingNumberRe = regexp.MustCompile(`\s*\d+(?:-\d+)?(?:번지|번길|동|호)?$`)
	whitespaceRe     = regexp.MustCompile(`\s+`)
	districtDongRe   = regexp.MustCompile(`(\S+구)\s+(\S+동)`)
)

// hasRegionMarker reports whether the text mentions Daejeon in either
// form. The colloquial form is a prefix of the formal one, so one check
// suffices.
func hasRegionMarker(s string) bool {
	return strings.Contains(s, regionColloquial)
}

// excludedRegion reports whether the address names another region without
// any Daejeon marker, which disqualifies it before any geocoder call.
func excludedRegion(address string) bool {
	if hasRegionMarker(address) {
		return false
	}
	for _, kw := range outOfRegionKeywords {
		if strings.Contains(address, kw) {
			return true
		}
	}
	return false
}

// cleanAddress normalizes a free-text address: slashes become spaces,
// whitespace collapses, building-name suffixes are stripped unless the
// string ends road-style, and trailing lot/building numbers are dropped.
func cleanAddress(address string) string {
	s := strings.NewReplacer("/", " ", "\\", " ").Replace(address)
	s = strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))

	for {
		prev := s
		if !endsWithRoadSuffix(s) {
			tokens := strings.Fields(s)
			for len(tokens) > 0 && isBuildingName(tokens[len(tokens)-1]) {
				tokens = tokens[:len(tokens)-1]
			}
			s = strings.Join(tokens, " ")
		}
		s = strings.TrimSpace(trailingNumberRe.ReplaceAllString(s, ""))
		if s == prev {
			break
		}
	}

	return s
}

func endsWithRoadSuffix(s string) bool {
	for _, suffix := range roadSuffixes {
		if strings.HasSuffix(s, suffix) {
			return true
		}
	}
	return false
}

func isBuildingName(token string) bool {
	for _, suffix := range buildingSuffixes {
		if strings.Contains(token, suffix) {
			return true
		}
	}
	return false
}

// districtNeighborhood canonicalizes an address containing a recognizable
// district+neighborhood pair, or a known neighborhood name, into
// "region district neighborhood". Empty when neither is present.
func districtNeighborhood(address string) string {
	if m := districtDongRe.FindStringSubmatch(address); m != nil {
		return regionFormal + " " + m[1] + " " + m[2]
	}
	for dong, district := range neighborhoodDistrict {
		if strings.Contains(address, dong) {
			return regionFormal + " " + district + " " + dong
		}
	}
	return ""
}

// landmarkAddress returns the canonical address for a known landmark
// keyword in the text, or empty.
func landmarkAddress(address string) string {
	for kw, canonical := range landmarks {
		if strings.Contains(address, kw) {
			return canonical
		}
	}
	return ""
}

// districtKeywordAddress combines the canonical district prefix with the
// address stripped of all region and district self-references. Empty when
// no district keyword is present.
func districtKeywordAddress(address string) string {
	for _, district := range districts {
		if !strings.Contains(address, district) {
			continue
		}
		rest := address
		for _, marker := range append([]string{regionFormal, regionColloquial}, districts...) {
			rest = strings.ReplaceAll(rest, marker, " ")
		}
		rest = strings.TrimSpace(whitespaceRe.ReplaceAllString(rest, " "))
		return strings.TrimSpace(regionFormal + " " + district + " " + rest)
	}
	return ""
}
