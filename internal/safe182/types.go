// Package safe182 implements the client for the Safe182 missing-person
// registry and the rate-limited cache that gates polling against it.
package safe182

import (
	"bytes"
	"crypto/md5"
	"fmt"
	"strconv"
)

// Number tolerates the registry's habit of returning numeric fields as
// either JSON numbers or quoted strings.
type Number string

// UnmarshalJSON implements json.Unmarshaler.
func (n *Number) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	if string(b) == "null" {
		*n = ""
		return nil
	}
	*n = Number(b)
	return nil
}

// Int returns the numeric value, or false when absent or malformed.
func (n Number) Int() (int, bool) {
	if n == "" {
		return 0, false
	}
	v, err := strconv.Atoi(string(n))
	if err != nil {
		return 0, false
	}
	return v, true
}

// RawPerson is one case record as returned by the registry. Only the
// fields the pipeline consumes are mapped.
type RawPerson struct {
	Identifier  string `json:"msspsnIdntfccd"`
	Name        string `json:"nm"`
	AgeNow      Number `json:"ageNow"`
	AgeAtTime   Number `json:"age"`
	SexCode     string `json:"sexdstnDscd"`
	Address     string `json:"occrAdres"`
	OccurredAt  string `json:"occrde"`
	Features    string `json:"etcSpfeatr"`
	PhotoBase64 string `json:"tknphotoFile"`
	TargetCode  string `json:"writngTrgetDscd"`
}

// Age returns the person's current age when the registry provides one,
// falling back to the age at time of disappearance.
func (r *RawPerson) Age() (int, bool) {
	if v, ok := r.AgeNow.Int(); ok {
		return v, true
	}
	return r.AgeAtTime.Int()
}

// ID returns a stable record identifier: the registry's own identifier
// when present, otherwise a content-derived hash of the identifying
// fields so repeated polls of the same case reuse one id.
func (r *RawPerson) ID() string {
	if r.Identifier != "" {
		return r.Identifier
	}

	age := ""
	if v, ok := r.Age(); ok {
		age = strconv.Itoa(v)
	}
	key := fmt.Sprintf("%s_%s_%s_%s_%s", r.Name, age, r.SexCode, r.OccurredAt, r.Address)
	return fmt.Sprintf("%x", md5.Sum([]byte(key)))
}
