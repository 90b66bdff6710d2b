package enrich

import (
	"strings"
	"testing"

	"github.com/daejeonsafe/safenet/internal/database"
	"github.com/daejeonsafe/safenet/internal/safe182"
)

func TestFallbackClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		raw          safe182.RawPerson
		wantCategory string
		wantPriority string
	}{
		{
			name:         "preschool child",
			raw:          safe182.RawPerson{Name: "김민준", AgeNow: "5", SexCode: "남자"},
			wantCategory: database.CategoryPreschoolChild,
			wantPriority: database.PriorityHigh,
		},
		{
			name:         "school age child",
			raw:          safe182.RawPerson{Name: "이서연", AgeNow: "14", SexCode: "여자"},
			wantCategory: database.CategorySchoolAgeChild,
			wantPriority: database.PriorityMedium,
		},
		{
			name:         "elder without dementia markers",
			raw:          safe182.RawPerson{Name: "박정자", AgeNow: "85", SexCode: "여자"},
			wantCategory: database.CategoryElder,
			wantPriority: database.PriorityHigh,
		},
		{
			name: "elder with dementia markers",
			raw: safe182.RawPerson{
				Name: "최영감", AgeNow: "78", SexCode: "남자",
				Features: "치매를 앓고 있으며 배회 습관이 있음",
			},
			wantCategory: database.CategoryDementiaPatient,
			wantPriority: database.PriorityHigh,
		},
		{
			name: "adult with intellectual disability markers",
			raw: safe182.RawPerson{
				Name: "정수현", AgeNow: "32", SexCode: "남자",
				Features: "지적장애 3급",
			},
			wantCategory: database.CategoryIntellectualDisability,
			wantPriority: database.PriorityMedium,
		},
		{
			name: "adult runaway",
			raw: safe182.RawPerson{
				Name: "한지민", AgeNow: "28", SexCode: "여자",
				Features: "가출 후 연락두절",
			},
			wantCategory: database.CategoryAdultRunaway,
			wantPriority: database.PriorityMedium,
		},
		{
			name:         "plain adult",
			raw:          safe182.RawPerson{Name: "오세훈", AgeNow: "40", SexCode: "남자"},
			wantCategory: database.CategoryAdult,
			wantPriority: database.PriorityMedium,
		},
		{
			name:         "no age no markers",
			raw:          safe182.RawPerson{Name: "신원미상"},
			wantCategory: database.CategoryOther,
			wantPriority: database.PriorityMedium,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Fallback(tt.raw)
			if got.Category != tt.wantCategory {
				t.Errorf("category = %s, want %s", got.Category, tt.wantCategory)
			}
			if got.Priority != tt.wantPriority {
				t.Errorf("priority = %s, want %s", got.Priority, tt.wantPriority)
			}
		})
	}
}

func TestFallbackRiskFactors(t *testing.T) {
	t.Parallel()

	got := Fallback(safe182.RawPerson{
		Name: "박정자", AgeNow: "85", SexCode: "여자",
		Features: "치매 약 복용 중이며 혼자 거주",
	})

	want := map[string]bool{
		"고령자(80세 이상)": true,
		"치매 관련 질환":    true,
		"투약 중":        true,
		"독거 생활":       true,
	}
	for _, r := range got.RiskFactors {
		delete(want, r)
	}
	if len(want) != 0 {
		t.Errorf("missing risk factors: %v (got %v)", want, got.RiskFactors)
	}
}

func TestFallbackSynthesizesDescription(t *testing.T) {
	t.Parallel()

	got := Fallback(safe182.RawPerson{Name: "김민준", AgeNow: "5", SexCode: "남자"})
	if got.Description == "" {
		t.Error("empty feature text should still produce a description")
	}
}

func TestFallbackExtractsFeatures(t *testing.T) {
	t.Parallel()

	got := Fallback(safe182.RawPerson{
		Name: "최영감", AgeNow: "70",
		Features: "검은 모자 착용\n지팡이를 짚고 다님",
	})

	if len(got.Features["clothing"]) == 0 {
		t.Errorf("clothing features missing: %v", got.Features)
	}
	if len(got.Features["transport"]) == 0 {
		t.Errorf("transport features missing: %v", got.Features)
	}
	if len(got.Features["additional"]) != 2 {
		t.Errorf("additional lines = %v", got.Features["additional"])
	}
}

func TestPhotoDataURL(t *testing.T) {
	t.Parallel()

	if got := PhotoDataURL("short"); got != "" {
		t.Errorf("short payload should be dropped, got %q", got)
	}

	png := "iVBORw0" + strings.Repeat("A", 60)
	if got := PhotoDataURL(png); !strings.HasPrefix(got, "data:image/png;base64,") {
		t.Errorf("png prefix missing: %q", got)
	}

	jpeg := "/9j/4AAQ" + strings.Repeat("A", 60)
	if got := PhotoDataURL(jpeg); !strings.HasPrefix(got, "data:image/jpeg;base64,") {
		t.Errorf("jpeg prefix missing: %q", got)
	}

	dataURL := "data:image/jpeg;base64," + strings.Repeat("A", 60)
	if got := PhotoDataURL(dataURL); got != dataURL {
		t.Error("existing data url should pass through unchanged")
	}
}
