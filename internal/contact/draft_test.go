package contact

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/wolfman30/lead-chat-agent/internal/extract"
)

func TestMerge_PrefersNewNonEmptyFields(t *testing.T) {
	current := Draft{Name: "דנה", Phone: "0501234567", Subject: "בוטוקס"}
	update := Draft{Email: "dana@example.com", Phone: "052-7654321"}

	got := Merge(current, update)
	want := Draft{Name: "דנה", Phone: "0527654321", Email: "dana@example.com", Subject: "בוטוקס"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("merge mismatch (-want +got):\n%s", diff)
	}
}

func TestMerge_DefaultsOnEmpty(t *testing.T) {
	got := Merge(Draft{}, Draft{})
	want := Draft{Subject: SubjectGeneral}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("merge mismatch (-want +got):\n%s", diff)
	}

	custom := Merger{DefaultSubject: SubjectCallbackRequest}.Merge(Draft{}, Draft{Phone: "0501234567"})
	if custom.Subject != SubjectCallbackRequest {
		t.Fatalf("expected callback subject default, got %q", custom.Subject)
	}
}

func TestMerge_Idempotent(t *testing.T) {
	drafts := []Draft{
		{},
		{Name: "רוני", Subject: "x"},
		{Phone: "050-1234567", Confidence: 90},
	}
	partials := []Draft{
		{},
		{Name: "Dana"},
		{Phone: "052-1111111", Email: "a@b.co", Confidence: 95},
		{Subject: "s", Name: "  "},
	}
	for _, d := range drafts {
		for _, p := range partials {
			once := Merge(d, p)
			twice := Merge(once, p)
			if diff := cmp.Diff(once, twice); diff != "" {
				t.Fatalf("merge not idempotent for %+v / %+v:\n%s", d, p, diff)
			}
		}
	}
}

func TestMerge_LastWriteWinsPerField(t *testing.T) {
	d := Merge(Draft{}, Draft{Name: "A", Phone: "0501111111"})
	d = Merge(d, Draft{Email: "e@x.io"})
	d = Merge(d, Draft{Name: "B"})

	if d.Name != "B" || d.Phone != "0501111111" || d.Email != "e@x.io" {
		t.Fatalf("unexpected merged draft %+v", d)
	}
}

func TestDraftSet(t *testing.T) {
	var d Draft
	if !d.Set(FieldPhone, "050-123-4567") {
		t.Fatal("expected phone field to be accepted")
	}
	if d.Phone != "0501234567" {
		t.Fatalf("phone not normalized: %q", d.Phone)
	}
	if d.Set("age", "30") {
		t.Fatal("unknown field should be rejected")
	}
	d.Set(FieldName, "")
	if d.Name != "" {
		t.Fatal("form edits may clear fields")
	}
}

func TestFromParamsAndExtraction(t *testing.T) {
	p := FromParams(map[string]string{"name": "Dana", "phone": "0501234567", "color": "red"})
	if p.Name != "Dana" || p.Phone != "0501234567" || p.Confidence != ConfidenceConfirmed {
		t.Fatalf("unexpected partial %+v", p)
	}

	e := FromExtraction(extract.Extract("שמי דנה 050-1234567"), ConfidenceExtracted)
	if e.Name != "דנה" || e.Phone != "0501234567" || e.Confidence != ConfidenceExtracted {
		t.Fatalf("unexpected extraction partial %+v", e)
	}
	if !e.Submittable() || !e.HasContact() {
		t.Fatal("expected extraction partial to be submittable")
	}
	if (Draft{Subject: "x"}).HasContact() {
		t.Fatal("subject alone is not contact information")
	}
}
