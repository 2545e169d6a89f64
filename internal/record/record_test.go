package record

import (
	"slices"
	"testing"
)

func complete() Record {
	return Record{
		ID:               "42",
		Name:             "Ada",
		Phone:            "555-0100",
		Email:            "ada@example.com",
		State:            "NY",
		NotificationType: "SMS",
	}
}

func TestMissingComplete(t *testing.T) {
	if missing := complete().Missing(); len(missing) != 0 {
		t.Fatalf("expected no missing fields, got %v", missing)
	}
}

func TestMissingReportsFields(t *testing.T) {
	r := complete()
	r.Email = ""
	r.Phone = ""
	missing := r.Missing()
	if !slices.Equal(missing, []string{"phone", "email"}) {
		t.Fatalf("expected [phone email], got %v", missing)
	}
}

func TestMissingIgnoresSystemFields(t *testing.T) {
	// UniqueID and Status are store-assigned; empty values must not count.
	r := complete()
	r.UniqueID = ""
	r.Status = ""
	if missing := r.Missing(); len(missing) != 0 {
		t.Fatalf("expected no missing fields, got %v", missing)
	}
}

func TestMatchFieldCaseInsensitive(t *testing.T) {
	r := complete()

	for _, want := range []string{"NY", "ny", "Ny"} {
		matched, known := r.MatchField("state", want)
		if !known {
			t.Fatalf("state should be a known field")
		}
		if !matched {
			t.Errorf("state should match %q", want)
		}
	}

	matched, known := r.MatchField("state", "CA")
	if !known || matched {
		t.Errorf("state should not match CA (matched=%v known=%v)", matched, known)
	}
}

func TestMatchFieldNameCaseInsensitive(t *testing.T) {
	r := complete()
	matched, known := r.MatchField("NotificationType", "sms")
	if !known || !matched {
		t.Fatalf("NotificationType should match sms (matched=%v known=%v)", matched, known)
	}
}

func TestMatchFieldUnknown(t *testing.T) {
	_, known := complete().MatchField("shoeSize", "11")
	if known {
		t.Fatal("shoeSize should not be a known field")
	}
}

func TestEstimatedSize(t *testing.T) {
	r := Record{ID: "ab", Name: "cde"}
	if got := r.EstimatedSize(); got != 5 {
		t.Fatalf("expected 5, got %d", got)
	}
	if got := (Record{}).EstimatedSize(); got != 0 {
		t.Fatalf("expected 0 for empty record, got %d", got)
	}
}
