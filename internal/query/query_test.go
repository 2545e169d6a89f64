package query

import (
	"testing"

	"notilog/internal/record"
)

func sample() []record.Record {
	return []record.Record{
		{ID: "1", Name: "Ada", Phone: "1", Email: "a@x.com", State: "NY", NotificationType: "SMS", UniqueID: "u1", Status: "Initialize"},
		{ID: "2", Name: "Bob", Phone: "2", Email: "b@x.com", State: "ny", NotificationType: "EMAIL", UniqueID: "u2", Status: "Initialize"},
		{ID: "3", Name: "Cyd", Phone: "3", Email: "c@x.com", State: "CA", NotificationType: "SMS", UniqueID: "u3", Status: "Initialize"},
	}
}

func TestFilterNoCriteria(t *testing.T) {
	records := sample()

	for _, criteria := range []map[string]string{nil, {}, {"state": ""}} {
		got := Filter(records, criteria)
		if len(got) != len(records) {
			t.Fatalf("criteria %v: expected full set, got %d records", criteria, len(got))
		}
		for i := range got {
			if got[i] != records[i] {
				t.Fatalf("criteria %v: order changed at %d", criteria, i)
			}
		}
	}
}

func TestFilterCaseInsensitive(t *testing.T) {
	records := sample()

	upper := Filter(records, map[string]string{"state": "NY"})
	lower := Filter(records, map[string]string{"state": "ny"})
	if len(upper) != 2 || len(lower) != 2 {
		t.Fatalf("expected 2 matches for both cases, got %d and %d", len(upper), len(lower))
	}
	for i := range upper {
		if upper[i] != lower[i] {
			t.Fatal("case variants should yield the same set")
		}
	}
}

func TestFilterMultipleCriteria(t *testing.T) {
	got := Filter(sample(), map[string]string{"state": "NY", "notificationType": "SMS"})
	if len(got) != 1 || got[0].ID != "1" {
		t.Fatalf("expected only record 1, got %+v", got)
	}
}

func TestFilterUnknownFieldIgnored(t *testing.T) {
	got := Filter(sample(), map[string]string{"zipCode": "10001"})
	if len(got) != 3 {
		t.Fatalf("unknown field should not filter, got %d records", len(got))
	}
}

func TestFilterNoMatches(t *testing.T) {
	got := Filter(sample(), map[string]string{"state": "TX"})
	if len(got) != 0 {
		t.Fatalf("expected no matches, got %d", len(got))
	}
}

func TestGroup(t *testing.T) {
	counts := Group(sample())

	if counts.ByState["NY"] != 1 || counts.ByState["ny"] != 1 || counts.ByState["CA"] != 1 {
		t.Errorf("unexpected state counts: %v", counts.ByState)
	}
	if counts.ByNotificationType["SMS"] != 2 || counts.ByNotificationType["EMAIL"] != 1 {
		t.Errorf("unexpected notification type counts: %v", counts.ByNotificationType)
	}
}

func TestGroupEmpty(t *testing.T) {
	counts := Group(nil)
	if len(counts.ByState) != 0 || len(counts.ByNotificationType) != 0 {
		t.Fatalf("expected empty groups, got %+v", counts)
	}
}

func TestEstimatedBytes(t *testing.T) {
	records := []record.Record{
		{ID: "ab"},          // 2
		{Name: "cde"},       // 3
		{UniqueID: "fghij"}, // 5
	}
	if got := EstimatedBytes(records); got != 10 {
		t.Fatalf("expected 10, got %d", got)
	}
	if got := EstimatedBytes(nil); got != 0 {
		t.Fatalf("expected 0 for empty input, got %d", got)
	}
}

func TestUsage(t *testing.T) {
	percent, status := Usage(0, 1000)
	if percent != 0 || status != StatusAvailable {
		t.Errorf("empty store: expected 0%% AVAILABLE, got %v%% %s", percent, status)
	}

	percent, status = Usage(500, 1000)
	if percent != 50 || status != StatusAvailable {
		t.Errorf("half full: expected 50%% AVAILABLE, got %v%% %s", percent, status)
	}

	percent, status = Usage(1000, 1000)
	if percent != 100 || status != StatusFull {
		t.Errorf("exactly full: expected 100%% FULL, got %v%% %s", percent, status)
	}

	percent, status = Usage(1500, 1000)
	if percent != 150 || status != StatusFull {
		t.Errorf("over full: expected 150%% FULL, got %v%% %s", percent, status)
	}
}
