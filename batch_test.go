package beacon

import "testing"

func TestEventBatchStopsAtSessionBoundary(t *testing.T) {
	snapshot := []EventRecord{
		{EventIndex: 0, GroupTag: "old"},
		{EventIndex: 1, GroupTag: "old"},
		{EventIndex: 2, GroupTag: "new"},
		{EventIndex: 3, GroupTag: "old"},
	}

	got := eventBatch(snapshot, 10)
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}
	if got[0].EventIndex != 0 || got[1].EventIndex != 1 {
		t.Errorf("unexpected batch %v", got)
	}

	got = eventBatch(snapshot[2:], 10)
	if len(got) != 1 || got[0].EventIndex != 2 {
		t.Errorf("later runs of a group must not be pulled forward, got %v", got)
	}
}

func TestEventBatchCapsSize(t *testing.T) {
	snapshot := make([]EventRecord, 25)
	for i := range snapshot {
		snapshot[i] = EventRecord{EventIndex: uint64(i), GroupTag: "s"}
	}
	if got := eventBatch(snapshot, DefaultBatchSize); len(got) != DefaultBatchSize {
		t.Errorf("expected %d records, got %d", DefaultBatchSize, len(got))
	}
	if got := eventBatch(nil, 10); got != nil {
		t.Errorf("expected nil for empty queue, got %v", got)
	}
}

func TestLogBatch(t *testing.T) {
	snapshot := make([]LogRecord, 12)
	if got := logBatch(snapshot, 10); len(got) != 10 {
		t.Errorf("expected 10 records, got %d", len(got))
	}
	if got := logBatch(snapshot[:3], 10); len(got) != 3 {
		t.Errorf("expected 3 records, got %d", len(got))
	}
}
