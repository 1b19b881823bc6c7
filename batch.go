package beacon

// DefaultBatchSize caps the number of records in one delivery.
const DefaultBatchSize = 10

// eventBatch returns the longest prefix of snapshot that holds at most
// max records, all sharing the group tag of the first record. Later
// runs of the same group are not pulled forward past a different group.
func eventBatch(snapshot []EventRecord, max int) []EventRecord {
	if len(snapshot) == 0 || max <= 0 {
		return nil
	}
	group := snapshot[0].GroupTag
	n := 0
	for n < len(snapshot) && n < max && snapshot[n].GroupTag == group {
		n++
	}
	return snapshot[:n]
}

// logBatch returns the first max log records.
func logBatch(snapshot []LogRecord, max int) []LogRecord {
	if max <= 0 {
		return nil
	}
	if len(snapshot) > max {
		return snapshot[:max]
	}
	return snapshot
}
