package log

import "time"

// EvaluateRetention deletes whole segments (never partial ones) from the
// oldest end of the log until every configured rule is satisfied. Rules
// are evaluated in the order given; a rule stops once a single segment
// remains, so the newest segment (the one a writer appends to) is never a
// deletion candidate. activeFirstOffset is not consulted when choosing
// segments to delete. It returns the new first offset
// (the caller is expected to feed this into Log.SetFirstOffset so the
// next rollover can trim stale tracking entries) and how many segments
// were removed.
func EvaluateRetention(dir string, rules []RetentionSpec, activeFirstOffset uint64, now time.Time) (newFirstOffset uint64, removed int, err error) {
	segs, err := Overview(dir)
	if err != nil {
		return 0, 0, err
	}

	for _, rule := range rules {
		var n int
		segs, n, err = applyRule(dir, segs, rule, activeFirstOffset, now)
		removed += n
		if err != nil {
			return 0, removed, err
		}
	}

	return firstOffsetOf(segs), removed, nil
}

func applyRule(dir string, segs []SegInfo, rule RetentionSpec, activeFirstOffset uint64, now time.Time) ([]SegInfo, int, error) {
	removed := 0
	for len(segs) > 1 {
		oldest := segs[0]
		if !ruleWantsDeletion(segs, rule, now) {
			break
		}
		if err := removeSegmentFiles(dir, oldest.FirstOffset); err != nil {
			return nil, removed, err
		}
		segs = segs[1:]
		removed++
	}
	return segs, removed, nil
}

func ruleWantsDeletion(segs []SegInfo, rule RetentionSpec, now time.Time) bool {
	if rule.MaxBytes > 0 {
		var total int64
		for _, s := range segs {
			total += s.Size
		}
		if total > int64(rule.MaxBytes) {
			return true
		}
	}
	if rule.MaxAge > 0 {
		oldest := segs[0]
		if oldest.First != nil {
			age := now.Sub(time.UnixMilli(oldest.First.Timestamp))
			if age > rule.MaxAge {
				return true
			}
		}
	}
	return false
}
