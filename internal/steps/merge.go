package steps

// MergeFunc combines the three known derivations of today's count: the
// service baseline, the application baseline and the value already stored.
type MergeFunc func(service, app, stored int64) int64

// MaxMerge keeps whichever writer has seen the most steps. A transient
// overcount is preferred to an undercount.
func MaxMerge(service, app, stored int64) int64 {
	return max(service, app, stored)
}
