package reconcile

// Guard decides before any remote call whether a record is left alone.
type Guard interface {
	Skip(record any) (reason string, skip bool, err error)
}

// Option configures a Reconciler.
type Option func(*options)

type options struct {
	skipUnchanged bool
	guards        []Guard
	runID         string
}

// WithSkipUnchanged compares desired fields with the matched record and only
// writes the ones that differ. A record with no difference becomes
// Skipped("unchanged") and issues no write.
func WithSkipUnchanged() Option {
	return func(o *options) { o.skipUnchanged = true }
}

// WithGuard adds a skip rule evaluated after the key and before Find.
// A nil guard is ignored.
func WithGuard(g Guard) Option {
	return func(o *options) {
		if g != nil {
			o.guards = append(o.guards, g)
		}
	}
}

// WithRunID labels the report. By default the run ID comes from the context.
func WithRunID(id string) Option {
	return func(o *options) { o.runID = id }
}
