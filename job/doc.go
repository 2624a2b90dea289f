// Package job defines the scheduled job entity, its run-state machine,
// and the concurrent Table the timing loop reads deadlines from.
//
// # Job Record
//
// A [Record] is one scheduled unit of work: an immutable trigger, an
// opaque callable, concurrency ceilings, and the computed next fire
// time. Records progress through a small state machine:
//
//	scheduled → running → scheduled → ...   (each fire)
//	scheduled ⇄ paused                      (Pause / Resume)
//	any → removed → gone                    (Remove; deletion deferred
//	                                         while instances drain)
//
// A job whose trigger is exhausted is deleted automatically once its
// last instance completes.
//
// # Table
//
// [Table] owns every record. All reads return snapshot copies; the
// deadline min-heap answers "earliest next fire time" without scanning,
// and mutations that may lower that minimum signal the wake channel so
// the timing loop never sleeps on a stale deadline.
//
// # Defining a job
//
//	def := job.NewDefinition("refresh-cache", every5m,
//	    func(ctx context.Context) error { return cache.Refresh(ctx) },
//	    job.WithMaxInstances(1),
//	    job.WithTimeout(30*time.Second),
//	)
//
// [Registry] maps job names to handlers so definitions can round-trip
// through a persistence store and re-bind their callables on restore.
package job
