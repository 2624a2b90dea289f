// Package chrono provides an in-process asynchronous task scheduler for Go.
// Jobs are ordinary functions fired by triggers: a one-shot fires once at a
// fixed instant, an interval fires on a fixed period, and a calendar
// trigger follows a cron expression in a chosen time zone.
//
// Chrono is designed as a library, not a service. Import it, register jobs,
// and subscribe to lifecycle events:
//
//	s, err := chrono.New(
//	    chrono.WithMaxConcurrent(20),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	tr, _ := trigger.NewInterval(time.Now().Add(time.Minute), time.Minute)
//	s.AddJob(job.NewDefinition("heartbeat", tr, func(ctx context.Context) error {
//	    fmt.Println("tick")
//	    return nil
//	}))
//
//	s.Start(ctx)
//	defer s.Stop(ctx)
//
// # Architecture
//
// A single timing loop sleeps until the earliest deadline in the job table,
// waking early whenever the table changes. Due jobs are handed to a bounded
// executor; per-job instance ceilings, a scheduler-wide ceiling, and an
// optional rate limit decide whether an occurrence runs or is reported as
// missed on the event bus.
//
// All job IDs use TypeID — type-prefixed, K-sortable, UUIDv7-based
// identifiers.
package chrono
