// Package errlog records operator-facing failure entries.
//
// Every failed job produces one [Entry] that references the job and carries
// the raw failure text users never see. The log keeps only the newest
// entries (see [WithRetention]); older ones are trimmed on append.
//
//	svc := errlog.NewService(store, errlog.WithRetention(100))
//	ref, err := svc.LogError(ctx, errlog.Record{
//	    Message: "render failed: content policy",
//	    JobID:   j.ID,
//	    Reason:  "provider-failure",
//	    Source:  "engine",
//	})
package errlog
