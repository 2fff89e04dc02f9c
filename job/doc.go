// Package job defines the generation job entity, its state machine, and
// the store contract.
//
// # Job Entity
//
// A [Job] is one requested video generation. It embeds [studio.Entity] for
// timestamps and carries exactly one prompt source: a catalog template
// (TemplateID, DisplayName, Gender) or a RawPrompt. The resolved prompt is
// computed once at creation and never rewritten.
//
//	queued → processing → done
//	queued → processing → failed
//	queued → failed                (recovered panic before processing)
//
// Terminal states are absorbing. AssetURL is set iff the job is done;
// FailureReason iff it failed.
//
// # Updates
//
// Stores apply a [Patch] as a read-merge-write under their own
// concurrency control. A patch that names a state is validated with
// [CanTransition], so a second attempt to finish a job fails with
// studio.ErrInvalidState. The engine relies on this for at-most-once
// terminal handling.
package job
