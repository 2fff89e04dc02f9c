// Package studio provides a durable generation job engine for templated
// AI video renders. A caller reserves quota, creates a job, and the engine
// drives it through submission, polling, and terminal reconciliation with
// the quota ledger, the error log, and the user's notification channel.
//
// Studio is designed as a library. Import it, pick a store, a renderer
// client, a ledger and a notification channel, and wire them into an
// engine.
//
// # Quick Start
//
//	eng, err := engine.New(engine.Deps{
//	    Store:    redisstore.New(client),
//	    Resolver: template.NewResolver(catalog),
//	    Renderer: kie.New(apiKey),
//	    Ledger:   ledger.NewRedis(client, "studio", 1),
//	    Notifier: notify.NewDispatcher(telegram.New(token)),
//	})
//	if err := eng.Start(ctx); err != nil { ... } // runs recovery
//	j, err := eng.Create(ctx, job.CreateRequest{OwnerID: 42, TemplateID: "greeting", ...})
//
// # Architecture
//
// Each subsystem (job, errlog) defines its own store interface and a single
// backend (memory, redis, postgres) implements all of them. The engine owns
// the job state machine (queued -> processing -> done | failed) and the
// recovery procedure that re-attaches to in-flight renders after a restart.
//
// All entity IDs use TypeID: type-prefixed, K-sortable, UUIDv7-based
// identifiers.
package studio
