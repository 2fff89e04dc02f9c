// Package engine drives generation jobs from creation to a terminal state.
//
// The engine sits above every subsystem package: it resolves prompts
// through the template resolver, submits and polls the renderer, and runs
// terminal handling (ledger, error log, notification) at most once per job.
// The root studio package defines Entity and Config and so cannot import
// those packages back.
//
// # Building an Engine
//
//	eng, err := engine.New(engine.Deps{
//	    Store:    s,
//	    Resolver: template.NewResolver(catalog),
//	    Renderer: kie.New(apiKey),
//	    Ledger:   ledger.NewRedis(client, "studio", 1),
//	    Notifier: notify.NewDispatcher(telegram.New(token)),
//	},
//	    engine.WithConfig(studio.DefaultConfig()),
//	    engine.WithLogger(logger),
//	)
//
// # Running
//
//	// Resume or expire work left over from a previous process.
//	if err := eng.Start(ctx); err != nil { ... }
//
//	j, err := eng.Create(ctx, job.CreateRequest{
//	    OwnerID:     42,
//	    TemplateID:  "greeting",
//	    DisplayName: "Alex",
//	    Gender:      "male",
//	})
//
//	// On shutdown: poll loops stop, jobs stay in processing for the next
//	// start to pick up.
//	eng.Stop(ctx)
//
// Each job runs on its own goroutine wrapped by the middleware chain
// (recover, tracing, metrics, logging, then any [WithMiddleware] entries).
// A panicking task fails its job with reason internal-error.
//
// # Options
//
//   - [WithConfig]: poll interval, attempts, staleness and retention
//   - [WithLogger]: structured logger
//   - [WithExtension]: register a lifecycle extension
//   - [WithMiddleware]: add a middleware to the task chain
//   - [WithClock]: override the time source
//   - [WithTracerProvider]: set the OpenTelemetry tracer provider
//   - [WithMeterProvider]: set the OpenTelemetry meter provider
package engine
