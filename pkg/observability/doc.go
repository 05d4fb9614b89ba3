/*
Package observability exposes the intake engine through Prometheus.

Metrics turns the engine's LifecycleHooks into counters and histograms, and
instruments HTTP handlers. Each Metrics owns its own registry, so several
engines (or tests) never collide on registration.

	metrics := observability.NewMetrics("intake")
	eng, _ := intake.New(intake.WithLifecycleHooks(metrics.Hooks()))
	http.Handle("/metrics", metrics.Handler())
*/
package observability
