/*
Package shipbrain wires the shipment intelligence core.

# Overview

A Core owns one instance of every component and connects them:

	tracking/order records
	    -> unify (match + merge)      -> brain (registry, lifecycle events)
	    -> event bus                  -> decision engine (rules)
	    -> action executor            -> alerts, notifications, memory
	periodic: pattern detection, learning, insights, sweeps, snapshots

Nothing is global. Build a Core from settings and pass it around:

	settings := config.Defaults()
	core, err := shipbrain.New(settings, shipbrain.WithLogger(logger))
	if err != nil {
	    log.Fatal(err)
	}
	defer core.Close()

	res, err := core.Ingest(ctx, trackings, orders)
	report := core.Analyze(ctx)

# Persistence

Persist writes best-effort snapshots to the configured storage.Store: the
memory entries, the operational context (session blob), the learning model
and the dismissed insight IDs. Shipments are kept in the memory store under
the "shipment" category, so Restore rebuilds the registry too.

# Background work

Run starts the periodic jobs (memory cleanup, alert and decision expiry,
delay refresh, analysis, snapshots) and, when configured, the rule file
watcher. It blocks until the context is cancelled.

# Queries and commands

Query and Command expose the named query handlers (see package query) and
the operator commands (see package operator) for callers that drive the core
by name, such as the CLI.
*/
package shipbrain
