// Package pipeline provides the stage executors of the dashboard chain and the
// Executor that runs them against one run's PipelineContext.
//
// # Chain
//
// A run walks four stages, each wrapping exactly one upstream call:
//
//	random user   -> writes subject_country_name
//	country info  -> reads subject_country_name, writes currency_code, country_iso_code
//	exchange rate -> reads currency_code
//	news          -> reads country_iso_code (terminal)
//
// The auxiliary "country brief" stage reads subject_country_name and writes nothing.
//
// # Run lifecycle
//
// Begin allocates a fresh context in the RunStore and returns its run id. Step loads
// the context for a run id, executes one stage, persists the context when the stage
// changed it and ends the run when the stage is terminal or any chain stage fails.
// Runs abandoned mid-chain are reclaimed by Release or by the store's TTL.
//
// Failures are returned as *domain.StageFailure so callers can attribute them to
// the stage and map them to a status code.
package pipeline
