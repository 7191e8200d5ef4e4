// Package trace records what the optimizer did and how long it took.
//
// A Tracer receives events: spans around the pipeline and each pass,
// and point events for per-loop decisions such as a partition or a
// trimmed range. Tracers travel through the passes in a
// context.Context:
//
//	ctx = trace.WithTracer(ctx, t)
//	span := trace.Begin(trace.FromContext(ctx), trace.ScopePass, "partition", 0)
//	defer span.End("")
//
// The level picks the coarsest scope that is still recorded:
//
//	phase   driver and pass spans
//	detail  plus per-loop events
//	debug   plus per-simplification events
//
// Events go to a StreamTracer writing text or NDJSON as they happen, to
// a RingTracer holding the most recent events for a dump after a
// failure, or to both through a MultiTracer.
//
//	loopopt opt --trace=- --trace-level=detail kernel.lir
package trace
