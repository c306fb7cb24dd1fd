// Package service contains the application-specific use cases of the
// planner. It coordinates domain objects, the stores in internal/store and
// the regeneration pipeline to serve the delivery mechanisms (HTTP API, CLI).
//
// Key components:
//
//   - TaskService: task CRUD for the authenticated owner. Every successful
//     mutation notifies the RegenerationTrigger.
//   - RegenerationTrigger: schedules a background plan regeneration without
//     blocking the caller.
//   - PlanService: plan queries, synchronous and streamed regeneration, and
//     description suggestions.
//
// Services receive their dependencies through constructor injection and
// never depend on a specific infrastructure implementation.
package service
