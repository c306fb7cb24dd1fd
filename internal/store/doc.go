// Package store defines interfaces for data persistence operations.
// These interfaces abstract the underlying data storage mechanism from
// the planner's core logic, so the regeneration pipeline and services
// remain independent of specific database technologies.
package store
