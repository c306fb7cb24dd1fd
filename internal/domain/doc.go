// Package domain contains the core business entities of the daily planner:
// tasks and the daily plans generated from them. It is independent of any
// specific infrastructure or delivery mechanism.
package domain
