// Package regeneration runs plan regenerations: it writes the placeholder,
// snapshots the owner's active tasks, streams plan text from the generator and
// commits the accumulated text after every fragment.
//
// Runs for the same owner and date are serialized; runs for different keys
// proceed independently.
package regeneration
