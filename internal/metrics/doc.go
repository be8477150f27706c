// Package metrics collects point-in-time stats from running components.
//
// Components register a Source under a name; Snapshot calls every source and
// returns the results keyed by name, for example:
//   - connection manager status and counters
//   - router buffer utilization and parse errors
//   - writer inserts, conflicts and flushes
package metrics
