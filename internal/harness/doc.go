// Package harness runs YAML conversion scenarios.
//
// A scenario lists flat input records, the expected archive section counts,
// and optional assertions on workflows, issues, extensions and labels. Each
// run uses a fresh converter with a no-op logger, so results depend only on
// the scenario file.
//
// RunWithGolden additionally snapshots the archive in canonical JSON and
// compares it with a golden file under testdata/golden.
package harness
