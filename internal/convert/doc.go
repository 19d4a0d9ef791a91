// Package convert maps flat OpenKIM records onto the canonical archive.
//
// Each record becomes one run. The steps run in a fixed order against a
// shared record.View:
//
//  1. program identity (runner id, creation time)
//  2. structures, one system per lattice-parameter entry
//  3. quantities: energies and temperatures aligned by index, stress on the
//     last calculation
//  4. workflows: elastic, interface and phonon classifiers, independently
//  5. passthrough of every key the previous steps did not consume
//
// Failures inside a step are recorded as *Error values, logged, and never
// abort the record or its siblings.
package convert
