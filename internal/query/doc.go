// Package query fetches raw OpenKIM records from the remote query service
// and stores each one as a single-record input file for conversion.
package query
