// Package dataset moves investments between files and the store: building
// the base snapshot from the holdings CSV, importing it as pending work,
// exporting the store, and picking deep report candidates.
package dataset
