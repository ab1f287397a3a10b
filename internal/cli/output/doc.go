// Package output renders abook-cli results as a table, JSON or YAML.
//
// Commands hand a result value to the Formatter chosen by --output. The
// table formatter understands *Table, structs (one FIELD/VALUE row per
// field) and slices of structs (one row per element). Column names come
// from json tags; a `table:"-"` tag hides a field.
package output
