// Package output renders mirrorsync-cli results as a table, JSON or YAML.
//
// Tables use a struct's json tags for column names and honor a `table:"-"`
// tag to hide a field, or `table:"wide"` to show it only in wide mode. Maps
// render as KEY/VALUE rows sorted by key; nested values are shown as
// compact JSON so a dump of stored state stays one line per key.
package output
