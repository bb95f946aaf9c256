// Package filestore provides a directory-backed storage backend.
//
// Every physical key is one file named base64url(key)+".val". Writes go to a
// temporary file that is renamed into place, so readers in other processes
// never observe a torn value. Watch turns directory events into
// storage.Change values, which is how processes sharing a directory learn
// about each other's writes.
package filestore
