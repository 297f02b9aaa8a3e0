// Package memfile provides an in-memory file with an optional size limit.
// It is used by unit tests which need to simulate a full disk while a PDF
// file is written.
package memfile
