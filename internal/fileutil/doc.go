// Package fileutil locates mining inputs on disk.
//
// ScanDirectory walks a directory and filters files by extension, suffix and
// a regex on the file stem. FindEventLogs and FindTraceFiles build on it and
// accept either a single file or a directory, so commands can take both:
//
//	logs, err := fileutil.FindEventLogs("data/", false)
//	// data/ps_5000000_5100000_event_log.csv, ...
//
// Hidden directories are never entered. Results are absolute and sorted, and
// errors on individual entries are collected in ScanResult.Errors instead of
// aborting the walk.
package fileutil
