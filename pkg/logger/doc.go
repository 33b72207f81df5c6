// Package logger provides the structured logging interface used by every
// docmirror component.
//
// It wraps zerolog. Console output is colourised for humans; when a log file
// is configured each event is additionally appended there as one JSON line,
// which makes the file the append-only activity log of a mirror run
// (discoveries, attempts, failures, retry exhaustion, reauthorization).
//
//	log, err := logger.New(&config.LoggingConfig{Level: "info", File: "download.log"})
//	logger.LogActivity(log, logger.EventComplete, "Document stored", map[string]interface{}{
//	    "dataset": 3,
//	    "id":      "EFTA00012345.pdf",
//	})
//
// Tests use NewNopLogger or NewTestLogger, which records messages for
// assertions.
package logger
