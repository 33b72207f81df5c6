// Package mirror is the run orchestrator. It takes a list of datasets and,
// for each in turn, runs the stages the mode asks for:
//
//	scan      pagination scanner only
//	download  reconciler, then acquisition engine
//	sync      scanner, reconciler, engine
//
// Stages that talk to the remote collection run through a recovery loop:
// when the session expires or a verification page appears, the human is
// asked to fix it and the stage is re-entered. Every stage resumes from the
// dataset index and cursor on disk, so re-entering is always safe.
package mirror
