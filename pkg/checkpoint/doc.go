// Package checkpoint holds the crash-safe file primitives behind every piece of
// durable mirror state (the dataset index and the resume cursor).
//
// All writes go through WriteFile: stage to "<path>.tmp", fsync, rename over
// the target. A crash at any point leaves either the previous file or the new
// one in place.
package checkpoint
