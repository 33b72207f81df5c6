// Package storage manages the document files of a dataset directory.
//
// Documents are staged under a reserved temp suffix and promoted by rename,
// so the presence of a file under its final name means it was completely
// written (and verified, when a VerifyFunc is given).
package storage
