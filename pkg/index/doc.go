// Package index is the durable record store of a dataset: one JSON document
// mapping document id to its lifecycle record.
//
// A record moves discovered -> downloading -> complete, or to failed with an
// incremented retry count. "downloading" never survives a restart: Open moves
// such records back to discovered, because the download they describe did
// not finish. Failed records stop being offered for download once their retry
// count reaches the configured ceiling; Exhausted lists them for review.
package index
