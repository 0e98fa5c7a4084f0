// Package pipeline drives a crawl from page generation to written records.
//
// A concurrent run connects three worker pools with two bounded queues:
//
//	generators -> URL queue -> fetch/cache workers -> page queue -> extract/write workers
//
// Each queue carries a single stop sentinel that consumers re-broadcast, and
// the page queue sentinel is only sent once every fetch worker has returned.
// A fatal error in any worker cancels the shared context, which unblocks all
// queue operations and retry waits.
package pipeline
