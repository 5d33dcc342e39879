// Package wbuf provides the building blocks that transaction stores share for
// buffering writes until commit.
//
//   - Buffer: an ordered google/btree of pending puts and deletes. Reads of a
//     transaction consult the buffer first so that a transaction sees its own
//     writes. At commit the buffer is turned into the write set of a db.Batch.
//
//   - Chunked: a pull iterator over a fetch function that returns committed
//     entries in ordered chunks. The in-memory store fetches from a snapshot,
//     the raft store fetches with linearizable reads, one chunk per round trip.
//
//   - Merge: an iterator that overlays the buffered writes of a range on top of
//     an iterator over committed data. Buffered puts shadow committed values and
//     buffered deletes hide committed keys.
package wbuf
