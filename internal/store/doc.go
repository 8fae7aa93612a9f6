// Package store provides persistence for conversations and their messages.
//
// # Overview
//
// The store is the durable record of every conversation session and its
// ordered message history. It is deliberately narrow: conversations are
// created, listed, retitled and deleted; messages are appended and read
// back in insertion order. Messages are never edited or reordered.
//
// # Implementations
//
//   - SQLiteStore: production store backed by modernc.org/sqlite. Message
//     appends bump the parent conversation's updated_at in the same
//     transaction, and deletes remove the conversation together with all
//     its messages so no orphan rows survive.
//   - MemStore: in-memory implementation with the same semantics, used by
//     tests of the layers above.
//
// # Consistency
//
// All mutating operations are atomic with respect to concurrent readers.
// Read-your-writes holds per session: a message reported as appended is
// visible to the next GetMessages call.
package store
