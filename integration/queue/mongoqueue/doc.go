// Package mongoqueue implements a queue backend on a MongoDB collection.
//
// Each message is a document in queue_messages. Consumers lease documents one
// at a time with FindOneAndUpdate sorted by _id; Ack deletes the document and
// Nack clears the lease.
//
// Guarantee: at-least-once with competing consumers. Leases that expire after
// a crash make the document claimable again.
package mongoqueue
