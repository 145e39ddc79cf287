// Package polling implements queue.Backend over any Store that can lease
// messages, such as a SQL table or a document collection.
//
// Guarantee: at-least-once with competing consumers. Ack deletes the message,
// Nack releases it for immediate redelivery, and an expired lease makes a
// message claimable again after a crash.
package polling
