// Package memory is the bundled memory-augmentation engine.
//
// An Engine wraps one provider handle for one (entity, process)
// attribution. Generate recalls the entity's stored facts, injects them
// above the prompt, calls the model and queues the turn for augmentation.
// A single worker drains the queue in FIFO order: it extracts facts from the
// user's message, scrubs secrets, embeds and writes them through a Conn.
// AugmentAndWait is the barrier: it returns once every job queued before
// the call has been committed.
//
// Durable storage is a chromem-go persistent database reached only through
// a ConnFactory.
package memory
