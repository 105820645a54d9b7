// Package pipeline implements the admission pipeline: a bounded
// number of challenges are serviced concurrently, any excess waits in
// a strict FIFO queue, and every admitted ticket is tracked in an
// active set so shutdown can drain in-flight work before exiting.
package pipeline
