// Package concat presents a succession of independent targets as a single continuous
// sink. Chunks are routed to whichever target currently holds the cursor, and the sink
// moves on to the next target from its supply whenever the current one rejects a chunk.
//
// The package deliberately knows nothing about what a target is. Anything that can hand
// out an exclusive Writer can be concatenated, and anything that can produce those
// targets one at a time can act as the supply.
package concat
