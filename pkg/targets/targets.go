// Suite of reference targets that can be concatenated by a sink. A Target wraps any
// synchronous Inserter with exclusive locking and lifecycle tracking, so each backend only
// needs to implement the act of inserting a chunk.
package targets
