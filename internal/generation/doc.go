// Package generation defines the boundary between the report pipeline and
// external LLM services. A Generator turns prompt parts and a response schema
// into decoded JSON; CallWithTimeout bounds every call with a hard deadline
// because the remote side may hang.
package generation
