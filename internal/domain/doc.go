// Package domain contains the core business entities of the report pipeline:
// fund investments, their shallow and deep report lifecycles, and the report
// payload shapes the generator is asked to produce. It is independent of any
// specific store or LLM backend.
package domain
