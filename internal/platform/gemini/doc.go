// Package gemini implements generation.Generator on top of Google's Gemini
// models through the google.golang.org/genai client, against either Vertex AI
// or the Gemini API.
//
// Requests always ask for application/json output constrained by the
// request schema. The shallow profile waits for one buffered reply; the deep
// profile streams and concatenates chunks, which keeps long generations from
// tripping intermediate proxies. Both collapse to a single decoded value.
package gemini
