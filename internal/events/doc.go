// Package events publishes progress of shallow runs to interested handlers.
//
// The task package emits a RunEvent after every persisted batch and once
// when a run finishes. Handlers such as the CLI progress printer register
// with an EventEmitter and never see the task package types directly.
package events
