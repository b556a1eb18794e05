// Package agent runs the reasoning loop of one conversation.
//
// The loop alternates between asking the model and executing the tools it
// requested until the model answers without tools or the iteration budget is
// spent. Progress is reported as events on a Sink.
package agent
