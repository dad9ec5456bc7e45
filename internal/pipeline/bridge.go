// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import "github.com/pdiddy/paper-finder/pkg/types"

// bridgeStage is a blocking stage function. Its notify callback may be
// invoked from whatever goroutine the stage runs work on; the bridge makes
// the hand-off safe. The stage must not invoke notify after it returns.
type bridgeStage func(notify func(types.ProgressEvent)) error

// runBridged executes stage on a background goroutine while the calling
// goroutine drains stage progress events into sink, keeping the stream live
// during long synchronous work. Events are forwarded in the order they were
// emitted and none is dropped at shutdown: the channel closes only after
// the stage returns, and runBridged drains it fully before returning the
// stage's error.
//
// Any synchronous stage can be wrapped without modification; the enrichment
// stage is the one that needs it in practice.
func runBridged(sink types.ProgressSink, stage bridgeStage) error {
	events := make(chan types.ProgressEvent, 16)
	done := make(chan error, 1)

	go func() {
		defer close(events)
		done <- stage(func(e types.ProgressEvent) {
			events <- e
		})
	}()

	for e := range events {
		sink(e)
	}
	return <-done
}
