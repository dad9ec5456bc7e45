// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"fmt"
	"testing"

	"github.com/pdiddy/paper-finder/pkg/types"
)

func TestRunBridgedForwardsInOrder(t *testing.T) {
	var got []string
	err := runBridged(func(e types.ProgressEvent) {
		got = append(got, e.Message)
	}, func(notify func(types.ProgressEvent)) error {
		for i := 1; i <= 50; i++ {
			notify(types.ProgressEvent{Message: fmt.Sprintf("event %d", i)})
		}
		return nil
	})
	if err != nil {
		t.Fatalf("runBridged error: %v", err)
	}

	if len(got) != 50 {
		t.Fatalf("forwarded %d events, want 50", len(got))
	}
	for i, msg := range got {
		if want := fmt.Sprintf("event %d", i+1); msg != want {
			t.Fatalf("event %d = %q, want %q", i, msg, want)
		}
	}
}

func TestRunBridgedDrainsBeforeError(t *testing.T) {
	stageErr := fmt.Errorf("stage blew up")
	var got []string
	err := runBridged(func(e types.ProgressEvent) {
		got = append(got, e.Message)
	}, func(notify func(types.ProgressEvent)) error {
		notify(types.ProgressEvent{Message: "before failure"})
		notify(types.ProgressEvent{Message: "also before failure"})
		return stageErr
	})

	if err != stageErr {
		t.Errorf("err = %v, want stage error", err)
	}
	// Events emitted before the failure still arrive.
	if len(got) != 2 {
		t.Errorf("forwarded %d events, want 2", len(got))
	}
}

func TestRunBridgedNoEvents(t *testing.T) {
	called := false
	err := runBridged(func(types.ProgressEvent) {
		called = true
	}, func(func(types.ProgressEvent)) error {
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if called {
		t.Error("sink called with no events emitted")
	}
}
