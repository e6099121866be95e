package core

import (
	"context"
	"errors"
	"log/slog"
	"testing"
)

type fakeComponent struct {
	name     string
	startErr error
	log      *[]string
}

func (c *fakeComponent) Start() error {
	*c.log = append(*c.log, "start:"+c.name)
	return c.startErr
}

func (c *fakeComponent) Stop(_ context.Context) error {
	*c.log = append(*c.log, "stop:"+c.name)
	return nil
}

func TestApp_StartStopOrder(t *testing.T) {
	t.Parallel()

	var log []string
	app := NewApp(slog.Default())
	app.Append("first", &fakeComponent{name: "first", log: &log})
	app.Append("second", &fakeComponent{name: "second", log: &log})

	if err := app.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	app.Stop()

	want := []string{"start:first", "start:second", "stop:second", "stop:first"}
	if len(log) != len(want) {
		t.Fatalf("log = %v, want %v", log, want)
	}
	for i := range want {
		if log[i] != want[i] {
			t.Errorf("log[%d] = %q, want %q", i, log[i], want[i])
		}
	}
}

func TestApp_StartFailureRollsBack(t *testing.T) {
	t.Parallel()

	var log []string
	app := NewApp(slog.Default())
	app.Append("ok", &fakeComponent{name: "ok", log: &log})
	app.Append("broken", &fakeComponent{name: "broken", startErr: errors.New("boom"), log: &log})

	err := app.Start()
	if err == nil {
		t.Fatal("Start() = nil, want error")
	}

	// The healthy component must have been stopped again.
	found := false
	for _, entry := range log {
		if entry == "stop:ok" {
			found = true
		}
	}
	if !found {
		t.Errorf("log = %v, missing rollback stop", log)
	}
}

func TestApp_IgnoresPassiveComponents(t *testing.T) {
	t.Parallel()

	app := NewApp(slog.Default())
	app.Append("passive", struct{}{})

	if err := app.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	app.Stop()
}

func TestApp_StopIdempotent(t *testing.T) {
	t.Parallel()

	var log []string
	app := NewApp(slog.Default())
	app.Append("only", &fakeComponent{name: "only", log: &log})

	if err := app.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	app.Stop()
	app.Stop()

	stops := 0
	for _, entry := range log {
		if entry == "stop:only" {
			stops++
		}
	}
	if stops != 1 {
		t.Errorf("component stopped %d times, want 1", stops)
	}
}
