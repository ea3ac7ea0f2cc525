package devicesettings

import (
	"sync"
	"testing"
)

func strPtr(s string) *string { return &s }

func TestCurrent_DefaultsToAllUnset(t *testing.T) {
	snap := Current()
	if snap.AudioOutput != nil || snap.AudioInput != nil || snap.VideoInput != nil {
		t.Fatalf("expected a fresh snapshot to have every field unset, got %+v", snap)
	}
}

func TestSetters_UpdateIndependently(t *testing.T) {
	defer func() {
		SetAudioOutput(nil)
		SetAudioInput(nil)
		SetVideoInput(nil)
	}()

	SetAudioOutput(strPtr("speaker-1"))
	snap := Current()
	if snap.AudioOutput == nil || *snap.AudioOutput != "speaker-1" {
		t.Fatalf("expected AudioOutput=speaker-1, got %+v", snap)
	}
	if snap.AudioInput != nil || snap.VideoInput != nil {
		t.Fatalf("expected only AudioOutput set, got %+v", snap)
	}

	SetVideoInput(strPtr("cam-1"))
	snap = Current()
	if snap.AudioOutput == nil || *snap.AudioOutput != "speaker-1" {
		t.Fatalf("expected AudioOutput to survive an unrelated SetVideoInput, got %+v", snap)
	}
	if snap.VideoInput == nil || *snap.VideoInput != "cam-1" {
		t.Fatalf("expected VideoInput=cam-1, got %+v", snap)
	}

	SetAudioOutput(nil)
	snap = Current()
	if snap.AudioOutput != nil {
		t.Fatalf("expected AudioOutput to be clearable back to nil, got %+v", snap)
	}
}

func TestSwap_IsRaceFreeUnderConcurrentWriters(t *testing.T) {
	defer func() {
		SetAudioOutput(nil)
		SetAudioInput(nil)
		SetVideoInput(nil)
	}()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(3)
		go func() { defer wg.Done(); SetAudioOutput(strPtr("a")) }()
		go func() { defer wg.Done(); SetAudioInput(strPtr("b")) }()
		go func() { defer wg.Done(); SetVideoInput(strPtr("c")) }()
	}
	wg.Wait()

	snap := Current()
	if snap.AudioOutput == nil || snap.AudioInput == nil || snap.VideoInput == nil {
		t.Fatalf("expected every field set after concurrent writers settle, got %+v", snap)
	}
}
