package game

import "testing"

func TestStuckThreshold(t *testing.T) {
	d := NewStuckDetector(10)

	// nine identical reads never fire
	for i := 0; i < 9; i++ {
		if d.Observe("game_loading") {
			t.Fatalf("fired at read %d, want none before 10", i+1)
		}
	}
	// the tenth fires exactly once
	if !d.Observe("game_loading") {
		t.Fatal("10th identical read did not fire")
	}
	// counter was reset; the next read must not fire
	if d.Observe("game_loading") {
		t.Fatal("fired immediately after reset")
	}
}

func TestStuckRetriggersPeriodically(t *testing.T) {
	d := NewStuckDetector(3)

	fires := 0
	for i := 0; i < 9; i++ {
		if d.Observe("game_cutscena") {
			fires++
		}
	}
	if fires != 3 {
		t.Errorf("fires = %d over 9 reads with threshold 3, want 3", fires)
	}
}

func TestStuckSceneChangeResets(t *testing.T) {
	d := NewStuckDetector(10)

	fires := 0
	scenes := []string{"A", "A", "A", "A", "A", "A", "A", "A", "A", "A", "B"}
	for _, s := range scenes {
		if d.Observe(s) {
			fires++
		}
	}
	if fires != 1 {
		t.Errorf("fires = %d, want exactly 1 (after the 10th A)", fires)
	}

	// B started a fresh run of one
	for i := 0; i < 8; i++ {
		if d.Observe("B") {
			t.Fatalf("fired on B after %d additional reads", i+1)
		}
	}
	if !d.Observe("B") {
		t.Error("10th B did not fire")
	}
}

func TestStuckReset(t *testing.T) {
	d := NewStuckDetector(3)
	d.Observe("A")
	d.Observe("A")
	d.Reset()
	if d.Observe("A") || d.Observe("A") {
		t.Error("fired before threshold after Reset")
	}
	if !d.Observe("A") {
		t.Error("threshold not honored after Reset")
	}
}
