package logger

import (
	"strings"
	"sync"
	"testing"
)

func TestProgressBarRender(t *testing.T) {
	tests := []struct {
		name    string
		current int
		total   int
		want    string
	}{
		{name: "empty", current: 0, total: 4, want: "[          ] 0/4 (0%)"},
		{name: "half", current: 2, total: 4, want: "[=====     ] 2/4 (50%)"},
		{name: "complete", current: 4, total: 4, want: "[==========] 4/4 (100%)"},
		{name: "zero total", current: 0, total: 0, want: "[          ] 0/0 (0%)"},
		{name: "overflow clamps", current: 9, total: 4, want: "[==========] 9/4 (100%)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pb := NewProgressBar(tt.total, 10, false)
			pb.Update(tt.current)
			if got := pb.Render(); got != tt.want {
				t.Errorf("Render() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestProgressBarColors(t *testing.T) {
	pb := NewProgressBar(2, 10, true)
	pb.Update(1)
	if !strings.HasPrefix(pb.Render(), "\033[36m") {
		t.Error("expected cyan while in progress")
	}
	pb.Increment()
	if !strings.HasPrefix(pb.Render(), "\033[32m") {
		t.Error("expected green when complete")
	}
}

func TestProgressBarDefaultWidth(t *testing.T) {
	pb := NewProgressBar(1, 0, false)
	if pb.width != 10 {
		t.Errorf("expected default width 10, got %d", pb.width)
	}
}

func TestProgressBarConcurrency(t *testing.T) {
	pb := NewProgressBar(100, 10, false)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pb.Increment()
			_ = pb.Render()
		}()
	}
	wg.Wait()

	if pb.Percentage() != 100 {
		t.Errorf("expected 100%%, got %d%%", pb.Percentage())
	}
}
