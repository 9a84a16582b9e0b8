package export

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kiliankoe/nback/internal/nback"
)

func TestAddGameResultAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "results.txt")
	f := NewFile(path)
	at := time.Date(2024, 3, 2, 10, 30, 0, 0, time.UTC)

	if err := f.AddGameResult(nback.GameResult{GameID: "nback", Score: 31, Accuracy: 88, AverageTime: 640, PlayedAt: at}); err != nil {
		t.Fatalf("should be able to export: %v", err)
	}
	if err := f.AddGameResult(nback.GameResult{GameID: "nback", Score: 12, Accuracy: 40, PlayedAt: at}); err != nil {
		t.Fatalf("should be able to export again: %v", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("should be able to read export: %v", err)
	}
	out := string(b)
	if strings.Count(out, "Brain Training Results") != 1 {
		t.Fatalf("header should be written once:\n%s", out)
	}
	if strings.Count(out, "nback - 2024-03-02 10:30:00") != 2 {
		t.Fatalf("expected two game blocks:\n%s", out)
	}
	for _, want := range []string{"Score: 31", "Accuracy: 88%", "Average reaction time: 640 ms", "Score: 12"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in export:\n%s", want, out)
		}
	}
	if strings.Count(out, "Average reaction time") != 1 {
		t.Fatal("untracked reaction time should be omitted")
	}
}
