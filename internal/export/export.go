package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/kiliankoe/nback/internal/nback"
)

// File appends a readable block per finished game to a text file.
type File struct {
	mu   sync.Mutex
	path string
}

func NewFile(path string) *File { return &File{path: path} }

// AddGameResult implements nback.HistorySink.
func (f *File) AddGameResult(r nback.GameResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	// Create directory if it doesn't exist
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	fileExists := false
	if _, err := os.Stat(f.path); err == nil {
		fileExists = true
	}

	file, err := os.OpenFile(f.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	var sb strings.Builder
	if !fileExists {
		sb.WriteString("Brain Training Results\n")
		sb.WriteString(strings.Repeat("=", 50) + "\n\n")
	}

	playedAt := r.PlayedAt
	if playedAt.IsZero() {
		playedAt = time.Now()
	}
	sb.WriteString(fmt.Sprintf("%s - %s\n", r.GameID, playedAt.Format("2006-01-02 15:04:05")))
	sb.WriteString(strings.Repeat("-", 40) + "\n")
	sb.WriteString(fmt.Sprintf("Score: %d\n", r.Score))
	sb.WriteString(fmt.Sprintf("Accuracy: %d%%\n", r.Accuracy))
	if r.AverageTime > 0 {
		sb.WriteString(fmt.Sprintf("Average reaction time: %d ms\n", r.AverageTime))
	}
	sb.WriteString("\n")

	if _, err := file.WriteString(sb.String()); err != nil {
		return fmt.Errorf("failed to write to file: %w", err)
	}
	return nil
}
