package watcher

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// harness drives the watcher with a fake clock and a scripted directory
// listing.
type harness struct {
	w       *Watcher
	now     time.Time
	entries []Entry
	listErr error
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	h := &harness{now: time.Date(2024, time.March, 15, 10, 0, 0, 0, time.UTC)}

	cfg.Inbox = "/inbox"
	if cfg.Stability == 0 {
		cfg.Stability = 5 * time.Second
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = time.Second
	}
	cfg.List = func(string) ([]Entry, error) { return h.entries, h.listErr }
	cfg.Now = func() time.Time { return h.now }

	h.w = New(cfg)
	return h
}

func (h *harness) advance(d time.Duration) { h.now = h.now.Add(d) }

func TestPollDispatchesAfterStability(t *testing.T) {
	h := newHarness(t, Config{})
	h.entries = []Entry{{Name: "scan.pdf", Size: 1000}}

	// First sighting only registers the file.
	assert.Empty(t, h.w.Poll())
	assert.Equal(t, 1, h.w.PendingCount())

	// Still inside the stability window.
	h.advance(3 * time.Second)
	assert.Empty(t, h.w.Poll())

	// Past the window with an unchanged size.
	h.advance(3 * time.Second)
	got := h.w.Poll()
	require.Len(t, got, 1)
	assert.Equal(t, filepath.Join("/inbox", "scan.pdf"), got[0])
	assert.Zero(t, h.w.PendingCount())
}

func TestPollDispatchesAtMostOnce(t *testing.T) {
	h := newHarness(t, Config{})
	h.entries = []Entry{{Name: "scan.pdf", Size: 1000}}

	h.w.Poll()
	h.advance(6 * time.Second)
	require.Len(t, h.w.Poll(), 1)

	// The pipeline may take a while to move the file out of the inbox.
	// However long it lingers unchanged, it is never handed over again.
	assert.Empty(t, h.w.Poll())
	assert.Zero(t, h.w.PendingCount())
	h.advance(time.Second)
	assert.Empty(t, h.w.Poll())
	h.advance(6 * time.Second)
	assert.Empty(t, h.w.Poll())
	assert.Zero(t, h.w.PendingCount())
}

func TestPollRedispatchesAfterDeparture(t *testing.T) {
	h := newHarness(t, Config{})
	h.entries = []Entry{{Name: "scan.pdf", Size: 1000}}

	h.w.Poll()
	h.advance(6 * time.Second)
	require.Len(t, h.w.Poll(), 1)

	// The pipeline moves the file out; a new document under the same
	// name later goes through a full stability cycle of its own.
	h.entries = nil
	assert.Empty(t, h.w.Poll())

	h.entries = []Entry{{Name: "scan.pdf", Size: 1000}}
	assert.Empty(t, h.w.Poll())
	h.advance(6 * time.Second)
	assert.Len(t, h.w.Poll(), 1)
}

func TestPollRedispatchesAfterRewrite(t *testing.T) {
	h := newHarness(t, Config{})
	h.entries = []Entry{{Name: "scan.pdf", Size: 1000}}

	h.w.Poll()
	h.advance(6 * time.Second)
	require.Len(t, h.w.Poll(), 1)

	// The file is overwritten in place before the pipeline picks it up:
	// treat it as new content and wait out a fresh stability window.
	h.entries[0].Size = 2000
	assert.Empty(t, h.w.Poll())
	assert.Equal(t, 1, h.w.PendingCount())
	h.advance(6 * time.Second)
	assert.Len(t, h.w.Poll(), 1)
}

func TestPollSizeChangeResetsClock(t *testing.T) {
	h := newHarness(t, Config{})
	h.entries = []Entry{{Name: "scan.pdf", Size: 1000}}
	h.w.Poll()

	// The file grows just before it would have stabilized.
	h.advance(4 * time.Second)
	h.entries[0].Size = 2000
	assert.Empty(t, h.w.Poll())

	// The old deadline passes but the clock was reset.
	h.advance(2 * time.Second)
	assert.Empty(t, h.w.Poll())

	// A full quiet window after the last growth.
	h.advance(5 * time.Second)
	assert.Len(t, h.w.Poll(), 1)
}

func TestPollDropsVanishedFiles(t *testing.T) {
	h := newHarness(t, Config{})
	h.entries = []Entry{{Name: "temp.pdf", Size: 500}}
	h.w.Poll()
	require.Equal(t, 1, h.w.PendingCount())

	h.entries = nil
	h.advance(6 * time.Second)
	assert.Empty(t, h.w.Poll())
	assert.Zero(t, h.w.PendingCount())
}

func TestPollIgnoresExcludedFiles(t *testing.T) {
	h := newHarness(t, Config{
		MinFileSize:     100,
		ExcludePatterns: []string{"*.tmp", "~*"},
	})
	h.entries = []Entry{
		{Name: ".hidden.pdf", Size: 1000},
		{Name: "partial.tmp", Size: 1000},
		{Name: "~lock.pdf", Size: 1000},
		{Name: "notes.txt", Size: 1000},
		{Name: "tiny.pdf", Size: 50},
		{Name: "good.pdf", Size: 1000},
		{Name: "photo.JPG", Size: 1000},
	}

	h.w.Poll()
	assert.Equal(t, 2, h.w.PendingCount(), "only good.pdf and photo.JPG qualify")

	h.advance(6 * time.Second)
	got := h.w.Poll()
	assert.ElementsMatch(t, []string{
		filepath.Join("/inbox", "good.pdf"),
		filepath.Join("/inbox", "photo.JPG"),
	}, got)
}

func TestPollRetriesAfterListError(t *testing.T) {
	h := newHarness(t, Config{})
	h.entries = []Entry{{Name: "scan.pdf", Size: 1000}}
	h.w.Poll()

	// A transient listing failure must not lose the pending state.
	h.listErr = errors.New("device busy")
	h.advance(6 * time.Second)
	assert.Empty(t, h.w.Poll())
	assert.Equal(t, 1, h.w.PendingCount())

	h.listErr = nil
	assert.Len(t, h.w.Poll(), 1)
}
