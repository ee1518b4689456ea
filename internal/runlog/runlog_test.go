package runlog

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	apperrors "mirror-batch/internal/platform/errors"
)

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

func TestOpenCreatesLayout(t *testing.T) {
	base := t.TempDir()
	now := time.Date(2024, 3, 9, 14, 5, 7, 0, time.Local)

	run, err := Open(base, "Kopia_Stron_HTTrack", now)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer run.Close()

	wantDir := filepath.Join(base, "Kopia_Stron_HTTrack_2024-03-09")
	if run.Dir() != wantDir {
		t.Fatalf("expected dir %q, got %q", wantDir, run.Dir())
	}
	if !run.Started().Equal(now) {
		t.Fatalf("expected start %v, got %v", now, run.Started())
	}
	for _, p := range []string{run.RunLogPath(), run.FailedListPath()} {
		if _, err := os.Stat(p); err != nil {
			t.Fatalf("expected %s to exist: %v", p, err)
		}
	}

	archive := run.ArchivePath(now.Add(90 * time.Minute))
	if want := filepath.Join(base, "Kopia_Stron_HTTrack_2024-03-09_153507.tar.gz"); archive != want {
		t.Fatalf("expected archive %q, got %q", want, archive)
	}
}

func TestArchivePathKeepsStartDate(t *testing.T) {
	start := time.Date(2024, 3, 9, 23, 50, 0, 0, time.Local)
	run, err := Open(t.TempDir(), "Kopia", start)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer run.Close()

	got := filepath.Base(run.ArchivePath(start.Add(20 * time.Minute)))
	if got != "Kopia_2024-03-09_001000.tar.gz" {
		t.Fatalf("unexpected archive name %q", got)
	}
}

func TestSuccessAndFailureLines(t *testing.T) {
	run, err := Open(t.TempDir(), "Kopia", time.Now())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if err := run.Success("example.com"); err != nil {
		t.Fatalf("Success: %v", err)
	}
	exitErr := &apperrors.ExitError{Binary: "httrack", Domain: "foo.org", Code: 1}
	if err := run.Failure("foo.org", exitErr); err != nil {
		t.Fatalf("Failure: %v", err)
	}
	spawnErr := apperrors.NewMissingBinaryError("httrack")
	if err := run.Failure("bar.pl", spawnErr); err != nil {
		t.Fatalf("Failure: %v", err)
	}
	if err := run.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	wantLog := "✅ Sukces: example.com\n" +
		"❌ Błąd: foo.org\n" +
		"❌ Błąd (wyjątek): bar.pl - 'httrack' no encontrado en PATH\n"
	if diff := cmp.Diff(wantLog, readFile(t, run.RunLogPath())); diff != "" {
		t.Fatalf("run log mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff("foo.org\nbar.pl\n", readFile(t, run.FailedListPath())); diff != "" {
		t.Fatalf("failed list mismatch (-want +got):\n%s", diff)
	}
}

func TestReopenAppends(t *testing.T) {
	base := t.TempDir()
	now := time.Now()

	first, err := Open(base, "Kopia", now)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	_ = first.Failure("a.pl", errors.New("boom"))
	first.Close()

	second, err := Open(base, "Kopia", now)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	_ = second.Failure("b.pl", errors.New("boom"))
	second.Close()

	if diff := cmp.Diff("a.pl\nb.pl\n", readFile(t, FailedListIn(second.Dir()))); diff != "" {
		t.Fatalf("failed list mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteAfterClose(t *testing.T) {
	run, err := Open(t.TempDir(), "Kopia", time.Now())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := run.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := run.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if err := run.Success("example.com"); !errors.Is(err, os.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}
