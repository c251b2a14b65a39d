package cfb

import (
	"io"
	"strings"
	"testing"

	"github.com/cfbfile/olecf/directory"
	"github.com/cfbfile/olecf/internal/testfixture"
	"github.com/cfbfile/olecf/source"
)

func openFixture(t *testing.T, opts ...Option) *Reader {
	t.Helper()
	src := source.NewMemory(testfixture.Build())
	r, err := Open(src, opts...)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return r
}

func TestOpenAndFind(t *testing.T) {
	r := openFixture(t)
	defer r.Close()

	e, err := r.Find(testfixture.BigStreamName)
	if err != nil {
		t.Fatalf("Find(%s): %v", testfixture.BigStreamName, err)
	}
	if int(e.StreamSize) != testfixture.BigStreamData {
		t.Errorf("StreamSize = %d, want %d", e.StreamSize, testfixture.BigStreamData)
	}
}

func TestFindAcceptsLeadingBackslash(t *testing.T) {
	r := openFixture(t)
	defer r.Close()

	// The path separator is backslash and a single leading separator
	// is ignored.
	e, err := r.Find(`\` + testfixture.BigStreamName)
	if err != nil {
		t.Fatalf(`Find(\%s): %v`, testfixture.BigStreamName, err)
	}
	if int(e.StreamSize) != testfixture.BigStreamData {
		t.Errorf("StreamSize = %d, want %d", e.StreamSize, testfixture.BigStreamData)
	}
}

func TestFindMissingEntry(t *testing.T) {
	r := openFixture(t)
	defer r.Close()

	if _, err := r.Find("DoesNotExist"); err == nil {
		t.Fatal("expected error for missing entry, got nil")
	}
}

func TestRegularStreamRead(t *testing.T) {
	r := openFixture(t)
	defer r.Close()

	e, err := r.Find(testfixture.BigStreamName)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	item, err := r.Stream(e)
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}

	data, err := ReadAll(item)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(data) != testfixture.BigStreamData {
		t.Fatalf("len(data) = %d, want %d", len(data), testfixture.BigStreamData)
	}
	if strings.Count(string(data), "A") != testfixture.BigStreamData {
		t.Error("BigStream content does not consist entirely of 'A' bytes across its two sectors")
	}
}

func TestRegularStreamReadSpansSectorBoundary(t *testing.T) {
	r := openFixture(t)
	defer r.Close()

	e, _ := r.Find(testfixture.BigStreamName)
	item, err := r.Stream(e)
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}

	buf := make([]byte, 20)
	n, err := item.ReadAt(buf, 510) // straddles sector 2 / sector 3 boundary
	if err != nil && err != io.EOF {
		t.Fatalf("ReadAt across sector boundary: %v", err)
	}
	if n != 20 {
		t.Fatalf("n = %d, want 20", n)
	}
	for _, b := range buf {
		if b != 'A' {
			t.Fatalf("cross-boundary read returned %q, want all 'A'", buf)
		}
	}
}

func TestMiniStreamRead(t *testing.T) {
	r := openFixture(t)
	defer r.Close()

	e, err := r.Find(testfixture.SmallStreamName)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	item, err := r.Stream(e)
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}

	data, err := ReadAll(item)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(data) != testfixture.SmallStreamData {
		t.Errorf("got %q, want %q", data, testfixture.SmallStreamData)
	}
}

func TestStreamRejectsNonStreamEntry(t *testing.T) {
	r := openFixture(t)
	defer r.Close()

	if _, err := r.Stream(r.Root()); err == nil {
		t.Fatal("expected error opening the root storage as a stream, got nil")
	}
}

func TestItemSeekAndRead(t *testing.T) {
	r := openFixture(t)
	defer r.Close()

	e, _ := r.Find(testfixture.SmallStreamName)
	item, err := r.Stream(e)
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}

	if _, err := item.Seek(5, io.SeekStart); err != nil {
		t.Fatalf("Seek: %v", err)
	}
	rest := make([]byte, item.Size()-5)
	n, err := item.Read(rest)
	if err != nil && err != io.EOF {
		t.Fatalf("Read after Seek: %v", err)
	}
	if string(rest[:n]) != testfixture.SmallStreamData[5:] {
		t.Errorf("got %q, want %q", rest[:n], testfixture.SmallStreamData[5:])
	}
}

func TestWalkVisitsEveryEntry(t *testing.T) {
	r := openFixture(t)
	defer r.Close()

	seen := map[string]bool{}
	r.Walk(func(e *directory.Entry) bool {
		seen[e.Name] = true
		return true
	})

	for _, name := range []string{testfixture.BigStreamName, testfixture.SmallStreamName} {
		if !seen[name] {
			t.Errorf("Walk did not visit %q", name)
		}
	}
}

func TestSummaryInformationQuickReference(t *testing.T) {
	r := openFixture(t)
	defer r.Close()

	e := r.SummaryInformation()
	if e == nil {
		t.Fatal("SummaryInformation() = nil, want the fixture's property stream entry")
	}
	if e.Name != testfixture.SummaryStreamName {
		t.Errorf("name = %q, want %q", e.Name, testfixture.SummaryStreamName)
	}
	if r.DocumentSummaryInformation() != nil {
		t.Error("DocumentSummaryInformation() should be nil for this fixture")
	}
}

func TestItemTellTracksCursor(t *testing.T) {
	r := openFixture(t)
	defer r.Close()

	e, _ := r.Find(testfixture.BigStreamName)
	item, err := r.Stream(e)
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if item.Tell() != 0 {
		t.Fatalf("initial Tell() = %d, want 0", item.Tell())
	}
	buf := make([]byte, 100)
	if _, err := item.Read(buf); err != nil && err != io.EOF {
		t.Fatalf("Read: %v", err)
	}
	if item.Tell() != 100 {
		t.Errorf("Tell() after 100-byte read = %d, want 100", item.Tell())
	}
}

func TestAllocationReportsOccupancy(t *testing.T) {
	r := openFixture(t)
	defer r.Close()

	major, minor := r.FormatVersion()
	if major == 0 {
		t.Errorf("FormatVersion major = %d, want nonzero", major)
	}
	_ = minor

	stats := r.Allocation()
	if stats.SATEntries == 0 {
		t.Error("Allocation().SATEntries = 0, want nonzero")
	}
	if stats.SSATEntries == 0 {
		t.Error("Allocation().SSATEntries = 0, want nonzero")
	}
}

func TestAbortIsHonored(t *testing.T) {
	aborted := false
	r := openFixture(t, WithAbort(func() bool { return aborted }))
	defer r.Close()

	e, _ := r.Find(testfixture.BigStreamName)
	item, err := r.Stream(e)
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}

	aborted = true
	buf := make([]byte, 10)
	if _, err := item.ReadAt(buf, 0); err == nil {
		t.Fatal("expected abort error, got nil")
	}
}
