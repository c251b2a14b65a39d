package directory

import (
	"encoding/binary"
	"testing"

	"github.com/cfbfile/olecf/alloc"
	"github.com/cfbfile/olecf/cfberr"
	"github.com/cfbfile/olecf/cfblog"
	"github.com/cfbfile/olecf/header"
	"github.com/cfbfile/olecf/internal/testfixture"
	"github.com/cfbfile/olecf/source"
)

func buildTree(t *testing.T) *Tree {
	t.Helper()
	src := source.NewMemory(testfixture.Build())
	h, err := header.Parse(src)
	if err != nil {
		t.Fatalf("header.Parse: %v", err)
	}
	msat, err := alloc.BuildMSAT(src, h, cfblog.Discard, alloc.DefaultMaxChainDepth)
	if err != nil {
		t.Fatalf("BuildMSAT: %v", err)
	}
	sat, err := alloc.BuildSAT(src, h, msat)
	if err != nil {
		t.Fatalf("BuildSAT: %v", err)
	}
	tree, err := Parse(src, h, sat, cfblog.Discard, DefaultMaxTreeDepth)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return tree
}

func TestParseAssemblesTree(t *testing.T) {
	tree := buildTree(t)

	if tree.Root.Type != TypeRootStorage {
		t.Fatalf("root type = %v, want TypeRootStorage", tree.Root.Type)
	}
	if len(tree.Root.Children) != 3 {
		t.Fatalf("root has %d children, want 3", len(tree.Root.Children))
	}

	big, ok := tree.Root.Children[testfixture.BigStreamName]
	if !ok {
		t.Fatal("BigStream not found under root")
	}
	if big.StreamSize != testfixture.BigStreamData {
		t.Errorf("BigStream size = %d, want %d", big.StreamSize, testfixture.BigStreamData)
	}

	small, ok := tree.Root.Children[testfixture.SmallStreamName]
	if !ok {
		t.Fatal("SmallStream not found under root")
	}
	if small.Type != TypeStream {
		t.Errorf("SmallStream type = %v, want TypeStream", small.Type)
	}
}

func TestParseRecordsPropertySetQuickReferences(t *testing.T) {
	tree := buildTree(t)

	if tree.SummaryInformation == nil {
		t.Fatal("SummaryInformation quick reference not recorded")
	}
	if tree.SummaryInformation.Name != testfixture.SummaryStreamName {
		t.Errorf("SummaryInformation name = %q, want %q",
			tree.SummaryInformation.Name, testfixture.SummaryStreamName)
	}
	if tree.DocumentSummaryInformation != nil {
		t.Error("DocumentSummaryInformation should be nil for a fixture without one")
	}
}

func TestParseWithoutRootStorageIsEmptyTree(t *testing.T) {
	// A directory whose entries are all empty has no content; opening
	// must succeed and yield a tree with no root rather than an error.
	h := &header.Header{
		SectorSize:                    512,
		Order:                         binary.LittleEndian,
		RootDirectorySectorIdentifier: 0,
	}
	buf := make([]byte, 512+512) // header + one all-zero directory sector
	src := source.NewMemory(buf)
	sat := alloc.Table{header.SectorEndOfChain}

	tree, err := Parse(src, h, sat, cfblog.Discard, DefaultMaxTreeDepth)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if tree.Root != nil {
		t.Error("tree.Root should be nil for a directory without a root storage")
	}
}

func TestReadChainToleratesCycle(t *testing.T) {
	// A directory sector chain that loops back to its own first sector
	// must still open, reading each distinct sector exactly once.
	h := &header.Header{SectorSize: 512}
	buf := make([]byte, 512+512) // header + one sector
	src := source.NewMemory(buf)

	sat := alloc.Table{0} // sector 0's next entry points back to itself

	data, err := readChain(src, h, sat, 0)
	if err != nil {
		t.Fatalf("readChain: %v", err)
	}
	if len(data) != 512 {
		t.Errorf("len(data) = %d, want 512 (cyclic chain must read its one distinct sector exactly once)", len(data))
	}
}

func TestWalkSiblingsRejectsRevisitedEntry(t *testing.T) {
	// Two entries whose sibling pointers point at each other give two
	// paths to the same entry. Tree assembly must fail with a
	// structural error rather than silently pruning the revisit.
	entries := []*Entry{
		{ID: 0, Type: TypeRootStorage, Children: make(map[string]*Entry), Child: 1},
		{ID: 1, Type: TypeStream, Name: "a", LeftSibling: 2, RightSibling: noStreamID},
		{ID: 2, Type: TypeStream, Name: "b", LeftSibling: 1, RightSibling: noStreamID},
	}
	visited := make([]bool, len(entries))

	err := attachChildren(entries, entries[0], visited, 0, DefaultMaxTreeDepth, cfblog.Discard)
	if err == nil {
		t.Fatal("expected error for an entry reachable more than once, got nil")
	}
	if !cfberr.Is(err, cfberr.Runtime, cfberr.ValueAlreadySet) {
		t.Errorf("err = %v, want Runtime/ValueAlreadySet", err)
	}
}
