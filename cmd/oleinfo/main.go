// Command oleinfo prints structural and property-set information about
// an OLE Compound File.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/cfbfile/olecf/cfblog"
	"github.com/cfbfile/olecf/codepage"
	"github.com/cfbfile/olecf/pkg/olecf"
	"github.com/cfbfile/olecf/propset"
)

var (
	flagAll      bool
	flagCodepage string
	flagVerbose  bool
	flagVersion  bool
)

const version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:   "oleinfo [flags] FILE",
	Short: "Display information about an OLE Compound File",
	Args:  cobra.MaximumNArgs(1),
	RunE:  run,
}

func init() {
	rootCmd.Flags().BoolVarP(&flagAll, "all", "a", false, "show allocation table info (sector sizes, SAT/SSAT occupancy)")
	rootCmd.Flags().StringVarP(&flagCodepage, "codepage", "c", "ascii", "codepage for legacy (non-Unicode) property strings")
	rootCmd.Flags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable verbose diagnostic output")
	rootCmd.Flags().BoolVarP(&flagVersion, "version", "V", false, "print version information and exit")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	if flagVersion {
		fmt.Println("oleinfo", version)
		return nil
	}
	if len(args) != 1 {
		return fmt.Errorf("exactly one FILE argument is required")
	}
	if !codepage.Valid(codepage.Name(flagCodepage)) {
		return fmt.Errorf("unsupported codepage %q", flagCodepage)
	}

	level := slog.LevelWarn
	if flagVerbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	logger := cfblog.New(slog.New(handler))

	f, err := olecf.Open(args[0], olecf.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("open %s: %w", args[0], err)
	}
	defer f.Close()

	if root := f.Root(); root != nil {
		printTree(f, root, "", "")
	} else {
		fmt.Println("(container has no content)")
	}

	if ps, err := f.SummaryInformationSet(propset.ASCIICodepage(codepage.Name(flagCodepage))); err == nil {
		printSummary(ps)
	}

	if flagAll {
		printAllocation(f)
	}

	return nil
}

func printTree(f *olecf.File, item *olecf.Item, path, indent string) {
	kind := "stream"
	if item.IsStorage() {
		kind = "storage"
	}
	fmt.Printf("%s%s [%s]", indent, displayName(item.Name()), kind)
	if item.IsStream() {
		fmt.Printf(" (%d bytes)", item.Size())
	}
	fmt.Println()

	for _, name := range item.Children() {
		childPath := joinPath(path, name)
		child, err := f.Find(childPath)
		if err != nil {
			continue
		}
		printTree(f, child, childPath, indent+"  ")
	}
}

func joinPath(parent, child string) string {
	if parent == "" || parent == "Root Entry" {
		return child
	}
	return parent + `\` + child
}

func displayName(name string) string {
	if name == "" {
		return "Root Entry"
	}
	return name
}

func printSummary(ps *propset.PropertySet) {
	fmt.Println()
	fmt.Println("SummaryInformation:")
	for _, sec := range ps.Sections {
		for id, prop := range sec.Properties {
			fmt.Printf("  0x%04X: %s\n", id, formatValue(prop.Value))
		}
	}
}

func printAllocation(f *olecf.File) {
	major, minor := f.FormatVersion()
	stats := f.Allocation()
	fmt.Println()
	fmt.Println("Allocation:")
	fmt.Printf("  format version:   %d.%d\n", major, minor)
	fmt.Printf("  sector size:      %d\n", f.SectorSize())
	fmt.Printf("  short sector size: %d\n", f.ShortSectorSize())
	fmt.Printf("  SAT entries:      %d (%d free)\n", stats.SATEntries, stats.FreeSATSectors)
	fmt.Printf("  SSAT entries:     %d (%d free)\n", stats.SSATEntries, stats.FreeSSATSectors)
	fmt.Printf("  MSAT sectors:     %d\n", stats.NumberOfMSATSectors)
}

func formatValue(v propset.Value) string {
	switch {
	case v.Str != "":
		return v.Str
	case !v.Time.IsZero():
		return v.Time.Format("2006-01-02T15:04:05Z")
	case v.Bytes != nil:
		return fmt.Sprintf("<%d bytes>", len(v.Bytes))
	default:
		if v.UInt != 0 {
			return fmt.Sprintf("%d", v.UInt)
		}
		return fmt.Sprintf("%d", v.Int)
	}
}
