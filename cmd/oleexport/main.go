// Command oleexport walks an OLE Compound File's storage/stream tree and
// writes every stream to a mirrored directory structure on the host
// filesystem.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cfbfile/olecf/cfblog"
	"github.com/cfbfile/olecf/codepage"
	"github.com/cfbfile/olecf/pkg/olecf"
)

var (
	flagTargetDir string
	flagLogFile   string
	flagCodepage  string
	flagVerbose   bool
	flagVersion   bool
)

const version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:   "oleexport [flags] FILE",
	Short: "Export every stream of an OLE Compound File to a directory tree",
	Args:  cobra.MaximumNArgs(1),
	RunE:  run,
}

func init() {
	rootCmd.Flags().StringVarP(&flagTargetDir, "target", "t", "", "directory to export the stream tree into (required)")
	rootCmd.Flags().StringVarP(&flagLogFile, "logfile", "l", "", "write diagnostic output to this file instead of stderr")
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
		fmt.Println("oleexport", version)
		return nil
	}
	if len(args) != 1 {
		return fmt.Errorf("exactly one FILE argument is required")
	}
	if flagTargetDir == "" {
		return fmt.Errorf("-t <target-dir> is required")
	}
	if !codepage.Valid(codepage.Name(flagCodepage)) {
		return fmt.Errorf("unsupported codepage %q", flagCodepage)
	}

	logSink := os.Stderr
	if flagLogFile != "" {
		f, err := os.Create(flagLogFile)
		if err != nil {
			return fmt.Errorf("create logfile %s: %w", flagLogFile, err)
		}
		defer f.Close()
		logSink = f
	}
	level := slog.LevelWarn
	if flagVerbose {
		level = slog.LevelDebug
	}
	logger := cfblog.New(slog.New(slog.NewTextHandler(logSink, &slog.HandlerOptions{Level: level})))

	f, err := olecf.Open(args[0], olecf.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("open %s: %w", args[0], err)
	}
	defer f.Close()

	if err := os.MkdirAll(flagTargetDir, 0o755); err != nil {
		return fmt.Errorf("create target directory %s: %w", flagTargetDir, err)
	}

	root := f.Root()
	if root == nil {
		return nil
	}
	return exportTree(f, root, "", flagTargetDir)
}

// exportTree mirrors item's children under dir: storages become
// subdirectories, streams become files holding their raw bytes. Name
// components are sanitized for the host filesystem. path is item's
// full container path, threaded explicitly so children more than one
// level deep resolve correctly via f.Find.
func exportTree(f *olecf.File, item *olecf.Item, path, dir string) error {
	for _, name := range item.Children() {
		childPath := joinPath(path, name)
		child, err := f.Find(childPath)
		if err != nil {
			continue
		}

		hostName := sanitizeName(name)
		hostPath := filepath.Join(dir, hostName)

		if child.IsStorage() {
			if err := os.MkdirAll(hostPath, 0o755); err != nil {
				return fmt.Errorf("mkdir %s: %w", hostPath, err)
			}
			if err := exportTree(f, child, childPath, hostPath); err != nil {
				return err
			}
			continue
		}

		if err := exportStream(f, child, hostPath); err != nil {
			return fmt.Errorf("export %s: %w", childPath, err)
		}
	}
	return nil
}

func exportStream(f *olecf.File, item *olecf.Item, hostPath string) error {
	data, err := f.ReadAll(item)
	if err != nil {
		return err
	}
	return os.WriteFile(hostPath, data, 0o644)
}

func joinPath(parent, child string) string {
	if parent == "" {
		return child
	}
	return parent + `\` + child
}

// sanitizeName replaces path separators and control characters (such
// as the \x05 byte that prefixes well-known property-set stream names)
// with '_', so the name is safe on common host filesystems.
func sanitizeName(name string) string {
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.Map(func(r rune) rune {
		if r < 0x20 {
			return '_'
		}
		return r
	}, name)
	if name == "" {
		return "_"
	}
	return name
}
