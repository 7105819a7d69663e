package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/manwarsd/dreamboard/internal/export"
)

var (
	exportOutDir string
	exportJSON   bool
)

var exportCmd = &cobra.Command{
	Use:   "export <story-id>",
	Short: "Write the story's selected clips as a CMX3600 EDL",
	Args:  cobra.ExactArgs(1),
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportOutDir, "out", ".", "Directory to write the EDL to")
	exportCmd.Flags().BoolVar(&exportJSON, "json", false, "Print the result as JSON")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	a, err := openApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	st, err := a.stories.GetStory(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	assembly := export.ClipsFromStory(st)
	path, err := export.WriteEDL(exportOutDir, assembly)
	if err != nil {
		return err
	}

	resp := export.ExportResponse{
		Status:          "ok",
		Format:          "edl",
		OutputPath:      path,
		ClipCount:       len(assembly.Clips),
		UnresolvedClips: assembly.Unresolved,
	}

	out := cmd.OutOrStdout()
	if exportJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	size := "?"
	if fi, err := os.Stat(path); err == nil {
		size = humanize.Bytes(uint64(fi.Size()))
	}
	fmt.Fprintf(out, "Wrote %s (%d clips, %s)\n", path, resp.ClipCount, size)
	if len(resp.UnresolvedClips) > 0 {
		fmt.Fprintf(out, "Skipped scenes without a selected video: %v\n", resp.UnresolvedClips)
	}
	return nil
}
