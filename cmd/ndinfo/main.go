// Inspection tool for NDTiff datasets.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/robert-malhotra/go-ndtiff/internal/index"
	"github.com/robert-malhotra/go-ndtiff/ndtiff"
)

func main() {
	root := &cobra.Command{
		Use:   "ndinfo",
		Short: "Inspect NDTiff datasets",
	}
	root.AddCommand(infoCmd(), indexCmd(), axesCmd())
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func infoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <dataset-dir>",
		Short: "Print a dataset summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := args[0]
			if !ndtiff.IsNDTiffDataset(dir) {
				return fmt.Errorf("%s does not look like an NDTiff dataset", dir)
			}
			s, err := ndtiff.Open(dir)
			if err != nil {
				return err
			}
			defer s.Close()

			fmt.Printf("Location:          %s\n", s.DiskLocation())
			fmt.Printf("Layout version:    %d\n", s.MajorVersionDetected())
			fmt.Printf("Tiled:             %v\n", s.IsTiled())
			fmt.Printf("Resolution levels: %d\n", s.NumResLevels())
			fmt.Printf("Images:            %d\n", len(s.AxesSet()))
			fmt.Printf("Size on disk:      %s\n", humanize.IBytes(uint64(s.DatasetSize())))
			if bounds, ok := s.ImageBounds(); ok {
				fmt.Printf("Pixel bounds:      [%d, %d, %d, %d]\n", bounds[0], bounds[1], bounds[2], bounds[3])
			}

			var summary map[string]interface{}
			if err := json.Unmarshal(s.SummaryMetadata(), &summary); err == nil {
				keys := make([]string, 0, len(summary))
				for k := range summary {
					keys = append(keys, k)
				}
				sort.Strings(keys)
				fmt.Printf("Summary keys:      %v\n", keys)
			}
			if ds := s.DisplaySettings(); ds != nil {
				fmt.Printf("Display settings:  %s\n", humanize.IBytes(uint64(len(ds))))
			}
			return nil
		},
	}
}

func indexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "index <level-dir>",
		Short: "Dump the NDTiff.index entries of one resolution level",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := index.ReadLog(filepath.Join(args[0], index.FileName))
			if err != nil {
				return err
			}
			for _, e := range entries {
				bitDepth, _ := e.BitDepth()
				fmt.Printf("%s\t%s\tpix@%d %dx%d %d-bit rgb=%v\tmd@%d+%d\n",
					e.AxesKey, e.Filename, e.PixOffset, e.PixWidth, e.PixHeight,
					bitDepth, e.IsRGB(), e.MDOffset, e.MDLength)
			}
			fmt.Fprintf(os.Stderr, "%d entries\n", len(entries))
			return nil
		},
	}
}

func axesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "axes <dataset-dir>",
		Short: "List the coordinates of every image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := ndtiff.Open(args[0])
			if err != nil {
				return err
			}
			defer s.Close()

			keys := make([]string, 0)
			for _, ax := range s.AxesSet() {
				data, err := json.Marshal(ax)
				if err != nil {
					continue
				}
				keys = append(keys, string(data))
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Println(k)
			}
			return nil
		},
	}
}
