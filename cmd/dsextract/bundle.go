package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"dsextract/internal/bundle"
	"dsextract/internal/config"
)

func newBundleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bundle",
		Short: "Pack the head of an extraction into a zip archive",
	}

	rows := &cobra.Command{
		Use:   "rows",
		Short: "Zip the header and the first rows of the output CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			input, _ := cmd.Flags().GetString("input")
			out, _ := cmd.Flags().GetString("output")
			n, _ := cmd.Flags().GetInt("rows")
			res, err := bundle.Rows(input, out, n)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "rows:  %s\n", res)
			return nil
		},
	}
	rows.Flags().String("input", config.DefaultOutput, "CSV file to read")
	rows.Flags().String("output", "top_100_rows.zip", "zip file to write")
	rows.Flags().Int("rows", bundle.DefaultCount, "number of data rows")

	imgs := &cobra.Command{
		Use:   "images",
		Short: "Zip the first image files of the images directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("images-dir")
			out, _ := cmd.Flags().GetString("output")
			n, _ := cmd.Flags().GetInt("count")
			res, err := bundle.Images(dir, out, n)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "images: %s\n", res)
			return nil
		},
	}
	imgs.Flags().String("images-dir", config.DefaultImagesDir, "directory holding the images")
	imgs.Flags().String("output", "top_100_images.zip", "zip file to write")
	imgs.Flags().Int("count", bundle.DefaultCount, "number of image files")

	cmd.AddCommand(rows, imgs)
	return cmd
}
