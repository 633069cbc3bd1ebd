package main

import (
	"os"

	"github.com/spf13/cobra"

	"mailout/internal/thumbnail"
)

func newThumbnailCmd() *cobra.Command {
	var (
		src    string
		width  int
		height int
		out    string
	)
	cmd := &cobra.Command{
		Use:   "thumbnail",
		Short: "Compose a play-button thumbnail PNG from an image URL",
		RunE: func(cmd *cobra.Command, args []string) error {
			png, err := thumbnail.NewFetcher().Generate(cmd.Context(), src, width, height)
			if err != nil {
				return err
			}
			if out == "" || out == "-" {
				_, err = cmd.OutOrStdout().Write(png)
				return err
			}
			return os.WriteFile(out, png, 0o644)
		},
	}
	cmd.Flags().StringVar(&src, "url", "", "source image URL (required)")
	cmd.Flags().IntVar(&width, "width", thumbnail.DefaultWidth, "output width")
	cmd.Flags().IntVar(&height, "height", thumbnail.DefaultHeight, "output height")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")
	_ = cmd.MarkFlagRequired("url")
	return cmd
}
