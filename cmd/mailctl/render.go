package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"mailout/internal/render"
	"mailout/internal/thumbnail"
)

func newRenderCmd() *cobra.Command {
	var (
		file       string
		profile    string
		thumbURL   string
		thumbLimit time.Duration
		out        string
	)
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render a campaign request's template elements to HTML",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, ok := render.ProfileByName(profile)
			if !ok {
				return fmt.Errorf("unknown profile %q (gmail, standard)", profile)
			}
			req, err := readRequest(file)
			if err != nil {
				return err
			}

			r := &render.Renderer{}
			if thumbURL != "" {
				r.Thumbnails = thumbnail.NewClient(thumbURL, thumbLimit)
			}
			res := r.Render(cmd.Context(), render.Template{
				Name:         req.Name,
				Elements:     req.TemplateElements,
				Canvas:       req.CanvasSettings,
				FallbackHTML: req.HTMLContent,
			}, p)

			for _, w := range res.Warnings {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s %s: %s\n", w.Kind, w.Element, w.Message)
			}
			if res.Degraded {
				fmt.Fprintln(cmd.ErrOrStderr(), "warning: rendered from htmlContent fallback")
			}

			if out == "" || out == "-" {
				_, err = io.WriteString(cmd.OutOrStdout(), res.HTML)
				return err
			}
			return os.WriteFile(out, []byte(res.HTML), 0o644)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "-", "send-campaign request JSON (- for stdin)")
	cmd.Flags().StringVar(&profile, "profile", render.StandardProfile.Name, "client profile: gmail or standard")
	cmd.Flags().StringVar(&thumbURL, "thumbnails", "", "thumbnail compositor endpoint for video elements")
	cmd.Flags().DurationVar(&thumbLimit, "thumbnail-timeout", 3*time.Second, "thumbnail probe timeout")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")
	return cmd
}
