package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"mailout/internal/domain"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "mailctl",
		Short:        "Campaign tooling for the mailout API",
		SilenceUsage: true,
	}
	root.AddCommand(
		newRenderCmd(),
		newSendCmd(),
		newThumbnailCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "mailctl version %s\n", version)
			},
		},
	)
	return root
}

// readRequest loads a send-campaign request body from path, or stdin for "-".
func readRequest(path string) (domain.SendCampaignRequest, error) {
	var req domain.SendCampaignRequest
	var (
		raw []byte
		err error
	)
	if path == "-" {
		raw, err = io.ReadAll(os.Stdin)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return req, fmt.Errorf("read request: %w", err)
	}
	if err := json.Unmarshal(raw, &req); err != nil {
		return req, fmt.Errorf("parse request: %w", err)
	}
	return req, nil
}
