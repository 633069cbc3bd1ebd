package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"mailout/internal/domain"
)

func newSendCmd() *cobra.Command {
	var (
		file    string
		api     string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Submit a campaign to the mailout API",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := readRequest(file)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			resp, err := postCampaign(ctx, &http.Client{}, api, req)
			if err != nil {
				return err
			}
			r := resp.Results
			fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
			fmt.Fprintf(cmd.OutOrStdout(), "  sent: %d  failed: %d  total: %d\n", r.SuccessCount, r.FailureCount, r.TotalRecipients)
			if resp.Campaign != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "  campaign: %s (%s)\n", resp.Campaign.ID, resp.Campaign.Status)
			}
			for _, f := range r.Failures {
				fmt.Fprintf(cmd.OutOrStdout(), "  failed %s: %s\n", f.Email, f.Error)
			}
			if !resp.Success {
				return fmt.Errorf("no messages were accepted")
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "-", "send-campaign request JSON (- for stdin)")
	cmd.Flags().StringVar(&api, "api", "http://localhost:8080", "mailout API base URL")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Minute, "overall request timeout")
	return cmd
}

func postCampaign(ctx context.Context, hc *http.Client, api string, req domain.SendCampaignRequest) (domain.SendCampaignResponse, error) {
	var out domain.SendCampaignResponse
	body, err := json.Marshal(req)
	if err != nil {
		return out, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(api, "/")+"/api/email/send-campaign", bytes.NewReader(body))
	if err != nil {
		return out, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := hc.Do(httpReq)
	if err != nil {
		return out, err
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(raw, &e) == nil && e.Error != "" {
			return out, fmt.Errorf("api returned %d: %s", resp.StatusCode, e.Error)
		}
		return out, fmt.Errorf("api returned %d", resp.StatusCode)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decode response: %w", err)
	}
	return out, nil
}
