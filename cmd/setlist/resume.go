package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/setlistapp/setlist/internal/models"
	"github.com/setlistapp/setlist/internal/otp"
	"github.com/setlistapp/setlist/internal/stage"
	"github.com/setlistapp/setlist/internal/store"
	"github.com/spf13/cobra"
)

// newSessionResumeCmd builds the resume command: verify a phone against the
// API and replace the local snapshot with the server's copy of the event.
func newSessionResumeCmd(configPath, statePath, apiBase *string) *cobra.Command {
	var code string

	cmd := &cobra.Command{
		Use:   "resume <event-id-or-share-token> <phone>",
		Short: "Resume an event session from the server",
		Long: `Requests a verification code for the given phone, verifies it, and
replaces the local snapshot with the server's copy of the event. Without
--code the command prompts for the code after it is sent.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessionResume(cmd, *configPath, *statePath, *apiBase, args[0], args[1], code)
		},
	}

	cmd.Flags().StringVar(&code, "code", "", "verification code (skip the prompt)")
	return cmd
}

func runSessionResume(cmd *cobra.Command, configPath, statePath, apiBase, eventRef, phone, code string) error {
	out := cmd.OutOrStdout()

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if statePath == "" {
		statePath = cfg.Client.StatePath
	}
	if apiBase == "" {
		apiBase = cfg.Client.APIBase
	}

	client := &http.Client{Timeout: 10 * time.Second}

	var sent struct {
		SessionID string `json:"sessionId"`
		DevCode   string `json:"devCode"`
	}
	err = postJSON(client, apiBase+"/otp/send",
		map[string]string{"phone": phone, "eventId": eventRef}, &sent)
	if err != nil {
		return fmt.Errorf("send code: %w", err)
	}

	if code == "" {
		if sent.DevCode != "" {
			fmt.Fprintf(out, "Verification code (dev): %s\n", sent.DevCode)
		} else {
			fmt.Fprintf(out, "Verification code sent to %s\n", phone)
		}
		fmt.Fprint(out, "Enter code: ")
		scanner := bufio.NewScanner(cmd.InOrStdin())
		if !scanner.Scan() {
			return fmt.Errorf("no code entered")
		}
		code = strings.TrimSpace(scanner.Text())
	}

	var verified struct {
		Verified bool            `json:"verified"`
		Event    models.Event    `json:"event"`
		Resume   *otp.ResumeData `json:"resumeData"`
	}
	err = postJSON(client, apiBase+"/otp/verify",
		map[string]string{"sessionId": sent.SessionID, "code": code}, &verified)
	if err != nil {
		return fmt.Errorf("verify code: %w", err)
	}

	st, err := store.Open(store.Opts{Path: statePath})
	if err != nil {
		return err
	}

	if verified.Resume == nil {
		// Verified, but the event has no recorded progress: hydrate the
		// event alone and start from setup.
		if err := st.Hydrate(verified.Event, nil, nil, nil); err != nil {
			return err
		}
		fmt.Fprintf(out, "Verified. Event %s has no saved progress; starting fresh.\n", verified.Event.ID)
		return nil
	}

	err = st.Hydrate(verified.Event, verified.Resume.Answers, verified.Resume.Swipes, verified.Resume.Requests)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Resumed event %s at stage %d (%s)\n",
		verified.Event.ID, verified.Resume.CurrentStage, stage.Name(verified.Resume.CurrentStage))
	fmt.Fprintf(out, "Progress: %d answers, %d swipes, %d requests\n",
		len(verified.Resume.Answers), len(verified.Resume.Swipes), len(verified.Resume.Requests))
	return nil
}

// postJSON posts a JSON body and decodes a JSON response, treating any
// non-2xx status as an error carrying the server's message.
func postJSON(client *http.Client, url string, body, into interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	resp, err := client.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s", apiErr.Error)
		}
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(into)
}
