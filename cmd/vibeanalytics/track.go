package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ttracx/vibeanalytics/internal/tracker"
)

var (
	trackServer  string
	trackProject string
	trackProps   string
	trackURL     string
	trackUser    string
)

var trackCmd = &cobra.Command{
	Use:   "track <event-name>",
	Short: "Send one event to a running server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var props map[string]any
		if trackProps != "" {
			if err := json.Unmarshal([]byte(trackProps), &props); err != nil {
				return fmt.Errorf("--props must be a JSON object: %w", err)
			}
		}

		var res tracker.Result
		c, err := tracker.New(tracker.Config{
			Endpoint:  tracker.EndpointFor(trackServer),
			ProjectID: trackProject,
			Location:  tracker.NewNavigator(tracker.Page{URL: trackURL}),
			Observer:  func(r tracker.Result) { res = r },
		})
		if err != nil {
			return err
		}
		if trackUser != "" {
			c.Identify(trackUser, nil)
		}
		c.Track(args[0], props)
		c.Wait()

		if res.Err != nil {
			return res.Err
		}
		return output(map[string]any{"status": res.Status, "sessionId": c.SessionID()},
			fmt.Sprintf("Sent %q (status %d, session %s)", args[0], res.Status, c.SessionID()))
	},
}

func init() {
	trackCmd.Flags().StringVar(&trackServer, "server", "http://localhost:8080", "server base URL")
	trackCmd.Flags().StringVar(&trackProject, "project", "", "project id")
	trackCmd.Flags().StringVar(&trackProps, "props", "", "event properties as a JSON object")
	trackCmd.Flags().StringVar(&trackURL, "url", "", "page URL to report")
	trackCmd.Flags().StringVar(&trackUser, "user", "", "user id to identify as")
	rootCmd.AddCommand(trackCmd)
}
