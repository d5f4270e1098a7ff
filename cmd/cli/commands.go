package main

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/spf13/cobra"
)

var (
	processUserID string
	processSaveID string
	processAmount int64
	eventsUserID  string
)

func init() {
	processCmd.Flags().StringVar(&processSaveID, "save-id", "", "UUID of the save event")
	processCmd.Flags().StringVar(&processUserID, "user-id", "", "UUID of the recipient user")
	processCmd.Flags().Int64Var(&processAmount, "amount", 0, "Save amount in cents")
	processCmd.MarkFlagRequired("save-id")
	processCmd.MarkFlagRequired("user-id")
	processCmd.MarkFlagRequired("amount")

	eventsCmd.Flags().StringVar(&eventsUserID, "user-id", "", "UUID of the recipient user")
	eventsCmd.MarkFlagRequired("user-id")

	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(retryPendingCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(metricsCmd)
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check the health of the server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return performGetRequest("/health")
	},
}

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Process a save event against the recipient's match rules",
	RunE: func(cmd *cobra.Command, args []string) error {
		body := fmt.Sprintf(`{"save_event_id":%q,"user_id":%q,"amount_cents":%d}`, processSaveID, processUserID, processAmount)
		return performPostRequest("/process", body)
	},
}

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "List a recipient's match events",
	RunE: func(cmd *cobra.Command, args []string) error {
		return performGetRequest("/events?user_id=" + eventsUserID)
	},
}

var retryPendingCmd = &cobra.Command{
	Use:   "retry-pending",
	Short: "Re-attempt charges for pending match events",
	RunE: func(cmd *cobra.Command, args []string) error {
		return performPostRequest("/retry-pending", "{}")
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Get lifetime processing counters",
	RunE: func(cmd *cobra.Command, args []string) error {
		return performGetRequest("/stats")
	},
}

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Get application metrics",
	RunE: func(cmd *cobra.Command, args []string) error {
		return performGetRequest("/metrics")
	},
}

func performGetRequest(endpoint string) error {
	url := host + endpoint
	fmt.Printf("Making request to %s\n", url)

	resp, err := http.Get(url)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	return printResponse(resp)
}

func performPostRequest(endpoint, body string) error {
	url := host + endpoint
	fmt.Printf("Making request to %s\n", url)

	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	return printResponse(resp)
}

func printResponse(resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	fmt.Printf("Status Code: %d\n", resp.StatusCode)
	fmt.Println("Response Body:")
	fmt.Println(string(body))

	return nil
}
