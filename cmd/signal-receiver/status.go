package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Enriquefft/signal-receiver/internal/httpapi"
	"github.com/Enriquefft/signal-receiver/internal/state"
)

const defaultStatusAddr = "http://localhost:8099"

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the current value of a running receiver",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			addr, _ := cmd.Flags().GetString("addr")
			if addr == "" {
				addr = os.Getenv("SIGNAL_STATUS_ADDR")
			}
			if addr == "" {
				addr = defaultStatusAddr
			}

			st, err := fetchState(&http.Client{Timeout: 5 * time.Second}, addr)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (%s)\n", st.Name, st.UniqueID)
			fmt.Fprintf(out, "  state: %s\n", st.State)
			if v, ok := st.Attributes[state.AttrConnectionStatus]; ok {
				fmt.Fprintf(out, "  connection: %v\n", v)
			}
			if v, ok := st.Attributes[state.AttrLastReceived]; ok {
				fmt.Fprintf(out, "  last received: %v\n", v)
			}
			return nil
		},
	}
	cmd.Flags().String("addr", "", "Receiver HTTP address (default $SIGNAL_STATUS_ADDR or "+defaultStatusAddr+")")
	return cmd
}

func fetchState(client *http.Client, addr string) (*httpapi.StateResponse, error) {
	resp, err := client.Get(strings.TrimRight(addr, "/") + "/state")
	if err != nil {
		return nil, fmt.Errorf("receiver unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("receiver unhealthy (status %d)", resp.StatusCode)
	}

	var st httpapi.StateResponse
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	return &st, nil
}
