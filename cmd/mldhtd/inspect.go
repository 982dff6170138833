package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

func inspectCmd() *cobra.Command {
	var adminAddr string

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "query a running node's admin stats endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(adminAddr)
		},
	}
	cmd.Flags().StringVar(&adminAddr, "admin-addr", "127.0.0.1:8088", "admin HTTP address of the target node")

	return cmd
}

func runInspect(adminAddr string) error {
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(fmt.Sprintf("http://%s/stats", adminAddr))
	if err != nil {
		return fmt.Errorf("querying %s: %w", adminAddr, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	var pretty map[string]interface{}
	if err := json.Unmarshal(body, &pretty); err != nil {
		fmt.Println(string(body))
		return nil
	}
	out, _ := json.MarshalIndent(pretty, "", "  ")
	fmt.Println(string(out))
	return nil
}
