package cmd

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/openlot/parkd/config"
)

var lotCmd = &cobra.Command{
	Use:   "lot",
	Short: "Lot related commands",
}

var lotStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Query the running service for lot occupancy",
	RunE:  runLotStatus,
}

func init() {
	lotCmd.AddCommand(lotStatusCmd)
	rootCmd.AddCommand(lotCmd)
}

func runLotStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, statusURL(cfg.API.Addr), nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("query lot status: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "close response: %v\n", cerr)
		}
	}()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("lot status returned %s", resp.Status)
	}
	_, err = io.Copy(cmd.OutOrStdout(), resp.Body)
	return err
}

// statusURL turns a listen address like ":8080" into a local query URL.
func statusURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr + "/api/lot/status"
}
