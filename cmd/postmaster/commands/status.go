package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/postmaster/cmd/postmaster/cmdutil"
	"github.com/marmos91/postmaster/internal/cli/health"
	"github.com/marmos91/postmaster/internal/cli/output"
	"github.com/marmos91/postmaster/internal/cli/timeutil"
	"github.com/marmos91/postmaster/pkg/config"
)

var (
	statusAPIPort int
	statusHost    string
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show server status",
	Long: `Display the status of a running postmaster server.

The command calls the liveness and readiness endpoints of the REST API
and reports uptime and database health. The port is read from the
configuration unless --api-port is given.

Examples:
  # Check the server configured in the default config
  postmaster status

  # Check a server on another port
  postmaster status --api-port 9080

  # Output as JSON
  postmaster status -o json`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().IntVar(&statusAPIPort, "api-port", 0, "API server port (default: controlplane.port from the config)")
	statusCmd.Flags().StringVar(&statusHost, "host", "localhost", "API server host")
}

// ServerStatus is the status report printed by "postmaster status".
type ServerStatus struct {
	Running   bool   `json:"running" yaml:"running"`
	Healthy   bool   `json:"healthy" yaml:"healthy"`
	Message   string `json:"message" yaml:"message"`
	StartedAt string `json:"started_at,omitempty" yaml:"started_at,omitempty"`
	Uptime    string `json:"uptime,omitempty" yaml:"uptime,omitempty"`
	Database  string `json:"database,omitempty" yaml:"database,omitempty"`
	Latency   string `json:"latency,omitempty" yaml:"latency,omitempty"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	format, err := cmdutil.GetOutputFormatParsed()
	if err != nil {
		return err
	}

	port := statusAPIPort
	if port == 0 {
		cfg, err := config.Load(cmdutil.Flags.ConfigFile)
		if err != nil {
			return err
		}
		port = cfg.ControlPlane.Port
	}

	status := checkServer(fmt.Sprintf("http://%s:%d", statusHost, port))

	w := cmd.OutOrStdout()
	switch format {
	case output.FormatJSON:
		return output.PrintJSON(w, status)
	case output.FormatYAML:
		return output.PrintYAML(w, status)
	default:
		return printStatusTable(w, status)
	}
}

// checkServer probes the health endpoints under baseURL.
func checkServer(baseURL string) ServerStatus {
	status := ServerStatus{Message: "Server is not running"}
	client := &http.Client{Timeout: 2 * time.Second}

	var live health.Response[health.Liveness]
	if err := getJSON(client, baseURL+"/health", &live); err != nil {
		return status
	}
	status.Running = true
	status.StartedAt = live.Data.StartedAt
	status.Uptime = live.Data.Uptime

	var ready health.Response[health.Readiness]
	if err := getJSON(client, baseURL+"/health/ready", &ready); err != nil {
		status.Message = "Server is running but readiness check failed"
		return status
	}

	status.Healthy = ready.Healthy()
	status.Database = ready.Data.Database
	status.Latency = ready.Data.Latency
	if status.Healthy {
		status.Message = "Server is running and healthy"
	} else {
		status.Message = fmt.Sprintf("Server is running but unhealthy: %s", ready.Error)
	}
	return status
}

// getJSON decodes the body of a GET request. Non-2xx bodies are decoded too,
// since the health endpoints answer 503 with a JSON envelope.
func getJSON(client *http.Client, url string, v any) error {
	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	return json.NewDecoder(resp.Body).Decode(v)
}

func printStatusTable(w io.Writer, status ServerStatus) error {
	state := "stopped"
	if status.Running {
		state = "running"
		if !status.Healthy {
			state = "running (unhealthy)"
		}
	}

	pairs := [][2]string{{"Status", state}}
	if status.StartedAt != "" {
		pairs = append(pairs, [2]string{"Started", timeutil.FormatTime(status.StartedAt)})
	}
	if status.Uptime != "" {
		pairs = append(pairs, [2]string{"Uptime", timeutil.FormatUptime(status.Uptime)})
	}
	if status.Database != "" {
		pairs = append(pairs, [2]string{"Database", fmt.Sprintf("%s (%s)", status.Database, status.Latency)})
	}
	pairs = append(pairs, [2]string{"Message", status.Message})
	return output.SimpleTable(w, pairs)
}
