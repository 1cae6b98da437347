package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/spf13/cobra"
)

// Version information injected at build time.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// BuildInfo describes the binary.
type BuildInfo struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// NewVersionCmd creates the version command.
func NewVersionCmd() *cobra.Command {
	var (
		jsonOutput bool
		checkURL   string
	)

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			info := BuildInfo{
				Version:   Version,
				GitCommit: GitCommit,
				BuildTime: BuildTime,
				GoVersion: runtime.Version(),
				OS:        runtime.GOOS,
				Arch:      runtime.GOARCH,
			}

			if jsonOutput {
				data, _ := json.MarshalIndent(info, "", "  ")
				fmt.Println(string(data))
			} else {
				fmt.Printf("parley %s\n", info.Version)
				fmt.Printf("  Git commit: %s\n", info.GitCommit)
				fmt.Printf("  Built:      %s\n", info.BuildTime)
				fmt.Printf("  Go version: %s\n", info.GoVersion)
				fmt.Printf("  OS/Arch:    %s/%s\n", info.OS, info.Arch)
			}

			if checkURL != "" {
				return checkServerVersion(checkURL, Version)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	cmd.Flags().StringVar(&checkURL, "check", "", "compare against a running gateway at the given URL")

	return cmd
}

// checkServerVersion fetches the gateway version and reports whether the
// CLI is compatible. Versions are compatible when their majors match;
// a "dev" build on either side always passes.
func checkServerVersion(serverURL, clientVersion string) error {
	client := &http.Client{Timeout: 10 * time.Second}

	resp, err := client.Get(serverURL + "/api/v1/health")
	if err != nil {
		return fmt.Errorf("failed to reach server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusServiceUnavailable {
		return fmt.Errorf("server returned status %d", resp.StatusCode)
	}

	var health struct {
		Version string `json:"version"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return fmt.Errorf("failed to decode health response: %w", err)
	}

	fmt.Printf("  Server:     %s (%s)\n", health.Version, serverURL)

	if clientVersion == "dev" || health.Version == "dev" {
		fmt.Println("  Compatible: yes (dev build)")
		return nil
	}

	clientV, err := semver.NewVersion(clientVersion)
	if err != nil {
		return fmt.Errorf("invalid client version %q: %w", clientVersion, err)
	}
	serverV, err := semver.NewVersion(health.Version)
	if err != nil {
		return fmt.Errorf("invalid server version %q: %w", health.Version, err)
	}

	if clientV.Major() != serverV.Major() {
		return fmt.Errorf("incompatible versions: client %s, server %s", clientVersion, health.Version)
	}

	fmt.Println("  Compatible: yes")
	return nil
}
