// Package prerequisites checks that the tools calcifer shells out to on the
// control machine are installed.
package prerequisites

import (
	"fmt"
	"os/exec"
	"strings"
)

// Tool represents a client tool that may be required.
type Tool struct {
	// Name is the binary name to look for in PATH.
	Name string

	// Required indicates if this tool is mandatory.
	Required bool

	// Description explains what the tool is used for.
	Description string

	// InstallURL provides a URL for installation instructions.
	InstallURL string

	// VersionArgs are passed to the tool to print its version.
	VersionArgs []string
}

// DefaultTools returns the tools every run needs on the control machine.
func DefaultTools() []Tool {
	return []Tool{
		{
			Name:        "sudo",
			Required:    true,
			Description: "Runs escalated commands on the local machine",
			InstallURL:  "https://www.sudo.ws/",
			VersionArgs: []string{"--version"},
		},
		{
			Name:        "ping",
			Required:    true,
			Description: "Used by the connectivity check",
			InstallURL:  "https://packages.debian.org/iputils-ping",
		},
	}
}

// OptionalTools returns tools that only some goals use.
func OptionalTools() []Tool {
	return []Tool{
		{
			Name:        "az",
			Description: "Azure CLI, installed by the INIT goal and used for Arc onboarding",
			InstallURL:  "https://learn.microsoft.com/cli/azure/install-azure-cli",
			VersionArgs: []string{"version", "--output", "tsv"},
		},
		{
			Name:        "kubectl",
			Description: "Useful for inspecting the cluster with the fetched admin kubeconfig",
			InstallURL:  "https://kubernetes.io/docs/tasks/tools/",
			VersionArgs: []string{"version", "--client"},
		},
		{
			Name:        "flux",
			Description: "Useful for inspecting GitOps reconciliation",
			InstallURL:  "https://fluxcd.io/flux/installation/",
			VersionArgs: []string{"--version"},
		},
	}
}

// CheckResult contains the result of checking a single tool.
type CheckResult struct {
	Tool    Tool
	Found   bool
	Path    string
	Version string
}

// CheckResults contains the results of checking multiple tools.
type CheckResults struct {
	Results []CheckResult
	Missing []Tool
}

// HasErrors returns true if any required tools are missing.
func (r *CheckResults) HasErrors() bool {
	for _, tool := range r.Missing {
		if tool.Required {
			return true
		}
	}
	return false
}

// Error returns an error if any required tools are missing.
func (r *CheckResults) Error() error {
	var missing []string
	for _, tool := range r.Missing {
		if tool.Required {
			missing = append(missing, fmt.Sprintf("%s (%s)", tool.Name, tool.InstallURL))
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return fmt.Errorf("missing required tools: %s", strings.Join(missing, ", "))
}

// LookPath resolves a binary name. Tests replace it.
var LookPath = exec.LookPath

// Check verifies that the specified tools are available.
func Check(tools []Tool) *CheckResults {
	results := &CheckResults{}

	for _, tool := range tools {
		result := CheckResult{Tool: tool}

		path, err := LookPath(tool.Name)
		if err == nil {
			result.Found = true
			result.Path = path
			result.Version = toolVersion(path, tool.VersionArgs)
		} else {
			results.Missing = append(results.Missing, tool)
		}

		results.Results = append(results.Results, result)
	}

	return results
}

// CheckAll checks the default and optional tools.
func CheckAll() *CheckResults {
	return Check(append(DefaultTools(), OptionalTools()...))
}

// toolVersion returns the first output line of the version command, or ""
// when the tool has no version arguments or the command fails.
func toolVersion(path string, args []string) string {
	if len(args) == 0 {
		return ""
	}
	// #nosec G204 -- path and args come from the fixed Tool definitions
	out, err := exec.Command(path, args...).Output()
	if err != nil {
		return ""
	}
	line, _, _ := strings.Cut(string(out), "\n")
	return strings.TrimSpace(line)
}
