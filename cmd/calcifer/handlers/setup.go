package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/go-logr/logr"

	"github.com/imamik/calcifer/internal/config"
	"github.com/imamik/calcifer/internal/dispatch"
	"github.com/imamik/calcifer/internal/inventory"
	"github.com/imamik/calcifer/internal/platform/hcloud"
	"github.com/imamik/calcifer/internal/platform/s3"
	"github.com/imamik/calcifer/internal/platform/ssh"
	"github.com/imamik/calcifer/internal/registry"
	"github.com/imamik/calcifer/internal/tasks"
	"github.com/imamik/calcifer/internal/ui/tui"
	"github.com/imamik/calcifer/internal/util/prerequisites"
)

// Factory function variables - can be replaced in tests for dependency injection.
var (
	// stdout receives console output.
	stdout io.Writer = os.Stdout

	// newTransport opens connections to remote hosts.
	newTransport = func(timeouts *config.Timeouts) dispatch.Transport {
		return ssh.NewTransport(timeouts)
	}

	// newRegistry returns the goal definitions.
	newRegistry = func() *registry.Registry {
		return tasks.DefaultRegistry(tasks.Options{})
	}

	// discoverHosts lists inventory hosts from Hetzner Cloud.
	discoverHosts = func(ctx context.Context, token string, opts hcloud.DiscoverOptions) ([]*inventory.Host, error) {
		return hcloud.NewClient(token).Discover(ctx, opts)
	}

	// newObjectStore connects to the artifact bucket.
	newObjectStore = func(ctx context.Context, opts s3.Options) (tasks.ObjectStore, error) {
		return s3.NewClient(ctx, opts)
	}

	// promptBecomePassword asks for the sudo password on the terminal.
	promptBecomePassword = func() (string, error) {
		var pw string
		err := huh.NewInput().
			Title("BECOME password").
			Description("Used for sudo on every host that needs escalation").
			EchoMode(huh.EchoModePassword).
			Value(&pw).
			Run()
		return pw, err
	}

	// checkPrereqs inspects the local toolchain.
	checkPrereqs = prerequisites.CheckAll

	// isTerminal reports whether console output is interactive.
	isTerminal = func() bool {
		f, ok := stdout.(*os.File)
		return ok && tui.IsTerminal(f)
	}
)

// loadSettings reads the settings file named by --config, or
// cluster_config.yaml in the working directory.
func loadSettings(path string) (*config.Settings, error) {
	found, err := config.FindConfigFile(path)
	if err != nil {
		return nil, err
	}
	s, err := config.Load(found)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", found, err)
	}
	return s, nil
}

// loadInventory builds the host list from Hetzner Cloud when a label
// selector is configured, and from the inventory file otherwise.
func loadInventory(ctx context.Context, opts Options, s *config.Settings) (*inventory.Inventory, error) {
	selector := opts.HCloudSelector
	if selector == "" {
		selector = s.HCloud.LabelSelector
	}
	if selector == "" {
		path := opts.InventoryPath
		if path == "" {
			path = inventory.DefaultPath
		}
		return inventory.Load(path)
	}

	if s.HCloud.Token == "" {
		return nil, errors.New("hcloud discovery needs a token (hcloud.token or HCLOUD_TOKEN)")
	}
	hosts, err := discoverHosts(ctx, s.HCloud.Token, hcloud.DiscoverOptions{
		LabelSelector: selector,
		User:          s.HCloud.User,
		SSHKeyPath:    s.HCloud.SSHKeyPath,
	})
	if err != nil {
		return nil, err
	}
	if len(hosts) == 0 {
		return nil, fmt.Errorf("no servers match label selector %q", selector)
	}

	local := inventory.NewHost("localhost", "127.0.0.1", inventory.GroupLocalMachine)
	local.Platform = inventory.PlatformLocal
	local.Become = true
	return inventory.New(append([]*inventory.Host{local}, hosts...)...), nil
}

// newArtifactStore returns the local artifact directory, mirrored to S3
// when a bucket is configured.
func newArtifactStore(ctx context.Context, s *config.Settings, log logr.Logger) (*tasks.Store, error) {
	storeOpts := []tasks.StoreOption{tasks.WithStoreLogger(log)}

	if cfg := s.Artifacts.S3; cfg.Enabled() {
		remote, err := newObjectStore(ctx, s3.Options{
			Endpoint:  cfg.Endpoint,
			Region:    cfg.Region,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			PathStyle: cfg.PathStyle,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to set up artifact mirror: %w", err)
		}
		storeOpts = append(storeOpts, tasks.WithMirror(remote, cfg.Bucket, cfg.Prefix, s.Cluster.Name))
	}
	return tasks.NewStore(s.Artifacts.Dir, storeOpts...), nil
}

// runtimeOptions resolves the become password, prompting when -K is set.
func runtimeOptions(opts Options) (config.Runtime, error) {
	rt := config.RuntimeFromEnv(!opts.Quiet)
	if opts.AskBecomePass {
		pw, err := promptBecomePassword()
		if err != nil {
			return rt, fmt.Errorf("failed to read become password: %w", err)
		}
		rt.BecomePassword = pw
	}
	return rt, nil
}
