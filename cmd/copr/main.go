package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"

	"github.com/eclipseo/copr"
	"github.com/eclipseo/copr/internal/logfields"
)

var CLI struct {
	Config  string `short:"c" help:"Copr configuration file path (defaults to ~/.config/copr)"`
	Verbose bool   `short:"v" help:"Enable verbose logging"`

	Build struct {
		Project string   `arg:"" help:"Target project as owner/project"`
		URL     []string `help:"Source package (srpm) URLs to build"`
		Srpm    string   `help:"Local srpm file to upload and build" type:"existingfile"`
		Chroot  []string `help:"Restrict the build to specific chroots"`
		Watch   bool     `short:"w" help:"Wait for the submitted build to finish"`
	} `cmd:"" help:"Submit a build to a Copr project"`

	Status struct {
		IDs []int64 `arg:"" name:"id" help:"Build ids"`
	} `cmd:"" help:"Show the current state of builds"`

	Cancel struct {
		ID int64 `arg:"" help:"Build id"`
	} `cmd:"" help:"Cancel a build"`

	Watch struct {
		IDs      []int64       `arg:"" name:"id" help:"Build ids"`
		Interval time.Duration `default:"30s" help:"Poll interval"`
		Timeout  time.Duration `help:"Give up after this long (0 = wait forever)"`
	} `cmd:"" help:"Wait for builds to finish"`
}

func main() {
	kctx := kong.Parse(&CLI)

	// Local overrides for COPR_URL/COPR_LOGIN/COPR_TOKEN; absence is fine.
	_ = godotenv.Load()

	logLevel := slog.LevelInfo
	if CLI.Verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	client, err := copr.NewClientFromFile(CLI.Config)
	if err != nil {
		slog.Error("Failed to load Copr configuration", logfields.KeyError, err)
		os.Exit(1)
	}
	ctx := context.Background()

	switch kctx.Command() {
	case "build <project>":
		if err := runBuild(ctx, client); err != nil {
			slog.Error("Build submission failed", logfields.KeyError, err)
			os.Exit(1)
		}
	case "status <id>":
		if err := runStatus(ctx, client, CLI.Status.IDs); err != nil {
			slog.Error("Status query failed", logfields.KeyError, err)
			os.Exit(1)
		}
	case "cancel <id>":
		if err := runCancel(ctx, client, CLI.Cancel.ID); err != nil {
			slog.Error("Cancel failed", logfields.KeyError, err)
			os.Exit(1)
		}
	case "watch <id>":
		if err := runWatch(ctx, client, CLI.Watch.IDs, CLI.Watch.Interval, CLI.Watch.Timeout); err != nil {
			slog.Error("Watch failed", logfields.KeyError, err)
			os.Exit(1)
		}
	default:
		slog.Error("Unknown command", "command", kctx.Command())
		os.Exit(1)
	}
}

func splitProject(spec string) (string, string, error) {
	parts := strings.SplitN(spec, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("project must be given as owner/project, got %q", spec)
	}
	return parts[0], parts[1], nil
}

func runBuild(ctx context.Context, client *copr.Client) error {
	owner, project, err := splitProject(CLI.Build.Project)
	if err != nil {
		return err
	}
	if len(CLI.Build.URL) == 0 && CLI.Build.Srpm == "" {
		return fmt.Errorf("either --url or --srpm is required")
	}

	opts := copr.BuildOptions{Chroots: CLI.Build.Chroot}
	var build *copr.Build
	if CLI.Build.Srpm != "" {
		build, err = client.Builds().CreateFromFile(ctx, owner, project, CLI.Build.Srpm, opts)
	} else {
		build, err = client.Builds().CreateFromURLs(ctx, owner, project, CLI.Build.URL, opts)
	}
	if err != nil {
		return err
	}
	slog.Info("Build submitted",
		logfields.KeyBuildID, build.ID,
		logfields.KeyState, string(build.State),
		logfields.KeyOwner, owner,
		logfields.KeyProject, project,
	)
	fmt.Println(build.ID)

	if !CLI.Build.Watch {
		return nil
	}
	return runWatch(ctx, client, []int64{build.ID}, copr.DefaultWaitInterval, 0)
}

func runStatus(ctx context.Context, client *copr.Client, ids []int64) error {
	for _, id := range ids {
		build, err := client.Builds().Get(ctx, id)
		if err != nil {
			return err
		}
		fmt.Printf("%d\t%s\n", build.ID, build.State)
	}
	return nil
}

func runCancel(ctx context.Context, client *copr.Client, id int64) error {
	build, err := client.Builds().Cancel(ctx, id)
	if err != nil {
		return err
	}
	slog.Info("Cancellation requested",
		logfields.KeyBuildID, build.ID,
		logfields.KeyState, string(build.State),
	)
	return nil
}

func runWatch(ctx context.Context, client *copr.Client, ids []int64, interval, timeout time.Duration) error {
	builds := make([]*copr.Build, 0, len(ids))
	for _, id := range ids {
		builds = append(builds, &copr.Build{ID: id})
	}

	results, err := copr.Wait(ctx, builds, copr.WaitOptions{
		Interval: interval,
		Timeout:  timeout,
		Fetcher:  client.Builds(),
		Callback: func(snapshots []*copr.Build) error {
			for _, b := range snapshots {
				slog.Info("Build state",
					logfields.KeyBuildID, b.ID,
					logfields.KeyState, string(b.State),
				)
			}
			return nil
		},
	})
	if err != nil {
		return err
	}
	for _, b := range results {
		fmt.Printf("%d\t%s\n", b.ID, b.State)
	}
	if !copr.Succeeded(results...) {
		return fmt.Errorf("not all builds succeeded")
	}
	return nil
}
