package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/ytget/ytflow/internal/client"
	"github.com/ytget/ytflow/internal/config"
	"github.com/ytget/ytflow/internal/dashboard"
	"github.com/ytget/ytflow/internal/platform"
)

const stopTimeout = 20 * time.Second

var cmdStatus = &cli.Command{
	Name:  "status",
	Usage: "show whether the server is running",
	Action: func(c *cli.Context) error {
		cl, err := newClient(c)
		if err != nil {
			return err
		}

		health, err := cl.Health(c.Context)
		if err != nil {
			fmt.Printf("%s %s\n", color.RedString("offline"), err)
			return cli.Exit("", 1)
		}

		fmt.Printf("%s  version %s  queued %d  active %d/%d\n",
			color.GreenString(health.Status),
			health.Version,
			health.QueueSize,
			health.ActiveDownloads,
			health.MaxParallel,
		)

		return nil
	},
}

var cmdStop = &cli.Command{
	Name:  "stop",
	Usage: "stop a running server",
	Action: func(c *cli.Context) error {
		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}

		pid, err := platform.NewPIDFile(cfg.Server.PIDFile).Read()
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("%s is not running", config.AppName)
			}
			return err
		}

		if err := terminate(pid); err != nil {
			return fmt.Errorf("failed to stop process %d: %w", pid, err)
		}

		cl, err := newClient(c)
		if err != nil {
			return err
		}

		deadline := time.Now().Add(stopTimeout)
		for time.Now().Before(deadline) {
			if _, err := cl.Health(c.Context); err != nil {
				fmt.Printf("%s stopped (pid %d)\n", config.AppName, pid)
				return nil
			}
			time.Sleep(250 * time.Millisecond)
		}

		return fmt.Errorf("process %d is still running after %s", pid, stopTimeout)
	},
}

var cmdQueue = &cli.Command{
	Name:  "queue",
	Usage: "list active and waiting downloads",
	Flags: []cli.Flag{
		&cli.BoolFlag{Name: "json", Aliases: []string{"j"}, Usage: "show output in the JSON format"},
	},
	Action: func(c *cli.Context) error {
		cl, err := newClient(c)
		if err != nil {
			return err
		}

		q, err := cl.Queue(c.Context)
		if err != nil {
			return err
		}

		if c.Bool("json") {
			return printJSON(q)
		}

		if len(q.ActiveTasks) == 0 && len(q.QueuedTasks) == 0 {
			fmt.Println("The queue is empty")
			return nil
		}

		for _, t := range append(q.ActiveTasks, q.QueuedTasks...) {
			fmt.Printf("%s  %s  %s  %5.1f%%\n",
				dashboard.Fit(t.ID, 36),
				dashboard.ColorStatus(t.Status, dashboard.Fit(t.Status.String(), 11)),
				dashboard.Fit(t.Title, 40),
				t.Progress,
			)
		}

		return nil
	},
}

var cmdHistory = &cli.Command{
	Name:  "history",
	Usage: "list recently finished downloads",
	Flags: []cli.Flag{
		&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Value: 10, Usage: "number of entries"},
		&cli.BoolFlag{Name: "json", Aliases: []string{"j"}, Usage: "show output in the JSON format"},
	},
	Action: func(c *cli.Context) error {
		cl, err := newClient(c)
		if err != nil {
			return err
		}

		tasks, err := cl.History(c.Context, c.Int("limit"))
		if err != nil {
			return err
		}

		if c.Bool("json") {
			return printJSON(tasks)
		}

		if len(tasks) == 0 {
			fmt.Println("Nothing finished yet")
			return nil
		}

		for _, t := range tasks {
			fmt.Printf("%s  %s  %s  %s\n",
				dashboard.Fit(t.ID, 36),
				dashboard.ColorStatus(t.Status, dashboard.Fit(t.Status.String(), 11)),
				dashboard.Fit(t.GetDisplayTitle(), 40),
				dashboard.Result(t),
			)
		}

		return nil
	},
}

var cmdCancel = &cli.Command{
	Name:      "cancel",
	Usage:     "cancel a queued or running download",
	ArgsUsage: "TASK_ID",
	Action: func(c *cli.Context) error {
		if c.NArg() != 1 {
			return cli.ShowCommandHelp(c, c.Command.Name)
		}

		cl, err := newClient(c)
		if err != nil {
			return err
		}

		resp, err := cl.Cancel(c.Context, c.Args().First())
		if err != nil {
			return err
		}

		fmt.Println(resp.Message)
		return nil
	},
}

var cmdReveal = &cli.Command{
	Name:      "reveal",
	Usage:     "open the download directory, or the file of a finished task",
	ArgsUsage: "[TASK_ID]",
	Action: func(c *cli.Context) error {
		if c.NArg() == 0 {
			return revealDownloadDir(c)
		}

		cl, err := newClient(c)
		if err != nil {
			return err
		}

		task, err := cl.Task(c.Context, c.Args().First())
		if err != nil {
			return err
		}
		if len(task.OutputPaths) == 0 {
			return fmt.Errorf("task %s has no output yet (%s)", task.GetShortID(), task.Status)
		}

		return platform.OpenFileInManager(task.OutputPaths[0])
	},
}

func revealDownloadDir(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	dir := cfg.Downloads.Dir
	if dir == "" {
		settings, err := config.NewSettings(config.DefaultSettingsPath())
		if err != nil {
			return err
		}
		dir = settings.GetDownloadDirectory("")
	}

	return platform.OpenFileInManager(dir)
}

func newClient(c *cli.Context) (*client.Client, error) {
	addr, err := serverAddr(c)
	if err != nil {
		return nil, err
	}
	return client.New(addr)
}

func printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}

// waitContext bounds a command that polls the server
func waitContext(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, d)
}
