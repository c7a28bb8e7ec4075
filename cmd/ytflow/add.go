package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/gosuri/uiprogress"
	"github.com/gosuri/uiprogress/util/strutil"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/ytget/ytflow/internal/api"
	"github.com/ytget/ytflow/internal/client"
	"github.com/ytget/ytflow/internal/model"
)

const (
	pollInterval = 500 * time.Millisecond
	labelWidth   = 48
)

var cmdAdd = &cli.Command{
	Name:      "add",
	Usage:     "queue a download on a running server",
	ArgsUsage: "URL",
	Flags: []cli.Flag{
		&cli.BoolFlag{Name: "audio", Aliases: []string{"a"}, Usage: "download audio only"},
		&cli.BoolFlag{Name: "playlist", Aliases: []string{"p"}, Usage: "download the whole playlist"},
		&cli.StringFlag{Name: "quality", Aliases: []string{"q"}, Usage: "quality hint, e.g. 720p or 320"},
		&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Usage: "output format, e.g. mp4 or mp3"},
		&cli.StringFlag{Name: "title", Usage: "label shown until the real title is known"},
		&cli.BoolFlag{Name: "wait", Aliases: []string{"w"}, Usage: "show progress until the download finishes"},
		&cli.DurationFlag{Name: "timeout", Usage: "give up waiting after this long (0 waits forever)"},
	},
	Action: func(c *cli.Context) error {
		if c.NArg() != 1 {
			return cli.ShowCommandHelp(c, c.Command.Name)
		}

		cl, err := newClient(c)
		if err != nil {
			return err
		}

		downloadType := string(model.KindVideo)
		if c.Bool("audio") {
			downloadType = string(model.KindAudio)
		}

		resp, err := cl.Add(c.Context, api.AddDownloadRequest{
			URL:          c.Args().First(),
			DownloadType: downloadType,
			IsPlaylist:   c.Bool("playlist"),
			Quality:      c.String("quality"),
			Format:       c.String("format"),
			Title:        c.String("title"),
		})
		if err != nil {
			return err
		}

		ids := resp.TaskIDs
		if len(ids) == 0 {
			ids = []string{resp.TaskID}
		}

		fmt.Println(resp.Message)
		if !c.Bool("wait") {
			for _, id := range ids {
				fmt.Println(id)
			}
			return nil
		}

		ctx, cancel := waitContext(c.Context, c.Duration("timeout"))
		defer cancel()

		return watchTasks(ctx, cl, ids)
	},
}

// taskBar is a progress bar bound to one task
type taskBar struct {
	mu    sync.Mutex
	label string
	bar   *uiprogress.Bar
}

func (b *taskBar) update(t *model.DownloadTask) {
	percent := t.Progress
	if t.Status == model.TaskStatusProcessing {
		percent = t.ProcessingProgress
	}

	b.mu.Lock()
	b.label = fmt.Sprintf("%s %s %s", t.GetShortID(), t.Status, t.GetDisplayTitle())
	b.mu.Unlock()

	b.bar.Set(int(percent))
}

func (b *taskBar) text() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strutil.Resize(b.label, labelWidth)
}

// watchTasks renders one bar per task until all of them finish
func watchTasks(ctx context.Context, cl *client.Client, ids []string) error {
	progress := uiprogress.New()

	bars := make([]*taskBar, len(ids))
	for i, id := range ids {
		tb := &taskBar{label: id}
		tb.bar = progress.AddBar(100).AppendCompleted()
		tb.bar.Width = 40
		tb.bar.PrependFunc(func(*uiprogress.Bar) string {
			return tb.text()
		})
		bars[i] = tb
	}

	progress.Start()

	results := make([]*model.DownloadTask, len(ids))

	group, gctx := errgroup.WithContext(ctx)
	for i, id := range ids {
		group.Go(func() error {
			task, err := pollTask(gctx, cl, id, bars[i].update)
			results[i] = task
			return err
		})
	}

	err := group.Wait()
	progress.Stop()
	fmt.Println()

	if err != nil {
		return err
	}

	return summarize(results)
}

// pollTask reports the task state until it reaches a terminal status
func pollTask(ctx context.Context, cl *client.Client, id string, onUpdate func(*model.DownloadTask)) (*model.DownloadTask, error) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		task, err := cl.Task(ctx, id)
		if err != nil {
			return nil, err
		}

		onUpdate(task)

		if task.Status.IsFinished() {
			return task, nil
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func summarize(tasks []*model.DownloadTask) error {
	var failed int

	for _, t := range tasks {
		switch t.Status {
		case model.TaskStatusCompleted:
			for _, p := range t.OutputPaths {
				fmt.Printf("%s %s\n", color.GreenString("saved"), p)
			}
		case model.TaskStatusFailed:
			failed++
			fmt.Printf("%s %s: %s\n", color.RedString("failed"), t.GetDisplayTitle(), t.Error)
		case model.TaskStatusCancelled:
			fmt.Printf("%s %s\n", color.MagentaString("cancelled"), t.GetDisplayTitle())
		}
	}

	if failed > 0 {
		return cli.Exit(fmt.Sprintf("%d of %d downloads failed", failed, len(tasks)), 1)
	}
	return nil
}
