package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/ytget/ytflow/internal/config"
	"github.com/ytget/ytflow/internal/platform"
)

var cmdCheck = &cli.Command{
	Name:  "check",
	Usage: "report the external tools and settings in use",
	Action: func(c *cli.Context) error {
		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}

		ok := color.New(color.FgGreen).SprintFunc()
		bad := color.New(color.FgRed).SprintFunc()
		label := color.New(color.Bold).SprintFunc()

		fmt.Println(label("Tools"))

		missing := 0
		for _, t := range []struct{ name, override string }{
			{platform.YTDLPCommand, cfg.Tools.YTDLP},
			{platform.FFmpegCommand, cfg.Tools.FFmpeg},
			{platform.FFprobeCommand, cfg.Tools.FFprobe},
		} {
			tool := platform.DiscoverTool(c.Context, t.name, t.override)
			if tool.Found() {
				fmt.Printf("  %s %-8s %s (%s)\n", ok("✓"), tool.Name, tool.Version, tool.Path)
			} else {
				missing++
				fmt.Printf("  %s %-8s %s\n", bad("✗"), tool.Name, tool.Err)
			}
		}

		settings, err := config.NewSettings(config.DefaultSettingsPath())
		if err != nil {
			return err
		}

		outputDir := cfg.Downloads.Dir
		if outputDir == "" {
			outputDir = settings.GetDownloadDirectory("")
		}

		fmt.Println(label("Settings"))
		fmt.Printf("  config        %s\n", c.String("config"))
		fmt.Printf("  preferences   %s\n", config.DefaultSettingsPath())
		fmt.Printf("  downloads     %s\n", outputDir)
		fmt.Printf("  listen        %s\n", cfg.Addr())
		fmt.Printf("  max parallel  %d\n", settings.GetMaxParallelDownloads(cfg.Downloads.MaxParallel))
		fmt.Printf("  origins       %v\n", platform.NewOriginPolicy(cfg.Origins.Allow).Hosts())
		fmt.Printf("  log file      %s\n", cfg.Log.File)

		if missing > 0 {
			fmt.Println()
			fmt.Println("yt-dlp is downloaded automatically on server start; ffmpeg is needed for audio extraction and format conversion.")
		}

		return nil
	},
}
