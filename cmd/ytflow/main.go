package main

import (
	"fmt"
	"net"
	"os"
	"strconv"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/ytget/ytflow/internal/config"
)

// Version is set during build via -ldflags "-X main.version=X.Y.Z"
var version = "dev"

func main() {
	log.SetFormatter(&log.TextFormatter{
		DisableColors:    true,
		DisableTimestamp: true,
	})

	if err := config.LoadEnv(); err != nil {
		log.Warnln(err)
	}

	app := cli.NewApp()
	app.Name = config.AppName
	app.Usage = "local download queue for the browser extension, backed by yt-dlp"
	app.Version = version
	app.HideVersion = true
	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Usage:   "path to the configuration file",
			EnvVars: []string{config.EnvPrefix + "CONFIG"},
			Value:   config.DefaultConfigPath(),
		},
		&cli.StringFlag{
			Name:    "addr",
			Usage:   "address of a running server (default: from the configuration file)",
			EnvVars: []string{config.EnvPrefix + "ADDR"},
		},
		&cli.BoolFlag{
			Name:    "debug",
			Usage:   "print debug information",
			EnvVars: []string{config.EnvPrefix + "DEBUG", "DEBUG"},
		},
	}
	app.Commands = []*cli.Command{
		cmdServe,
		cmdStatus,
		cmdStop,
		cmdAdd,
		cmdQueue,
		cmdHistory,
		cmdCancel,
		cmdReveal,
		cmdCheck,
		cmdVersion,
	}
	app.DefaultCommand = cmdServe.Name

	if err := app.Run(os.Args); err != nil {
		log.Fatalln(err)
	}
}

var cmdVersion = &cli.Command{
	Name:  "version",
	Usage: "print the version",
	Action: func(c *cli.Context) error {
		fmt.Printf("%s %s\n", config.AppName, version)
		return nil
	},
}

// loadConfig reads the configuration file named by the global flag
func loadConfig(c *cli.Context) (*config.Config, error) {
	return config.NewConfig(c.String("config"))
}

// serverAddr returns the address the client commands connect to
func serverAddr(c *cli.Context) (string, error) {
	if addr := c.String("addr"); addr != "" {
		return addr, nil
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return "", err
	}

	host := cfg.Server.Host
	if ip := net.ParseIP(host); host == "" || (ip != nil && ip.IsUnspecified()) {
		host = config.DefaultHost
	}

	return net.JoinHostPort(host, strconv.Itoa(cfg.Server.Port)), nil
}
