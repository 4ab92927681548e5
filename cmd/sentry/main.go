// Package main is the sentry command line: it runs the motion region and
// subject detection pipeline over captured frames.
package main

import (
	"fmt"
	"os"

	"github.com/nvr-ai/go-sentry/config"
	"github.com/nvr-ai/go-sentry/logging"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

const (
	flagConfig = "config"
	flagDebug  = "debug"
	flagFrame  = "frame"
	flagMask   = "mask"
	flagKind   = "kind"
	flagCrop   = "crop"
	flagSave   = "save"
	flagCamera = "camera"
	flagOut    = "out"
	flagLimit  = "limit"
	flagFrames = "frames"
	flagMasks  = "masks"
)

// env is the state shared by every command.
type env struct {
	cfg    config.Config
	logger *zap.Logger
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	e := &env{}

	return &cli.App{
		Name:  "sentry",
		Usage: "find people and faces in motion-triggered camera frames",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Usage:   "load configuration from `FILE`",
			},
			&cli.BoolFlag{
				Name:  flagDebug,
				Usage: "enable debug logging",
			},
		},
		Before: func(c *cli.Context) error {
			cfg := config.Default()
			if path := c.String(flagConfig); path != "" {
				var err error
				if cfg, err = config.Load(path); err != nil {
					return err
				}
			}
			if c.Bool(flagDebug) {
				cfg.Log.Level = "debug"
			}

			logger, err := logging.NewLogger("sentry", cfg.Log)
			if err != nil {
				return err
			}
			e.cfg, e.logger = cfg, logger
			return nil
		},
		After: func(c *cli.Context) error {
			if e.logger != nil {
				e.logger.Sync() //nolint:errcheck
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:      "detect",
				Usage:     "run the pipeline over one frame",
				UsageText: "sentry detect --frame FRAME [--mask MASK] [--kind person|face] [--crop] [--save]",
				Flags: []cli.Flag{
					&cli.PathFlag{Name: flagFrame, Required: true, Usage: "camera frame `FILE`"},
					&cli.PathFlag{Name: flagMask, Usage: "motion mask `FILE`; omit to search the whole frame"},
					&cli.StringFlag{Name: flagKind, Value: "person", Usage: "subject kind: person or face"},
					&cli.BoolFlag{Name: flagCrop, Usage: "store the subject crop instead of the frame"},
					&cli.BoolFlag{Name: flagSave, Usage: "store the image and journal the outcome"},
					&cli.StringFlag{Name: flagCamera, Usage: "camera name, overrides the configuration"},
				},
				Action: e.detectCmd,
			},
			{
				Name:  "batch",
				Usage: "run the pipeline over a directory of frames",
				Flags: []cli.Flag{
					&cli.PathFlag{Name: flagFrames, Required: true, Usage: "frame `DIR`"},
					&cli.PathFlag{Name: flagMasks, Usage: "mask `DIR` holding one mask per frame, by file name"},
					&cli.StringFlag{Name: flagKind, Value: "person", Usage: "subject kind: person or face"},
					&cli.BoolFlag{Name: flagCrop, Usage: "store subject crops instead of frames"},
					&cli.BoolFlag{Name: flagSave, Usage: "store images and journal outcomes"},
				},
				Action: e.batchCmd,
			},
			{
				Name:  "region",
				Usage: "cut the padded motion region out of a frame",
				Flags: []cli.Flag{
					&cli.PathFlag{Name: flagFrame, Required: true, Usage: "camera frame `FILE`"},
					&cli.PathFlag{Name: flagMask, Required: true, Usage: "motion mask `FILE`"},
					&cli.PathFlag{Name: flagOut, Required: true, Usage: "output image `FILE`"},
				},
				Action: e.regionCmd,
			},
			{
				Name:  "prepare",
				Usage: "produce the cropped and shrunk frame the motion detector consumes",
				Flags: []cli.Flag{
					&cli.PathFlag{Name: flagFrame, Required: true, Usage: "camera frame `FILE`"},
					&cli.PathFlag{Name: flagOut, Required: true, Usage: "output image `FILE`"},
				},
				Action: e.prepareCmd,
			},
			{
				Name:  "journal",
				Usage: "list recent pipeline outcomes",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: flagLimit, Value: 20, Usage: "number of events"},
				},
				Action: e.journalCmd,
			},
		},
	}
}

func (e *env) journalPath() (string, error) {
	if e.cfg.Journal.Path == "" {
		return "", errors.New("journal is disabled (journal.path is empty)")
	}
	return e.cfg.Journal.Path, nil
}
