package main

import (
	"fmt"
	"time"

	"github.com/nvr-ai/go-sentry/detector"
	"github.com/nvr-ai/go-sentry/images"
	"github.com/nvr-ai/go-sentry/inference"
	"github.com/nvr-ai/go-sentry/journal"
	"github.com/nvr-ai/go-sentry/models"
	"github.com/nvr-ai/go-sentry/notify"
	"github.com/nvr-ai/go-sentry/pipeline"
	"github.com/nvr-ai/go-sentry/region"
	"github.com/nvr-ai/go-sentry/util"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

func readImage(path string, flags gocv.IMReadFlag) (gocv.Mat, error) {
	return images.ReadFile(path, flags)
}

func (e *env) extractor() (*region.Extractor, error) {
	rc, err := e.cfg.Region()
	if err != nil {
		return nil, err
	}
	if err := rc.Validate(); err != nil {
		return nil, err
	}
	return region.NewExtractor(rc), nil
}

// newDetector loads the configured model for kind behind a profiling wrapper.
func (e *env) newDetector(kind models.Kind) (*detector.Detector, *inference.Profiled, error) {
	mc, err := e.cfg.Models.For(kind)
	if err != nil {
		return nil, nil, err
	}

	classes := models.DefaultClassManager()
	dc, err := mc.Detector(kind, classes)
	if err != nil {
		return nil, nil, err
	}

	engine, err := mc.Engine(string(kind), e.logger)
	if err != nil {
		return nil, nil, err
	}
	profiled := inference.NewProfiled(engine)

	det, err := detector.New(profiled, dc, detector.WithLogger(e.logger), detector.WithClassManager(classes))
	if err != nil {
		engine.Close()
		return nil, nil, err
	}
	return det, profiled, nil
}

func (e *env) newDriver(kind models.Kind) (*pipeline.Driver, *inference.Profiled, error) {
	extractor, err := e.extractor()
	if err != nil {
		return nil, nil, err
	}
	det, profiled, err := e.newDetector(kind)
	if err != nil {
		return nil, nil, err
	}
	driver, err := pipeline.NewDriver(extractor, e.logger, det)
	if err != nil {
		det.Close()
		return nil, nil, err
	}
	return driver, profiled, nil
}

func (e *env) detectCmd(c *cli.Context) error {
	kind, err := models.ParseKind(c.String(flagKind))
	if err != nil {
		return err
	}
	camera := e.cfg.Camera
	if name := c.String(flagCamera); name != "" {
		camera = name
	}

	frame, err := readImage(c.Path(flagFrame), gocv.IMReadColor)
	if err != nil {
		return err
	}
	defer frame.Close()

	mask := gocv.NewMat()
	if path := c.Path(flagMask); path != "" {
		mask.Close()
		if mask, err = readImage(path, gocv.IMReadGrayScale); err != nil {
			return err
		}
	}
	defer mask.Close()

	driver, profiled, err := e.newDriver(kind)
	if err != nil {
		return err
	}
	defer driver.Close()
	defer func() {
		e.logger.Info("inference stats", zap.Object("stats", profiled.Stats()))
	}()

	now := time.Now()
	out, err := driver.Run(frame, mask, pipeline.Request{Kind: kind, Crop: c.Bool(flagCrop)})
	if err != nil {
		return err
	}
	defer out.Close()

	printOutcome(c, "", out)

	if !c.Bool(flagSave) {
		return nil
	}
	return e.save(c, camera, now, frame, out)
}

func printOutcome(c *cli.Context, name string, out pipeline.Outcome) {
	if name != "" {
		fmt.Fprintf(c.App.Writer, "%s ", name)
	}
	fmt.Fprintf(c.App.Writer, "%s: %s", out.Kind, out.Status)
	if out.Present() {
		fmt.Fprintf(c.App.Writer, " score=%.2f subject=%s", out.Best.Score, out.SubjectInFrame())
	}
	fmt.Fprintln(c.App.Writer)
}

// batchCmd runs every frame of a directory, pairing each with the mask of the
// same name when a mask directory is given.
func (e *env) batchCmd(c *cli.Context) error {
	kind, err := models.ParseKind(c.String(flagKind))
	if err != nil {
		return err
	}
	frames, err := util.LoadDirectoryImageFiles(c.Path(flagFrames))
	if err != nil {
		return err
	}
	if len(frames) == 0 {
		return errors.Errorf("no frames in %s", c.Path(flagFrames))
	}

	driver, profiled, err := e.newDriver(kind)
	if err != nil {
		return err
	}
	defer driver.Close()

	counts := make(map[pipeline.Status]int)
	for _, f := range frames {
		status, err := e.batchFrame(c, driver, kind, f)
		if err != nil {
			return errors.Wrap(err, f.Path)
		}
		counts[status]++
	}

	fmt.Fprintf(c.App.Writer, "frames=%d present=%d absent=%d no_subject=%d\n",
		len(frames), counts[pipeline.StatusPresent], counts[pipeline.StatusAbsent], counts[pipeline.StatusNoSubject])
	e.logger.Info("inference stats", zap.Object("stats", profiled.Stats()))
	return nil
}

func (e *env) batchFrame(c *cli.Context, driver *pipeline.Driver, kind models.Kind, f util.ImageFile) (pipeline.Status, error) {
	frame, err := readImage(f.Path, gocv.IMReadColor)
	if err != nil {
		return 0, err
	}
	defer frame.Close()

	mask := gocv.NewMat()
	if dir := c.Path(flagMasks); dir != "" {
		path, ok := util.FindCompanion(dir, f)
		if !ok {
			mask.Close()
			return 0, errors.Errorf("no mask for %s in %s", f.Name, dir)
		}
		mask.Close()
		mask, err = readImage(path, gocv.IMReadGrayScale)
		if err != nil {
			return 0, err
		}
	}
	defer mask.Close()

	now := time.Now()
	out, err := driver.Run(frame, mask, pipeline.Request{Kind: kind, Crop: c.Bool(flagCrop)})
	if err != nil {
		return 0, err
	}
	defer out.Close()

	printOutcome(c, f.Name, out)
	if c.Bool(flagSave) {
		if err := e.save(c, e.cfg.Camera, now, frame, out); err != nil {
			return out.Status, err
		}
	}
	return out.Status, nil
}

// save stores the outcome image, journals it and sends the notification.
func (e *env) save(c *cli.Context, camera string, ts time.Time, frame gocv.Mat, out pipeline.Outcome) error {
	if out.Status == pipeline.StatusNoSubject {
		return nil
	}

	store, err := e.cfg.Output.Store()
	if err != nil {
		return err
	}

	img, sub, label := frame, "motion", ""
	if out.Present() {
		sub, label = "people", string(out.Kind)
		if out.HasCrop() {
			img = out.Crop
		}
	}
	path, err := store.Sub(sub).Write(img, images.WriteOptions{Label: label, Time: ts})
	if err != nil {
		return err
	}
	e.logger.Info("stored", zap.String("path", path))

	if e.cfg.Journal.Path != "" {
		j, err := journal.Open(e.cfg.Journal.Path)
		if err != nil {
			return err
		}
		defer j.Close()
		if _, err := j.Record(c.Context, journal.EventFromOutcome(camera, ts, out, path)); err != nil {
			return err
		}
	}

	msg, err := notify.NewMessage(out, frame, ts, e.cfg.Output.SnapshotWidth)
	if err != nil {
		return err
	}
	return notify.LogNotifier{Logger: e.logger}.Notify(c.Context, msg)
}

func (e *env) regionCmd(c *cli.Context) error {
	frame, err := readImage(c.Path(flagFrame), gocv.IMReadColor)
	if err != nil {
		return err
	}
	defer frame.Close()
	mask, err := readImage(c.Path(flagMask), gocv.IMReadGrayScale)
	if err != nil {
		return err
	}
	defer mask.Close()

	extractor, err := e.extractor()
	if err != nil {
		return err
	}
	crop, r, err := extractor.Crop(frame, mask)
	if err != nil {
		return err
	}
	defer crop.Close()
	if crop.Empty() {
		return errors.Errorf("motion region %s is empty", r)
	}

	if !gocv.IMWrite(c.Path(flagOut), crop) {
		return errors.Errorf("failed to write %s", c.Path(flagOut))
	}
	fmt.Fprintf(c.App.Writer, "region %s\n", r)
	return nil
}

func (e *env) prepareCmd(c *cli.Context) error {
	frame, err := readImage(c.Path(flagFrame), gocv.IMReadColor)
	if err != nil {
		return err
	}
	defer frame.Close()

	out, err := region.PrepareMotionInput(frame, e.cfg.Motion.Crop, e.cfg.Motion.MaskWidth)
	if err != nil {
		return err
	}
	defer out.Close()

	if !gocv.IMWrite(c.Path(flagOut), out) {
		return errors.Errorf("failed to write %s", c.Path(flagOut))
	}
	fmt.Fprintf(c.App.Writer, "motion input %dx%d\n", out.Cols(), out.Rows())
	return nil
}

func (e *env) journalCmd(c *cli.Context) error {
	path, err := e.journalPath()
	if err != nil {
		return err
	}
	j, err := journal.Open(path)
	if err != nil {
		return err
	}
	defer j.Close()

	events, err := j.Recent(c.Context, c.Int(flagLimit))
	if err != nil {
		return err
	}
	for _, ev := range events {
		fmt.Fprintf(c.App.Writer, "%s %s %-6s %-10s %.2f %s %s\n",
			ev.Time.Format(images.TimestampLayout), ev.Camera, ev.Kind, ev.Status, ev.Score, ev.Subject, ev.Path)
	}
	return nil
}
