package pipeline_test

import (
	"image"
	"testing"

	"github.com/nvr-ai/go-sentry/detector"
	"github.com/nvr-ai/go-sentry/images"
	"github.com/nvr-ai/go-sentry/inference"
	"github.com/nvr-ai/go-sentry/models"
	"github.com/nvr-ai/go-sentry/pipeline"
	"github.com/nvr-ai/go-sentry/region"
	"github.com/nvr-ai/go-sentry/test"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gocv.io/x/gocv"
)

var subjectBox = [4]float32{0.1, 0.2, 0.5, 0.6}

type fixture struct {
	driver *pipeline.Driver
	person *test.MockEngine
	face   *test.MockEngine
	logs   *observer.ObservedLogs
}

func newFixture(t *testing.T, person, face *test.MockEngine) fixture {
	t.Helper()

	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)

	var dets []pipeline.SubjectDetector
	for kind, engine := range map[models.Kind]*test.MockEngine{models.KindPerson: person, models.KindFace: face} {
		if engine == nil {
			continue
		}
		d, err := detector.New(engine, detector.DefaultConfig(kind), detector.WithLogger(logger))
		require.NoError(t, err)
		dets = append(dets, d)
	}

	driver, err := pipeline.NewDriver(region.NewExtractor(region.DefaultConfig()), logger, dets...)
	require.NoError(t, err)
	t.Cleanup(func() { driver.Close() })

	return fixture{driver: driver, person: person, face: face, logs: logs}
}

// motionMask is the 100x100 mask with a 20x20 blob at (40,40).
func motionMask() gocv.Mat {
	return test.NewFrameGenerator(100, 100).Mask(images.RectFromXYWH(40, 40, 20, 20))
}

func TestRun_NoMotion(t *testing.T) {
	f := newFixture(t, test.NewMockEngine(test.MockDetection{Score: 0.9, Box: subjectBox}), nil)

	frame := test.NewFrameGenerator(1920, 1080).Uniform(60)
	defer frame.Close()
	mask := test.NewFrameGenerator(100, 100).Mask()
	defer mask.Close()

	out, err := f.driver.Run(frame, mask, pipeline.Request{Kind: models.KindPerson, Crop: true})
	require.NoError(t, err)
	defer out.Close()

	assert.Equal(t, pipeline.StatusNoSubject, out.Status)
	assert.False(t, out.Present())
	assert.False(t, out.HasCrop())
	assert.Zero(t, f.person.Invocations, "inference must not run without a motion region")
}

func TestRun_Absent(t *testing.T) {
	f := newFixture(t, test.NewMockEngine(test.MockDetection{Score: 0.2, Box: subjectBox}), nil)

	frame := test.NewFrameGenerator(1920, 1080).Uniform(128)
	defer frame.Close()
	mask := motionMask()
	defer mask.Close()

	out, err := f.driver.Run(frame, mask, pipeline.Request{Kind: models.KindPerson, Crop: true})
	require.NoError(t, err)
	defer out.Close()

	assert.Equal(t, pipeline.StatusAbsent, out.Status)
	assert.True(t, out.Result.Empty())
	assert.False(t, out.HasCrop())
	assert.Equal(t, 1, f.person.Invocations)
	assert.Equal(t, 1, f.logs.FilterMessage("subject absent").Len())
}

func TestRun_Present(t *testing.T) {
	tests := []struct {
		name string
		crop bool
	}{
		{name: "with crop", crop: true},
		{name: "presence only", crop: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := test.NewMockEngine(
				test.MockDetection{Score: 0.55, Box: [4]float32{0, 0, 0.2, 0.2}},
				test.MockDetection{Score: 0.91, Box: subjectBox},
			)
			f := newFixture(t, engine, nil)

			frame := test.NewFrameGenerator(1920, 1080).Colored(30, 60, 90)
			defer frame.Close()
			mask := motionMask()
			defer mask.Close()
			frameSum := images.ComputeMatChecksum(frame)
			maskSum := images.ComputeMatChecksum(mask)

			out, err := f.driver.Run(frame, mask, pipeline.Request{Kind: models.KindPerson, Crop: tt.crop})
			require.NoError(t, err)
			defer out.Close()

			assert.Equal(t, frameSum, images.ComputeMatChecksum(frame))
			assert.Equal(t, maskSum, images.ComputeMatChecksum(mask))

			require.Equal(t, pipeline.StatusPresent, out.Status)
			assert.Equal(t, models.KindPerson, out.Kind)
			assert.Len(t, out.Result.Detections, 2)
			assert.Equal(t, float32(0.91), out.Best.Score)

			assert.InDelta(t, 938, out.Region.X1, 2)
			assert.InDelta(t, 663, out.Region.Y1, 2)
			assert.InDelta(t, 1432, out.Region.X2, 2)
			assert.Equal(t, 1080, out.Region.Y2)

			regionSize := image.Pt(out.Region.Width(), out.Region.Height())
			assert.Equal(t, regionSize, out.Result.Source, "detector sees the region crop")

			box := detector.NormalizedBox{YMin: subjectBox[0], XMin: subjectBox[1], YMax: subjectBox[2], XMax: subjectBox[3]}
			assert.Equal(t, detector.Map(box, regionSize), out.Subject)
			assert.Equal(t, out.Subject.Translate(out.Region.X1, out.Region.Y1), out.SubjectInFrame())
			assert.True(t, out.SubjectInFrame().Within(1920, 1080))

			if !tt.crop {
				assert.False(t, out.HasCrop())
				return
			}
			require.True(t, out.HasCrop())
			assert.Equal(t, image.Pt(out.Subject.Width(), out.Subject.Height()), images.Size(out.Crop))
			px := out.Crop.GetVecbAt(0, 0)
			assert.Equal(t, []uint8{30, 60, 90}, []uint8{px[0], px[1], px[2]})

			entries := f.logs.FilterMessage("subject present").All()
			require.Len(t, entries, 1)
			assert.Equal(t, "person", entries[0].ContextMap()["label"])
		})
	}
}

func TestRun_WithoutMaskUsesWholeFrame(t *testing.T) {
	engine := test.NewMockEngine(test.MockDetection{Score: 0.8, Box: [4]float32{0, 0, 1, 1}})
	f := newFixture(t, engine, nil)

	frame := test.NewFrameGenerator(640, 480).Uniform(200)
	defer frame.Close()
	noMask := gocv.NewMat()
	defer noMask.Close()

	out, err := f.driver.Run(frame, noMask, pipeline.Request{Kind: models.KindPerson, Crop: true})
	require.NoError(t, err)
	defer out.Close()

	assert.Equal(t, pipeline.StatusPresent, out.Status)
	assert.Equal(t, images.Rect{X2: 640, Y2: 480}, out.Region)
	assert.Equal(t, images.Rect{X2: 640, Y2: 480}, out.Subject)
	assert.Equal(t, image.Pt(640, 480), images.Size(out.Crop))
}

func TestRun_RoutesByKind(t *testing.T) {
	person := test.NewMockEngine(test.MockDetection{Score: 0.9, Box: subjectBox})
	face := test.NewMockEngine()
	f := newFixture(t, person, face)

	assert.Equal(t, []models.Kind{models.KindPerson, models.KindFace}, f.driver.Kinds())

	frame := test.NewFrameGenerator(1920, 1080).Uniform(128)
	defer frame.Close()
	mask := motionMask()
	defer mask.Close()

	out, err := f.driver.Run(frame, mask, pipeline.Request{Kind: models.KindFace})
	require.NoError(t, err)
	defer out.Close()

	assert.Equal(t, pipeline.StatusAbsent, out.Status, "person results never leak into a face run")
	assert.Equal(t, 1, face.Invocations)
	assert.Zero(t, person.Invocations)
}

func TestRun_Errors(t *testing.T) {
	cause := inference.Fail("person", "invoke", errors.New("interpreter crashed"))
	engine := test.NewMockEngine()
	engine.InvokeErr = cause
	f := newFixture(t, engine, nil)

	frame := test.NewFrameGenerator(1920, 1080).Uniform(128)
	defer frame.Close()
	mask := motionMask()
	defer mask.Close()

	out, err := f.driver.Run(frame, mask, pipeline.Request{Kind: models.KindPerson, Crop: true})
	assert.Equal(t, cause, err)
	assert.ErrorIs(t, err, inference.ErrInference)
	assert.Equal(t, pipeline.Outcome{Kind: models.KindPerson}, out, "no crop allocated on error")
	assert.False(t, out.HasCrop())
	assert.NoError(t, out.Close())

	out, err = f.driver.Run(frame, mask, pipeline.Request{Kind: models.KindFace})
	assert.Error(t, err, "unregistered kind")
	assert.Equal(t, pipeline.Outcome{Kind: models.KindFace}, out)

	empty := gocv.NewMat()
	defer empty.Close()
	out, err = f.driver.Run(empty, mask, pipeline.Request{Kind: models.KindPerson})
	assert.Error(t, err)
	assert.Equal(t, pipeline.Outcome{Kind: models.KindPerson}, out)
}

func TestNewDriver(t *testing.T) {
	_, err := pipeline.NewDriver(nil, nil)
	assert.Error(t, err)

	a, err := detector.New(test.NewMockEngine(), detector.DefaultConfig(models.KindPerson))
	require.NoError(t, err)
	b, err := detector.New(test.NewMockEngine(), detector.DefaultConfig(models.KindPerson))
	require.NoError(t, err)

	_, err = pipeline.NewDriver(region.NewExtractor(region.DefaultConfig()), nil, a, b)
	assert.Error(t, err)
}

func TestDriver_Close(t *testing.T) {
	person, face := test.NewMockEngine(), test.NewMockEngine()
	f := newFixture(t, person, face)

	require.NoError(t, f.driver.Close())
	assert.True(t, person.Closed)
	assert.True(t, face.Closed)
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "no_subject", pipeline.StatusNoSubject.String())
	assert.Equal(t, "absent", pipeline.StatusAbsent.String())
	assert.Equal(t, "present", pipeline.StatusPresent.String())
	assert.Equal(t, "unknown", pipeline.Status(9).String())
}
