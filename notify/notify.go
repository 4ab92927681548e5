// Package notify builds the messages sent when the pipeline sees something and
// hands them to a delivery channel.
package notify

import (
	"bytes"
	"context"
	"image/jpeg"
	"strings"
	"time"

	"github.com/nfnt/resize"
	"github.com/nvr-ai/go-sentry/images"
	"github.com/nvr-ai/go-sentry/pipeline"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

// DefaultQuality is the JPEG quality of snapshots.
const DefaultQuality = 85

// Message is one notification: a caption and an optional encoded photo.
type Message struct {
	Caption string
	// Photo is a JPEG image, or nil.
	Photo []byte
	// Silent asks the channel to deliver without an audible alert.
	Silent bool
	Time   time.Time
}

// Notifier delivers messages.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// Caption describes an outcome, e.g. "Person detected at 10-19-2026--14-03-22".
// Outcomes without a subject are reported as motion.
func Caption(o pipeline.Outcome, ts time.Time) string {
	what := "Motion"
	if o.Present() && o.Kind != "" {
		k := string(o.Kind)
		what = strings.ToUpper(k[:1]) + k[1:]
	}
	return what + " detected at " + ts.Format(images.TimestampLayout)
}

// Snapshot encodes mat as a JPEG no wider than maxWidth. A maxWidth of zero
// keeps the original size.
func Snapshot(mat gocv.Mat, maxWidth int) ([]byte, error) {
	if mat.Empty() {
		return nil, errors.New("cannot snapshot an empty image")
	}

	img, err := mat.ToImage()
	if err != nil {
		return nil, errors.Wrap(err, "failed to convert snapshot")
	}
	if maxWidth > 0 && img.Bounds().Dx() > maxWidth {
		img = resize.Resize(uint(maxWidth), 0, img, resize.Bilinear)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: DefaultQuality}); err != nil {
		return nil, errors.Wrap(err, "failed to encode snapshot")
	}
	return buf.Bytes(), nil
}

// NewMessage builds the message for an outcome. The photo is the subject crop
// when there is one, otherwise the frame.
//
// Arguments:
//   - o: The pipeline outcome.
//   - frame: The full frame, used when the outcome holds no crop.
//   - ts: The time of the frame.
//   - maxWidth: The snapshot width limit.
//
// Returns:
//   - Message: The caption and the JPEG snapshot.
//   - error: The encoding error.
func NewMessage(o pipeline.Outcome, frame gocv.Mat, ts time.Time, maxWidth int) (Message, error) {
	src := frame
	if o.HasCrop() {
		src = o.Crop
	}

	msg := Message{Caption: Caption(o, ts), Time: ts}
	if src.Empty() {
		return msg, nil
	}

	photo, err := Snapshot(src, maxWidth)
	if err != nil {
		return msg, err
	}
	msg.Photo = photo
	return msg, nil
}

// LogNotifier writes messages to a logger instead of a chat channel.
type LogNotifier struct {
	Logger *zap.Logger
}

// Notify implements Notifier.
func (n LogNotifier) Notify(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	logger := n.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("notification",
		zap.String("caption", msg.Caption),
		zap.Int("photo_bytes", len(msg.Photo)),
		zap.Bool("silent", msg.Silent))
	return nil
}
