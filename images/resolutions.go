package images

import (
	"fmt"
	"image"
	"math"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// AspectRatio names a camera aspect ratio, e.g. "16:9".
type AspectRatio string

const (
	AspectRatio169 AspectRatio = "16:9"
	AspectRatio43  AspectRatio = "4:3"
	AspectRatio54  AspectRatio = "5:4"
	AspectRatio32  AspectRatio = "3:2"
)

// Pixels is the exact frame size of a resolution.
type Pixels struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// Resolution is a named camera frame size that configuration can refer to by
// alias instead of spelling out width and height.
type Resolution struct {
	Alias       string
	Name        string
	AspectRatio AspectRatio
	Pixels      Pixels
}

// Size returns the frame size as an image.Point.
func (r Resolution) Size() image.Point {
	return image.Pt(r.Pixels.Width, r.Pixels.Height)
}

// MegaPixels returns the pixel count in millions, rounded to two decimals.
func (r Resolution) MegaPixels() float64 {
	if r.Pixels.Width <= 0 || r.Pixels.Height <= 0 {
		return 0
	}
	mp := float64(r.Pixels.Width*r.Pixels.Height) / 1_000_000
	return math.Round(mp*100) / 100
}

func (r Resolution) String() string {
	return fmt.Sprintf("%s (%dx%d, %.2fMP)", r.Name, r.Pixels.Width, r.Pixels.Height, r.MegaPixels())
}

// Resolutions holds the common surveillance camera frame sizes by alias.
var Resolutions = map[string]Resolution{
	"360p":  {Alias: "360p", Name: "nHD", AspectRatio: AspectRatio169, Pixels: Pixels{640, 360}},
	"480p":  {Alias: "480p", Name: "FWVGA", AspectRatio: AspectRatio169, Pixels: Pixels{854, 480}},
	"540p":  {Alias: "540p", Name: "qHD 540p", AspectRatio: AspectRatio169, Pixels: Pixels{960, 540}},
	"720p":  {Alias: "720p", Name: "HD 720p", AspectRatio: AspectRatio169, Pixels: Pixels{1280, 720}},
	"1mp":   {Alias: "1mp", Name: "1MP (5:4)", AspectRatio: AspectRatio54, Pixels: Pixels{1280, 1024}},
	"1080p": {Alias: "1080p", Name: "Full HD 1080p", AspectRatio: AspectRatio169, Pixels: Pixels{1920, 1080}},
	"2mp":   {Alias: "2mp", Name: "2MP (4:3)", AspectRatio: AspectRatio43, Pixels: Pixels{1600, 1200}},
	"1440p": {Alias: "1440p", Name: "QHD 1440p", AspectRatio: AspectRatio169, Pixels: Pixels{2560, 1440}},
	"3mp":   {Alias: "3mp", Name: "3MP (4:3)", AspectRatio: AspectRatio43, Pixels: Pixels{2048, 1536}},
	"4mp":   {Alias: "4mp", Name: "4MP (16:9)", AspectRatio: AspectRatio169, Pixels: Pixels{2688, 1520}},
	"6mp":   {Alias: "6mp", Name: "6MP (3:2)", AspectRatio: AspectRatio32, Pixels: Pixels{3072, 2048}},
	"4k":    {Alias: "4k", Name: "4K UHD", AspectRatio: AspectRatio169, Pixels: Pixels{3840, 2160}},
	"12mp":  {Alias: "12mp", Name: "12MP (4:3)", AspectRatio: AspectRatio43, Pixels: Pixels{4000, 3000}},
}

// LookupResolution finds a resolution by alias, ignoring case.
//
// Arguments:
//   - alias: The resolution alias, e.g. 1080p.
//
// Returns:
//   - Resolution: The matching resolution.
//   - error: The error if the alias is unknown.
func LookupResolution(alias string) (Resolution, error) {
	res, ok := Resolutions[strings.ToLower(strings.TrimSpace(alias))]
	if !ok {
		return Resolution{}, errors.Errorf("unknown resolution %q (known: %s)", alias, strings.Join(ResolutionAliases(), ", "))
	}
	return res, nil
}

// ResolutionOf returns the named resolution with exactly the given size.
func ResolutionOf(size image.Point) (Resolution, bool) {
	for _, res := range Resolutions {
		if res.Size() == size {
			return res, true
		}
	}
	return Resolution{}, false
}

// ResolutionAliases returns every alias, smallest frame first.
func ResolutionAliases() []string {
	aliases := make([]string, 0, len(Resolutions))
	for alias := range Resolutions {
		aliases = append(aliases, alias)
	}
	sort.Slice(aliases, func(i, j int) bool {
		a, b := Resolutions[aliases[i]], Resolutions[aliases[j]]
		pa, pb := a.Pixels.Width*a.Pixels.Height, b.Pixels.Width*b.Pixels.Height
		if pa != pb {
			return pa < pb
		}
		return aliases[i] < aliases[j]
	})
	return aliases
}
