package models

import (
	"bufio"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// OutputClass represents one detection label.
type OutputClass struct {
	// The integer index returned by the model.
	Index int
	// The human-readable label.
	Name string
}

// OutputClassSet ties a family to its full list of labels.
type OutputClassSet struct {
	// Class set identifier.
	Style ModelFamily
	// Classes that are supported and mappable.
	Classes []OutputClass
	// nameToIdx for fast lookup by name
	nameToIdx map[string]int
}

// BuildNameIndexMap builds or rebuilds the name->index map. The first index
// wins when a name repeats.
func (s *OutputClassSet) BuildNameIndexMap() {
	s.nameToIdx = make(map[string]int, len(s.Classes))
	for _, c := range s.Classes {
		if _, ok := s.nameToIdx[c.Name]; !ok {
			s.nameToIdx[c.Name] = c.Index
		}
	}
}

// ClassManager holds all registered class sets.
type ClassManager struct {
	sets map[ModelFamily]*OutputClassSet
}

// NewClassManager initializes and registers the given sets.
func NewClassManager(allSets ...*OutputClassSet) *ClassManager {
	mgr := &ClassManager{sets: make(map[ModelFamily]*OutputClassSet)}
	for _, set := range allSets {
		mgr.Register(set)
	}
	return mgr
}

// DefaultClassManager registers a copy of every set in AllClassSets, so
// registering a label file never changes the built-in sets.
func DefaultClassManager() *ClassManager {
	sets := make([]*OutputClassSet, 0, len(AllClassSets))
	for _, set := range AllClassSets {
		sets = append(sets, &set)
	}
	return NewClassManager(sets...)
}

// Register adds or replaces a set, e.g. one read by LoadLabelFile.
func (m *ClassManager) Register(set *OutputClassSet) {
	set.BuildNameIndexMap()
	m.sets[set.Style] = set
}

// GetName returns the class name for a given family and index.
func (m *ClassManager) GetName(style ModelFamily, idx int) (string, error) {
	set, ok := m.sets[style]
	if !ok {
		return "", errors.Errorf("style %q not registered", style)
	}
	if idx < 0 || idx >= len(set.Classes) {
		return "", errors.Errorf("index %d out of range for style %q", idx, style)
	}
	return set.Classes[idx].Name, nil
}

// GetIndex returns the class index for a given family and name.
func (m *ClassManager) GetIndex(style ModelFamily, name string) (int, error) {
	set, ok := m.sets[style]
	if !ok {
		return -1, errors.Errorf("style %q not registered", style)
	}
	idx, ok := set.nameToIdx[name]
	if !ok {
		return -1, errors.Errorf("name %q not found in style %q", name, style)
	}
	return idx, nil
}

// Resolve turns a configured class, either a label or a numeric index, into
// an index of the given family.
//
// Arguments:
//   - style: The label family.
//   - class: A label or a numeric class id.
//
// Returns:
//   - int: The class id.
//   - error: The error if the class is unknown to the family.
func (m *ClassManager) Resolve(style ModelFamily, class string) (int, error) {
	if idx, err := strconv.Atoi(class); err == nil {
		if _, err := m.GetName(style, idx); err != nil {
			return -1, err
		}
		return idx, nil
	}
	return m.GetIndex(style, class)
}

// LoadLabelFile reads a TFLite-style labelmap with one label per line. Line n
// (zero-based) becomes class n; blank lines are skipped.
//
// Arguments:
//   - style: The family to register the labels under.
//   - path: The label file path.
//
// Returns:
//   - *OutputClassSet: The labels.
//   - error: The error if the file cannot be read or holds no labels.
func LoadLabelFile(style ModelFamily, path string) (*OutputClassSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open label file %s", path)
	}
	defer f.Close()

	set := &OutputClassSet{Style: style}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		name := strings.TrimSpace(scanner.Text())
		if name == "" {
			continue
		}
		set.Classes = append(set.Classes, OutputClass{Index: len(set.Classes), Name: name})
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "failed to read label file %s", path)
	}
	if len(set.Classes) == 0 {
		return nil, errors.Errorf("label file %s is empty", path)
	}

	set.BuildNameIndexMap()
	return set, nil
}

// COCOClasses is the full 80 COCO classes plus "__background__" at index 0.
var COCOClasses = OutputClassSet{
	Style: ModelFamilyCOCO,
	Classes: []OutputClass{
		{0, "__background__"},
		{1, "person"},
		{2, "bicycle"},
		{3, "car"},
		{4, "motorcycle"},
		{5, "airplane"},
		{6, "bus"},
		{7, "train"},
		{8, "truck"},
		{9, "boat"},
		{10, "traffic light"},
		{11, "fire hydrant"},
		{12, "stop sign"},
		{13, "parking meter"},
		{14, "bench"},
		{15, "bird"},
		{16, "cat"},
		{17, "dog"},
		{18, "horse"},
		{19, "sheep"},
		{20, "cow"},
		{21, "elephant"},
		{22, "bear"},
		{23, "zebra"},
		{24, "giraffe"},
		{25, "backpack"},
		{26, "umbrella"},
		{27, "handbag"},
		{28, "tie"},
		{29, "suitcase"},
		{30, "frisbee"},
		{31, "skis"},
		{32, "snowboard"},
		{33, "sports ball"},
		{34, "kite"},
		{35, "baseball bat"},
		{36, "baseball glove"},
		{37, "skateboard"},
		{38, "surfboard"},
		{39, "tennis racket"},
		{40, "bottle"},
		{41, "wine glass"},
		{42, "cup"},
		{43, "fork"},
		{44, "knife"},
		{45, "spoon"},
		{46, "bowl"},
		{47, "banana"},
		{48, "apple"},
		{49, "sandwich"},
		{50, "orange"},
		{51, "broccoli"},
		{52, "carrot"},
		{53, "hot dog"},
		{54, "pizza"},
		{55, "donut"},
		{56, "cake"},
		{57, "chair"},
		{58, "couch"},
		{59, "potted plant"},
		{60, "bed"},
		{61, "dining table"},
		{62, "toilet"},
		{63, "tv"},
		{64, "laptop"},
		{65, "mouse"},
		{66, "remote"},
		{67, "keyboard"},
		{68, "cell phone"},
		{69, "microwave"},
		{70, "oven"},
		{71, "toaster"},
		{72, "sink"},
		{73, "refrigerator"},
		{74, "book"},
		{75, "clock"},
		{76, "vase"},
		{77, "scissors"},
		{78, "teddy bear"},
		{79, "hair drier"},
		{80, "toothbrush"},
	},
}

// SSDClasses is the 80 COCO classes (no background).
// TFLite SSD models index directly into this zero-based list.
var SSDClasses = OutputClassSet{
	Style: ModelFamilySSD,
	Classes: func() []OutputClass {
		classes := make([]OutputClass, len(COCOClasses.Classes)-1) // drop background
		for i := 1; i < len(COCOClasses.Classes); i++ {
			classes[i-1] = OutputClass{i - 1, COCOClasses.Classes[i].Name}
		}
		return classes
	}(),
}

// FaceClasses is the label set of single-class face detectors.
var FaceClasses = OutputClassSet{
	Style:   ModelFamilyFace,
	Classes: []OutputClass{{0, "face"}},
}

// AllClassSets collects every built-in OutputClassSet in one place.
var AllClassSets = []OutputClassSet{
	COCOClasses,
	SSDClasses,
	FaceClasses,
}
