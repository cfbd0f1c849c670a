package badge

// Stage is the last state a badge reached. The pipeline only moves forward.
type Stage string

const (
	StageNew              Stage = "New"
	StageLoaded           Stage = "Loaded"
	StageOrientationFixed Stage = "OrientationFixed"
	StageResized          Stage = "Resized"
	StageFocusResolved    Stage = "FocusResolved"
	StageCropped          Stage = "Cropped"
	StageComposited       Stage = "Composited"
	StageTextRendered     Stage = "TextRendered"
	StageSaved            Stage = "Saved"
)

var stageOrder = map[Stage]int{
	StageNew:              0,
	StageLoaded:           1,
	StageOrientationFixed: 2,
	StageResized:          3,
	StageFocusResolved:    4,
	StageCropped:          5,
	StageComposited:       6,
	StageTextRendered:     7,
	StageSaved:            8,
}

func (s Stage) String() string { return string(s) }

// Before reports whether s comes earlier than other in the pipeline.
func (s Stage) Before(other Stage) bool {
	return stageOrder[s] < stageOrder[other]
}

// tracker records stage progress for one invocation.
type tracker struct {
	stage Stage
}

func (t *tracker) advance(next Stage) {
	if !t.stage.Before(next) {
		panic("badge: stage " + string(next) + " does not follow " + string(t.stage))
	}
	t.stage = next
}
