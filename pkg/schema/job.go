// pkg/schema/job.go
package schema

// Vec3 is a 3D transform component for the viewer overlay.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// PlaneScale is the overlay plane size in marker units.
type PlaneScale struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// FitMode controls how a video is scaled relative to its target region.
type FitMode string

const (
	FitContain FitMode = "contain"
	FitCover   FitMode = "cover"
	FitFill    FitMode = "fill"
	FitExact   FitMode = "exact"
)

// ShapeType selects an auto-generated alpha mask, or "custom" for an
// uploaded mask file.
type ShapeType string

const (
	ShapeNone   ShapeType = ""
	ShapeCircle ShapeType = "circle"
	ShapeOval   ShapeType = "oval"
	ShapeSquare ShapeType = "square"
	ShapeRect   ShapeType = "rect"
	ShapeCustom ShapeType = "custom"
)

// PlacementConfig carries the user-configured placement and playback options
// for the generated viewer.
type PlacementConfig struct {
	FitMode       FitMode     `json:"fit_mode,omitempty"`
	Zoom          float64     `json:"zoom,omitempty"`
	OffsetX       float64     `json:"offset_x,omitempty"`
	OffsetY       float64     `json:"offset_y,omitempty"`
	AspectLocked  *bool       `json:"aspect_locked,omitempty"`
	AutoPlay      *bool       `json:"auto_play,omitempty"`
	Loop          *bool       `json:"loop,omitempty"`
	VideoPosition *Vec3       `json:"video_position,omitempty"`
	VideoRotation *Vec3       `json:"video_rotation,omitempty"`
	VideoScale    *PlaneScale `json:"video_scale,omitempty"`
	MarkerCount   int         `json:"marker_count,omitempty"`
}

// CompilationJob is the unit of work delivered by the task queue. It is
// immutable once submitted; redelivery of the same job must be safe.
type CompilationJob struct {
	ProjectID string `json:"project_id"`
	UserID    string `json:"user_id"`

	// Single-photo form, kept for older submitters.
	PhotoPath string `json:"photo_path,omitempty"`
	VideoPath string `json:"video_path,omitempty"`
	MaskPath  string `json:"mask_path,omitempty"`

	// Multi-target form. Videos and masks pair positionally with photos;
	// an empty slot means that target has no video / no custom mask.
	PhotoPaths []string `json:"photo_paths,omitempty"`
	VideoPaths []string `json:"video_paths,omitempty"`
	MaskPaths  []string `json:"mask_paths,omitempty"`

	ShapeType  ShapeType       `json:"shape_type,omitempty"`
	StorageDir string          `json:"storage_dir"`
	Config     PlacementConfig `json:"config"`
}

// Photos normalizes the single- and multi-photo forms into one slice.
func (j *CompilationJob) Photos() []string {
	if len(j.PhotoPaths) > 0 {
		return j.PhotoPaths
	}
	if j.PhotoPath != "" {
		return []string{j.PhotoPath}
	}
	return nil
}

// Videos returns the per-target video paths, padded to match Photos.
func (j *CompilationJob) Videos() []string {
	n := len(j.Photos())
	out := make([]string, n)
	src := j.VideoPaths
	if len(src) == 0 && j.VideoPath != "" {
		src = []string{j.VideoPath}
	}
	copy(out, src)
	return out
}

// Masks returns the per-target custom mask paths, padded to match Photos.
func (j *CompilationJob) Masks() []string {
	n := len(j.Photos())
	out := make([]string, n)
	src := j.MaskPaths
	if len(src) == 0 && j.MaskPath != "" {
		src = []string{j.MaskPath}
	}
	copy(out, src)
	return out
}

// ResultMetadata describes the produced artifacts. Descriptive only, not
// authoritative state.
type ResultMetadata struct {
	MarkersCount     int      `json:"markers_count"`
	MultiTarget      bool     `json:"multi_target"`
	PhotoWidth       int      `json:"photo_width"`
	PhotoHeight      int      `json:"photo_height"`
	PhotoAspectRatio string   `json:"photo_aspect_ratio"`
	VideoWidth       int      `json:"video_width,omitempty"`
	VideoHeight      int      `json:"video_height,omitempty"`
	VideoAspectRatio string   `json:"video_aspect_ratio,omitempty"`
	FitMode          string   `json:"fit_mode"`
	MarkerSizes      []int64  `json:"marker_sizes,omitempty"`
	MaskFiles        []string `json:"mask_files,omitempty"`
	CacheHit         bool     `json:"cache_hit"`
}

// CompilationResult is the terminal outcome of one job attempt.
type CompilationResult struct {
	Success           bool            `json:"success"`
	Error             string          `json:"error,omitempty"`
	FailureType       FailureType     `json:"failure_type,omitempty"`
	FailedStep        string          `json:"failed_step,omitempty"`
	CompilationTimeMs int64           `json:"compilation_time_ms"`
	MarkerMindURL     string          `json:"marker_mind_url,omitempty"`
	ViewerHTMLURL     string          `json:"viewer_html_url,omitempty"`
	QRCodeURL         string          `json:"qr_code_url,omitempty"`
	ViewURL           string          `json:"view_url,omitempty"`
	Metadata          *ResultMetadata `json:"metadata,omitempty"`
}
