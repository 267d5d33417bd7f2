package schema

import (
	"encoding/json"
	"testing"
)

func TestPhotosNormalization(t *testing.T) {
	single := &CompilationJob{PhotoPath: "a.png"}
	if got := single.Photos(); len(got) != 1 || got[0] != "a.png" {
		t.Fatalf("single-photo form: %v", got)
	}

	multi := &CompilationJob{PhotoPath: "ignored.png", PhotoPaths: []string{"a.png", "b.png"}}
	if got := multi.Photos(); len(got) != 2 || got[0] != "a.png" {
		t.Fatalf("multi-photo form should win: %v", got)
	}

	if got := (&CompilationJob{}).Photos(); got != nil {
		t.Fatalf("empty job should have no photos: %v", got)
	}
}

func TestVideosPaddedToPhotos(t *testing.T) {
	job := &CompilationJob{
		PhotoPaths: []string{"a.png", "b.png", "c.png"},
		VideoPaths: []string{"a.mp4"},
	}

	got := job.Videos()
	if len(got) != 3 {
		t.Fatalf("videos not padded: %v", got)
	}
	if got[0] != "a.mp4" || got[1] != "" || got[2] != "" {
		t.Fatalf("positional pairing broken: %v", got)
	}
}

func TestMasksLegacySingleForm(t *testing.T) {
	job := &CompilationJob{
		PhotoPaths: []string{"a.png", "b.png"},
		MaskPath:   "m.png",
	}

	got := job.Masks()
	if len(got) != 2 || got[0] != "m.png" || got[1] != "" {
		t.Fatalf("legacy mask form broken: %v", got)
	}
}

func TestCompilationJobJSONRoundTrip(t *testing.T) {
	locked := false
	job := &CompilationJob{
		ProjectID:  "p1",
		PhotoPaths: []string{"a.png"},
		ShapeType:  ShapeCircle,
		StorageDir: "/data/p1",
		Config: PlacementConfig{
			FitMode:      FitCover,
			Zoom:         1.5,
			AspectLocked: &locked,
			MarkerCount:  1,
		},
	}

	data, err := json.Marshal(job)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded CompilationJob
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.ShapeType != ShapeCircle || decoded.Config.FitMode != FitCover {
		t.Fatalf("round trip mangled: %+v", decoded)
	}
	if decoded.Config.AspectLocked == nil || *decoded.Config.AspectLocked {
		t.Fatal("aspect_locked pointer lost")
	}
}
