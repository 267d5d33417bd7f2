// internal/storage/storage.go

// Package storage maps project ids to their exclusively-owned artifact
// directories and defines the file layout inside one.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Artifact file names inside a project directory. The viewer references
// these relatively, so renaming any of them is a viewer-format change.
const (
	MarkerFile = "targets.mind"
	ViewerFile = "index.html"
	QRFile     = "qr-code.png"
)

// Layout addresses artifacts inside one project's storage directory.
type Layout struct {
	Dir string
}

func (l Layout) MarkerPath() string { return filepath.Join(l.Dir, MarkerFile) }
func (l Layout) ViewerPath() string { return filepath.Join(l.Dir, ViewerFile) }
func (l Layout) QRPath() string     { return filepath.Join(l.Dir, QRFile) }

func (l Layout) VideoFile(i int) string { return fmt.Sprintf("video-%d.mp4", i) }
func (l Layout) VideoPath(i int) string { return filepath.Join(l.Dir, l.VideoFile(i)) }

func (l Layout) MaskFile(i int) string { return fmt.Sprintf("mask-%d.png", i) }
func (l Layout) MaskPath(i int) string { return filepath.Join(l.Dir, l.MaskFile(i)) }

// OverlayImageFile is the shaped photo used as the overlay for photo-only
// targets.
func (l Layout) OverlayImageFile(i int) string { return fmt.Sprintf("photo-%d.png", i) }
func (l Layout) OverlayImagePath(i int) string { return filepath.Join(l.Dir, l.OverlayImageFile(i)) }

// DisplayPhotoFile is the printable border-enhanced marker photo.
func (l Layout) DisplayPhotoFile(i int) string { return fmt.Sprintf("enhanced-photo-%d.jpg", i) }
func (l Layout) DisplayPhotoPath(i int) string { return filepath.Join(l.Dir, l.DisplayPhotoFile(i)) }

// Manager resolves project storage directories under one root and converts
// absolute artifact paths to the public-relative form the storefront serves.
type Manager struct {
	root         string
	publicPrefix string
}

// NewManager creates a manager rooted at root. publicPrefix is the URL path
// prefix under which the root is served, e.g. "/objects/ar-storage".
func NewManager(root, publicPrefix string) *Manager {
	return &Manager{root: root, publicPrefix: strings.TrimRight(publicPrefix, "/")}
}

// ProjectDir returns the directory owned by projectID.
func (m *Manager) ProjectDir(projectID string) Layout {
	return Layout{Dir: filepath.Join(m.root, projectID)}
}

// EnsureProjectDir creates the project directory when missing.
func (m *Manager) EnsureProjectDir(projectID string) (Layout, error) {
	l := m.ProjectDir(projectID)
	if err := os.MkdirAll(l.Dir, 0o755); err != nil {
		return Layout{}, fmt.Errorf("create project storage: %w", err)
	}
	return l, nil
}

// DeleteProjectDir removes a project's storage wholesale.
func (m *Manager) DeleteProjectDir(projectID string) error {
	return os.RemoveAll(m.ProjectDir(projectID).Dir)
}

// ListProjects returns the project ids that currently have storage.
func (m *Manager) ListProjects() ([]string, error) {
	entries, err := os.ReadDir(m.root)
	if err != nil {
		return nil, fmt.Errorf("list project storage: %w", err)
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			ids = append(ids, e.Name())
		}
	}
	return ids, nil
}

// PublicURL converts an absolute artifact path into its public-relative
// form, e.g. /objects/ar-storage/<project>/<file>.
func (m *Manager) PublicURL(absPath string) string {
	rel, err := filepath.Rel(m.root, absPath)
	if err != nil || strings.HasPrefix(rel, "..") {
		return absPath
	}
	return m.publicPrefix + "/" + filepath.ToSlash(rel)
}
