package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/InonELGABSI/houseScanner/internal/vision"
)

// Sentinel errors checked at the HTTP boundary for status mapping.
var (
	ErrNotFound = errors.New("simulation directory not found")
	ErrNoRooms  = errors.New("no room directories with valid images found")
)

// imageExtensions lists the file suffixes loaded from demo trees.
var imageExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".webp": {},
	".bmp":  {},
	".tiff": {},
}

// Room pairs a room directory name with its normalized images.
type Room struct {
	ID     string
	Images [][]byte
}

// Simulation describes one runnable demo tree under the demo root.
type Simulation struct {
	Name   string `json:"name"`
	Path   string `json:"path"`
	Rooms  int    `json:"rooms"`
	Images int    `json:"images"`
}

// Local reads demo image trees laid out as room* directories of photos.
type Local struct {
	vision *vision.Normalizer
	logger *zap.Logger
}

// NewLocal builds a local demo tree reader.
func NewLocal(normalizer *vision.Normalizer, logger *zap.Logger) *Local {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Local{vision: normalizer, logger: logger}
}

// CollectRooms loads every image under root's room* directories,
// normalized and in sorted directory and file order. Rooms without a
// single usable image are logged and skipped. It returns the flat image
// list alongside the per-room grouping.
func (l *Local) CollectRooms(root string) ([][]byte, []Room, error) {
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return nil, nil, fmt.Errorf("%w: %s", ErrNotFound, root)
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, nil, fmt.Errorf("read simulation directory: %w", err)
	}
	var roomDirs []string
	for _, entry := range entries {
		if entry.IsDir() && strings.HasPrefix(entry.Name(), "room") {
			roomDirs = append(roomDirs, entry.Name())
		}
	}
	if len(roomDirs) == 0 {
		return nil, nil, fmt.Errorf("%w: %s", ErrNoRooms, root)
	}
	sort.Strings(roomDirs)

	var all [][]byte
	var rooms []Room
	for _, name := range roomDirs {
		images := l.loadRoomImages(filepath.Join(root, name))
		if len(images) == 0 {
			l.logger.Warn("room has no usable images", zap.String("room", name))
			continue
		}
		rooms = append(rooms, Room{ID: name, Images: images})
		all = append(all, images...)
		l.logger.Info("room images loaded",
			zap.String("room", name), zap.Int("count", len(images)))
	}
	if len(rooms) == 0 {
		return nil, nil, fmt.Errorf("%w: %s", ErrNoRooms, root)
	}

	l.logger.Info("simulation images collected",
		zap.Int("images", len(all)), zap.Int("rooms", len(rooms)))
	return all, rooms, nil
}

func (l *Local) loadRoomImages(dir string) [][]byte {
	entries, err := os.ReadDir(dir)
	if err != nil {
		l.logger.Warn("cannot read room directory", zap.String("dir", dir), zap.Error(err))
		return nil
	}
	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && isImageFile(entry.Name()) {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	var images [][]byte
	for _, name := range names {
		raw, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			l.logger.Warn("cannot read image file",
				zap.String("file", filepath.Join(dir, name)), zap.Error(err))
			continue
		}
		images = append(images, l.vision.General(raw))
	}
	return images
}

// AvailableSimulations lists the demo subdirectories that contain at
// least one room* directory, with room and image counts. A missing demo
// root yields an empty list.
func (l *Local) AvailableSimulations(root string) []Simulation {
	entries, err := os.ReadDir(root)
	if err != nil {
		return []Simulation{}
	}

	sims := []Simulation{}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		rooms, images := countRoomImages(filepath.Join(root, entry.Name()))
		if rooms == 0 {
			continue
		}
		sims = append(sims, Simulation{
			Name:   entry.Name(),
			Path:   entry.Name(),
			Rooms:  rooms,
			Images: images,
		})
	}
	sort.Slice(sims, func(i, j int) bool { return sims[i].Name < sims[j].Name })
	return sims
}

func countRoomImages(dir string) (rooms, images int) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, 0
	}
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), "room") {
			continue
		}
		rooms++
		files, err := os.ReadDir(filepath.Join(dir, entry.Name()))
		if err != nil {
			continue
		}
		for _, f := range files {
			if !f.IsDir() && isImageFile(f.Name()) {
				images++
			}
		}
	}
	return rooms, images
}

func isImageFile(name string) bool {
	_, ok := imageExtensions[strings.ToLower(filepath.Ext(name))]
	return ok
}
