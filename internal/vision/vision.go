// Package vision prepares inspection photos for the inference models:
// decode, EXIF orientation, downscale, and JPEG re-encode, plus the
// deterministic sampling strategies used by the classification and
// checklist stages.
package vision

import (
	"bytes"
	"sort"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"

	// WEBP has no encoder in the ecosystem we use, but room photos
	// arrive in it often enough that decoding must be registered.
	_ "golang.org/x/image/webp"

	"github.com/InonELGABSI/houseScanner/internal/config"
)

// Warn threshold; oversized photos still get processed, just heavily
// downscaled.
const maxPixels = 50_000_000

// Params bundles the resize bound and JPEG quality for one stage.
type Params struct {
	MaxEdge int
	Quality int
}

// Normalizer converts arbitrary input photos into bounded JPEGs. It is
// safe for concurrent use.
type Normalizer struct {
	general   Params
	classify  Params
	checklist Params
	logger    *zap.Logger
}

// NewNormalizer builds a Normalizer from the configured stage
// parameters.
func NewNormalizer(cfg config.ImageConfig, logger *zap.Logger) *Normalizer {
	return &Normalizer{
		general:   Params{MaxEdge: cfg.MaxEdge, Quality: cfg.Quality},
		classify:  Params{MaxEdge: cfg.ClassifyMaxEdge, Quality: cfg.ClassifyQuality},
		checklist: Params{MaxEdge: cfg.ChecklistMaxEdge, Quality: cfg.ChecklistQuality},
		logger:    logger,
	}
}

// Normalize decodes raw, applies EXIF orientation, shrinks the longest
// edge to at most p.MaxEdge (never upscales), and re-encodes as JPEG at
// p.Quality. Any decode or encode failure returns the input unchanged;
// a broken photo must not fail the request carrying it.
func (n *Normalizer) Normalize(raw []byte, p Params) []byte {
	img, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		n.logger.Warn("image decode failed, passing bytes through",
			zap.Error(err), zap.Int("size_bytes", len(raw)))
		return raw
	}

	bounds := img.Bounds()
	if px := bounds.Dx() * bounds.Dy(); px > maxPixels {
		n.logger.Warn("oversized image, will be heavily downscaled",
			zap.Int("width", bounds.Dx()), zap.Int("height", bounds.Dy()))
	}

	if bounds.Dx() > p.MaxEdge || bounds.Dy() > p.MaxEdge {
		img = imaging.Fit(img, p.MaxEdge, p.MaxEdge, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(p.Quality)); err != nil {
		n.logger.Warn("image encode failed, passing bytes through", zap.Error(err))
		return raw
	}
	return buf.Bytes()
}

// General normalizes with the ingest parameters applied to every photo
// entering the pipeline.
func (n *Normalizer) General(raw []byte) []byte {
	return n.Normalize(raw, n.general)
}

// SampleForClassification picks a deterministic spread of images for
// type classification and normalizes each with the classification
// parameters. With k or fewer images everything is kept; otherwise the
// first, two interior, and last images are taken.
func (n *Normalizer) SampleForClassification(images [][]byte, k int) [][]byte {
	sampled := images
	if len(images) > k {
		idx := spreadIndices(len(images))
		sampled = make([][]byte, 0, len(idx))
		for _, i := range idx {
			sampled = append(sampled, images[i])
		}
	}
	out := make([][]byte, len(sampled))
	for i, img := range sampled {
		out[i] = n.Normalize(img, n.classify)
	}
	return out
}

// SampleForChecklist keeps the first k images in arrival order and
// normalizes each with the checklist parameters.
func (n *Normalizer) SampleForChecklist(images [][]byte, k int) [][]byte {
	sampled := images
	if len(images) > k {
		sampled = images[:k]
	}
	out := make([][]byte, len(sampled))
	for i, img := range sampled {
		out[i] = n.Normalize(img, n.checklist)
	}
	return out
}

// spreadIndices returns {0, n/3, 2n/3, n-1} sorted and deduplicated.
func spreadIndices(n int) []int {
	set := map[int]struct{}{
		0:           {},
		n / 3:       {},
		(2 * n) / 3: {},
		n - 1:       {},
	}
	idx := make([]int, 0, len(set))
	for i := range set {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	return idx
}
