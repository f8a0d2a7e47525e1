package processors

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"os"

	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"go.uber.org/zap"

	"github.com/tomasellis/framedex/core"
)

// Embedder is the image-embedding capability: a deterministic map from
// an image to a fixed-dimensionality float32 vector.
type Embedder interface {
	EmbedImage(ctx context.Context, jpegData []byte) ([]float32, error)
}

// PatchResult is the outcome for one patch of one frame: either an
// embedding or the reason the patch was skipped.
type PatchResult struct {
	Patch     core.PatchSpec
	Embedding []float32
	Err       error
}

// PatchEmbedder crops each of the 13 patch regions out of a frame and
// runs the embedding capability on every crop.
type PatchEmbedder struct {
	embedder Embedder
	log      *zap.Logger
}

func NewPatchEmbedder(embedder Embedder, log *zap.Logger) *PatchEmbedder {
	return &PatchEmbedder{embedder: embedder, log: log}
}

// EmbedFrame loads the frame once and returns one PatchResult per
// patch. A failed crop or embed skips that single patch; the error is
// recorded in the result and the remaining patches still run. The
// returned error is non-nil only when the frame itself cannot be read.
func (p *PatchEmbedder) EmbedFrame(ctx context.Context, framePath string) ([]PatchResult, error) {
	img, err := loadImage(framePath)
	if err != nil {
		return nil, fmt.Errorf("load frame %s: %w", framePath, err)
	}
	return p.EmbedPatches(ctx, img), nil
}

// EmbedPatches runs the patch decomposition over an already-decoded
// image, one PatchResult per region.
func (p *PatchEmbedder) EmbedPatches(ctx context.Context, img image.Image) []PatchResult {
	bounds := img.Bounds()
	patches := core.GeneratePatches(bounds.Dx(), bounds.Dy())

	results := make([]PatchResult, 0, len(patches))
	for _, spec := range patches {
		emb, err := p.embedPatch(ctx, img, spec)
		if err != nil {
			p.log.Warn("skipping patch",
				zap.String("patch", spec.PatchType),
				zap.Error(err))
		}
		results = append(results, PatchResult{Patch: spec, Embedding: emb, Err: err})
	}
	return results
}

// EmbedWhole embeds the full image without patch decomposition.
func (p *PatchEmbedder) EmbedWhole(ctx context.Context, path string) ([]float32, error) {
	img, err := loadImage(path)
	if err != nil {
		return nil, fmt.Errorf("load image %s: %w", path, err)
	}
	full := core.PatchSpec{PatchType: "full", Width: img.Bounds().Dx(), Height: img.Bounds().Dy()}
	return p.embedPatch(ctx, img, full)
}

func (p *PatchEmbedder) embedPatch(ctx context.Context, img image.Image, spec core.PatchSpec) ([]float32, error) {
	if spec.Width <= 0 || spec.Height <= 0 {
		return nil, fmt.Errorf("empty patch region %dx%d", spec.Width, spec.Height)
	}

	crop, err := cropImage(img, spec)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, crop, &jpeg.Options{Quality: 90}); err != nil {
		return nil, fmt.Errorf("encode patch: %w", err)
	}
	return p.embedder.EmbedImage(ctx, buf.Bytes())
}

func loadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	return img, err
}

type subImager interface {
	SubImage(r image.Rectangle) image.Image
}

func cropImage(img image.Image, spec core.PatchSpec) (image.Image, error) {
	min := img.Bounds().Min
	rect := image.Rect(min.X+spec.X, min.Y+spec.Y, min.X+spec.X+spec.Width, min.Y+spec.Y+spec.Height)
	rect = rect.Intersect(img.Bounds())
	if rect.Empty() {
		return nil, fmt.Errorf("patch %s lies outside the frame", spec.PatchType)
	}

	if si, ok := img.(subImager); ok {
		return si.SubImage(rect), nil
	}
	// decoders without SubImage get an explicit copy
	out := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	for y := 0; y < rect.Dy(); y++ {
		for x := 0; x < rect.Dx(); x++ {
			out.Set(x, y, img.At(rect.Min.X+x, rect.Min.Y+y))
		}
	}
	return out, nil
}
