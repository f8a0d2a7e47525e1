package processors

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/tomasellis/framedex/core"
)

var imageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
	".bmp":  true,
}

// FrameExtractor wraps the external ffmpeg decoder and the on-disk
// frame layout. Extraction is idempotent per output directory: if the
// directory already holds image files they are reused and the decoder
// is not invoked again.
type FrameExtractor struct {
	log *zap.Logger
}

func NewFrameExtractor(log *zap.Logger) *FrameExtractor {
	return &FrameExtractor{log: log}
}

// ExtractOrDiscover returns the ordered frame sequence for a video.
// Existing frames in outputDir win over re-decoding; otherwise every
// interval-th frame is decoded into outputDir as frame_NNNNNN.jpg.
func (e *FrameExtractor) ExtractOrDiscover(ctx context.Context, videoPath, outputDir string, interval int) ([]core.FrameRecord, error) {
	if interval <= 0 {
		interval = 1
	}

	frames, err := e.discoverFrames(outputDir, interval)
	if err != nil {
		return nil, err
	}
	if len(frames) > 0 {
		e.log.Info("using existing frames, skipping extraction",
			zap.String("dir", outputDir), zap.Int("count", len(frames)))
		return frames, nil
	}

	if err := e.extractEveryNth(ctx, videoPath, outputDir, interval); err != nil {
		return nil, err
	}
	return e.discoverFrames(outputDir, interval)
}

// discoverFrames builds FrameRecords from image files already present
// in dir, sorted by filename. Timestamps come from the embedded
// frame_NNNNNN index when the name follows that convention, otherwise
// from index * interval.
func (e *FrameExtractor) discoverFrames(dir string, interval int) ([]core.FrameRecord, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read frames dir %s: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, ent := range entries {
		if ent.IsDir() {
			continue
		}
		if imageExts[strings.ToLower(filepath.Ext(ent.Name()))] {
			names = append(names, ent.Name())
		}
	}
	sort.Strings(names)

	frames := make([]core.FrameRecord, 0, len(names))
	for idx, name := range names {
		frames = append(frames, core.FrameRecord{
			Path:         filepath.Join(dir, name),
			TimestampSec: frameTimestamp(name, idx, interval),
			FrameNumber:  idx,
		})
	}
	return frames, nil
}

// frameTimestamp parses the zero-padded index out of frame_NNNNNN.<ext>
// names, falling back to idx*interval for anything else.
func frameTimestamp(name string, idx, interval int) int {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	if strings.HasPrefix(base, "frame_") {
		if n, err := strconv.Atoi(strings.TrimPrefix(base, "frame_")); err == nil {
			return n
		}
	}
	return idx * interval
}

// extractEveryNth decodes every nth frame of the video into dir using
// ffmpeg's select filter, writing frame_%06d.jpg.
func (e *FrameExtractor) extractEveryNth(ctx context.Context, videoPath, dir string, n int) error {
	if _, err := os.Stat(videoPath); err != nil {
		return fmt.Errorf("video file not found: %s", videoPath)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create output dir %s: %w", dir, err)
	}

	codec := e.DetectCodec(ctx, videoPath)
	e.log.Info("extracting frames",
		zap.String("video", videoPath),
		zap.String("codec", codec),
		zap.Int("every_nth", n))

	args := []string{
		"-y",
		"-i", videoPath,
		"-vf", fmt.Sprintf("select='not(mod(n\\,%d))'", n),
		"-vsync", "0",
		"-pix_fmt", "yuv420p",
		filepath.Join(dir, "frame_%06d.jpg"),
	}
	if err := runFFmpeg(ctx, args); err != nil {
		return fmt.Errorf("ffmpeg frame extraction: %w", err)
	}
	return nil
}

// DetectCodec asks ffprobe for the first video stream's codec. Probe
// failures degrade to assuming h264 instead of failing the job.
func (e *FrameExtractor) DetectCodec(ctx context.Context, videoPath string) string {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=codec_name",
		"-of", "json",
		videoPath,
	)
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		e.log.Warn("ffprobe codec detection failed, assuming h264",
			zap.String("video", videoPath), zap.Error(err))
		return "h264"
	}

	var info struct {
		Streams []struct {
			CodecName string `json:"codec_name"`
		} `json:"streams"`
	}
	if err := json.Unmarshal(out.Bytes(), &info); err != nil || len(info.Streams) == 0 {
		e.log.Warn("ffprobe output unreadable, assuming h264", zap.String("video", videoPath))
		return "h264"
	}
	return info.Streams[0].CodecName
}

func runFFmpeg(ctx context.Context, args []string) error {
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if len(msg) > 512 {
			msg = msg[len(msg)-512:]
		}
		return fmt.Errorf("%w: %s", err, msg)
	}
	return nil
}
