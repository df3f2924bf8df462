// file: internal/transcode/transcode.go
// version: 1.0.0
// guid: 1d5f7b9a-3c6e-4a8d-b2f4-7e9c1b3d5f7a

package transcode

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// FFmpeg transcodes audio files by shelling out to ffmpeg. The destination
// extension selects the container; .m4b and .m4a get AAC, .mp3 gets LAME,
// .ogg gets Vorbis, .opus gets Opus.
type FFmpeg struct {
	// Path overrides PATH lookup, mainly for tests.
	Path string
}

// Available reports whether ffmpeg can be found.
func (f *FFmpeg) Available() bool {
	_, err := f.binary()
	return err == nil
}

func (f *FFmpeg) binary() (string, error) {
	if f.Path != "" {
		return f.Path, nil
	}
	return exec.LookPath("ffmpeg")
}

// Transcode re-encodes src into dst at the given bitrate (e.g. "64k"). The
// output is written to a temp sibling and renamed into place so a killed
// run never leaves a half-written destination.
func (f *FFmpeg) Transcode(ctx context.Context, src, dst, bitrate string) error {
	bin, err := f.binary()
	if err != nil {
		return fmt.Errorf("ffmpeg not found: %w", err)
	}
	codec, err := codecFor(dst)
	if err != nil {
		return err
	}
	if bitrate == "" {
		bitrate = "64k"
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	tmp := dst + ".partial" + filepath.Ext(dst)
	defer os.Remove(tmp)

	args := []string{
		"-y",
		"-i", src,
		"-map", "0:a",
		"-map_metadata", "0",
		"-c:a", codec,
		"-b:a", bitrate,
	}
	if codec == "aac" {
		args = append(args, "-movflags", "+faststart")
	}
	args = append(args, tmp)

	cmd := exec.CommandContext(ctx, bin, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg transcode failed: %w\noutput: %s", err, string(output))
	}
	return os.Rename(tmp, dst)
}

func codecFor(dst string) (string, error) {
	switch strings.ToLower(filepath.Ext(dst)) {
	case ".m4b", ".m4a", ".aac":
		return "aac", nil
	case ".mp3":
		return "libmp3lame", nil
	case ".ogg":
		return "libvorbis", nil
	case ".opus":
		return "libopus", nil
	default:
		return "", fmt.Errorf("unsupported transcode target: %s", dst)
	}
}
