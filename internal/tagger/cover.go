// file: internal/tagger/cover.go
// version: 1.0.0
// guid: b6d4f2e0-8a1c-4e7b-9d3f-5c7a9b1d3e5f

package tagger

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// ErrToolNotFound is returned when the required external tool is not installed.
var ErrToolNotFound = fmt.Errorf("required external tool not found")

// findTool checks if a command-line tool exists on the system PATH.
func findTool(name string) (string, error) {
	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	return path, nil
}

// ReadCover extracts the embedded cover image from an audio file. A file
// without a cover returns (nil, nil).
func (Tagger) ReadCover(path string) ([]byte, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("audio file not found: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".flac" {
		return extractWithMetaflac(path)
	}
	return extractWithFFmpeg(path)
}

// WriteCover embeds the image into the audio file, replacing any existing
// cover. A nil image removes the cover instead; that is the inverse of
// embedding into a file that had none.
//
// The original file is replaced atomically: the new file is written to a
// temp sibling, then renamed over the original.
func (Tagger) WriteCover(path string, image []byte) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("audio file not found: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(path))
	if image == nil {
		if ext == ".flac" {
			return removeWithMetaflac(path)
		}
		return removeWithFFmpeg(path)
	}
	coverPath, err := writeTempImage(image)
	if err != nil {
		return err
	}
	defer os.Remove(coverPath)
	if ext == ".flac" {
		return embedWithMetaflac(path, coverPath)
	}
	return embedWithFFmpeg(path, coverPath, ext == ".m4b" || ext == ".m4a" || ext == ".aac")
}

// writeTempImage stores cover bytes in a temp file with an extension ffmpeg
// can sniff.
func writeTempImage(image []byte) (string, error) {
	ext := ".jpg"
	if bytes.HasPrefix(image, []byte("\x89PNG")) {
		ext = ".png"
	}
	f, err := os.CreateTemp("", "bookbot-cover-*"+ext)
	if err != nil {
		return "", err
	}
	if _, err := f.Write(image); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

// embedWithFFmpeg attaches the cover as a picture stream without re-encoding
// the audio. For MP3 this writes an ID3v2 APIC frame; for MP4 containers a
// covr atom.
func embedWithFFmpeg(audioPath, coverPath string, mp4 bool) error {
	ffmpegPath, err := findTool("ffmpeg")
	if err != nil {
		return err
	}

	tmpFile := audioPath + ".tmp" + filepath.Ext(audioPath)
	defer os.Remove(tmpFile)

	args := []string{
		"-y",
		"-i", audioPath,
		"-i", coverPath,
		"-map", "0:a",
		"-map", "1",
		"-c", "copy",
		"-disposition:v:0", "attached_pic",
	}
	if mp4 {
		args = append(args, "-movflags", "+faststart")
	}
	args = append(args, tmpFile)

	cmd := exec.Command(ffmpegPath, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg failed: %w\noutput: %s", err, string(output))
	}
	if err := os.Rename(tmpFile, audioPath); err != nil {
		return fmt.Errorf("failed to replace original file: %w", err)
	}
	return nil
}

// removeWithFFmpeg rewrites the file keeping only audio streams.
func removeWithFFmpeg(audioPath string) error {
	ffmpegPath, err := findTool("ffmpeg")
	if err != nil {
		return err
	}

	tmpFile := audioPath + ".tmp" + filepath.Ext(audioPath)
	defer os.Remove(tmpFile)

	cmd := exec.Command(ffmpegPath,
		"-y",
		"-i", audioPath,
		"-map", "0:a",
		"-c", "copy",
		tmpFile,
	)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg failed: %w\noutput: %s", err, string(output))
	}
	if err := os.Rename(tmpFile, audioPath); err != nil {
		return fmt.Errorf("failed to replace original file: %w", err)
	}
	return nil
}

// extractWithFFmpeg copies the attached picture stream to stdout.
func extractWithFFmpeg(audioPath string) ([]byte, error) {
	ffmpegPath, err := findTool("ffmpeg")
	if err != nil {
		return nil, err
	}
	var out bytes.Buffer
	cmd := exec.Command(ffmpegPath,
		"-i", audioPath,
		"-map", "0:v:0",
		"-c", "copy",
		"-f", "image2pipe",
		"-",
	)
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		// ffmpeg exits non-zero when the file has no video stream.
		return nil, nil
	}
	if out.Len() == 0 {
		return nil, nil
	}
	return out.Bytes(), nil
}

func embedWithMetaflac(audioPath, coverPath string) error {
	metaflacPath, err := findTool("metaflac")
	if err != nil {
		return err
	}
	// Drop any existing pictures first; a file without one is fine.
	removeCmd := exec.Command(metaflacPath, "--remove", "--block-type=PICTURE", audioPath)
	_, _ = removeCmd.CombinedOutput()

	importCmd := exec.Command(metaflacPath, "--import-picture-from="+coverPath, audioPath)
	output, err := importCmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("metaflac --import-picture failed: %w\noutput: %s", err, string(output))
	}
	return nil
}

func removeWithMetaflac(audioPath string) error {
	metaflacPath, err := findTool("metaflac")
	if err != nil {
		return err
	}
	cmd := exec.Command(metaflacPath, "--remove", "--block-type=PICTURE", audioPath)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("metaflac --remove PICTURE failed: %w\noutput: %s", err, string(output))
	}
	return nil
}

func extractWithMetaflac(audioPath string) ([]byte, error) {
	metaflacPath, err := findTool("metaflac")
	if err != nil {
		return nil, err
	}
	tmp, err := os.CreateTemp("", "bookbot-cover-*.img")
	if err != nil {
		return nil, err
	}
	tmp.Close()
	defer os.Remove(tmp.Name())

	cmd := exec.Command(metaflacPath, "--export-picture-to="+tmp.Name(), audioPath)
	if err := cmd.Run(); err != nil {
		// metaflac exits non-zero when the file has no picture block.
		return nil, nil
	}
	data, err := os.ReadFile(tmp.Name())
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	return data, nil
}
