package deps

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

var commandContext = exec.CommandContext

// RequiredFilters are the ffmpeg filters every render uses.
var RequiredFilters = []string{"scale", "pad", "overlay", "drawtext", "amix"}

// MediaBinaries lists the ffmpeg and ffprobe binaries a render needs.
func MediaBinaries(ffmpegBinary, ffprobeBinary string) []Binary {
	return []Binary{
		{Name: "FFmpeg", Command: ffmpegBinary, Purpose: "voiceover concatenation and rendering"},
		{Name: "FFprobe", Command: ffprobeBinary, Purpose: "segment durations and output inspection"},
	}
}

// FFmpegInfo is what CheckFFmpeg learned about an ffmpeg binary.
type FFmpegInfo struct {
	Version        string
	MissingFilters []string
}

// CheckFFmpeg reads the version banner and filter list of binary and reports
// which of RequiredFilters it lacks. drawtext is absent from builds without
// libfreetype.
func CheckFFmpeg(ctx context.Context, binary string) (FFmpegInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	versionOut, err := commandContext(ctx, binary, "-hide_banner", "-version").Output()
	if err != nil {
		return FFmpegInfo{}, fmt.Errorf("ffmpeg -version: %w", err)
	}
	info := FFmpegInfo{Version: parseVersion(versionOut)}

	filtersOut, err := commandContext(ctx, binary, "-hide_banner", "-filters").Output()
	if err != nil {
		return info, fmt.Errorf("ffmpeg -filters: %w", err)
	}
	available := parseFilters(filtersOut)
	for _, name := range RequiredFilters {
		if _, ok := available[name]; !ok {
			info.MissingFilters = append(info.MissingFilters, name)
		}
	}
	return info, nil
}

// parseVersion extracts "6.1.1" from "ffmpeg version 6.1.1 Copyright ...".
func parseVersion(out []byte) string {
	line, _, _ := strings.Cut(string(out), "\n")
	fields := strings.Fields(line)
	for i, field := range fields {
		if field == "version" && i+1 < len(fields) {
			return fields[i+1]
		}
	}
	return strings.TrimSpace(line)
}

// parseFilters reads `ffmpeg -filters` rows such as
// " T.C drawtext          V->V       Draw text on top of video frames".
func parseFilters(out []byte) map[string]struct{} {
	filters := make(map[string]struct{})
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 3 || !strings.Contains(fields[2], "->") {
			continue
		}
		filters[fields[1]] = struct{}{}
	}
	return filters
}
