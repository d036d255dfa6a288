package poster

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// CaptionForMedia resolves the caption text for a media file from its
// sibling text files: "<stem>.txt", else "caption.txt", else the first
// other ".txt" in the directory. Empty when nothing matches.
func CaptionForMedia(mediaPath, dir string) string {
	base := filepath.Base(mediaPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))

	if txt := readTrimmed(filepath.Join(dir, stem+".txt")); txt != "" {
		return txt
	}
	if txt := readTrimmed(filepath.Join(dir, "caption.txt")); txt != "" {
		return txt
	}

	for _, p := range textFiles(dir) {
		if strings.EqualFold(filepath.Base(p), "caption.txt") {
			continue
		}
		return readTrimmed(p)
	}
	return ""
}

func textFiles(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".txt") {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	sort.Strings(out)
	return out
}

func readTrimmed(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
