package capture

import (
	"context"
	"os"
	"regexp"
	"strings"

	"github.com/LukeHankey/DSF-Event-Tracker-sub000/internal/world"
)

// WorldFile is a world.Sensor reading a world identifier written by the
// game-client integration. Empty or missing files mean "unknown".
func WorldFile(name, path string) world.Sensor {
	return world.SensorFunc(name, func(context.Context) (string, bool) {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", false
		}
		w := strings.TrimSpace(string(data))
		return w, w != ""
	})
}

var worldMarker = regexp.MustCompile(`(?i)\bworld\s*[:#]?\s*(\d{1,3})\b`)

// FriendsListFile is the slower visual fallback: it scans an OCR dump of
// the friends-list panel and reports the last "World NN" marker found.
func FriendsListFile(name, path string) world.Sensor {
	return world.SensorFunc(name, func(context.Context) (string, bool) {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", false
		}
		return ParseWorldMarker(string(data))
	})
}

// ParseWorldMarker returns the last world number mentioned in text.
func ParseWorldMarker(text string) (string, bool) {
	all := worldMarker.FindAllStringSubmatch(text, -1)
	if len(all) == 0 {
		return "", false
	}
	w := strings.TrimLeft(all[len(all)-1][1], "0")
	return w, w != ""
}
