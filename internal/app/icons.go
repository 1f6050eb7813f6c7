package app

import (
	"embed"
	"runtime"
)

type iconKind int

const (
	iconIdle iconKind = iota
	iconRecording
	iconBusy
	iconError
)

const iconSize = 32

// The template variants are black masks for the macOS menu bar; the light
// variants are white for dark Windows and Linux trays.
//
//go:embed icons/*.png
var iconFS embed.FS

var iconNames = map[iconKind]string{
	iconIdle:      "idle",
	iconRecording: "recording",
	iconBusy:      "busy",
	iconError:     "error",
}

type trayIcons map[iconKind][]byte

func newTrayIcons() trayIcons {
	return loadTrayIcons(runtime.GOOS == "darwin")
}

func loadTrayIcons(template bool) trayIcons {
	variant := "light"
	if template {
		variant = "template"
	}
	icons := make(trayIcons, len(iconNames))
	for k, name := range iconNames {
		data, err := iconFS.ReadFile("icons/" + name + "_" + variant + ".png")
		if err != nil {
			// Every name is embedded at build time.
			panic(err)
		}
		icons[k] = data
	}
	return icons
}
