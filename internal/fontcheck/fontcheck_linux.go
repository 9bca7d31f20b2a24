//go:build linux

package fontcheck

import (
	"os/exec"
)

// fontDirs are the directories scanned when fc-list is unavailable.
var fontDirs = []string{
	"/usr/share/fonts",
	"/usr/local/share/fonts",
	"/usr/share/fonts/truetype",
	"/usr/share/fonts/opentype",
}

// detectCJKFonts asks fontconfig for fonts with Chinese language coverage,
// falling back to a font-directory scan when fc-list is missing.
func detectCJKFonts() (bool, []string) {
	fcList, err := exec.LookPath("fc-list")
	if err != nil {
		return detectByPath()
	}

	out, err := exec.Command(fcList, ":lang=zh").Output()
	if err != nil {
		return detectByPath()
	}

	families := matchFamilies(string(out))
	return len(families) > 0, families
}

func detectByPath() (bool, []string) {
	found, name := scanFontDirs(fontDirs)
	if !found {
		return false, nil
	}
	return true, []string{name}
}
