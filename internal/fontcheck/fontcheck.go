// Package fontcheck detects whether CJK fonts are installed. Slide rendering
// and recognition of Chinese documents degrade to rectangles without them, so
// the pipeline warns at startup instead of failing mid-batch.
package fontcheck

import (
	"log"
	"os"
	"runtime"
	"strings"
)

// knownCJKFamilies are font family names that indicate CJK coverage in
// fc-list output.
var knownCJKFamilies = []string{
	"Noto Sans CJK",
	"Noto Serif CJK",
	"WenQuanYi",
	"文泉驿",
	"Source Han Sans",
	"Source Han Serif",
	"思源黑体",
	"思源宋体",
	"Droid Sans Fallback",
	"AR PL",
	"SimSun",
	"SimHei",
	"Microsoft YaHei",
	"FangSong",
	"KaiTi",
}

// cjkFileKeywords mark font file names as CJK-capable when fc-list is not
// available and the font directories are scanned directly.
var cjkFileKeywords = []string{
	"noto", "cjk", "wenquanyi", "wqy", "droid", "source-han", "sourcehansans",
}

// CheckCJKFonts warns when no CJK fonts can be found. Detection only; the
// pipeline never installs packages. A no-op outside Linux, where CJK fonts
// ship with the OS.
func CheckCJKFonts() {
	if runtime.GOOS != "linux" {
		return
	}
	found, families := detectCJKFonts()
	if found {
		log.Printf("[Font] CJK fonts present: %v", families)
		return
	}
	log.Println("[Font] 未检测到中文字体，PPT渲染与中文识别可能显示方框")
	log.Println("[Font] Debian/Ubuntu: apt-get install -y fonts-noto-cjk")
	log.Println("[Font] RHEL/Fedora:  yum install -y google-noto-sans-cjk-ttc-fonts")
	log.Println("[Font] Alpine:       apk add font-noto-cjk")
}

// matchFamilies returns the known CJK families present in fc-list output.
// Non-empty output that matches no known family still counts as coverage.
func matchFamilies(fcListOutput string) []string {
	if strings.TrimSpace(fcListOutput) == "" {
		return nil
	}
	var matched []string
	for _, kw := range knownCJKFamilies {
		if strings.Contains(fcListOutput, kw) {
			matched = append(matched, kw)
		}
	}
	if len(matched) == 0 {
		matched = append(matched, "(other CJK fonts)")
	}
	return matched
}

// scanFontDirs reports the first CJK-looking font file under any of the
// given directories.
func scanFontDirs(dirs []string) (bool, string) {
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			lower := strings.ToLower(e.Name())
			for _, kw := range cjkFileKeywords {
				if strings.Contains(lower, kw) {
					return true, e.Name()
				}
			}
		}
	}
	return false, ""
}
