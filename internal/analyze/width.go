package analyze

import (
	"os"
	"strconv"

	"golang.org/x/term"
)

// DetectViewportWidth returns the current terminal width on stdout, or 0
// when it cannot be determined (piped output, non-terminal stdout).
// Grounded on the teacher's treeview.Trimmer.detectViewport.
func DetectViewportWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return 0
	}
	return width
}

// TrimValue keeps the first maxLen bytes of s and appends a
// "<...N chars>" marker, N being the full length of s in bytes, matching
// the teacher's treeview.CompactArgs behavior for long argument values.
// maxLen <= 0 disables trimming.
func TrimValue(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "<..." + strconv.Itoa(len(s)) + " chars>"
}
