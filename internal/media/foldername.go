// Package media orchestrates course asset storage: folder naming policy,
// upload path templates, playback-capability signing, and the HTTP
// surface for uploads and signed streaming.
package media

import (
	"path"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// fallbackFolderName is used when a course title sanitizes to nothing.
const fallbackFolderName = "Untitled Course"

// maxFolderNameLen caps folder names well under SharePoint path limits.
const maxFolderNameLen = 150

// SharePoint disallows: " * : < > ? / \ |
var illegalFolderChars = regexp.MustCompile(`["*:<>?/\\|]+`)

var multiSpace = regexp.MustCompile(`\s+`)

// SafeFolderName makes a remote-store-safe folder name from a course
// title. Keeps it readable; strips dangerous characters; trims. Titles
// are NFC-normalized first so visually identical names map to one folder.
func SafeFolderName(title string) string {
	s := strings.TrimSpace(norm.NFC.String(title))
	if s == "" {
		return fallbackFolderName
	}

	s = illegalFolderChars.ReplaceAllString(s, " ")
	s = strings.TrimSpace(multiSpace.ReplaceAllString(s, " "))

	// Avoid trailing dots/spaces — SharePoint rejects them.
	s = strings.TrimRight(s, ". ")
	s = strings.TrimSpace(s)

	s = capNameLen(s)

	if s == "" {
		return fallbackFolderName
	}

	return s
}

// SafeFileName makes a remote-store-safe file name from a client-supplied
// upload name. The name is reduced to its base so path separators cannot
// move the file out of its folder, then scrubbed like a folder name.
// Returns "" when nothing usable remains; callers supply the fallback.
func SafeFileName(name string) string {
	s := strings.ReplaceAll(norm.NFC.String(name), `\`, "/")

	s = path.Base(s)
	if s == "." || s == "/" {
		return ""
	}

	s = illegalFolderChars.ReplaceAllString(s, " ")
	s = strings.TrimSpace(multiSpace.ReplaceAllString(s, " "))
	s = strings.TrimRight(s, ". ")
	s = strings.TrimSpace(s)

	return capNameLen(s)
}

// capNameLen truncates to maxFolderNameLen bytes without splitting a rune.
func capNameLen(s string) string {
	if len(s) <= maxFolderNameLen {
		return s
	}

	cut := maxFolderNameLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}

	return strings.TrimSpace(s[:cut])
}
