// Package document builds the uploaded page content: the source HTML with
// a build timestamp injected ahead of the closing body tag.
package document

import (
	"fmt"
	"strings"
	"time"
)

// TimestampLayout is ISO 8601 at second precision with a literal Z; the
// page always carries a UTC instant.
const TimestampLayout = "2006-01-02T15:04:05Z"

const closingBodyTag = "</body>"

// FormatTimestamp renders now as the injected timestamp string.
func FormatTimestamp(now time.Time) string {
	return now.UTC().Format(TimestampLayout)
}

// Stamp injects exactly one timestamp marker into content. When a closing
// body tag is present, only the first occurrence is substituted; any later
// ones are left alone. Without one the marker is appended at end of file.
// The second return reports whether a closing body tag was found.
func Stamp(content string, now time.Time) (string, bool) {
	timestamp := FormatTimestamp(now)

	if strings.Contains(content, closingBodyTag) {
		marker := fmt.Sprintf("<pre>Updated: %s</pre>\n%s", timestamp, closingBodyTag)
		return strings.Replace(content, closingBodyTag, marker, 1), true
	}

	return content + fmt.Sprintf("\n<pre>Updated: %s</pre>", timestamp), false
}
