package resolver

import (
	"fmt"
	"net/url"
	"strings"
)

// Drops "?query" and "#fragment" suffixes, which never change the file
func stripQueryAndFragment(text string) string {
	if i := strings.IndexAny(text, "?#"); i != -1 {
		return text[:i]
	}
	return text
}

// Percent-decodes each "/"-separated segment of a URL path. Encoded path
// separators are rejected instead of decoded since they would let one
// segment turn into several.
func (r resolverQuery) decodeURLPath(urlPath string) ([]string, bool) {
	segments := strings.Split(urlPath, "/")
	for i, segment := range segments {
		if !strings.ContainsRune(segment, '%') {
			continue
		}
		lower := strings.ToLower(segment)
		if strings.Contains(lower, "%2f") || (r.fs.Separator() == '\\' && strings.Contains(lower, "%5c")) {
			if r.debugLogs != nil {
				r.debugLogs.addNote(fmt.Sprintf("The segment %q contains an encoded path separator", segment))
			}
			return nil, false
		}
		decoded, err := url.PathUnescape(segment)
		if err != nil {
			if r.debugLogs != nil {
				r.debugLogs.addNote(fmt.Sprintf("The segment %q is not a valid URL path segment", segment))
			}
			return nil, false
		}
		segments[i] = decoded
	}
	return segments, true
}

// Resolves "./x", "../x" and "/x" against the importing directory
func (r resolverQuery) resolveURLReference(sourceDir string, specifier string) (string, bool) {
	segments, ok := r.decodeURLPath(stripQueryAndFragment(specifier))
	if !ok {
		return "", false
	}

	base := sourceDir
	if segments[0] == "" {
		// "/x" starts at the root of the importing directory's volume
		base = r.rootOf(sourceDir)
	}
	return r.fs.Join(append([]string{base}, segments...)...), true
}

func (r resolverQuery) rootOf(dir string) string {
	for {
		parent := r.fs.Dir(dir)
		if parent == dir {
			return dir
		}
		dir = parent
	}
}

// Handles everything after "file:". Accepts "///abs/path",
// "//localhost/abs/path" and on Windows "///C:/path". A path without an
// authority ("file:/abs/path") is accepted too.
func (r resolverQuery) filePathFromFileURL(rest string, sourceDir string) (string, bool) {
	rest = stripQueryAndFragment(rest)

	if strings.HasPrefix(rest, "//") {
		rest = rest[2:]
		slash := strings.IndexByte(rest, '/')
		if slash == -1 {
			return "", false
		}
		if host := rest[:slash]; host != "" && !strings.EqualFold(host, "localhost") {
			if r.debugLogs != nil {
				r.debugLogs.addNote(fmt.Sprintf("The file URL host %q is not supported", host))
			}
			return "", false
		}
		rest = rest[slash:]
	}

	if !strings.HasPrefix(rest, "/") {
		if r.debugLogs != nil {
			r.debugLogs.addNote("Relative file URLs are not supported")
		}
		return "", false
	}

	segments, ok := r.decodeURLPath(rest)
	if !ok {
		return "", false
	}

	// Convert URL-style paths back into Windows-style paths if needed:
	//
	//   "/C:/Users/User/foo.mjs" => "C:\\Users\\User\\foo.mjs"
	//
	root := r.rootOf(sourceDir)
	segments = segments[1:]
	if r.fs.Separator() == '\\' && len(segments) > 0 && isDriveLetter(segments[0]) {
		root = segments[0] + "\\"
		segments = segments[1:]
	}
	return r.fs.Join(append([]string{root}, segments...)...), true
}

// FileURL is the inverse of "file:" URL resolution, used for "import.meta.url":
//
//   "/home/user/foo.mjs"   => "file:///home/user/foo.mjs"
//   "C:\\Users\\foo.mjs"   => "file:///C:/Users/foo.mjs"
//
func FileURL(path string, separator byte) string {
	if separator == '\\' {
		path = "/" + strings.ReplaceAll(path, "\\", "/")
	}
	u := url.URL{Scheme: "file", Path: path}
	return u.String()
}
