package extract

import (
	"fmt"
	"regexp"
	"strings"

	"codecollab/internal/vfs"
)

// Fence patterns, in precedence order. All three are applied to the same
// text; results merge by filename key with the last-applied pattern winning,
// so an overlapping match is an overwrite, never a duplicate.
//
//	```hello.py          bare filename header, language from extension
//	```python hello.py   explicit language and filename
//	```python            bare language header, filename synthesized
var (
	namedFilePattern   = regexp.MustCompile("(?s)```([a-zA-Z0-9_-]+\\.[a-zA-Z0-9]+)\n(.*?)```")
	langAndFilePattern = regexp.MustCompile("(?s)```(\\w+)[ \t]+([a-zA-Z0-9_-]+\\.[a-zA-Z0-9]+)\n(.*?)```")
	bareLangPattern    = regexp.MustCompile("(?s)```(\\w+)\n(.*?)```")
)

// candidate is one (filename, language, body) triple produced by a matcher.
type candidate struct {
	filename string
	language string
	body     string
}

// Engine carves fenced blocks out of AI-authored text and merges them into a
// virtual file store. The synthesized-name counter is monotonic for the
// engine's lifetime so names never collide, even after deletions shrink the
// store.
type Engine struct {
	counter int
}

func NewEngine() *Engine {
	return &Engine{}
}

// Extract scans the text with each pattern in precedence order and applies
// every accepted match to the store. It returns the newly created filenames
// in discovery order; zero recognized blocks is a normal outcome, not an
// error. When files were created and nothing was selected, the first new
// name becomes the selection.
func (e *Engine) Extract(text string, store *vfs.Store) []string {
	var created []string

	apply := func(c candidate) {
		if c.filename == "" || c.body == "" {
			return
		}
		lang := c.language
		if lang == "" {
			lang = languageFromFilename(c.filename)
		}
		if store.Put(c.filename, strings.TrimSpace(c.body), lang) {
			created = append(created, c.filename)
		}
	}

	for _, m := range namedFilePattern.FindAllStringSubmatch(text, -1) {
		apply(candidate{filename: m[1], body: m[2]})
	}

	for _, m := range langAndFilePattern.FindAllStringSubmatch(text, -1) {
		apply(candidate{language: m[1], filename: m[2], body: m[3]})
	}

	for _, m := range bareLangPattern.FindAllStringSubmatch(text, -1) {
		// A bare-language header looks identical to a bare filename without
		// an extension, so anything \w+ matched here is a language tag.
		apply(candidate{
			language: m[1],
			filename: e.synthesizeName(store, ExtensionForLanguage(m[1])),
			body:     m[2],
		})
	}

	if len(created) > 0 {
		store.SelectIfNone(created[0])
	}
	return created
}

// synthesizeName produces the next fileN.ext name. The counter only moves
// forward; an explicit skip guards against an extracted file that happens to
// carry a synthesized-looking name.
func (e *Engine) synthesizeName(store *vfs.Store, ext string) string {
	for {
		e.counter++
		name := fmt.Sprintf("file%d.%s", e.counter, ext)
		if !store.Has(name) {
			return name
		}
	}
}
