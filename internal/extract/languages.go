package extract

import "strings"

// languageExtensions maps a fence language tag to the file extension used
// when a block carries no filename. Unrecognized tags fall back to txt.
var languageExtensions = map[string]string{
	"javascript": "js",
	"js":         "js",
	"typescript": "ts",
	"ts":         "ts",
	"python":     "py",
	"py":         "py",
	"java":       "java",
	"c":          "c",
	"cpp":        "cpp",
	"c++":        "cpp",
	"csharp":     "cs",
	"c#":         "cs",
	"go":         "go",
	"rust":       "rs",
	"ruby":       "rb",
	"php":        "php",
	"html":       "html",
	"css":        "css",
	"scss":       "scss",
	"sass":       "sass",
	"json":       "json",
	"xml":        "xml",
	"yaml":       "yaml",
	"yml":        "yml",
	"markdown":   "md",
	"md":         "md",
	"sql":        "sql",
	"bash":       "sh",
	"sh":         "sh",
	"shell":      "sh",
	"dockerfile": "dockerfile",
	"docker":     "dockerfile",
	"jsx":        "jsx",
	"tsx":        "tsx",
	"vue":        "vue",
	"svelte":     "svelte",
}

// DefaultExtension is used for language tags missing from the table.
const DefaultExtension = "txt"

// ExtensionForLanguage resolves a language tag to a file extension.
func ExtensionForLanguage(lang string) string {
	if ext, ok := languageExtensions[strings.ToLower(lang)]; ok {
		return ext
	}
	return DefaultExtension
}

// languageFromFilename derives a language tag from the filename extension.
func languageFromFilename(name string) string {
	idx := strings.LastIndex(name, ".")
	if idx == -1 || idx == len(name)-1 {
		return ""
	}
	return name[idx+1:]
}
