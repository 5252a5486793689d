package util

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/alecthomas/chroma/v2/lexers"
)

// LanguageToExt maps common fence language tags to file extensions.
var LanguageToExt = map[string]string{
	"python":     "py",
	"javascript": "js",
	"typescript": "ts",
	"java":       "java",
	"c++":        "cpp",
	"c":          "c",
	"html":       "html",
	"css":        "css",
	"bash":       "sh",
	"shell":      "sh",
	"sh":         "sh",
	"zsh":        "sh",
	"php":        "php",
	"markdown":   "md",
	"dotenv":     "env",
	"json":       "json",
	"yaml":       "yaml",
	"xml":        "xml",
	"dockerfile": "dockerfile",
	"plaintext":  "txt",
	"text":       "txt",
	"toml":       "toml",
	"go":         "go",
	"ruby":       "rb",
	"rust":       "rs",
	"perl":       "pl",
	"swift":      "swift",
	"kotlin":     "kt",
	"sql":        "sql",
	"jsx":        "jsx",
	"tsx":        "tsx",
	"graphql":    "graphql",
	"r":          "r",
	"dart":       "dart",
	"scala":      "scala",
	"groovy":     "groovy",
}

var filenamePattern = regexp.MustCompile(`([a-zA-Z0-9_\-\.]+\.[a-zA-Z0-9]+)`)

// maxFilenameLen 超过该长度的提取结果不直接使用
const maxFilenameLen = 24

// ExtractValidFilename extracts a filename (with extension) from a line of text.
func ExtractValidFilename(line string) string {
	for _, match := range filenamePattern.FindAllString(line, -1) {
		if filepath.Ext(match) != "" {
			return match
		}
	}
	return ""
}

// Ext returns the file extension for a fence language tag.
//
// Unknown tags are looked up in chroma's lexer registry and use the first
// "*.ext" filename pattern of the lexer. Everything else is "txt".
func Ext(language string) string {
	language = strings.ToLower(strings.TrimSpace(language))
	if language == "" {
		return "txt"
	}
	if ext, ok := LanguageToExt[language]; ok {
		return ext
	}
	if lexer := lexers.Get(language); lexer != nil {
		for _, pattern := range lexer.Config().Filenames {
			if strings.HasPrefix(pattern, "*.") && !strings.ContainsAny(pattern[2:], "*?[") {
				return pattern[2:]
			}
		}
	}
	return "txt"
}

// Filename suggests a file name for a code block.
//
// The first two lines are searched for something that looks like a file name
// (a "// main.go" header comment, for example). Falls back to "snippet.<ext>".
func Filename(code string, language string) string {
	lines := strings.SplitN(strings.TrimSpace(code), "\n", 3)
	sample := lines[0]
	if len(lines) > 1 {
		sample += " " + lines[1]
	}
	sample = strings.ReplaceAll(sample, "\\", "")

	extracted := ExtractValidFilename(sample)
	ext := Ext(language)

	if extracted != "" {
		if strings.HasSuffix(extracted, "."+ext) && len(extracted) <= maxFilenameLen {
			return extracted
		}
		return extracted + "." + ext
	}
	return "snippet." + ext
}
