package output

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"

	"github.com/joescharf/crv/internal/models"
)

// StyleForTheme maps a settings theme onto a chroma style name.
func StyleForTheme(theme string) string {
	switch theme {
	case models.ThemeDark:
		return "dracula"
	case models.ThemeAuto:
		return "monokai"
	default:
		return "github"
	}
}

// Highlight writes code to w with terminal colors. The lexer is picked from
// fileName, then from the content itself; unknown code is written plain.
func Highlight(w io.Writer, fileName, code, theme string) error {
	lexer := lexerFor(fileName, code)
	if lexer == nil {
		_, err := io.WriteString(w, code)
		return err
	}

	style := styles.Get(StyleForTheme(theme))
	if style == nil {
		style = styles.Fallback
	}
	formatter := formatters.Get("terminal256")
	if formatter == nil {
		formatter = formatters.Fallback
	}

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return fmt.Errorf("tokenise %s: %w", fileName, err)
	}
	return formatter.Format(w, style, iterator)
}

// Language names the lexer that Highlight would use, or "" when none fits.
func Language(fileName, code string) string {
	lexer := lexerFor(fileName, code)
	if lexer == nil {
		return ""
	}
	return lexer.Config().Name
}

func lexerFor(fileName, code string) chroma.Lexer {
	var lexer chroma.Lexer
	if fileName != "" {
		lexer = lexers.Match(filepath.Base(fileName))
		if lexer == nil {
			if ext := filepath.Ext(fileName); ext != "" {
				lexer = lexers.Match("file" + ext)
			}
		}
	}
	if lexer == nil && code != "" {
		lexer = lexers.Analyse(code)
	}
	if lexer != nil {
		lexer = chroma.Coalesce(lexer)
	}
	return lexer
}
