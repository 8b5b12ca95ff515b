package db

import (
	"strings"
	"unicode"
)

type splitState int

const (
	stateCode splitState = iota
	stateSingle
	stateDouble
	stateBack
	stateLineComment
	stateBlockComment
	stateDollar
)

// SplitStatements breaks a script into statements on semicolons that are not
// inside quotes, comments or Postgres dollar-quoted bodies. Drivers differ on
// multi-statement support, so scripts are always executed one statement at a
// time.
func SplitStatements(sqlText string) []string {
	var (
		out     []string
		current strings.Builder
		state   = stateCode
		tag     string
		hasCode bool
	)

	flush := func() {
		stmt := strings.TrimSpace(current.String())
		if stmt != "" && hasCode {
			out = append(out, stmt)
		}
		current.Reset()
		hasCode = false
	}

	runes := []rune(sqlText)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		next := rune(0)
		if i+1 < len(runes) {
			next = runes[i+1]
		}

		switch state {
		case stateLineComment:
			if r == '\n' {
				state = stateCode
			}
		case stateBlockComment:
			if r == '*' && next == '/' {
				current.WriteRune(r)
				i++
				r = next
				state = stateCode
			}
		case stateSingle:
			if r == '\'' {
				state = stateCode
			}
		case stateDouble:
			if r == '"' {
				state = stateCode
			}
		case stateBack:
			if r == '`' {
				state = stateCode
			}
		case stateDollar:
			if r == '$' && hasPrefixAt(runes, i, tag) {
				current.WriteString(tag)
				i += len([]rune(tag)) - 1
				state = stateCode
				continue
			}
		default:
			switch {
			case r == '-' && next == '-':
				state = stateLineComment
			case r == '/' && next == '*':
				current.WriteRune(r)
				i++
				r = next
				state = stateBlockComment
			case r == ';':
				flush()
				continue
			default:
				if !unicode.IsSpace(r) {
					hasCode = true
				}
				switch r {
				case '\'':
					state = stateSingle
				case '"':
					state = stateDouble
				case '`':
					state = stateBack
				case '$':
					if t, ok := dollarTag(runes, i); ok {
						tag = t
						current.WriteString(t)
						i += len([]rune(t)) - 1
						state = stateDollar
						continue
					}
				}
			}
		}
		current.WriteRune(r)
	}
	flush()
	return out
}

// dollarTag reads a $tag$ opener starting at runes[i]. Positional parameters
// such as $1 are not tags.
func dollarTag(runes []rune, i int) (string, bool) {
	for j := i + 1; j < len(runes); j++ {
		r := runes[j]
		if r == '$' {
			return string(runes[i : j+1]), true
		}
		if r == '_' || unicode.IsLetter(r) || (j > i+1 && unicode.IsDigit(r)) {
			continue
		}
		return "", false
	}
	return "", false
}

func hasPrefixAt(runes []rune, i int, prefix string) bool {
	p := []rune(prefix)
	if i+len(p) > len(runes) {
		return false
	}
	return string(runes[i:i+len(p)]) == prefix
}
