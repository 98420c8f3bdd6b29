package dtb

import (
	"strings"
)

const (
	// Defaults used when a source field (or one of its parts) is missing
	UnknownBoard    = "unknown"
	UnknownDescPart = "unk"
)

// The three tokens a blob's filename is built from: the board name out of
// the "compatible" property and the first two comma segments of the
// "description" property.
type NameTokens struct {
	Board string
	Desc1 string
	Desc2 string
}

// Find the first `key = "value"` assignment in text and return the value.
// The grammar is deliberately naive: locate the key, require '=' after
// optional whitespace, skip to the opening quote, then read up to the very
// next quote. Escaped quotes are NOT handled (the value ends at the first
// '"' regardless) and values may span lines. Changing either would change
// which names malformed inputs produce.
func quotedValue(text string, key string) (string, bool) {
	for {
		at := strings.Index(text, key)
		if at < 0 {
			return "", false
		}
		rest := text[at+len(key):]
		after := strings.TrimLeft(rest, " \t\r\n")
		if !strings.HasPrefix(after, "=") {
			text = rest
			continue
		}
		after = strings.TrimLeft(after[1:], " \t\r\n")
		if !strings.HasPrefix(after, "\"") {
			text = rest
			continue
		}
		value := after[1:]
		end := strings.IndexByte(value, '"')
		if end < 0 {
			return "", false
		}
		return value[:end], true
	}
}

// Derive naming tokens from decoded dts text. Only the FIRST occurrence of
// each property is consulted, even when child nodes define their own
// compatible/description (a known precision limitation of the pipeline).
// Malformed text never fails, it just degrades to the defaults.
func ExtractTokens(dts string) NameTokens {
	tokens := NameTokens{
		Board: UnknownBoard,
		Desc1: UnknownDescPart,
		Desc2: UnknownDescPart,
	}
	// compatible = "google,zuma" -> we want "zuma"
	if comp, ok := quotedValue(dts, "compatible"); ok {
		if i := strings.IndexByte(comp, ','); i >= 0 {
			tokens.Board = strings.TrimSpace(comp[i+1:])
		} else {
			tokens.Board = strings.TrimSpace(comp)
		}
	}
	// description = "B0,IPOP" -> "b0" and "ipop"
	if desc, ok := quotedValue(dts, "description"); ok {
		parts := strings.Split(desc, ",")
		if p := strings.ToLower(strings.TrimSpace(parts[0])); p != "" {
			tokens.Desc1 = p
		}
		if len(parts) >= 2 {
			if p := strings.ToLower(strings.TrimSpace(parts[1])); p != "" {
				tokens.Desc2 = p
			}
		}
	}
	return tokens
}
