package subtitles

import (
	"bytes"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
	xunicode "golang.org/x/text/encoding/unicode"

	"downie/internal/language"
	"downie/internal/services"
)

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// legacyCharsets lists candidate encodings per ISO 639-1 code, most likely first.
var legacyCharsets = map[string][]encoding.Encoding{
	"ja": {japanese.ShiftJIS, japanese.EUCJP, japanese.ISO2022JP},
	"ko": {korean.EUCKR},
	"zh": {simplifiedchinese.GB18030, traditionalchinese.Big5},
	"ru": {charmap.Windows1251, charmap.KOI8R},
	"uk": {charmap.Windows1251, charmap.KOI8U},
	"bg": {charmap.Windows1251},
	"sr": {charmap.Windows1251},
	"el": {charmap.Windows1253, charmap.ISO8859_7},
	"tr": {charmap.Windows1254, charmap.ISO8859_9},
	"pl": {charmap.Windows1250, charmap.ISO8859_2},
	"cs": {charmap.Windows1250, charmap.ISO8859_2},
	"hu": {charmap.Windows1250, charmap.ISO8859_2},
	"ar": {charmap.Windows1256, charmap.ISO8859_6},
	"he": {charmap.Windows1255, charmap.ISO8859_8},
	"th": {charmap.Windows874},
}

// Western European text is the fallback for everything else.
var westernCharsets = []encoding.Encoding{charmap.Windows1252, charmap.ISO8859_15}

// FixEncoding returns data as UTF-8 without a byte order mark. Valid UTF-8
// passes through unchanged apart from BOM removal; UTF-16 with a BOM is
// decoded; anything else is tried against legacy charsets chosen from the
// language hint. When no candidate decodes cleanly the original bytes are
// returned together with an error wrapping services.ErrEncodingRepair.
func FixEncoding(data []byte, langHint string) ([]byte, error) {
	switch {
	case bytes.HasPrefix(data, bomUTF8):
		data = data[len(bomUTF8):]
	case bytes.HasPrefix(data, bomUTF16LE), bytes.HasPrefix(data, bomUTF16BE):
		decoded, err := xunicode.UTF16(xunicode.LittleEndian, xunicode.ExpectBOM).NewDecoder().Bytes(data)
		if err == nil && utf8.Valid(decoded) {
			return decoded, nil
		}
		return data, services.Wrap(services.ErrEncodingRepair, component, "fix_encoding", "undecodable UTF-16 content", err)
	}
	if utf8.Valid(data) {
		return data, nil
	}
	for _, enc := range candidates(langHint) {
		decoded, err := enc.NewDecoder().Bytes(data)
		if err != nil || !plausible(decoded) {
			continue
		}
		return decoded, nil
	}
	return data, services.Wrap(services.ErrEncodingRepair, component, "fix_encoding",
		"no confident encoding for language "+quoteHint(langHint)+"; original bytes kept", nil)
}

func candidates(langHint string) []encoding.Encoding {
	if list, ok := legacyCharsets[language.ToISO2(langHint)]; ok {
		return list
	}
	return westernCharsets
}

// plausible rejects decodes that produced replacement runes or control
// characters other than ordinary whitespace.
func plausible(text []byte) bool {
	if !utf8.Valid(text) {
		return false
	}
	for _, r := range string(text) {
		switch {
		case r == utf8.RuneError:
			return false
		case r == '\n' || r == '\r' || r == '\t':
		case unicode.IsControl(r):
			return false
		}
	}
	return true
}

func quoteHint(hint string) string {
	if hint == "" {
		return "(none)"
	}
	return "\"" + hint + "\""
}
