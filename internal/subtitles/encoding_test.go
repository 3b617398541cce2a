package subtitles

import (
	"bytes"
	"errors"
	"testing"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
	xunicode "golang.org/x/text/encoding/unicode"

	"downie/internal/services"
)

func TestFixEncodingKeepsValidUTF8(t *testing.T) {
	raw := []byte("1\n00:00:01,000 --> 00:00:02,000\nnaïve café\n")
	got, err := FixEncoding(raw, "fr")
	if err != nil {
		t.Fatalf("FixEncoding returned error: %v", err)
	}
	if !bytes.Equal(got, raw) {
		t.Fatalf("expected bytes unchanged, got %q", got)
	}
	again, err := FixEncoding(got, "fr")
	if err != nil || !bytes.Equal(again, got) {
		t.Fatalf("expected idempotent repair, got %q, %v", again, err)
	}
}

func TestFixEncodingStripsUTF8BOM(t *testing.T) {
	got, err := FixEncoding(append([]byte{0xEF, 0xBB, 0xBF}, "hello"...), "")
	if err != nil || string(got) != "hello" {
		t.Fatalf("expected BOM stripped, got %q, %v", got, err)
	}
}

func TestFixEncodingDecodesUTF16(t *testing.T) {
	for name, endian := range map[string]xunicode.Endianness{"le": xunicode.LittleEndian, "be": xunicode.BigEndian} {
		encoded, err := xunicode.UTF16(endian, xunicode.UseBOM).NewEncoder().Bytes([]byte("Grüße"))
		if err != nil {
			t.Fatalf("%s: encode: %v", name, err)
		}
		got, err := FixEncoding(encoded, "de")
		if err != nil || string(got) != "Grüße" {
			t.Fatalf("%s: expected decoded text, got %q, %v", name, got, err)
		}
	}
}

func TestFixEncodingLegacyCharsets(t *testing.T) {
	cases := []struct {
		name    string
		hint    string
		text    string
		encoded func(string) ([]byte, error)
	}{
		{"latin", "fr", "café crème", func(s string) ([]byte, error) { return charmap.Windows1252.NewEncoder().Bytes([]byte(s)) }},
		{"cyrillic", "ru", "Привет, мир", func(s string) ([]byte, error) { return charmap.Windows1251.NewEncoder().Bytes([]byte(s)) }},
		{"shift-jis", "ja", "こんにちは", func(s string) ([]byte, error) { return japanese.ShiftJIS.NewEncoder().Bytes([]byte(s)) }},
		{"region hint", "ja-JP", "日本語", func(s string) ([]byte, error) { return japanese.ShiftJIS.NewEncoder().Bytes([]byte(s)) }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			encoded, err := tc.encoded(tc.text)
			if err != nil {
				t.Fatalf("encode: %v", err)
			}
			got, err := FixEncoding(encoded, tc.hint)
			if err != nil {
				t.Fatalf("FixEncoding returned error: %v", err)
			}
			if string(got) != tc.text {
				t.Fatalf("got %q want %q", got, tc.text)
			}
		})
	}
}

func TestFixEncodingWarnsWhenNotConfident(t *testing.T) {
	raw := []byte{0xFF, 0xFF, 0x41}
	got, err := FixEncoding(raw, "ko")
	if !errors.Is(err, services.ErrEncodingRepair) {
		t.Fatalf("expected encoding repair warning, got %v", err)
	}
	if services.KindOf(err) != services.KindEncodingRepair {
		t.Fatalf("unexpected kind %q", services.KindOf(err))
	}
	if !bytes.Equal(got, raw) {
		t.Fatalf("expected original bytes kept, got %q", got)
	}
}
