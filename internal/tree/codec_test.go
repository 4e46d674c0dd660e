package tree

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/starford/datatree/internal/apperr"
)

func TestNormalizeLegacyString(t *testing.T) {
	raw := map[string]any{"note": "hello"}
	if n := Normalize(raw); n != 1 {
		t.Errorf("upgraded = %d, want 1", n)
	}
	want := map[string]any{"note": map[string]any{"content": "hello", "image": nil}}
	if !reflect.DeepEqual(raw, want) {
		t.Errorf("raw = %#v, want %#v", raw, want)
	}
}

func TestNormalizeRecursesFoldersOnly(t *testing.T) {
	var raw map[string]any
	doc := `{"f": {"deep": "legacy", "g": {}}, "e": {"content": "c", "nested": "kept"}}`
	if err := json.Unmarshal([]byte(doc), &raw); err != nil {
		t.Fatal(err)
	}
	if n := Normalize(raw); n != 1 {
		t.Errorf("upgraded = %d, want 1", n)
	}
	entry := raw["e"].(map[string]any)
	if entry["nested"] != "kept" {
		t.Errorf("entry object was rewritten: %#v", entry)
	}
}

func TestDecodeLegacyThenEdit(t *testing.T) {
	tr, upgraded, err := Decode([]byte(`{"note": "hello"}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if upgraded != 1 {
		t.Errorf("upgraded = %d", upgraded)
	}
	e, err := tr.Entry(MustParsePath("note"))
	if err != nil {
		t.Fatal(err)
	}
	if e.Content != "hello" || e.HasImage() {
		t.Errorf("entry = %+v", e)
	}
	if err := tr.UpdateEntry(MustParsePath("note"), "edited", ""); err != nil {
		t.Fatal(err)
	}
	data, _ := Encode(tr)
	if strings.Contains(string(data), "image") {
		t.Errorf("image key should be absent after edit:\n%s", data)
	}
}

func TestDecodeNullImageTolerated(t *testing.T) {
	tr, _, err := Decode([]byte(`{"a": {"b": {"content": "x", "image": null}}}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	e, err := tr.Entry(MustParsePath("a/b"))
	if err != nil {
		t.Fatal(err)
	}
	if e.HasImage() {
		t.Errorf("null image should decode as absent")
	}
}

func TestDecodeEmptyFolderStaysFolder(t *testing.T) {
	tr, _, err := Decode([]byte(`{"empty": {}}`))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tr.ResolveFolder(MustParsePath("empty")); err != nil {
		t.Errorf("empty object should be a folder: %v", err)
	}
}

func TestDecodeRejectsMalformed(t *testing.T) {
	docs := []string{
		`{"a": `,
		`[1, 2]`,
		`{"a": 42}`,
		`{"a": {"content": 1}}`,
		`{"a": {"content": "x", "image": 5}}`,
	}
	for _, d := range docs {
		if _, _, err := Decode([]byte(d)); !errors.Is(err, apperr.ErrIO) {
			t.Errorf("Decode(%s) err = %v, want ErrIO", d, err)
		}
	}
}

func TestDecodeEmptyDocument(t *testing.T) {
	for _, d := range []string{"", "  \n", "null"} {
		tr, _, err := Decode([]byte(d))
		if err != nil {
			t.Errorf("Decode(%q): %v", d, err)
			continue
		}
		if tr.Root().Len() != 0 {
			t.Errorf("Decode(%q) not empty", d)
		}
	}
}

func TestEncodeFormat(t *testing.T) {
	tr := New()
	mustInsertEntry(t, tr, "b", "n", "x")
	if err := tr.InsertEntry(Path{}, "a", "y", "aW1n"); err != nil {
		t.Fatal(err)
	}
	data, err := Encode(tr)
	if err != nil {
		t.Fatal(err)
	}
	want := `{
    "a": {
        "content": "y",
        "image": "aW1n"
    },
    "b": {
        "n": {
            "content": "x"
        }
    }
}
`
	if string(data) != want {
		t.Errorf("Encode =\n%s\nwant\n%s", data, want)
	}

	back, _, err := Decode(data)
	if err != nil {
		t.Fatal(err)
	}
	again, _ := Encode(back)
	if string(again) != string(data) {
		t.Errorf("re-encode differs")
	}
}

func TestDecodeRejectsUnaddressableNames(t *testing.T) {
	docs := []string{
		`{"a/b": {"content": "x"}}`,
		`{" sp ": {"content": "x"}}`,
		`{"F": {"": {}}}`,
		`{"F": {"  ": "legacy"}}`,
		`{"F": {"x/": {}}}`,
	}
	for _, d := range docs {
		if _, _, err := Decode([]byte(d)); !errors.Is(err, apperr.ErrIO) {
			t.Errorf("Decode(%s) err = %v, want ErrIO", d, err)
		}
	}
}

func TestEncodeDoesNotEscapeHTML(t *testing.T) {
	tr := New()
	mustInsertEntry(t, tr, "", "a<b", "x & y > z")
	data, err := Encode(tr)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"a<b"`) || !strings.Contains(string(data), `"x & y > z"`) {
		t.Errorf("Encode escaped HTML characters:\n%s", data)
	}
}
