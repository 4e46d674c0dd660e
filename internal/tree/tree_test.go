package tree

import (
	"errors"
	"reflect"
	"sort"
	"testing"

	"github.com/starford/datatree/internal/apperr"
)

func mustInsertEntry(t *testing.T, tr *Tree, parent, name, content string) {
	t.Helper()
	if err := tr.InsertEntry(MustParsePath(parent), name, content, ""); err != nil {
		t.Fatalf("InsertEntry(%q, %q): %v", parent, name, err)
	}
}

func TestInsertFolderThenResolve(t *testing.T) {
	tr := New()
	if err := tr.InsertFolder(MustParsePath("a/b/c")); err != nil {
		t.Fatalf("InsertFolder: %v", err)
	}
	f, err := tr.ResolveFolder(MustParsePath("a/b/c"))
	if err != nil {
		t.Fatalf("ResolveFolder: %v", err)
	}
	if f.Len() != 0 {
		t.Errorf("new folder has %d children, want 0", f.Len())
	}
	if _, err := tr.ResolveFolder(MustParsePath("a/b")); err != nil {
		t.Errorf("intermediate folder missing: %v", err)
	}
}

func TestInsertFolderIsIdempotent(t *testing.T) {
	tr := New()
	mustInsertEntry(t, tr, "a", "note", "x")
	if err := tr.InsertFolder(MustParsePath("a")); err != nil {
		t.Fatalf("re-inserting existing folder: %v", err)
	}
	if _, err := tr.Entry(MustParsePath("a/note")); err != nil {
		t.Errorf("existing children lost: %v", err)
	}
}

func TestInsertFolderThroughEntryConflicts(t *testing.T) {
	tr := New()
	mustInsertEntry(t, tr, "", "leaf", "x")
	before, _ := Encode(tr)

	err := tr.InsertFolder(MustParsePath("leaf/sub"))
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
	after, _ := Encode(tr)
	if string(before) != string(after) {
		t.Errorf("tree changed after failed insert:\n%s\n%s", before, after)
	}
}

func TestInsertFolderEmptyPath(t *testing.T) {
	tr := New()
	if err := tr.InsertFolder(Path{}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("err = %v, want ErrValidation", err)
	}
}

func TestInsertEntryRoundTrip(t *testing.T) {
	tr := New()
	img := EncodeImage([]byte{0x89, 'P', 'N', 'G'})
	if err := tr.InsertEntry(MustParsePath("docs"), "readme", "  hello  ", img); err != nil {
		t.Fatalf("InsertEntry: %v", err)
	}
	e, err := tr.Entry(MustParsePath("docs/readme"))
	if err != nil {
		t.Fatalf("Entry: %v", err)
	}
	if e.Content != "hello" {
		t.Errorf("content = %q, want trimmed %q", e.Content, "hello")
	}
	if e.Image != img {
		t.Errorf("image = %q, want %q", e.Image, img)
	}
	raw, err := e.ImageBytes()
	if err != nil {
		t.Fatalf("ImageBytes: %v", err)
	}
	if string(raw) != "\x89PNG" {
		t.Errorf("image bytes = %q", raw)
	}
}

func TestInsertEntryValidation(t *testing.T) {
	tr := New()
	cases := []struct{ name, content string }{
		{"", "x"},
		{"   ", "x"},
		{"n", ""},
		{"n", "  \t"},
		{"a/b", "x"},
	}
	for _, c := range cases {
		err := tr.InsertEntry(Path{}, c.name, c.content, "")
		if !errors.Is(err, apperr.ErrValidation) {
			t.Errorf("InsertEntry(%q, %q) err = %v, want ErrValidation", c.name, c.content, err)
		}
	}
	if tr.Root().Len() != 0 {
		t.Errorf("failed inserts modified the tree")
	}
}

func TestInsertEntryCannotShadowFolder(t *testing.T) {
	tr := New()
	if err := tr.InsertFolder(MustParsePath("a/b")); err != nil {
		t.Fatal(err)
	}
	err := tr.InsertEntry(MustParsePath("a"), "b", "x", "")
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
	if _, err := tr.ResolveFolder(MustParsePath("a/b")); err != nil {
		t.Errorf("folder was replaced: %v", err)
	}
}

func TestInsertEntryUnderEntryConflicts(t *testing.T) {
	tr := New()
	mustInsertEntry(t, tr, "a", "leaf", "x")
	before, _ := Encode(tr)

	err := tr.InsertEntry(MustParsePath("a/leaf/deeper"), "n", "y", "")
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
	after, _ := Encode(tr)
	if string(before) != string(after) {
		t.Errorf("tree changed after failed insert")
	}
}

func TestInsertEntryOverwritesEntry(t *testing.T) {
	tr := New()
	mustInsertEntry(t, tr, "", "n", "first")
	if err := tr.InsertEntry(Path{}, "n", "second", EncodeImage([]byte("img"))); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	e, _ := tr.Entry(MustParsePath("n"))
	if e.Content != "second" || !e.HasImage() {
		t.Errorf("entry = %+v, want overwritten", e)
	}
}

func TestInsertEntryCreatesParents(t *testing.T) {
	tr := New()
	mustInsertEntry(t, tr, "x/y", "n", "c")
	if _, err := tr.ResolveFolder(MustParsePath("x/y")); err != nil {
		t.Errorf("parents not created: %v", err)
	}
}

func TestUpdateEntry(t *testing.T) {
	tr := New()
	if err := tr.InsertEntry(Path{}, "n", "old", EncodeImage([]byte("img"))); err != nil {
		t.Fatal(err)
	}
	if err := tr.UpdateEntry(MustParsePath("n"), "new", ""); err != nil {
		t.Fatalf("UpdateEntry: %v", err)
	}
	e, _ := tr.Entry(MustParsePath("n"))
	if e.Content != "new" {
		t.Errorf("content = %q", e.Content)
	}
	if e.HasImage() {
		t.Errorf("image should be removed when absent")
	}

	if err := tr.UpdateEntry(MustParsePath("n"), " ", ""); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("blank content err = %v, want ErrValidation", err)
	}
	if err := tr.UpdateEntry(MustParsePath("missing"), "x", ""); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing entry err = %v, want ErrNotFound", err)
	}
}

func TestUpdateEntryOnFolder(t *testing.T) {
	tr := New()
	_ = tr.InsertFolder(MustParsePath("f"))
	if err := tr.UpdateEntry(MustParsePath("f"), "x", ""); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("err = %v, want ErrConflict", err)
	}
}

func TestDeleteFolderRemovesDescendants(t *testing.T) {
	tr := New()
	mustInsertEntry(t, tr, "a/b", "one", "1")
	mustInsertEntry(t, tr, "a/b/c", "two", "2")
	mustInsertEntry(t, tr, "keep", "three", "3")

	if err := tr.DeleteItem(MustParsePath("a")); err != nil {
		t.Fatalf("DeleteItem: %v", err)
	}
	for _, p := range []string{"a", "a/b", "a/b/one", "a/b/c/two"} {
		if _, err := tr.Lookup(MustParsePath(p)); !errors.Is(err, apperr.ErrNotFound) {
			t.Errorf("Lookup(%q) err = %v, want ErrNotFound", p, err)
		}
	}
	if _, err := tr.ResolveFolder(MustParsePath("a/b")); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("ResolveFolder after delete err = %v", err)
	}
	if _, err := tr.Entry(MustParsePath("keep/three")); err != nil {
		t.Errorf("unrelated entry removed: %v", err)
	}
}

func TestDeleteItemErrors(t *testing.T) {
	tr := New()
	if err := tr.DeleteItem(MustParsePath("nope")); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if err := tr.DeleteItem(Path{}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("root delete err = %v, want ErrValidation", err)
	}
}

func TestResolveFolderThroughEntry(t *testing.T) {
	tr := New()
	mustInsertEntry(t, tr, "", "leaf", "x")
	if _, err := tr.ResolveFolder(MustParsePath("leaf/x")); !errors.Is(err, apperr.ErrNotAFolder) {
		t.Errorf("err = %v, want ErrNotAFolder", err)
	}
}

func TestListFolderPaths(t *testing.T) {
	tr := New()
	for _, p := range []string{"b", "a/z", "a/b", "a-x", "c/d/e"} {
		if err := tr.InsertFolder(MustParsePath(p)); err != nil {
			t.Fatal(err)
		}
	}
	mustInsertEntry(t, tr, "a", "entry", "x")

	got := tr.ListFolderPaths()
	want := []string{"a", "a-x", "a/b", "a/z", "b", "c", "c/d", "c/d/e"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ListFolderPaths = %v, want %v", got, want)
	}
	if !sort.StringsAreSorted(got) {
		t.Errorf("not sorted: %v", got)
	}
}

func TestCloneIsDeep(t *testing.T) {
	tr := New()
	mustInsertEntry(t, tr, "a", "n", "x")
	cp := tr.Clone()
	if err := cp.UpdateEntry(MustParsePath("a/n"), "changed", ""); err != nil {
		t.Fatal(err)
	}
	if err := cp.DeleteItem(MustParsePath("a")); err != nil {
		t.Fatal(err)
	}
	e, err := tr.Entry(MustParsePath("a/n"))
	if err != nil {
		t.Fatalf("original lost entry: %v", err)
	}
	if e.Content != "x" {
		t.Errorf("original content = %q", e.Content)
	}
}

func TestCount(t *testing.T) {
	tr := New()
	mustInsertEntry(t, tr, "a/b", "n", "x")
	mustInsertEntry(t, tr, "", "m", "y")
	folders, entries := tr.Count()
	if folders != 2 || entries != 2 {
		t.Errorf("Count = %d, %d; want 2, 2", folders, entries)
	}
}

func TestImageBytesCorrupt(t *testing.T) {
	e := &Entry{Content: "x", Image: "!!not base64!!"}
	if _, err := e.ImageBytes(); !errors.Is(err, apperr.ErrImageDecode) {
		t.Errorf("err = %v, want ErrImageDecode", err)
	}
}
