package workbench_test

import (
	"errors"
	"testing"

	"github.com/starford/datatree/internal/apperr"
	"github.com/starford/datatree/internal/testutil"
	"github.com/starford/datatree/internal/workbench"
)

func TestDualMountsGoodAndBad(t *testing.T) {
	dir, store := testutil.TestDataDir(t)
	testutil.WriteFile(t, dir, "good_datatree.json", `{"G": {}}`)
	wb := workbench.New(workbench.ModeDual, nil, store, testutil.DiscardLogger(), nil)
	if err := wb.Open(t.Context()); err != nil {
		t.Fatal(err)
	}
	names := wb.Names()
	if len(names) != 2 || names[0] != "good" || names[1] != "bad" {
		t.Fatalf("names = %v", names)
	}
	good, _ := wb.Get("good")
	bad, _ := wb.Get("bad")
	if rows, _ := good.Outline(); len(rows) != 1 {
		t.Fatalf("good rows = %v", rows)
	}
	if rows, _ := bad.Outline(); len(rows) != 0 {
		t.Fatalf("bad rows = %v", rows)
	}
	if wb.Title() != "Dual DataTree" {
		t.Fatalf("title = %q", wb.Title())
	}
}

func TestInstancesAreIndependent(t *testing.T) {
	_, store := testutil.TestDataDir(t)
	wb := workbench.New(workbench.ModeDual, nil, store, testutil.DiscardLogger(), nil)
	if err := wb.Open(t.Context()); err != nil {
		t.Fatal(err)
	}
	good, _ := wb.Get("good")
	bad, _ := wb.Get("bad")
	if err := good.AddFolder(t.Context(), "", "OnlyGood"); err != nil {
		t.Fatal(err)
	}
	if rows, _ := bad.Outline(); len(rows) != 0 {
		t.Fatalf("bad tree changed: %v", rows)
	}
}

func TestGetUnknown(t *testing.T) {
	_, store := testutil.TestDataDir(t)
	wb := workbench.New(workbench.ModeSingle, nil, store, testutil.DiscardLogger(), nil)
	if _, err := wb.Get("nope"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTitleAfterLoad(t *testing.T) {
	dir, store := testutil.TestDataDir(t)
	other := testutil.WriteFile(t, dir, "notes.json", `{}`)
	wb := workbench.New(workbench.ModeSingle, nil, store, testutil.DiscardLogger(), nil)
	if err := wb.Open(t.Context()); err != nil {
		t.Fatal(err)
	}
	if wb.Title() != "DataTree" {
		t.Fatalf("title = %q", wb.Title())
	}
	if err := wb.Load(t.Context(), "main", ""); err != nil {
		t.Fatal(err)
	}
	if wb.Title() != "DataTree" {
		t.Fatalf("cancelled load changed title: %q", wb.Title())
	}
	if err := wb.Load(t.Context(), "main", other); err != nil {
		t.Fatal(err)
	}
	if wb.Title() != "DataTree - notes.json" {
		t.Fatalf("title = %q", wb.Title())
	}
}

func TestNilLoggerFallsBackToDefault(t *testing.T) {
	_, store := testutil.TestDataDir(t)
	wb := workbench.New(workbench.ModeSingle, nil, store, nil, nil)
	if err := wb.Open(t.Context()); err != nil {
		t.Fatal(err)
	}
	svc, err := wb.Get("main")
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.AddFolder(t.Context(), "", "A"); err != nil {
		t.Fatalf("AddFolder with default logger: %v", err)
	}
}
