package filing

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

func TestRecord_PathIsRecomputedFromKey(t *testing.T) {
	store := newFakeStore()
	rec := NewRecorder(store, nil)

	key := ClassificationKey{EntityName: "Acme Corp", Category: "GST", FinancialYear: "2024-25", Month: 4}
	placed := PlacedFile{
		RemoteFileID: "remote-1",
		FileName:     "gstr3b.pdf",
		OriginalName: "GSTR-3B April.pdf",
		MimeType:     "application/pdf",
		Size:         1024,
	}

	doc, err := rec.Record(context.Background(), placed, key, "ravi@acme.in", "Ravi", UploadExtras{
		Description: "monthly return",
		Tags:        []string{"gst", " return ", ""},
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if doc.FilePath != "Acme Corp/GST/2024-25/April/gstr3b.pdf" {
		t.Fatalf("FilePath = %q", doc.FilePath)
	}
	if doc.FinancialYear != "2024-25" || doc.Month != 4 {
		t.Fatalf("denormalized fields: fy=%q month=%d", doc.FinancialYear, doc.Month)
	}
	if !reflect.DeepEqual(doc.TagList(), []string{"gst", "return"}) {
		t.Fatalf("TagList = %v", doc.TagList())
	}
	if len(store.docs) != 1 {
		t.Fatalf("store has %d docs", len(store.docs))
	}
}

func TestRecord_GatedFieldsAreNotDenormalized(t *testing.T) {
	store := newFakeStore()
	rec := NewRecorder(store, nil)

	// Others ignores the year; a yearly category ignores the month. The
	// record must match the placement, not echo the caller's surplus input.
	key := ClassificationKey{EntityName: "Acme Corp", Category: "Others", FinancialYear: "2024-25", Month: 4}
	doc, err := rec.Record(context.Background(), PlacedFile{RemoteFileID: "r1", FileName: "misc.pdf"}, key, "a@b.in", "A", UploadExtras{})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if doc.FinancialYear != "" || doc.Month != 0 {
		t.Fatalf("Others record denormalized gated fields: fy=%q month=%d", doc.FinancialYear, doc.Month)
	}
	if doc.FilePath != "Acme Corp/Others/misc.pdf" {
		t.Fatalf("FilePath = %q", doc.FilePath)
	}

	key = ClassificationKey{EntityName: "Acme Corp", Category: "Accounts", FinancialYear: "2024-25", Month: 4}
	doc, err = rec.Record(context.Background(), PlacedFile{RemoteFileID: "r2", FileName: "ledger.xlsx"}, key, "a@b.in", "A", UploadExtras{})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if doc.FinancialYear != "2024-25" || doc.Month != 0 {
		t.Fatalf("Accounts record: fy=%q month=%d", doc.FinancialYear, doc.Month)
	}
}

func TestRecord_InsertFailureIsDegradedNotLost(t *testing.T) {
	store := newFakeStore()
	store.insertDocErr = errors.New("connection refused")
	rec := NewRecorder(store, nil)

	key := ClassificationKey{EntityName: "Acme Corp", Category: "GST", FinancialYear: "2024-25", Month: 4}
	doc, err := rec.Record(context.Background(), PlacedFile{RemoteFileID: "remote-9", FileName: "x.pdf"}, key, "a@b.in", "A", UploadExtras{})
	if KindOf(err) != KindMetadataPersist {
		t.Fatalf("expected metadata persist failure, got %v", err)
	}
	if doc == nil || doc.RemoteFileID != "remote-9" {
		t.Fatalf("degraded record must still carry the remote file id, got %+v", doc)
	}
	if !errors.Is(err, store.insertDocErr) {
		t.Fatalf("cause not wrapped: %v", err)
	}
}
