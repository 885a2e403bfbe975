package store

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Lllllllleong/researchdigest/internal/models"
)

func openTestBolt(t *testing.T) *Bolt {
	t.Helper()
	b, err := OpenBolt(filepath.Join(t.TempDir(), "db", "research.db"))
	if err != nil {
		t.Fatalf("open bolt: %v", err)
	}
	t.Cleanup(func() { b.Close() })
	return b
}

func TestBoltSessionLifecycle(t *testing.T) {
	b := openTestBolt(t)
	ctx := context.Background()

	s := &models.Session{ID: "s-1", Query: "What does it say?", Status: models.SessionPending}
	if err := b.CreateSession(ctx, s); err != nil {
		t.Fatalf("create: %v", err)
	}
	if s.CreatedAt.IsZero() {
		t.Error("createdAt should be set")
	}

	err := b.UpdateSession(ctx, "s-1", models.SessionUpdate{
		Status:         models.Ptr(models.SessionFailed),
		ErrorMessage:   models.Ptr("boom"),
		ReportFilename: models.Ptr("report.docx"),
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := b.GetSession(ctx, "s-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != "s-1" || got.Query != s.Query {
		t.Errorf("unexpected session: %+v", got)
	}
	if got.Status != models.SessionFailed || got.ErrorMessage != "boom" || got.ReportFilename != "report.docx" {
		t.Errorf("update not applied: %+v", got)
	}
}

func TestBoltNotFound(t *testing.T) {
	b := openTestBolt(t)
	ctx := context.Background()

	if _, err := b.GetSession(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetSession: expected ErrNotFound, got %v", err)
	}
	if err := b.UpdateSession(ctx, "missing", models.SessionUpdate{}); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateSession: expected ErrNotFound, got %v", err)
	}
	if err := b.UpdateDocument(ctx, "missing", "d", models.DocumentUpdate{}); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateDocument: expected ErrNotFound, got %v", err)
	}
	err := b.CreateDocument(ctx, &models.Document{ID: "d", SessionID: "missing"})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("CreateDocument without session: expected ErrNotFound, got %v", err)
	}
}

func TestBoltListDocumentsOrderedByFilename(t *testing.T) {
	b := openTestBolt(t)
	ctx := context.Background()

	for _, id := range []string{"s-1", "s-10"} {
		if err := b.CreateSession(ctx, &models.Session{ID: id, Status: models.SessionPending}); err != nil {
			t.Fatal(err)
		}
	}
	files := map[string]string{"d-1": "zeta.pdf", "d-2": "alpha.txt", "d-3": "mid.docx"}
	for id, name := range files {
		d := &models.Document{ID: id, SessionID: "s-1", OriginalFilename: name, Status: models.DocumentUploaded}
		if err := b.CreateDocument(ctx, d); err != nil {
			t.Fatal(err)
		}
	}
	// Another session sharing a key prefix must not leak in.
	if err := b.CreateDocument(ctx, &models.Document{ID: "x", SessionID: "s-10", OriginalFilename: "aaa.txt"}); err != nil {
		t.Fatal(err)
	}

	docs, err := b.ListDocuments(ctx, "s-1")
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, d := range docs {
		names = append(names, d.OriginalFilename)
		if d.SessionID != "s-1" {
			t.Errorf("document %s belongs to %s", d.ID, d.SessionID)
		}
	}
	if got := strings.Join(names, ","); got != "alpha.txt,mid.docx,zeta.pdf" {
		t.Errorf("order: got %s", got)
	}
}

func TestBoltUpdateDocument(t *testing.T) {
	b := openTestBolt(t)
	ctx := context.Background()

	b.CreateSession(ctx, &models.Session{ID: "s-1"})
	b.CreateDocument(ctx, &models.Document{ID: "d-1", SessionID: "s-1", OriginalFilename: "a.txt", Status: models.DocumentUploaded})

	err := b.UpdateDocument(ctx, "s-1", "d-1", models.DocumentUpdate{
		Status:        models.Ptr(models.DocumentError),
		ProcessingLog: models.Ptr("Unsupported file type: .exe"),
	})
	if err != nil {
		t.Fatal(err)
	}
	docs, _ := b.ListDocuments(ctx, "s-1")
	if len(docs) != 1 {
		t.Fatalf("expected 1 document, got %d", len(docs))
	}
	if docs[0].Status != models.DocumentError || docs[0].ProcessingLog == "" {
		t.Errorf("update not applied: %+v", docs[0])
	}
}

func TestCapText(t *testing.T) {
	short := "hello"
	if capText(short) != short {
		t.Error("short text should be untouched")
	}
	long := strings.Repeat("é", maxStoredTextBytes) // 2 bytes per rune
	got := capText(long)
	if len(got) > maxStoredTextBytes {
		t.Errorf("capped length %d exceeds limit", len(got))
	}
	if !strings.HasPrefix(long, got) || len(got)%2 != 0 {
		t.Error("capText split a multi-byte rune")
	}
}
