// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/pdiddy/doc-collector/pkg/types"
)

// --- test helpers ---

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), types.StorageConfig{Dir: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testSession(t *testing.T, s *Store) *types.SessionRecord {
	t.Helper()
	rec := &types.SessionRecord{
		OriginalQuery: "machine learning",
		Criteria:      "peer reviewed",
		Languages:     []string{"en", "vi"},
		Engines:       []string{"google", "bing"},
	}
	if err := s.CreateSession(context.Background(), rec); err != nil {
		t.Fatal(err)
	}
	return rec
}

func addResult(t *testing.T, s *Store, sessionID int64, url, lang, engine string) *types.ResultRecord {
	t.Helper()
	rec := &types.ResultRecord{SessionID: sessionID, URL: url, Title: "title " + url, Language: lang, Engine: engine, Query: "q"}
	ok, err := s.CreateResult(context.Background(), rec)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatalf("CreateResult(%s) reported duplicate", url)
	}
	return rec
}

// --- sessions ---

func TestSessionLifecycle(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	rec := testSession(t, s)

	if rec.ID == 0 || rec.Status != types.SessionPending {
		t.Fatalf("CreateSession = id %d status %s", rec.ID, rec.Status)
	}

	got, err := s.GetSession(ctx, rec.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.OriginalQuery != "machine learning" || got.Criteria != "peer reviewed" {
		t.Errorf("GetSession = %+v", got)
	}
	if len(got.Languages) != 2 || got.Engines[1] != "bing" {
		t.Errorf("languages/engines = %v / %v", got.Languages, got.Engines)
	}

	if err := s.UpdateSessionStatus(ctx, rec.ID, types.SessionProcessing, ""); err != nil {
		t.Fatal(err)
	}
	if err := s.UpdateSessionStatus(ctx, rec.ID, types.SessionFailed, "store unreachable"); err != nil {
		t.Fatal(err)
	}
	got, _ = s.GetSession(ctx, rec.ID)
	if got.Status != types.SessionFailed || got.Error != "store unreachable" {
		t.Errorf("after fail: status %s error %q", got.Status, got.Error)
	}

	err = s.UpdateSessionStatus(ctx, rec.ID, types.SessionCompleted, "")
	if !errors.Is(err, types.ErrInvalidTransition) {
		t.Errorf("Failed -> Completed error = %v, want ErrInvalidTransition", err)
	}
}

func TestGetSession_NotFound(t *testing.T) {
	s := testStore(t)
	_, err := s.GetSession(context.Background(), 42)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
	if err := s.UpdateSessionStatus(context.Background(), 42, types.SessionProcessing, ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateSessionStatus error = %v, want ErrNotFound", err)
	}
}

func TestListSessions(t *testing.T) {
	s := testStore(t)
	a := testSession(t, s)
	b := testSession(t, s)

	got, err := s.ListSessions(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].ID != b.ID || got[1].ID != a.ID {
		t.Errorf("ListSessions order = %+v", got)
	}

	got, _ = s.ListSessions(context.Background(), 1)
	if len(got) != 1 {
		t.Errorf("ListSessions(1) = %d sessions", len(got))
	}
}

// --- results ---

func TestCreateResult_OnePerSessionURL(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	sess := testSession(t, s)
	other := testSession(t, s)

	addResult(t, s, sess.ID, "https://a.com/doc.pdf", "en", "google")

	dup := &types.ResultRecord{SessionID: sess.ID, URL: "https://a.com/doc.pdf", Engine: "bing"}
	ok, err := s.CreateResult(ctx, dup)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("second CreateResult for same session and URL succeeded")
	}

	addResult(t, s, other.ID, "https://a.com/doc.pdf", "en", "bing")

	results, _ := s.ListResults(ctx, sess.ID, "")
	if len(results) != 1 {
		t.Errorf("session has %d results, want 1", len(results))
	}
}

func TestResultTransitions(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	sess := testSession(t, s)
	r := addResult(t, s, sess.ID, "https://a.org/1.pdf", "en", "google")

	path := filepath.Join(t.TempDir(), "1.pdf")
	if err := s.MarkDownloaded(ctx, r.ID, path, ".pdf", 1234); err != nil {
		t.Fatal(err)
	}
	got, _ := s.GetResult(ctx, r.ID)
	if got.DownloadStatus != types.DownloadDownloaded || got.FilePath != path || got.FileSize != 1234 || got.FileType != ".pdf" {
		t.Errorf("after download: %+v", got)
	}

	if err := s.SetRelevance(ctx, r.ID, 0.25); err != nil {
		t.Fatal(err)
	}
	if err := s.RejectResult(ctx, r.ID); err != nil {
		t.Fatal(err)
	}
	got, _ = s.GetResult(ctx, r.ID)
	if got.DownloadStatus != types.DownloadFailed || got.FilePath != "" {
		t.Errorf("after reject: status %s path %q", got.DownloadStatus, got.FilePath)
	}
	if got.RelevanceScore == nil || *got.RelevanceScore != 0.25 {
		t.Errorf("relevance = %v", got.RelevanceScore)
	}

	if err := s.MarkDownloaded(ctx, r.ID, path, ".pdf", 1); !errors.Is(err, types.ErrInvalidTransition) {
		t.Errorf("Failed -> Downloaded error = %v, want ErrInvalidTransition", err)
	}

	skipped := addResult(t, s, sess.ID, "https://a.org/2", "en", "google")
	if err := s.MarkSkipped(ctx, skipped.ID); err != nil {
		t.Fatal(err)
	}
	if err := s.RejectResult(ctx, skipped.ID); !errors.Is(err, types.ErrInvalidTransition) {
		t.Errorf("Skipped -> Failed error = %v, want ErrInvalidTransition", err)
	}

	if err := s.MarkFailed(ctx, 999); !errors.Is(err, ErrNotFound) {
		t.Errorf("MarkFailed(999) error = %v, want ErrNotFound", err)
	}
}

func TestListResultsAndSummary(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	sess := testSession(t, s)

	a := addResult(t, s, sess.ID, "https://a.org/a.pdf", "en", "google")
	b := addResult(t, s, sess.ID, "https://b.org/b.pdf", "vi", "google")
	addResult(t, s, sess.ID, "https://c.org/c", "vi", "bing")

	if err := s.MarkDownloaded(ctx, a.ID, "/tmp/a.pdf", ".pdf", 10); err != nil {
		t.Fatal(err)
	}
	if err := s.MarkFailed(ctx, b.ID); err != nil {
		t.Fatal(err)
	}

	downloaded, err := s.ListResults(ctx, sess.ID, types.DownloadDownloaded)
	if err != nil {
		t.Fatal(err)
	}
	if len(downloaded) != 1 || downloaded[0].ID != a.ID {
		t.Errorf("downloaded = %+v", downloaded)
	}

	sum, err := s.Summary(ctx, sess.ID)
	if err != nil {
		t.Fatal(err)
	}
	if sum.Total != 3 {
		t.Errorf("Total = %d, want 3", sum.Total)
	}
	if sum.ByStatus[types.DownloadDownloaded] != 1 || sum.ByStatus[types.DownloadFailed] != 1 || sum.ByStatus[types.DownloadPending] != 1 {
		t.Errorf("ByStatus = %v", sum.ByStatus)
	}
	if sum.ByLanguage["vi"] != 2 || sum.ByEngine["google"] != 2 {
		t.Errorf("ByLanguage = %v ByEngine = %v", sum.ByLanguage, sum.ByEngine)
	}
}

func TestOpen_Errors(t *testing.T) {
	ctx := context.Background()
	if _, err := Open(ctx, types.StorageConfig{Driver: "oracle"}); err == nil {
		t.Error("expected error for unknown driver")
	}
	if _, err := Open(ctx, types.StorageConfig{Driver: "postgres"}); err == nil {
		t.Error("expected error for postgres without DSN")
	}
}

func TestRebind(t *testing.T) {
	s := &Store{postgres: true}
	got := s.rebind(`UPDATE t SET a = ?, b = ? WHERE id = ?`)
	if want := `UPDATE t SET a = $1, b = $2 WHERE id = $3`; got != want {
		t.Errorf("rebind = %q, want %q", got, want)
	}
	if got := (&Store{}).rebind("a = ?"); got != "a = ?" {
		t.Errorf("sqlite rebind changed query: %q", got)
	}
}
