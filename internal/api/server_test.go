package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/opnet-core/indexer/internal/storage"
	"github.com/opnet-core/indexer/internal/testutil"
	"github.com/opnet-core/indexer/internal/types"
)

func newTestServer(t *testing.T) (*Server, *storage.StorageEngine) {
	t.Helper()
	sb, err := testutil.NewSandbox()
	if err != nil {
		t.Fatalf("new sandbox: %v", err)
	}
	t.Cleanup(func() { sb.Cleanup() })
	store, err := storage.NewStorageEngine(storage.Config{DataDir: sb.Root}, nil)
	if err != nil {
		t.Fatalf("new storage engine: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return New(Config{}, store, nil), store
}

func (s *Server) testHandler() http.Handler { return s.httpSrv.Handler }

func TestHandleLatestBlock(t *testing.T) {
	s, store := newTestServer(t)
	h := &types.BlockHeader{Height: 3, Hash: types.Hash{3}}
	if err := store.Blocks().SaveBlockHeader(h); err != nil {
		t.Fatalf("save header: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/blocks/latest", nil)
	rec := httptest.NewRecorder()
	s.testHandler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var got types.BlockHeader
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Height != 3 {
		t.Fatalf("expected height 3, got %d", got.Height)
	}
}

func TestHandleBlockByChecksumRejectsMalformedHex(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/blocks/checksum/not-hex", nil)
	rec := httptest.NewRecorder()
	s.testHandler().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandleBlockByChecksumLowercasesAndStrips0x(t *testing.T) {
	s, store := newTestServer(t)
	checksum := types.Hash{0xAB}
	h := &types.BlockHeader{Height: 1, Hash: types.Hash{1}, ChecksumRoot: checksum}
	if err := store.Blocks().SaveBlockHeader(h); err != nil {
		t.Fatalf("save header: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/blocks/checksum/0X"+checksum.Hex(), nil)
	rec := httptest.NewRecorder()
	s.testHandler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandleBlockByHeightNotFound(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/blocks/height/99", nil)
	rec := httptest.NewRecorder()
	s.testHandler().ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
