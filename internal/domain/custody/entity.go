package custody

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/bryanwahyu/automaton-forensics/internal/domain/documents"
)

// ZeroHash prev_hash untuk entry pertama sebuah chain
const ZeroHash = "0000000000000000000000000000000000000000000000000000000000000000"

// Actor konstanta umum; detector pakai "detector:<name>"
const (
	ActorOrchestrator = "orchestrator"
	ActorAPI          = "api"
)

// Entry satu baris custody, immutable setelah ditulis.
// Chain di-key per (tenant, document).
type Entry struct {
	Seq        int64                `json:"seq"`
	TenantID   string               `json:"tenant_id"`
	DocumentID documents.DocumentID `json:"document_id"`
	Actor      string               `json:"actor"`
	Action     string               `json:"action"`
	At         time.Time            `json:"at"`
	PrevHash   string               `json:"prev_hash"`
	Hash       string               `json:"hash"`
}

// payload kanonik yang ikut di-hash; urutan field = urutan serialisasi,
// jangan diubah tanpa migrasi chain.
type hashPayload struct {
	Action     string `json:"action"`
	Actor      string `json:"actor"`
	AtUnixNano int64  `json:"at_unix_nano"`
	DocumentID string `json:"document_id"`
	Seq        int64  `json:"seq"`
	TenantID   string `json:"tenant_id"`
}

// ComputeHash = sha256(prev_hash || canonical-json(fields)), hex lowercase
func ComputeHash(prevHash string, e *Entry) string {
	payload, _ := json.Marshal(hashPayload{
		Action:     e.Action,
		Actor:      e.Actor,
		AtUnixNano: e.At.UTC().UnixNano(),
		DocumentID: string(e.DocumentID),
		Seq:        e.Seq,
		TenantID:   e.TenantID,
	})
	h := sha256.New()
	h.Write([]byte(prevHash))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}
