package storage

import (
	"context"
	"fmt"
)

// LLMCallRecord summarizes one generation exchange for operational queries;
// the full request/response audit lives in the per-exchange JSON files.
type LLMCallRecord struct {
	CallID       string
	Mode         string
	ProviderName string
	Model        string
	Status       string
	ErrorType    string
	Attempts     int
	Degraded     bool
}

type LLMAuditRepo struct {
	db *DB
}

func NewLLMAuditRepo(db *DB) *LLMAuditRepo {
	return &LLMAuditRepo{db: db}
}

func (r *LLMAuditRepo) Insert(ctx context.Context, rec LLMCallRecord) error {
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO llm_calls(call_id, mode, provider_name, model, status, error_type, attempts, degraded)
VALUES (COALESCE(NULLIF($1,'')::uuid, gen_random_uuid()), $2, $3, $4, $5, NULLIF($6,''), $7, $8)`,
		rec.CallID, rec.Mode, rec.ProviderName, rec.Model, rec.Status, rec.ErrorType, rec.Attempts, rec.Degraded)
	if err != nil {
		return fmt.Errorf("insert llm call: %w", err)
	}
	return nil
}
