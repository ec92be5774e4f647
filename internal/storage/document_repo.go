package storage

import (
	"context"
	"fmt"

	"lexrag/internal/models"
)

type DocumentRepo struct {
	db *DB
}

func NewDocumentRepo(db *DB) *DocumentRepo {
	return &DocumentRepo{db: db}
}

func (r *DocumentRepo) SaveDocument(ctx context.Context, d models.Document) error {
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO documents (document_id, source_file, source_type, pages, skipped_pages,
                       case_name, bench, court, judgement_date, citation, case_number,
                       year, act_name, url, status, fail_reason)
VALUES ($1, $2, $3, $4, $5, NULLIF($6,''), NULLIF($7,''), NULLIF($8,''), NULLIF($9,''),
        NULLIF($10,''), NULLIF($11,''), NULLIF($12,''), NULLIF($13,''), NULLIF($14,''),
        $15, NULLIF($16,''))
ON CONFLICT (document_id)
DO UPDATE SET
  source_file = EXCLUDED.source_file,
  source_type = EXCLUDED.source_type,
  pages = EXCLUDED.pages,
  skipped_pages = EXCLUDED.skipped_pages,
  case_name = COALESCE(EXCLUDED.case_name, documents.case_name),
  bench = COALESCE(EXCLUDED.bench, documents.bench),
  court = COALESCE(EXCLUDED.court, documents.court),
  judgement_date = COALESCE(EXCLUDED.judgement_date, documents.judgement_date),
  citation = COALESCE(EXCLUDED.citation, documents.citation),
  case_number = COALESCE(EXCLUDED.case_number, documents.case_number),
  year = COALESCE(EXCLUDED.year, documents.year),
  act_name = COALESCE(EXCLUDED.act_name, documents.act_name),
  url = COALESCE(EXCLUDED.url, documents.url),
  status = EXCLUDED.status,
  fail_reason = EXCLUDED.fail_reason,
  updated_at = NOW()`,
		d.DocumentID, d.SourceFile, d.SourceType, len(d.Pages), len(d.Skipped),
		d.Meta.CaseName, d.Meta.Bench, d.Meta.Court, d.Meta.JudgementDate, d.Meta.Citation,
		d.Meta.CaseNumber, d.Meta.Year, d.Meta.ActName, d.Meta.URL, d.Status, d.FailReason,
	)
	if err != nil {
		return fmt.Errorf("upsert document: %w", err)
	}
	return nil
}

func (r *DocumentRepo) UpdateStatus(ctx context.Context, documentID, status, failReason string) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE documents SET status=$2, fail_reason=NULLIF($3,''), updated_at=NOW() WHERE document_id=$1`,
		documentID, status, failReason)
	if err != nil {
		return fmt.Errorf("update document status: %w", err)
	}
	return nil
}

func (r *DocumentRepo) ListDocuments(ctx context.Context) ([]models.Document, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT document_id, source_file, source_type,
       COALESCE(case_name,''), COALESCE(bench,''), COALESCE(court,''),
       COALESCE(judgement_date,''), COALESCE(citation,''), COALESCE(case_number,''),
       COALESCE(year,''), COALESCE(act_name,''), COALESCE(url,''),
       status, COALESCE(fail_reason,''), created_at, updated_at
FROM documents
ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	out := make([]models.Document, 0)
	for rows.Next() {
		var d models.Document
		if err := rows.Scan(&d.DocumentID, &d.SourceFile, &d.SourceType,
			&d.Meta.CaseName, &d.Meta.Bench, &d.Meta.Court,
			&d.Meta.JudgementDate, &d.Meta.Citation, &d.Meta.CaseNumber,
			&d.Meta.Year, &d.Meta.ActName, &d.Meta.URL,
			&d.Status, &d.FailReason, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return out, nil
}

func (r *DocumentRepo) GetDocument(ctx context.Context, documentID string) (models.Document, error) {
	var d models.Document
	err := r.db.Pool.QueryRow(ctx, `
SELECT document_id, source_file, source_type,
       COALESCE(case_name,''), COALESCE(bench,''), COALESCE(court,''),
       COALESCE(judgement_date,''), COALESCE(citation,''), COALESCE(case_number,''),
       COALESCE(year,''), COALESCE(act_name,''), COALESCE(url,''),
       status, COALESCE(fail_reason,''), created_at, updated_at
FROM documents
WHERE document_id=$1`, documentID).Scan(
		&d.DocumentID, &d.SourceFile, &d.SourceType,
		&d.Meta.CaseName, &d.Meta.Bench, &d.Meta.Court,
		&d.Meta.JudgementDate, &d.Meta.Citation, &d.Meta.CaseNumber,
		&d.Meta.Year, &d.Meta.ActName, &d.Meta.URL,
		&d.Status, &d.FailReason, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return models.Document{}, fmt.Errorf("get document %s: %w", documentID, err)
	}
	return d, nil
}
