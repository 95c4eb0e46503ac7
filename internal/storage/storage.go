package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Store wraps SQLite-backed persistence for jobs and FITS products.
type Store struct {
	DB *sql.DB // Export for direct database access
}

// New opens (or creates) the database at path and ensures schema.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	s := &Store{DB: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS processing_jobs (
            id TEXT PRIMARY KEY,
            job_type TEXT NOT NULL,
            status TEXT NOT NULL,
            input_path TEXT,
            output_path TEXT,
            options_json TEXT,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
            started_at TIMESTAMP,
            completed_at TIMESTAMP,
            error_message TEXT
        );`,
		`CREATE TABLE IF NOT EXISTS job_results (
            job_id TEXT,
            meta_json TEXT,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
        );`,
		`CREATE TABLE IF NOT EXISTS fits_products (
            path TEXT PRIMARY KEY,
            job_id TEXT,
            object TEXT,
            naxis INTEGER,
            naxis1 INTEGER,
            naxis2 INTEGER,
            naxis3 INTEGER,
            ctype1 TEXT,
            ctype2 TEXT,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
        );`,
		`CREATE INDEX IF NOT EXISTS idx_fits_products_job_id ON fits_products(job_id);`,
		`CREATE INDEX IF NOT EXISTS idx_processing_jobs_status ON processing_jobs(status);`,
	}
	for _, stmt := range stmts {
		if _, err := s.DB.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the underlying DB.
func (s *Store) Close() error {
	if s == nil || s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

// JobRecord captures persisted job info.
type JobRecord struct {
	ID          string
	JobType     string
	Status      string
	InputPath   string
	OutputPath  string
	OptionsJSON string
	Error       string
	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
}

// ProductRecord captures a written FITS product and the shape of its
// primary HDU.
type ProductRecord struct {
	Path   string
	JobID  string
	Object string
	Naxis  int
	Naxis1 int
	Naxis2 int
	Naxis3 int
	Ctype1 string
	Ctype2 string
}

// RecordJobQueued inserts a pending job.
func (s *Store) RecordJobQueued(rec JobRecord) error {
	if s == nil {
		return nil
	}
	_, err := s.DB.Exec(`INSERT OR REPLACE INTO processing_jobs (id, job_type, status, input_path, output_path, options_json) VALUES (?, ?, ?, ?, ?, ?);`,
		rec.ID, rec.JobType, rec.Status, rec.InputPath, rec.OutputPath, rec.OptionsJSON)
	return err
}

// RecordJobStart marks a job as running.
func (s *Store) RecordJobStart(id string) error {
	if s == nil {
		return nil
	}
	_, err := s.DB.Exec(`UPDATE processing_jobs SET status='running', started_at=CURRENT_TIMESTAMP WHERE id=?;`, id)
	return err
}

// RecordJobResult finalizes a job with status and meta.
func (s *Store) RecordJobResult(id string, status string, meta map[string]any, errMsg string) error {
	if s == nil {
		return nil
	}
	metaJSON, _ := json.Marshal(meta)
	_, err := s.DB.Exec(`UPDATE processing_jobs SET status=?, completed_at=CURRENT_TIMESTAMP, error_message=? WHERE id=?;`, status, errMsg, id)
	if err != nil {
		return err
	}
	_, err = s.DB.Exec(`INSERT INTO job_results (job_id, meta_json) VALUES (?, ?);`, id, string(metaJSON))
	return err
}

// RecentJobs returns the latest jobs up to limit.
func (s *Store) RecentJobs(limit int) ([]JobRecord, error) {
	if s == nil {
		return nil, errors.New("store not initialized")
	}
	rows, err := s.DB.Query(`SELECT id, job_type, status, input_path, output_path, options_json, created_at, started_at, completed_at, error_message FROM processing_jobs ORDER BY created_at DESC LIMIT ?;`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []JobRecord
	for rows.Next() {
		var rec JobRecord
		var created time.Time
		var started, completed sql.NullTime
		var errorMsg sql.NullString
		if err := rows.Scan(&rec.ID, &rec.JobType, &rec.Status, &rec.InputPath, &rec.OutputPath, &rec.OptionsJSON, &created, &started, &completed, &errorMsg); err != nil {
			return nil, err
		}
		rec.CreatedAt = created
		if started.Valid {
			rec.StartedAt = &started.Time
		}
		if completed.Valid {
			rec.CompletedAt = &completed.Time
		}
		if errorMsg.Valid {
			rec.Error = errorMsg.String
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// JobMeta fetches the last meta blob for a job.
func (s *Store) JobMeta(id string) (map[string]any, error) {
	if s == nil {
		return nil, errors.New("store not initialized")
	}
	var metaJSON string
	err := s.DB.QueryRow(`SELECT meta_json FROM job_results WHERE job_id=? ORDER BY created_at DESC LIMIT 1;`, id).Scan(&metaJSON)
	if err != nil {
		return nil, err
	}
	var meta map[string]any
	if err := json.Unmarshal([]byte(metaJSON), &meta); err != nil {
		return nil, fmt.Errorf("unmarshal meta: %w", err)
	}
	return meta, nil
}

// RecordProduct upserts a written FITS product.
func (s *Store) RecordProduct(rec ProductRecord) error {
	if s == nil {
		return nil
	}
	_, err := s.DB.Exec(`INSERT OR REPLACE INTO fits_products (path, job_id, object, naxis, naxis1, naxis2, naxis3, ctype1, ctype2)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?);`,
		rec.Path, rec.JobID, rec.Object, rec.Naxis, rec.Naxis1, rec.Naxis2, rec.Naxis3, rec.Ctype1, rec.Ctype2)
	return err
}

// ProductForJob returns the most recent product written by a job.
func (s *Store) ProductForJob(jobID string) (ProductRecord, error) {
	if s == nil {
		return ProductRecord{}, errors.New("store not initialized")
	}
	var rec ProductRecord
	var object, ctype1, ctype2 sql.NullString
	err := s.DB.QueryRow(`SELECT path, job_id, object, naxis, naxis1, naxis2, naxis3, ctype1, ctype2 FROM fits_products WHERE job_id=? ORDER BY created_at DESC LIMIT 1;`, jobID).
		Scan(&rec.Path, &rec.JobID, &object, &rec.Naxis, &rec.Naxis1, &rec.Naxis2, &rec.Naxis3, &ctype1, &ctype2)
	if err != nil {
		return ProductRecord{}, err
	}
	rec.Object = object.String
	rec.Ctype1 = ctype1.String
	rec.Ctype2 = ctype2.String
	return rec, nil
}

// Products returns the latest recorded products up to limit.
func (s *Store) Products(limit int) ([]ProductRecord, error) {
	if s == nil {
		return nil, errors.New("store not initialized")
	}
	rows, err := s.DB.Query(`SELECT path, job_id, object, naxis, naxis1, naxis2, naxis3, ctype1, ctype2 FROM fits_products ORDER BY created_at DESC LIMIT ?;`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []ProductRecord
	for rows.Next() {
		var rec ProductRecord
		var object, ctype1, ctype2 sql.NullString
		if err := rows.Scan(&rec.Path, &rec.JobID, &object, &rec.Naxis, &rec.Naxis1, &rec.Naxis2, &rec.Naxis3, &ctype1, &ctype2); err != nil {
			return nil, err
		}
		rec.Object = object.String
		rec.Ctype1 = ctype1.String
		rec.Ctype2 = ctype2.String
		recs = append(recs, rec)
	}
	return recs, nil
}
