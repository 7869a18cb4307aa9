package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/goccy/go-json"

	"github.com/Korkidis/ai-risk-shield-sub000/internal/database/migrations"
	"github.com/Korkidis/ai-risk-shield-sub000/internal/model"
	"github.com/Korkidis/ai-risk-shield-sub000/internal/shield"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteDatabase implements the Database interface using SQLite.
type SQLiteDatabase struct {
	db   *sql.DB
	path string
}

// NewSQLiteDatabase creates a new SQLite database connection.
// path can be a file path or ":memory:" for in-memory database.
func NewSQLiteDatabase(path string) (*SQLiteDatabase, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	return &SQLiteDatabase{db: db, path: path}, nil
}

// NewSQLiteDatabaseFromDB wraps an existing database connection.
// The caller is responsible for ensuring the connection is properly configured.
func NewSQLiteDatabaseFromDB(db *sql.DB) *SQLiteDatabase {
	return &SQLiteDatabase{db: db}
}

// OpenConnection opens and configures a SQLite database connection.
// Exported for tools and tests that need a properly configured connection.
//
// Connection settings travel in the DSN so the driver applies them to every
// pooled connection, not only the first.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == ":memory:" {
		// each pooled connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

func dsn(path string) string {
	params := url.Values{}
	params.Set("_foreign_keys", "on")
	if path != ":memory:" {
		params.Set("_journal_mode", "WAL")
		params.Set("_busy_timeout", "5000")
	}
	return path + "?" + params.Encode()
}

// Asset operations

func (s *SQLiteDatabase) CreateAsset(a *model.Asset) error {
	_, err := s.db.ExecContext(context.Background(), `
		INSERT INTO assets (id, storage_key, filename, mime_type, media_kind, size, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.StorageKey, a.Filename, a.MIMEType, a.Kind, a.Size, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating asset: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) FindAsset(id string) (*model.Asset, error) {
	var a model.Asset
	err := s.db.QueryRowContext(context.Background(), `
		SELECT id, storage_key, filename, mime_type, media_kind, size, created_at
		FROM assets WHERE id = ?`, id).
		Scan(&a.ID, &a.StorageKey, &a.Filename, &a.MIMEType, &a.Kind, &a.Size, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding asset: %w", err)
	}
	return &a, nil
}

// Brand guideline operations

func (s *SQLiteDatabase) CreateBrandGuideline(g *model.BrandGuideline) error {
	prohibited, err := encodeStrings(g.ProhibitedKeywords)
	if err != nil {
		return fmt.Errorf("encoding prohibited keywords: %w", err)
	}
	required, err := encodeStrings(g.RequiredElements)
	if err != nil {
		return fmt.Errorf("encoding required elements: %w", err)
	}

	_, err = s.db.ExecContext(context.Background(), `
		INSERT INTO brand_guidelines (id, name, prohibited_keywords, required_elements, context, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		g.ID, g.Name, prohibited, required, g.Context, g.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating brand guideline: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) FindBrandGuideline(id string) (*model.BrandGuideline, error) {
	var (
		g                    model.BrandGuideline
		prohibited, required string
	)
	err := s.db.QueryRowContext(context.Background(), `
		SELECT id, name, prohibited_keywords, required_elements, context, created_at
		FROM brand_guidelines WHERE id = ?`, id).
		Scan(&g.ID, &g.Name, &prohibited, &required, &g.Context, &g.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding brand guideline: %w", err)
	}
	if err := json.Unmarshal([]byte(prohibited), &g.ProhibitedKeywords); err != nil {
		return nil, fmt.Errorf("decoding prohibited keywords: %w", err)
	}
	if err := json.Unmarshal([]byte(required), &g.RequiredElements); err != nil {
		return nil, fmt.Errorf("decoding required elements: %w", err)
	}
	return &g, nil
}

// Scan operations

const scanColumns = `id, asset_id, guideline_id, status, risk_level, composite_score,
	ip_risk_score, safety_risk_score, provenance_risk_score, provenance_status,
	is_video, frames_analyzed, error_message, created_at, started_at, completed_at,
	analysis_duration_ms`

func (s *SQLiteDatabase) CreateScan(scan *model.Scan) error {
	_, err := s.db.ExecContext(context.Background(), `
		INSERT INTO scans (id, asset_id, guideline_id, status, is_video, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		scan.ID, scan.AssetID, nullString(scan.GuidelineID), scan.Status, scan.IsVideo, scan.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating scan: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) FindScan(id string) (*model.Scan, error) {
	row := s.db.QueryRowContext(context.Background(),
		`SELECT `+scanColumns+` FROM scans WHERE id = ?`, id)
	scan, err := scanScan(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding scan: %w", err)
	}
	return scan, nil
}

func (s *SQLiteDatabase) ListScans(limit int) ([]*model.Scan, error) {
	if limit <= 0 {
		limit = -1 // no limit
	}
	rows, err := s.db.QueryContext(context.Background(),
		`SELECT `+scanColumns+` FROM scans ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing scans: %w", err)
	}
	defer rows.Close()

	var result []*model.Scan
	for rows.Next() {
		scan, err := scanScan(rows)
		if err != nil {
			return nil, fmt.Errorf("reading scan row: %w", err)
		}
		result = append(result, scan)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing scans: %w", err)
	}
	return result, nil
}

func (s *SQLiteDatabase) ClaimScan(id string, startedAt time.Time) (bool, error) {
	res, err := s.db.ExecContext(context.Background(), `
		UPDATE scans SET status = ?, started_at = ?
		WHERE id = ? AND status = ?`,
		model.ScanProcessing, startedAt, id, model.ScanPending)
	if err != nil {
		return false, fmt.Errorf("claiming scan: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claiming scan: %w", err)
	}
	return n == 1, nil
}

// CompleteScan writes the result rows and flips the scan to complete in one
// transaction. The update is guarded on status = processing so a terminal
// scan is never rewritten.
func (s *SQLiteDatabase) CompleteScan(result *shield.ScanResult) error {
	ctx := context.Background()
	scan := result.Scan

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	for i, f := range result.Findings {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO scan_findings (id, scan_id, seq, finding_type, severity, title, description, recommendation, evidence, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			f.ID, scan.ID, i, f.Type, f.Severity, f.Title, f.Description, f.Recommendation, nullBytes(f.Evidence), f.CreatedAt)
		if err != nil {
			return fmt.Errorf("inserting finding: %w", err)
		}
	}

	for _, fr := range result.Frames {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO video_frames (id, scan_id, frame_index, timestamp_ms, ip_risk_score, safety_risk_score, composite_score, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			fr.ID, scan.ID, fr.FrameIndex, fr.TimestampMS, fr.IPRiskScore, fr.SafetyRiskScore, fr.CompositeScore, fr.CreatedAt)
		if err != nil {
			return fmt.Errorf("inserting video frame %d: %w", fr.FrameIndex, err)
		}
	}

	if p := result.Provenance; p != nil {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO provenance_details (scan_id, status, creator, signing_tool, issuer, signed_at, edit_history, validation_codes, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			scan.ID, p.Status, nullString(p.Creator), nullString(p.SigningTool), nullString(p.Issuer),
			nullTime(p.SignedAt), jsonOrEmpty(p.EditHistory), jsonOrEmpty(p.ValidationCodes), p.CreatedAt)
		if err != nil {
			return fmt.Errorf("inserting provenance details: %w", err)
		}
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE scans SET
			status = ?, risk_level = ?, composite_score = ?, ip_risk_score = ?,
			safety_risk_score = ?, provenance_risk_score = ?, provenance_status = ?,
			is_video = ?, frames_analyzed = ?, error_message = NULL,
			completed_at = ?, analysis_duration_ms = ?
		WHERE id = ? AND status = ?`,
		model.ScanComplete, scan.RiskLevel, nullInt(scan.CompositeScore), nullInt(scan.IPRiskScore),
		nullInt(scan.SafetyRiskScore), nullInt(scan.ProvenanceRiskScore), nullString(string(scan.ProvenanceStatus)),
		scan.IsVideo, scan.FramesAnalyzed,
		nullTime(scan.CompletedAt), nullInt64(scan.AnalysisDurationMS),
		scan.ID, model.ScanProcessing)
	if err != nil {
		return fmt.Errorf("updating scan: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating scan: %w", err)
	}
	if n != 1 {
		return fmt.Errorf("scan %s is not processing", scan.ID)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) FailScan(id string, message string, completedAt time.Time, durationMS int64) error {
	_, err := s.db.ExecContext(context.Background(), `
		UPDATE scans SET status = ?, error_message = ?, completed_at = ?, analysis_duration_ms = ?
		WHERE id = ? AND status NOT IN (?, ?)`,
		model.ScanFailed, message, completedAt, durationMS,
		id, model.ScanComplete, model.ScanFailed)
	if err != nil {
		return fmt.Errorf("failing scan: %w", err)
	}
	return nil
}

// Result reads

func (s *SQLiteDatabase) FindingsForScan(scanID string) ([]*model.Finding, error) {
	rows, err := s.db.QueryContext(context.Background(), `
		SELECT id, scan_id, finding_type, severity, title, description, recommendation, evidence, created_at
		FROM scan_findings WHERE scan_id = ? ORDER BY seq`, scanID)
	if err != nil {
		return nil, fmt.Errorf("finding scan findings: %w", err)
	}
	defer rows.Close()

	var result []*model.Finding
	for rows.Next() {
		var (
			f        model.Finding
			evidence sql.NullString
		)
		if err := rows.Scan(&f.ID, &f.ScanID, &f.Type, &f.Severity, &f.Title, &f.Description,
			&f.Recommendation, &evidence, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("reading finding row: %w", err)
		}
		if evidence.Valid {
			f.Evidence = []byte(evidence.String)
		}
		result = append(result, &f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("finding scan findings: %w", err)
	}
	return result, nil
}

func (s *SQLiteDatabase) FramesForScan(scanID string) ([]*model.VideoFrame, error) {
	rows, err := s.db.QueryContext(context.Background(), `
		SELECT id, scan_id, frame_index, timestamp_ms, ip_risk_score, safety_risk_score, composite_score, created_at
		FROM video_frames WHERE scan_id = ? ORDER BY frame_index`, scanID)
	if err != nil {
		return nil, fmt.Errorf("finding video frames: %w", err)
	}
	defer rows.Close()

	var result []*model.VideoFrame
	for rows.Next() {
		var fr model.VideoFrame
		if err := rows.Scan(&fr.ID, &fr.ScanID, &fr.FrameIndex, &fr.TimestampMS, &fr.IPRiskScore,
			&fr.SafetyRiskScore, &fr.CompositeScore, &fr.CreatedAt); err != nil {
			return nil, fmt.Errorf("reading video frame row: %w", err)
		}
		result = append(result, &fr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("finding video frames: %w", err)
	}
	return result, nil
}

func (s *SQLiteDatabase) ProvenanceForScan(scanID string) (*model.ProvenanceDetail, error) {
	var (
		p                            model.ProvenanceDetail
		creator, tool, issuer        sql.NullString
		signedAt                     sql.NullTime
		editHistory, validationCodes string
	)
	err := s.db.QueryRowContext(context.Background(), `
		SELECT scan_id, status, creator, signing_tool, issuer, signed_at, edit_history, validation_codes, created_at
		FROM provenance_details WHERE scan_id = ?`, scanID).
		Scan(&p.ScanID, &p.Status, &creator, &tool, &issuer, &signedAt, &editHistory, &validationCodes, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding provenance details: %w", err)
	}
	p.Creator = creator.String
	p.SigningTool = tool.String
	p.Issuer = issuer.String
	if signedAt.Valid {
		t := signedAt.Time
		p.SignedAt = &t
	}
	p.EditHistory = []byte(editHistory)
	p.ValidationCodes = []byte(validationCodes)
	return &p, nil
}

// Metering

func (s *SQLiteDatabase) RecordUsage(e *model.UsageEvent) error {
	_, err := s.db.ExecContext(context.Background(), `
		INSERT INTO usage_events (id, scan_id, asset_id, media_kind, units, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.ScanID, e.AssetID, e.Kind, e.Units, e.RecordedAt)
	if err != nil {
		return fmt.Errorf("recording usage: %w", err)
	}
	return nil
}

// Path returns the database file path (or ":memory:" for in-memory databases).
func (s *SQLiteDatabase) Path() string {
	return s.path
}

// Migrate applies pending schema migrations.
func (s *SQLiteDatabase) Migrate() error {
	return migrations.MigrateUp(s.db)
}

// CheckMigrations verifies the database schema is up-to-date.
func (s *SQLiteDatabase) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db)
}

// Close closes the database connection.
func (s *SQLiteDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanScan(row rowScanner) (*model.Scan, error) {
	var (
		scan                                    model.Scan
		guidelineID, riskLevel, provStatus, msg sql.NullString
		composite, ip, safety, prov, duration   sql.NullInt64
		startedAt, completedAt                  sql.NullTime
	)
	err := row.Scan(&scan.ID, &scan.AssetID, &guidelineID, &scan.Status, &riskLevel, &composite,
		&ip, &safety, &prov, &provStatus,
		&scan.IsVideo, &scan.FramesAnalyzed, &msg, &scan.CreatedAt, &startedAt, &completedAt,
		&duration)
	if err != nil {
		return nil, err
	}
	scan.GuidelineID = guidelineID.String
	scan.RiskLevel = model.RiskLevel(riskLevel.String)
	scan.ProvenanceStatus = model.ProvenanceStatus(provStatus.String)
	scan.ErrorMessage = msg.String
	scan.CompositeScore = intPtr(composite)
	scan.IPRiskScore = intPtr(ip)
	scan.SafetyRiskScore = intPtr(safety)
	scan.ProvenanceRiskScore = intPtr(prov)
	if duration.Valid {
		d := duration.Int64
		scan.AnalysisDurationMS = &d
	}
	if startedAt.Valid {
		t := startedAt.Time
		scan.StartedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		scan.CompletedAt = &t
	}
	return &scan, nil
}

func encodeStrings(v []string) (string, error) {
	if v == nil {
		v = []string{}
	}
	b, err := json.Marshal(v)
	return string(b), err
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullBytes(b []byte) sql.NullString {
	return sql.NullString{String: string(b), Valid: b != nil}
}

func jsonOrEmpty(b []byte) string {
	if len(b) == 0 {
		return "[]"
	}
	return string(b)
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// Compile-time check that SQLiteDatabase implements shield.Database interface
var _ shield.Database = (*SQLiteDatabase)(nil)
