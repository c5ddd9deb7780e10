package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	contractx "github.com/deuterium1925/smart-ass-back/agent/contract"
)

// PostgresConfig configures the bun-backed Store.
type PostgresConfig struct {
	DSN          string        `envconfig:"DSN" split_words:"true" required:"true"`
	MaxOpenConns int           `envconfig:"MAX_OPEN_CONNS" split_words:"true" default:"8"`
	Timeout      time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"10s"`
}

// PostgresStore persists customers and turns in PostgreSQL. All conditional
// updates are single statements, so concurrent triggers and submissions for
// the same turn race safely; the customer delete cascade runs in one
// transaction.
type PostgresStore struct {
	db  *bun.DB
	now func() time.Time
}

type customerRow struct {
	bun.BaseModel `bun:"table:customers,alias:c"`

	PhoneNumber string         `bun:"phone_number,pk"`
	Attributes  map[string]any `bun:"attributes,type:jsonb"`
	CreatedAt   time.Time      `bun:"created_at,notnull"`
	UpdatedAt   time.Time      `bun:"updated_at,notnull"`
}

type turnRow struct {
	bun.BaseModel `bun:"table:conversation_turns,alias:t"`

	PhoneNumber      string         `bun:"phone_number,pk"`
	Timestamp        int64          `bun:"ts,pk"`
	UserText         string         `bun:"user_text,notnull"`
	OperatorResponse string         `bun:"operator_response,notnull,default:''"`
	QAState          string         `bun:"qa_state,notnull"`
	QAOutput         map[string]any `bun:"qa_output,type:jsonb,nullzero"`
	QAError          string         `bun:"qa_error,notnull,default:''"`
	SummaryState     string         `bun:"summary_state,notnull"`
	SummaryOutput    map[string]any `bun:"summary_output,type:jsonb,nullzero"`
	SummaryError     string         `bun:"summary_error,notnull,default:''"`
	CreatedAt        time.Time      `bun:"created_at,notnull"`
}

func NewPostgresStore(cfg PostgresConfig) (*PostgresStore, error) {
	if cfg.DSN == "" {
		return nil, errors.New("postgres dsn is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(
		pgdriver.WithDSN(cfg.DSN),
		pgdriver.WithTimeout(timeout),
	))
	if cfg.MaxOpenConns > 0 {
		sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	return &PostgresStore{
		db:  bun.NewDB(sqldb, pgdialect.New()),
		now: time.Now,
	}, nil
}

// Init creates the schema when it does not exist yet.
func (s *PostgresStore) Init(ctx context.Context) error {
	if _, err := s.db.NewCreateTable().Model((*customerRow)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("create customers table: %w", err)
	}
	if _, err := s.db.NewCreateTable().Model((*turnRow)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("create conversation_turns table: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) UpsertCustomer(ctx context.Context, phoneNumber string, attributes map[string]any) (*contractx.Customer, error) {
	phone, err := contractx.NormalizePhone(phoneNumber)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	row := &customerRow{
		PhoneNumber: phone,
		Attributes:  attributes,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if row.Attributes == nil {
		row.Attributes = map[string]any{}
	}

	// jsonb concatenation keeps attributes not present in this upsert.
	_, err = s.db.NewInsert().
		Model(row).
		On("CONFLICT (phone_number) DO UPDATE").
		Set("attributes = c.attributes || EXCLUDED.attributes").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("upsert customer %s: %w", phone, err)
	}

	return s.GetCustomer(ctx, phone)
}

func (s *PostgresStore) GetCustomer(ctx context.Context, phoneNumber string) (*contractx.Customer, error) {
	phone, err := contractx.NormalizePhone(phoneNumber)
	if err != nil {
		return nil, err
	}

	row := new(customerRow)
	err = s.db.NewSelect().Model(row).Where("phone_number = ?", phone).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: customer %s", contractx.ErrNotFound, phone)
	}
	if err != nil {
		return nil, fmt.Errorf("select customer %s: %w", phone, err)
	}
	return customerFromRow(row), nil
}

func (s *PostgresStore) DeleteCustomer(ctx context.Context, phoneNumber string) error {
	phone, err := contractx.NormalizePhone(phoneNumber)
	if err != nil {
		return err
	}

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().
			Model((*turnRow)(nil)).
			Where("phone_number = ?", phone).
			Exec(ctx); err != nil {
			return fmt.Errorf("delete turns for %s: %w", phone, err)
		}

		res, err := tx.NewDelete().
			Model((*customerRow)(nil)).
			Where("phone_number = ?", phone).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("delete customer %s: %w", phone, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return fmt.Errorf("%w: customer %s", contractx.ErrNotFound, phone)
		}
		return nil
	})
}

func (s *PostgresStore) AppendTurn(ctx context.Context, phoneNumber, userText string) (int64, error) {
	phone, err := contractx.NormalizePhone(phoneNumber)
	if err != nil {
		return 0, err
	}

	var assigned int64
	err = s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		exists, err := tx.NewSelect().
			Model((*customerRow)(nil)).
			Where("phone_number = ?", phone).
			For("UPDATE").
			Exists(ctx)
		if err != nil {
			return fmt.Errorf("check customer %s: %w", phone, err)
		}
		if !exists {
			return fmt.Errorf("%w: customer %s", contractx.ErrNotFound, phone)
		}

		var last sql.NullInt64
		if err := tx.NewSelect().
			Model((*turnRow)(nil)).
			ColumnExpr("MAX(ts)").
			Where("phone_number = ?", phone).
			Scan(ctx, &last); err != nil {
			return fmt.Errorf("select last timestamp for %s: %w", phone, err)
		}

		now := s.now().UTC()
		ts := now.UnixNano()
		if last.Valid && ts <= last.Int64 {
			ts = last.Int64 + 1
		}

		row := &turnRow{
			PhoneNumber:  phone,
			Timestamp:    ts,
			UserText:     userText,
			QAState:      string(contractx.StatePending),
			SummaryState: string(contractx.StatePending),
			CreatedAt:    now,
		}
		if _, err := tx.NewInsert().Model(row).Exec(ctx); err != nil {
			return fmt.Errorf("insert turn %s/%d: %w", phone, ts, err)
		}
		assigned = ts
		return nil
	})
	if err != nil {
		return 0, err
	}
	return assigned, nil
}

func (s *PostgresStore) History(ctx context.Context, phoneNumber string, limit int) ([]contractx.Turn, error) {
	phone, err := contractx.NormalizePhone(phoneNumber)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	if _, err := s.GetCustomer(ctx, phone); err != nil {
		return nil, err
	}

	total, err := s.db.NewSelect().
		Model((*turnRow)(nil)).
		Where("phone_number = ?", phone).
		Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count turns for %s: %w", phone, err)
	}

	var rows []turnRow
	if err := s.db.NewSelect().
		Model(&rows).
		Where("phone_number = ?", phone).
		Order("ts DESC").
		Limit(limit).
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("select history for %s: %w", phone, err)
	}

	// rows come newest first; flip to creation order and derive sequence
	// numbers from the full history length.
	out := make([]contractx.Turn, len(rows))
	for i := range rows {
		t := turnFromRow(&rows[len(rows)-1-i])
		t.Sequence = total - len(rows) + i
		out[i] = *t
	}
	return out, nil
}

func (s *PostgresStore) TurnsByTimestamps(ctx context.Context, phoneNumber string, timestamps []int64) ([]contractx.Turn, error) {
	phone, err := contractx.NormalizePhone(phoneNumber)
	if err != nil {
		return nil, err
	}

	if _, err := s.GetCustomer(ctx, phone); err != nil {
		return nil, err
	}
	if len(timestamps) == 0 {
		return nil, nil
	}

	var rows []turnRow
	if err := s.db.NewSelect().
		Model(&rows).
		Where("phone_number = ?", phone).
		Where("ts IN (?)", bun.In(timestamps)).
		Order("ts ASC").
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("select turns for %s: %w", phone, err)
	}

	seqs, err := s.sequenceIndex(ctx, phone)
	if err != nil {
		return nil, err
	}

	byTS := make(map[int64]*turnRow, len(rows))
	for i := range rows {
		byTS[rows[i].Timestamp] = &rows[i]
	}

	out := make([]contractx.Turn, 0, len(timestamps))
	for _, ts := range timestamps {
		row, ok := byTS[ts]
		if !ok {
			return nil, fmt.Errorf("%w: turn %s/%d", contractx.ErrNotFound, phone, ts)
		}
		t := turnFromRow(row)
		t.Sequence = seqs[ts]
		out = append(out, *t)
	}
	return out, nil
}

func (s *PostgresStore) GetTurn(ctx context.Context, phoneNumber string, timestamp int64) (*contractx.Turn, error) {
	phone, err := contractx.NormalizePhone(phoneNumber)
	if err != nil {
		return nil, err
	}

	row := new(turnRow)
	err = s.db.NewSelect().
		Model(row).
		Where("phone_number = ?", phone).
		Where("ts = ?", timestamp).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: turn %s/%d", contractx.ErrNotFound, phone, timestamp)
	}
	if err != nil {
		return nil, fmt.Errorf("select turn %s/%d: %w", phone, timestamp, err)
	}
	return turnFromRow(row), nil
}

func (s *PostgresStore) SetOperatorResponse(ctx context.Context, phoneNumber string, timestamp int64, text string) (*contractx.Turn, error) {
	phone, err := contractx.NormalizePhone(phoneNumber)
	if err != nil {
		return nil, err
	}

	res, err := s.db.NewUpdate().
		Model((*turnRow)(nil)).
		Set("operator_response = ?", text).
		Where("phone_number = ?", phone).
		Where("ts = ?", timestamp).
		Where("operator_response = ''").
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("set operator response %s/%d: %w", phone, timestamp, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		// Distinguish a missing turn from a duplicate submission.
		if _, err := s.GetTurn(ctx, phone, timestamp); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: operator response already recorded for turn %s/%d", contractx.ErrConflict, phone, timestamp)
	}
	return s.GetTurn(ctx, phone, timestamp)
}

func (s *PostgresStore) WriteAutomatedResults(ctx context.Context, phoneNumber string, timestamp int64, results contractx.AutomatedResults) (*contractx.Turn, error) {
	phone, err := contractx.NormalizePhone(phoneNumber)
	if err != nil {
		return nil, err
	}

	_, err = s.db.NewUpdate().
		Model((*turnRow)(nil)).
		Set("qa_state = ?", string(results.QAFeedback.State)).
		Set("qa_output = ?", outputJSON(results.QAFeedback.Output)).
		Set("qa_error = ?", results.QAFeedback.Error).
		Set("summary_state = ?", string(results.Summary.State)).
		Set("summary_output = ?", outputJSON(results.Summary.Output)).
		Set("summary_error = ?", results.Summary.Error).
		Where("phone_number = ?", phone).
		Where("ts = ?", timestamp).
		Where("qa_state = ?", string(contractx.StatePending)).
		Where("summary_state = ?", string(contractx.StatePending)).
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("write automated results %s/%d: %w", phone, timestamp, err)
	}

	// Zero rows affected means another trigger won; either way the stored
	// turn is the materialized answer.
	return s.GetTurn(ctx, phone, timestamp)
}

func (s *PostgresStore) sequenceIndex(ctx context.Context, phone string) (map[int64]int, error) {
	var all []int64
	if err := s.db.NewSelect().
		Model((*turnRow)(nil)).
		Column("ts").
		Where("phone_number = ?", phone).
		Order("ts ASC").
		Scan(ctx, &all); err != nil {
		return nil, fmt.Errorf("select timestamps for %s: %w", phone, err)
	}
	seqs := make(map[int64]int, len(all))
	for i, ts := range all {
		seqs[ts] = i
	}
	return seqs, nil
}

func customerFromRow(row *customerRow) *contractx.Customer {
	attrs := row.Attributes
	if attrs == nil {
		attrs = map[string]any{}
	}
	return &contractx.Customer{
		PhoneNumber: row.PhoneNumber,
		Attributes:  attrs,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
}

func turnFromRow(row *turnRow) *contractx.Turn {
	return &contractx.Turn{
		PhoneNumber:      row.PhoneNumber,
		Timestamp:        row.Timestamp,
		UserText:         row.UserText,
		OperatorResponse: row.OperatorResponse,
		Automated: contractx.AutomatedResults{
			QAFeedback: slotFromColumns(contractx.AgentQA, row.QAState, row.QAOutput, row.QAError),
			Summary:    slotFromColumns(contractx.AgentSummary, row.SummaryState, row.SummaryOutput, row.SummaryError),
		},
		CreatedAt: row.CreatedAt,
	}
}

func slotFromColumns(agent contractx.AgentName, state string, output map[string]any, errMsg string) contractx.AutomatedSlot {
	slot := contractx.AutomatedSlot{
		State: contractx.ResultState(state),
		Error: errMsg,
	}
	if output != nil {
		confidence, _ := output["confidence"].(float64)
		slot.Output = &contractx.AgentOutput{
			Agent:      agent,
			Result:     output,
			Confidence: confidence,
		}
	}
	return slot
}

func outputJSON(out *contractx.AgentOutput) map[string]any {
	if out == nil {
		return nil
	}
	result := make(map[string]any, len(out.Result)+1)
	for k, v := range out.Result {
		result[k] = v
	}
	result["confidence"] = out.Confidence
	return result
}
