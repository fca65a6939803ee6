package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/supabase-community/supabase-go"
)

const defaultSupabaseTable = "voice_records"

// supabaseStore keeps records as rows of a single table:
//
//	create table voice_records (
//	  key text primary key,
//	  value jsonb not null,
//	  updated_at timestamptz not null default now()
//	);
type supabaseStore struct {
	client *supabase.Client
	table  string
}

type supabaseRow struct {
	Key       string          `json:"key"`
	Value     json.RawMessage `json:"value"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// NewSupabaseStore creates a Store backed by a Supabase (PostgREST) table.
func NewSupabaseStore(url, serviceKey, table string) (Store, error) {
	if url == "" || serviceKey == "" {
		return nil, fmt.Errorf("%w: SUPABASE_URL and SUPABASE_SERVICE_ROLE_KEY required", ErrInvalidConfig)
	}
	if table == "" {
		table = defaultSupabaseTable
	}
	client, err := supabase.NewClient(url, serviceKey, &supabase.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to create supabase client: %w", err)
	}
	return &supabaseStore{client: client, table: table}, nil
}

func (s *supabaseStore) Load(_ context.Context, key string) ([]byte, error) {
	var rows []supabaseRow
	_, err := s.client.From(s.table).
		Select("key,value", "", false).
		Eq("key", key).
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrLoadFailed, key, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return rows[0].Value, nil
}

func (s *supabaseStore) Save(_ context.Context, key string, value []byte) error {
	if !json.Valid(value) {
		return fmt.Errorf("%w: %s: value is not JSON", ErrSaveFailed, key)
	}
	row := supabaseRow{Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	_, _, err := s.client.From(s.table).
		Upsert(row, "key", "minimal", "").
		Execute()
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrSaveFailed, key, err)
	}
	return nil
}

func (s *supabaseStore) Delete(_ context.Context, key string) error {
	var rows []supabaseRow
	_, err := s.client.From(s.table).
		Delete("representation", "").
		Eq("key", key).
		ExecuteTo(&rows)
	if err != nil {
		return fmt.Errorf("delete failed: %s: %w", key, err)
	}
	if len(rows) == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return nil
}

func (s *supabaseStore) List(_ context.Context, prefix string) ([]string, error) {
	var rows []supabaseRow
	_, err := s.client.From(s.table).
		Select("key", "", false).
		Like("key", prefix+"%").
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadFailed, err)
	}
	keys := make([]string, 0, len(rows))
	for _, r := range rows {
		keys = append(keys, r.Key)
	}
	return keys, nil
}

func (s *supabaseStore) Close() error { return nil }
