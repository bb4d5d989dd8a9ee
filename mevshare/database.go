package mevshare

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

var ErrEventNotFound = errors.New("event not found")

type DBEvent struct {
	Hash        []byte          `db:"hash"`
	Block       sql.NullInt64   `db:"block"`
	TxCount     int             `db:"tx_count"`
	MevGasPrice sql.NullString  `db:"mev_gas_price"`
	GasUsed     sql.NullInt64   `db:"gas_used"`
	Hint        json.RawMessage `db:"hint"`
	InsertedAt  time.Time       `db:"inserted_at"`
}

var insertEventQuery = `
INSERT INTO mevshare_event (hash, block, tx_count, mev_gas_price, gas_used, hint)
VALUES (:hash, :block, :tx_count, :mev_gas_price, :gas_used, :hint)
ON CONFLICT (hash) DO NOTHING`

var getEventQuery = `
SELECT hash, block, tx_count, mev_gas_price, gas_used, hint, inserted_at
FROM mevshare_event
WHERE hash = $1`

type DBInclusion struct {
	Hash       []byte    `db:"hash"`
	Block      int64     `db:"block"`
	TxCount    int       `db:"tx_count"`
	Landed     int       `db:"landed"`
	Reverted   bool      `db:"reverted"`
	InsertedAt time.Time `db:"inserted_at"`
}

var insertInclusionQuery = `
INSERT INTO mevshare_inclusion (hash, block, tx_count, landed, reverted)
VALUES (:hash, :block, :tx_count, :landed, :reverted)
ON CONFLICT (hash) DO
UPDATE SET block = :block, landed = :landed, reverted = :reverted`

// EventStore archives stream events and observed inclusions in postgres, so
// a watcher restart does not lose what it has already seen.
type EventStore struct {
	db *sqlx.DB

	insertEvent     *sqlx.NamedStmt
	getEvent        *sqlx.Stmt
	insertInclusion *sqlx.NamedStmt
}

func NewEventStore(postgresDSN string) (*EventStore, error) {
	db, err := sqlx.Connect("postgres", postgresDSN)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(20)

	insertEvent, err := db.PrepareNamed(insertEventQuery)
	if err != nil {
		return nil, err
	}
	getEvent, err := db.Preparex(getEventQuery)
	if err != nil {
		return nil, err
	}
	insertInclusion, err := db.PrepareNamed(insertInclusionQuery)
	if err != nil {
		return nil, err
	}

	return &EventStore{
		db:              db,
		insertEvent:     insertEvent,
		getEvent:        getEvent,
		insertInclusion: insertInclusion,
	}, nil
}

func (s *EventStore) SaveEvent(ctx context.Context, event *Event) error {
	hint, err := json.Marshal(event)
	if err != nil {
		return err
	}
	row := DBEvent{
		Hash:    event.Hash.Bytes(),
		TxCount: len(event.Txs),
		Hint:    hint,
	}
	if event.MevGasPrice != nil {
		row.MevGasPrice = sql.NullString{String: event.MevGasPrice.ToInt().String(), Valid: true}
	}
	if event.GasUsed != nil {
		row.GasUsed = sql.NullInt64{Int64: int64(*event.GasUsed), Valid: true}
	}
	_, err = s.insertEvent.ExecContext(ctx, row)
	return err
}

func (s *EventStore) GetEvent(ctx context.Context, hash common.Hash) (*Event, error) {
	var row DBEvent
	err := s.getEvent.GetContext(ctx, &row, hash.Bytes())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEventNotFound
	} else if err != nil {
		return nil, err
	}

	var event Event
	if err := json.Unmarshal(row.Hint, &event); err != nil {
		return nil, err
	}
	return &event, nil
}

// SaveInclusion records the outcome of an inclusion wait. landed is how many
// of the bundle's transactions had receipts at resolution time.
func (s *EventStore) SaveInclusion(ctx context.Context, hash common.Hash, block uint64, txCount, landed int, reverted bool) error {
	row := DBInclusion{
		Hash:     hash.Bytes(),
		Block:    int64(block),
		TxCount:  txCount,
		Landed:   landed,
		Reverted: reverted,
	}
	_, err := s.insertInclusion.ExecContext(ctx, row)
	return err
}

func (s *EventStore) Close() error {
	return s.db.Close()
}
