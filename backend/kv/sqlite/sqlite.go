// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package sqlite

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/Fantom-foundation/monotree/backend/kv"
	"github.com/Fantom-foundation/monotree/common"
	_ "github.com/mattn/go-sqlite3"
)

const (
	createNodesTable = "CREATE TABLE IF NOT EXISTS node (hash BLOB PRIMARY KEY, data BLOB NOT NULL)"
	getNode          = "SELECT data FROM node WHERE hash = ?"
	putNode          = "INSERT OR REPLACE INTO node(hash, data) VALUES (?,?)"
	deleteNode       = "DELETE FROM node WHERE hash = ?"
)

// Store is a SQLite backed kv.Store implementation keeping all nodes in a
// single table.
type Store struct {
	db         *sql.DB
	getStmt    *sql.Stmt
	putStmt    *sql.Stmt
	deleteStmt *sql.Stmt
}

// OpenStore opens or creates a SQLite database in the given file.
func OpenStore(file string) (*Store, error) {
	db, err := sql.Open("sqlite3", "file:"+file)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database; %w", err)
	}

	// SQLite does not support concurrent writes, a single connection avoids
	// busy errors between transactions.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			return nil, errors.Join(fmt.Errorf("failed to configure database; %w", err), db.Close())
		}
	}

	if _, err := db.Exec(createNodesTable); err != nil {
		return nil, errors.Join(fmt.Errorf("failed to create node table; %w", err), db.Close())
	}

	getStmt, err := db.Prepare(getNode)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("failed to prepare get statement; %w", err), db.Close())
	}
	putStmt, err := db.Prepare(putNode)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("failed to prepare put statement; %w", err), db.Close())
	}
	deleteStmt, err := db.Prepare(deleteNode)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("failed to prepare delete statement; %w", err), db.Close())
	}

	return &Store{
		db:         db,
		getStmt:    getStmt,
		putStmt:    putStmt,
		deleteStmt: deleteStmt,
	}, nil
}

func (s *Store) Get(key common.Hash) ([]byte, bool, error) {
	var value []byte
	err := s.getStmt.QueryRow(key[:]).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if value == nil {
		value = []byte{}
	}
	return value, true, nil
}

func (s *Store) Put(key common.Hash, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	_, err := s.putStmt.Exec(key[:], value)
	return err
}

func (s *Store) Delete(key common.Hash) error {
	_, err := s.deleteStmt.Exec(key[:])
	return err
}

func (s *Store) NewBatch() kv.Batch {
	return &kv.OpBatch{}
}

// Write applies all operations of the batch within a single transaction.
func (s *Store) Write(batch kv.Batch) (err error) {
	ops, ok := batch.(*kv.OpBatch)
	if !ok {
		return kv.UnsupportedBatchError("sqlite", batch)
	}
	if ops.Len() == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction; %w", err)
	}
	defer func() {
		if err != nil {
			err = errors.Join(err, tx.Rollback())
		}
	}()

	put := tx.Stmt(s.putStmt)
	del := tx.Stmt(s.deleteStmt)
	for _, op := range ops.Ops() {
		if op.IsDelete() {
			_, err = del.Exec(op.Key[:])
		} else {
			_, err = put.Exec(op.Key[:], op.Value)
		}
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) Flush() error {
	return nil // every transaction is committed when written
}

func (s *Store) Close() error {
	return errors.Join(
		s.getStmt.Close(),
		s.putStmt.Close(),
		s.deleteStmt.Close(),
		s.db.Close(),
	)
}
