package store

import (
	"context"
	"fmt"
)

// WriteCallSite inserts a call site record.
// Uses ON CONFLICT(token) DO NOTHING for idempotency - a trampoline is
// recorded once no matter how often it is announced.
func (s *Store) WriteCallSite(ctx context.Context, cs CallSite) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO call_sites (token, func_name, func_hash, arity, seq)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(token) DO NOTHING
	`,
		cs.Token,
		cs.Function,
		cs.FuncHash,
		cs.Arity,
		cs.Seq,
	)
	if err != nil {
		return fmt.Errorf("write call site: %w", err)
	}
	return nil
}

// WriteCompilation appends a compilation record and returns its ID.
//
// Note: The call site referenced by Token must exist (foreign key constraint).
func (s *Store) WriteCompilation(ctx context.Context, c Compilation) (int64, error) {
	args, err := marshalValues(c.WitnessArgs)
	if err != nil {
		return 0, fmt.Errorf("write compilation: %w", err)
	}
	value, err := marshalValue(c.WitnessValue)
	if err != nil {
		return 0, fmt.Errorf("write compilation: %w", err)
	}
	diags, err := marshalDiagnostics(c.Diagnostics)
	if err != nil {
		return 0, fmt.Errorf("write compilation: %w", err)
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO compilations
		(token, seq, state, signature, witness_args, witness_value, duration_ns, diagnostics, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		c.Token,
		c.Seq,
		c.State,
		c.Signature,
		args,
		value,
		c.Duration.Nanoseconds(),
		diags,
		c.Error,
	)
	if err != nil {
		return 0, fmt.Errorf("write compilation: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("write compilation: last insert id: %w", err)
	}
	return id, nil
}
