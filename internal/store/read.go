package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/syntheticore/skip/internal/queryir"
	"github.com/syntheticore/skip/internal/querysql"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// QueryCallSites returns the call sites matching pred ordered by seq ASC,
// token ASC. A nil pred matches every call site.
// Returns an empty slice (not nil) if there are none.
func (s *Store) QueryCallSites(ctx context.Context, pred queryir.Predicate) ([]CallSite, error) {
	query, params, err := querysql.NewSQLCompiler().Compile(queryir.Select{From: queryir.CallSites, Filter: pred})
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("query call sites: %w", err)
	}
	return collectCallSites(rows)
}

// QueryCompilations returns the compilations matching pred ordered by
// seq ASC, id ASC. A nil pred matches every compilation.
func (s *Store) QueryCompilations(ctx context.Context, pred queryir.Predicate) ([]Compilation, error) {
	query, params, err := querysql.NewSQLCompiler().Compile(queryir.Select{From: queryir.Compilations, Filter: pred})
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("query compilations: %w", err)
	}
	return collectCompilations(rows)
}

// ReadCallSites returns all call sites ordered by seq ASC, token ASC.
func (s *Store) ReadCallSites(ctx context.Context) ([]CallSite, error) {
	return s.QueryCallSites(ctx, nil)
}

// ReadCallSite returns the call site with the given token.
func (s *Store) ReadCallSite(ctx context.Context, token string) (CallSite, error) {
	var cs CallSite
	err := s.db.QueryRowContext(ctx, `
		SELECT `+querysql.Columns(queryir.CallSites)+`
		FROM call_sites
		WHERE token = ?
	`, token).Scan(&cs.Token, &cs.Function, &cs.FuncHash, &cs.Arity, &cs.Seq)
	if errors.Is(err, sql.ErrNoRows) {
		return CallSite{}, fmt.Errorf("call site %s: %w", token, ErrNotFound)
	}
	if err != nil {
		return CallSite{}, fmt.Errorf("read call site: %w", err)
	}
	return cs, nil
}

// ReadCompilations returns the compilations of one call site ordered by
// seq ASC, id ASC.
func (s *Store) ReadCompilations(ctx context.Context, token string) ([]Compilation, error) {
	return s.QueryCompilations(ctx, queryir.Equals{Field: "token", Value: token})
}

// ReadAllCompilations returns every compilation ordered by seq ASC, id ASC.
func (s *Store) ReadAllCompilations(ctx context.Context) ([]Compilation, error) {
	return s.QueryCompilations(ctx, nil)
}

func collectCallSites(rows *sql.Rows) ([]CallSite, error) {
	defer rows.Close()

	sites := []CallSite{}
	for rows.Next() {
		var cs CallSite
		if err := rows.Scan(&cs.Token, &cs.Function, &cs.FuncHash, &cs.Arity, &cs.Seq); err != nil {
			return nil, fmt.Errorf("scan call site: %w", err)
		}
		sites = append(sites, cs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate call sites: %w", err)
	}
	return sites, nil
}

func collectCompilations(rows *sql.Rows) ([]Compilation, error) {
	defer rows.Close()

	comps := []Compilation{}
	for rows.Next() {
		c, err := scanCompilation(rows)
		if err != nil {
			return nil, err
		}
		comps = append(comps, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate compilations: %w", err)
	}
	return comps, nil
}

func scanCompilation(rows *sql.Rows) (Compilation, error) {
	var (
		c                  Compilation
		args, value, diags string
		durationNS         int64
	)
	if err := rows.Scan(&c.ID, &c.Token, &c.Seq, &c.State, &c.Signature, &args, &value, &durationNS, &diags, &c.Error); err != nil {
		return Compilation{}, fmt.Errorf("scan compilation: %w", err)
	}

	var err error
	if c.WitnessArgs, err = unmarshalValues(args); err != nil {
		return Compilation{}, err
	}
	if c.WitnessValue, err = unmarshalValue(value); err != nil {
		return Compilation{}, err
	}
	if c.Diagnostics, err = unmarshalDiagnostics(diags); err != nil {
		return Compilation{}, err
	}
	c.Duration = time.Duration(durationNS)
	return c, nil
}
