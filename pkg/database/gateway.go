package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
)

// QueryError reports a failed statement. It wraps the driver error so callers
// can still inspect driver specific codes with errors.As.
type QueryError struct {
	Query string
	Err   error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query failed: %v", e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// Gateway executes parameterized statements, one pooled connection per call.
type Gateway struct {
	db *sqlx.DB
}

// NewGateway wraps an existing *sqlx.DB.
func NewGateway(db *sqlx.DB) *Gateway { return &Gateway{db: db} }

// DB exposes the underlying handle for schema bootstrap and shutdown pings.
func (g *Gateway) DB() *sqlx.DB { return g.db }

// Execute runs query with `?` placeholders bound positionally to values.
// A `?` inside a string literal, quoted identifier, comment or dollar-quoted
// body is text, not a placeholder. The PostgreSQL jsonb operators `?`, `?|`
// and `?&` cannot be written here; use jsonb_exists and friends instead.
// The returned Statement holds the connection until Close is called.
func (g *Gateway) Execute(ctx context.Context, query string, values ...any) (*Statement, error) {
	rebound, n := bindPlaceholders(query, sqlx.BindType(g.db.DriverName()))
	if n != len(values) {
		return nil, &QueryError{Query: query, Err: fmt.Errorf("placeholder count %d does not match %d values", n, len(values))}
	}
	args := make([]any, len(values))
	for i, v := range values {
		bound, err := bindValue(v)
		if err != nil {
			return nil, &QueryError{Query: query, Err: fmt.Errorf("value %d: %w", i+1, err)}
		}
		args[i] = bound
	}

	conn, err := g.db.Connx(ctx)
	if err != nil {
		return nil, &QueryError{Query: query, Err: fmt.Errorf("acquire connection: %w", err)}
	}
	rows, err := conn.QueryxContext(ctx, rebound, args...)
	if err != nil {
		conn.Close()
		return nil, &QueryError{Query: query, Err: err}
	}
	return &Statement{query: query, conn: conn, rows: rows}, nil
}

// bindPlaceholders rewrites every `?` outside quoted text and comments into
// the driver's bind syntax and reports how many it found.
func bindPlaceholders(query string, bindType int) (string, int) {
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); {
		c := query[i]
		switch {
		case c == '?':
			n++
			b.WriteString(placeholder(bindType, n))
			i++
			continue
		case c == '\'' || c == '"':
			escapes := c == '\'' && i > 0 && (query[i-1] == 'E' || query[i-1] == 'e') && (i == 1 || !isIdentByte(query[i-2]))
			end := skipQuoted(query, i, c, escapes)
			b.WriteString(query[i:end])
			i = end
			continue
		case c == '-' && strings.HasPrefix(query[i:], "--"):
			end := strings.IndexByte(query[i:], '\n')
			if end < 0 {
				end = len(query) - i
			}
			b.WriteString(query[i : i+end])
			i += end
			continue
		case c == '/' && strings.HasPrefix(query[i:], "/*"):
			end := skipBlockComment(query, i)
			b.WriteString(query[i:end])
			i = end
			continue
		case c == '$' && (i == 0 || !isIdentByte(query[i-1])):
			if tag, ok := dollarTag(query[i:]); ok {
				end := strings.Index(query[i+len(tag):], tag)
				if end < 0 {
					end = len(query)
				} else {
					end = i + len(tag) + end + len(tag)
				}
				b.WriteString(query[i:end])
				i = end
				continue
			}
		}
		b.WriteByte(c)
		i++
	}
	return b.String(), n
}

func placeholder(bindType, n int) string {
	switch bindType {
	case sqlx.DOLLAR:
		return "$" + strconv.Itoa(n)
	case sqlx.NAMED:
		return ":arg" + strconv.Itoa(n)
	case sqlx.AT:
		return "@p" + strconv.Itoa(n)
	}
	return "?"
}

// skipQuoted returns the index just past the literal opened by quote at
// start. A doubled quote stays inside; so does a backslash escape in E''
// strings. An unterminated literal runs to the end of the query.
func skipQuoted(query string, start int, quote byte, escapes bool) int {
	for i := start + 1; i < len(query); i++ {
		switch query[i] {
		case '\\':
			if escapes {
				i++
			}
		case quote:
			if i+1 < len(query) && query[i+1] == quote {
				i++
				continue
			}
			return i + 1
		}
	}
	return len(query)
}

// skipBlockComment returns the index just past the comment at start.
// PostgreSQL block comments nest.
func skipBlockComment(query string, start int) int {
	depth := 0
	for i := start; i < len(query)-1; i++ {
		switch {
		case query[i] == '/' && query[i+1] == '*':
			depth++
			i++
		case query[i] == '*' && query[i+1] == '/':
			depth--
			i++
			if depth == 0 {
				return i + 1
			}
		}
	}
	return len(query)
}

// dollarTag returns the opening `$tag$` at the start of s. Tags follow
// identifier rules, so `$1` is not one.
func dollarTag(s string) (string, bool) {
	for i := 1; i < len(s); i++ {
		c := s[i]
		if c == '$' {
			return s[:i+1], true
		}
		if !isIdentByte(c) || (i == 1 && c >= '0' && c <= '9') {
			return "", false
		}
	}
	return "", false
}

func isIdentByte(c byte) bool {
	return c == '_' || c >= 0x80 ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// bindValue narrows v to one of the three supported bind types:
// integer, floating-point or text.
func bindValue(v any) (any, error) {
	switch x := v.(type) {
	case int:
		return int64(x), nil
	case int8:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case int64:
		return x, nil
	case uint8:
		return int64(x), nil
	case uint16:
		return int64(x), nil
	case uint32:
		return int64(x), nil
	case float32:
		return float64(x), nil
	case float64:
		return x, nil
	case string:
		return x, nil
	default:
		return nil, fmt.Errorf("unsupported bind type %T", v)
	}
}

// Statement is the handle returned by Execute.
type Statement struct {
	query string
	conn  *sqlx.Conn
	rows  *sqlx.Rows
}

// InsertID reads the first column of the first row, typically a
// `RETURNING id` clause.
func (s *Statement) InsertID() (int64, error) {
	if !s.rows.Next() {
		if err := s.rows.Err(); err != nil {
			return 0, s.wrap(err)
		}
		return 0, s.wrap(errors.New("no id returned"))
	}
	var id int64
	if err := s.rows.Scan(&id); err != nil {
		return 0, s.wrap(err)
	}
	return id, nil
}

// Get scans the first row into dest, or returns sql.ErrNoRows.
func (s *Statement) Get(dest any) error {
	if !s.rows.Next() {
		if err := s.rows.Err(); err != nil {
			return s.wrap(err)
		}
		return sql.ErrNoRows
	}
	if err := s.rows.StructScan(dest); err != nil {
		return s.wrap(err)
	}
	return nil
}

// Select scans every remaining row into dest, which must point to a slice.
func (s *Statement) Select(dest any) error {
	if err := sqlx.StructScan(s.rows, dest); err != nil {
		return s.wrap(err)
	}
	return nil
}

// Close releases the rows and the connection. Errors raised while the
// statement was still running surface here for statements without results.
func (s *Statement) Close() error {
	rowsErr := s.rows.Err()
	closeErr := s.rows.Close()
	s.conn.Close()
	if rowsErr != nil {
		return s.wrap(rowsErr)
	}
	if closeErr != nil {
		return s.wrap(closeErr)
	}
	return nil
}

func (s *Statement) wrap(err error) error {
	var qe *QueryError
	if errors.As(err, &qe) {
		return err
	}
	return &QueryError{Query: s.query, Err: err}
}
