// Package memory provides an in-process expense service for offline use and tests.
package memory

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"

	"expensectl/internal/core"
	"expensectl/internal/ports"
)

var _ ports.ExpenseService = (*Store)(nil)

// Store keeps expenses in insertion order and answers like the remote API:
// rejected calls return a *core.StatusError with 400 or 404.
type Store struct {
	mu     sync.Mutex
	nextID int64
	items  []core.Expense
}

func New(seed []core.Expense) *Store {
	s := &Store{nextID: 1}
	for _, e := range seed {
		e.LocalID = 0
		if e.ID >= s.nextID {
			s.nextID = e.ID + 1
		}
		if e.ID == 0 {
			e.ID = s.nextID
			s.nextID++
		}
		s.items = append(s.items, e)
	}
	return s
}

// NewFromFile seeds a store from lines of the form "YYYY-MM-DD;description;amount".
// Blank lines and lines starting with '#' are skipped. A missing file yields
// an empty store; malformed lines are reported.
func NewFromFile(path string) (*Store, error) {
	seed, err := readSeed(path)
	if err != nil {
		return nil, err
	}
	return New(seed), nil
}

func (s *Store) ListExpenses(_ context.Context) ([]core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Expense(nil), s.items...), nil
}

func (s *Store) CreateExpense(_ context.Context, e core.NewExpense) (core.Expense, error) {
	if err := e.Validate(); err != nil {
		return core.Expense{}, badRequest(core.OpCreate, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	created := core.Expense{
		ID:          s.nextID,
		Description: e.Description,
		Amount:      e.Amount,
		Date:        e.Date,
	}
	s.nextID++
	s.items = append(s.items, created)
	return created, nil
}

func (s *Store) UpdateExpense(_ context.Context, id int64, p core.ExpensePatch) error {
	if err := p.Validate(); err != nil {
		return badRequest(core.OpUpdate, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.index(id)
	if i < 0 {
		return notFound(core.OpUpdate)
	}
	s.items[i] = p.Apply(s.items[i])
	return nil
}

func (s *Store) DeleteExpense(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.index(id)
	if i < 0 {
		return notFound(core.OpDelete)
	}
	s.items = append(s.items[:i], s.items[i+1:]...)
	return nil
}

func (s *Store) index(id int64) int {
	for i, e := range s.items {
		if e.ID == id {
			return i
		}
	}
	return -1
}

func badRequest(op core.Operation, err error) error {
	return &core.StatusError{Op: op, Code: http.StatusBadRequest, Message: err.Error()}
}

func notFound(op core.Operation) error {
	return &core.StatusError{Op: op, Code: http.StatusNotFound, Message: "Expense not found"}
}

func readSeed(path string) ([]core.Expense, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()

	var out []core.Expense
	sc := bufio.NewScanner(f)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		e, err := parseSeedLine(line)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, lineNo, err)
		}
		out = append(out, e)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return out, nil
}

func parseSeedLine(line string) (core.Expense, error) {
	parts := strings.Split(line, ";")
	if len(parts) != 3 {
		return core.Expense{}, fmt.Errorf("expected date;description;amount, got %q", line)
	}
	date, err := core.ParseDate(strings.TrimSpace(parts[0]))
	if err != nil {
		return core.Expense{}, err
	}
	amount, err := core.ParseAmount(parts[2])
	if err != nil {
		return core.Expense{}, err
	}
	ne := core.NewExpense{Description: strings.TrimSpace(parts[1]), Amount: amount, Date: date}
	if err := ne.Validate(); err != nil {
		return core.Expense{}, err
	}
	return core.Expense{Description: ne.Description, Amount: ne.Amount, Date: ne.Date}, nil
}
