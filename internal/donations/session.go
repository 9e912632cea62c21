package donations

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// State is a step of the interactive session loop.
type State int

const (
	StatePrompting State = iota
	StateDisplaying
	StateMenuWait
	StateAddingRecord
	StateDeletingRecord
	StateExiting
)

func (s State) String() string {
	switch s {
	case StatePrompting:
		return "prompting"
	case StateDisplaying:
		return "displaying"
	case StateMenuWait:
		return "menu_wait"
	case StateAddingRecord:
		return "adding_record"
	case StateDeletingRecord:
		return "deleting_record"
	case StateExiting:
		return "exiting"
	}
	return "unknown"
}

const menuText = `
Selecione uma opção:
1 - Adicionar nova doação
2 - Deletar doação por código
3 - Sair
`

// Session drives the interactive menu over a single records file.
type Session struct {
	ID   string
	Path string

	store   *Store
	in      *bufio.Reader
	out     io.Writer
	errOut  io.Writer
	logger  *slog.Logger
	audit   *AuditLog
	targets []*syncTarget
}

// syncTarget holds changes a target failed to apply; they are merged into
// the next change set sent to it.
type syncTarget struct {
	target  RecordSyncTarget
	pending RecordChangeSet
}

// NewSession constructs a session reading user input from in. Normal output
// goes to out and operation failures to errOut.
func NewSession(store *Store, in io.Reader, out, errOut io.Writer, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	id := uuid.NewString()
	return &Session{
		ID:     id,
		store:  store,
		in:     bufio.NewReader(in),
		out:    out,
		errOut: errOut,
		logger: logger.With("session", id),
	}
}

// SetAuditLog enables auditing of completed operations.
func (s *Session) SetAuditLog(audit *AuditLog) {
	s.audit = audit
}

// RegisterSyncTarget adds a target notified after each change to the file.
// Changes a target rejects are sent again with the next change.
func (s *Session) RegisterSyncTarget(target RecordSyncTarget) {
	if target == nil {
		return
	}
	s.targets = append(s.targets, &syncTarget{target: target})
}

// Run executes the menu loop until the user exits. It returns an error only
// when the file cannot be displayed or numeric input cannot be parsed;
// append and delete failures are reported on errOut and the loop continues.
func (s *Session) Run(ctx context.Context) error {
	state := StatePrompting
	if s.Path != "" {
		state = StateDisplaying
	}

	for state != StateExiting {
		if err := ctx.Err(); err != nil {
			return err
		}
		next, err := s.step(ctx, state)
		if err != nil {
			s.loggerOrDefault().Debug("Session terminated", "state", state.String(), "error", err)
			return err
		}
		state = next
	}
	return nil
}

func (s *Session) step(ctx context.Context, state State) (State, error) {
	switch state {
	case StatePrompting:
		fmt.Fprintln(s.out, "Informe o caminho e nome do arquivo CSV:")
		path, err := s.readLine()
		if err != nil {
			return state, fmt.Errorf("read file path: %w", err)
		}
		s.Path = strings.TrimSpace(path)
		return StateDisplaying, nil

	case StateDisplaying:
		if err := s.store.printFile(s.Path, s.out); err != nil {
			return state, err
		}
		return StateMenuWait, nil

	case StateMenuWait:
		fmt.Fprint(s.out, menuText)
		choice, err := s.readLine()
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(s.out, "Encerrando o programa.")
			return StateExiting, nil
		}
		if err != nil {
			return state, fmt.Errorf("read menu choice: %w", err)
		}
		option, convErr := strconv.Atoi(strings.TrimSpace(choice))
		if convErr != nil {
			option = 0
		}
		switch option {
		case 1:
			return StateAddingRecord, nil
		case 2:
			return StateDeletingRecord, nil
		case 3:
			fmt.Fprintln(s.out, "Encerrando o programa.")
			return StateExiting, nil
		}
		fmt.Fprintln(s.out, "Opção inválida. Tente novamente.")
		return StateDisplaying, nil

	case StateAddingRecord:
		return StateDisplaying, s.addRecord(ctx)

	case StateDeletingRecord:
		return StateDisplaying, s.deleteRecord(ctx)
	}
	return state, fmt.Errorf("unexpected session state %s", state)
}

func (s *Session) addRecord(ctx context.Context) error {
	fmt.Fprintln(s.out, "Informe os detalhes da nova doação:")

	var rec Record
	var err error
	if rec.ID, err = s.promptInt("Código: "); err != nil {
		return err
	}
	if rec.Name, err = s.prompt("Nome: "); err != nil {
		return err
	}
	if rec.TaxID, err = s.prompt("CPF: "); err != nil {
		return err
	}
	if rec.BirthDate, err = s.prompt("Data de Nascimento (YYYY-MM-DD): "); err != nil {
		return err
	}
	if rec.BloodType, err = s.prompt("Tipo Sanguíneo: "); err != nil {
		return err
	}
	if rec.VolumeML, err = s.promptInt("MLS Doados: "); err != nil {
		return err
	}

	logger := s.loggerOrDefault()
	if err := s.store.Append(s.Path, rec); err != nil {
		logger.Debug("Append failed", "path", s.Path, "id", rec.ID, "error", err)
		fmt.Fprintf(s.errOut, "Erro ao adicionar doação: %v\n", err)
		return nil
	}
	fmt.Fprintln(s.out, "Nova doação adicionada com sucesso!")
	logger.Info("Record appended", "path", s.Path, "id", rec.ID)

	s.recordEvent(ctx, AuditEvent{Operation: OperationAppend, RecordID: rec.ID})
	s.dispatch(ctx, RecordChangeSet{Upserts: []Record{rec}})
	return nil
}

func (s *Session) deleteRecord(ctx context.Context) error {
	fmt.Fprintln(s.out, "Informe o código da doação a ser removida:")
	line, err := s.readLine()
	if err != nil {
		return fmt.Errorf("read code: %w", err)
	}
	id, err := parseInt(line)
	if err != nil {
		return err
	}

	logger := s.loggerOrDefault()
	removed, err := s.store.Delete(s.Path, id)
	if err != nil {
		logger.Debug("Delete failed", "path", s.Path, "id", id, "error", err)
		fmt.Fprintf(s.errOut, "Erro ao remover doação: %v\n", err)
		return nil
	}
	fmt.Fprintln(s.out, "Doação removida com sucesso!")
	logger.Info("Records deleted", "path", s.Path, "id", id, "removed", removed)

	s.recordEvent(ctx, AuditEvent{Operation: OperationDelete, RecordID: id, Removed: removed})
	if removed > 0 {
		s.dispatch(ctx, RecordChangeSet{Deletions: []int{id}})
	}
	return nil
}

func (s *Session) recordEvent(ctx context.Context, ev AuditEvent) {
	if s.audit == nil {
		return
	}
	ev.SessionID = s.ID
	ev.FilePath = s.Path
	if err := s.audit.RecordEvent(ctx, ev); err != nil {
		s.loggerOrDefault().Warn("Failed to record audit event", "operation", ev.Operation, "error", err)
	}
}

func (s *Session) dispatch(ctx context.Context, changes RecordChangeSet) {
	if changes.IsEmpty() {
		return
	}
	for _, t := range s.targets {
		batch := t.pending
		batch.Merge(changes)
		if err := t.target.ApplyRecordChanges(ctx, batch); err != nil {
			s.loggerOrDefault().Warn("Sync target failed", "upserts", len(batch.Upserts), "deletions", len(batch.Deletions), "error", err)
			t.pending = batch
			continue
		}
		t.pending = RecordChangeSet{}
	}
}

func (s *Session) prompt(label string) (string, error) {
	fmt.Fprint(s.out, label)
	line, err := s.readLine()
	if err != nil {
		return "", fmt.Errorf("read %q: %w", strings.TrimSpace(label), err)
	}
	return line, nil
}

func (s *Session) promptInt(label string) (int, error) {
	line, err := s.prompt(label)
	if err != nil {
		return 0, err
	}
	return parseInt(line)
}

func parseInt(line string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil {
		return 0, fmt.Errorf("%w: expected an integer, got %q", ErrFormat, line)
	}
	return n, nil
}

// readLine returns the next input line without its terminator. A final
// line without a terminator is returned as is; io.EOF is returned only when
// no input is left.
func (s *Session) readLine() (string, error) {
	line, err := s.in.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return strings.TrimRight(line, "\r\n"), nil
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (s *Session) loggerOrDefault() *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return slog.Default()
}
