package expense

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/zombor/gig-tracker/internal/extraction"
	"github.com/zombor/gig-tracker/internal/scanning"
)

// ErrNoExpenseDetected is returned when a receipt has no recognizable total
var ErrNoExpenseDetected = errors.New("no expense detected")

// ErrInvalidExpense is returned when an expense fails validation
var ErrInvalidExpense = errors.New("invalid expense")

var (
	reFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	reSpaces        = regexp.MustCompile(`\s+`)
)

// IDGenerator generates unique IDs for expenses
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type defaultIDGenerator struct{}

func (g *defaultIDGenerator) Generate() string {
	return uuid.NewString()
}

type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Service handles expense operations
type Service struct {
	db          DB
	scanner     scanning.Scanner
	storage     Storage
	engine      *extraction.Engine
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewService creates a new Service with default ID generator and time source
func NewService(db DB, scanner scanning.Scanner, storage Storage, engine *extraction.Engine) *Service {
	return NewServiceWithDeps(db, scanner, storage, engine, &defaultIDGenerator{}, &defaultTimeSource{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, scanner scanning.Scanner, storage Storage, engine *extraction.Engine, idGen IDGenerator, timeSrc TimeSource) *Service {
	if engine == nil {
		engine = extraction.NewEngine(extraction.DefaultConfig())
	}
	return &Service{
		db:          db,
		scanner:     scanner,
		storage:     storage,
		engine:      engine,
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

// sanitizeFilename cleans up a filename by removing special characters and truncating length
func sanitizeFilename(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))

	base = reFilenameChars.ReplaceAllString(base, "")
	base = strings.TrimSpace(reSpaces.ReplaceAllString(base, " "))

	// Phone cameras generate long names
	if len(base) > 50 {
		base = base[:50]
	}
	if base == "" {
		base = "receipt"
	}
	if reFilenameChars.MatchString(strings.TrimPrefix(ext, ".")) {
		ext = ""
	}

	return base + ext
}

// ScanReceipt stores a receipt photo, reads its text and returns a suggested
// expense. The suggestion is not saved; the caller confirms it with CreateExpense.
func (s *Service) ScanReceipt(filename string, data []byte, contentType string) (*Expense, error) {
	id := s.idGenerator.Generate()
	now := s.timeSource.Now()

	savedPath, err := s.storage.Save(fmt.Sprintf("%s_%s", id, sanitizeFilename(filename)), data)
	if err != nil {
		return nil, fmt.Errorf("saving file: %w", err)
	}

	lines, err := s.scanner.ScanLines(data, contentType)
	if err != nil {
		slog.Error("Failed to scan receipt",
			"filename", filename,
			"content_type", contentType,
			"file_size", len(data),
			"error", err,
		)
		s.discardFile(savedPath)
		return nil, fmt.Errorf("scanning receipt: %w", err)
	}

	result := s.engine.Extract(lines)
	slog.Info("Extracted receipt",
		"filename", filename,
		"lines", len(lines),
		"candidates", len(result.Candidates),
		"outcome", result.Outcome,
	)
	if !result.Detected() {
		s.discardFile(savedPath)
		return nil, ErrNoExpenseDetected
	}

	expense := suggestionFrom(result)
	expense.ID = id
	expense.Title = titleFrom(lines)
	expense.Date = now
	expense.Filename = savedPath
	expense.ContentType = contentType
	expense.CreatedAt = now
	expense.UpdatedAt = now
	return expense, nil
}

// SuggestFromLines runs extraction over already recognized text lines
func (s *Service) SuggestFromLines(lines []string) extraction.Result {
	return s.engine.Extract(lines)
}

// suggestionFrom turns an extraction result into an unsaved fuel expense
func suggestionFrom(result extraction.Result) *Expense {
	source := SourceFallback
	if result.Outcome == extraction.OutcomeMatched {
		source = SourceMatched
	}
	return &Expense{
		Category:  CategoryFuel,
		Amount:    result.Expense.Amount,
		UnitPrice: result.Expense.UnitPrice,
		Quantity:  result.Expense.Quantity,
		Source:    source,
	}
}

// titleFrom uses the first line without numbers, usually the station name
func titleFrom(lines []string) string {
	for _, line := range lines {
		if !strings.ContainsAny(line, "0123456789") && len(strings.TrimSpace(line)) > 2 {
			return strings.TrimSpace(line)
		}
	}
	return "Fuel"
}

func (s *Service) discardFile(path string) {
	if err := s.storage.Delete(path); err != nil {
		slog.Warn("Failed to delete file", "filename", path, "error", err)
	}
}

func validate(expense *Expense) error {
	if expense.Amount.IsNegative() || expense.Amount.IsZero() {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidExpense)
	}
	if expense.UnitPrice.Valid && !expense.UnitPrice.Decimal.IsPositive() {
		return fmt.Errorf("%w: unit price must be positive", ErrInvalidExpense)
	}
	if expense.Quantity.Valid && !expense.Quantity.Decimal.IsPositive() {
		return fmt.Errorf("%w: quantity must be positive", ErrInvalidExpense)
	}
	if expense.Category == "" {
		expense.Category = CategoryOther
	}
	if !expense.Category.Valid() {
		return fmt.Errorf("%w: unknown category %q", ErrInvalidExpense, expense.Category)
	}
	if expense.Source == "" {
		expense.Source = SourceManual
	}
	return nil
}

// CreateExpense saves a confirmed (possibly edited) expense
func (s *Service) CreateExpense(expense *Expense) error {
	if err := validate(expense); err != nil {
		return err
	}

	now := s.timeSource.Now()
	if expense.ID == "" {
		expense.ID = s.idGenerator.Generate()
	}
	if strings.Contains(expense.ID, "_") {
		return fmt.Errorf("%w: id %q must not contain '_'", ErrInvalidExpense, expense.ID)
	}
	// Scanned photos are stored as <id>_<name>; an expense may only claim its own
	if expense.Filename != "" && !strings.HasPrefix(expense.Filename, expense.ID+"_") {
		return fmt.Errorf("%w: receipt file %q belongs to another expense", ErrInvalidExpense, expense.Filename)
	}
	if expense.Date.IsZero() {
		expense.Date = now
	}
	expense.CreatedAt = now
	expense.UpdatedAt = now

	if err := s.db.SaveExpense(expense); err != nil {
		return fmt.Errorf("saving expense: %w", err)
	}
	return nil
}

// UpdateExpense replaces the editable fields of an existing expense
func (s *Service) UpdateExpense(id string, changes *Expense) (*Expense, error) {
	existing, err := s.db.GetExpense(id)
	if err != nil {
		return nil, fmt.Errorf("getting expense: %w", err)
	}

	updated := *existing
	updated.Title = changes.Title
	updated.Category = changes.Category
	updated.Amount = changes.Amount
	updated.UnitPrice = changes.UnitPrice
	updated.Quantity = changes.Quantity
	if !changes.Date.IsZero() {
		updated.Date = changes.Date
	}
	if !updated.Amount.Equal(existing.Amount) || !nullEqual(updated.UnitPrice, existing.UnitPrice) || !nullEqual(updated.Quantity, existing.Quantity) {
		updated.Source = SourceManual
	}
	if err := validate(&updated); err != nil {
		return nil, err
	}
	updated.UpdatedAt = s.timeSource.Now()

	if err := s.db.SaveExpense(&updated); err != nil {
		return nil, fmt.Errorf("saving expense: %w", err)
	}
	return &updated, nil
}

func nullEqual(a, b decimal.NullDecimal) bool {
	if a.Valid != b.Valid {
		return false
	}
	return !a.Valid || a.Decimal.Equal(b.Decimal)
}

// PruneUnconfirmed deletes receipt photos older than maxAge whose scan was
// never confirmed with CreateExpense. It returns the number of files removed.
func (s *Service) PruneUnconfirmed(maxAge time.Duration) (int, error) {
	files, err := s.storage.List()
	if err != nil {
		return 0, fmt.Errorf("listing files: %w", err)
	}

	cutoff := s.timeSource.Now().Add(-maxAge)
	removed := 0
	for _, f := range files {
		if !f.ModTime.Before(cutoff) {
			continue
		}
		id, _, ok := strings.Cut(f.Path, "_")
		if !ok {
			continue
		}
		_, err := s.db.GetExpense(id)
		if err == nil {
			continue
		}
		if !errors.Is(err, ErrNotFound) {
			return removed, fmt.Errorf("getting expense: %w", err)
		}
		if err := s.storage.Delete(f.Path); err != nil {
			slog.Warn("Failed to delete unconfirmed receipt", "filename", f.Path, "error", err)
			continue
		}
		removed++
	}

	if removed > 0 {
		slog.Info("Pruned unconfirmed receipts", "count", removed)
	}
	return removed, nil
}

// GetExpense retrieves an expense by ID
func (s *Service) GetExpense(id string) (*Expense, error) {
	expense, err := s.db.GetExpense(id)
	if err != nil {
		return nil, fmt.Errorf("getting expense: %w", err)
	}
	return expense, nil
}

// ListExpenses returns all expenses, most recent first
func (s *Service) ListExpenses() ([]*Expense, error) {
	expenses, err := s.db.ListExpenses()
	if err != nil {
		return nil, fmt.Errorf("listing expenses: %w", err)
	}
	slices.SortStableFunc(expenses, func(a, b *Expense) int {
		return b.Date.Compare(a.Date)
	})
	return expenses, nil
}

// DeleteExpense removes an expense and its receipt photo
func (s *Service) DeleteExpense(id string) error {
	expense, err := s.db.GetExpense(id)
	if err != nil {
		return fmt.Errorf("getting expense for deletion: %w", err)
	}

	if expense.Filename != "" {
		// Log error but continue with database deletion
		s.discardFile(expense.Filename)
	}

	if err := s.db.DeleteExpense(id); err != nil {
		return fmt.Errorf("deleting expense from database: %w", err)
	}
	return nil
}

// GetExpenseFile retrieves the receipt photo for an expense
func (s *Service) GetExpenseFile(id string) ([]byte, string, error) {
	expense, err := s.db.GetExpense(id)
	if err != nil {
		return nil, "", fmt.Errorf("getting expense: %w", err)
	}
	if expense.Filename == "" {
		return nil, "", fmt.Errorf("%w: no receipt file for expense %s", ErrNotFound, id)
	}

	data, err := s.storage.Get(expense.Filename)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, "", fmt.Errorf("%w: receipt file %s is missing", ErrNotFound, expense.Filename)
	}
	if err != nil {
		return nil, "", fmt.Errorf("getting expense file: %w", err)
	}
	return data, expense.ContentType, nil
}
