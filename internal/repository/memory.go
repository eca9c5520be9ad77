package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kobofin/loan-engine/internal/domain"
	"github.com/kobofin/loan-engine/pkg/daycount"
	customError "github.com/kobofin/loan-engine/pkg/errors"
)

// MemoryStore is a map-backed Store for tests and local runs. Values are
// copied on the way in and out so callers never share state with the store.
// Atomic is a no-op scope: the single mutex already serializes writers.
type MemoryStore struct {
	mu              sync.Mutex
	loans           map[uuid.UUID]domain.Loan
	installments    map[uuid.UUID]domain.Installment
	transactions    map[uuid.UUID]domain.Transaction
	classifications map[uuid.UUID]domain.ClassificationRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		loans:           make(map[uuid.UUID]domain.Loan),
		installments:    make(map[uuid.UUID]domain.Installment),
		transactions:    make(map[uuid.UUID]domain.Transaction),
		classifications: make(map[uuid.UUID]domain.ClassificationRecord),
	}
}

func (s *MemoryStore) Loans() LoanRepository                     { return (*memoryLoans)(s) }
func (s *MemoryStore) Installments() InstallmentRepository       { return (*memoryInstallments)(s) }
func (s *MemoryStore) Transactions() TransactionRepository       { return (*memoryTransactions)(s) }
func (s *MemoryStore) Classifications() ClassificationRepository { return (*memoryClassifications)(s) }

func (s *MemoryStore) Atomic(_ context.Context, fn func(Store) error) error {
	return fn(s)
}

type memoryLoans MemoryStore

func (m *memoryLoans) Create(_ context.Context, loan *domain.Loan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	loan.CreatedAt = now
	loan.UpdatedAt = now
	m.loans[loan.ID] = *loan
	return nil
}

func (m *memoryLoans) GetByID(_ context.Context, orgID, loanID uuid.UUID) (*domain.Loan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	loan, ok := m.loans[loanID]
	if !ok || loan.OrgID != orgID {
		return nil, customError.WrapLoanNotFound(loanID.String())
	}
	copied := loan
	return &copied, nil
}

func (m *memoryLoans) UpdateStatus(_ context.Context, orgID, loanID uuid.UUID, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	loan, ok := m.loans[loanID]
	if !ok || loan.OrgID != orgID {
		return customError.WrapLoanNotFound(loanID.String())
	}
	loan.Status = status
	loan.UpdatedAt = time.Now()
	m.loans[loanID] = loan
	return nil
}

func (m *memoryLoans) ListActive(_ context.Context, orgID uuid.UUID) ([]*domain.Loan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var loans []*domain.Loan
	for _, loan := range m.loans {
		if loan.OrgID == orgID && loan.Status == domain.LoanStatusActive {
			copied := loan
			loans = append(loans, &copied)
		}
	}
	sort.Slice(loans, func(i, j int) bool { return loans[i].CreatedAt.Before(loans[j].CreatedAt) })
	return loans, nil
}

func (m *memoryLoans) ListOrgs(_ context.Context) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[uuid.UUID]bool)
	var orgs []uuid.UUID
	for _, loan := range m.loans {
		if loan.Status == domain.LoanStatusActive && !seen[loan.OrgID] {
			seen[loan.OrgID] = true
			orgs = append(orgs, loan.OrgID)
		}
	}
	sort.Slice(orgs, func(i, j int) bool { return orgs[i].String() < orgs[j].String() })
	return orgs, nil
}

type memoryInstallments MemoryStore

func (m *memoryInstallments) CreateBatch(_ context.Context, installments []*domain.Installment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	for _, inst := range installments {
		inst.CreatedAt = now
		m.installments[inst.ID] = *inst
	}
	return nil
}

func (m *memoryInstallments) GetByLoanID(_ context.Context, orgID, loanID uuid.UUID) ([]*domain.Installment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var installments []*domain.Installment
	for _, inst := range m.installments {
		if inst.OrgID == orgID && inst.LoanID == loanID {
			copied := inst
			installments = append(installments, &copied)
		}
	}
	sort.Slice(installments, func(i, j int) bool {
		return installments[i].Sequence < installments[j].Sequence
	})
	return installments, nil
}

func (m *memoryInstallments) SaveProgress(_ context.Context, installment *domain.Installment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.installments[installment.ID]
	if !ok {
		return customError.WrapDatabaseError(nil)
	}
	stored.PrincipalPaid = installment.PrincipalPaid
	stored.InterestPaid = installment.InterestPaid
	stored.FeePaid = installment.FeePaid
	stored.Status = installment.Status
	m.installments[installment.ID] = stored
	return nil
}

func (m *memoryInstallments) MarkSuperseded(_ context.Context, orgID, loanID uuid.UUID, ids []uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		inst, ok := m.installments[id]
		if !ok || inst.OrgID != orgID || inst.LoanID != loanID {
			continue
		}
		inst.Status = domain.InstallmentStatusSuperseded
		m.installments[id] = inst
	}
	return nil
}

type memoryTransactions MemoryStore

func (m *memoryTransactions) Create(_ context.Context, transaction *domain.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	transaction.CreatedAt = time.Now()
	copied := *transaction
	copied.Allocations = make([]*domain.Allocation, len(transaction.Allocations))
	for i, line := range transaction.Allocations {
		line.TransactionID = transaction.ID
		lineCopy := *line
		copied.Allocations[i] = &lineCopy
	}
	m.transactions[transaction.ID] = copied
	return nil
}

func (m *memoryTransactions) GetByID(_ context.Context, orgID, transactionID uuid.UUID) (*domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	transaction, ok := m.transactions[transactionID]
	if !ok || transaction.OrgID != orgID {
		return nil, customError.WrapTransactionNotFound(transactionID.String())
	}
	return copyTransaction(transaction), nil
}

func (m *memoryTransactions) GetByLoanID(_ context.Context, orgID, loanID uuid.UUID) ([]*domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var transactions []*domain.Transaction
	for _, transaction := range m.transactions {
		if transaction.OrgID == orgID && transaction.LoanID == loanID {
			transactions = append(transactions, copyTransaction(transaction))
		}
	}
	sort.Slice(transactions, func(i, j int) bool {
		return transactions[i].CreatedAt.Before(transactions[j].CreatedAt)
	})
	return transactions, nil
}

func (m *memoryTransactions) MarkReversed(_ context.Context, orgID, transactionID, reversalID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	transaction, ok := m.transactions[transactionID]
	if !ok || transaction.OrgID != orgID {
		return customError.WrapTransactionNotFound(transactionID.String())
	}
	if transaction.ReversedByID != nil {
		return customError.WrapAlreadyReversed(transactionID.String())
	}
	transaction.ReversedByID = &reversalID
	m.transactions[transactionID] = transaction
	return nil
}

func copyTransaction(transaction domain.Transaction) *domain.Transaction {
	copied := transaction
	copied.Allocations = make([]*domain.Allocation, len(transaction.Allocations))
	for i, line := range transaction.Allocations {
		lineCopy := *line
		copied.Allocations[i] = &lineCopy
	}
	return &copied
}

type memoryClassifications MemoryStore

func (m *memoryClassifications) Upsert(_ context.Context, record *domain.ClassificationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	record.AsOfDate = daycount.Date(record.AsOfDate)
	for id, existing := range m.classifications {
		if existing.LoanID == record.LoanID && existing.AsOfDate.Equal(record.AsOfDate) {
			record.ID = existing.ID
			record.CreatedAt = existing.CreatedAt
			m.classifications[id] = *record
			return nil
		}
	}
	record.CreatedAt = time.Now()
	m.classifications[record.ID] = *record
	return nil
}

func (m *memoryClassifications) GetByLoanAndDate(_ context.Context, orgID, loanID uuid.UUID, asOf time.Time) (*domain.ClassificationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	asOf = daycount.Date(asOf)
	for _, record := range m.classifications {
		if record.OrgID == orgID && record.LoanID == loanID && record.AsOfDate.Equal(asOf) {
			copied := record
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *memoryClassifications) History(_ context.Context, orgID, loanID uuid.UUID, before time.Time, limit int) ([]*domain.ClassificationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	before = daycount.Date(before)
	var records []*domain.ClassificationRecord
	for _, record := range m.classifications {
		if record.OrgID == orgID && record.LoanID == loanID && record.AsOfDate.Before(before) {
			copied := record
			records = append(records, &copied)
		}
	}
	sort.Slice(records, func(i, j int) bool { return records[i].AsOfDate.After(records[j].AsOfDate) })
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

func (m *memoryClassifications) ListByOrgAndDate(_ context.Context, orgID uuid.UUID, asOf time.Time) ([]*domain.ClassificationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	asOf = daycount.Date(asOf)
	var records []*domain.ClassificationRecord
	for _, record := range m.classifications {
		if record.OrgID == orgID && record.AsOfDate.Equal(asOf) {
			copied := record
			records = append(records, &copied)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].LoanID.String() < records[j].LoanID.String()
	})
	return records, nil
}
